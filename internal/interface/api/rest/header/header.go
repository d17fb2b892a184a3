package header

import (
	"net"
	"net/http"
	"strings"
)

// IsApplicationJSONContentType returns true if the content type of the
// request is application/json.
func IsApplicationJSONContentType(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i > -1 {
		contentType = strings.TrimSpace(contentType[0:i])
	}
	return contentType == "application/json"
}

// BearerToken returns the token from the Authorization header, falling back
// to the Authorization cookie set by the dashboard.
func BearerToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); v != "" {
		return v
	}
	if c, err := r.Cookie("Authorization"); err == nil {
		return c.Value
	}
	return ""
}

// RemoteIP is the client address after chi's RealIP middleware ran.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
