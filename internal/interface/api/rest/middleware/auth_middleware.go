package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/KretovDmitry/backoffice/internal/interface/api/rest/header"
)

// Authorization middleware. Requests without a valid token are rejected.
func Middleware(service interfaces.AuthService) func(http.Handler) http.Handler {
	return authenticate(service, true)
}

// Optional authenticates the caller when a token is present and lets
// anonymous requests through.
func Optional(service interfaces.AuthService) func(http.Handler) http.Handler {
	return authenticate(service, false)
}

func authenticate(service interfaces.AuthService, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			token := header.BearerToken(r)
			if token == "" {
				if required {
					errorHandlerFunc(w, r, errs.ErrUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			u, err := service.GetUserFromToken(r.Context(), token)
			if err != nil {
				errorHandlerFunc(w, r, err)
				return
			}

			r = r.WithContext(user.NewContext(r.Context(), u))

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(f)
	}
}

// RequireRoles lets through callers holding any of roles. It must run after
// Middleware.
func RequireRoles(identity interfaces.Identity, roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			u, found := user.FromContext(r.Context())
			if !found || !identity.HasRole(u, roles...) {
				errorHandlerFunc(w, r, errs.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(f)
	}
}

// errorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
// Messages are generic so the caller cannot tell which check failed.
func errorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: "internal error", Code: errs.CodeInternal}
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		code = http.StatusUnauthorized
		errJSON = errs.JSON{Error: errs.ErrUnauthorized.Error(), Code: errs.CodeAuthorization}
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden
		errJSON = errs.JSON{Error: errs.ErrForbidden.Error(), Code: errs.CodeAuthorization}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
