package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountController(t *testing.T) {
	body := `{"type":"percentage","discount":0.1,"expiresAt":"` +
		time.Now().Add(24*time.Hour).UTC().Format(time.RFC3339) + `"}`

	tests := []struct {
		name       string
		roles      []user.Role
		serviceErr error
		wantStatus int
		wantField  string
	}{
		{name: "manager", roles: []user.Role{user.RoleManager}, wantStatus: http.StatusCreated},
		{name: "customer", roles: []user.Role{user.RoleCustomer}, wantStatus: http.StatusForbidden},
		{name: "anonymous", wantStatus: http.StatusUnauthorized},
		{
			name:       "invalid magnitude",
			roles:      []user.Role{user.RoleAdmin},
			serviceErr: errs.NewValidationError("discount", "must be positive"),
			wantStatus: http.StatusBadRequest,
			wantField:  "discount",
		},
		{
			name:       "code space exhausted",
			roles:      []user.Role{user.RoleAdmin},
			serviceErr: errs.ErrCodeSpaceExhausted,
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)
			s.discounts.err = tt.serviceErr

			r := httptest.NewRequest(http.MethodPost, "/discounts", strings.NewReader(body))
			r.Header.Set("Content-Type", "application/json")
			if tt.roles != nil {
				r.Header.Set("Authorization", s.token(t, tt.roles...))
			}

			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, r)

			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusCreated {
				res := make(map[string]any)
				require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
				assert.Equal(t, "ABCD1234", res["code"])
				assert.Equal(t, "percentage", res["type"])
				assert.Equal(t, true, res["isActive"])
				return
			}

			errorResponse := new(errs.JSON)
			require.NoError(t, json.NewDecoder(w.Body).Decode(errorResponse))
			assert.Equal(t, tt.wantField, errorResponse.Field)
		})
	}
}
