package middleware

import (
	"context"
	"errors"
	"net/http"

	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/internal/service"
	"go-pharmacy-catalog/pkg/apierror"
)

type tokenVerifier interface {
	VerifyHeader(header string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// verified claims to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifier.VerifyHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeAPIError(w, err, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if err := service.RequireRole(claims, role); err != nil {
				writeAPIError(w, err, http.StatusForbidden, "FORBIDDEN", "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok && claims != nil
}

func writeAPIError(w http.ResponseWriter, err error, fallbackStatus int, fallbackCode string, fallbackMessage string) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.HTTPStatus, apiErr.Code, apiErr.Message)
		return
	}
	writeError(w, fallbackStatus, fallbackCode, fallbackMessage)
}
