package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/strefethen/soundtouch-hub-go/internal/api"
	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
)

var publicRoutes = map[string]struct{}{
	"/v1/auth/pair/start":    {},
	"/v1/auth/pair/complete": {},
	"/v1/auth/refresh":       {},
	"/v1/auth/token":         {},
}

var publicPrefixes = []string{
	"/v1/health",
}

// Middleware validates client tokens for protected routes. Tokens issued in
// test mode stop working once test mode is turned off.
func Middleware(cfg config.Config, issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if isTestModeRequest(r, cfg) {
				client := Client{ID: "test-client", Name: "Test Client", Origin: OriginTestMode, Type: TokenTypeAccess}
				next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if r.Header.Get("Authorization") == "" {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Missing Authorization header"))
				return
			}
			if !ok || token == "" {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid Authorization header format"))
				return
			}

			client, err := issuer.Verify(token)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					api.WriteError(w, r, apperrors.NewUnauthorizedError("Token has expired", apperrors.ErrorCodeAuthTokenExpired))
					return
				}
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}
			if client.Type != TokenTypeAccess {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token type", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}
			if client.Origin == OriginTestMode && !testModeEnabled(cfg) {
				api.WriteError(w, r, apperrors.NewUnauthorizedError("Test mode token no longer accepted", apperrors.ErrorCodeAuthTokenInvalid))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
		})
	}
}

func isPublicRoute(path string) bool {
	if _, ok := publicRoutes[path]; ok {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func testModeEnabled(cfg config.Config) bool {
	return cfg.AllowTestMode && cfg.IsDevelopment()
}

func isTestModeRequest(r *http.Request, cfg config.Config) bool {
	return testModeEnabled(cfg) && r.Header.Get("x-test-mode") == "true"
}
