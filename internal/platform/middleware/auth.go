// Package middleware carries HTTP middleware shared across features.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"veritrail/internal/principal"
	"veritrail/pkg/platform/httputil"
)

// Authenticator resolves an active principal from a presented API key.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*principal.Principal, error)
}

type contextKeyPrincipal struct{}

// ContextKeyPrincipal is exported for use in handler tests.
var ContextKeyPrincipal = contextKeyPrincipal{}

// PrincipalFrom retrieves the authenticated principal from the context.
func PrincipalFrom(ctx context.Context) *principal.Principal {
	p, ok := ctx.Value(ContextKeyPrincipal).(*principal.Principal)
	if !ok {
		return nil
	}
	return p
}

// WithPrincipal injects a principal into the context. Test helper.
func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// RequireAPIKey authenticates requests by API key, accepted either as a
// bearer token or in X-API-Key. The resolved principal lands in the request
// context.
func RequireAPIKey(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					apiKey = after
				}
			}

			p, err := auth.Authenticate(ctx, apiKey)
			if err != nil {
				logger.WarnContext(ctx, "request not authenticated",
					"request_id", chimiddleware.GetReqID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}
