package testutil

import (
	"context"
	"net/http"

	"veritrail/internal/platform/middleware"
	"veritrail/internal/principal"
)

// AsPrincipal attaches an authenticated principal to the request context,
// simulating what the API key middleware does for authenticated requests.
func AsPrincipal(req *http.Request, p *principal.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
