// Package requestctx carries per-request values (request id, caller address,
// authenticated principal) between the HTTP layer and the services.
package requestctx

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/rcfms-admin/services/identity"
)

type key int

const (
	requestIDKey key = iota
	clientIPKey
	principalKey
)

// RequestID returns the request id stored with WithRequestID, falling back to
// the one chi's RequestID middleware assigned.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return chimw.GetReqID(ctx)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ClientIP returns the caller's address, or "" outside a request
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// Principal returns the authenticated principal, or nil
func Principal(ctx context.Context) *identity.Principal {
	p, _ := ctx.Value(principalKey).(*identity.Principal)
	return p
}

func WithPrincipal(ctx context.Context, principal *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}
