package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/upb/rcfms-admin/handlers"
	"github.com/upb/rcfms-admin/internal/authz"
	"github.com/upb/rcfms-admin/internal/requestctx"
	"github.com/upb/rcfms-admin/services"
	"github.com/upb/rcfms-admin/services/identity"
	"go.uber.org/zap"
)

// PrincipalResolver resolves a bearer credential to the acting staff member
type PrincipalResolver interface {
	Resolve(ctx context.Context, credential string) (*identity.Principal, error)
}

// AuthMiddleware provides authentication and authorization middleware
type AuthMiddleware struct {
	resolver PrincipalResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver PrincipalResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// RequireAuth rejects the request with 401 unless the Authorization header
// carries a bearer credential that resolves to an active profile. Provider
// and store failures are 500, never 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestctx.RequestID(ctx)

		principal, err := m.resolver.Resolve(ctx, extractBearerToken(r))
		if err != nil {
			if services.IsUnauthorizedError(err) {
				m.logger.Debug("request not authenticated",
					zap.String("request_id", requestID),
					zap.Error(err))
				handlers.HandleServiceError(w, services.ErrUnauthenticated, m.logger)
				return
			}
			m.logger.Error("failed to resolve principal",
				zap.String("request_id", requestID),
				zap.Error(err))
			handlers.HandleServiceError(w, err, m.logger)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("profile_id", principal.ID().String()),
			zap.String("role", string(principal.Role())))

		next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(ctx, principal)))
	})
}

// RequireLevel admits only principals whose role belongs to level. It must
// run after RequireAuth; a missing principal is treated as unauthenticated.
// It panics on an unknown level so a mistyped route guard fails at startup.
func (m *AuthMiddleware) RequireLevel(level authz.Level) func(http.Handler) http.Handler {
	if !level.Valid() {
		panic(fmt.Sprintf("middleware: unknown authorization level %q", level))
	}
	roles := authz.RolesFor(level)
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestctx.RequestID(ctx)

			principal := requestctx.Principal(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				handlers.HandleServiceError(w, services.ErrUnauthenticated, m.logger)
				return
			}

			if !authz.Authorize(principal.Role(), level) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("profile_id", principal.ID().String()),
					zap.String("role", string(principal.Role())),
					zap.String("required_level", string(level)),
					zap.Strings("allowed_roles", allowed))
				handlers.HandleServiceError(w, services.ErrForbidden, m.logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
