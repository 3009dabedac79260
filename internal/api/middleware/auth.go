package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/formvault/internal/api/response"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/security"
)

type contextKey string

const (
	TenantKey  contextKey = "tenant"
	SubjectKey contextKey = "subject"
	AdminKey   contextKey = "admin"

	tenantSinkKey contextKey = "tenantSink"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the bearer token and scopes the request to the
// tenant it names
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		if sink, ok := r.Context().Value(tenantSinkKey).(*string); ok {
			*sink = claims.Tenant.String()
		}

		ctx := context.WithValue(r.Context(), TenantKey, claims.Tenant)
		ctx = context.WithValue(ctx, SubjectKey, claims.Subject)
		ctx = context.WithValue(ctx, AdminKey, claims.Admin)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests whose token lacks the admin claim
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			response.Forbidden(w, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetTenant gets the authenticated tenant from context
func GetTenant(ctx context.Context) (domain.TenantID, bool) {
	tenant, ok := ctx.Value(TenantKey).(domain.TenantID)
	return tenant, ok && tenant != ""
}

// GetSubject gets the token subject from context
func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok
}

// IsAdmin reports whether the token carried the admin claim
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(AdminKey).(bool)
	return admin
}

// withTenantSink lets Authenticate report the tenant back to Logger, which
// runs before it.
func withTenantSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, tenantSinkKey, sink)
}
