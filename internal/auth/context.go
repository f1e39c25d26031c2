package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const tenantIDKey contextKey = "tenantID"

// TenantHeader carries the caller's tenant scope. Authentication itself is
// handled upstream; this service only enforces the isolation boundary.
const TenantHeader = "X-Tenant-ID"

// ContextWithTenantID returns a new context that carries the tenant scope.
func ContextWithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantIDFromContext retrieves the tenant scope from the context, if any.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(tenantIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RequireTenant returns the tenant scope or an error when none is present.
func RequireTenant(ctx context.Context) (uuid.UUID, error) {
	id, ok := TenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("tenant scope is required")
	}
	return id, nil
}

// TenantMiddleware reads the tenant header into the request context. Requests
// without a valid tenant id are rejected before reaching any handler.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TenantHeader)
		if raw == "" {
			http.Error(w, fmt.Sprintf("%s header is required", TenantHeader), http.StatusUnauthorized)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			http.Error(w, fmt.Sprintf("invalid %s header", TenantHeader), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithTenantID(r.Context(), id)))
	})
}
