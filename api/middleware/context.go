package middleware

import (
	"context"

	"github.com/angelmondragon/tiendas-backend/internal/authz"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxTenantID  contextKey = "tenant_id"
	ctxSessionID contextKey = "session_id"
	ctxScope     contextKey = "tenant_scope"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// TenantIDFromContext returns the tenant the caller belongs to, empty for
// customers and super admins.
func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTenantID).(string); ok {
		return v
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// TenantScopeFromContext returns the tenant named by the route, set once
// TenantAccess has authorized the caller.
func TenantScopeFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxScope).(uuid.UUID)
	return v, ok
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenantID, tenantID)
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// WithTenantScope marks the request as authorized for tenantID.
func WithTenantScope(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxScope, tenantID)
}

// ActorFromContext rebuilds the authenticated caller from the request context.
func ActorFromContext(ctx context.Context) (authz.Actor, error) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return authz.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	actor := authz.Actor{UserID: userID, Role: enums.RoleName(RoleFromContext(ctx))}
	if raw := TenantIDFromContext(ctx); raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			return authz.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid tenant context")
		}
		actor.TenantID = &tenantID
	}
	return actor, nil
}
