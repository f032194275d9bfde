package utils

import (
	"context"

	"bitbucket.org/taralabs/invoicing_backend/appctx"
	"github.com/google/uuid"
)

func GetTenantIdInContext(ctx context.Context) string {
	v, _ := appctx.GetString(ctx, appctx.ContextKeyTenantId)
	return v
}

func SetTenantIdInContext(ctx context.Context, tenantId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyTenantId, tenantId)
}

func GetCorrelationIdInContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyCorrelationId); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

// SkipTenantScope returns a context that bypasses the tenant guard plugin.
// Only internal jobs (dispatcher claims, cross-tenant reports) use this.
func SkipTenantScope(ctx context.Context) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
}
