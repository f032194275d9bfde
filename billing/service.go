package billing

import (
	"context"

	"bitbucket.org/taralabs/invoicing_backend/cache"
	"bitbucket.org/taralabs/invoicing_backend/config"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const moduleName = "billing"

// lock namespace for stock-mutating invoice writes
const stockLockType = "stockLock"

// InvoiceService owns the invoice lifecycle: create/update/delete, status
// transitions, payment application, stock adjustment, and the cache-fronted
// read paths. Dependencies are injected so tests can run against sqlite and
// the in-memory cache.
type InvoiceService struct {
	db      *gorm.DB
	cache   cache.Service
	loyalty LoyaltyService
	logger  *logrus.Logger
}

func NewInvoiceService(db *gorm.DB, cacheSvc cache.Service, loyalty LoyaltyService, logger *logrus.Logger) *InvoiceService {
	return &InvoiceService{
		db:      db,
		cache:   cacheSvc,
		loyalty: loyalty,
		logger:  logger,
	}
}

func (s *InvoiceService) DB() *gorm.DB { return s.db }

// tenantCtx stamps the tenant into the context so the tenant-guard plugin
// scopes every query in the operation.
func tenantCtx(ctx context.Context, tenantId string) context.Context {
	return utils.SetTenantIdInContext(ctx, tenantId)
}

// invalidateInvoiceCaches purges the per-id key, the tenant list family, and
// the dashboard aggregate. Runs after commit; failures are logged, never
// returned.
func (s *InvoiceService) invalidateInvoiceCaches(ctx context.Context, tenantId string, invoiceIds ...string) {
	funcName := "invalidateInvoiceCaches"
	for _, id := range invoiceIds {
		if err := s.cache.Del(ctx, cache.InvoiceKey(tenantId, id)); err != nil {
			config.LogError(s.logger, moduleName, funcName, "delete invoice cache key", id, err)
		}
	}
	if err := s.cache.InvalidatePattern(ctx, cache.InvoiceListPattern(tenantId)); err != nil {
		config.LogError(s.logger, moduleName, funcName, "invalidate list cache pattern", tenantId, err)
	}
	if err := s.cache.Del(ctx, cache.DashboardKey(tenantId)); err != nil {
		config.LogError(s.logger, moduleName, funcName, "delete dashboard cache key", tenantId, err)
	}
}
