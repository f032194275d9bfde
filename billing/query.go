package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/cache"
	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type ListInvoicesOptions struct {
	Page       int
	Limit      int
	Status     models.InvoiceStatus
	CustomerId string
}

// GetInvoice reads through the cache (300s TTL). A miss loads the invoice
// with items, tax details, and customer, and must be indistinguishable from
// a hit.
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantId string, invoiceId string) (models.Invoice, error) {
	ctx = tenantCtx(ctx, tenantId)
	var invoice models.Invoice
	err := s.cache.GetOrSet(ctx, cache.InvoiceKey(tenantId, invoiceId), &invoice, cache.ItemTTL, func() (any, error) {
		var loaded models.Invoice
		err := s.db.WithContext(ctx).
			Preload("Items").
			Preload("TaxDetails").
			Preload("Customer").
			Where("tenant_id = ? AND id = ?", tenantId, invoiceId).
			First(&loaded).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invoice %s", utils.ErrNotFound, invoiceId)
		}
		return loaded, err
	})
	return invoice, err
}

// ListInvoices is the offset mode: page/limit with a total count. Results
// are cached for 60s under the tenant's list-key family.
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantId string, opts ListInvoicesOptions) (models.InvoicePage, error) {
	ctx = tenantCtx(ctx, tenantId)
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > maxPageLimit {
		opts.Limit = defaultPageLimit
	}

	fingerprint := fmt.Sprintf("p%d:l%d:s%s:c%s", opts.Page, opts.Limit, opts.Status, opts.CustomerId)
	var page models.InvoicePage
	err := s.cache.GetOrSet(ctx, cache.InvoiceListKey(tenantId, fingerprint), &page, cache.ListTTL, func() (any, error) {
		query := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantId)
		if opts.Status != "" {
			query = query.Where("status = ?", opts.Status)
		}
		if opts.CustomerId != "" {
			query = query.Where("customer_id = ?", opts.CustomerId)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			return nil, err
		}
		var invoices []models.Invoice
		err := query.
			Preload("Items").
			Preload("Customer").
			Order("created_at DESC, id DESC").
			Offset((opts.Page - 1) * opts.Limit).
			Limit(opts.Limit).
			Find(&invoices).Error
		if err != nil {
			return nil, err
		}
		return models.InvoicePage{
			Invoices:   invoices,
			TotalCount: total,
			Page:       opts.Page,
			Limit:      opts.Limit,
		}, nil
	})
	return page, err
}

// PaginateInvoices is the keyset mode: strictly-decreasing (created_at, id)
// order, no count query. The comparison is
// created_at < cursor OR (created_at = cursor AND id < cursorId) so rows
// sharing a timestamp still order totally.
func (s *InvoiceService) PaginateInvoices(ctx context.Context, tenantId string, limit int, after string) (models.InvoiceConnection, error) {
	ctx = tenantCtx(ctx, tenantId)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}

	query := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	if after != "" {
		cursorTime, cursorId, err := models.ParseCompositeCursor(after)
		if err != nil {
			return models.InvoiceConnection{}, err
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursorTime, cursorTime, cursorId)
	}

	var invoices []models.Invoice
	if err := query.Preload("Items").Preload("Customer").Find(&invoices).Error; err != nil {
		return models.InvoiceConnection{}, err
	}

	hasNext := len(invoices) > limit
	if hasNext {
		invoices = invoices[:limit]
	}
	var endCursor string
	if len(invoices) > 0 {
		last := invoices[len(invoices)-1]
		endCursor = models.EncodeCompositeCursor(last.CreatedAt, last.ID)
	}
	return models.InvoiceConnection{
		Invoices: invoices,
		PageInfo: models.PageInfo{EndCursor: endCursor, HasNextPage: hasNext},
	}, nil
}

// OverdueInvoices computes overdue at query time: past due date, money
// still owed, status not yet terminal. Nothing is stored eagerly.
func (s *InvoiceService) OverdueInvoices(ctx context.Context, tenantId string, asOf time.Time) ([]models.Invoice, error) {
	ctx = tenantCtx(ctx, tenantId)
	if asOf.IsZero() {
		asOf = time.Now()
	}
	var invoices []models.Invoice
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND due_date < ? AND balance_due > 0 AND status IN ?",
			tenantId, asOf,
			[]models.InvoiceStatus{models.InvoiceStatusSent, models.InvoiceStatusViewed, models.InvoiceStatusPartial, models.InvoiceStatusOverdue}).
		Order("due_date ASC").
		Find(&invoices).Error
	return invoices, err
}
