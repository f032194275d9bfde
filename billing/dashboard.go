package billing

import (
	"context"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/cache"
	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// DashboardSummary mirrors the receivables header figures: everything
// outstanding, what falls due today, due within 30 days, and what is
// already overdue.
type DashboardSummary struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	DueToday         decimal.Decimal `json:"due_today"`
	DueWithin30Days  decimal.Decimal `json:"due_within_30_days"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	InvoiceCount     int64           `json:"invoice_count"`
}

var payableStatuses = []models.InvoiceStatus{
	models.InvoiceStatusSent,
	models.InvoiceStatusViewed,
	models.InvoiceStatusPartial,
	models.InvoiceStatusOverdue,
}

// GetDashboardSummary aggregates balances over the tenant's payable
// invoices, cached under the dashboard key (60s).
func (s *InvoiceService) GetDashboardSummary(ctx context.Context, tenantId string) (DashboardSummary, error) {
	ctx = tenantCtx(ctx, tenantId)
	var summary DashboardSummary
	err := s.cache.GetOrSet(ctx, cache.DashboardKey(tenantId), &summary, cache.DashboardTTL, func() (any, error) {
		var invoices []models.Invoice
		err := s.db.WithContext(ctx).
			Select("id", "due_date", "balance_due").
			Where("tenant_id = ? AND balance_due > 0 AND status IN ?", tenantId, payableStatuses).
			Find(&invoices).Error
		if err != nil {
			return nil, err
		}

		now := time.Now()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.AddDate(0, 0, 1)
		in30Days := startOfDay.AddDate(0, 0, 30)

		computed := DashboardSummary{InvoiceCount: int64(len(invoices))}
		for _, inv := range invoices {
			computed.TotalOutstanding = computed.TotalOutstanding.Add(inv.BalanceDue)
			switch {
			case inv.DueDate.Before(startOfDay):
				computed.TotalOverdue = computed.TotalOverdue.Add(inv.BalanceDue)
			case inv.DueDate.Before(endOfDay):
				computed.DueToday = computed.DueToday.Add(inv.BalanceDue)
			case inv.DueDate.Before(in30Days):
				computed.DueWithin30Days = computed.DueWithin30Days.Add(inv.BalanceDue)
			}
		}
		computed.TotalOutstanding = utils.Round2(computed.TotalOutstanding)
		computed.DueToday = utils.Round2(computed.DueToday)
		computed.DueWithin30Days = utils.Round2(computed.DueWithin30Days)
		computed.TotalOverdue = utils.Round2(computed.TotalOverdue)
		return computed, nil
	})
	return summary, err
}
