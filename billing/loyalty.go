package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// LoyaltyService is the loyalty/rewards collaborator. RedeemCashback is
// called synchronously inside the invoice write when a cashback amount is
// supplied; ProcessInvoiceForLoyalty is invoked asynchronously by the outbox
// dispatcher and may fail and be retried without affecting the invoice.
type LoyaltyService interface {
	ProcessInvoiceForLoyalty(ctx context.Context, tenantId string, invoiceId string) error
	RedeemCashback(ctx context.Context, tenantId string, customerId string, amount decimal.Decimal) error
}

// NoopLoyaltyService satisfies LoyaltyService for deployments without a
// loyalty program.
type NoopLoyaltyService struct{}

func (NoopLoyaltyService) ProcessInvoiceForLoyalty(ctx context.Context, tenantId string, invoiceId string) error {
	return nil
}

func (NoopLoyaltyService) RedeemCashback(ctx context.Context, tenantId string, customerId string, amount decimal.Decimal) error {
	return nil
}
