package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AddPayment applies a payment against an invoice's balance. The payment
// row, the invoice's amountPaid/balanceDue/status, and the customer's credit
// balance all move in one transaction: a payment can never exist without the
// matching status re-derivation.
func (s *InvoiceService) AddPayment(ctx context.Context, tenantId string, input models.NewPayment) (models.PaymentInvoice, error) {
	ctx = tenantCtx(ctx, tenantId)

	if err := utils.ValidateStruct(input); err != nil {
		return models.PaymentInvoice{}, err
	}
	// Amount is business-required; a missing amount is a validation error,
	// not a zero coercion.
	if input.Amount == nil {
		return models.PaymentInvoice{}, fmt.Errorf("%w: payment amount is required", utils.ErrValidation)
	}
	amount := utils.Round2(input.Amount.Decimal)

	method := input.Method
	if method == "" {
		method = models.PaymentMethodCash
	}
	if !method.IsValid() {
		return models.PaymentInvoice{}, fmt.Errorf("%w: unknown payment method %q", utils.ErrValidation, string(method))
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return models.PaymentInvoice{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var invoice models.Invoice
	err := tx.Where("tenant_id = ? AND id = ?", tenantId, input.InvoiceId).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return models.PaymentInvoice{}, fmt.Errorf("%w: invoice %s", utils.ErrNotFound, input.InvoiceId)
	} else if err != nil {
		tx.Rollback()
		return models.PaymentInvoice{}, err
	}

	switch invoice.Status {
	case models.InvoiceStatusDraft, models.InvoiceStatusCancelled, models.InvoiceStatusPaid:
		tx.Rollback()
		return models.PaymentInvoice{}, fmt.Errorf("%w: invoice in status %s cannot accept payments", utils.ErrInvalidState, invoice.Status)
	case models.InvoiceStatusSent, models.InvoiceStatusViewed, models.InvoiceStatusPartial, models.InvoiceStatusOverdue:
		// payable
	default:
		tx.Rollback()
		return models.PaymentInvoice{}, fmt.Errorf("%w: unhandled invoice status %q", utils.ErrValidation, string(invoice.Status))
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		tx.Rollback()
		return models.PaymentInvoice{}, fmt.Errorf("%w: payment amount must be positive", utils.ErrInvalidState)
	}
	if amount.GreaterThan(invoice.BalanceDue) {
		tx.Rollback()
		return models.PaymentInvoice{}, fmt.Errorf("%w: payment %s exceeds balance due %s", utils.ErrInvalidState, amount, invoice.BalanceDue)
	}

	paymentDate := time.Now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}
	payment := models.PaymentInvoice{
		ID:          uuid.NewString(),
		TenantId:    tenantId,
		InvoiceId:   invoice.ID,
		CustomerId:  invoice.CustomerId,
		Amount:      amount,
		Method:      method,
		Status:      models.PaymentStatusCompleted,
		Reference:   input.Reference,
		PaymentDate: paymentDate,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return models.PaymentInvoice{}, err
	}

	invoice.AmountPaid = utils.Round2(invoice.AmountPaid.Add(amount))
	invoice.BalanceDue = utils.Round2(invoice.BalanceDue.Sub(amount))
	if invoice.BalanceDue.IsZero() {
		invoice.Status = models.InvoiceStatusPaid
		invoice.PaidDate = &paymentDate
	} else {
		invoice.Status = models.InvoiceStatusPartial
	}
	if err := tx.Save(&invoice).Error; err != nil {
		tx.Rollback()
		return models.PaymentInvoice{}, err
	}

	if err := adjustCustomerCredit(ctx, tx, tenantId, invoice.CustomerId, amount.Neg()); err != nil {
		tx.Rollback()
		return models.PaymentInvoice{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.PaymentInvoice{}, err
	}
	s.invalidateInvoiceCaches(ctx, tenantId, invoice.ID)
	return payment, nil
}

// ListPayments returns the payment history for one invoice.
func (s *InvoiceService) ListPayments(ctx context.Context, tenantId string, invoiceId string) ([]models.PaymentInvoice, error) {
	ctx = tenantCtx(ctx, tenantId)
	var payments []models.PaymentInvoice
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantId, invoiceId).
		Order("payment_date DESC").
		Find(&payments).Error
	return payments, err
}
