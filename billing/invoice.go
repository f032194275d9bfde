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

const invoiceNumberAttempts = 5

// CreateInvoice validates the customer, computes per-line and invoice
// totals, deducts GOODS stock, and persists invoice + items + tax details
// in one transaction. The customer's credit balance rises by the invoice
// total, an optional cashback redemption reduces the opening balance due,
// and a loyalty outbox row is appended for asynchronous accrual.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantId string, input models.NewInvoice) (models.Invoice, error) {
	funcName := "CreateInvoice"
	ctx = tenantCtx(ctx, tenantId)

	if tenantId == "" {
		return models.Invoice{}, fmt.Errorf("%w: tenant id is required", utils.ErrValidation)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return models.Invoice{}, err
	}

	invoiceType := input.Type
	if invoiceType == "" {
		invoiceType = models.InvoiceTypeStandard
	}
	if !invoiceType.IsValid() {
		return models.Invoice{}, fmt.Errorf("%w: unknown invoice type %q", utils.ErrValidation, string(invoiceType))
	}

	terms := input.PaymentTerms
	if terms == "" {
		terms = models.PaymentTermsDueOnReceipt
	}
	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	dueDate, err := models.DueDateFor(issueDate, terms)
	if err != nil {
		return models.Invoice{}, err
	}
	cashBack := utils.Round2(input.CashBack.Decimal)
	if cashBack.IsNegative() {
		return models.Invoice{}, fmt.Errorf("%w: cashback cannot be negative", utils.ErrValidation)
	}

	release, err := utils.TenantLock(ctx, tenantId, stockLockType, moduleName, funcName)
	if err != nil {
		return models.Invoice{}, err
	}
	defer release()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return models.Invoice{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	customer, err := s.resolveCustomer(ctx, tx, tenantId, input)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	products, err := fetchProductsByIds(ctx, tx, tenantId, collectProductIds(input.Items))
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	if err := verifyProductsExist(input.Items, products); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	quantities, err := goodsQuantities(input.Items, products)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	touched := make([]string, 0, len(quantities))
	for productId, qty := range quantities {
		if err := deductStock(ctx, tx, tenantId, productId, qty); err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
		touched = append(touched, productId)
	}
	if err := refreshStockStatus(ctx, tx, tenantId, touched); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	invoiceId := uuid.NewString()
	items, lines, rates := buildInvoiceItems(invoiceId, input.Items, products)
	totals := models.AggregateInvoiceTotals(lines, rates)

	number, err := generateUniqueInvoiceNumber(ctx, tx, tenantId)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if cashBack.GreaterThan(decimal.Zero) {
		if err := s.loyalty.RedeemCashback(ctx, tenantId, customer.ID, cashBack); err != nil {
			tx.Rollback()
			return models.Invoice{}, fmt.Errorf("cashback redemption failed: %w", err)
		}
	}

	taxDetails := make([]models.TaxDetail, len(totals.TaxDetails))
	for i, td := range totals.TaxDetails {
		td.ID = uuid.NewString()
		td.InvoiceId = invoiceId
		taxDetails[i] = td
	}

	invoice := models.Invoice{
		ID:            invoiceId,
		TenantId:      tenantId,
		InvoiceNumber: number,
		Type:          invoiceType,
		Status:        models.InvoiceStatusDraft,
		CustomerId:    customer.ID,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		PaymentTerms:  terms,
		SubTotal:      totals.SubTotal,
		TaxTotal:      totals.TaxTotal,
		DiscountTotal: totals.DiscountTotal,
		TotalAmount:   totals.TotalAmount,
		AmountPaid:    decimal.Zero,
		// Balance at creation is total minus cashback; amountPaid is zero by
		// construction and deliberately not part of this formula.
		BalanceDue:        utils.Round2(totals.TotalAmount.Sub(cashBack)),
		CashBack:          cashBack,
		Notes:             input.Notes,
		IsRecurring:       input.IsRecurring,
		RecurringSettings: input.Recurring,
		Items:             items,
		TaxDetails:        taxDetails,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if err := adjustCustomerCredit(ctx, tx, tenantId, customer.ID, totals.TotalAmount); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if err := models.AppendLoyaltyEvent(ctx, tx, tenantId, invoiceId, models.LoyaltyEventTypeInvoiceCreated); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Invoice{}, err
	}
	s.invalidateInvoiceCaches(ctx, tenantId, invoiceId)
	invoice.Customer = &customer
	return invoice, nil
}

// UpdateInvoice replaces the invoice's line set wholesale: stock for every
// old GOODS line is released first, then the new lines are validated and
// deducted, so a shrinking line frees stock before any growing line is
// checked. Allowed only while the invoice is DRAFT or PARTIAL.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, tenantId string, invoiceId string, input models.NewInvoice) (models.Invoice, error) {
	funcName := "UpdateInvoice"
	ctx = tenantCtx(ctx, tenantId)

	if err := utils.ValidateStruct(input); err != nil {
		return models.Invoice{}, err
	}

	release, err := utils.TenantLock(ctx, tenantId, stockLockType, moduleName, funcName)
	if err != nil {
		return models.Invoice{}, err
	}
	defer release()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return models.Invoice{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var invoice models.Invoice
	err = tx.Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantId, invoiceId).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: invoice %s", utils.ErrNotFound, invoiceId)
	} else if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if invoice.Status != models.InvoiceStatusDraft && invoice.Status != models.InvoiceStatusPartial {
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: invoice in status %s cannot be updated", utils.ErrInvalidState, invoice.Status)
	}

	customer, err := s.resolveCustomerForUpdate(ctx, tx, tenantId, invoice, input)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	// One batched fetch of the union of old+new product ids.
	unionIds := collectProductIds(input.Items)
	for _, item := range invoice.Items {
		if item.ProductId != "" {
			unionIds = append(unionIds, item.ProductId)
		}
	}
	products, err := fetchProductsByIds(ctx, tx, tenantId, unionIds)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	if err := verifyProductsExist(input.Items, products); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	// Reverse all old stock before reapplying new.
	oldQuantities := goodsQuantitiesFromItems(invoice.Items, products)
	for productId, qty := range oldQuantities {
		if err := releaseStock(ctx, tx, tenantId, productId, qty); err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
	}
	newQuantities, err := goodsQuantities(input.Items, products)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	for productId, qty := range newQuantities {
		if err := deductStock(ctx, tx, tenantId, productId, qty); err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
	}
	if err := refreshStockStatus(ctx, tx, tenantId, utils.UniqueSlice(unionIds)); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	// Old items and tax details are dropped wholesale and rebuilt.
	if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.TaxDetail{}).Error; err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	items, lines, rates := buildInvoiceItems(invoice.ID, input.Items, products)
	totals := models.AggregateInvoiceTotals(lines, rates)

	// Credit moves by the delta between new and old totals, not a reset.
	delta := totals.TotalAmount.Sub(invoice.TotalAmount)
	if err := adjustCustomerCredit(ctx, tx, tenantId, customer.ID, delta); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	terms := input.PaymentTerms
	if terms == "" {
		terms = invoice.PaymentTerms
	}
	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = invoice.IssueDate
	}
	dueDate, err := models.DueDateFor(issueDate, terms)
	if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	cashBack := utils.Round2(input.CashBack.Decimal)
	if cashBack.IsNegative() {
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: cashback cannot be negative", utils.ErrValidation)
	}
	if cashBack.GreaterThan(decimal.Zero) && !cashBack.Equal(invoice.CashBack) {
		extra := cashBack.Sub(invoice.CashBack)
		if extra.GreaterThan(decimal.Zero) {
			if err := s.loyalty.RedeemCashback(ctx, tenantId, customer.ID, extra); err != nil {
				tx.Rollback()
				return models.Invoice{}, fmt.Errorf("cashback redemption failed: %w", err)
			}
		}
	}

	invoice.CustomerId = customer.ID
	invoice.IssueDate = issueDate
	invoice.DueDate = dueDate
	invoice.PaymentTerms = terms
	invoice.Notes = input.Notes
	invoice.SubTotal = totals.SubTotal
	invoice.TaxTotal = totals.TaxTotal
	invoice.DiscountTotal = totals.DiscountTotal
	invoice.TotalAmount = totals.TotalAmount
	invoice.CashBack = cashBack
	// Unlike create, the update formula subtracts amountPaid: a PARTIAL
	// invoice keeps its payments when its lines change.
	invoice.BalanceDue = utils.Round2(totals.TotalAmount.Sub(invoice.AmountPaid).Sub(cashBack))
	if input.IsRecurring != nil {
		invoice.IsRecurring = input.IsRecurring
	}
	if input.Recurring != nil {
		invoice.RecurringSettings = input.Recurring
	}
	invoice.Items = nil
	invoice.TaxDetails = nil

	if err := tx.Save(&invoice).Error; err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	if len(items) > 0 {
		if err := tx.Create(&items).Error; err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
	}
	taxDetails := make([]models.TaxDetail, len(totals.TaxDetails))
	for i, td := range totals.TaxDetails {
		td.ID = uuid.NewString()
		td.InvoiceId = invoice.ID
		taxDetails[i] = td
	}
	if len(taxDetails) > 0 {
		if err := tx.Create(&taxDetails).Error; err != nil {
			tx.Rollback()
			return models.Invoice{}, err
		}
	}

	if err := models.AppendLoyaltyEvent(ctx, tx, tenantId, invoice.ID, models.LoyaltyEventTypeInvoiceUpdated); err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Invoice{}, err
	}
	s.invalidateInvoiceCaches(ctx, tenantId, invoice.ID)
	invoice.Items = items
	invoice.TaxDetails = taxDetails
	invoice.Customer = &customer
	return invoice, nil
}

// DeleteInvoice soft-deletes a DRAFT invoice, releases the stock its GOODS
// lines had committed, and lowers the customer's credit balance by the
// invoice total (floored at 0).
func (s *InvoiceService) DeleteInvoice(ctx context.Context, tenantId string, invoiceId string) error {
	funcName := "DeleteInvoice"
	ctx = tenantCtx(ctx, tenantId)

	release, err := utils.TenantLock(ctx, tenantId, stockLockType, moduleName, funcName)
	if err != nil {
		return err
	}
	defer release()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var invoice models.Invoice
	err = tx.Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantId, invoiceId).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return fmt.Errorf("%w: invoice %s", utils.ErrNotFound, invoiceId)
	} else if err != nil {
		tx.Rollback()
		return err
	}

	if invoice.Status != models.InvoiceStatusDraft {
		tx.Rollback()
		return fmt.Errorf("%w: only draft invoices can be deleted, invoice is %s", utils.ErrInvalidState, invoice.Status)
	}

	productIds := make([]string, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		if item.ProductId != "" {
			productIds = append(productIds, item.ProductId)
		}
	}
	products, err := fetchProductsByIds(ctx, tx, tenantId, productIds)
	if err != nil {
		tx.Rollback()
		return err
	}
	quantities := goodsQuantitiesFromItems(invoice.Items, products)
	for productId, qty := range quantities {
		if err := releaseStock(ctx, tx, tenantId, productId, qty); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := refreshStockStatus(ctx, tx, tenantId, productIds); err != nil {
		tx.Rollback()
		return err
	}

	if err := adjustCustomerCredit(ctx, tx, tenantId, invoice.CustomerId, invoice.TotalAmount.Neg()); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Delete(&invoice).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}
	s.invalidateInvoiceCaches(ctx, tenantId, invoiceId)
	return nil
}

// UpdateInvoiceStatus applies an explicit state transition. Side effects key
// on the target: SENT stamps sentAt, VIEWED stamps viewedAt, PAID (only when
// the balance is zero) stamps paidDate.
func (s *InvoiceService) UpdateInvoiceStatus(ctx context.Context, tenantId string, invoiceId string, target models.InvoiceStatus) (models.Invoice, error) {
	ctx = tenantCtx(ctx, tenantId)

	if !target.IsValid() {
		return models.Invoice{}, fmt.Errorf("%w: unknown status %q", utils.ErrValidation, string(target))
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return models.Invoice{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var invoice models.Invoice
	err := tx.Where("tenant_id = ? AND id = ?", tenantId, invoiceId).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: invoice %s", utils.ErrNotFound, invoiceId)
	} else if err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}

	if !invoice.Status.CanTransitionTo(target) {
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: cannot transition %s -> %s", utils.ErrInvalidState, invoice.Status, target)
	}

	now := time.Now()
	switch target {
	case models.InvoiceStatusSent:
		invoice.SentAt = &now
	case models.InvoiceStatusViewed:
		invoice.ViewedAt = &now
	case models.InvoiceStatusPaid:
		if !invoice.BalanceDue.IsZero() {
			tx.Rollback()
			return models.Invoice{}, fmt.Errorf("%w: invoice has outstanding balance %s", utils.ErrInvalidState, invoice.BalanceDue)
		}
		invoice.PaidDate = &now
	case models.InvoiceStatusPartial, models.InvoiceStatusOverdue, models.InvoiceStatusCancelled:
		// no timestamp side effect
	default:
		tx.Rollback()
		return models.Invoice{}, fmt.Errorf("%w: unhandled status %q", utils.ErrValidation, string(target))
	}
	invoice.Status = target

	if err := tx.Save(&invoice).Error; err != nil {
		tx.Rollback()
		return models.Invoice{}, err
	}
	if err := tx.Commit().Error; err != nil {
		return models.Invoice{}, err
	}
	s.invalidateInvoiceCaches(ctx, tenantId, invoiceId)
	return invoice, nil
}

func (s *InvoiceService) resolveCustomer(ctx context.Context, tx *gorm.DB, tenantId string, input models.NewInvoice) (models.Customer, error) {
	if input.CustomerId != "" {
		var customer models.Customer
		err := tx.Where("tenant_id = ? AND id = ?", tenantId, input.CustomerId).First(&customer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Customer{}, fmt.Errorf("%w: customer %s", utils.ErrNotFound, input.CustomerId)
		}
		return customer, err
	}
	return getOrCreateCustomerByEmail(ctx, tx, tenantId, input.CustomerEmail, input.CustomerName)
}

func (s *InvoiceService) resolveCustomerForUpdate(ctx context.Context, tx *gorm.DB, tenantId string, invoice models.Invoice, input models.NewInvoice) (models.Customer, error) {
	if input.CustomerId == "" && input.CustomerEmail == "" {
		input.CustomerId = invoice.CustomerId
	}
	return s.resolveCustomer(ctx, tx, tenantId, input)
}

func collectProductIds(items []models.NewInvoiceItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductId != "" {
			ids = append(ids, item.ProductId)
		}
	}
	return ids
}

func verifyProductsExist(items []models.NewInvoiceItem, products map[string]models.Product) error {
	for _, item := range items {
		if item.ProductId == "" {
			continue
		}
		if _, ok := products[item.ProductId]; !ok {
			return fmt.Errorf("%w: product %s", utils.ErrNotFound, item.ProductId)
		}
	}
	return nil
}

// buildInvoiceItems runs the line calculator over the raw inputs and
// materializes InvoiceItem rows. Description and unit fall back to the
// referenced product's values.
func buildInvoiceItems(invoiceId string, inputs []models.NewInvoiceItem, products map[string]models.Product) ([]models.InvoiceItem, []models.LineCalculation, []decimal.Decimal) {
	items := make([]models.InvoiceItem, 0, len(inputs))
	lines := make([]models.LineCalculation, 0, len(inputs))
	rates := make([]decimal.Decimal, 0, len(inputs))

	for _, in := range inputs {
		qty := utils.CoerceDecimal(in.Quantity.Decimal, decimal.Zero)
		price := utils.CoerceDecimal(in.UnitPrice.Decimal, decimal.Zero)
		disc := utils.CoerceDecimal(in.Discount.Decimal, decimal.Zero)
		rate := utils.CoerceDecimal(in.TaxRate.Decimal, decimal.Zero)

		description := in.Description
		unit := in.Unit
		if product, ok := products[in.ProductId]; ok && in.ProductId != "" {
			if description == "" {
				description = product.Name
			}
			if unit == "" {
				unit = product.Unit
			}
		}

		calc := models.CalculateLineItem(qty, price, disc, rate)
		items = append(items, models.InvoiceItem{
			ID:             uuid.NewString(),
			InvoiceId:      invoiceId,
			ProductId:      in.ProductId,
			Description:    description,
			Quantity:       qty,
			Unit:           unit,
			UnitPrice:      price,
			Discount:       disc,
			DiscountAmount: calc.DiscountAmount,
			TaxRate:        rate,
			TaxAmount:      calc.TaxAmount,
			LineTotal:      calc.LineTotal,
		})
		lines = append(lines, calc)
		rates = append(rates, rate)
	}
	return items, lines, rates
}

// generateUniqueInvoiceNumber retries the timestamp+random scheme a few
// times against the (tenant_id, invoice_number) unique index before giving
// up. Collisions are rare but possible under burst load.
func generateUniqueInvoiceNumber(ctx context.Context, tx *gorm.DB, tenantId string) (string, error) {
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		number := models.GenerateInvoiceNumber(tenantId, time.Now())
		var count int64
		if err := tx.WithContext(ctx).Model(&models.Invoice{}).
			Unscoped().
			Where("tenant_id = ? AND invoice_number = ?", tenantId, number).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique invoice number for tenant %s", tenantId)
}
