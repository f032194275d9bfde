package billing

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

func TestCreateInvoiceWorkedScenario(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "3")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if invoice.Status != models.InvoiceStatusDraft {
		t.Fatalf("status = %s, want draft", invoice.Status)
	}
	if len(invoice.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(invoice.Items))
	}
	item := invoice.Items[0]
	if !item.DiscountAmount.Equal(dec("30.00")) {
		t.Fatalf("discountAmount = %s, want 30.00", item.DiscountAmount)
	}
	if !item.TaxAmount.Equal(dec("48.60")) {
		t.Fatalf("taxAmount = %s, want 48.60", item.TaxAmount)
	}
	if !item.LineTotal.Equal(dec("318.60")) {
		t.Fatalf("lineTotal = %s, want 318.60", item.LineTotal)
	}
	if !invoice.TotalAmount.Equal(dec("318.60")) {
		t.Fatalf("totalAmount = %s, want 318.60", invoice.TotalAmount)
	}
	if !invoice.BalanceDue.Equal(dec("318.60")) {
		t.Fatalf("balanceDue = %s, want 318.60", invoice.BalanceDue)
	}

	// totalAmount == round2(subTotal - discountTotal + taxTotal)
	want := utils.Round2(invoice.SubTotal.Sub(invoice.DiscountTotal).Add(invoice.TaxTotal))
	if !invoice.TotalAmount.Equal(want) {
		t.Fatalf("total invariant broken: %s != %s", invoice.TotalAmount, want)
	}

	if len(invoice.TaxDetails) != 1 || invoice.TaxDetails[0].TaxName != "Tax 18%" {
		t.Fatalf("unexpected tax details: %+v", invoice.TaxDetails)
	}

	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("7")) {
		t.Fatalf("stock = %s, want 7", got)
	}
	if got := env.customerCredit(t, env.customer.ID); !got.Equal(dec("318.60")) {
		t.Fatalf("creditBalance = %s, want 318.60", got)
	}

	// The loyalty accrual is an outbox row, not a direct call.
	var events []models.LoyaltyEvent
	if err := env.db.Where("invoice_id = ?", invoice.ID).Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].Status != models.LoyaltyEventStatusPending {
		t.Fatalf("expected one pending loyalty event, got %+v", events)
	}
	if len(env.loyalty.processed) != 0 {
		t.Fatal("loyalty must not be called synchronously on create")
	}
}

func TestCreateInvoiceInsufficientStockRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	// Second line asks for more than available; the whole write must abort.
	_, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items: []models.NewInvoiceItem{
			goodsLine(env.goods.ID, "4"),
			goodsLine(env.goods.ID, "20"),
		},
	})
	if !errors.Is(err, utils.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("10")) {
		t.Fatalf("stock must be untouched after rollback, got %s", got)
	}
	if got := env.customerCredit(t, env.customer.ID); !got.IsZero() {
		t.Fatalf("credit must be untouched after rollback, got %s", got)
	}
	var count int64
	env.db.Model(&models.Invoice{}).Where("tenant_id = ?", testTenant).Count(&count)
	if count != 0 {
		t.Fatalf("no invoice may survive the rollback, found %d", count)
	}
	env.db.Model(&models.InvoiceItem{}).Count(&count)
	if count != 0 {
		t.Fatalf("no items may survive the rollback, found %d", count)
	}
	env.db.Model(&models.LoyaltyEvent{}).Count(&count)
	if count != 0 {
		t.Fatalf("no loyalty event may survive the rollback, found %d", count)
	}
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.svc.CreateInvoice(context.Background(), testTenant, models.NewInvoice{
		CustomerId: "does-not-exist",
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateInvoiceByEmailCreatesPlaceholder(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	invoice, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerEmail: "new@example.test",
		Items:         []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.Customer == nil || invoice.Customer.Name != "Unknown Customer" {
		t.Fatalf("expected placeholder customer, got %+v", invoice.Customer)
	}

	// Same email resolves to the same customer next time.
	second, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerEmail: "new@example.test",
		Items:         []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if err != nil {
		t.Fatalf("second CreateInvoice: %v", err)
	}
	if second.CustomerId != invoice.CustomerId {
		t.Fatal("email lookup must reuse the existing customer")
	}
}

func TestCreateInvoiceCashbackReducesBalance(t *testing.T) {
	env := setupTestEnv(t)

	invoice, err := env.svc.CreateInvoice(context.Background(), testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		CashBack:   safeDec("18.60"),
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "3")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	// balanceDue = total - cashback; amountPaid plays no part at creation.
	if !invoice.BalanceDue.Equal(dec("300.00")) {
		t.Fatalf("balanceDue = %s, want 300.00", invoice.BalanceDue)
	}
	if !invoice.AmountPaid.IsZero() {
		t.Fatalf("amountPaid = %s, want 0", invoice.AmountPaid)
	}
	if len(env.loyalty.redeemed) != 1 || !env.loyalty.redeemed[0].Equal(dec("18.60")) {
		t.Fatalf("expected synchronous redemption of 18.60, got %+v", env.loyalty.redeemed)
	}
}

func TestCreateInvoiceCashbackFailureRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	env.loyalty.redeemErr = errors.New("loyalty backend down")

	_, err := env.svc.CreateInvoice(context.Background(), testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		CashBack:   safeDec("10"),
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "3")},
	})
	if err == nil {
		t.Fatal("expected error when redemption fails")
	}
	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("10")) {
		t.Fatalf("stock must roll back, got %s", got)
	}
}

func TestCreateInvoiceServiceLineSkipsStock(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.svc.CreateInvoice(context.Background(), testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items: []models.NewInvoiceItem{{
			ProductId: env.service.ID,
			Quantity:  safeDec("100"),
			UnitPrice: safeDec("500"),
		}},
	})
	if err != nil {
		t.Fatalf("service lines must never hit stock checks: %v", err)
	}
}

func TestUpdateInvoiceSymmetry(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "4")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("6")) {
		t.Fatalf("stock after create = %s, want 6", got)
	}

	// Update to a smaller quantity: reversal frees 4, reapply takes 2.
	updated, err := env.svc.UpdateInvoice(ctx, testTenant, created.ID, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "2")},
	})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}

	// Final stock equals what a fresh create with the new set would leave.
	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("8")) {
		t.Fatalf("stock after update = %s, want 8", got)
	}
	// Credit moved by the delta between totals.
	wantCredit := updated.TotalAmount
	if got := env.customerCredit(t, env.customer.ID); !got.Equal(wantCredit) {
		t.Fatalf("credit = %s, want %s", got, wantCredit)
	}
	// Items were rebuilt wholesale.
	var itemCount int64
	env.db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", created.ID).Count(&itemCount)
	if itemCount != 1 {
		t.Fatalf("expected 1 rebuilt item, got %d", itemCount)
	}
}

func TestUpdateInvoiceReversalFreesStockFirst(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	// Take 8 of 10.
	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "8")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	// 9 would not fit into the remaining 2, but reversal frees the old 8
	// before the new check runs.
	_, err = env.svc.UpdateInvoice(ctx, testTenant, created.ID, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "9")},
	})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("1")) {
		t.Fatalf("stock = %s, want 1", got)
	}
}

func TestUpdateInvoiceRejectedForSent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusSent); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}

	_, err = env.svc.UpdateInvoice(ctx, testTenant, created.ID, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "2")},
	})
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestDeleteInvoiceDraftReversesStockAndCredit(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "3")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if err := env.svc.DeleteInvoice(ctx, testTenant, created.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}

	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("10")) {
		t.Fatalf("stock must be restored, got %s", got)
	}
	if got := env.customerCredit(t, env.customer.ID); !got.IsZero() {
		t.Fatalf("credit must be floored at 0, got %s", got)
	}
	// Soft delete: gone from default queries, present unscoped.
	var count int64
	env.db.Model(&models.Invoice{}).Where("id = ?", created.ID).Count(&count)
	if count != 0 {
		t.Fatal("deleted invoice must be hidden from default queries")
	}
	env.db.Unscoped().Model(&models.Invoice{}).Where("id = ?", created.ID).Count(&count)
	if count != 1 {
		t.Fatal("delete must be soft, row should remain unscoped")
	}
}

func TestDeleteInvoiceSentRejected(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "2")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusSent); err != nil {
		t.Fatalf("UpdateInvoiceStatus: %v", err)
	}

	err = env.svc.DeleteInvoice(ctx, testTenant, created.ID)
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	// Untouched: not soft-deleted, stock still committed.
	var count int64
	env.db.Model(&models.Invoice{}).Where("id = ?", created.ID).Count(&count)
	if count != 1 {
		t.Fatal("rejected delete must leave the invoice in place")
	}
	if got := env.productStock(t, env.goods.ID); !got.Equal(dec("8")) {
		t.Fatalf("stock = %s, want 8", got)
	}
}

func TestUpdateInvoiceStatusSideEffects(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	sent, err := env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusSent)
	if err != nil {
		t.Fatalf("to sent: %v", err)
	}
	if sent.SentAt == nil {
		t.Fatal("sentAt must be stamped")
	}

	viewed, err := env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusViewed)
	if err != nil {
		t.Fatalf("to viewed: %v", err)
	}
	if viewed.ViewedAt == nil {
		t.Fatal("viewedAt must be stamped")
	}

	// PAID with outstanding balance is rejected.
	_, err = env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusPaid)
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected invalid state for paid with balance, got %v", err)
	}

	// Invalid transition: draft is behind us.
	_, err = env.svc.UpdateInvoiceStatus(ctx, testTenant, created.ID, models.InvoiceStatusDraft)
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected invalid state for backwards transition, got %v", err)
	}
}

func TestSequentialLastUnitContention(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if err := env.db.Model(&models.Product{}).Where("id = ?", env.goods.ID).
		Update("stock_quantity", decimal.NewFromInt(1)).Error; err != nil {
		t.Fatalf("set stock: %v", err)
	}

	input := models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	}
	_, firstErr := env.svc.CreateInvoice(ctx, testTenant, input)
	_, secondErr := env.svc.CreateInvoice(ctx, testTenant, input)

	if firstErr != nil {
		t.Fatalf("first create must win: %v", firstErr)
	}
	if !errors.Is(secondErr, utils.ErrInsufficientStock) {
		t.Fatalf("second create must fail with insufficient stock, got %v", secondErr)
	}
	if got := env.productStock(t, env.goods.ID); !got.IsZero() {
		t.Fatalf("stock = %s, want 0 (no double deduction)", got)
	}
}

func TestTenantIsolationOnReads(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.CreateInvoice(ctx, testTenant, models.NewInvoice{
		CustomerId: env.customer.ID,
		Items:      []models.NewInvoiceItem{goodsLine(env.goods.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	_, err = env.svc.GetInvoice(ctx, otherTestTenant, created.ID)
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("other tenant must not see the invoice, got %v", err)
	}
}
