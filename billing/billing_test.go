package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"bitbucket.org/taralabs/invoicing_backend/cache"
	"bitbucket.org/taralabs/invoicing_backend/config"
	"bitbucket.org/taralabs/invoicing_backend/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testTenant      = "11111111-2222-3333-4444-555555556789"
	otherTestTenant = "99999999-8888-7777-6666-555555554321"
)

// recordingLoyalty captures calls so tests can assert on the loyalty
// hand-off without any external service.
type recordingLoyalty struct {
	mu        sync.Mutex
	processed []string
	redeemed  []decimal.Decimal
	redeemErr error
}

func (r *recordingLoyalty) ProcessInvoiceForLoyalty(ctx context.Context, tenantId string, invoiceId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, invoiceId)
	return nil
}

func (r *recordingLoyalty) RedeemCashback(ctx context.Context, tenantId string, customerId string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.redeemErr != nil {
		return r.redeemErr
	}
	r.redeemed = append(r.redeemed, amount)
	return nil
}

type testEnv struct {
	svc      *InvoiceService
	db       *gorm.DB
	cache    *cache.MemoryService
	loyalty  *recordingLoyalty
	customer models.Customer
	goods    models.Product
	service  models.Product
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Tenant{}, &models.Customer{}, &models.Product{},
		&models.Invoice{}, &models.InvoiceItem{}, &models.TaxDetail{},
		&models.PaymentInvoice{}, &models.LoyaltyEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	customer := models.Customer{
		ID:       uuid.NewString(),
		TenantId: testTenant,
		Name:     "Acme Traders",
		Email:    "billing@acme.test",
		Gstin:    "29ABCDE1234F1Z5",
		Status:   models.CustomerStatusActive,
	}
	goods := models.Product{
		ID:                uuid.NewString(),
		TenantId:          testTenant,
		Name:              "Steel Bracket",
		Type:              models.ProductTypeGoods,
		Unit:              "pcs",
		UnitPrice:         decimal.NewFromInt(100),
		StockQuantity:     decimal.NewFromInt(10),
		LowStockThreshold: decimal.NewFromInt(2),
		StockStatus:       models.StockStatusInStock,
	}
	service := models.Product{
		ID:        uuid.NewString(),
		TenantId:  testTenant,
		Name:      "Installation",
		Type:      models.ProductTypeService,
		UnitPrice: decimal.NewFromInt(500),
	}
	for _, seed := range []any{&customer, &goods, &service} {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	loyalty := &recordingLoyalty{}
	memCache := cache.NewMemoryService()
	return &testEnv{
		svc:      NewInvoiceService(db, memCache, loyalty, config.GetLogger()),
		db:       db,
		cache:    memCache,
		loyalty:  loyalty,
		customer: customer,
		goods:    goods,
		service:  service,
	}
}

func (e *testEnv) productStock(t *testing.T, productId string) decimal.Decimal {
	t.Helper()
	var p models.Product
	if err := e.db.Where("id = ?", productId).First(&p).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.StockQuantity
}

func (e *testEnv) customerCredit(t *testing.T, customerId string) decimal.Decimal {
	t.Helper()
	var c models.Customer
	if err := e.db.Where("id = ?", customerId).First(&c).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	return c.CreditBalance
}

func safeDec(s string) models.SafeDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return models.NewSafeDecimal(d)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func goodsLine(productId, qty string) models.NewInvoiceItem {
	return models.NewInvoiceItem{
		ProductId: productId,
		Quantity:  safeDec(qty),
		UnitPrice: safeDec("100"),
		Discount:  safeDec("10"),
		TaxRate:   safeDec("18"),
	}
}
