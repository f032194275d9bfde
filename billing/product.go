package billing

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *InvoiceService) CreateProduct(ctx context.Context, tenantId string, input models.NewProduct) (models.Product, error) {
	ctx = tenantCtx(ctx, tenantId)
	if err := utils.ValidateStruct(input); err != nil {
		return models.Product{}, err
	}
	productType := input.Type
	if productType == "" {
		productType = models.ProductTypeGoods
	}
	if !productType.IsValid() {
		return models.Product{}, fmt.Errorf("%w: unknown product type %q", utils.ErrValidation, string(productType))
	}
	product := models.Product{
		ID:                uuid.NewString(),
		TenantId:          tenantId,
		Name:              input.Name,
		Sku:               input.Sku,
		Type:              productType,
		Unit:              input.Unit,
		UnitPrice:         input.UnitPrice.Decimal,
		TaxRate:           input.TaxRate.Decimal,
		StockQuantity:     input.StockQuantity.Decimal,
		LowStockThreshold: input.LowStockThreshold.Decimal,
	}
	product.StockStatus = product.DeriveStockStatus()
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (s *InvoiceService) GetProduct(ctx context.Context, tenantId string, productId string) (models.Product, error) {
	ctx = tenantCtx(ctx, tenantId)
	var product models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, productId).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, fmt.Errorf("%w: product %s", utils.ErrNotFound, productId)
	}
	return product, err
}

func (s *InvoiceService) UpdateProduct(ctx context.Context, tenantId string, productId string, input models.NewProduct) (models.Product, error) {
	ctx = tenantCtx(ctx, tenantId)
	if err := utils.ValidateStruct(input); err != nil {
		return models.Product{}, err
	}
	product, err := s.GetProduct(ctx, tenantId, productId)
	if err != nil {
		return models.Product{}, err
	}
	if input.Type != "" {
		if !input.Type.IsValid() {
			return models.Product{}, fmt.Errorf("%w: unknown product type %q", utils.ErrValidation, string(input.Type))
		}
		product.Type = input.Type
	}
	product.Name = input.Name
	product.Sku = input.Sku
	product.Unit = input.Unit
	product.UnitPrice = input.UnitPrice.Decimal
	product.TaxRate = input.TaxRate.Decimal
	product.StockQuantity = input.StockQuantity.Decimal
	product.LowStockThreshold = input.LowStockThreshold.Decimal
	product.StockStatus = product.DeriveStockStatus()
	if err := s.db.WithContext(ctx).Save(&product).Error; err != nil {
		return models.Product{}, err
	}
	return product, nil
}

func (s *InvoiceService) ListProducts(ctx context.Context, tenantId string, page int, limit int) ([]models.Product, int64, error) {
	ctx = tenantCtx(ctx, tenantId)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ?", tenantId).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

// LowStockProducts lists stock-tracked products at or below their low-stock
// threshold.
func (s *InvoiceService) LowStockProducts(ctx context.Context, tenantId string) ([]models.Product, error) {
	ctx = tenantCtx(ctx, tenantId)
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND stock_status IN ?",
			tenantId, models.ProductTypeGoods,
			[]models.StockStatus{models.StockStatusLowStock, models.StockStatusOutOfStock}).
		Order("stock_quantity ASC").
		Find(&products).Error
	return products, err
}
