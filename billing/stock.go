package billing

import (
	"context"
	"fmt"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fetchProductsByIds loads every referenced product in one query and maps
// them by id. Missing ids surface as ErrNotFound at the call site.
func fetchProductsByIds(ctx context.Context, tx *gorm.DB, tenantId string, productIds []string) (map[string]models.Product, error) {
	ids := utils.UniqueSlice(productIds)
	byId := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return byId, nil
	}
	var products []models.Product
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantId, ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		byId[p.ID] = p
	}
	return byId, nil
}

// deductStock decrements one product's stock with an atomic conditional
// UPDATE; the stock_quantity >= qty guard in the WHERE clause makes
// concurrent oversells impossible regardless of isolation level. Zero rows
// affected means the stock check failed.
func deductStock(ctx context.Context, tx *gorm.DB, tenantId string, productId string, quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	result := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND tenant_id = ? AND stock_quantity >= ?", productId, tenantId, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", utils.ErrInsufficientStock, productId)
	}
	return nil
}

// releaseStock adds quantity back. Unconditional; releasing can never fail a
// stock check.
func releaseStock(ctx context.Context, tx *gorm.DB, tenantId string, productId string, quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	result := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND tenant_id = ?", productId, tenantId).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", utils.ErrNotFound, productId)
	}
	return nil
}

// goodsQuantities folds line items down to one total quantity per
// stock-tracked product, so a product repeated across lines is checked and
// decremented once.
func goodsQuantities(items []models.NewInvoiceItem, products map[string]models.Product) (map[string]decimal.Decimal, error) {
	quantities := make(map[string]decimal.Decimal)
	for _, item := range items {
		if item.ProductId == "" {
			continue
		}
		product, ok := products[item.ProductId]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", utils.ErrNotFound, item.ProductId)
		}
		if !product.Type.TracksStock() {
			continue
		}
		qty := utils.CoerceDecimal(item.Quantity.Decimal, decimal.Zero)
		quantities[product.ID] = quantities[product.ID].Add(qty)
	}
	return quantities, nil
}

// goodsQuantitiesFromItems is the persisted-item variant used when reversing
// an existing invoice's stock.
func goodsQuantitiesFromItems(items []models.InvoiceItem, products map[string]models.Product) map[string]decimal.Decimal {
	quantities := make(map[string]decimal.Decimal)
	for _, item := range items {
		if item.ProductId == "" {
			continue
		}
		product, ok := products[item.ProductId]
		if !ok || !product.Type.TracksStock() {
			continue
		}
		quantities[item.ProductId] = quantities[item.ProductId].Add(item.Quantity)
	}
	return quantities
}

// refreshStockStatus re-derives stock_status for the touched products inside
// the same transaction. Plain CASE SQL so it runs on both mysql and sqlite.
func refreshStockStatus(ctx context.Context, tx *gorm.DB, tenantId string, productIds []string) error {
	ids := utils.UniqueSlice(productIds)
	if len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(`
		UPDATE products SET stock_status = CASE
			WHEN stock_quantity <= 0 THEN 'out_of_stock'
			WHEN stock_quantity <= low_stock_threshold THEN 'low_stock'
			ELSE 'in_stock'
		END
		WHERE tenant_id = ? AND id IN ? AND type = 'goods'`, tenantId, ids).Error
}
