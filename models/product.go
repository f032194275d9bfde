package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID                string          `gorm:"primary_key;size:36" json:"id"`
	TenantId          string          `gorm:"index;size:36;not null" json:"tenant_id" validate:"required"`
	Name              string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Sku               string          `gorm:"size:100" json:"sku"`
	Type              ProductType     `gorm:"size:20;not null;default:goods" json:"type"`
	Unit              string          `gorm:"size:50" json:"unit"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	StockQuantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_quantity"`
	LowStockThreshold decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"low_stock_threshold"`
	StockStatus       StockStatus     `gorm:"size:20;default:in_stock" json:"stock_status"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

type NewProduct struct {
	Name              string      `json:"name" validate:"required"`
	Sku               string      `json:"sku"`
	Type              ProductType `json:"type"`
	Unit              string      `json:"unit"`
	UnitPrice         SafeDecimal `json:"unit_price"`
	TaxRate           SafeDecimal `json:"tax_rate"`
	StockQuantity     SafeDecimal `json:"stock_quantity"`
	LowStockThreshold SafeDecimal `json:"low_stock_threshold"`
}

// DeriveStockStatus recomputes the stock status from the current quantity
// and the low-stock threshold. Non-goods products always read in_stock.
func (p *Product) DeriveStockStatus() StockStatus {
	if !p.Type.TracksStock() {
		return StockStatusInStock
	}
	if p.StockQuantity.LessThanOrEqual(decimal.Zero) {
		return StockStatusOutOfStock
	}
	if p.StockQuantity.LessThanOrEqual(p.LowStockThreshold) {
		return StockStatusLowStock
	}
	return StockStatusInStock
}
