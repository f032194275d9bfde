package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Customer struct {
	ID              string          `gorm:"primary_key;size:36" json:"id"`
	TenantId        string          `gorm:"index;size:36;not null" json:"tenant_id" validate:"required"`
	Name            string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Email           string          `gorm:"size:255;index" json:"email"`
	Phone           string          `gorm:"size:50" json:"phone"`
	Gstin           string          `gorm:"size:50" json:"gstin"`
	BillingAddress  string          `gorm:"type:text" json:"billing_address"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	Status          CustomerStatus  `gorm:"size:20;default:active" json:"status"`
	// CreditBalance is the running invoiced-but-unpaid exposure: raised when
	// an invoice is created, lowered (floored at 0) by payments and deletes.
	CreditBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_balance"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

type NewCustomer struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone"`
	Gstin           string `json:"gstin"`
	BillingAddress  string `json:"billing_address"`
	ShippingAddress string `json:"shipping_address"`
}
