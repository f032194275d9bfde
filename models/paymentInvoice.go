package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentInvoice struct {
	ID          string          `gorm:"primary_key;size:36" json:"id"`
	TenantId    string          `gorm:"index;size:36;not null" json:"tenant_id"`
	InvoiceId   string          `gorm:"index;size:36;not null" json:"invoice_id"`
	CustomerId  string          `gorm:"index;size:36;not null" json:"customer_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method      PaymentMethod   `gorm:"size:30;default:cash" json:"method"`
	Status      PaymentStatus   `gorm:"size:20;default:completed" json:"status"`
	Reference   string          `gorm:"size:255" json:"reference"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
