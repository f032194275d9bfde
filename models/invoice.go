package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID            string        `gorm:"primary_key;size:36" json:"id"`
	TenantId      string        `gorm:"size:36;not null;uniqueIndex:idx_tenant_invoice_number;index:idx_tenant_created,priority:1" json:"tenant_id" validate:"required"`
	InvoiceNumber string        `gorm:"size:64;not null;uniqueIndex:idx_tenant_invoice_number" json:"invoice_number"`
	Type          InvoiceType   `gorm:"size:20;not null;default:standard" json:"type"`
	Status        InvoiceStatus `gorm:"size:20;not null;default:draft" json:"status"`
	CustomerId    string        `gorm:"index;size:36;not null" json:"customer_id"`
	IssueDate     time.Time     `gorm:"not null" json:"issue_date"`
	DueDate       time.Time     `gorm:"not null" json:"due_date"`
	PaymentTerms  PaymentTerms  `gorm:"size:20;not null;default:DueOnReceipt" json:"payment_terms"`

	SubTotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sub_total"`
	TaxTotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_total"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_total"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	BalanceDue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_due"`
	CashBack      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cash_back"`

	Notes             string             `gorm:"type:text" json:"notes"`
	IsRecurring       *bool              `gorm:"default:false" json:"is_recurring"`
	RecurringSettings *RecurringSettings `gorm:"type:text" json:"recurring_settings"`

	SentAt   *time.Time `json:"sent_at"`
	ViewedAt *time.Time `json:"viewed_at"`
	PaidDate *time.Time `json:"paid_date"`

	Items      []InvoiceItem `gorm:"foreignKey:InvoiceId" json:"items"`
	TaxDetails []TaxDetail   `gorm:"foreignKey:InvoiceId" json:"tax_details"`
	Customer   *Customer     `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime;index:idx_tenant_created,priority:2" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type InvoiceItem struct {
	ID        string `gorm:"primary_key;size:36" json:"id"`
	InvoiceId string `gorm:"index;size:36;not null" json:"invoice_id"`
	// ProductId is empty for free-text service lines.
	ProductId      string          `gorm:"index;size:36" json:"product_id"`
	Description    string          `gorm:"size:255" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Unit           string          `gorm:"size:50" json:"unit"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Discount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	LineTotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TaxDetail is one aggregated bucket per distinct tax rate on an invoice.
// Rows are fully regenerated on every create/update.
type TaxDetail struct {
	ID           string          `gorm:"primary_key;size:36" json:"id"`
	InvoiceId    string          `gorm:"index;size:36;not null" json:"invoice_id"`
	TaxName      string          `gorm:"size:100" json:"tax_name"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TaxableValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"taxable_value"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type RecurringSettings struct {
	Frequency  string     `json:"frequency"`
	Interval   int        `json:"interval"`
	EndDate    *time.Time `json:"end_date"`
	NextRunAt  *time.Time `json:"next_run_at"`
	Occurrence int        `json:"occurrence"`
}

func (r *RecurringSettings) Scan(value any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported recurring settings type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, r)
}

func (r RecurringSettings) Value() (driver.Value, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Input structs for invoice writes. Line items are replaced wholesale on
// update; there are no partial line edits.
type NewInvoice struct {
	CustomerId    string             `json:"customer_id"`
	CustomerEmail string             `json:"customer_email"`
	CustomerName  string             `json:"customer_name"`
	Type          InvoiceType        `json:"type"`
	IssueDate     time.Time          `json:"issue_date"`
	PaymentTerms  PaymentTerms       `json:"payment_terms"`
	Notes         string             `json:"notes"`
	CashBack      SafeDecimal        `json:"cash_back"`
	IsRecurring   *bool              `json:"is_recurring"`
	Recurring     *RecurringSettings `json:"recurring_settings"`
	Items         []NewInvoiceItem   `json:"items" validate:"required,min=1,dive"`
}

type NewInvoiceItem struct {
	ProductId   string      `json:"product_id"`
	Description string      `json:"description"`
	Quantity    SafeDecimal `json:"quantity"`
	Unit        string      `json:"unit"`
	UnitPrice   SafeDecimal `json:"unit_price"`
	Discount    SafeDecimal `json:"discount"`
	TaxRate     SafeDecimal `json:"tax_rate"`
}

type NewPayment struct {
	InvoiceId   string        `json:"invoice_id" validate:"required"`
	Amount      *SafeDecimal  `json:"amount"`
	Method      PaymentMethod `json:"method"`
	PaymentDate *time.Time    `json:"payment_date"`
	Reference   string        `json:"reference"`
}
