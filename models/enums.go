package models

import (
	"fmt"

	"bitbucket.org/taralabs/invoicing_backend/utils"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusViewed    InvoiceStatus = "viewed"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var validInvoiceStatus = map[InvoiceStatus]bool{
	InvoiceStatusDraft:     true,
	InvoiceStatusSent:      true,
	InvoiceStatusViewed:    true,
	InvoiceStatusPartial:   true,
	InvoiceStatusPaid:      true,
	InvoiceStatusOverdue:   true,
	InvoiceStatusCancelled: true,
}

func (s InvoiceStatus) IsValid() bool { return validInvoiceStatus[s] }

// invoiceStatusTransitions is the explicit state machine:
// draft -> sent -> viewed -> partial|paid, with overdue/cancelled reachable
// from any active state. Transitions happen only on explicit operations,
// never on reads.
var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:      {InvoiceStatusViewed, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusViewed:    {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusPartial:   {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue:   {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
}

// CanTransitionTo reports whether the state machine allows moving from s to
// target.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range invoiceStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsCounted reports whether invoices in this status participate in financial
// reports. Draft and cancelled never count.
func (s InvoiceStatus) IsCounted() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusPartial, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusOverdue:
		return true
	case InvoiceStatusDraft, InvoiceStatusCancelled:
		return false
	default:
		return false
	}
}

type InvoiceType string

const (
	InvoiceTypeStandard InvoiceType = "standard"
	InvoiceTypeProforma InvoiceType = "proforma"
	InvoiceTypeCredit   InvoiceType = "credit"
	InvoiceTypeDebit    InvoiceType = "debit"
)

var validInvoiceType = map[InvoiceType]bool{
	InvoiceTypeStandard: true,
	InvoiceTypeProforma: true,
	InvoiceTypeCredit:   true,
	InvoiceTypeDebit:    true,
}

func (t InvoiceType) IsValid() bool { return validInvoiceType[t] }

type PaymentTerms string

const (
	PaymentTermsDueOnReceipt PaymentTerms = "DueOnReceipt"
	PaymentTermsNet7         PaymentTerms = "Net7"
	PaymentTermsNet15        PaymentTerms = "Net15"
	PaymentTermsNet30        PaymentTerms = "Net30"
	PaymentTermsNet60        PaymentTerms = "Net60"
)

var validPaymentTerms = map[PaymentTerms]bool{
	PaymentTermsDueOnReceipt: true,
	PaymentTermsNet7:         true,
	PaymentTermsNet15:        true,
	PaymentTermsNet30:        true,
	PaymentTermsNet60:        true,
}

func (t PaymentTerms) IsValid() bool { return validPaymentTerms[t] }

// NetDays maps payment terms to the day offset added to the issue date.
// Unknown terms are an error so that a new enum value cannot slip past
// due-date derivation unnoticed.
func (t PaymentTerms) NetDays() (int, error) {
	switch t {
	case PaymentTermsDueOnReceipt:
		return 0, nil
	case PaymentTermsNet7:
		return 7, nil
	case PaymentTermsNet15:
		return 15, nil
	case PaymentTermsNet30:
		return 30, nil
	case PaymentTermsNet60:
		return 60, nil
	default:
		return 0, fmt.Errorf("%w: unknown payment terms %q", utils.ErrValidation, string(t))
	}
}

type ProductType string

const (
	ProductTypeGoods   ProductType = "goods"
	ProductTypeService ProductType = "service"
	ProductTypeDigital ProductType = "digital"
)

var validProductType = map[ProductType]bool{
	ProductTypeGoods:   true,
	ProductTypeService: true,
	ProductTypeDigital: true,
}

func (t ProductType) IsValid() bool { return validProductType[t] }

// TracksStock reports whether stock accounting applies. Only physical goods
// carry stock; services and digital items are exempt.
func (t ProductType) TracksStock() bool {
	switch t {
	case ProductTypeGoods:
		return true
	case ProductTypeService, ProductTypeDigital:
		return false
	default:
		return false
	}
}

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

var validPaymentMethod = map[PaymentMethod]bool{
	PaymentMethodCash:         true,
	PaymentMethodBankTransfer: true,
	PaymentMethodCard:         true,
	PaymentMethodUPI:          true,
	PaymentMethodCheque:       true,
}

func (m PaymentMethod) IsValid() bool { return validPaymentMethod[m] }

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Outbox row lifecycle for loyalty events.
type LoyaltyEventStatus string

const (
	LoyaltyEventStatusPending    LoyaltyEventStatus = "Pending"
	LoyaltyEventStatusProcessing LoyaltyEventStatus = "Processing"
	LoyaltyEventStatusProcessed  LoyaltyEventStatus = "Processed"
	LoyaltyEventStatusFailed     LoyaltyEventStatus = "Failed"
	LoyaltyEventStatusDead       LoyaltyEventStatus = "Dead"
)

type LoyaltyEventType string

const (
	LoyaltyEventTypeInvoiceCreated LoyaltyEventType = "InvoiceCreated"
	LoyaltyEventTypeInvoiceUpdated LoyaltyEventType = "InvoiceUpdated"
)
