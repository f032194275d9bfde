package models

import (
	"context"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoyaltyEvent is the transactional-outbox row for loyalty accrual: the
// invoice write appends it inside the same DB transaction, and the workflow
// dispatcher processes it after commit. A dispatch failure retries with
// backoff and can never roll the invoice back.
type LoyaltyEvent struct {
	ID            string             `gorm:"primary_key;size:36" json:"id"`
	TenantId      string             `gorm:"index;size:36;not null" json:"tenant_id"`
	InvoiceId     string             `gorm:"index;size:36;not null" json:"invoice_id"`
	EventType     LoyaltyEventType   `gorm:"size:30;not null" json:"event_type"`
	Status        LoyaltyEventStatus `gorm:"size:20;not null;default:Pending;index" json:"status"`
	Attempts      int                `gorm:"default:0" json:"attempts"`
	NextAttemptAt time.Time          `gorm:"index" json:"next_attempt_at"`
	LastError     string             `gorm:"type:text" json:"last_error"`
	CorrelationId string             `gorm:"size:64" json:"correlation_id"`
	LockedBy      string             `gorm:"size:64" json:"locked_by"`
	LockedAt      *time.Time         `json:"locked_at"`
	ProcessedAt   *time.Time         `json:"processed_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppendLoyaltyEvent writes the outbox record inside the caller's
// transaction. It does NOT call the loyalty service; dispatch happens
// asynchronously after commit.
func AppendLoyaltyEvent(ctx context.Context, tx *gorm.DB, tenantId string, invoiceId string, eventType LoyaltyEventType) error {
	event := LoyaltyEvent{
		ID:            uuid.NewString(),
		TenantId:      tenantId,
		InvoiceId:     invoiceId,
		EventType:     eventType,
		Status:        LoyaltyEventStatusPending,
		NextAttemptAt: time.Now(),
		CorrelationId: utils.GetCorrelationIdInContext(ctx),
	}
	return tx.Create(&event).Error
}
