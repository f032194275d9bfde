package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/billing"
	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoyaltyDispatcher drains the loyalty-event outbox: invoice writes append
// LoyaltyEvent rows in their own transaction, and this worker calls the
// loyalty service after commit. A failing event retries with exponential
// backoff and eventually parks as DEAD; it can never affect the invoice
// that produced it.
type LoyaltyDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Loyalty      billing.LoyaltyService
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewLoyaltyDispatcher(db *gorm.DB, logger *logrus.Logger, loyalty billing.LoyaltyService) *LoyaltyDispatcher {
	return &LoyaltyDispatcher{
		DB:             db,
		Logger:         logger,
		Loyalty:        loyalty,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *LoyaltyDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and processes it. Exposed so tests and the
// worker's shutdown path can drain synchronously.
func (d *LoyaltyDispatcher) DispatchOnce(ctx context.Context) {
	if d.DB == nil || d.Loyalty == nil {
		return
	}
	// The dispatcher works across tenants; per-row tenant ids travel with
	// the events themselves.
	ctx = utils.SkipTenantScope(ctx)
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.LoyaltyEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED whose retry time has come
		// - PROCESSING with a stale lock (dispatcher died mid-batch)
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []models.LoyaltyEventStatus{models.LoyaltyEventStatusPending, models.LoyaltyEventStatusFailed}, now,
				models.LoyaltyEventStatusProcessing, staleBefore).
			Order("created_at ASC").
			Limit(d.BatchSize)
		// SKIP LOCKED keeps concurrent dispatchers off each other's batch;
		// sqlite has no row locks, so the clause is mysql-only.
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				claimed[i].Status = models.LoyaltyEventStatusDead
				if err := tx.Model(&models.LoyaltyEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":     models.LoyaltyEventStatusDead,
					"last_error": fmt.Sprintf("max attempts exceeded (%d)", d.MaxAttempts),
					"locked_at":  nil,
					"locked_by":  "",
				}).Error; err != nil {
					return err
				}
				continue
			}
			claimed[i].Status = models.LoyaltyEventStatusProcessing
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.LoyaltyEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":    models.LoyaltyEventStatusProcessing,
				"locked_at": &now,
				"locked_by": d.DispatcherID,
				"attempts":  gorm.Expr("attempts + 1"),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, event := range claimed {
		if event.Status == models.LoyaltyEventStatusDead {
			continue
		}
		tenantCtx := utils.SetTenantIdInContext(ctx, event.TenantId)
		if procErr := d.Loyalty.ProcessInvoiceForLoyalty(tenantCtx, event.TenantId, event.InvoiceId); procErr != nil {
			d.markFailed(ctx, event, procErr)
			continue
		}
		d.markProcessed(ctx, event.ID, now)
	}
}

func (d *LoyaltyDispatcher) markProcessed(ctx context.Context, eventId string, now time.Time) {
	_ = d.DB.WithContext(ctx).Model(&models.LoyaltyEvent{}).
		Where("id = ?", eventId).
		Updates(map[string]interface{}{
			"status":       models.LoyaltyEventStatusProcessed,
			"processed_at": &now,
			"locked_at":    nil,
			"locked_by":    "",
		}).Error
}

func (d *LoyaltyDispatcher) markFailed(ctx context.Context, event models.LoyaltyEvent, procErr error) {
	now := time.Now().UTC()

	if d.MaxAttempts > 0 && event.Attempts >= d.MaxAttempts {
		_ = d.DB.WithContext(ctx).Model(&models.LoyaltyEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"status":     models.LoyaltyEventStatusDead,
				"last_error": procErr.Error(),
				"locked_at":  nil,
				"locked_by":  "",
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":      "LoyaltyDispatcher",
				"tenant_id":  event.TenantId,
				"invoice_id": event.InvoiceId,
				"event_id":   event.ID,
				"attempt":    event.Attempts,
			}).Error("loyalty event moved to DEAD after max attempts: " + procErr.Error())
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < event.Attempts; i++ {
		backoff *= 2
		if backoff > 10*time.Minute {
			backoff = 10 * time.Minute
			break
		}
	}
	next := now.Add(backoff)
	_ = d.DB.WithContext(ctx).Model(&models.LoyaltyEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"status":          models.LoyaltyEventStatusFailed,
			"last_error":      procErr.Error(),
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       "",
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "LoyaltyDispatcher",
			"tenant_id":       event.TenantId,
			"invoice_id":      event.InvoiceId,
			"event_id":        event.ID,
			"attempt":         event.Attempts,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("loyalty event processing failed: " + procErr.Error())
	}
}
