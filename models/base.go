package models

import (
	"fmt"
	"math/rand"
	"time"
)

// DueDateFor derives the invoice due date from the issue date and payment
// terms. The date arithmetic is whole days; time-of-day carries over from
// the issue date.
func DueDateFor(issueDate time.Time, terms PaymentTerms) (time.Time, error) {
	days, err := terms.NetDays()
	if err != nil {
		return time.Time{}, err
	}
	return issueDate.AddDate(0, 0, days), nil
}

// GenerateInvoiceNumber builds INV-{last4 of tenant}-{epochMillis}-{0..999}.
// Not globally unique on its own; the (tenant_id, invoice_number) unique
// index plus a bounded retry in the create path closes the collision gap.
func GenerateInvoiceNumber(tenantId string, now time.Time) string {
	suffix := tenantId
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return fmt.Sprintf("INV-%s-%d-%d", suffix, now.UnixMilli(), rand.Intn(1000))
}
