package models

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/utils"
)

func TestDueDateFor(t *testing.T) {
	issue := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		terms PaymentTerms
		want  time.Time
	}{
		{PaymentTermsDueOnReceipt, issue},
		{PaymentTermsNet7, issue.AddDate(0, 0, 7)},
		{PaymentTermsNet15, issue.AddDate(0, 0, 15)},
		{PaymentTermsNet30, issue.AddDate(0, 0, 30)},
		{PaymentTermsNet60, issue.AddDate(0, 0, 60)},
	}
	for _, tc := range cases {
		got, err := DueDateFor(issue, tc.terms)
		if err != nil {
			t.Fatalf("DueDateFor(%s): %v", tc.terms, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("DueDateFor(%s) = %s, want %s", tc.terms, got, tc.want)
		}
	}
}

func TestDueDateForUnknownTerms(t *testing.T) {
	_, err := DueDateFor(time.Now(), PaymentTerms("Net90"))
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error for unknown terms, got %v", err)
	}
}

func TestGenerateInvoiceNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	num := GenerateInvoiceNumber("0f9b1f8e-aaaa-bbbb-cccc-123456789abc", now)

	re := regexp.MustCompile(`^INV-9abc-\d{13}-\d{1,3}$`)
	if !re.MatchString(num) {
		t.Fatalf("invoice number %q does not match INV-{last4}-{epochMillis}-{0..999}", num)
	}
}

func TestGenerateInvoiceNumberShortTenant(t *testing.T) {
	num := GenerateInvoiceNumber("t1", time.Now())
	re := regexp.MustCompile(`^INV-t1-\d{13}-\d{1,3}$`)
	if !re.MatchString(num) {
		t.Fatalf("invoice number %q must use the whole id when shorter than 4", num)
	}
}

func TestInvoiceStatusTransitions(t *testing.T) {
	if !InvoiceStatusDraft.CanTransitionTo(InvoiceStatusSent) {
		t.Fatal("draft -> sent must be allowed")
	}
	if InvoiceStatusDraft.CanTransitionTo(InvoiceStatusPaid) {
		t.Fatal("draft -> paid must not be allowed")
	}
	if InvoiceStatusPaid.CanTransitionTo(InvoiceStatusSent) {
		t.Fatal("paid is terminal")
	}
	if InvoiceStatusCancelled.CanTransitionTo(InvoiceStatusSent) {
		t.Fatal("cancelled is terminal")
	}
	if !InvoiceStatusPartial.CanTransitionTo(InvoiceStatusPaid) {
		t.Fatal("partial -> paid must be allowed")
	}
}

func TestInvoiceStatusIsCounted(t *testing.T) {
	counted := []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusPartial, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusOverdue}
	for _, s := range counted {
		if !s.IsCounted() {
			t.Fatalf("%s must be counted in reports", s)
		}
	}
	for _, s := range []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusCancelled} {
		if s.IsCounted() {
			t.Fatalf("%s must be excluded from reports", s)
		}
	}
}
