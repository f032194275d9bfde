package cache

import (
	"fmt"
	"time"
)

// TTLs: list and dashboard results churn with every write, so they get a
// short TTL; single invoices are invalidated explicitly on write and can
// live longer.
const (
	ListTTL      = 60 * time.Second
	ItemTTL      = 300 * time.Second
	DashboardTTL = 60 * time.Second
)

func InvoiceKey(tenantId, invoiceId string) string {
	return fmt.Sprintf("invoice:%s:%s", tenantId, invoiceId)
}

// InvoiceListKey builds a list-cache key from the serialized filter/page
// fingerprint. Must stay under the InvoiceListPattern prefix so writes can
// invalidate every cached page at once.
func InvoiceListKey(tenantId, fingerprint string) string {
	return fmt.Sprintf("invoices:%s:list:%s", tenantId, fingerprint)
}

func InvoiceListPattern(tenantId string) string {
	return fmt.Sprintf("invoices:%s:list:*", tenantId)
}

func DashboardKey(tenantId string) string {
	return fmt.Sprintf("dashboard:%s", tenantId)
}
