package models

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/utils"
)

// Keyset cursor format: "<RFC3339Nano UTC createdAt>_<id>". The split is on
// the FIRST underscore only; UUIDs never contain underscores so the id part
// survives intact.

func EncodeCompositeCursor(createdAt time.Time, id string) string {
	return fmt.Sprintf("%s_%s", createdAt.UTC().Format(time.RFC3339Nano), id)
}

func ParseCompositeCursor(cursor string) (time.Time, string, error) {
	parts := strings.SplitN(cursor, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor %q", utils.ErrValidation, cursor)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed cursor timestamp %q", utils.ErrValidation, parts[0])
	}
	return createdAt, parts[1], nil
}

type PageInfo struct {
	EndCursor   string `json:"end_cursor"`
	HasNextPage bool   `json:"has_next_page"`
}

// InvoiceConnection is the keyset-paginated result shape.
type InvoiceConnection struct {
	Invoices []Invoice `json:"invoices"`
	PageInfo PageInfo  `json:"page_info"`
}

// InvoicePage is the offset-paginated result shape; TotalCount requires the
// extra count query that keyset mode avoids.
type InvoicePage struct {
	Invoices   []Invoice `json:"invoices"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
}
