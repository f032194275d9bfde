package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/taralabs/invoicing_backend/models"
	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// GSTR1 classification: an invoice against a customer carrying a GSTIN is
// B2B; everything else is B2C.
type Gstr1Invoice struct {
	InvoiceId     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	IssueDate     time.Time       `json:"issue_date"`
	CustomerName  string          `json:"customer_name"`
	CustomerGstin string          `json:"customer_gstin"`
	IsB2B         bool            `json:"is_b2b"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	InvoiceValue  decimal.Decimal `json:"invoice_value"`
	TaxBreakdown  []Gstr1TaxLine  `json:"tax_breakdown"`
}

type Gstr1TaxLine struct {
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

type Gstr1Summary struct {
	B2BInvoiceCount   int64           `json:"b2b_invoice_count"`
	B2CInvoiceCount   int64           `json:"b2c_invoice_count"`
	TotalTaxableValue decimal.Decimal `json:"total_taxable_value"`
	TotalTaxAmount    decimal.Decimal `json:"total_tax_amount"`
	TotalInvoiceValue decimal.Decimal `json:"total_invoice_value"`
}

type Gstr1Report struct {
	B2B     []Gstr1Invoice `json:"b2b"`
	B2C     []Gstr1Invoice `json:"b2c"`
	Summary Gstr1Summary   `json:"summary"`
}

// Gstr1 builds a GSTR1-style filing extract over the counted invoices in
// the period: per-invoice taxable/tax breakdowns from the stored tax-detail
// buckets, split into B2B and B2C sections, plus a summary block.
func (s *ReportService) Gstr1(ctx context.Context, tenantId string, fromDate time.Time, toDate time.Time) (Gstr1Report, error) {
	if tenantId == "" {
		return Gstr1Report{}, fmt.Errorf("%w: tenant id is required", utils.ErrValidation)
	}
	if toDate.Before(fromDate) {
		return Gstr1Report{}, fmt.Errorf("%w: to-date before from-date", utils.ErrValidation)
	}

	key := fmt.Sprintf("report:gstr1:%s:%d:%d", tenantId, fromDate.Unix(), toDate.Unix())
	return cached(ctx, s, key, func() (Gstr1Report, error) {
		var invoices []models.Invoice
		err := s.db.WithContext(ctx).
			Preload("TaxDetails").
			Preload("Customer").
			Where("tenant_id = ? AND issue_date BETWEEN ? AND ? AND status IN ?",
				tenantId, fromDate, toDate, countedStatuses).
			Order("issue_date ASC, id ASC").
			Find(&invoices).Error
		if err != nil {
			return Gstr1Report{}, err
		}

		report := Gstr1Report{}
		for _, inv := range invoices {
			entry := Gstr1Invoice{
				InvoiceId:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				IssueDate:     inv.IssueDate,
				InvoiceValue:  inv.TotalAmount,
				TaxAmount:     inv.TaxTotal,
			}
			if inv.Customer != nil {
				entry.CustomerName = inv.Customer.Name
				entry.CustomerGstin = inv.Customer.Gstin
			}
			entry.IsB2B = entry.CustomerGstin != ""

			taxable := decimal.Zero
			for _, td := range inv.TaxDetails {
				entry.TaxBreakdown = append(entry.TaxBreakdown, Gstr1TaxLine{
					TaxRate:      td.TaxRate,
					TaxableValue: td.TaxableValue,
					TaxAmount:    td.TaxAmount,
				})
				taxable = taxable.Add(td.TaxableValue)
			}
			if len(inv.TaxDetails) == 0 {
				// Untaxed invoices still report their discounted base.
				taxable = inv.SubTotal.Sub(inv.DiscountTotal)
			}
			entry.TaxableValue = utils.Round2(taxable)

			if entry.IsB2B {
				report.B2B = append(report.B2B, entry)
				report.Summary.B2BInvoiceCount++
			} else {
				report.B2C = append(report.B2C, entry)
				report.Summary.B2CInvoiceCount++
			}
			report.Summary.TotalTaxableValue = report.Summary.TotalTaxableValue.Add(entry.TaxableValue)
			report.Summary.TotalTaxAmount = report.Summary.TotalTaxAmount.Add(entry.TaxAmount)
			report.Summary.TotalInvoiceValue = report.Summary.TotalInvoiceValue.Add(entry.InvoiceValue)
		}
		report.Summary.TotalTaxableValue = utils.Round2(report.Summary.TotalTaxableValue)
		report.Summary.TotalTaxAmount = utils.Round2(report.Summary.TotalTaxAmount)
		report.Summary.TotalInvoiceValue = utils.Round2(report.Summary.TotalInvoiceValue)
		return report, nil
	})
}
