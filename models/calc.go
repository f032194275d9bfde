package models

import (
	"fmt"

	"bitbucket.org/taralabs/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// LineCalculation holds the per-line figures of the five-step pipeline.
// Rounding happens at every intermediate step, not only at the end:
// rounding order is observable in totals by up to a cent, so the order
// must not be reorganized.
type LineCalculation struct {
	ItemTotal      decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	LineTotal      decimal.Decimal
}

// CalculateLineItem computes one line:
//
//	itemTotal      = quantity * unitPrice
//	discountAmount = round2(itemTotal * discount/100)
//	taxableAmount  = round2(itemTotal - discountAmount)
//	taxAmount      = round2(taxableAmount * taxRate/100)
//	lineTotal      = round2(taxableAmount + taxAmount)
//
// Inputs are coerced so garbage never reaches persisted totals.
func CalculateLineItem(quantity, unitPrice, discountPercent, taxRatePercent any) LineCalculation {
	qty := utils.CoerceDecimal(quantity, decimal.Zero)
	price := utils.CoerceDecimal(unitPrice, decimal.Zero)
	disc := utils.CoerceDecimal(discountPercent, decimal.Zero)
	rate := utils.CoerceDecimal(taxRatePercent, decimal.Zero)

	itemTotal := qty.Mul(price)
	discountAmount := utils.Round2(itemTotal.Mul(disc).Div(oneHundred))
	taxableAmount := utils.Round2(itemTotal.Sub(discountAmount))
	taxAmount := utils.Round2(taxableAmount.Mul(rate).Div(oneHundred))
	lineTotal := utils.Round2(taxableAmount.Add(taxAmount))

	return LineCalculation{
		ItemTotal:      itemTotal,
		DiscountAmount: discountAmount,
		TaxableAmount:  taxableAmount,
		TaxAmount:      taxAmount,
		LineTotal:      lineTotal,
	}
}

// InvoiceTotals holds the invoice-level sums, each re-rounded after
// summation, plus the per-rate tax buckets.
type InvoiceTotals struct {
	SubTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TaxTotal      decimal.Decimal
	TotalAmount   decimal.Decimal
	TaxDetails    []TaxDetail
}

// AggregateInvoiceTotals sums the line figures and accumulates per-tax-rate
// buckets by exact rate equality (no epsilon). Zero-rate lines form no
// bucket.
func AggregateInvoiceTotals(lines []LineCalculation, rates []decimal.Decimal) InvoiceTotals {
	subTotal := decimal.Zero
	discountTotal := decimal.Zero
	taxTotal := decimal.Zero

	type bucket struct {
		rate    decimal.Decimal
		tax     decimal.Decimal
		taxable decimal.Decimal
	}
	var buckets []*bucket

	for i, line := range lines {
		subTotal = subTotal.Add(line.ItemTotal)
		discountTotal = discountTotal.Add(line.DiscountAmount)
		taxTotal = taxTotal.Add(line.TaxAmount)

		rate := decimal.Zero
		if i < len(rates) {
			rate = rates[i]
		}
		if rate.IsZero() {
			continue
		}
		var found *bucket
		for _, b := range buckets {
			if b.rate.Equal(rate) {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{rate: rate}
			buckets = append(buckets, found)
		}
		found.tax = found.tax.Add(line.TaxAmount)
		found.taxable = found.taxable.Add(line.TaxableAmount)
	}

	subTotal = utils.Round2(subTotal)
	discountTotal = utils.Round2(discountTotal)
	taxTotal = utils.Round2(taxTotal)
	totalAmount := utils.Round2(subTotal.Sub(discountTotal).Add(taxTotal))

	details := make([]TaxDetail, 0, len(buckets))
	for _, b := range buckets {
		details = append(details, TaxDetail{
			TaxName:      fmt.Sprintf("Tax %s%%", b.rate.String()),
			TaxRate:      b.rate,
			TaxAmount:    utils.Round2(b.tax),
			TaxableValue: utils.Round2(b.taxable),
		})
	}

	return InvoiceTotals{
		SubTotal:      subTotal,
		DiscountTotal: discountTotal,
		TaxTotal:      taxTotal,
		TotalAmount:   totalAmount,
		TaxDetails:    details,
	}
}
