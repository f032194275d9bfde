package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateLineItemWorkedExample(t *testing.T) {
	// qty 3 x 100, 10% discount, 18% tax.
	calc := CalculateLineItem(dec("3"), dec("100"), dec("10"), dec("18"))

	if !calc.ItemTotal.Equal(dec("300")) {
		t.Fatalf("itemTotal = %s, want 300", calc.ItemTotal)
	}
	if !calc.DiscountAmount.Equal(dec("30.00")) {
		t.Fatalf("discountAmount = %s, want 30.00", calc.DiscountAmount)
	}
	if !calc.TaxableAmount.Equal(dec("270.00")) {
		t.Fatalf("taxableAmount = %s, want 270.00", calc.TaxableAmount)
	}
	if !calc.TaxAmount.Equal(dec("48.60")) {
		t.Fatalf("taxAmount = %s, want 48.60", calc.TaxAmount)
	}
	if !calc.LineTotal.Equal(dec("318.60")) {
		t.Fatalf("lineTotal = %s, want 318.60", calc.LineTotal)
	}
}

func TestCalculateLineItemStepwiseRounding(t *testing.T) {
	// 7 x 9.99 with 3.33% discount: rounding must happen at each step,
	// not once at the end.
	calc := CalculateLineItem(dec("7"), dec("9.99"), dec("3.33"), dec("18"))

	// itemTotal = 69.93; discount = round2(69.93*0.0333) = round2(2.328669) = 2.33
	if !calc.DiscountAmount.Equal(dec("2.33")) {
		t.Fatalf("discountAmount = %s, want 2.33", calc.DiscountAmount)
	}
	// taxable = 67.60; tax = round2(12.168) = 12.17; lineTotal = 79.77
	if !calc.TaxableAmount.Equal(dec("67.60")) {
		t.Fatalf("taxableAmount = %s, want 67.60", calc.TaxableAmount)
	}
	if !calc.TaxAmount.Equal(dec("12.17")) {
		t.Fatalf("taxAmount = %s, want 12.17", calc.TaxAmount)
	}
	if !calc.LineTotal.Equal(dec("79.77")) {
		t.Fatalf("lineTotal = %s, want 79.77", calc.LineTotal)
	}
}

func TestCalculateLineItemDeterministic(t *testing.T) {
	a := CalculateLineItem(dec("3"), dec("99.99"), dec("12.5"), dec("18"))
	b := CalculateLineItem(dec("3"), dec("99.99"), dec("12.5"), dec("18"))
	if !a.DiscountAmount.Equal(b.DiscountAmount) || !a.TaxAmount.Equal(b.TaxAmount) || !a.LineTotal.Equal(b.LineTotal) {
		t.Fatalf("recomputation differs: %+v vs %+v", a, b)
	}
}

func TestCalculateLineItemCoercesGarbage(t *testing.T) {
	calc := CalculateLineItem(nil, "not-a-number", "", dec("18"))
	if !calc.ItemTotal.IsZero() || !calc.LineTotal.IsZero() {
		t.Fatalf("garbage inputs must coerce to zero, got %+v", calc)
	}
}

func TestAggregateInvoiceTotals(t *testing.T) {
	lines := []LineCalculation{
		CalculateLineItem(dec("3"), dec("100"), dec("10"), dec("18")),
		CalculateLineItem(dec("2"), dec("50"), dec("0"), dec("18")),
		CalculateLineItem(dec("1"), dec("200"), dec("5"), dec("5")),
	}
	rates := []decimal.Decimal{dec("18"), dec("18"), dec("5")}

	totals := AggregateInvoiceTotals(lines, rates)

	// subTotal = 300 + 100 + 200 = 600
	if !totals.SubTotal.Equal(dec("600.00")) {
		t.Fatalf("subTotal = %s, want 600.00", totals.SubTotal)
	}
	// discounts = 30 + 0 + 10 = 40
	if !totals.DiscountTotal.Equal(dec("40.00")) {
		t.Fatalf("discountTotal = %s, want 40.00", totals.DiscountTotal)
	}
	// tax = 48.60 + 18.00 + 9.50 = 76.10
	if !totals.TaxTotal.Equal(dec("76.10")) {
		t.Fatalf("taxTotal = %s, want 76.10", totals.TaxTotal)
	}
	if !totals.TotalAmount.Equal(dec("636.10")) {
		t.Fatalf("totalAmount = %s, want 636.10", totals.TotalAmount)
	}

	// totalAmount == round2(subTotal - discountTotal + taxTotal)
	want := totals.SubTotal.Sub(totals.DiscountTotal).Add(totals.TaxTotal).Round(2)
	if !totals.TotalAmount.Equal(want) {
		t.Fatalf("invoice total invariant broken: %s != %s", totals.TotalAmount, want)
	}

	if len(totals.TaxDetails) != 2 {
		t.Fatalf("expected 2 tax buckets, got %d", len(totals.TaxDetails))
	}
	for _, td := range totals.TaxDetails {
		switch {
		case td.TaxRate.Equal(dec("18")):
			if td.TaxName != "Tax 18%" {
				t.Fatalf("taxName = %q, want Tax 18%%", td.TaxName)
			}
			if !td.TaxAmount.Equal(dec("66.60")) {
				t.Fatalf("18%% bucket tax = %s, want 66.60", td.TaxAmount)
			}
			if !td.TaxableValue.Equal(dec("370.00")) {
				t.Fatalf("18%% bucket taxable = %s, want 370.00", td.TaxableValue)
			}
		case td.TaxRate.Equal(dec("5")):
			if !td.TaxAmount.Equal(dec("9.50")) {
				t.Fatalf("5%% bucket tax = %s, want 9.50", td.TaxAmount)
			}
		default:
			t.Fatalf("unexpected bucket rate %s", td.TaxRate)
		}
	}
}

func TestAggregateInvoiceTotalsZeroRateFormsNoBucket(t *testing.T) {
	lines := []LineCalculation{
		CalculateLineItem(dec("1"), dec("100"), dec("0"), dec("0")),
	}
	totals := AggregateInvoiceTotals(lines, []decimal.Decimal{decimal.Zero})
	if len(totals.TaxDetails) != 0 {
		t.Fatalf("zero-rate lines must not form a tax bucket, got %d", len(totals.TaxDetails))
	}
	if !totals.TotalAmount.Equal(dec("100.00")) {
		t.Fatalf("totalAmount = %s, want 100.00", totals.TotalAmount)
	}
}
