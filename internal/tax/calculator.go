// Package tax computes invoice totals and the GST jurisdiction split. It is
// pure: no storage, no side effects, safe to call concurrently and retry.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrEmptyInvoice rejects a calculation with no line items.
var ErrEmptyInvoice = errors.New("invoice has no line items")

// InvalidLineItemError rejects a structurally invalid line.
type InvalidLineItemError struct {
	Index  int
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item %d: %s", e.Index, e.Reason)
}

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Line is one priced invoice line.
type Line struct {
	ProductID       uint
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	GSTRate         decimal.Decimal // percent, e.g. 18
}

// Totals is the computed money breakdown. All identities hold exactly at two
// decimal places: GrandTotal = TaxableAmount + TotalTax + RoundOff, and
// TotalTax = CGST + SGST + IGST.
type Totals struct {
	SubTotal      decimal.Decimal
	TaxableAmount decimal.Decimal
	CGST          decimal.Decimal
	SGST          decimal.Decimal
	IGST          decimal.Decimal
	TotalTax      decimal.Decimal
	RoundOff      decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Calculate prices a bill. For a GST bill the tax is split CGST+SGST within
// the company's state and IGST across states; for a non-GST bill every tax
// field is zero. The grand total is rounded to a whole currency unit with
// round-half-to-even, and RoundOff carries the adjustment.
func Calculate(lines []Line, gstBill, interState bool) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrEmptyInvoice
	}

	subTotal := decimal.Zero
	taxable := decimal.Zero
	rawTax := decimal.Zero

	for i, line := range lines {
		if err := validateLine(i, line); err != nil {
			return Totals{}, err
		}

		gross := line.Quantity.Mul(line.UnitPrice)
		net := gross.Mul(hundred.Sub(line.DiscountPercent)).Div(hundred)

		subTotal = subTotal.Add(gross)
		taxable = taxable.Add(net)
		if gstBill {
			rawTax = rawTax.Add(net.Mul(line.GSTRate).Div(hundred))
		}
	}

	t := Totals{
		SubTotal:      subTotal.Round(2),
		TaxableAmount: taxable.Round(2),
		CGST:          decimal.Zero,
		SGST:          decimal.Zero,
		IGST:          decimal.Zero,
	}

	if gstBill {
		if interState {
			t.IGST = rawTax.Round(2)
		} else {
			half := rawTax.Div(two).Round(2)
			t.CGST = half
			t.SGST = half
		}
	}
	t.TotalTax = t.CGST.Add(t.SGST).Add(t.IGST)

	beforeRounding := t.TaxableAmount.Add(t.TotalTax)
	t.GrandTotal = beforeRounding.RoundBank(0)
	t.RoundOff = t.GrandTotal.Sub(beforeRounding)

	return t, nil
}

func validateLine(i int, line Line) error {
	switch {
	case !line.Quantity.IsPositive():
		return &InvalidLineItemError{Index: i, Reason: "quantity must be positive"}
	case line.UnitPrice.IsNegative():
		return &InvalidLineItemError{Index: i, Reason: "unit price must not be negative"}
	case line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(hundred):
		return &InvalidLineItemError{Index: i, Reason: "discount must be between 0 and 100"}
	case line.GSTRate.IsNegative():
		return &InvalidLineItemError{Index: i, Reason: "gst rate must not be negative"}
	}
	return nil
}

// InterState reports whether a sale to the given customer GSTIN is taxed
// across state lines: the GSTIN's two-digit state code differs from the
// company's. An empty or malformed GSTIN is treated as in-state.
func InterState(customerGSTIN, companyStateCode string) bool {
	if len(customerGSTIN) < 2 || companyStateCode == "" {
		return false
	}
	return customerGSTIN[:2] != companyStateCode
}
