// Package pricing holds the pure money primitives shared by the cart engine,
// discount resolver and checkout: exact decimal line totals, currency
// formatting, and pgtype.Numeric bridging.
package pricing

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Extra is a priced add-on selection with its own quantity. The extra's
// quantity is independent of the line quantity; the summed extras price is
// part of the per-unit price of the line.
type Extra struct {
	Price    decimal.Decimal
	Quantity int32
}

// ExtrasTotal sums price × quantity over the selections.
func ExtrasTotal(extras []Extra) decimal.Decimal {
	total := decimal.Zero
	for _, e := range extras {
		total = total.Add(e.Price.Mul(decimal.NewFromInt32(e.Quantity)))
	}
	return total
}

// LineTotal computes (unitPrice + Σ extraPrice×extraQty) × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int32, extras []Extra) decimal.Decimal {
	perUnit := unitPrice.Add(ExtrasTotal(extras))
	return perUnit.Mul(decimal.NewFromInt32(quantity))
}

// FormatBRL renders a decimal as Brazilian currency: "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	fixed := d.StringFixed(2)

	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	// Thousands separator every three digits from the right.
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	if neg {
		return "R$ -" + b.String() + "," + fracPart
	}
	return "R$ " + b.String() + "," + fracPart
}

// NumericToDecimal converts a pgtype.Numeric column value to a decimal,
// treating NULL or unreadable values as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal to a pgtype.Numeric at two decimal
// places, the precision of all money columns.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
