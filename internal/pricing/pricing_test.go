package pricing_test

import (
	"testing"

	"github.com/pedefacil/api/internal/pricing"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		quantity int32
		extras   []pricing.Extra
		want     string
	}{
		{
			name:     "no extras",
			price:    "12.50",
			quantity: 3,
			want:     "37.50",
		},
		{
			// Line of 2 at 20.00 with one extra at 5.00 qty 1: the extra is
			// part of the per-unit price, so (20+5)*2 = 50.
			name:     "extra applies per unit",
			price:    "20.00",
			quantity: 2,
			extras:   []pricing.Extra{{Price: dec("5.00"), Quantity: 1}},
			want:     "50.00",
		},
		{
			name:     "extra with its own quantity",
			price:    "10.00",
			quantity: 1,
			extras:   []pricing.Extra{{Price: dec("1.50"), Quantity: 3}},
			want:     "14.50",
		},
		{
			name:     "multiple extras",
			price:    "8.00",
			quantity: 2,
			extras: []pricing.Extra{
				{Price: dec("2.00"), Quantity: 1},
				{Price: dec("0.75"), Quantity: 2},
			},
			want: "23.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pricing.LineTotal(dec(tt.price), tt.quantity, tt.extras)
			if got.StringFixed(2) != tt.want {
				t.Errorf("LineTotal = %s, want %s", got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestLineTotalNoDriftAfterRepeatedOps(t *testing.T) {
	// 0.1-style values that drift under float arithmetic must stay exact.
	price := dec("0.10")
	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(pricing.LineTotal(price, 1, nil))
	}
	if total.StringFixed(2) != "100.00" {
		t.Errorf("accumulated total = %s, want 100.00", total.StringFixed(2))
	}
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "R$ 0,00"},
		{"9.5", "R$ 9,50"},
		{"1234.56", "R$ 1.234,56"},
		{"1234567.89", "R$ 1.234.567,89"},
		{"-12", "R$ -12,00"},
	}
	for _, tt := range tests {
		if got := pricing.FormatBRL(dec(tt.in)); got != tt.want {
			t.Errorf("FormatBRL(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNumericRoundTrip(t *testing.T) {
	d := dec("42.75")
	n := pricing.DecimalToNumeric(d)
	got := pricing.NumericToDecimal(n)
	if !got.Equal(d) {
		t.Errorf("round trip = %s, want %s", got, d)
	}
}
