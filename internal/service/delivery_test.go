package service

import (
	"errors"
	"testing"

	"github.com/pedefacil/api/internal/enum"
	"github.com/shopspring/decimal"
)

func TestResolveDeliveryFee(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	tests := []struct {
		name       string
		orderType  string
		chargeMode string
		fixedFee   string
		zone       *Zone
		orderTotal string
		want       string
		wantErr    error
	}{
		{
			name:       "pickup is always free",
			orderType:  enum.OrderTypePickup,
			chargeMode: enum.ChargeModeFixed,
			fixedFee:   "8.00",
			orderTotal: "30.00",
			want:       "0",
		},
		{
			name:       "dine-in is always free",
			orderType:  enum.OrderTypeDineIn,
			chargeMode: enum.ChargeModeZone,
			fixedFee:   "8.00",
			orderTotal: "30.00",
			want:       "0",
		},
		{
			name:       "fixed mode charges the restaurant fee",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: enum.ChargeModeFixed,
			fixedFee:   "8.00",
			orderTotal: "30.00",
			want:       "8.00",
		},
		{
			name:       "zone mode requires a zone",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: enum.ChargeModeZone,
			fixedFee:   "8.00",
			orderTotal: "30.00",
			wantErr:    ErrZoneRequired,
		},
		{
			name:       "zone fee above minimum",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: enum.ChargeModeZone,
			fixedFee:   "8.00",
			zone:       &Zone{Fee: d("12.00"), MinOrder: d("40.00")},
			orderTotal: "45.00",
			want:       "12.00",
		},
		{
			name:       "zone minimum exactly met",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: enum.ChargeModeZone,
			fixedFee:   "8.00",
			zone:       &Zone{Fee: d("12.00"), MinOrder: d("40.00")},
			orderTotal: "40.00",
			want:       "12.00",
		},
		{
			name:       "zone minimum not met is rejected, never waived",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: enum.ChargeModeZone,
			fixedFee:   "8.00",
			zone:       &Zone{Fee: d("12.00"), MinOrder: d("40.00")},
			orderTotal: "35.00",
			wantErr:    ErrBelowZoneMinimum,
		},
		{
			name:       "unknown charge mode",
			orderType:  enum.OrderTypeDelivery,
			chargeMode: "distance",
			fixedFee:   "8.00",
			orderTotal: "30.00",
			wantErr:    ErrInvalidChargeMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDeliveryFee(tt.orderType, tt.chargeMode, d(tt.fixedFee), tt.zone, d(tt.orderTotal))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveDeliveryFee() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveDeliveryFee() unexpected error: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("ResolveDeliveryFee() = %s, want %s", got, tt.want)
			}
		})
	}
}
