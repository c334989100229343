package service

import (
	"errors"

	"github.com/pedefacil/api/internal/enum"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidChargeMode = errors.New("invalid delivery charge mode")
	ErrZoneRequired      = errors.New("delivery zone is required")
	// ErrBelowZoneMinimum signals that the order must be downgraded to pickup
	// or blocked; the fee is never silently waived.
	ErrBelowZoneMinimum = errors.New("order total is below the zone minimum")
)

// Zone carries the fee terms of a delivery zone.
type Zone struct {
	Fee      decimal.Decimal
	MinOrder decimal.Decimal
}

// ResolveDeliveryFee computes the delivery cost for a proposed order.
// Non-delivery order types always resolve to zero regardless of mode. Zone
// mode requires a zone and enforces the zone's minimum order.
func ResolveDeliveryFee(orderType, chargeMode string, fixedFee decimal.Decimal, zone *Zone, orderTotal decimal.Decimal) (decimal.Decimal, error) {
	if orderType != enum.OrderTypeDelivery {
		return decimal.Zero, nil
	}
	switch chargeMode {
	case enum.ChargeModeFixed:
		return fixedFee, nil
	case enum.ChargeModeZone:
		if zone == nil {
			return decimal.Zero, ErrZoneRequired
		}
		if orderTotal.LessThan(zone.MinOrder) {
			return decimal.Zero, ErrBelowZoneMinimum
		}
		return zone.Fee, nil
	}
	return decimal.Zero, ErrInvalidChargeMode
}
