package enum

// Order lifecycle statuses (wire-level strings, CHECK constrained in DB).
const (
	OrderStatusPending    = "pending"
	OrderStatusAccepted   = "accepted"
	OrderStatusPreparing  = "preparing"
	OrderStatusReady      = "ready"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Per-line markers inside an otherwise active order.
const (
	OrderItemStatusActive    = "active"
	OrderItemStatusDelivered = "delivered"
	OrderItemStatusCancelled = "cancelled"
)

// Table statuses. "occupied" is derived from open orders, never written
// directly; "requesting" and "reserved" come from staff-set flags.
const (
	TableStatusFree       = "free"
	TableStatusOccupied   = "occupied"
	TableStatusRequesting = "requesting"
	TableStatusReserved   = "reserved"
)

const (
	ComandaStatusOpen   = "open"
	ComandaStatusClosed = "closed"
)

const (
	OrderTypeDelivery = "delivery"
	OrderTypePickup   = "pickup"
	OrderTypeDineIn   = "dine_in"
)

const (
	DiscountTypePercent = "percent"
	DiscountTypeFixed   = "fixed"
)

// Delivery charge modes configured per restaurant.
const (
	ChargeModeFixed = "fixed"
	ChargeModeZone  = "zone"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodPix    = "pix"
	PaymentMethodOnline = "online"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const (
	UserRoleOwner    = "OWNER"
	UserRoleWaiter   = "WAITER"
	UserRoleKitchen  = "KITCHEN"
	UserRoleDelivery = "DELIVERY"
)
