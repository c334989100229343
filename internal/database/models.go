package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	ChargeMode  string
	DeliveryFee pgtype.Numeric
	CreatedAt   time.Time
}

type User struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

type Category struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	SortOrder    int32
	IsActive     bool
	CreatedAt    time.Time
}

type Product struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	CategoryID   pgtype.UUID
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	IsActive     bool
	IsVisible    bool
	IsSoldOut    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ExtraGroup struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	MaxSelect    int32
	IsRequired   bool
	CreatedAt    time.Time
}

type ExtraOption struct {
	ID        uuid.UUID
	GroupID   uuid.UUID
	Name      string
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
}

type Coupon struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	Code          string
	DiscountType  string
	DiscountValue pgtype.Numeric
	MinOrderValue pgtype.Numeric
	MaxUses       pgtype.Int4
	UsedCount     int32
	ExpiresAt     pgtype.Timestamptz
	IsActive      bool
	IsVisible     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type LoyaltyAccount struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	CustomerPhone  string
	CustomerName   pgtype.Text
	TotalPoints    int32
	LifetimePoints int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type LoyaltyReward struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	Name           string
	PointsRequired int32
	DiscountType   string
	DiscountValue  pgtype.Numeric
	MinOrderValue  pgtype.Numeric
	IsActive       bool
	CreatedAt      time.Time
}

type DeliveryZone struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Fee          pgtype.Numeric
	MinOrder     pgtype.Numeric
	IsVisible    bool
	SortOrder    int32
	CreatedAt    time.Time
}

type Order struct {
	ID              uuid.UUID
	RestaurantID    uuid.UUID
	OrderNumber     int32
	CustomerName    pgtype.Text
	CustomerPhone   pgtype.Text
	OrderType       string
	Status          string
	TableID         pgtype.UUID
	ComandaID       pgtype.UUID
	ZoneID          pgtype.UUID
	DeliveryAddress pgtype.Text
	CouponID        pgtype.UUID
	Subtotal        pgtype.Numeric
	Discount        pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	Tip             pgtype.Numeric
	Total           pgtype.Numeric
	PaymentMethod   string
	PaymentStatus   string
	Notes           pgtype.Text
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   pgtype.Numeric
	Quantity    int32
	Notes       pgtype.Text
	Status      string
	Subtotal    pgtype.Numeric
	CreatedAt   time.Time
}

type OrderItemExtra struct {
	ID            uuid.UUID
	OrderItemID   uuid.UUID
	ExtraOptionID uuid.UUID
	Name          string
	UnitPrice     pgtype.Numeric
	Quantity      int32
}

type Table struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       int32
	Label        pgtype.Text
	Attention    bool
	Reserved     bool
	CreatedAt    time.Time
}

type Comanda struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       int32
	Label        pgtype.Text
	CreatedAt    time.Time
}
