package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, restaurant_id, code, discount_type, discount_value,
	min_order_value, max_uses, used_count, expires_at, is_active, is_visible,
	created_at, updated_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(
		&c.ID, &c.RestaurantID, &c.Code, &c.DiscountType, &c.DiscountValue,
		&c.MinOrderValue, &c.MaxUses, &c.UsedCount, &c.ExpiresAt, &c.IsActive,
		&c.IsVisible, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type GetCouponByCodeParams struct {
	RestaurantID uuid.UUID
	Code         string
}

// GetCouponByCode looks a coupon up case-insensitively within a restaurant.
func (q *Queries) GetCouponByCode(ctx context.Context, arg GetCouponByCodeParams) (Coupon, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons
		WHERE restaurant_id = $1 AND lower(code) = lower($2)`,
		arg.RestaurantID, arg.Code,
	)
	return scanCoupon(row)
}

type CreateCouponParams struct {
	RestaurantID  uuid.UUID
	Code          string
	DiscountType  string
	DiscountValue pgtype.Numeric
	MinOrderValue pgtype.Numeric
	MaxUses       pgtype.Int4
	ExpiresAt     pgtype.Timestamptz
	IsActive      bool
	IsVisible     bool
}

func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO coupons (restaurant_id, code, discount_type, discount_value,
			min_order_value, max_uses, expires_at, is_active, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+couponColumns,
		arg.RestaurantID, arg.Code, arg.DiscountType, arg.DiscountValue,
		arg.MinOrderValue, arg.MaxUses, arg.ExpiresAt, arg.IsActive, arg.IsVisible,
	)
	return scanCoupon(row)
}

func (q *Queries) ListCouponsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Coupon, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons
		WHERE restaurant_id = $1 ORDER BY created_at DESC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var coupons []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// IncrementCouponUse records a confirmed use. The guard keeps used_count from
// passing max_uses under concurrent checkouts; zero rows means exhausted.
func (q *Queries) IncrementCouponUse(ctx context.Context, id uuid.UUID) (Coupon, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
		RETURNING `+couponColumns,
		id,
	)
	return scanCoupon(row)
}
