package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const zoneColumns = `id, restaurant_id, name, fee, min_order, is_visible, sort_order, created_at`

func scanZone(row pgx.Row) (DeliveryZone, error) {
	var z DeliveryZone
	err := row.Scan(
		&z.ID, &z.RestaurantID, &z.Name, &z.Fee, &z.MinOrder,
		&z.IsVisible, &z.SortOrder, &z.CreatedAt,
	)
	return z, err
}

type GetZoneParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetZone(ctx context.Context, arg GetZoneParams) (DeliveryZone, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+zoneColumns+` FROM delivery_zones WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanZone(row)
}

func (q *Queries) ListZonesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]DeliveryZone, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+zoneColumns+` FROM delivery_zones
		WHERE restaurant_id = $1 AND is_visible ORDER BY sort_order ASC, name ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var zones []DeliveryZone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

type CreateZoneParams struct {
	RestaurantID uuid.UUID
	Name         string
	Fee          pgtype.Numeric
	MinOrder     pgtype.Numeric
	IsVisible    bool
	SortOrder    int32
}

func (q *Queries) CreateZone(ctx context.Context, arg CreateZoneParams) (DeliveryZone, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO delivery_zones (restaurant_id, name, fee, min_order, is_visible, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+zoneColumns,
		arg.RestaurantID, arg.Name, arg.Fee, arg.MinOrder, arg.IsVisible, arg.SortOrder,
	)
	return scanZone(row)
}
