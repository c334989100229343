package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, restaurant_id, number, label, attention, reserved, created_at`

func scanTable(row pgx.Row) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Label, &t.Attention, &t.Reserved, &t.CreatedAt)
	return t, err
}

// GetNextTableNumber returns the next free table number for the restaurant.
// Run inside the batch-create transaction so numbering stays contiguous.
func (q *Queries) GetNextTableNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM tables WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&n)
	return n, err
}

type CreateTableParams struct {
	RestaurantID uuid.UUID
	Number       int32
	Label        pgtype.Text
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO tables (restaurant_id, number, label)
		VALUES ($1, $2, $3)
		RETURNING `+tableColumns,
		arg.RestaurantID, arg.Number, arg.Label,
	)
	return scanTable(row)
}

type GetTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM tables WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanTable(row)
}

type SetTableAttentionParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Attention    bool
}

func (q *Queries) SetTableAttention(ctx context.Context, arg SetTableAttentionParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE tables SET attention = $3 WHERE id = $1 AND restaurant_id = $2
		RETURNING `+tableColumns,
		arg.ID, arg.RestaurantID, arg.Attention,
	)
	return scanTable(row)
}

type SetTableReservedParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Reserved     bool
}

func (q *Queries) SetTableReserved(ctx context.Context, arg SetTableReservedParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE tables SET reserved = $3 WHERE id = $1 AND restaurant_id = $2
		RETURNING `+tableColumns,
		arg.ID, arg.RestaurantID, arg.Reserved,
	)
	return scanTable(row)
}

// TableOccupancyRow joins each table with its open-order count and the
// creation time of its oldest open order. occupied_since is derived here
// rather than stored on the table.
type TableOccupancyRow struct {
	Table         Table
	OpenOrders    int64
	OccupiedSince pgtype.Timestamptz
}

func (q *Queries) ListTableOccupancy(ctx context.Context, restaurantID uuid.UUID) ([]TableOccupancyRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT t.id, t.restaurant_id, t.number, t.label, t.attention, t.reserved, t.created_at,
			COUNT(o.id) AS open_orders,
			MIN(o.created_at) AS occupied_since
		FROM tables t
		LEFT JOIN orders o ON o.table_id = t.id AND o.status NOT IN ('delivered', 'cancelled')
		WHERE t.restaurant_id = $1
		GROUP BY t.id
		ORDER BY t.number ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TableOccupancyRow
	for rows.Next() {
		var r TableOccupancyRow
		if err := rows.Scan(
			&r.Table.ID, &r.Table.RestaurantID, &r.Table.Number, &r.Table.Label,
			&r.Table.Attention, &r.Table.Reserved, &r.Table.CreatedAt,
			&r.OpenOrders, &r.OccupiedSince,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Comandas ---

const comandaColumns = `id, restaurant_id, number, label, created_at`

func scanComanda(row pgx.Row) (Comanda, error) {
	var c Comanda
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Number, &c.Label, &c.CreatedAt)
	return c, err
}

func (q *Queries) GetNextComandaNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM comandas WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&n)
	return n, err
}

type CreateComandaParams struct {
	RestaurantID uuid.UUID
	Number       int32
	Label        pgtype.Text
}

func (q *Queries) CreateComanda(ctx context.Context, arg CreateComandaParams) (Comanda, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO comandas (restaurant_id, number, label)
		VALUES ($1, $2, $3)
		RETURNING `+comandaColumns,
		arg.RestaurantID, arg.Number, arg.Label,
	)
	return scanComanda(row)
}

type GetComandaParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetComanda(ctx context.Context, arg GetComandaParams) (Comanda, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+comandaColumns+` FROM comandas WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanComanda(row)
}

// ComandaOccupancyRow mirrors TableOccupancyRow for comandas: open means at
// least one non-terminal order is attached.
type ComandaOccupancyRow struct {
	Comanda       Comanda
	OpenOrders    int64
	OccupiedSince pgtype.Timestamptz
}

func (q *Queries) ListComandaOccupancy(ctx context.Context, restaurantID uuid.UUID) ([]ComandaOccupancyRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT c.id, c.restaurant_id, c.number, c.label, c.created_at,
			COUNT(o.id) AS open_orders,
			MIN(o.created_at) AS occupied_since
		FROM comandas c
		LEFT JOIN orders o ON o.comanda_id = c.id AND o.status NOT IN ('delivered', 'cancelled')
		WHERE c.restaurant_id = $1
		GROUP BY c.id
		ORDER BY c.number ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ComandaOccupancyRow
	for rows.Next() {
		var r ComandaOccupancyRow
		if err := rows.Scan(
			&r.Comanda.ID, &r.Comanda.RestaurantID, &r.Comanda.Number, &r.Comanda.Label,
			&r.Comanda.CreatedAt, &r.OpenOrders, &r.OccupiedSince,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
