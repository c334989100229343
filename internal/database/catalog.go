package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, restaurant_id, category_id, name, description, price,
	is_active, is_visible, is_sold_out, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.RestaurantID, &p.CategoryID, &p.Name, &p.Description, &p.Price,
		&p.IsActive, &p.IsVisible, &p.IsSoldOut, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type GetProductForOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

// GetProductForOrder fetches the fields needed to snapshot a product into a
// cart line. Only active, non-sold-out products qualify.
func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products
		WHERE id = $1 AND restaurant_id = $2 AND is_active AND NOT is_sold_out`,
		arg.ID, arg.RestaurantID,
	)
	return scanProduct(row)
}

func (q *Queries) ListProductsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+productColumns+` FROM products
		WHERE restaurant_id = $1 AND is_active AND is_visible
		ORDER BY name ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type CreateProductParams struct {
	RestaurantID uuid.UUID
	CategoryID   pgtype.UUID
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	IsVisible    bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO products (restaurant_id, category_id, name, description, price, is_visible)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		arg.RestaurantID, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsVisible,
	)
	return scanProduct(row)
}

type SetProductSoldOutParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	IsSoldOut    bool
}

func (q *Queries) SetProductSoldOut(ctx context.Context, arg SetProductSoldOutParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE products SET is_sold_out = $3, updated_at = now()
		WHERE id = $1 AND restaurant_id = $2
		RETURNING `+productColumns,
		arg.ID, arg.RestaurantID, arg.IsSoldOut,
	)
	return scanProduct(row)
}

// --- Extras ---

type ExtraOptionForOrderRow struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	Name    string
	Price   pgtype.Numeric
}

func (q *Queries) GetExtraOptionForOrder(ctx context.Context, id uuid.UUID) (ExtraOptionForOrderRow, error) {
	var r ExtraOptionForOrderRow
	err := q.db.QueryRow(ctx,
		`SELECT id, group_id, name, price FROM extra_options WHERE id = $1 AND is_active`,
		id,
	).Scan(&r.ID, &r.GroupID, &r.Name, &r.Price)
	return r, err
}

// ListProductExtraGroups returns the full extra group records linked to a
// product, including selection rules.
func (q *Queries) ListProductExtraGroups(ctx context.Context, productID uuid.UUID) ([]ExtraGroup, error) {
	rows, err := q.db.Query(ctx,
		`SELECT eg.id, eg.restaurant_id, eg.name, eg.max_select, eg.is_required, eg.created_at
		FROM extra_groups eg
		JOIN product_extra_groups peg ON peg.extra_group_id = eg.id
		WHERE peg.product_id = $1`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []ExtraGroup
	for rows.Next() {
		var g ExtraGroup
		if err := rows.Scan(&g.ID, &g.RestaurantID, &g.Name, &g.MaxSelect, &g.IsRequired, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListProductExtraGroupIDs returns the extra groups a product allows.
func (q *Queries) ListProductExtraGroupIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx,
		`SELECT extra_group_id FROM product_extra_groups WHERE product_id = $1`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
