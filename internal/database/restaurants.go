package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, slug, name, charge_mode, delivery_fee, created_at`

func scanRestaurant(row pgx.Row) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(&r.ID, &r.Slug, &r.Name, &r.ChargeMode, &r.DeliveryFee, &r.CreatedAt)
	return r, err
}

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id)
	return scanRestaurant(row)
}

func (q *Queries) GetRestaurantBySlug(ctx context.Context, slug string) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE slug = $1`, slug)
	return scanRestaurant(row)
}

type CreateRestaurantParams struct {
	Slug        string
	Name        string
	ChargeMode  string
	DeliveryFee pgtype.Numeric
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO restaurants (slug, name, charge_mode, delivery_fee)
		VALUES ($1, $2, $3, $4)
		RETURNING `+restaurantColumns,
		arg.Slug, arg.Name, arg.ChargeMode, arg.DeliveryFee,
	)
	return scanRestaurant(row)
}

const userColumns = `id, restaurant_id, email, password_hash, name, role, is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active`, email)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`, id)
	return scanUser(row)
}

type CreateUserParams struct {
	RestaurantID uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO users (restaurant_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		arg.RestaurantID, arg.Email, arg.PasswordHash, arg.Name, arg.Role,
	)
	return scanUser(row)
}
