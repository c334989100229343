package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const loyaltyAccountColumns = `id, restaurant_id, customer_phone, customer_name,
	total_points, lifetime_points, created_at, updated_at`

func scanLoyaltyAccount(row pgx.Row) (LoyaltyAccount, error) {
	var a LoyaltyAccount
	err := row.Scan(
		&a.ID, &a.RestaurantID, &a.CustomerPhone, &a.CustomerName,
		&a.TotalPoints, &a.LifetimePoints, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

type GetLoyaltyAccountParams struct {
	RestaurantID  uuid.UUID
	CustomerPhone string
}

func (q *Queries) GetLoyaltyAccount(ctx context.Context, arg GetLoyaltyAccountParams) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+loyaltyAccountColumns+` FROM loyalty_accounts
		WHERE restaurant_id = $1 AND customer_phone = $2`,
		arg.RestaurantID, arg.CustomerPhone,
	)
	return scanLoyaltyAccount(row)
}

type CreditLoyaltyPointsParams struct {
	RestaurantID  uuid.UUID
	CustomerPhone string
	CustomerName  pgtype.Text
	Points        int32
}

// CreditLoyaltyPoints upserts the account and adds points to both the spendable
// and lifetime balances.
func (q *Queries) CreditLoyaltyPoints(ctx context.Context, arg CreditLoyaltyPointsParams) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO loyalty_accounts (restaurant_id, customer_phone, customer_name, total_points, lifetime_points)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (restaurant_id, customer_phone) DO UPDATE SET
			customer_name = COALESCE(EXCLUDED.customer_name, loyalty_accounts.customer_name),
			total_points = loyalty_accounts.total_points + EXCLUDED.total_points,
			lifetime_points = loyalty_accounts.lifetime_points + EXCLUDED.lifetime_points,
			updated_at = now()
		RETURNING `+loyaltyAccountColumns,
		arg.RestaurantID, arg.CustomerPhone, arg.CustomerName, arg.Points,
	)
	return scanLoyaltyAccount(row)
}

type DebitLoyaltyPointsParams struct {
	ID     uuid.UUID
	Points int32
}

// DebitLoyaltyPoints spends points for a reward redemption. The balance guard
// makes concurrent redemptions safe; zero rows means insufficient points.
func (q *Queries) DebitLoyaltyPoints(ctx context.Context, arg DebitLoyaltyPointsParams) (LoyaltyAccount, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE loyalty_accounts SET total_points = total_points - $2, updated_at = now()
		WHERE id = $1 AND total_points >= $2
		RETURNING `+loyaltyAccountColumns,
		arg.ID, arg.Points,
	)
	return scanLoyaltyAccount(row)
}

const loyaltyRewardColumns = `id, restaurant_id, name, points_required,
	discount_type, discount_value, min_order_value, is_active, created_at`

func scanLoyaltyReward(row pgx.Row) (LoyaltyReward, error) {
	var r LoyaltyReward
	err := row.Scan(
		&r.ID, &r.RestaurantID, &r.Name, &r.PointsRequired,
		&r.DiscountType, &r.DiscountValue, &r.MinOrderValue, &r.IsActive, &r.CreatedAt,
	)
	return r, err
}

func (q *Queries) GetLoyaltyReward(ctx context.Context, id uuid.UUID) (LoyaltyReward, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+loyaltyRewardColumns+` FROM loyalty_rewards WHERE id = $1`,
		id,
	)
	return scanLoyaltyReward(row)
}

func (q *Queries) ListLoyaltyRewardsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]LoyaltyReward, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+loyaltyRewardColumns+` FROM loyalty_rewards
		WHERE restaurant_id = $1 AND is_active ORDER BY points_required ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rewards []LoyaltyReward
	for rows.Next() {
		r, err := scanLoyaltyReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}
