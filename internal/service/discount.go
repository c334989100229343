package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrRewardNotFound     = errors.New("reward not found")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrRewardMinOrder     = errors.New("order total is below the reward minimum")
	// ErrDiscountConflict is returned when a checkout carries both a coupon
	// and a reward redemption. Combining them is intentionally disallowed.
	ErrDiscountConflict = errors.New("coupon and loyalty reward cannot be combined")
)

// CouponResult is the structured outcome of coupon validation. Rule failures
// populate ErrorMessage instead of returning an error; only infrastructure
// failures surface as errors.
type CouponResult struct {
	Valid         bool
	CouponID      uuid.UUID
	DiscountType  string
	DiscountValue decimal.Decimal
	ErrorMessage  string
}

// EvaluateCoupon applies the validation rules to an already-fetched coupon.
// It is a pure function of (coupon, orderTotal, now); the first failing rule
// wins: active → not expired → minimum order → uses remaining.
func EvaluateCoupon(c database.Coupon, orderTotal decimal.Decimal, now time.Time) CouponResult {
	if !c.IsActive {
		return CouponResult{ErrorMessage: "coupon is not active"}
	}
	if c.ExpiresAt.Valid && now.After(c.ExpiresAt.Time) {
		return CouponResult{ErrorMessage: "coupon has expired"}
	}
	minOrder := pricing.NumericToDecimal(c.MinOrderValue)
	if orderTotal.LessThan(minOrder) {
		return CouponResult{ErrorMessage: fmt.Sprintf("order minimum of %s not met", pricing.FormatBRL(minOrder))}
	}
	if c.MaxUses.Valid && c.UsedCount >= c.MaxUses.Int32 {
		return CouponResult{ErrorMessage: "coupon usage limit reached"}
	}
	return CouponResult{
		Valid:         true,
		CouponID:      c.ID,
		DiscountType:  c.DiscountType,
		DiscountValue: pricing.NumericToDecimal(c.DiscountValue),
	}
}

// DiscountAmount converts discount terms to an amount, clamped to [0,
// subtotal] so the order total can never go negative.
func DiscountAmount(discountType string, value, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch discountType {
	case enum.DiscountTypePercent:
		amount = subtotal.Mul(value).Div(decimal.NewFromInt(100))
	case enum.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// DiscountStore defines the DB methods the resolver needs.
// Satisfied by *database.Queries.
type DiscountStore interface {
	GetCouponByCode(ctx context.Context, arg database.GetCouponByCodeParams) (database.Coupon, error)
	GetLoyaltyReward(ctx context.Context, id uuid.UUID) (database.LoyaltyReward, error)
	GetLoyaltyAccount(ctx context.Context, arg database.GetLoyaltyAccountParams) (database.LoyaltyAccount, error)
	DebitLoyaltyPoints(ctx context.Context, arg database.DebitLoyaltyPointsParams) (database.LoyaltyAccount, error)
}

// DiscountService validates coupons and redeems loyalty rewards.
type DiscountService struct {
	store DiscountStore
	now   func() time.Time
}

func NewDiscountService(store DiscountStore) *DiscountService {
	return &DiscountService{store: store, now: time.Now}
}

// ValidateCoupon checks a code against a proposed order total. Validation
// alone never increments used_count; that happens only on confirmed use
// inside the checkout transaction.
func (s *DiscountService) ValidateCoupon(ctx context.Context, restaurantID uuid.UUID, code string, orderTotal decimal.Decimal) (CouponResult, error) {
	c, err := s.store.GetCouponByCode(ctx, database.GetCouponByCodeParams{
		RestaurantID: restaurantID,
		Code:         code,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CouponResult{ErrorMessage: "coupon not found"}, nil
		}
		return CouponResult{}, fmt.Errorf("get coupon: %w", err)
	}
	return EvaluateCoupon(c, orderTotal, s.now()), nil
}

// RedemptionResult is the outcome of a loyalty reward redemption.
type RedemptionResult struct {
	Success       bool
	Message       string
	DiscountType  string
	DiscountValue decimal.Decimal
}

// RedeemReward spends the reward's point cost from the customer's account and
// returns the discount terms. Failures are structured, never partial: the
// guarded debit is the only write.
func (s *DiscountService) RedeemReward(ctx context.Context, restaurantID uuid.UUID, customerPhone string, rewardID uuid.UUID, orderTotal decimal.Decimal) (RedemptionResult, error) {
	reward, err := s.store.GetLoyaltyReward(ctx, rewardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RedemptionResult{Message: "reward not found"}, nil
		}
		return RedemptionResult{}, fmt.Errorf("get reward: %w", err)
	}
	if reward.RestaurantID != restaurantID {
		return RedemptionResult{Message: "reward not found"}, nil
	}
	if !reward.IsActive {
		return RedemptionResult{Message: "reward is not active"}, nil
	}

	minOrder := pricing.NumericToDecimal(reward.MinOrderValue)
	if orderTotal.LessThan(minOrder) {
		return RedemptionResult{Message: fmt.Sprintf("order minimum of %s not met", pricing.FormatBRL(minOrder))}, nil
	}

	account, err := s.store.GetLoyaltyAccount(ctx, database.GetLoyaltyAccountParams{
		RestaurantID:  restaurantID,
		CustomerPhone: customerPhone,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RedemptionResult{Message: "no loyalty account for this customer"}, nil
		}
		return RedemptionResult{}, fmt.Errorf("get loyalty account: %w", err)
	}
	if account.TotalPoints < reward.PointsRequired {
		return RedemptionResult{Message: "insufficient points"}, nil
	}

	if _, err := s.store.DebitLoyaltyPoints(ctx, database.DebitLoyaltyPointsParams{
		ID:     account.ID,
		Points: reward.PointsRequired,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with another redemption; the guard rejected the debit.
			return RedemptionResult{Message: "insufficient points"}, nil
		}
		return RedemptionResult{}, fmt.Errorf("debit points: %w", err)
	}

	return RedemptionResult{
		Success:       true,
		Message:       "reward redeemed",
		DiscountType:  reward.DiscountType,
		DiscountValue: pricing.NumericToDecimal(reward.DiscountValue),
	}, nil
}
