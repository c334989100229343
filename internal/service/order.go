package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/pricing"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrProductNotFound   = errors.New("product not found in restaurant")
	ErrExtraNotFound     = errors.New("extra option not found")
	ErrExtraNotAllowed   = errors.New("extra option not allowed for product")
	ErrExtraRequired     = errors.New("a required extra group has no selection")
	ErrExtraLimit        = errors.New("extra group selection limit exceeded")
	ErrInvalidProductID  = errors.New("invalid product_id")
	ErrInvalidExtraID    = errors.New("invalid extra_option_id")
	ErrInvalidPayment    = errors.New("invalid payment_method")
	ErrInvalidTip        = errors.New("invalid tip")
	ErrTableNotFound     = errors.New("table not found")
	ErrComandaNotFound   = errors.New("comanda not found")
	ErrZoneNotFound      = errors.New("delivery zone not found")
	ErrDeliveryAddress   = errors.New("delivery_address is required for delivery orders")
	ErrCouponRejected    = errors.New("coupon rejected")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrRewardRejected    = errors.New("reward rejected")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderTerminal     = errors.New("order is in a terminal status")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrStatusConflict    = errors.New("order status changed, reconcile from the authoritative record")
	ErrOrderItemNotFound = errors.New("order item not found")
)

// StatusRank exposes the forward ordering of the lifecycle for callers that
// must never let a stale event regress a status.
func StatusRank(s string) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	GetExtraOptionForOrder(ctx context.Context, id uuid.UUID) (database.ExtraOptionForOrderRow, error)
	ListProductExtraGroups(ctx context.Context, productID uuid.UUID) ([]database.ExtraGroup, error)
	GetCouponByCode(ctx context.Context, arg database.GetCouponByCodeParams) (database.Coupon, error)
	IncrementCouponUse(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	GetLoyaltyReward(ctx context.Context, id uuid.UUID) (database.LoyaltyReward, error)
	GetLoyaltyAccount(ctx context.Context, arg database.GetLoyaltyAccountParams) (database.LoyaltyAccount, error)
	DebitLoyaltyPoints(ctx context.Context, arg database.DebitLoyaltyPointsParams) (database.LoyaltyAccount, error)
	CreditLoyaltyPoints(ctx context.Context, arg database.CreditLoyaltyPointsParams) (database.LoyaltyAccount, error)
	GetZone(ctx context.Context, arg database.GetZoneParams) (database.DeliveryZone, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	GetComanda(ctx context.Context, arg database.GetComandaParams) (database.Comanda, error)
	GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemExtra(ctx context.Context, arg database.CreateOrderItemExtraParams) (database.OrderItemExtra, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	AdvanceOrderStatus(ctx context.Context, arg database.AdvanceOrderStatusParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	UpdateOrderAmounts(ctx context.Context, arg database.UpdateOrderAmountsParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	CountOpenOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	CountOpenOrdersForComanda(ctx context.Context, comandaID uuid.UUID) (int64, error)
}

// NewStore creates a Store from a DBTX (pool or tx), so the service can bind
// store instances to transactions.
type NewStore func(db database.DBTX) Store

// CheckoutRequest is the validated input for creating an order from a cart.
type CheckoutRequest struct {
	RestaurantID    uuid.UUID
	OrderType       string
	CustomerName    string
	CustomerPhone   string
	TableID         string
	ComandaID       string
	ZoneID          string
	DeliveryAddress string
	CouponCode      string
	RewardID        string
	Tip             string
	PaymentMethod   string
	Notes           string
	Items           []CheckoutItem
}

// CheckoutItem is one cart line at checkout. Prices are not trusted from the
// client; products and extras are re-read and snapshotted server-side.
type CheckoutItem struct {
	ProductID string
	Quantity  int32
	Notes     string
	Extras    []CheckoutExtra
}

type CheckoutExtra struct {
	OptionID string
	Quantity int32
}

// CheckoutResult is the full created order with items.
type CheckoutResult struct {
	Order database.Order
	Items []OrderItemResult
}

type OrderItemResult struct {
	Item   database.OrderItem
	Extras []database.OrderItemExtra
}

// TransitionResult reports a status change and its side effects, so callers
// can push table/comanda updates alongside the order update.
type TransitionResult struct {
	Order          database.Order
	TableFreed     bool
	ComandaClosed  bool
	PointsCredited int32
}

// OrderService owns order creation and the status lifecycle.
type OrderService struct {
	pool     TxBeginner
	newStore NewStore
	now      func() time.Time
}

func NewOrderService(pool TxBeginner, newStore NewStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

// preparedItem holds a priced order line ready to insert.
type preparedItem struct {
	params database.CreateOrderItemParams
	extras []database.CreateOrderItemExtraParams
}

// Checkout validates, prices and creates an order atomically. Retries on
// order_number unique violations, the race where concurrent transactions read
// the same MAX.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if !isValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.PaymentMethod != "" && !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPayment
	}
	if req.OrderType == enum.OrderTypeDelivery && req.DeliveryAddress == "" {
		return nil, ErrDeliveryAddress
	}
	if req.CouponCode != "" && req.RewardID != "" {
		return nil, ErrDiscountConflict
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.checkoutTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_restaurant_id_order_number_key"
	}
	return false
}

func (s *OrderService) checkoutTx(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	restaurant, err := store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	// --- Price the lines from authoritative product data ---
	items, subtotal, err := s.prepareItems(ctx, store, req.RestaurantID, req.Items)
	if err != nil {
		return nil, err
	}

	// --- Resolve discount: at most one of coupon or reward ---
	discount := decimal.Zero
	couponID := pgtype.UUID{}
	if req.CouponCode != "" {
		coupon, err := store.GetCouponByCode(ctx, database.GetCouponByCodeParams{
			RestaurantID: req.RestaurantID,
			Code:         req.CouponCode,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: coupon not found", ErrCouponRejected)
			}
			return nil, fmt.Errorf("get coupon: %w", err)
		}
		res := EvaluateCoupon(coupon, subtotal, s.now())
		if !res.Valid {
			return nil, fmt.Errorf("%w: %s", ErrCouponRejected, res.ErrorMessage)
		}
		// Confirmed use: the guarded increment is what actually reserves a
		// use slot; validation alone never touches used_count.
		if _, err := store.IncrementCouponUse(ctx, coupon.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCouponExhausted
			}
			return nil, fmt.Errorf("increment coupon use: %w", err)
		}
		couponID = pgtype.UUID{Bytes: coupon.ID, Valid: true}
		discount = DiscountAmount(res.DiscountType, res.DiscountValue, subtotal)
	} else if req.RewardID != "" {
		rid, err := uuid.Parse(req.RewardID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid reward id", ErrRewardRejected)
		}
		if req.CustomerPhone == "" {
			return nil, fmt.Errorf("%w: customer phone is required", ErrRewardRejected)
		}
		redeemer := &DiscountService{store: storeAsDiscountStore(store), now: s.now}
		res, err := redeemer.RedeemReward(ctx, req.RestaurantID, req.CustomerPhone, rid, subtotal)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, fmt.Errorf("%w: %s", ErrRewardRejected, res.Message)
		}
		discount = DiscountAmount(res.DiscountType, res.DiscountValue, subtotal)
	}

	// --- Resolve delivery fee ---
	zoneID := pgtype.UUID{}
	var zone *Zone
	if req.OrderType == enum.OrderTypeDelivery && restaurant.ChargeMode == enum.ChargeModeZone {
		if req.ZoneID == "" {
			return nil, ErrZoneRequired
		}
		zid, err := uuid.Parse(req.ZoneID)
		if err != nil {
			return nil, ErrZoneNotFound
		}
		z, err := store.GetZone(ctx, database.GetZoneParams{ID: zid, RestaurantID: req.RestaurantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrZoneNotFound
			}
			return nil, fmt.Errorf("get zone: %w", err)
		}
		zoneID = pgtype.UUID{Bytes: z.ID, Valid: true}
		zone = &Zone{
			Fee:      pricing.NumericToDecimal(z.Fee),
			MinOrder: pricing.NumericToDecimal(z.MinOrder),
		}
	}
	deliveryFee, err := ResolveDeliveryFee(req.OrderType, restaurant.ChargeMode,
		pricing.NumericToDecimal(restaurant.DeliveryFee), zone, subtotal)
	if err != nil {
		return nil, err
	}

	// --- Tip ---
	tip := decimal.Zero
	if req.Tip != "" {
		tip, err = decimal.NewFromString(req.Tip)
		if err != nil || tip.IsNegative() {
			return nil, ErrInvalidTip
		}
	}

	// total = subtotal - discount + delivery_fee + tip, never negative since
	// the discount is clamped to the subtotal.
	total := subtotal.Sub(discount).Add(deliveryFee).Add(tip)

	// --- Resolve table / comanda attachment ---
	tableID := pgtype.UUID{}
	if req.TableID != "" {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrTableNotFound
		}
		table, err := store.GetTable(ctx, database.GetTableParams{ID: tid, RestaurantID: req.RestaurantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
		tableID = pgtype.UUID{Bytes: table.ID, Valid: true}
	}
	comandaID := pgtype.UUID{}
	if req.ComandaID != "" {
		cid, err := uuid.Parse(req.ComandaID)
		if err != nil {
			return nil, ErrComandaNotFound
		}
		comanda, err := store.GetComanda(ctx, database.GetComandaParams{ID: cid, RestaurantID: req.RestaurantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrComandaNotFound
			}
			return nil, fmt.Errorf("get comanda: %w", err)
		}
		comandaID = pgtype.UUID{Bytes: comanda.ID, Valid: true}
	}

	nextNum, err := store.GetNextOrderNumber(ctx, req.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = enum.PaymentMethodCash
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		RestaurantID:    req.RestaurantID,
		OrderNumber:     nextNum,
		CustomerName:    textOrNull(req.CustomerName),
		CustomerPhone:   textOrNull(req.CustomerPhone),
		OrderType:       req.OrderType,
		TableID:         tableID,
		ComandaID:       comandaID,
		ZoneID:          zoneID,
		DeliveryAddress: textOrNull(req.DeliveryAddress),
		CouponID:        couponID,
		Subtotal:        pricing.DecimalToNumeric(subtotal),
		Discount:        pricing.DecimalToNumeric(discount),
		DeliveryFee:     pricing.DecimalToNumeric(deliveryFee),
		Tip:             pricing.DecimalToNumeric(tip),
		Total:           pricing.DecimalToNumeric(total),
		PaymentMethod:   paymentMethod,
		Notes:           textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var itemResults []OrderItemResult
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		var extraResults []database.OrderItemExtra
		for _, ep := range pi.extras {
			ep.OrderItemID = item.ID
			extra, err := store.CreateOrderItemExtra(ctx, ep)
			if err != nil {
				return nil, fmt.Errorf("create order item extra: %w", err)
			}
			extraResults = append(extraResults, extra)
		}
		itemResults = append(itemResults, OrderItemResult{Item: item, Extras: extraResults})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CheckoutResult{Order: order, Items: itemResults}, nil
}

// prepareItems validates and prices lines from authoritative product and
// extra data, returning the prepared inserts and the summed subtotal.
func (s *OrderService) prepareItems(ctx context.Context, store Store, restaurantID uuid.UUID, reqItems []CheckoutItem) ([]preparedItem, decimal.Decimal, error) {
	subtotal := decimal.Zero
	var items []preparedItem

	for i, item := range reqItems {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
		product, err := store.GetProductForOrder(ctx, database.GetProductForOrderParams{
			ID:           productID,
			RestaurantID: restaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		unitPrice := pricing.NumericToDecimal(product.Price)

		groups, err := store.ListProductExtraGroups(ctx, productID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: list extra groups: %w", i, err)
		}
		groupByID := make(map[uuid.UUID]database.ExtraGroup, len(groups))
		for _, g := range groups {
			groupByID[g.ID] = g
		}
		selected := make(map[uuid.UUID]int32, len(groups))

		var lineExtras []pricing.Extra
		var extraParams []database.CreateOrderItemExtraParams
		for j, ex := range item.Extras {
			if ex.Quantity <= 0 {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrInvalidQuantity)
			}
			optionID, err := uuid.Parse(ex.OptionID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrInvalidExtraID)
			}
			option, err := store.GetExtraOptionForOrder(ctx, optionID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrExtraNotFound)
				}
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: get extra: %w", i, j, err)
			}
			group, ok := groupByID[option.GroupID]
			if !ok {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrExtraNotAllowed)
			}
			selected[group.ID] += ex.Quantity
			// max_select <= 0 means unlimited.
			if group.MaxSelect > 0 && selected[group.ID] > group.MaxSelect {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: group %q allows at most %d: %w", i, j, group.Name, group.MaxSelect, ErrExtraLimit)
			}
			price := pricing.NumericToDecimal(option.Price)
			lineExtras = append(lineExtras, pricing.Extra{Price: price, Quantity: ex.Quantity})
			extraParams = append(extraParams, database.CreateOrderItemExtraParams{
				ExtraOptionID: option.ID,
				Name:          option.Name,
				UnitPrice:     pricing.DecimalToNumeric(price),
				Quantity:      ex.Quantity,
			})
		}
		for _, g := range groups {
			if g.IsRequired && selected[g.ID] == 0 {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: group %q: %w", i, g.Name, ErrExtraRequired)
			}
		}

		lineTotal := pricing.LineTotal(unitPrice, item.Quantity, lineExtras)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, preparedItem{
			params: database.CreateOrderItemParams{
				ProductID:   productID,
				ProductName: product.Name,
				UnitPrice:   pricing.DecimalToNumeric(unitPrice),
				Quantity:    item.Quantity,
				Notes:       textOrNull(item.Notes),
				Subtotal:    pricing.DecimalToNumeric(lineTotal),
			},
			extras: extraParams,
		})
	}
	return items, subtotal, nil
}

// Transition advances an order to a strictly later status, or cancels it
// from any non-terminal status. The conditional update means a concurrent
// transition that already moved the order further simply matches no rows and
// reports a conflict; the caller then reconciles from the authoritative row.
func (s *OrderService) Transition(ctx context.Context, restaurantID, orderID uuid.UUID, newStatus string) (*TransitionResult, error) {
	if !IsValidStatus(newStatus) || newStatus == enum.OrderStatusPending {
		return nil, ErrInvalidStatus
	}
	var from []string
	if newStatus == enum.OrderStatusCancelled {
		from = NonTerminalStatuses()
	} else {
		from = EarlierStatuses(newStatus)
	}
	return s.transitionFrom(ctx, restaurantID, orderID, newStatus, from)
}

// StartPreparing is the kitchen's combined action: pending and accepted are
// collapsed as its precondition, and it writes preparing.
func (s *OrderService) StartPreparing(ctx context.Context, restaurantID, orderID uuid.UUID) (*TransitionResult, error) {
	return s.transitionFrom(ctx, restaurantID, orderID, enum.OrderStatusPreparing, KitchenStartStatuses())
}

func (s *OrderService) transitionFrom(ctx context.Context, restaurantID, orderID uuid.UUID, newStatus string, from []string) (*TransitionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.AdvanceOrderStatus(ctx, database.AdvanceOrderStatusParams{
		ID:           orderID,
		RestaurantID: restaurantID,
		Status:       newStatus,
		FromStatuses: from,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID}); getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return nil, ErrOrderNotFound
				}
				return nil, fmt.Errorf("get order: %w", getErr)
			}
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("advance status: %w", err)
	}

	result := &TransitionResult{Order: order}
	if IsTerminal(newStatus) {
		if err := s.applyTerminalEffects(ctx, store, order, result); err != nil {
			return nil, err
		}
	}
	if newStatus == enum.OrderStatusDelivered {
		if err := s.accruePoints(ctx, store, order, result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// applyTerminalEffects frees the table or closes the comanda when the
// finished order was the last open order attached to it.
func (s *OrderService) applyTerminalEffects(ctx context.Context, store Store, order database.Order, result *TransitionResult) error {
	if order.TableID.Valid {
		open, err := store.CountOpenOrdersForTable(ctx, uuid.UUID(order.TableID.Bytes))
		if err != nil {
			return fmt.Errorf("count open orders for table: %w", err)
		}
		result.TableFreed = open == 0
	}
	if order.ComandaID.Valid {
		open, err := store.CountOpenOrdersForComanda(ctx, uuid.UUID(order.ComandaID.Bytes))
		if err != nil {
			return fmt.Errorf("count open orders for comanda: %w", err)
		}
		result.ComandaClosed = open == 0
	}
	return nil
}

// accruePoints credits one loyalty point per whole currency unit of the
// delivered total. The transition's conditional update guarantees this runs
// at most once per order.
func (s *OrderService) accruePoints(ctx context.Context, store Store, order database.Order, result *TransitionResult) error {
	if !order.CustomerPhone.Valid || order.CustomerPhone.String == "" {
		return nil
	}
	points := int32(pricing.NumericToDecimal(order.Total).IntPart())
	if points <= 0 {
		return nil
	}
	if _, err := store.CreditLoyaltyPoints(ctx, database.CreditLoyaltyPointsParams{
		RestaurantID:  order.RestaurantID,
		CustomerPhone: order.CustomerPhone.String,
		CustomerName:  order.CustomerName,
		Points:        points,
	}); err != nil {
		return fmt.Errorf("credit loyalty points: %w", err)
	}
	result.PointsCredited = points
	return nil
}

// CloseBill marks the order paid and delivers it in one transaction: the
// table/comanda is only freed once payment reached a terminal state.
func (s *OrderService) CloseBill(ctx context.Context, restaurantID, orderID uuid.UUID, paymentMethod string) (*TransitionResult, error) {
	if !isValidPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		ID:            orderID,
		RestaurantID:  restaurantID,
		PaymentMethod: paymentMethod,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
			if getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return nil, ErrOrderNotFound
				}
				return nil, fmt.Errorf("get order: %w", getErr)
			}
			if current.Status == enum.OrderStatusCancelled {
				return nil, ErrOrderTerminal
			}
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	order, err := store.AdvanceOrderStatus(ctx, database.AdvanceOrderStatusParams{
		ID:           orderID,
		RestaurantID: restaurantID,
		Status:       enum.OrderStatusDelivered,
		FromStatuses: EarlierStatuses(enum.OrderStatusDelivered),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already delivered: closing the bill again is a no-op.
			order, err = store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
			if err != nil {
				return nil, fmt.Errorf("get order: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, fmt.Errorf("commit tx: %w", err)
			}
			return &TransitionResult{Order: order}, nil
		}
		return nil, fmt.Errorf("advance status: %w", err)
	}

	result := &TransitionResult{Order: order}
	if err := s.applyTerminalEffects(ctx, store, order, result); err != nil {
		return nil, err
	}
	if err := s.accruePoints(ctx, store, order, result); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// AddItems appends lines to an active order and recomputes its amounts.
func (s *OrderService) AddItems(ctx context.Context, restaurantID, orderID uuid.UUID, reqItems []CheckoutItem) (*CheckoutResult, error) {
	if len(reqItems) == 0 {
		return nil, ErrEmptyItems
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if IsTerminal(order.Status) {
		return nil, ErrOrderTerminal
	}

	items, _, err := s.prepareItems(ctx, store, restaurantID, reqItems)
	if err != nil {
		return nil, err
	}

	var itemResults []OrderItemResult
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		var extraResults []database.OrderItemExtra
		for _, ep := range pi.extras {
			ep.OrderItemID = item.ID
			extra, err := store.CreateOrderItemExtra(ctx, ep)
			if err != nil {
				return nil, fmt.Errorf("create order item extra: %w", err)
			}
			extraResults = append(extraResults, extra)
		}
		itemResults = append(itemResults, OrderItemResult{Item: item, Extras: extraResults})
	}

	updated, err := s.recomputeAmounts(ctx, store, order)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CheckoutResult{Order: updated, Items: itemResults}, nil
}

// SetItemStatus applies a per-line delivered/cancelled marker. Cancelling a
// line removes it from the order's money, so amounts are recomputed.
func (s *OrderService) SetItemStatus(ctx context.Context, restaurantID, orderID, itemID uuid.UUID, status string) (database.Order, error) {
	if status != enum.OrderItemStatusDelivered && status != enum.OrderItemStatusCancelled {
		return database.Order{}, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if IsTerminal(order.Status) {
		return database.Order{}, ErrOrderTerminal
	}

	if _, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID:      itemID,
		OrderID: orderID,
		Status:  status,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderItemNotFound
		}
		return database.Order{}, fmt.Errorf("update item status: %w", err)
	}

	updated := order
	if status == enum.OrderItemStatusCancelled {
		updated, err = s.recomputeAmounts(ctx, store, order)
		if err != nil {
			return database.Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// recomputeAmounts re-derives subtotal from the non-cancelled lines, keeps
// the stored discount clamped to the new subtotal, and rebuilds the total so
// the money invariant holds after item-level changes.
func (s *OrderService) recomputeAmounts(ctx context.Context, store Store, order database.Order) (database.Order, error) {
	lines, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	subtotal := decimal.Zero
	for _, li := range lines {
		if li.Status == enum.OrderItemStatusCancelled {
			continue
		}
		subtotal = subtotal.Add(pricing.NumericToDecimal(li.Subtotal))
	}
	discount := pricing.NumericToDecimal(order.Discount)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	total := subtotal.Sub(discount).
		Add(pricing.NumericToDecimal(order.DeliveryFee)).
		Add(pricing.NumericToDecimal(order.Tip))

	updated, err := store.UpdateOrderAmounts(ctx, database.UpdateOrderAmountsParams{
		ID:       order.ID,
		Subtotal: pricing.DecimalToNumeric(subtotal),
		Discount: pricing.DecimalToNumeric(discount),
		Total:    pricing.DecimalToNumeric(total),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order amounts: %w", err)
	}
	return updated, nil
}

// --- Helpers ---

func isValidOrderType(s string) bool {
	switch s {
	case enum.OrderTypeDelivery, enum.OrderTypePickup, enum.OrderTypeDineIn:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodPix, enum.PaymentMethodOnline:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// storeAsDiscountStore narrows the order store for reward redemption inside
// the checkout transaction.
func storeAsDiscountStore(s Store) DiscountStore {
	return discountStoreAdapter{s}
}

type discountStoreAdapter struct{ Store }
