package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, order_number, customer_name, customer_phone,
	order_type, status, table_id, comanda_id, zone_id, delivery_address, coupon_id,
	subtotal, discount, delivery_fee, tip, total, payment_method, payment_status,
	notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone,
		&o.OrderType, &o.Status, &o.TableID, &o.ComandaID, &o.ZoneID, &o.DeliveryAddress,
		&o.CouponID, &o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Tip, &o.Total,
		&o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderNumber returns the next per-restaurant order number. Callers must
// run this inside the same transaction as the insert and retry on unique
// violations, since two concurrent transactions can read the same MAX.
func (q *Queries) GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE restaurant_id = $1`,
		restaurantID,
	).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	RestaurantID    uuid.UUID
	OrderNumber     int32
	CustomerName    pgtype.Text
	CustomerPhone   pgtype.Text
	OrderType       string
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
	Notes           pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (restaurant_id, order_number, customer_name, customer_phone,
			order_type, table_id, comanda_id, zone_id, delivery_address, coupon_id,
			subtotal, discount, delivery_fee, tip, total, payment_method, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+orderColumns,
		arg.RestaurantID, arg.OrderNumber, arg.CustomerName, arg.CustomerPhone,
		arg.OrderType, arg.TableID, arg.ComandaID, arg.ZoneID, arg.DeliveryAddress,
		arg.CouponID, arg.Subtotal, arg.Discount, arg.DeliveryFee, arg.Tip, arg.Total,
		arg.PaymentMethod, arg.Notes,
	)
	return scanOrder(row)
}

type GetOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2`,
		arg.ID, arg.RestaurantID,
	)
	return scanOrder(row)
}

type ListOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.RestaurantID, arg.Status, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListActiveOrders returns every order in a non-terminal status, oldest first.
// This is the shared queue the kitchen and waiter surfaces render from.
func (q *Queries) ListActiveOrders(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND status NOT IN ('delivered', 'cancelled')
		ORDER BY created_at ASC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type AdvanceOrderStatusParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	// FromStatuses is the set of current statuses the transition is valid
	// from. The conditional update makes concurrent transitions safe: a
	// superseded write matches zero rows and surfaces as pgx.ErrNoRows.
	FromStatuses []string
}

func (q *Queries) AdvanceOrderStatus(ctx context.Context, arg AdvanceOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND restaurant_id = $2 AND status = ANY($4)
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.Status, arg.FromStatuses,
	)
	return scanOrder(row)
}

type MarkOrderPaidParams struct {
	ID            uuid.UUID
	RestaurantID  uuid.UUID
	PaymentMethod string
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET payment_status = 'paid', payment_method = $3, updated_at = now()
		WHERE id = $1 AND restaurant_id = $2 AND status NOT IN ('cancelled')
		RETURNING `+orderColumns,
		arg.ID, arg.RestaurantID, arg.PaymentMethod,
	)
	return scanOrder(row)
}

type UpdateOrderAmountsParams struct {
	ID       uuid.UUID
	Subtotal pgtype.Numeric
	Discount pgtype.Numeric
	Total    pgtype.Numeric
}

func (q *Queries) UpdateOrderAmounts(ctx context.Context, arg UpdateOrderAmountsParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET subtotal = $2, discount = $3, total = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Subtotal, arg.Discount, arg.Total,
	)
	return scanOrder(row)
}

// CountOpenOrdersForTable reports how many non-terminal orders still reference
// the table. Zero means the table is free again.
func (q *Queries) CountOpenOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		WHERE table_id = $1 AND status NOT IN ('delivered', 'cancelled')`,
		tableID,
	).Scan(&n)
	return n, err
}

func (q *Queries) CountOpenOrdersForComanda(ctx context.Context, comandaID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		WHERE comanda_id = $1 AND status NOT IN ('delivered', 'cancelled')`,
		comandaID,
	).Scan(&n)
	return n, err
}

// --- Order items ---

const orderItemColumns = `id, order_id, product_id, product_name, unit_price,
	quantity, notes, status, subtotal, created_at`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice,
		&it.Quantity, &it.Notes, &it.Status, &it.Subtotal, &it.CreatedAt,
	)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   pgtype.Numeric
	Quantity    int32
	Notes       pgtype.Text
	Subtotal    pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, notes, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+orderItemColumns,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.UnitPrice, arg.Quantity,
		arg.Notes, arg.Subtotal,
	)
	return scanOrderItem(row)
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at ASC`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderItemStatusParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Status  string
}

// UpdateOrderItemStatus sets a per-line delivered/cancelled marker. Lines of a
// terminal order are not touched.
func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items SET status = $3
		WHERE id = $1 AND order_id = $2
		  AND EXISTS (
			SELECT 1 FROM orders o
			WHERE o.id = $2 AND o.status NOT IN ('delivered', 'cancelled')
		  )
		RETURNING `+orderItemColumns,
		arg.ID, arg.OrderID, arg.Status,
	)
	return scanOrderItem(row)
}

// --- Order item extras ---

type CreateOrderItemExtraParams struct {
	OrderItemID   uuid.UUID
	ExtraOptionID uuid.UUID
	Name          string
	UnitPrice     pgtype.Numeric
	Quantity      int32
}

func (q *Queries) CreateOrderItemExtra(ctx context.Context, arg CreateOrderItemExtraParams) (OrderItemExtra, error) {
	var e OrderItemExtra
	err := q.db.QueryRow(ctx,
		`INSERT INTO order_item_extras (order_item_id, extra_option_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_item_id, extra_option_id, name, unit_price, quantity`,
		arg.OrderItemID, arg.ExtraOptionID, arg.Name, arg.UnitPrice, arg.Quantity,
	).Scan(&e.ID, &e.OrderItemID, &e.ExtraOptionID, &e.Name, &e.UnitPrice, &e.Quantity)
	return e, err
}

func (q *Queries) ListOrderItemExtrasByItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemExtra, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, order_item_id, extra_option_id, name, unit_price, quantity
		FROM order_item_extras WHERE order_item_id = $1`,
		orderItemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var extras []OrderItemExtra
	for rows.Next() {
		var e OrderItemExtra
		if err := rows.Scan(&e.ID, &e.OrderItemID, &e.ExtraOptionID, &e.Name, &e.UnitPrice, &e.Quantity); err != nil {
			return nil, err
		}
		extras = append(extras, e)
	}
	return extras, rows.Err()
}
