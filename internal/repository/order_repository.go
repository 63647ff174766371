package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/pkg/database"
)

const orderColumns = `id, user_id, status, total, is_delivered, delivered_at,
	return_status, coupon_code, total_quantity, loyalty_stamp_added, created_at`

// OrderRepository provides the loyalty core's view of order records.
type OrderRepository struct {
	pool PoolInterface
}

// NewOrderRepository creates a new OrderRepository with the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewOrderRepositoryWithPool creates a new OrderRepository with a custom
// pool interface. This is primarily used for testing.
func NewOrderRepositoryWithPool(pool PoolInterface) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert stores a new order.
func (r *OrderRepository) Insert(ctx context.Context, order *model.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders
			(id, user_id, status, total, coupon_code, total_quantity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.UserID, order.Status, order.Total,
		order.CouponCode, order.TotalQuantity, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get retrieves an order by id.
// Returns nil, nil when not found (service layer handles this).
func (r *OrderRepository) Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}

// MarkPaid transitions an order to paid status.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2`, model.OrderStatusPaid, orderID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}

// ListStampable returns orders eligible for the stamp sweep: delivered
// before the cooldown cutoff, not yet stamped, not cancelled, and with no
// return in progress.
func (r *OrderRepository) ListStampable(ctx context.Context, deliveredBefore time.Time) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE is_delivered
		  AND status = $1
		  AND NOT loyalty_stamp_added
		  AND return_status IS NULL
		  AND delivered_at <= $2
		ORDER BY delivered_at`

	rows, err := r.pool.Query(ctx, query, model.OrderStatusDelivered, deliveredBefore)
	if err != nil {
		return nil, fmt.Errorf("list stampable orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// MarkStampAdded flags the order as having contributed its stamps. Set
// exactly once, never reset, including when the grant rounded down to
// zero; the flag is what stops the sweep from re-scanning forever.
func (r *OrderRepository) MarkStampAdded(ctx context.Context, tx database.TxQuerier, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders SET loyalty_stamp_added = TRUE WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("mark order stamp added: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.Total,
		&o.IsDelivered,
		&o.DeliveredAt,
		&o.ReturnStatus,
		&o.CouponCode,
		&o.TotalQuantity,
		&o.LoyaltyStampAdded,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
