package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `order_id, retailer_id, amount, status, gateway_reference, payment_url, created_at, updated_at`

// Create inserts a new order in the created state.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO online_payment_orders (order_id, retailer_id, amount, status, gateway_reference, payment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		o.OrderID, o.RetailerID, o.Amount, string(o.Status),
		o.GatewayReference, o.PaymentURL, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("insert order %s: %w", o.OrderID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by its gateway-issued id.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM online_payment_orders WHERE order_id = $1`

	o := &domain.Order{}
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&o.OrderID, &o.RetailerID, &o.Amount, &o.Status,
		&o.GatewayReference, &o.PaymentURL, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Transition is a compare-and-set from created. Exactly one concurrent
// caller can win it.
func (r *OrderRepo) Transition(ctx context.Context, tx pgx.Tx, orderID string, to domain.OrderStatus, gatewayRef string) error {
	if !to.IsTerminal() {
		return fmt.Errorf("transition order %s: %q is not a terminal status", orderID, to)
	}

	query := `UPDATE online_payment_orders
		SET status = $1, gateway_reference = COALESCE(NULLIF($2, ''), gateway_reference), updated_at = NOW()
		WHERE order_id = $3 AND status = 'created'`

	tag, err := tx.Exec(ctx, query, string(to), gatewayRef, orderID)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transition order %s: %w", orderID, ports.ErrConflict)
	}
	return nil
}

// Touch bumps updated_at of a still-created order.
func (r *OrderRepo) Touch(ctx context.Context, orderID string) error {
	query := `UPDATE online_payment_orders SET updated_at = NOW() WHERE order_id = $1 AND status = 'created'`

	if _, err := r.pool.Exec(ctx, query, orderID); err != nil {
		return fmt.Errorf("touch order: %w", err)
	}
	return nil
}

// ListStale returns created orders not touched since cutoff, oldest first.
func (r *OrderRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM online_payment_orders
		WHERE status = 'created' AND updated_at < $1
		ORDER BY updated_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.OrderID, &o.RetailerID, &o.Amount, &o.Status,
			&o.GatewayReference, &o.PaymentURL, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}
