package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	s *Store
}

func NewOrderRepo(s *Store) *OrderRepo {
	return &OrderRepo{s: s}
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	return r.s.view(ctx, func() error {
		if _, exists := r.s.orders[o.OrderID]; exists {
			return fmt.Errorf("insert order %s: %w", o.OrderID, ports.ErrDuplicate)
		}
		cp := *o
		r.s.orders[o.OrderID] = &cp
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.view(ctx, func() error {
		if o, ok := r.s.orders[orderID]; ok {
			cp := *o
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) Transition(_ context.Context, tx pgx.Tx, orderID string, to domain.OrderStatus, gatewayRef string) error {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return err
	}
	if !to.IsTerminal() {
		return fmt.Errorf("transition order %s: %q is not a terminal status", orderID, to)
	}

	o, ok := r.s.orders[orderID]
	if !ok || o.Status != domain.OrderStatusCreated {
		return fmt.Errorf("transition order %s: %w", orderID, ports.ErrConflict)
	}

	prev := *o
	o.Status = to
	if gatewayRef != "" {
		o.GatewayReference = gatewayRef
	}
	o.UpdatedAt = r.s.now()
	mt.onRollback(func() { *o = prev })
	return nil
}

func (r *OrderRepo) Touch(ctx context.Context, orderID string) error {
	return r.s.view(ctx, func() error {
		if o, ok := r.s.orders[orderID]; ok && o.Status == domain.OrderStatusCreated {
			o.UpdatedAt = r.s.now()
		}
		return nil
	})
}

func (r *OrderRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	err := r.s.view(ctx, func() error {
		for _, o := range r.s.orders {
			if o.Status == domain.OrderStatusCreated && o.UpdatedAt.Before(cutoff) {
				out = append(out, *o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
