package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return err
	}
	if _, exists := r.s.idempotency[rec.Key]; exists {
		return fmt.Errorf("insert idempotency log %s: %w", rec.Key, ports.ErrDuplicate)
	}
	cp := *rec
	r.s.idempotency[cp.Key] = &cp
	mt.onRollback(func() { delete(r.s.idempotency, cp.Key) })
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var out *domain.IdempotencyRecord
	err := r.s.view(ctx, func() error {
		if rec, ok := r.s.idempotency[key]; ok {
			cp := *rec
			out = &cp
		}
		return nil
	})
	return out, err
}
