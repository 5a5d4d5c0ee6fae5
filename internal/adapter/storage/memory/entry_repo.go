package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// EntryRepo implements ports.EntryRepository.
type EntryRepo struct {
	s *Store
}

func NewEntryRepo(s *Store) *EntryRepo {
	return &EntryRepo{s: s}
}

func (r *EntryRepo) Append(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return err
	}
	if e.Reference != nil {
		if _, taken := r.s.entryRefs[*e.Reference]; taken {
			return fmt.Errorf("append entry %s: %w", *e.Reference, ports.ErrDuplicate)
		}
	}

	r.s.seq++
	e.Seq = r.s.seq
	e.CreatedAt = r.s.now()

	r.s.entries = append(r.s.entries, *e)
	idx := len(r.s.entries) - 1
	if e.Reference != nil {
		r.s.entryRefs[*e.Reference] = idx
	}

	ref := e.Reference
	mt.onRollback(func() {
		r.s.entries = r.s.entries[:idx]
		r.s.seq--
		if ref != nil {
			delete(r.s.entryRefs, *ref)
		}
	})
	return nil
}

func (r *EntryRepo) GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	var out *domain.LedgerEntry
	err := r.s.view(ctx, func() error {
		if idx, ok := r.s.entryRefs[reference]; ok {
			e := r.s.entries[idx]
			out = &e
		}
		return nil
	})
	return out, err
}

func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	var page []domain.LedgerEntry
	var total int64
	err := r.s.view(ctx, func() error {
		matched := r.newestFirst(func(e *domain.LedgerEntry) bool {
			return e.RetailerID == params.RetailerID && (params.Type == nil || e.Type == *params.Type)
		})
		total = int64(len(matched))
		page = paginate(matched, params.Page, params.PageSize)
		return nil
	})
	return page, total, err
}

func (r *EntryRepo) Recent(ctx context.Context, retailerID string, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := r.s.view(ctx, func() error {
		out = r.newestFirst(func(e *domain.LedgerEntry) bool { return e.RetailerID == retailerID })
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// newestFirst walks the log backwards; entries are stored in seq order.
func (r *EntryRepo) newestFirst(match func(*domain.LedgerEntry) bool) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0)
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if match(&r.s.entries[i]) {
			out = append(out, r.s.entries[i])
		}
	}
	return out
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return make([]T, 0)
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return make([]T, 0)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
