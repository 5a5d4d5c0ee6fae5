package memory

import (
	"context"
	"fmt"
	"sort"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OfflineRequestRepo implements ports.OfflineRequestRepository.
type OfflineRequestRepo struct {
	s *Store
}

func NewOfflineRequestRepo(s *Store) *OfflineRequestRepo {
	return &OfflineRequestRepo{s: s}
}

func (r *OfflineRequestRepo) Create(ctx context.Context, req *domain.OfflineRequest) error {
	return r.s.view(ctx, func() error {
		if _, taken := r.s.offlineUTR[req.UTR]; taken {
			return fmt.Errorf("insert offline request utr %s: %w", req.UTR, ports.ErrDuplicate)
		}
		cp := *req
		r.s.offline[req.ID] = &cp
		r.s.offlineUTR[req.UTR] = req.ID
		return nil
	})
}

func (r *OfflineRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OfflineRequest, error) {
	var out *domain.OfflineRequest
	err := r.s.view(ctx, func() error {
		if req, ok := r.s.offline[id]; ok {
			cp := *req
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *OfflineRequestRepo) GetByUTR(ctx context.Context, utr string) (*domain.OfflineRequest, error) {
	var out *domain.OfflineRequest
	err := r.s.view(ctx, func() error {
		if id, ok := r.s.offlineUTR[utr]; ok {
			cp := *r.s.offline[id]
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *OfflineRequestRepo) Decide(_ context.Context, tx pgx.Tx, d ports.OfflineDecision) (*domain.OfflineRequest, error) {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return nil, err
	}

	req, ok := r.s.offline[d.ID]
	if !ok || req.Status != domain.OfflineStatusPending {
		return nil, fmt.Errorf("decide offline request %s: %w", d.ID, ports.ErrConflict)
	}

	prev := *req
	by, at := d.ProcessedBy, d.ProcessedAt
	req.Status = d.Status
	req.AdminRemarks = d.Remarks
	req.ProcessedBy = &by
	req.ProcessedAt = &at
	req.UpdatedAt = at
	mt.onRollback(func() { *req = prev })

	cp := *req
	return &cp, nil
}

func (r *OfflineRequestRepo) List(ctx context.Context, params ports.OfflineListParams) ([]domain.OfflineRequest, int64, error) {
	var page []domain.OfflineRequest
	var total int64
	err := r.s.view(ctx, func() error {
		matched := r.filter(func(req *domain.OfflineRequest) bool {
			if params.RetailerID != nil && req.RetailerID != *params.RetailerID {
				return false
			}
			return params.Status == nil || req.Status == *params.Status
		})
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
		total = int64(len(matched))
		page = paginate(matched, params.Page, params.PageSize)
		return nil
	})
	return page, total, err
}

func (r *OfflineRequestRepo) ListPending(ctx context.Context, limit int) ([]domain.OfflineRequest, error) {
	var out []domain.OfflineRequest
	err := r.s.view(ctx, func() error {
		out = r.filter(func(req *domain.OfflineRequest) bool { return req.Status == domain.OfflineStatusPending })
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *OfflineRequestRepo) CountPending(ctx context.Context, retailerID string) (int64, error) {
	var n int64
	err := r.s.view(ctx, func() error {
		for _, req := range r.s.offline {
			if req.RetailerID == retailerID && req.Status == domain.OfflineStatusPending {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *OfflineRequestRepo) filter(match func(*domain.OfflineRequest) bool) []domain.OfflineRequest {
	out := make([]domain.OfflineRequest, 0)
	for _, req := range r.s.offline {
		if match(req) {
			out = append(out, *req)
		}
	}
	return out
}
