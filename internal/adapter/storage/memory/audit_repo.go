package memory

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.s.view(ctx, func() error {
		r.s.audit = append(r.s.audit, *log)
		return nil
	})
}

// Logs returns a copy of the recorded audit trail.
func (r *AuditRepo) Logs(ctx context.Context) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	err := r.s.view(ctx, func() error {
		out = append(out, r.s.audit...)
		return nil
	})
	return out, err
}
