package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const channelOffline = "offline"

// OfflineRechargeServiceImpl implements ports.OfflineRechargeService.
type OfflineRechargeServiceImpl struct {
	requestRepo ports.OfflineRequestRepository
	ledger      EntryApplier
	transactor  ports.DBTransactor
	metrics     *metrics.Metrics
	now         func() time.Time
	log         zerolog.Logger
}

// NewOfflineRechargeService creates a new OfflineRechargeServiceImpl.
func NewOfflineRechargeService(
	requestRepo ports.OfflineRequestRepository,
	ledger EntryApplier,
	transactor ports.DBTransactor,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OfflineRechargeServiceImpl {
	return &OfflineRechargeServiceImpl{
		requestRepo: requestRepo,
		ledger:      ledger,
		transactor:  transactor,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Submit records a retailer's bank-transfer claim as pending.
func (s *OfflineRechargeServiceImpl) Submit(ctx context.Context, req ports.SubmitOfflineRequest) (*domain.OfflineRequest, error) {
	if req.RetailerID == "" {
		return nil, apperror.Validation("retailer id is required")
	}
	if req.Amount < money.MinRecharge {
		return nil, apperror.Validation(fmt.Sprintf("amount must be at least %s", money.Format(money.MinRecharge)))
	}
	bank := strings.TrimSpace(req.Bank)
	if bank == "" {
		return nil, apperror.Validation("bank is required")
	}
	utr := domain.NormalizeUTR(req.UTR)
	if utr == "" {
		return nil, apperror.Validation("utr is required")
	}
	if req.PaymentDate.IsZero() {
		return nil, apperror.Validation("payment date is required")
	}
	mode, ok := domain.ParsePaymentMode(req.Mode)
	if !ok {
		return nil, apperror.Validation("payment mode must be UPI, IMPS or NEFT")
	}

	existing, err := s.requestRepo.GetByUTR(ctx, utr)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lookup utr: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateUTR()
	}

	now := s.now()
	r := &domain.OfflineRequest{
		ID:          uuid.New(),
		RetailerID:  req.RetailerID,
		Amount:      req.Amount,
		Bank:        bank,
		UTR:         utr,
		PaymentDate: req.PaymentDate,
		Mode:        mode,
		Status:      domain.OfflineStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.requestRepo.Create(ctx, r); err != nil {
		// The unique index catches a UTR submitted concurrently.
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrDuplicateUTR()
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("create offline request: %w", err))
	}

	s.log.Info().
		Str("request_id", r.ID.String()).
		Str("retailer_id", r.RetailerID).
		Str("utr", r.UTR).
		Int64("amount", r.Amount).
		Msg("offline recharge request submitted")

	return r, nil
}

// Process applies an admin decision to a pending request. Approval credits
// the wallet in the same transaction as the status change.
func (s *OfflineRechargeServiceImpl) Process(ctx context.Context, req ports.ProcessOfflineRequest) (*domain.OfflineRequest, error) {
	if req.AdminID == "" {
		return nil, apperror.Validation("admin id is required")
	}
	if req.RequestID == uuid.Nil {
		return nil, apperror.Validation("request id is required")
	}
	if !req.Decision.IsDecision() {
		return nil, apperror.Validation("decision must be approved or rejected")
	}
	remarks := strings.TrimSpace(req.Remarks)
	if remarks == "" {
		remarks = req.Decision.DefaultRemarks()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	updated, err := s.requestRepo.Decide(ctx, dbTx, ports.OfflineDecision{
		ID:          req.RequestID,
		Status:      req.Decision,
		Remarks:     remarks,
		ProcessedBy: req.AdminID,
		ProcessedAt: s.now(),
	})
	if err != nil {
		if !errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("decide offline request: %w", err))
		}
		_ = dbTx.Rollback(ctx)
		return nil, s.explainConflict(ctx, req.RequestID)
	}

	var entry *domain.LedgerEntry
	switch updated.Status {
	case domain.OfflineStatusApproved:
		entry, err = s.ledger.ApplyEntry(ctx, dbTx, EntryInput{
			RetailerID: updated.RetailerID,
			Type:       domain.EntryTypeCredit,
			Amount:     updated.Amount,
			Meta: domain.EntryMeta{
				Reason:    fmt.Sprintf("Offline recharge via %s (UTR %s)", updated.Mode, updated.UTR),
				Source:    domain.SourceOfflineRequest,
				Reference: domain.OfflineReference(updated.ID),
			},
		})
		if err != nil {
			return nil, err
		}
	case domain.OfflineStatusRejected:
	default:
		return nil, apperror.InternalError(fmt.Errorf("decided into non-terminal status %q", updated.Status))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.ObserveOutcome(channelOffline, string(updated.Status))
	if entry != nil {
		s.metrics.ObserveEntry(string(entry.Type), string(entry.Meta.Source), entry.Amount)
	}
	s.log.Info().
		Str("request_id", updated.ID.String()).
		Str("retailer_id", updated.RetailerID).
		Str("admin_id", req.AdminID).
		Str("status", string(updated.Status)).
		Int64("amount", updated.Amount).
		Msg("offline recharge request processed")

	return updated, nil
}

// explainConflict tells a missing request apart from one that was already decided.
func (s *OfflineRechargeServiceImpl) explainConflict(ctx context.Context, id uuid.UUID) error {
	current, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("reload offline request: %w", err))
	}
	if current == nil {
		return apperror.ErrNotFound("offline request")
	}
	s.metrics.ObserveLostRace(channelOffline)
	return apperror.ErrInvalidStateTransition(string(current.Status))
}
