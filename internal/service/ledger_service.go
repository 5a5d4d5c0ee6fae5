package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// EntryInput describes one balance change applied inside a caller's transaction.
type EntryInput struct {
	RetailerID string
	Type       domain.EntryType
	Amount     int64
	Meta       domain.EntryMeta
}

// EntryApplier mutates a wallet inside an open transaction. The reconciliation
// services use it so a status transition and its credit commit together.
type EntryApplier interface {
	ApplyEntry(ctx context.Context, tx pgx.Tx, in EntryInput) (*domain.LedgerEntry, error)
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.EntryRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. idempCache may be nil,
// in which case idempotent adjustments rely on the database log alone.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		metrics:    m,
		log:        log,
	}
}

// GetBalance returns the committed balance. A retailer without a wallet has 0.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, retailerID string) (int64, error) {
	if retailerID == "" {
		return 0, apperror.Validation("retailer id is required")
	}
	wallet, err := s.walletRepo.GetByRetailerID(ctx, retailerID)
	if err != nil {
		return 0, apperror.ErrStoreUnavailable(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

// Credit adds amount to the retailer's wallet.
func (s *LedgerServiceImpl) Credit(ctx context.Context, retailerID string, amount int64, meta domain.EntryMeta) (*domain.LedgerEntry, error) {
	return s.post(ctx, EntryInput{RetailerID: retailerID, Type: domain.EntryTypeCredit, Amount: amount, Meta: meta})
}

// Debit removes amount from the retailer's wallet. It fails with
// InsufficientFunds, and changes nothing, when the balance is short.
func (s *LedgerServiceImpl) Debit(ctx context.Context, retailerID string, amount int64, meta domain.EntryMeta) (*domain.LedgerEntry, error) {
	return s.post(ctx, EntryInput{RetailerID: retailerID, Type: domain.EntryTypeDebit, Amount: amount, Meta: meta})
}

func (s *LedgerServiceImpl) post(ctx context.Context, in EntryInput) (*domain.LedgerEntry, error) {
	if err := validateEntryInput(in); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.ApplyEntry(ctx, dbTx, in)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	s.observe(entry)
	return entry, nil
}

// ApplyEntry locks (creating if needed) the wallet, appends the entry and
// moves the balance. Nothing is committed; the caller owns tx.
func (s *LedgerServiceImpl) ApplyEntry(ctx context.Context, tx pgx.Tx, in EntryInput) (*domain.LedgerEntry, error) {
	if err := validateEntryInput(in); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.EnsureForUpdate(ctx, tx, in.RetailerID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lock wallet: %w", err))
	}

	var newBalance int64
	switch in.Type {
	case domain.EntryTypeCredit:
		if wallet.Balance > math.MaxInt64-in.Amount {
			return nil, apperror.Validation("credit would overflow the wallet balance")
		}
		newBalance = wallet.Balance + in.Amount
	case domain.EntryTypeDebit:
		if !wallet.CanDebit(in.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		newBalance = wallet.Balance - in.Amount
	default:
		return nil, apperror.Validation("unknown entry type")
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		RetailerID:   in.RetailerID,
		Type:         in.Type,
		Amount:       in.Amount,
		Meta:         in.Meta,
		BalanceAfter: newBalance,
	}
	if in.Meta.Reference != "" {
		ref := in.Meta.Reference
		entry.Reference = &ref
	}

	if err := s.entryRepo.Append(ctx, tx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrAlreadyApplied()
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("append entry: %w", err))
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("update balance: %w", err))
	}

	return entry, nil
}

// Adjust applies an admin credit or debit. With an idempotency key, a retry
// returns the first result; reusing the key for a different request is rejected.
func (s *LedgerServiceImpl) Adjust(ctx context.Context, req ports.AdjustmentRequest) (*domain.LedgerEntry, error) {
	if req.AdminID == "" {
		return nil, apperror.Validation("admin id is required")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Admin " + string(req.Type)
	}
	in := EntryInput{
		RetailerID: req.RetailerID,
		Type:       req.Type,
		Amount:     req.Amount,
		Meta:       domain.EntryMeta{Reason: reason, Source: domain.SourceAdmin},
	}
	if err := validateEntryInput(in); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		entry, err := s.post(ctx, in)
		if err == nil {
			s.logAdjustment(req, entry)
		}
		return entry, err
	}

	idempKey := domain.BuildIdempotencyKey(req.AdminID, "adjust", req.IdempotencyKey)
	reqHash := hashAdjustment(req.RetailerID, req.Type, req.Amount, reason)

	// Layer 1: Redis idempotency check
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return replayAdjustment(cached, reqHash)
		}
	}

	// Layer 2: DB idempotency check
	rec, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec != nil {
		return replayRecord(rec, reqHash)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.ApplyEntry(ctx, dbTx, in)
	if err != nil {
		return nil, err
	}

	respJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	rec = &domain.IdempotencyRecord{
		Key:          idempKey,
		RequestHash:  reqHash,
		EntryID:      entry.ID,
		ResponseJSON: respJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.idempRepo.Create(ctx, dbTx, rec); err != nil {
		if !errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("save idempotency log: %w", err))
		}
		// A concurrent request with the same key committed first.
		_ = dbTx.Rollback(ctx)
		winner, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil || winner == nil {
			return nil, apperror.ErrDuplicateRequest()
		}
		return replayRecord(winner, reqHash)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if s.idempCache != nil {
		cached, _ := json.Marshal(cachedAdjustment{RequestHash: reqHash, Entry: respJSON})
		if err := s.idempCache.Set(ctx, idempKey, cached, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.observe(entry)
	s.logAdjustment(req, entry)
	return entry, nil
}

func (s *LedgerServiceImpl) observe(entry *domain.LedgerEntry) {
	s.metrics.ObserveEntry(string(entry.Type), string(entry.Meta.Source), entry.Amount)
}

func (s *LedgerServiceImpl) logAdjustment(req ports.AdjustmentRequest, entry *domain.LedgerEntry) {
	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("retailer_id", req.RetailerID).
		Str("admin_id", req.AdminID).
		Str("type", string(req.Type)).
		Int64("amount", req.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("wallet adjusted by admin")
}

func validateEntryInput(in EntryInput) error {
	if in.RetailerID == "" {
		return apperror.Validation("retailer id is required")
	}
	if in.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if !in.Type.Valid() {
		return apperror.Validation("type must be credit or debit")
	}
	return nil
}

// cachedAdjustment is the Redis value for an idempotent adjustment.
type cachedAdjustment struct {
	RequestHash string          `json:"request_hash"`
	Entry       json.RawMessage `json:"entry"`
}

func hashAdjustment(retailerID string, t domain.EntryType, amount int64, reason string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", retailerID, t, amount, reason)))
	return hex.EncodeToString(sum[:])
}

func replayAdjustment(raw []byte, reqHash string) (*domain.LedgerEntry, error) {
	var c cachedAdjustment
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached adjustment: %w", err))
	}
	return replayRecord(&domain.IdempotencyRecord{RequestHash: c.RequestHash, ResponseJSON: c.Entry}, reqHash)
}

func replayRecord(rec *domain.IdempotencyRecord, reqHash string) (*domain.LedgerEntry, error) {
	if rec.RequestHash != reqHash {
		return nil, apperror.ErrDuplicateRequest()
	}
	var entry domain.LedgerEntry
	if err := json.Unmarshal(rec.ResponseJSON, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal idempotent entry: %w", err))
	}
	return &entry, nil
}
