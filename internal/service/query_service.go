package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultRecent     = 5
	maxRecent         = 50
	pendingQueueLimit = 500
)

// QueryServiceImpl implements ports.QueryService. All reads go straight to
// the store; balances are never cached.
type QueryServiceImpl struct {
	walletRepo  ports.WalletRepository
	entryRepo   ports.EntryRepository
	requestRepo ports.OfflineRequestRepository
}

// NewQueryService creates a new QueryServiceImpl.
func NewQueryService(
	walletRepo ports.WalletRepository,
	entryRepo ports.EntryRepository,
	requestRepo ports.OfflineRequestRepository,
) *QueryServiceImpl {
	return &QueryServiceImpl{
		walletRepo:  walletRepo,
		entryRepo:   entryRepo,
		requestRepo: requestRepo,
	}
}

// GetTransactions returns a page of the retailer's history, newest first.
func (s *QueryServiceImpl) GetTransactions(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	if params.RetailerID == "" {
		return nil, 0, apperror.Validation("retailer id is required")
	}
	if params.Type != nil && !params.Type.Valid() {
		return nil, 0, apperror.Validation("type must be credit or debit")
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrStoreUnavailable(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// GetRecentTransactions returns the latest n entries (default 5, at most 50).
func (s *QueryServiceImpl) GetRecentTransactions(ctx context.Context, retailerID string, n int) ([]domain.LedgerEntry, error) {
	if retailerID == "" {
		return nil, apperror.Validation("retailer id is required")
	}
	switch {
	case n <= 0:
		n = defaultRecent
	case n > maxRecent:
		n = maxRecent
	}

	entries, err := s.entryRepo.Recent(ctx, retailerID, n)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("recent entries: %w", err))
	}
	return entries, nil
}

// ListOfflineRequests pages through offline claims, optionally filtered by
// retailer and status.
func (s *QueryServiceImpl) ListOfflineRequests(ctx context.Context, params ports.OfflineListParams) ([]domain.OfflineRequest, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation("status must be pending, approved or rejected")
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	reqs, total, err := s.requestRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrStoreUnavailable(fmt.Errorf("list offline requests: %w", err))
	}
	return reqs, total, nil
}

// ListMyOfflineRequests pages through one retailer's own claims.
func (s *QueryServiceImpl) ListMyOfflineRequests(ctx context.Context, retailerID string, page, pageSize int) ([]domain.OfflineRequest, int64, error) {
	if retailerID == "" {
		return nil, 0, apperror.Validation("retailer id is required")
	}
	return s.ListOfflineRequests(ctx, ports.OfflineListParams{
		RetailerID: &retailerID,
		Page:       page,
		PageSize:   pageSize,
	})
}

// GetPendingWalletRecharges is the admin approval queue, oldest first.
func (s *QueryServiceImpl) GetPendingWalletRecharges(ctx context.Context) ([]domain.OfflineRequest, error) {
	reqs, err := s.requestRepo.ListPending(ctx, pendingQueueLimit)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("list pending requests: %w", err))
	}
	return reqs, nil
}

// GetWalletSummary is the retailer's landing view.
func (s *QueryServiceImpl) GetWalletSummary(ctx context.Context, retailerID string) (*ports.WalletSummary, error) {
	if retailerID == "" {
		return nil, apperror.Validation("retailer id is required")
	}

	summary := &ports.WalletSummary{RetailerID: retailerID, RecentEntries: []domain.LedgerEntry{}}

	wallet, err := s.walletRepo.GetByRetailerID(ctx, retailerID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		summary.Balance = wallet.Balance
	}

	summary.PendingOffline, err = s.requestRepo.CountPending(ctx, retailerID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("count pending: %w", err))
	}

	recent, err := s.entryRepo.Recent(ctx, retailerID, defaultRecent)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("recent entries: %w", err))
	}
	if recent != nil {
		summary.RecentEntries = recent
	}
	return summary, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
