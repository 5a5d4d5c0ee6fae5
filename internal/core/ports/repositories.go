package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrDuplicate is returned when an insert violates a unique constraint
	// (order id, UTR, entry reference, idempotency key).
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update matched no row.
	ErrConflict = errors.New("state conflict")
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// GetByRetailerID returns nil, nil when the retailer has no wallet yet.
	GetByRetailerID(ctx context.Context, retailerID string) (*domain.Wallet, error)
	// EnsureForUpdate creates the wallet if missing and locks its row until tx ends.
	EnsureForUpdate(ctx context.Context, tx pgx.Tx, retailerID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// EntryRepository is the append-only transaction log.
type EntryRepository interface {
	// Append assigns Seq and CreatedAt. Returns ErrDuplicate if Reference is taken.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
	List(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	Recent(ctx context.Context, retailerID string, limit int) ([]domain.LedgerEntry, error)
}

// EntryListParams holds filter + pagination for a retailer's history.
type EntryListParams struct {
	RetailerID string
	Type       *domain.EntryType
	Page       int
	PageSize   int
}

// OrderRepository tracks online payment orders.
type OrderRepository interface {
	// Create returns ErrDuplicate if the order id already exists.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	// Transition moves a created order to a terminal status. It returns
	// ErrConflict when the order was no longer created.
	Transition(ctx context.Context, tx pgx.Tx, orderID string, to domain.OrderStatus, gatewayRef string) error
	// Touch bumps updated_at of a created order so the sweeper rotates through backlog.
	Touch(ctx context.Context, orderID string) error
	// ListStale returns created orders last touched before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error)
}

// OfflineRequestRepository persists offline recharge claims.
type OfflineRequestRepository interface {
	// Create returns ErrDuplicate if the UTR already exists.
	Create(ctx context.Context, req *domain.OfflineRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OfflineRequest, error)
	GetByUTR(ctx context.Context, utr string) (*domain.OfflineRequest, error)
	// Decide moves a pending request to a terminal status and returns the
	// updated row. It returns ErrConflict when the request was not pending or absent.
	Decide(ctx context.Context, tx pgx.Tx, d OfflineDecision) (*domain.OfflineRequest, error)
	List(ctx context.Context, params OfflineListParams) ([]domain.OfflineRequest, int64, error)
	// ListPending returns pending requests oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.OfflineRequest, error)
	CountPending(ctx context.Context, retailerID string) (int64, error)
}

// OfflineDecision is the column set written when an admin decides a request.
type OfflineDecision struct {
	ID          uuid.UUID
	Status      domain.OfflineStatus
	Remarks     string
	ProcessedBy string
	ProcessedAt time.Time
}

// OfflineListParams holds filter + pagination for offline requests.
type OfflineListParams struct {
	RetailerID *string
	Status     *domain.OfflineStatus
	Page       int
	PageSize   int
}

// IdempotencyRepository defines persistence for idempotency records (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// AuditRepository stores audit trail rows.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
