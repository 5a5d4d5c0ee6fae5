package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(caller domain.Caller) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventGuard rejects replayed gateway callbacks.
type EventGuard interface {
	// CheckAndSet atomically records eventID. Returns true if it was new.
	CheckAndSet(ctx context.Context, source string, eventID string, ttl time.Duration) (bool, error)
	// Release forgets eventID so a redelivery of it is processed again.
	Release(ctx context.Context, source string, eventID string) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the only component that mutates balances.
type LedgerService interface {
	GetBalance(ctx context.Context, retailerID string) (int64, error)
	Credit(ctx context.Context, retailerID string, amount int64, meta domain.EntryMeta) (*domain.LedgerEntry, error)
	Debit(ctx context.Context, retailerID string, amount int64, meta domain.EntryMeta) (*domain.LedgerEntry, error)
	// Adjust is an admin credit or debit honoring an optional idempotency key.
	Adjust(ctx context.Context, req AdjustmentRequest) (*domain.LedgerEntry, error)
}

// AdjustmentRequest holds validated input for an admin balance adjustment.
type AdjustmentRequest struct {
	AdminID        string
	RetailerID     string
	Type           domain.EntryType
	Amount         int64
	Reason         string
	IdempotencyKey string // optional
}

// OnlineRechargeService drives gateway orders into the ledger.
type OnlineRechargeService interface {
	CreateOrder(ctx context.Context, retailerID string, amount int64) (*domain.Order, error)
	CheckOrderStatus(ctx context.Context, caller domain.Caller, orderID string) (*domain.OrderCheckResult, error)
}

// OfflineRechargeService drives manual bank-transfer claims into the ledger.
type OfflineRechargeService interface {
	Submit(ctx context.Context, req SubmitOfflineRequest) (*domain.OfflineRequest, error)
	Process(ctx context.Context, req ProcessOfflineRequest) (*domain.OfflineRequest, error)
}

// SubmitOfflineRequest holds input for a retailer's offline claim.
type SubmitOfflineRequest struct {
	RetailerID  string
	Amount      int64
	Bank        string
	UTR         string
	PaymentDate time.Time
	Mode        string
}

// ProcessOfflineRequest holds an admin decision.
type ProcessOfflineRequest struct {
	RequestID uuid.UUID
	Decision  domain.OfflineStatus
	Remarks   string
	AdminID   string
}

// CallbackService verifies gateway notifications and reconciles the order.
type CallbackService interface {
	Handle(ctx context.Context, payload []byte, signature string) (*domain.OrderCheckResult, error)
}

// QueryService serves read-only views.
type QueryService interface {
	GetTransactions(ctx context.Context, params EntryListParams) ([]domain.LedgerEntry, int64, error)
	GetRecentTransactions(ctx context.Context, retailerID string, n int) ([]domain.LedgerEntry, error)
	ListOfflineRequests(ctx context.Context, params OfflineListParams) ([]domain.OfflineRequest, int64, error)
	ListMyOfflineRequests(ctx context.Context, retailerID string, page, pageSize int) ([]domain.OfflineRequest, int64, error)
	GetPendingWalletRecharges(ctx context.Context) ([]domain.OfflineRequest, error)
	GetWalletSummary(ctx context.Context, retailerID string) (*WalletSummary, error)
}

// WalletSummary is the retailer's wallet landing view.
type WalletSummary struct {
	RetailerID     string               `json:"retailer_id"`
	Balance        int64                `json:"balance"`
	PendingOffline int64                `json:"pending_offline_requests"`
	RecentEntries  []domain.LedgerEntry `json:"recent_transactions"`
}

// AuditService records audit trail entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
