package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeCredit, EntryTypeDebit:
		return true
	default:
		return false
	}
}

// EntrySource names the flow that produced an entry.
type EntrySource string

const (
	SourceOnlineOrder    EntrySource = "online_order"
	SourceOfflineRequest EntrySource = "offline_request"
	SourceAdmin          EntrySource = "admin"
	SourceSystem         EntrySource = "system"
)

func (s EntrySource) Valid() bool {
	switch s {
	case SourceOnlineOrder, SourceOfflineRequest, SourceAdmin, SourceSystem:
		return true
	default:
		return false
	}
}

// EntryMeta is the free-form context stored alongside an entry.
type EntryMeta struct {
	Reason    string      `json:"reason"`
	Source    EntrySource `json:"source"`
	Reference string      `json:"reference,omitempty"`
}

// LedgerEntry is an immutable record of one balance change.
// Reference, when set, is unique across the whole ledger.
type LedgerEntry struct {
	ID           uuid.UUID `json:"id"`
	WalletID     uuid.UUID `json:"wallet_id"`
	RetailerID   string    `json:"retailer_id"`
	Type         EntryType `json:"type"`
	Amount       int64     `json:"amount"`
	Meta         EntryMeta `json:"meta"`
	Reference    *string   `json:"reference,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	Seq          int64     `json:"seq"`
	CreatedAt    time.Time `json:"created_at"`
}

// Signed returns the amount with the sign it contributes to the balance.
func (e *LedgerEntry) Signed() int64 {
	switch e.Type {
	case EntryTypeCredit:
		return e.Amount
	case EntryTypeDebit:
		return -e.Amount
	default:
		return 0
	}
}

// OrderReference is the unique entry reference for an online order credit.
func OrderReference(orderID string) string {
	return "order:" + orderID
}

// OfflineReference is the unique entry reference for an approved offline request.
func OfflineReference(requestID uuid.UUID) string {
	return "offline:" + requestID.String()
}
