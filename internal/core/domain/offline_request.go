package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentMode is the bank rail used for an offline transfer.
type PaymentMode string

const (
	PaymentModeUPI  PaymentMode = "UPI"
	PaymentModeIMPS PaymentMode = "IMPS"
	PaymentModeNEFT PaymentMode = "NEFT"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeUPI, PaymentModeIMPS, PaymentModeNEFT:
		return true
	default:
		return false
	}
}

// ParsePaymentMode accepts any case; empty means UPI.
func ParsePaymentMode(s string) (PaymentMode, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentModeUPI, true
	}
	m := PaymentMode(strings.ToUpper(s))
	return m, m.Valid()
}

// OfflineStatus is the lifecycle of an offline recharge claim.
// pending -> approved | rejected, exactly once.
type OfflineStatus string

const (
	OfflineStatusPending  OfflineStatus = "pending"
	OfflineStatusApproved OfflineStatus = "approved"
	OfflineStatusRejected OfflineStatus = "rejected"
)

func (s OfflineStatus) Valid() bool {
	switch s {
	case OfflineStatusPending, OfflineStatusApproved, OfflineStatusRejected:
		return true
	default:
		return false
	}
}

func (s OfflineStatus) IsTerminal() bool {
	return s == OfflineStatusApproved || s == OfflineStatusRejected
}

// IsDecision reports whether s is an outcome an admin may choose.
func (s OfflineStatus) IsDecision() bool {
	return s.IsTerminal()
}

// DefaultRemarks is used when an admin decides without a comment.
func (s OfflineStatus) DefaultRemarks() string {
	switch s {
	case OfflineStatusApproved:
		return "Approved by Admin"
	case OfflineStatusRejected:
		return "Rejected by Admin"
	default:
		return ""
	}
}

// OfflineRequest is a retailer's claim of a manual bank transfer.
type OfflineRequest struct {
	ID           uuid.UUID     `json:"id"`
	RetailerID   string        `json:"retailer_id"`
	Amount       int64         `json:"amount"`
	Bank         string        `json:"bank"`
	UTR          string        `json:"utr"`
	PaymentDate  time.Time     `json:"payment_date"`
	Mode         PaymentMode   `json:"mode"`
	Status       OfflineStatus `json:"status"`
	AdminRemarks string        `json:"admin_remarks,omitempty"`
	ProcessedBy  *string       `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NormalizeUTR trims and upper-cases a bank UTR so uniqueness is case-insensitive.
func NormalizeUTR(utr string) string {
	return strings.ToUpper(strings.TrimSpace(utr))
}
