package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a retailer's single balance. Created lazily on first mutation,
// never deleted.
type Wallet struct {
	ID         uuid.UUID `json:"id"`
	RetailerID string    `json:"retailer_id"`
	Balance    int64     `json:"balance"` // paise, never negative
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CanDebit reports whether amount can leave the wallet without going negative.
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}

// Role is the caller's role as asserted by the authorization token.
type Role string

const (
	RoleRetailer Role = "retailer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRetailer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Caller is the verified identity attached to a request.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
