package dto

import (
	"github.com/shopspring/decimal"
)

// Amounts cross the API as rupees (number or string, at most two decimals)
// and are converted to paise before reaching the services.

// CreateOrderRequest is the request body for starting an online recharge.
type CreateOrderRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"money"`
}

// CheckOrderStatusRequest is the request body for an order status check.
type CheckOrderStatusRequest struct {
	OrderID string `json:"order_id" binding:"required,max=255,safe_id"`
}

// AdjustWalletRequest is the request body for an admin credit or debit.
type AdjustWalletRequest struct {
	RetailerID string          `json:"retailer_id" binding:"required,max=64,safe_id"`
	Amount     decimal.Decimal `json:"amount" binding:"money"`
	Reason     string          `json:"reason" binding:"max=255"`
}

// OfflineRechargeRequest is the request body for a bank-transfer claim.
type OfflineRechargeRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"money"`
	Bank        string          `json:"bank" binding:"required,max=100"`
	UTR         string          `json:"utr" binding:"required,utr"`
	PaymentDate string          `json:"payment_date" binding:"required,datetime=2006-01-02"`
	Mode        string          `json:"mode" binding:"payment_mode"`
}

// ProcessOfflineRequest is the request body for an admin decision.
type ProcessOfflineRequest struct {
	RequestID string `json:"request_id" binding:"required,uuid"`
	Status    string `json:"status" binding:"required,oneof=approved rejected"`
	Remarks   string `json:"remarks" binding:"max=500"`
}

// EntryResponse is a ledger entry as shown to clients.
type EntryResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Amount       string  `json:"amount"`
	BalanceAfter string  `json:"balance_after"`
	Reason       string  `json:"reason"`
	Source       string  `json:"source"`
	Reference    *string `json:"reference,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// OrderResponse is an online order as shown to clients.
type OrderResponse struct {
	OrderID    string `json:"order_id"`
	RetailerID string `json:"retailer_id"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// OrderStatusResponse is the result of an order status check.
type OrderStatusResponse struct {
	Order   OrderResponse  `json:"order"`
	Outcome string         `json:"outcome"`
	Entry   *EntryResponse `json:"entry,omitempty"`
}

// CallbackAckResponse acknowledges a gateway event that names no order.
type CallbackAckResponse struct {
	Outcome string `json:"outcome"`
}

// OfflineRequestResponse is an offline claim as shown to clients.
type OfflineRequestResponse struct {
	ID           string  `json:"id"`
	RetailerID   string  `json:"retailer_id"`
	Amount       string  `json:"amount"`
	Bank         string  `json:"bank"`
	UTR          string  `json:"utr"`
	PaymentDate  string  `json:"payment_date"`
	Mode         string  `json:"mode"`
	Status       string  `json:"status"`
	AdminRemarks string  `json:"admin_remarks,omitempty"`
	ProcessedBy  *string `json:"processed_by,omitempty"`
	ProcessedAt  *string `json:"processed_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	RetailerID string `json:"retailer_id"`
	Balance    string `json:"balance"`
}

// WalletSummaryResponse is the wallet landing view.
type WalletSummaryResponse struct {
	RetailerID             string          `json:"retailer_id"`
	Balance                string          `json:"balance"`
	PendingOfflineRequests int64           `json:"pending_offline_requests"`
	RecentTransactions     []EntryResponse `json:"recent_transactions"`
}
