package domain

import "time"

// OrderStatus is the local lifecycle of an online payment order.
// created -> success | failed, exactly once.
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusSuccess OrderStatus = "success"
	OrderStatusFailed  OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusSuccess, OrderStatusFailed:
		return true
	default:
		return false
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailed
}

// Order is an online recharge attempt tracked against the gateway.
type Order struct {
	OrderID          string      `json:"order_id"`
	RetailerID       string      `json:"retailer_id"`
	Amount           int64       `json:"amount"`
	Status           OrderStatus `json:"status"`
	GatewayReference string      `json:"gateway_reference,omitempty"`
	PaymentURL       string      `json:"payment_url,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// GatewayStatus is the payment state reported by the gateway.
type GatewayStatus string

const (
	GatewayStatusCreated GatewayStatus = "Created"
	GatewayStatusSuccess GatewayStatus = "Success"
	GatewayStatusFailed  GatewayStatus = "Failed"
)

// CheckOutcome describes what a status check did.
type CheckOutcome string

const (
	// OutcomeCredited: this call moved the order to success and credited the wallet.
	OutcomeCredited CheckOutcome = "credited"
	// OutcomeFailed: this call moved the order to failed.
	OutcomeFailed CheckOutcome = "failed"
	// OutcomePending: the gateway has no final answer yet.
	OutcomePending CheckOutcome = "pending"
	// OutcomeAlreadyFinal: the order was terminal before this call.
	OutcomeAlreadyFinal CheckOutcome = "already_final"
	// OutcomeIgnored: a provider event that does not concern any order.
	OutcomeIgnored CheckOutcome = "ignored"
)

// OrderCheckResult is returned by a status check.
type OrderCheckResult struct {
	Order   Order        `json:"order"`
	Outcome CheckOutcome `json:"outcome"`
	Entry   *LedgerEntry `json:"entry,omitempty"`
}
