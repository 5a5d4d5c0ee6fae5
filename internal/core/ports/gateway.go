package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// PaymentGateway is the external online payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, in GatewayOrderInput) (*GatewayOrder, error)
	GetOrderStatus(ctx context.Context, orderID string) (*GatewayOrderStatus, error)
}

// GatewayOrderInput describes the order to open with the provider.
type GatewayOrderInput struct {
	RetailerID  string
	Amount      int64 // paise
	Description string
}

// GatewayOrder is the provider's answer to CreateOrder.
type GatewayOrder struct {
	OrderID          string
	PaymentURL       string
	GatewayReference string
}

// GatewayOrderStatus is the provider's current view of an order.
type GatewayOrderStatus struct {
	Status           domain.GatewayStatus
	GatewayReference string
}

// CallbackVerifier authenticates a raw gateway notification and extracts
// the order it names. Each provider signs and shapes notifications its own way.
type CallbackVerifier interface {
	Verify(payload []byte, signature string) (*CallbackNotice, error)
}

// CallbackNotice is an authenticated notification. OrderID is empty for
// provider events that do not concern an order.
type CallbackNotice struct {
	EventID string
	OrderID string
}
