// Package stripegw is a PaymentGateway backed by Stripe Checkout Sessions.
// The session id doubles as the order id.
package stripegw

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// Gateway implements ports.PaymentGateway.
type Gateway struct {
	api        *client.API
	currency   string
	successURL string
	cancelURL  string
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// New creates a Stripe gateway using the public API.
func New(cfg config.StripeConfig, timeout time.Duration, m *metrics.Metrics, log zerolog.Logger) *Gateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:    &http.Client{Timeout: timeout},
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelWarn},
	})
	return NewWithBackend(cfg, backend, m, log)
}

// NewWithBackend creates a Stripe gateway on an explicit API backend.
func NewWithBackend(cfg config.StripeConfig, backend stripe.Backend, m *metrics.Metrics, log zerolog.Logger) *Gateway {
	api := client.New(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	return &Gateway{
		api:        api,
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		metrics:    m,
		log:        log,
	}
}

// CreateOrder opens a Checkout Session for a wallet top-up.
func (g *Gateway) CreateOrder(ctx context.Context, in ports.GatewayOrderInput) (out *ports.GatewayOrder, err error) {
	defer func(start time.Time) { g.metrics.ObserveGatewayCall("create_order", start, err) }(time.Now())

	description := in.Description
	if description == "" {
		description = "Wallet recharge"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(in.RetailerID),
		SuccessURL:         stripe.String(g.successURL),
		CancelURL:          stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(in.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("retailer_id", in.RetailerID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.log.Warn().Err(err).Str("retailer_id", in.RetailerID).Msg("stripe checkout session create failed")
		return nil, fmt.Errorf("stripe create session: %w", err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe create session: no checkout url for %s", sess.ID)
	}

	return &ports.GatewayOrder{
		OrderID:          sess.ID,
		PaymentURL:       sess.URL,
		GatewayReference: paymentIntentID(sess),
	}, nil
}

// GetOrderStatus reads the Checkout Session back.
func (g *Gateway) GetOrderStatus(ctx context.Context, orderID string) (out *ports.GatewayOrderStatus, err error) {
	defer func(start time.Time) { g.metrics.ObserveGatewayCall("order_status", start, err) }(time.Now())

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.Get(orderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get session: %w", err)
	}

	return &ports.GatewayOrderStatus{
		Status:           mapSession(sess),
		GatewayReference: paymentIntentID(sess),
	}, nil
}

func mapSession(sess *stripe.CheckoutSession) domain.GatewayStatus {
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return domain.GatewayStatusSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return domain.GatewayStatusFailed
	default:
		return domain.GatewayStatusCreated
	}
}

func paymentIntentID(sess *stripe.CheckoutSession) string {
	if sess.PaymentIntent == nil {
		return ""
	}
	return sess.PaymentIntent.ID
}
