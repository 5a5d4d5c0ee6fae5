package stripegw

import (
	"net/http"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/stripe/stripe-go/v72/webhook"
)

// sessionEvents are the Checkout Session events that can settle an order.
var sessionEvents = map[string]bool{
	"checkout.session.completed":               true,
	"checkout.session.expired":                 true,
	"checkout.session.async_payment_succeeded": true,
	"checkout.session.async_payment_failed":    true,
}

// WebhookVerifier implements ports.CallbackVerifier for Stripe webhooks.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the endpoint's signing secret (whsec_...).
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify checks the Stripe-Signature header and maps the event to the
// Checkout Session it concerns. Events about anything else come back with
// an empty order id.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (*ports.CallbackNotice, error) {
	if v.secret == "" || signature == "" {
		return nil, apperror.ErrInvalidSignature()
	}

	ev, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return nil, apperror.Wrap("GW_002", "Invalid callback signature", http.StatusUnauthorized, err)
	}

	notice := &ports.CallbackNotice{EventID: ev.ID}
	if !sessionEvents[ev.Type] {
		return notice, nil
	}
	if ev.Data == nil {
		return nil, apperror.Validation("event has no data object")
	}
	id, _ := ev.Data.Object["id"].(string)
	if id == "" {
		return nil, apperror.Validation("event has no session id")
	}
	notice.OrderID = id
	return notice, nil
}
