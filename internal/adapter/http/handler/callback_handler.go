package handler

import (
	"io"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderGatewaySignature carries the hex HMAC-SHA256 of the raw callback body.
	HeaderGatewaySignature = "X-Gateway-Signature"
	// HeaderStripeSignature carries Stripe's timestamped webhook signature.
	HeaderStripeSignature = "Stripe-Signature"
)

// CallbackHandler receives payment gateway notifications.
type CallbackHandler struct {
	svc ports.CallbackService
}

func NewCallbackHandler(svc ports.CallbackService) *CallbackHandler {
	return &CallbackHandler{svc: svc}
}

// Handle handles POST /api/v1/gateway/callback. The body is read raw so the
// signature is checked over exactly the bytes the gateway sent.
func (h *CallbackHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader(HeaderGatewaySignature)
	if signature == "" {
		signature = c.GetHeader(HeaderStripeSignature)
	}

	result, err := h.svc.Handle(c.Request.Context(), body, signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Outcome == domain.OutcomeIgnored {
		response.OK(c, dto.CallbackAckResponse{Outcome: string(result.Outcome)})
		return
	}

	c.Set(middleware.CtxResourceID, result.Order.OrderID)
	response.OK(c, toOrderStatusResponse(result))
}
