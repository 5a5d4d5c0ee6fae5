package handler

import (
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// RechargeHandler serves the retailer side of offline bank-transfer recharges.
type RechargeHandler struct {
	offline ports.OfflineRechargeService
	query   ports.QueryService
}

// NewRechargeHandler creates a new RechargeHandler.
func NewRechargeHandler(offline ports.OfflineRechargeService, query ports.QueryService) *RechargeHandler {
	return &RechargeHandler{offline: offline, query: query}
}

// SubmitOfflineRequest handles POST /api/v1/wallet/offline-request.
func (h *RechargeHandler) SubmitOfflineRequest(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.OfflineRechargeRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := money.ToPaise(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}
	paymentDate, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		response.Error(c, apperror.Validation("payment_date must be YYYY-MM-DD"))
		return
	}

	created, err := h.offline.Submit(c.Request.Context(), ports.SubmitOfflineRequest{
		RetailerID:  caller.ID,
		Amount:      amount,
		Bank:        req.Bank,
		UTR:         req.UTR,
		PaymentDate: paymentDate,
		Mode:        req.Mode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, created.ID.String())
	response.Created(c, toOfflineResponse(created))
}

// ListMyOfflineRequests handles GET /api/v1/wallet/my-offline-requests.
func (h *RechargeHandler) ListMyOfflineRequests(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	reqs, total, err := h.query.ListMyOfflineRequests(c.Request.Context(), caller.ID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, toOfflineResponses(reqs), total, page, pageSize)
}
