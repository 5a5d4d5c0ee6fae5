package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey makes admin adjustments safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// AdminHandler serves the admin-only wallet operations. Routes are mounted
// behind RequireRole(admin).
type AdminHandler struct {
	ledger  ports.LedgerService
	offline ports.OfflineRechargeService
	query   ports.QueryService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger ports.LedgerService, offline ports.OfflineRechargeService, query ports.QueryService) *AdminHandler {
	return &AdminHandler{ledger: ledger, offline: offline, query: query}
}

// CreditWallet handles POST /api/v1/wallet/credit-wallet.
func (h *AdminHandler) CreditWallet(c *gin.Context) {
	h.adjust(c, domain.EntryTypeCredit)
}

// DebitWallet handles POST /api/v1/wallet/debit-wallet.
func (h *AdminHandler) DebitWallet(c *gin.Context) {
	h.adjust(c, domain.EntryTypeDebit)
}

func (h *AdminHandler) adjust(c *gin.Context, entryType domain.EntryType) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.AdjustWalletRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := money.ToPaise(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > 128 {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters"))
		return
	}

	entry, err := h.ledger.Adjust(c.Request.Context(), ports.AdjustmentRequest{
		AdminID:        caller.ID,
		RetailerID:     req.RetailerID,
		Type:           entryType,
		Amount:         amount,
		Reason:         req.Reason,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, req.RetailerID)
	response.OK(c, toEntryResponse(entry))
}

// ListOfflineRequests handles GET /api/v1/wallet/offline-requests.
func (h *AdminHandler) ListOfflineRequests(c *gin.Context) {
	page, pageSize := pagination(c)
	params := ports.OfflineListParams{Page: page, PageSize: pageSize}
	if s := c.Query("status"); s != "" {
		status := domain.OfflineStatus(s)
		params.Status = &status
	}
	if r := c.Query("retailer_id"); r != "" {
		params.RetailerID = &r
	}

	reqs, total, err := h.query.ListOfflineRequests(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, toOfflineResponses(reqs), total, page, pageSize)
}

// PendingRecharges handles GET /api/v1/wallet/pending-recharges.
func (h *AdminHandler) PendingRecharges(c *gin.Context) {
	reqs, err := h.query.GetPendingWalletRecharges(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOfflineResponses(reqs))
}

// ProcessOfflineRequest handles POST /api/v1/wallet/process-offline-request.
func (h *AdminHandler) ProcessOfflineRequest(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.ProcessOfflineRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		response.Error(c, apperror.Validation("request_id must be a UUID"))
		return
	}

	processed, err := h.offline.Process(c.Request.Context(), ports.ProcessOfflineRequest{
		RequestID: requestID,
		Decision:  domain.OfflineStatus(req.Status),
		Remarks:   req.Remarks,
		AdminID:   caller.ID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, processed.ID.String())
	response.OK(c, toOfflineResponse(processed))
}
