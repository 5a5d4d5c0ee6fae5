package handler

import (
	"strconv"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves the retailer-facing wallet and online recharge endpoints.
type WalletHandler struct {
	ledger ports.LedgerService
	online ports.OnlineRechargeService
	query  ports.QueryService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService, online ports.OnlineRechargeService, query ports.QueryService) *WalletHandler {
	return &WalletHandler{ledger: ledger, online: online, query: query}
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	summary, err := h.query.GetWalletSummary(c.Request.Context(), targetRetailer(c, caller))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletSummaryResponse{
		RetailerID:             summary.RetailerID,
		Balance:                money.Format(summary.Balance),
		PendingOfflineRequests: summary.PendingOffline,
		RecentTransactions:     toEntryResponses(summary.RecentEntries),
	})
}

// GetBalance handles GET /api/v1/wallet/wallet-balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	retailerID := targetRetailer(c, caller)

	balance, err := h.ledger.GetBalance(c.Request.Context(), retailerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		RetailerID: retailerID,
		Balance:    money.Format(balance),
	})
}

// CreateOrder handles POST /api/v1/wallet/create-order.
func (h *WalletHandler) CreateOrder(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := money.ToPaise(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	order, err := h.online.CreateOrder(c.Request.Context(), caller.ID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, order.OrderID)
	response.Created(c, toOrderResponse(order))
}

// CheckOrderStatus handles POST /api/v1/wallet/check-order-status.
// Safe to call any number of times; the wallet is credited at most once.
func (h *WalletHandler) CheckOrderStatus(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.CheckOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.online.CheckOrderStatus(c.Request.Context(), caller, req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, req.OrderID)
	response.OK(c, toOrderStatusResponse(result))
}

// GetTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.EntryListParams{
		RetailerID: targetRetailer(c, caller),
		Page:       page,
		PageSize:   pageSize,
	}
	if t := c.Query("type"); t != "" {
		entryType := domain.EntryType(t)
		params.Type = &entryType
	}

	entries, total, err := h.query.GetTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, toEntryResponses(entries), total, page, pageSize)
}

// GetRecentTransactions handles GET /api/v1/wallet/recent-transactions.
func (h *WalletHandler) GetRecentTransactions(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			response.Error(c, apperror.Validation("limit must be a number"))
			return
		}
		limit = n
	}

	entries, err := h.query.GetRecentTransactions(c.Request.Context(), targetRetailer(c, caller), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toEntryResponses(entries))
}
