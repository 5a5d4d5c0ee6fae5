package handler

import (
	"strconv"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/money"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toEntryResponse(e *domain.LedgerEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:           e.ID.String(),
		Type:         string(e.Type),
		Amount:       money.Format(e.Amount),
		BalanceAfter: money.Format(e.BalanceAfter),
		Reason:       e.Meta.Reason,
		Source:       string(e.Meta.Source),
		Reference:    e.Reference,
		CreatedAt:    formatTime(e.CreatedAt),
	}
}

func toEntryResponses(entries []domain.LedgerEntry) []dto.EntryResponse {
	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i]))
	}
	return items
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		OrderID:    o.OrderID,
		RetailerID: o.RetailerID,
		Amount:     money.Format(o.Amount),
		Status:     string(o.Status),
		PaymentURL: o.PaymentURL,
		CreatedAt:  formatTime(o.CreatedAt),
	}
}

func toOrderStatusResponse(r *domain.OrderCheckResult) dto.OrderStatusResponse {
	resp := dto.OrderStatusResponse{
		Order:   toOrderResponse(&r.Order),
		Outcome: string(r.Outcome),
	}
	if r.Entry != nil {
		e := toEntryResponse(r.Entry)
		resp.Entry = &e
	}
	return resp
}

func toOfflineResponse(r *domain.OfflineRequest) dto.OfflineRequestResponse {
	resp := dto.OfflineRequestResponse{
		ID:           r.ID.String(),
		RetailerID:   r.RetailerID,
		Amount:       money.Format(r.Amount),
		Bank:         r.Bank,
		UTR:          r.UTR,
		PaymentDate:  r.PaymentDate.Format("2006-01-02"),
		Mode:         string(r.Mode),
		Status:       string(r.Status),
		AdminRemarks: r.AdminRemarks,
		ProcessedBy:  r.ProcessedBy,
		CreatedAt:    formatTime(r.CreatedAt),
	}
	if r.ProcessedAt != nil {
		s := formatTime(*r.ProcessedAt)
		resp.ProcessedAt = &s
	}
	return resp
}

func toOfflineResponses(reqs []domain.OfflineRequest) []dto.OfflineRequestResponse {
	items := make([]dto.OfflineRequestResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, toOfflineResponse(&reqs[i]))
	}
	return items
}

// requireCaller returns the authenticated caller or writes a 401.
func requireCaller(c *gin.Context) (domain.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrMissingToken())
	}
	return caller, ok
}

// targetRetailer is the wallet a read refers to: always the caller's own,
// except that admins may name any retailer with ?retailer_id=.
func targetRetailer(c *gin.Context, caller domain.Caller) string {
	if caller.IsAdmin() {
		if id := c.Query("retailer_id"); id != "" {
			return id
		}
	}
	return caller.ID
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
