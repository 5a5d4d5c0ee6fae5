package middleware

import (
	"encoding/json"
	"net/http"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route-template" to the action it performs.
var auditedRoutes = map[string]auditTarget{
	"POST /api/v1/wallet/create-order":            {domain.AuditActionCreateOrder, "order"},
	"POST /api/v1/wallet/check-order-status":      {domain.AuditActionCheckOrder, "order"},
	"POST /api/v1/wallet/credit-wallet":           {domain.AuditActionAdminCredit, "wallet"},
	"POST /api/v1/wallet/debit-wallet":            {domain.AuditActionAdminDebit, "wallet"},
	"POST /api/v1/wallet/offline-request":         {domain.AuditActionOfflineSubmit, "offline_request"},
	"POST /api/v1/wallet/process-offline-request": {domain.AuditActionOfflineProcess, "offline_request"},
	"POST /api/v1/gateway/callback":               {domain.AuditActionGatewayCallback, "order"},
}

// AuditLog records successful write operations after the handler has run.
// Handlers may name the affected resource with c.Set(CtxResourceID, id).
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		target, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		entry := &domain.AuditLog{
			Action:       target.action,
			ResourceType: target.resourceType,
			ResourceID:   c.GetString(CtxResourceID),
			IPAddress:    c.ClientIP(),
		}
		if caller, ok := CallerFrom(c); ok {
			id := caller.ID
			entry.ActorID = &id
			entry.ActorRole = string(caller.Role)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}
