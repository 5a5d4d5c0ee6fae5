package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_RecordsAdminCredit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	done := make(chan *domain.AuditLog, 1)
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			done <- entry
		},
	)

	r := gin.New()
	r.Use(RequestID(), AuditLog(mockAudit))
	r.POST("/api/v1/wallet/credit-wallet", func(c *gin.Context) {
		c.Set(CtxCaller, domain.Caller{ID: "admin-1", Role: domain.RoleAdmin})
		c.Set(CtxResourceID, "r-42")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/credit-wallet", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionAdminCredit, entry.Action)
		assert.Equal(t, "wallet", entry.ResourceType)
		assert.Equal(t, "r-42", entry.ResourceID)
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, "admin-1", *entry.ActorID)
		assert.Equal(t, "admin", entry.ActorRole)

		var details map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(entry.Details), &details))
		assert.Equal(t, float64(200), details["status"])
		assert.NotEmpty(t, details["request_id"])
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_Skips(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"reads", http.MethodGet, "/api/v1/wallet/transactions", http.StatusOK},
		{"failed writes", http.MethodPost, "/api/v1/wallet/offline-request", http.StatusConflict},
		{"unlisted writes", http.MethodPost, "/api/v1/other", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No expectations: Log must not be called.
			mockAudit := mocks.NewMockAuditService(ctrl)

			r := gin.New()
			r.Use(AuditLog(mockAudit))
			r.Handle(tt.method, tt.path, func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuditedRoutes_KnownActions(t *testing.T) {
	for route, target := range auditedRoutes {
		assert.NotEmpty(t, target.action, route)
		assert.NotEmpty(t, target.resourceType, route)
	}
}
