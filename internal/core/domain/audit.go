package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateOrder     AuditAction = "CREATE_ORDER"
	AuditActionCheckOrder      AuditAction = "CHECK_ORDER"
	AuditActionGatewayCallback AuditAction = "GATEWAY_CALLBACK"
	AuditActionOfflineSubmit   AuditAction = "OFFLINE_SUBMIT"
	AuditActionOfflineProcess  AuditAction = "OFFLINE_PROCESS"
	AuditActionAdminCredit     AuditAction = "ADMIN_CREDIT"
	AuditActionAdminDebit      AuditAction = "ADMIN_DEBIT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *string     `json:"actor_id,omitempty"`
	ActorRole    string      `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
