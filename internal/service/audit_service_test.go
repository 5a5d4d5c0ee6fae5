package service

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			if log.Action != domain.AuditActionOfflineProcess {
				t.Errorf("expected OFFLINE_PROCESS, got %s", log.Action)
			}
			if log.ID == uuid.Nil || log.CreatedAt.IsZero() {
				t.Errorf("id and created_at should be filled in")
			}
			close(done)
			return nil
		},
	)

	admin := "admin-1"
	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{
		ActorID:      &admin,
		ActorRole:    string(domain.RoleAdmin),
		Action:       domain.AuditActionOfflineProcess,
		ResourceType: "offline_request",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
	})
	cancel() // request finishing must not abort the write

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionCreateOrder,
		ResourceType: "order",
		IPAddress:    "127.0.0.1",
	})

	time.Sleep(50 * time.Millisecond)
}
