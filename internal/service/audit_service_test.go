package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
)

type memoryAuditStore struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (m *memoryAuditStore) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memoryAuditStore) List(_ context.Context, _ models.AuditFilter) ([]models.AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.logs...), len(m.logs), nil
}

func (m *memoryAuditStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestAuditServiceRecordsAsynchronously(t *testing.T) {
	store := &memoryAuditStore{}
	svc := NewAuditService(store, AuditOptions{Workers: 1}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	actor := models.Actor{
		User: &models.SessionUser{ID: "u1", Email: "root@golabing.ai", Role: models.RoleOrgAdmin, Impersonating: true},
		IP:   "10.0.0.1",
	}
	svc.Record(actor, models.AuditActionUserCreate, "user", "u2", map[string]string{"email": "new@golabing.ai"})

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)

	logs, page, err := svc.List(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)
	entry := logs[0]
	assert.Equal(t, "u1", entry.ActorID)
	assert.True(t, entry.Impersonating)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "u2", *entry.ResourceID)
	assert.JSONEq(t, `{"email":"new@golabing.ai"}`, string(entry.Details))
}

func TestAuditServiceDisabledWithoutStore(t *testing.T) {
	svc := NewAuditService(nil, AuditOptions{}, nil)
	svc.Start(context.Background())
	svc.Record(models.Actor{}, models.AuditActionLogin, "session", "", nil)
	svc.Stop()

	assert.False(t, svc.Enabled())
	_, _, err := svc.List(context.Background(), models.AuditFilter{})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
