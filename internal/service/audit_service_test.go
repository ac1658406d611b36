package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/pkg/jobs"
)

type memAuditStore struct {
	mu    sync.Mutex
	logs  []*models.AuditLog
	fails int
}

func (m *memAuditStore) Create(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return errors.New("insert failed")
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAuditStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestAuditServiceWritesInlineWhenStopped(t *testing.T) {
	store := &memAuditStore{}
	svc := NewAuditService(store, zap.NewNop(), jobs.Config{})

	require.NoError(t, svc.Record(context.Background(), &models.AuditLog{Action: models.AuditActionLogin}))
	assert.Equal(t, 1, store.count())
	assert.False(t, store.logs[0].CreatedAt.IsZero())
	require.NoError(t, svc.Record(context.Background(), nil))
}

func TestAuditServiceFlushesQueueOnStop(t *testing.T) {
	store := &memAuditStore{fails: 1}
	svc := NewAuditService(store, zap.NewNop(), jobs.Config{Workers: 2, MaxRetries: 2, RetryMin: time.Millisecond, RetryMax: time.Millisecond})
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(context.Background(), &models.AuditLog{Action: models.AuditActionLibraryAdd}))
	}
	require.NoError(t, svc.Stop(context.Background()))
	assert.Equal(t, 5, store.count())
}
