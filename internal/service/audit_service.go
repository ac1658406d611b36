package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/pkg/jobs"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditService writes audit entries off the request path. Entries are queued to a small worker
// pool; when the queue is not running or full they are written inline instead.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue[*models.AuditLog]
	logger *zap.Logger
}

// NewAuditService constructs an AuditService. Call Start to enable background writes.
func NewAuditService(store auditStore, logger *zap.Logger, cfg jobs.Config) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{store: store, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.New("audit", s.write, cfg)
	return s
}

// Start launches the background writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes queued entries.
func (s *AuditService) Stop(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

// Record stores log asynchronously when possible.
func (s *AuditService) Record(ctx context.Context, log *models.AuditLog) error {
	if log == nil {
		return nil
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	err := s.queue.TrySubmit(log)
	if err == nil {
		return nil
	}
	if errors.Is(err, jobs.ErrQueueFull) {
		s.logger.Warn("audit queue full, writing inline", zap.String("action", log.Action))
	}
	return s.write(context.WithoutCancel(ctx), log)
}

func (s *AuditService) write(ctx context.Context, log *models.AuditLog) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.Create(writeCtx, log)
}
