package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
	"github.com/Kshitij83/skillcy/pkg/tracing"
)

// Table names a table whose row changes dispatch the stats trigger.
type Table string

const (
	TableUserCourses Table = "user_courses"
	TableCourses     Table = "courses"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// RowEvent describes one committed-in-transaction row change. OldUserID and NewUserID carry the
// row's owner (user_id for enrollments, uploader_id for courses) before and after the change.
type RowEvent struct {
	Table     Table
	Op        Op
	OldUserID string
	NewUserID string
}

// AffectedUsers returns whose counters the event invalidates: the new owner on insert, the old
// owner on delete, and both on an update that changed ownership.
func (e RowEvent) AffectedUsers() []string {
	switch e.Op {
	case OpInsert:
		return nonEmpty(e.NewUserID)
	case OpDelete:
		return nonEmpty(e.OldUserID)
	case OpUpdate:
		if e.OldUserID != e.NewUserID {
			return nonEmpty(e.NewUserID, e.OldUserID)
		}
		return nonEmpty(e.NewUserID)
	}
	return nil
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

type statsRecomputer interface {
	RecomputeStats(ctx context.Context, exec sqlx.ExtContext, userID string) (int64, error)
}

// StatsTrigger keeps profile counters equal to their defining counts. It recomputes, never
// increments, and runs inside the caller's transaction so a failure aborts the mutation.
type StatsTrigger struct {
	profiles statsRecomputer
	metrics  *MetricsService
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewStatsTrigger constructs a StatsTrigger.
func NewStatsTrigger(profiles statsRecomputer, metrics *MetricsService, logger *zap.Logger) *StatsTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsTrigger{profiles: profiles, metrics: metrics, logger: logger, tracer: tracing.Tracer()}
}

// Fire recomputes the counters of every user affected by events using exec, which must be the
// transaction that made the row changes. Users are recomputed once each in ascending id order so
// transactions touching several profiles lock them in the same order.
func (t *StatsTrigger) Fire(ctx context.Context, exec sqlx.ExtContext, events ...RowEvent) error {
	if len(events) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var users []string
	for _, ev := range events {
		t.metrics.RecordStatsEvent(ev.Table, ev.Op)
		for _, id := range ev.AffectedUsers() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			users = append(users, id)
		}
	}
	sort.Strings(users)

	ctx, span := t.tracer.Start(ctx, "stats.trigger",
		trace.WithAttributes(
			attribute.String("stats.table", string(events[0].Table)),
			attribute.String("stats.op", string(events[0].Op)),
			attribute.Int("stats.events", len(events)),
			attribute.Int("stats.users", len(users)),
		),
	)
	defer span.End()

	for _, userID := range users {
		if _, err := t.Recompute(ctx, exec, userID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "recompute failed")
			return err
		}
	}
	return nil
}

// Recompute is recomputeStats for one user. A user without a profile is a silent no-op.
func (t *StatsTrigger) Recompute(ctx context.Context, exec sqlx.ExtContext, userID string) (bool, error) {
	start := time.Now()
	n, err := t.profiles.RecomputeStats(ctx, exec, userID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to recompute profile statistics")
	}
	t.metrics.ObserveStatsRecompute(time.Since(start), n > 0)
	if n == 0 {
		t.logger.Debug("stats recompute matched no profile", zap.String("user_id", userID))
	}
	return n > 0, nil
}
