package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kshitij83/skillcy/internal/models"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type statsProfileRepository interface {
	FindByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error)
	LiveStats(ctx context.Context, exec sqlx.ExtContext, userID string) (models.ProfileStats, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// RecomputeSummary reports a bulk recompute.
type RecomputeSummary struct {
	Users   int `json:"users"`
	Updated int `json:"updated"`
}

// StatsService exposes operator tools around the stats trigger: drift checks and standalone
// recomputes. Normal mutations never call it; they fire the trigger in their own transaction.
type StatsService struct {
	tx          txProvider
	profiles    statsProfileRepository
	trigger     *StatsTrigger
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
}

// NewStatsService constructs a StatsService.
func NewStatsService(tx txProvider, profiles statsProfileRepository, trigger *StatsTrigger, metrics *MetricsService, logger *zap.Logger, concurrency int) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StatsService{tx: tx, profiles: profiles, trigger: trigger, metrics: metrics, logger: logger, concurrency: concurrency}
}

// Check compares a profile's stored counters with live counts in one consistent snapshot.
func (s *StatsService) Check(ctx context.Context, userID string) (*models.StatsDrift, error) {
	var drift models.StatsDrift
	err := inTx(ctx, s.tx, readSnapshot, func(tx *sqlx.Tx) error {
		profile, err := s.profiles.FindByUserID(ctx, tx, userID)
		if err != nil {
			return storeError(err, "profile not found", "failed to load profile")
		}
		live, err := s.profiles.LiveStats(ctx, tx, userID)
		if err != nil {
			return appErrors.Internal(err, "failed to count live statistics")
		}
		drift = models.NewStatsDrift(userID, profile.Stats(), live)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !drift.InSync {
		s.metrics.RecordStatsDrift()
		s.logger.Warn("profile statistics drift detected",
			zap.String("user_id", userID),
			zap.Any("stored", drift.Stored),
			zap.Any("live", drift.Live),
		)
	}
	return &drift, nil
}

// Recompute recomputes one profile in its own transaction and returns the refreshed row.
func (s *StatsService) Recompute(ctx context.Context, userID string) (*models.Profile, error) {
	var profile *models.Profile
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		matched, err := s.trigger.Recompute(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !matched {
			return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		profile, err = s.profiles.FindByUserID(ctx, tx, userID)
		if err != nil {
			return storeError(err, "profile not found", "failed to load profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile statistics recomputed", zap.String("user_id", userID))
	return profile, nil
}

// RecomputeAll recomputes every profile, each in its own transaction, with bounded parallelism.
func (s *StatsService) RecomputeAll(ctx context.Context) (*RecomputeSummary, error) {
	ids, err := s.profiles.ListUserIDs(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list profiles")
	}
	var updated int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return inTx(gctx, s.tx, nil, func(tx *sqlx.Tx) error {
				matched, err := s.trigger.Recompute(gctx, tx, id)
				if err == nil && matched {
					atomic.AddInt64(&updated, 1)
				}
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary := &RecomputeSummary{Users: len(ids), Updated: int(updated)}
	s.logger.Info("bulk statistics recompute finished", zap.Int("users", summary.Users), zap.Int("updated", summary.Updated))
	return summary, nil
}

// CheckAll returns the drift report of every profile that is out of sync.
func (s *StatsService) CheckAll(ctx context.Context) ([]models.StatsDrift, error) {
	ids, err := s.profiles.ListUserIDs(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list profiles")
	}
	var (
		mu      sync.Mutex
		drifted []models.StatsDrift
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			drift, err := s.Check(gctx, id)
			if err != nil {
				return err
			}
			if !drift.InSync {
				mu.Lock()
				drifted = append(drifted, *drift)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(drifted, func(i, j int) bool { return drifted[i].UserID < drifted[j].UserID })
	return drifted, nil
}
