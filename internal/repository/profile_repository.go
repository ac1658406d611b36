package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Kshitij83/skillcy/internal/models"
)

const profileColumns = `id, user_id, full_name, avatar_url, role, completed, enrolled, uploads, created_at, updated_at`

// ProfileRepository persists profiles and maintains their derived counters.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile with zeroed counters.
func (r *ProfileRepository) Create(ctx context.Context, exec sqlx.ExtContext, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile payload is nil")
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	profile.Completed, profile.Enrolled, profile.Uploads = 0, 0, 0

	const query = `INSERT INTO profiles (id, user_id, full_name, avatar_url, role, created_at, updated_at)
VALUES (:id, :user_id, :full_name, :avatar_url, :role, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// FindByUserID returns the profile of a user.
func (r *ProfileRepository) FindByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return r.get(ctx, exec, query, userID)
}

// LockByUserID loads the profile holding a row lock until the transaction ends.
func (r *ProfileRepository) LockByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR NO KEY UPDATE`
	return r.get(ctx, exec, query, userID)
}

func (r *ProfileRepository) get(ctx context.Context, exec sqlx.ExtContext, query, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// UpdateDetails writes the owner-editable fields. Role and counters are not touched.
func (r *ProfileRepository) UpdateDetails(ctx context.Context, exec sqlx.ExtContext, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET full_name = :full_name, avatar_url = :avatar_url, updated_at = :updated_at WHERE user_id = :user_id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdateRole changes the access tier of a profile.
func (r *ProfileRepository) UpdateRole(ctx context.Context, exec sqlx.ExtContext, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET role = :role, updated_at = :updated_at WHERE user_id = :user_id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, profile); err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}
	return nil
}

// RecomputeStats sets enrolled, completed and uploads to the live counts for userID and returns
// the number of profile rows updated (0 when the user has no profile).
//
// The profile row is locked first so concurrent recomputes for one user run one after another.
// NO KEY UPDATE does not conflict with the KEY SHARE locks taken by foreign key checks on
// user_courses and courses inserts. The UPDATE is a separate statement, so under READ COMMITTED
// it counts every row committed before the lock was granted.
func (r *ProfileRepository) RecomputeStats(ctx context.Context, exec sqlx.ExtContext, userID string) (int64, error) {
	target := pick(r.db, exec)

	const lockQuery = `SELECT id FROM profiles WHERE user_id = $1 FOR NO KEY UPDATE`
	var id string
	if err := sqlx.GetContext(ctx, target, &id, lockQuery, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("lock profile for stats: %w", err)
	}

	const updateQuery = `
UPDATE profiles SET
	enrolled = (SELECT COUNT(*) FROM user_courses WHERE user_id = $1),
	completed = (SELECT COUNT(*) FROM user_courses WHERE user_id = $1 AND completed),
	uploads = (SELECT COUNT(*) FROM courses WHERE uploader_id = $1),
	updated_at = now()
WHERE user_id = $1`
	res, err := target.ExecContext(ctx, updateQuery, userID)
	if err != nil {
		return 0, fmt.Errorf("recompute profile stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recompute profile stats rows: %w", err)
	}
	return n, nil
}

// LiveStats counts the rows the profile counters are derived from.
func (r *ProfileRepository) LiveStats(ctx context.Context, exec sqlx.ExtContext, userID string) (models.ProfileStats, error) {
	const query = `
SELECT
	(SELECT COUNT(*) FROM user_courses WHERE user_id = $1) AS enrolled,
	(SELECT COUNT(*) FROM user_courses WHERE user_id = $1 AND completed) AS completed,
	(SELECT COUNT(*) FROM courses WHERE uploader_id = $1) AS uploads`
	var stats models.ProfileStats
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &stats, query, userID); err != nil {
		return models.ProfileStats{}, fmt.Errorf("count live stats: %w", err)
	}
	return stats, nil
}

// ListUserIDs returns every profile owner ordered by user id.
func (r *ProfileRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM profiles ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list profile users: %w", err)
	}
	return ids, nil
}
