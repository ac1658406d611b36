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
	"github.com/Kshitij83/skillcy/internal/policy"
)

const userCourseColumns = `id, user_id, course_id, completed, completed_at, added_at`

// UserCourseRepository persists enrollments.
type UserCourseRepository struct {
	db *sqlx.DB
}

// NewUserCourseRepository constructs a UserCourseRepository.
func NewUserCourseRepository(db *sqlx.DB) *UserCourseRepository {
	return &UserCourseRepository{db: db}
}

// Create inserts an enrollment. A duplicate (user, course) pair fails with a unique violation.
func (r *UserCourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, uc *models.UserCourse) error {
	if uc == nil {
		return fmt.Errorf("enrollment payload is nil")
	}
	if uc.ID == "" {
		uc.ID = uuid.NewString()
	}
	if uc.AddedAt.IsZero() {
		uc.AddedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_courses (id, user_id, course_id, completed, completed_at, added_at) VALUES (:id, :user_id, :course_id, :completed, :completed_at, :added_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, uc); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// LockByUserCourse loads the enrollment of userID in courseID holding a row lock.
func (r *UserCourseRepository) LockByUserCourse(ctx context.Context, exec sqlx.ExtContext, userID, courseID string) (*models.UserCourse, error) {
	const query = `SELECT ` + userCourseColumns + ` FROM user_courses WHERE user_id = $1 AND course_id = $2 FOR UPDATE`
	var uc models.UserCourse
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &uc, query, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &uc, nil
}

// UpdateCompletion writes the completion flag and timestamp. The user reference is never rewritten.
func (r *UserCourseRepository) UpdateCompletion(ctx context.Context, exec sqlx.ExtContext, uc *models.UserCourse) error {
	const query = `UPDATE user_courses SET completed = :completed, completed_at = :completed_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, uc); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// Delete removes one enrollment.
func (r *UserCourseRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM user_courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// DeleteByCourse removes every enrollment of a course and returns the affected user ids.
func (r *UserCourseRepository) DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]string, error) {
	const query = `DELETE FROM user_courses WHERE course_id = $1 RETURNING user_id`
	var userIDs []string
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &userIDs, query, courseID); err != nil {
		return nil, fmt.Errorf("delete course enrollments: %w", err)
	}
	return userIDs, nil
}

// libraryQuery applies the course read predicate inside the join so a hidden course leaves the
// enrollment listed with a null summary. $1 is the library owner, who is also the reader.
var libraryQuery = `
SELECT uc.id, uc.user_id, uc.course_id, uc.completed, uc.completed_at, uc.added_at,
	c.id AS course_ref, c.title AS course_title, c.content_type AS course_content_type,
	c.access_type AS course_access_type, c.difficulty AS course_difficulty,
	c.uploader_id AS course_uploader_id, c.image_url AS course_image_url
FROM user_courses uc
LEFT JOIN courses c ON c.id = uc.course_id AND ` + policy.CourseVisibilitySQL("c", 1) + `
WHERE uc.user_id = $1`

type libraryRow struct {
	models.UserCourse
	CourseRef         sql.NullString     `db:"course_ref"`
	CourseTitle       sql.NullString     `db:"course_title"`
	CourseContentType sql.NullString     `db:"course_content_type"`
	CourseAccessType  sql.NullString     `db:"course_access_type"`
	CourseDifficulty  *models.Difficulty `db:"course_difficulty"`
	CourseUploaderID  sql.NullString     `db:"course_uploader_id"`
	CourseImageURL    *string            `db:"course_image_url"`
}

func (row libraryRow) entry() models.LibraryEntry {
	entry := models.LibraryEntry{UserCourse: row.UserCourse}
	if row.CourseRef.Valid {
		entry.Course = &models.CourseSummary{
			ID:          row.CourseRef.String,
			Title:       row.CourseTitle.String,
			ContentType: models.ContentType(row.CourseContentType.String),
			AccessType:  models.AccessType(row.CourseAccessType.String),
			Difficulty:  row.CourseDifficulty,
			UploaderID:  row.CourseUploaderID.String,
			ImageURL:    row.CourseImageURL,
		}
	}
	return entry
}

func libraryEntries(rows []libraryRow) []models.LibraryEntry {
	entries := make([]models.LibraryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries
}

// ListLibrary returns the caller's enrollments with course summaries, most recent first.
func (r *UserCourseRepository) ListLibrary(ctx context.Context, userID string, filter models.LibraryFilter) ([]models.LibraryEntry, int, error) {
	args := []interface{}{userID}
	where := ""
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		where = fmt.Sprintf(" AND uc.completed = $%d", len(args))
	}
	_, size, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY uc.added_at DESC, uc.id LIMIT %d OFFSET %d", libraryQuery, where, size, offset)
	var rows []libraryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list library: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM user_courses uc WHERE uc.user_id = $1" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count library: %w", err)
	}
	return libraryEntries(rows), total, nil
}

// ListAllLibrary returns every enrollment of a user for export.
func (r *UserCourseRepository) ListAllLibrary(ctx context.Context, userID string) ([]models.LibraryEntry, error) {
	var rows []libraryRow
	if err := r.db.SelectContext(ctx, &rows, libraryQuery+" ORDER BY uc.added_at DESC, uc.id", userID); err != nil {
		return nil, fmt.Errorf("export library: %w", err)
	}
	return libraryEntries(rows), nil
}
