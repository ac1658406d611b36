package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
)

const courseColumns = `c.id, c.title, c.description, c.content_type, c.content_url, c.content_text, c.uploader_id, c.access_type, c.difficulty, c.tags, c.image_url, c.is_approved, c.created_at, c.updated_at`

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course == nil {
		return fmt.Errorf("course payload is nil")
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.AccessType == "" {
		course.AccessType = models.AccessPublic
	}
	if course.Tags == nil {
		course.Tags = pq.StringArray{}
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `
INSERT INTO courses (id, title, description, content_type, content_url, content_text, uploader_id, access_type, difficulty, tags, image_url, is_approved, created_at, updated_at)
VALUES (:id, :title, :description, :content_type, :content_url, :content_text, :uploader_id, :access_type, :difficulty, :tags, :image_url, :is_approved, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course regardless of visibility.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	return r.get(ctx, exec, query, id)
}

// LockByID loads a course holding a row lock until the transaction ends.
func (r *CourseRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1 FOR UPDATE`
	return r.get(ctx, exec, query, id)
}

func (r *CourseRepository) get(ctx context.Context, exec sqlx.ExtContext, query, id string) (*models.Course, error) {
	var course models.Course
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// Update replaces the mutable columns of a course, uploader included.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	if course.Tags == nil {
		course.Tags = pq.StringArray{}
	}
	const query = `
UPDATE courses SET title = :title, description = :description, content_type = :content_type, content_url = :content_url,
	content_text = :content_text, uploader_id = :uploader_id, access_type = :access_type, difficulty = :difficulty,
	tags = :tags, image_url = :image_url, is_approved = :is_approved, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course. Enrollments must be removed first.
func (r *CourseRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// ListVisible returns the courses actor may read, filtered and paginated, with the total count.
func (r *CourseRepository) ListVisible(ctx context.Context, actor policy.Actor, filter models.CourseFilter) ([]models.Course, int, error) {
	args := []interface{}{policy.ActorArg(actor)}
	conditions := []string{policy.CourseVisibilitySQL("c", 1)}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(COALESCE(c.description, '')) LIKE $%d)", len(args), len(args)))
	}
	if filter.ContentType != "" {
		args = append(args, filter.ContentType)
		conditions = append(conditions, fmt.Sprintf("c.content_type = $%d", len(args)))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		conditions = append(conditions, fmt.Sprintf("c.difficulty = $%d", len(args)))
	}
	if filter.AccessType != "" {
		args = append(args, filter.AccessType)
		conditions = append(conditions, fmt.Sprintf("c.access_type = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(c.tags)", len(args)))
	}
	if filter.UploaderID != "" {
		args = append(args, filter.UploaderID)
		conditions = append(conditions, fmt.Sprintf("c.uploader_id = $%d", len(args)))
	}

	baseQuery := "FROM courses c WHERE " + strings.Join(conditions, " AND ")
	_, size, offset := models.NormalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY c.created_at DESC, c.id LIMIT %d OFFSET %d", courseColumns, baseQuery, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListByUploader returns every course uploaded by a user, newest first.
func (r *CourseRepository) ListByUploader(ctx context.Context, uploaderID string, page, pageSize int) ([]models.Course, int, error) {
	_, size, offset := models.NormalizePage(page, pageSize)
	query := fmt.Sprintf("SELECT %s FROM courses c WHERE c.uploader_id = $1 ORDER BY c.created_at DESC, c.id LIMIT %d OFFSET %d", courseColumns, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, uploaderID); err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses c WHERE c.uploader_id = $1`, uploaderID); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}
	return courses, total, nil
}
