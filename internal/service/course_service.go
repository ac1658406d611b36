package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

const catalogCachePrefix = "catalog:public:"

type courseRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	ListVisible(ctx context.Context, actor policy.Actor, filter models.CourseFilter) ([]models.Course, int, error)
	ListByUploader(ctx context.Context, uploaderID string, page, pageSize int) ([]models.Course, int, error)
}

type courseEnrollmentRepository interface {
	DeleteByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]string, error)
}

type profileReader interface {
	FindByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error)
}

type statsDispatcher interface {
	Fire(ctx context.Context, exec sqlx.ExtContext, events ...RowEvent) error
}

// CourseServiceConfig tunes course presentation and catalog caching.
type CourseServiceConfig struct {
	DefaultImageURL string
	CatalogTTL      time.Duration
}

// CourseService implements course upload, catalog browsing and owner mutations.
type CourseService struct {
	tx          txProvider
	courses     courseRepository
	enrollments courseEnrollmentRepository
	profiles    profileReader
	trigger     statsDispatcher
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         CourseServiceConfig
}

// NewCourseService constructs a CourseService.
func NewCourseService(
	tx txProvider,
	courses courseRepository,
	enrollments courseEnrollmentRepository,
	profiles profileReader,
	trigger statsDispatcher,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CourseServiceConfig,
) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		tx:          tx,
		courses:     courses,
		enrollments: enrollments,
		profiles:    profiles,
		trigger:     trigger,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

type cachedCatalog struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// List returns the catalog page visible to actor. Anonymous pages are served from cache when
// enabled; the second return reports a cache hit.
func (s *CourseService) List(ctx context.Context, actor policy.Actor, filter models.CourseFilter) ([]models.Course, *models.Pagination, bool, error) {
	page, size, _ := models.NormalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size

	var key string
	if !actor.Authenticated() && s.cache.Enabled() {
		key = catalogCacheKey(filter)
		var cached cachedCatalog
		if s.cache.Get(ctx, key, &cached) {
			return cached.Courses, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, true, nil
		}
	}

	courses, total, err := s.courses.ListVisible(ctx, actor, filter)
	if err != nil {
		return nil, nil, false, appErrors.Internal(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	for i := range courses {
		courses[i].ApplyDefaults(s.cfg.DefaultImageURL)
	}
	if key != "" {
		s.cache.Set(ctx, key, cachedCatalog{Courses: courses, Total: total}, s.cfg.CatalogTTL)
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, false, nil
}

// Get returns a course when actor may read it. Unreadable courses are reported as not found.
func (s *CourseService) Get(ctx context.Context, actor policy.Actor, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, nil, id)
	if err != nil {
		return nil, storeError(err, "course not found", "failed to load course")
	}
	actor, err = s.liveActor(ctx, nil, actor)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	course.ApplyDefaults(s.cfg.DefaultImageURL)
	return course, nil
}

// Create uploads a course owned by actor and refreshes the uploader's counters.
func (s *CourseService) Create(ctx context.Context, actor policy.Actor, req models.CourseRequest) (*models.Course, error) {
	if !policy.CanInsertCourse(actor, actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "courses can only be uploaded as yourself")
	}
	course := &models.Course{UploaderID: actor.UserID, IsApproved: true}
	if err := s.applyRequest(course, req); err != nil {
		return nil, err
	}

	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		if err := s.courses.Create(ctx, tx, course); err != nil {
			return storeError(err, "uploader profile not found", "failed to create course")
		}
		return s.trigger.Fire(ctx, tx, RowEvent{Table: TableCourses, Op: OpInsert, NewUserID: course.UploaderID})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("uploader_id", course.UploaderID))
	course.ApplyDefaults(s.cfg.DefaultImageURL)
	return course, nil
}

// Update replaces a course's content. Only the uploader may update; ownership never changes here.
func (s *CourseService) Update(ctx context.Context, actor policy.Actor, id string, req models.CourseRequest) (*models.Course, error) {
	var course *models.Course
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		var err error
		course, err = s.lockForMutation(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		previousOwner := course.UploaderID
		if err := s.applyRequest(course, req); err != nil {
			return err
		}
		if err := s.courses.Update(ctx, tx, course); err != nil {
			return storeError(err, "course not found", "failed to update course")
		}
		return s.trigger.Fire(ctx, tx, RowEvent{Table: TableCourses, Op: OpUpdate, OldUserID: previousOwner, NewUserID: course.UploaderID})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	course.ApplyDefaults(s.cfg.DefaultImageURL)
	return course, nil
}

// Delete removes a course after removing its enrollments, refreshing the counters of every
// enrolled user and of the uploader in the same transaction.
func (s *CourseService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		course, err := s.lockForMutation(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		enrolled, err := s.enrollments.DeleteByCourse(ctx, tx, course.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to remove course enrollments")
		}
		if err := s.courses.Delete(ctx, tx, course.ID); err != nil {
			return storeError(err, "course not found", "failed to delete course")
		}
		events := make([]RowEvent, 0, len(enrolled)+1)
		for _, userID := range enrolled {
			events = append(events, RowEvent{Table: TableUserCourses, Op: OpDelete, OldUserID: userID})
		}
		events = append(events, RowEvent{Table: TableCourses, Op: OpDelete, OldUserID: course.UploaderID})
		if err := s.trigger.Fire(ctx, tx, events...); err != nil {
			return err
		}
		s.logger.Info("course deleted", zap.String("course_id", course.ID), zap.Int("enrollments_removed", len(enrolled)))
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	return nil
}

// ListUploads returns the actor's own courses, whatever their visibility.
func (s *CourseService) ListUploads(ctx context.Context, actor policy.Actor, page, pageSize int) ([]models.Course, *models.Pagination, error) {
	if !actor.Authenticated() {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, size, _ := models.NormalizePage(page, pageSize)
	courses, total, err := s.courses.ListByUploader(ctx, actor.UserID, page, size)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list uploads")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	for i := range courses {
		courses[i].ApplyDefaults(s.cfg.DefaultImageURL)
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// lockForMutation loads and locks a course, hiding it from actors who cannot read it and
// rejecting readers who do not own it.
func (s *CourseService) lockForMutation(ctx context.Context, tx *sqlx.Tx, actor policy.Actor, id string) (*models.Course, error) {
	course, err := s.courses.LockByID(ctx, tx, id)
	if err != nil {
		return nil, storeError(err, "course not found", "failed to load course")
	}
	if policy.CanMutateCourse(actor, course) {
		return course, nil
	}
	actor, err = s.liveActor(ctx, tx, actor)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "only the uploader can modify this course")
}

// liveActor replaces the token role with the role stored on the actor's profile.
func (s *CourseService) liveActor(ctx context.Context, exec sqlx.ExtContext, actor policy.Actor) (policy.Actor, error) {
	return resolveActor(ctx, s.profiles, exec, actor)
}

func (s *CourseService) applyRequest(course *models.Course, req models.CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid course payload")
	}
	contentType := models.ContentType(req.ContentType)
	contentURL := trimmedOrNil(req.ContentURL)
	contentText := trimmedOrNil(req.ContentText)
	switch contentType {
	case models.ContentTypeVideo, models.ContentTypePDF:
		if contentURL == nil {
			return appErrors.Clone(appErrors.ErrValidation, "content_url is required for video and pdf courses")
		}
		contentText = nil
	case models.ContentTypeText:
		if contentText == nil {
			return appErrors.Clone(appErrors.ErrValidation, "content_text is required for text courses")
		}
		contentURL = nil
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return appErrors.Clone(appErrors.ErrValidation, "title is required")
	}

	course.Title = title
	course.Description = trimmedOrNil(req.Description)
	course.ContentType = contentType
	course.ContentURL = contentURL
	course.ContentText = contentText
	course.AccessType = models.AccessPublic
	if req.AccessType != "" {
		course.AccessType = models.AccessType(req.AccessType)
	}
	course.Difficulty = nil
	if d := trimmedOrNil(req.Difficulty); d != nil {
		difficulty := models.Difficulty(*d)
		course.Difficulty = &difficulty
	}
	course.Tags = normalizeTags(req.Tags)
	course.ImageURL = trimmedOrNil(req.ImageURL)
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	s.cache.Invalidate(ctx, catalogCachePrefix+"*")
}

func resolveActor(ctx context.Context, profiles profileReader, exec sqlx.ExtContext, actor policy.Actor) (policy.Actor, error) {
	if !actor.Authenticated() || profiles == nil {
		return actor, nil
	}
	profile, err := profiles.FindByUserID(ctx, exec, actor.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		actor.Role = models.RoleUser
		return actor, nil
	}
	if err != nil {
		return actor, appErrors.Internal(err, "failed to resolve caller profile")
	}
	actor.Role = profile.Role
	return actor, nil
}

func catalogCacheKey(filter models.CourseFilter) string {
	values := url.Values{}
	values.Set("q", strings.ToLower(strings.TrimSpace(filter.Search)))
	values.Set("type", string(filter.ContentType))
	values.Set("difficulty", string(filter.Difficulty))
	values.Set("access", string(filter.AccessType))
	values.Set("tag", filter.Tag)
	values.Set("uploader", filter.UploaderID)
	values.Set("page", strconv.Itoa(filter.Page))
	values.Set("size", strconv.Itoa(filter.PageSize))
	return catalogCachePrefix + values.Encode()
}

func normalizeTags(tags []string) pq.StringArray {
	out := pq.StringArray{}
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
