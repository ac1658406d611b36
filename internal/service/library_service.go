package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type libraryRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, uc *models.UserCourse) error
	LockByUserCourse(ctx context.Context, exec sqlx.ExtContext, userID, courseID string) (*models.UserCourse, error)
	UpdateCompletion(ctx context.Context, exec sqlx.ExtContext, uc *models.UserCourse) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	ListLibrary(ctx context.Context, userID string, filter models.LibraryFilter) ([]models.LibraryEntry, int, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
}

// LibraryService manages enrollments: adding courses to a library, completion and removal.
// Every mutation refreshes the owner's counters in the same transaction.
type LibraryService struct {
	tx          txProvider
	enrollments libraryRepository
	courses     courseFinder
	profiles    profileReader
	trigger     statsDispatcher
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(tx txProvider, enrollments libraryRepository, courses courseFinder, profiles profileReader, trigger statsDispatcher, validate *validator.Validate, logger *zap.Logger) *LibraryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LibraryService{
		tx:          tx,
		enrollments: enrollments,
		courses:     courses,
		profiles:    profiles,
		trigger:     trigger,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Add enrolls actor in a course they can read.
func (s *LibraryService) Add(ctx context.Context, actor policy.Actor, req models.AddToLibraryRequest) (*models.UserCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid library payload")
	}
	if !policy.CanInsertEnrollment(actor, actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollments can only be created for yourself")
	}

	uc := &models.UserCourse{UserID: actor.UserID, CourseID: req.CourseID}
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		course, err := s.courses.FindByID(ctx, tx, req.CourseID)
		if err != nil {
			return storeError(err, "course not found", "failed to load course")
		}
		reader, err := resolveActor(ctx, s.profiles, tx, actor)
		if err != nil {
			return err
		}
		if !policy.CanReadCourse(reader, course) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		if err := s.enrollments.Create(ctx, tx, uc); err != nil {
			return storeError(err, "course not found", "failed to add course to library")
		}
		return s.trigger.Fire(ctx, tx, RowEvent{Table: TableUserCourses, Op: OpInsert, NewUserID: uc.UserID})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("course added to library", zap.String("user_id", uc.UserID), zap.String("course_id", uc.CourseID))
	return uc, nil
}

// SetCompleted marks an enrollment complete or incomplete. The completion timestamp is set
// exactly when the flag becomes true and cleared when it becomes false.
func (s *LibraryService) SetCompleted(ctx context.Context, actor policy.Actor, courseID string, req models.UpdateLibraryEntryRequest) (*models.UserCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid library payload")
	}
	var uc *models.UserCourse
	err := inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		var err error
		uc, err = s.lockOwned(ctx, tx, actor, courseID)
		if err != nil {
			return err
		}
		if !uc.SetCompleted(*req.Completed, s.now()) {
			return nil
		}
		if err := s.enrollments.UpdateCompletion(ctx, tx, uc); err != nil {
			return storeError(err, "library entry not found", "failed to update library entry")
		}
		return s.trigger.Fire(ctx, tx, RowEvent{Table: TableUserCourses, Op: OpUpdate, OldUserID: uc.UserID, NewUserID: uc.UserID})
	})
	if err != nil {
		return nil, err
	}
	return uc, nil
}

// Remove deletes an enrollment from actor's library.
func (s *LibraryService) Remove(ctx context.Context, actor policy.Actor, courseID string) error {
	return inTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		uc, err := s.lockOwned(ctx, tx, actor, courseID)
		if err != nil {
			return err
		}
		if err := s.enrollments.Delete(ctx, tx, uc.ID); err != nil {
			return storeError(err, "library entry not found", "failed to remove library entry")
		}
		return s.trigger.Fire(ctx, tx, RowEvent{Table: TableUserCourses, Op: OpDelete, OldUserID: uc.UserID})
	})
}

// List returns actor's library. Entries whose course the actor can no longer read carry a nil summary.
func (s *LibraryService) List(ctx context.Context, actor policy.Actor, filter models.LibraryFilter) ([]models.LibraryEntry, *models.Pagination, error) {
	if !actor.Authenticated() {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, size, _ := models.NormalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size
	entries, total, err := s.enrollments.ListLibrary(ctx, actor.UserID, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list library")
	}
	if entries == nil {
		entries = []models.LibraryEntry{}
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *LibraryService) lockOwned(ctx context.Context, tx *sqlx.Tx, actor policy.Actor, courseID string) (*models.UserCourse, error) {
	if !actor.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	uc, err := s.enrollments.LockByUserCourse(ctx, tx, actor.UserID, courseID)
	if err != nil {
		return nil, storeError(err, "library entry not found", "failed to load library entry")
	}
	if !policy.CanAccessEnrollment(actor, uc) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "library entry belongs to another user")
	}
	return uc, nil
}
