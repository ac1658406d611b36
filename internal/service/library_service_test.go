package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type statsHarness struct {
	store   *memStore
	mock    sqlmock.Sqlmock
	trigger *StatsTrigger
	courses *CourseService
	library *LibraryService
	stats   *StatsService
}

func newStatsHarness(t *testing.T) *statsHarness {
	t.Helper()
	db, mock := newTxDB(t)
	store := newMemStore()
	trigger := NewStatsTrigger(store.profileRepo(), nil, zap.NewNop())
	h := &statsHarness{
		store:   store,
		mock:    mock,
		trigger: trigger,
		courses: NewCourseService(db, store.courseRepo(), store.enrollmentRepo(), store.profileRepo(), trigger, nil, nil, zap.NewNop(), CourseServiceConfig{}),
		library: NewLibraryService(db, store.enrollmentRepo(), store.courseRepo(), store.profileRepo(), trigger, nil, zap.NewNop()),
		stats:   NewStatsService(db, store.profileRepo(), trigger, nil, zap.NewNop(), 1),
	}
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return h
}

func boolPtr(v bool) *bool { return &v }

func TestLibraryLifecycleKeepsCountersExact(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	h.store.addProfile("user-o", models.RoleUser)
	c1 := h.store.addCourse("user-o", models.AccessPublic, true)
	expectCommits(h.mock, 4)

	u := userActor("user-u")

	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: c1.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStats{Enrolled: 1}, h.store.stats("user-u"))

	uc, err := h.library.SetCompleted(ctx, u, c1.ID, models.UpdateLibraryEntryRequest{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, uc.Completed)
	require.NotNil(t, uc.CompletedAt)
	assert.Equal(t, models.ProfileStats{Enrolled: 1, Completed: 1}, h.store.stats("user-u"))

	_, err = h.courses.Create(ctx, u, textCourseRequest("Go Basics"))
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStats{Enrolled: 1, Completed: 1, Uploads: 1}, h.store.stats("user-u"))

	require.NoError(t, h.library.Remove(ctx, u, c1.ID))
	assert.Equal(t, models.ProfileStats{Uploads: 1}, h.store.stats("user-u"))
	// user-o's course was seeded directly; library events never recompute the uploader.
	assert.Equal(t, models.ProfileStats{}, h.store.stats("user-o"))
}

func TestLibraryEnrollThenRemoveRestoresCounters(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	h.store.addProfile("user-o", models.RoleUser)
	kept := h.store.addCourse("user-o", models.AccessPublic, true)
	extra := h.store.addCourse("user-o", models.AccessPublic, true)
	expectCommits(h.mock, 3)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: kept.ID})
	require.NoError(t, err)
	before := h.store.stats("user-u")

	_, err = h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: extra.ID})
	require.NoError(t, err)
	require.NoError(t, h.library.Remove(ctx, u, extra.ID))

	assert.Equal(t, before, h.store.stats("user-u"))
}

func TestLibraryCompletionToggleRoundTrip(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	h.store.addProfile("user-o", models.RoleUser)
	course := h.store.addCourse("user-o", models.AccessPublic, true)
	expectCommits(h.mock, 3)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: course.ID})
	require.NoError(t, err)
	before := h.store.stats("user-u")

	_, err = h.library.SetCompleted(ctx, u, course.ID, models.UpdateLibraryEntryRequest{Completed: boolPtr(true)})
	require.NoError(t, err)
	uc, err := h.library.SetCompleted(ctx, u, course.ID, models.UpdateLibraryEntryRequest{Completed: boolPtr(false)})
	require.NoError(t, err)

	assert.False(t, uc.Completed)
	assert.Nil(t, uc.CompletedAt)
	assert.Equal(t, before, h.store.stats("user-u"))
	stored := h.store.enrollmentFor("user-u", course.ID)
	require.NotNil(t, stored)
	assert.Nil(t, stored.CompletedAt)
}

func TestLibrarySetCompletedUnchangedSkipsTrigger(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	course := h.store.addCourse("user-u", models.AccessPrivate, true)
	expectCommits(h.mock, 2)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: course.ID})
	require.NoError(t, err)
	recomputes := len(h.store.recomputes)

	_, err = h.library.SetCompleted(ctx, u, course.ID, models.UpdateLibraryEntryRequest{Completed: boolPtr(false)})
	require.NoError(t, err)
	assert.Len(t, h.store.recomputes, recomputes)
}

func TestLibrarySeparateEnrollmentsCommitInAnyOrder(t *testing.T) {
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		order := order
		t.Run("order", func(t *testing.T) {
			h := newStatsHarness(t)
			ctx := context.Background()
			h.store.addProfile("user-u", models.RoleUser)
			h.store.addProfile("user-o", models.RoleUser)
			courses := []*models.Course{
				h.store.addCourse("user-o", models.AccessPublic, true),
				h.store.addCourse("user-o", models.AccessPublic, true),
			}
			expectCommits(h.mock, 2)

			for _, idx := range order {
				_, err := h.library.Add(ctx, userActor("user-u"), models.AddToLibraryRequest{CourseID: courses[idx].ID})
				require.NoError(t, err)
			}
			assert.Equal(t, 2, h.store.stats("user-u").Enrolled)
		})
	}
}

func TestLibraryAddRejectsDuplicate(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	course := h.store.addCourse("user-u", models.AccessPublic, true)
	expectCommits(h.mock, 1)
	expectRollback(h.mock)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: course.ID})
	require.NoError(t, err)

	_, err = h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: course.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, "course is already in your library", appErrors.FromError(err).Message)
	assert.Equal(t, 1, h.store.stats("user-u").Enrolled)
}

func TestLibraryAddHidesUnreadableCourses(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	h.store.addProfile("user-o", models.RoleUser)
	private := h.store.addCourse("user-o", models.AccessPrivate, true)
	premium := h.store.addCourse("user-o", models.AccessPremium, true)
	expectRollback(h.mock)
	expectRollback(h.mock)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: private.ID})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: premium.ID})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, models.ProfileStats{}, h.store.stats("user-u"))
}

func TestLibraryAddUsesStoredRoleForPremiumCourses(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-p", models.RolePremium)
	h.store.addProfile("user-o", models.RoleUser)
	premium := h.store.addCourse("user-o", models.AccessPremium, true)
	expectCommits(h.mock, 1)

	// token role is stale; the profile says premium
	_, err := h.library.Add(ctx, userActor("user-p"), models.AddToLibraryRequest{CourseID: premium.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.stats("user-p").Enrolled)
}

func TestLibraryAddRollsBackWhenRecomputeFails(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	course := h.store.addCourse("user-u", models.AccessPublic, true)
	h.store.recomputeFn = func(string) error { return errors.New("connection reset") }
	expectRollback(h.mock)

	_, err := h.library.Add(ctx, userActor("user-u"), models.AddToLibraryRequest{CourseID: course.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestLibraryRequiresOwnEnrollment(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	expectRollback(h.mock)
	expectRollback(h.mock)

	_, err := h.library.SetCompleted(ctx, userActor("user-u"), "missing-course", models.UpdateLibraryEntryRequest{Completed: boolPtr(true)})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = h.library.Remove(ctx, userActor("user-u"), "missing-course")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = h.library.Add(ctx, userActor(""), models.AddToLibraryRequest{CourseID: "3f2b1a9e-1a2b-4c3d-8e9f-0a1b2c3d4e5f"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestLibraryAddValidatesPayload(t *testing.T) {
	h := newStatsHarness(t)

	_, err := h.library.Add(context.Background(), userActor("user-u"), models.AddToLibraryRequest{CourseID: "not-a-uuid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = h.library.SetCompleted(context.Background(), userActor("user-u"), "c", models.UpdateLibraryEntryRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLibraryListFiltersByCompletion(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RoleUser)
	a := h.store.addCourse("user-u", models.AccessPublic, true)
	b := h.store.addCourse("user-u", models.AccessPublic, true)
	expectCommits(h.mock, 3)

	u := userActor("user-u")
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: a.ID})
	require.NoError(t, err)
	_, err = h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: b.ID})
	require.NoError(t, err)
	_, err = h.library.SetCompleted(ctx, u, b.ID, models.UpdateLibraryEntryRequest{Completed: boolPtr(true)})
	require.NoError(t, err)

	entries, page, err := h.library.List(ctx, u, models.LibraryFilter{Completed: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].CourseID)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, models.DefaultPageSize, page.PageSize)

	_, _, err = h.library.List(ctx, userActor(""), models.LibraryFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestLibraryListHidesCoursesTheOwnerCanNoLongerRead(t *testing.T) {
	h := newStatsHarness(t)
	ctx := context.Background()
	h.store.addProfile("user-u", models.RolePremium)
	h.store.addProfile("user-o", models.RoleUser)
	open := h.store.addCourse("user-o", models.AccessPublic, true)
	premium := h.store.addCourse("user-o", models.AccessPremium, true)
	expectCommits(h.mock, 2)

	u := policy.Actor{UserID: "user-u", Role: models.RolePremium}
	_, err := h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: open.ID})
	require.NoError(t, err)
	_, err = h.library.Add(ctx, u, models.AddToLibraryRequest{CourseID: premium.ID})
	require.NoError(t, err)

	// uploader makes one course private, the reader loses premium
	h.store.courses[open.ID].AccessType = models.AccessPrivate
	h.store.profiles["user-u"].Role = models.RoleUser

	entries, page, err := h.library.List(ctx, userActor("user-u"), models.LibraryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, page.TotalCount)
	for _, entry := range entries {
		assert.Nil(t, entry.Course, entry.CourseID)
	}
	assert.Equal(t, models.ProfileStats{Enrolled: 2}, h.store.stats("user-u"))

	file, err := NewExportService(h.store.enrollmentRepo(), nil, nil, nil).ExportLibrary(ctx, userActor("user-u"), "csv")
	require.NoError(t, err)
	body := string(file.Payload)
	assert.NotContains(t, body, "Course user-o")
	assert.Equal(t, 2, strings.Count(body, unavailableCourse))
}
