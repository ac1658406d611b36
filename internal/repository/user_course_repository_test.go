package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kshitij83/skillcy/internal/models"
)

func TestDeleteByCourseReturnsUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM user_courses WHERE course_id = $1 RETURNING user_id")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u2").AddRow("u1"))

	users, err := repo.DeleteByCourse(context.Background(), nil, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByUserCourseNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_courses WHERE user_id = $1 AND course_id = $2 FOR UPDATE")).
		WithArgs(userID, "c1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LockByUserCourse(context.Background(), nil, userID, "c1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateCompletion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_courses SET completed = ?, completed_at = ? WHERE id = ?")).
		WithArgs(true, now, "uc1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCompletion(context.Background(), nil, &models.UserCourse{ID: "uc1", Completed: true, CompletedAt: &now})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var libraryColumns = []string{"id", "user_id", "course_id", "completed", "completed_at", "added_at",
	"course_ref", "course_title", "course_content_type", "course_access_type", "course_difficulty", "course_uploader_id", "course_image_url"}

func TestListLibraryMapsCourseSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(libraryColumns).
		AddRow("uc1", userID, "c1", true, now, now, "c1", "Go basics", "video", "public", nil, "u9", nil)
	mock.ExpectQuery(`(?s)FROM user_courses uc\s+LEFT JOIN courses c ON c\.id = uc\.course_id AND \(.+\)\s+WHERE uc\.user_id = \$1 AND uc\.completed = \$2 ORDER BY uc\.added_at DESC, uc\.id LIMIT 20 OFFSET 0`).
		WithArgs(userID, true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_courses uc WHERE uc.user_id = $1 AND uc.completed = $2")).
		WithArgs(userID, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	completed := true
	entries, total, err := repo.ListLibrary(context.Background(), userID, models.LibraryFilter{Completed: &completed})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, entries[0].Course)
	assert.Equal(t, "Go basics", entries[0].Course.Title)
	assert.Equal(t, models.ContentTypeVideo, entries[0].Course.ContentType)
	assert.Nil(t, entries[0].Course.Difficulty)
	assert.Equal(t, "c1", entries[0].CourseID)
	assert.True(t, entries[0].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllLibraryHidesUnreadableCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(libraryColumns).
		AddRow("uc1", userID, "c1", false, nil, now, "c1", "Open course", "text", "public", "beginner", "u9", nil).
		AddRow("uc2", userID, "c2", true, now, now, nil, nil, nil, nil, nil, nil, nil)
	// the read predicate lives in the join, bound to the library owner
	mock.ExpectQuery(`(?s)LEFT JOIN courses c ON c\.id = uc\.course_id AND \(\s*\(c\.is_approved AND c\.access_type = 'public'\).+c\.uploader_id = \$1\s*\)\s+WHERE uc\.user_id = \$1 ORDER BY`).
		WithArgs(userID).
		WillReturnRows(rows)

	entries, err := repo.ListAllLibrary(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Course)
	require.NotNil(t, entries[0].Course.Difficulty)
	assert.Equal(t, models.Difficulty("beginner"), *entries[0].Course.Difficulty)
	assert.Nil(t, entries[1].Course)
	assert.Equal(t, "c2", entries[1].CourseID)
	assert.True(t, entries[1].Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserCourseRepository(db)

	mock.ExpectExec("INSERT INTO user_courses").WillReturnResult(sqlmock.NewResult(1, 1))

	uc := &models.UserCourse{UserID: userID, CourseID: "c1"}
	require.NoError(t, repo.Create(context.Background(), nil, uc))
	assert.NotEmpty(t, uc.ID)
	assert.False(t, uc.AddedAt.IsZero())
}
