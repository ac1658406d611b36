package migrations

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMigrator(t *testing.T, source fstest.MapFS) (*Migrator, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return newMigrator(sqlxDB, source, zap.NewNop()), mock, func() { db.Close() }
}

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"sql/002_more.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"sql/001_init.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"sql/README.md":    {Data: []byte("ignored")},
	}
}

func TestLoadSortsAndFilters(t *testing.T) {
	m, _, cleanup := setupMigrator(t, testSource())
	defer cleanup()

	migs, err := m.Load()
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "001", migs[0].Version)
	assert.Equal(t, "002_more.sql", migs[1].Name)
}

func TestEmbeddedSchemaIsPresent(t *testing.T) {
	m := NewMigrator(nil, nil)
	migs, err := m.Load()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, "001", migs[0].Version)
	assert.Contains(t, migs[0].SQL, "CREATE TABLE IF NOT EXISTS user_courses")
	assert.Contains(t, migs[0].SQL, "user_courses_user_course_key UNIQUE (user_id, course_id)")
}

func TestUpAppliesPendingOnly(t *testing.T) {
	m, mock, cleanup := setupMigrator(t, testSource())
	defer cleanup()

	applied := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}).AddRow("001", "001_init.sql", applied))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)")).
		WithArgs("002", "002_more.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	done, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"002"}, done)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	m, mock, cleanup := setupMigrator(t, testSource())
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, name, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "name", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	done, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Empty(t, done)
	require.NoError(t, mock.ExpectationsWereMet())
}
