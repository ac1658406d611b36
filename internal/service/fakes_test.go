package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
)

// memStore keeps profiles, courses and enrollments in memory. Writes apply immediately; the
// sqlmock-backed transaction only verifies that services begin and finish transactions.
type memStore struct {
	mu          sync.Mutex
	profiles    map[string]*models.Profile
	courses     map[string]*models.Course
	enrollments map[string]*models.UserCourse
	recomputes  []string
	recomputeFn func(userID string) error
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    make(map[string]*models.Profile),
		courses:     make(map[string]*models.Course),
		enrollments: make(map[string]*models.UserCourse),
	}
}

func (m *memStore) addProfile(userID string, role models.Role) *models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Profile{ID: uuid.NewString(), UserID: userID, Role: role}
	m.profiles[userID] = p
	return p
}

func (m *memStore) addCourse(uploaderID string, access models.AccessType, approved bool) *models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &models.Course{
		ID:          uuid.NewString(),
		Title:       "Course " + uploaderID,
		ContentType: models.ContentTypeText,
		UploaderID:  uploaderID,
		AccessType:  access,
		IsApproved:  approved,
		Tags:        pq.StringArray{},
	}
	m.courses[c.ID] = c
	return c
}

func (m *memStore) stats(userID string) models.ProfileStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.ProfileStats{}
	}
	return p.Stats()
}

func (m *memStore) liveLocked(userID string) models.ProfileStats {
	var s models.ProfileStats
	for _, uc := range m.enrollments {
		if uc.UserID != userID {
			continue
		}
		s.Enrolled++
		if uc.Completed {
			s.Completed++
		}
	}
	for _, c := range m.courses {
		if c.UploaderID == userID {
			s.Uploads++
		}
	}
	return s
}

func (m *memStore) enrollmentFor(userID, courseID string) *models.UserCourse {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, uc := range m.enrollments {
		if uc.UserID == userID && uc.CourseID == courseID {
			cp := *uc
			return &cp
		}
	}
	return nil
}

func (m *memStore) profileRepo() *memProfiles       { return &memProfiles{m} }
func (m *memStore) courseRepo() *memCourses         { return &memCourses{m} }
func (m *memStore) enrollmentRepo() *memEnrollments { return &memEnrollments{m} }

type memProfiles struct{ *memStore }

func (r *memProfiles) Create(_ context.Context, _ sqlx.ExtContext, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; ok {
		return &pq.Error{Code: "23505"}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	cp := *p
	r.profiles[p.UserID] = &cp
	return nil
}

func (r *memProfiles) FindByUserID(_ context.Context, _ sqlx.ExtContext, userID string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r *memProfiles) LockByUserID(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.Profile, error) {
	return r.FindByUserID(ctx, exec, userID)
}

func (r *memProfiles) UpdateDetails(_ context.Context, _ sqlx.ExtContext, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[p.UserID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.FullName = p.FullName
	stored.AvatarURL = p.AvatarURL
	return nil
}

func (r *memProfiles) RecomputeStats(_ context.Context, _ sqlx.ExtContext, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputes = append(r.recomputes, userID)
	if r.recomputeFn != nil {
		if err := r.recomputeFn(userID); err != nil {
			return 0, err
		}
	}
	p, ok := r.profiles[userID]
	if !ok {
		return 0, nil
	}
	live := r.liveLocked(userID)
	p.Enrolled, p.Completed, p.Uploads = live.Enrolled, live.Completed, live.Uploads
	return 1, nil
}

func (r *memProfiles) LiveStats(_ context.Context, _ sqlx.ExtContext, userID string) (models.ProfileStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked(userID), nil
}

func (r *memProfiles) ListUserIDs(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type memCourses struct{ *memStore }

func (r *memCourses) Create(_ context.Context, _ sqlx.ExtContext, c *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[c.UploaderID]; !ok {
		return &pq.Error{Code: "23503"}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *memCourses) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *memCourses) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	return r.FindByID(ctx, exec, id)
}

func (r *memCourses) Update(_ context.Context, _ sqlx.ExtContext, c *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[c.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *c
	r.courses[c.ID] = &cp
	return nil
}

func (r *memCourses) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uc := range r.enrollments {
		if uc.CourseID == id {
			return &pq.Error{Code: "23503"}
		}
	}
	if _, ok := r.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.courses, id)
	return nil
}

func (r *memCourses) ListVisible(_ context.Context, actor policy.Actor, filter models.CourseFilter) ([]models.Course, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Course
	for _, c := range r.courses {
		if !policy.CanReadCourse(actor, c) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memCourses) ListByUploader(_ context.Context, uploaderID string, _, _ int) ([]models.Course, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Course
	for _, c := range r.courses {
		if c.UploaderID == uploaderID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

type memEnrollments struct{ *memStore }

func (r *memEnrollments) Create(_ context.Context, _ sqlx.ExtContext, uc *models.UserCourse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[uc.CourseID]; !ok {
		return &pq.Error{Code: "23503"}
	}
	for _, existing := range r.enrollments {
		if existing.UserID == uc.UserID && existing.CourseID == uc.CourseID {
			return &pq.Error{Code: "23505", Constraint: "user_courses_user_course_key"}
		}
	}
	if uc.ID == "" {
		uc.ID = uuid.NewString()
	}
	uc.AddedAt = time.Now().UTC()
	cp := *uc
	r.enrollments[uc.ID] = &cp
	return nil
}

func (r *memEnrollments) LockByUserCourse(_ context.Context, _ sqlx.ExtContext, userID, courseID string) (*models.UserCourse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uc := range r.enrollments {
		if uc.UserID == userID && uc.CourseID == courseID {
			cp := *uc
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memEnrollments) UpdateCompletion(_ context.Context, _ sqlx.ExtContext, uc *models.UserCourse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.enrollments[uc.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Completed = uc.Completed
	stored.CompletedAt = uc.CompletedAt
	return nil
}

func (r *memEnrollments) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.enrollments, id)
	return nil
}

func (r *memEnrollments) DeleteByCourse(_ context.Context, _ sqlx.ExtContext, courseID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []string
	for id, uc := range r.enrollments {
		if uc.CourseID == courseID {
			users = append(users, uc.UserID)
			delete(r.enrollments, id)
		}
	}
	sort.Strings(users)
	return users, nil
}

// library mirrors the repository join: courses the owner cannot read leave a nil summary.
func (r *memEnrollments) library(userID string) []models.LibraryEntry {
	reader := policy.Actor{UserID: userID}
	if p, ok := r.profiles[userID]; ok {
		reader.Role = p.Role
	}
	var out []models.LibraryEntry
	for _, uc := range r.enrollments {
		if uc.UserID != userID {
			continue
		}
		entry := models.LibraryEntry{UserCourse: *uc}
		if c, ok := r.courses[uc.CourseID]; ok && policy.CanReadCourse(reader, c) {
			entry.Course = &models.CourseSummary{ID: c.ID, Title: c.Title, ContentType: c.ContentType, AccessType: c.AccessType, Difficulty: c.Difficulty, UploaderID: c.UploaderID}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

func (r *memEnrollments) ListLibrary(_ context.Context, userID string, filter models.LibraryFilter) ([]models.LibraryEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LibraryEntry
	for _, entry := range r.library(userID) {
		if filter.Completed != nil && entry.Completed != *filter.Completed {
			continue
		}
		out = append(out, entry)
	}
	return out, len(out), nil
}

func (r *memEnrollments) ListAllLibrary(_ context.Context, userID string) ([]models.LibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.library(userID), nil
}

// newTxDB returns a sqlmock-backed pool used only to begin, commit and roll back transactions.
func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func userActor(id string) policy.Actor {
	return policy.Actor{UserID: id, Role: models.RoleUser}
}

func textCourseRequest(title string) models.CourseRequest {
	body := fmt.Sprintf("Body of %s", title)
	return models.CourseRequest{Title: title, ContentType: "text", ContentText: &body, AccessType: "public"}
}

func (r *memProfiles) UpdateRole(_ context.Context, _ sqlx.ExtContext, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.profiles[p.UserID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Role = p.Role
	return nil
}
