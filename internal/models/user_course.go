package models

import "time"

// UserCourse is an enrollment: a course placed in a user's library.
type UserCourse struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	AddedAt     time.Time  `db:"added_at" json:"added_at"`
}

// SetCompleted flips the completion flag, setting the timestamp exactly when it becomes true
// and clearing it when it becomes false. It reports whether anything changed.
func (uc *UserCourse) SetCompleted(completed bool, now time.Time) bool {
	if uc.Completed == completed {
		return false
	}
	uc.Completed = completed
	if completed {
		ts := now.UTC()
		uc.CompletedAt = &ts
	} else {
		uc.CompletedAt = nil
	}
	return true
}

// LibraryEntry is an enrollment joined with its course. Course is nil when the enrolled user can
// no longer read the course, for example after it became private or their premium role lapsed.
type LibraryEntry struct {
	UserCourse
	Course *CourseSummary `db:"-" json:"course"`
}

// LibraryFilter narrows the library listing.
type LibraryFilter struct {
	Completed *bool
	Page      int
	PageSize  int
}

// AddToLibraryRequest enrolls the caller in a course.
type AddToLibraryRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

// UpdateLibraryEntryRequest changes the completion flag of an enrollment.
type UpdateLibraryEntryRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}
