// Package policy holds the per-row authorization predicates enforced on every read and write.
// Predicates are pure; callers load the rows (locked, for writes) and the actor's live role.
package policy

import (
	"fmt"

	"github.com/Kshitij83/skillcy/internal/models"
)

// Actor is the caller a predicate is evaluated for. The zero value is an anonymous reader.
type Actor struct {
	UserID string
	Role   models.Role
}

// Anonymous is the unauthenticated actor.
var Anonymous = Actor{}

// Authenticated reports whether the actor is signed in.
func (a Actor) Authenticated() bool {
	return a.UserID != ""
}

func (a Actor) is(userID string) bool {
	return a.Authenticated() && a.UserID == userID
}

// HasPremiumAccess reports whether the actor's role unlocks premium courses.
func (a Actor) HasPremiumAccess() bool {
	return a.Role == models.RolePremium || a.Role == models.RoleAdmin
}

// CanReadProfile is true for everyone, anonymous readers included.
func CanReadProfile(Actor) bool {
	return true
}

// CanWriteProfile allows inserting or updating only the actor's own profile. Profiles are never deleted.
func CanWriteProfile(actor Actor, profileUserID string) bool {
	return actor.is(profileUserID)
}

// CanReadCourse: approved public courses for everyone, approved premium courses for premium
// and admin readers, and any course for its uploader.
func CanReadCourse(actor Actor, course *models.Course) bool {
	if course == nil {
		return false
	}
	if actor.is(course.UploaderID) {
		return true
	}
	if !course.IsApproved {
		return false
	}
	switch course.AccessType {
	case models.AccessPublic:
		return true
	case models.AccessPremium:
		return actor.HasPremiumAccess()
	}
	return false
}

// CanInsertCourse requires the new row's uploader to be the actor.
func CanInsertCourse(actor Actor, uploaderID string) bool {
	return actor.is(uploaderID)
}

// CanMutateCourse allows update and delete by the uploader only.
func CanMutateCourse(actor Actor, course *models.Course) bool {
	return course != nil && actor.is(course.UploaderID)
}

// CanAccessEnrollment covers read, update and delete of an enrollment: owner only.
func CanAccessEnrollment(actor Actor, enrollment *models.UserCourse) bool {
	return enrollment != nil && actor.is(enrollment.UserID)
}

// CanInsertEnrollment requires the new row's user to be the actor.
func CanInsertEnrollment(actor Actor, userID string) bool {
	return actor.is(userID)
}

// CourseVisibilitySQL renders CanReadCourse as a WHERE clause over the courses alias. The
// placeholder $n must be bound to the actor's user id, or NULL for anonymous readers, in which
// case only the approved public branch can match. The role is read from profiles at query time.
func CourseVisibilitySQL(alias string, n int) string {
	return fmt.Sprintf(`(
	(%[1]s.is_approved AND %[1]s.access_type = 'public')
	OR (%[1]s.is_approved AND %[1]s.access_type = 'premium' AND EXISTS (
		SELECT 1 FROM profiles vp WHERE vp.user_id = $%[2]d AND vp.role IN ('premium', 'admin')
	))
	OR %[1]s.uploader_id = $%[2]d
)`, alias, n)
}

// ActorArg returns the bind value for CourseVisibilitySQL.
func ActorArg(actor Actor) interface{} {
	if !actor.Authenticated() {
		return nil
	}
	return actor.UserID
}
