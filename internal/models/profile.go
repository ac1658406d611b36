package models

import "time"

// Role is the access tier of a profile.
type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// Profile is the public face of a user. Completed, Enrolled and Uploads are derived counters
// maintained by the stats trigger and never written directly.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FullName  *string   `db:"full_name" json:"full_name,omitempty"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role      `db:"role" json:"role"`
	Completed int       `db:"completed" json:"completed"`
	Enrolled  int       `db:"enrolled" json:"enrolled"`
	Uploads   int       `db:"uploads" json:"uploads"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Stats returns the stored counters.
func (p *Profile) Stats() ProfileStats {
	return ProfileStats{Enrolled: p.Enrolled, Completed: p.Completed, Uploads: p.Uploads}
}

// ProfileStats groups the three derived counters.
type ProfileStats struct {
	Enrolled  int `db:"enrolled" json:"enrolled"`
	Completed int `db:"completed" json:"completed"`
	Uploads   int `db:"uploads" json:"uploads"`
}

// StatsDrift compares stored counters with the live counts they are derived from.
type StatsDrift struct {
	UserID string       `json:"user_id"`
	Stored ProfileStats `json:"stored"`
	Live   ProfileStats `json:"live"`
	InSync bool         `json:"in_sync"`
}

// NewStatsDrift builds a drift report.
func NewStatsDrift(userID string, stored, live ProfileStats) StatsDrift {
	return StatsDrift{UserID: userID, Stored: stored, Live: live, InSync: stored == live}
}

// UpdateProfileRequest carries the owner-editable profile fields. A nil field is left unchanged;
// an empty AvatarSeed clears the avatar.
type UpdateProfileRequest struct {
	FullName   *string `json:"full_name" validate:"omitempty,max=120"`
	AvatarSeed *string `json:"avatar_seed" validate:"omitempty,max=64"`
}
