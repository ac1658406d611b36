package models

import "time"

// User represents an identity stored in the users table. Presentation and role live on Profile.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage clamps page and size to sane bounds and returns the SQL offset.
func NormalizePage(page, size int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size, (page - 1) * size
}

// Account joins an identity with its profile for administration listings.
type Account struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Active    bool       `db:"active" json:"active"`
	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
	FullName  *string    `db:"full_name" json:"full_name,omitempty"`
	Role      Role       `db:"role" json:"role"`
	Enrolled  int        `db:"enrolled" json:"enrolled"`
	Completed int        `db:"completed" json:"completed"`
	Uploads   int        `db:"uploads" json:"uploads"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// UserFilter narrows account listings.
type UserFilter struct {
	Search    string
	Role      *Role
	Active    *bool
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// SetRoleRequest assigns a profile role.
type SetRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=user premium admin"`
}

// SetActiveRequest enables or disables sign-in for an identity.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
