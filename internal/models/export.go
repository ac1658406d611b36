package models

import "time"

// ExportLink is a time-limited download of a stored library export.
type ExportLink struct {
	Token     string    `json:"-"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}
