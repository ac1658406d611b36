package models

import (
	"time"

	"github.com/lib/pq"
)

// ContentType identifies how a course is delivered.
type ContentType string

const (
	ContentTypeVideo ContentType = "video"
	ContentTypePDF   ContentType = "pdf"
	ContentTypeText  ContentType = "text"
)

// AccessType is the visibility tier of a course.
type AccessType string

const (
	AccessPrivate AccessType = "private"
	AccessPublic  AccessType = "public"
	AccessPremium AccessType = "premium"
)

// Difficulty is an optional course level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Course is a unit of learning content owned by its uploader.
type Course struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description *string        `db:"description" json:"description,omitempty"`
	ContentType ContentType    `db:"content_type" json:"content_type"`
	ContentURL  *string        `db:"content_url" json:"content_url,omitempty"`
	ContentText *string        `db:"content_text" json:"content_text,omitempty"`
	UploaderID  string         `db:"uploader_id" json:"uploader_id"`
	AccessType  AccessType     `db:"access_type" json:"access_type"`
	Difficulty  *Difficulty    `db:"difficulty" json:"difficulty,omitempty"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	ImageURL    *string        `db:"image_url" json:"image_url,omitempty"`
	IsApproved  bool           `db:"is_approved" json:"is_approved"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills a missing image with fallback and normalises nil tags.
func (c *Course) ApplyDefaults(fallback string) {
	if c == nil {
		return
	}
	if fallback != "" && (c.ImageURL == nil || *c.ImageURL == "") {
		img := fallback
		c.ImageURL = &img
	}
	if c.Tags == nil {
		c.Tags = pq.StringArray{}
	}
}

// CourseSummary is the slice of a course embedded in library listings.
type CourseSummary struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	AccessType  AccessType  `db:"access_type" json:"access_type"`
	Difficulty  *Difficulty `db:"difficulty" json:"difficulty,omitempty"`
	UploaderID  string      `db:"uploader_id" json:"uploader_id"`
	ImageURL    *string     `db:"image_url" json:"image_url,omitempty"`
}

// CourseFilter narrows catalog listings. Visibility is applied on top of these filters.
type CourseFilter struct {
	Search      string
	ContentType ContentType
	Difficulty  Difficulty
	AccessType  AccessType
	Tag         string
	UploaderID  string
	Page        int
	PageSize    int
}

// CourseRequest is the payload for creating or replacing a course. The pairing of content_type
// with content_url/content_text is checked by the course service.
type CourseRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	ContentType string   `json:"content_type" validate:"required,oneof=video pdf text"`
	ContentURL  *string  `json:"content_url" validate:"omitempty,url"`
	ContentText *string  `json:"content_text" validate:"omitempty,max=100000"`
	AccessType  string   `json:"access_type" validate:"omitempty,oneof=private public premium"`
	Difficulty  *string  `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Tags        []string `json:"tags" validate:"omitempty,max=20,dive,required,max=32"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,url"`
}
