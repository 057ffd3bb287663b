package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is one lost or found case.
type Report struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ImageRefs  []string   `json:"image_refs" db:"image_refs"` // absolute URLs, display order
	Attributes Attributes `json:"attributes" db:"attributes"`
	IsFinished bool       `json:"is_finished" db:"is_finished"`
	IsFavorite bool       `json:"is_favorite" db:"is_favorite"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Attributes are the descriptive fields of a report. Matching never looks at them.
type Attributes struct {
	Category     string    `json:"category"`
	Latitude     string    `json:"latitude,omitempty"`
	Longitude    string    `json:"longitude,omitempty"`
	Area         string    `json:"area,omitempty"`
	District     string    `json:"district,omitempty"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description,omitempty"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	AudioRef     string    `json:"audio_ref,omitempty"`
}

// HasImage reports whether ref is one of the report's image references.
func (r *Report) HasImage(ref string) bool {
	for _, img := range r.ImageRefs {
		if img == ref {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with r.
func (r Report) Clone() Report {
	if r.ImageRefs != nil {
		r.ImageRefs = append(make([]string, 0, len(r.ImageRefs)), r.ImageRefs...)
	}
	return r
}
