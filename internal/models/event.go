package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportEventType string

const (
	ReportCreated  ReportEventType = "report_created"
	ReportUpdated  ReportEventType = "report_updated"
	ReportDeleted  ReportEventType = "report_deleted"
	FavoritesSaved ReportEventType = "favorites_saved"
)

// ReportEvent is published to NATS whenever the report store changes.
type ReportEvent struct {
	Type      ReportEventType `json:"type"`
	ReportID  uuid.UUID       `json:"report_id"`
	Report    *Report         `json:"report,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ImageUploaded is the task the matcher consumes to index a new upload.
type ImageUploaded struct {
	Key         string    `json:"key"` // object key, also the service-relative reference
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Timestamp   time.Time `json:"timestamp"`
}
