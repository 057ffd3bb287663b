package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

// WSEvent is a WebSocket message for real-time report changes.
type WSEvent struct {
	Type      string          `json:"type"` // report_created, report_updated, report_deleted, favorites_saved
	ReportID  uuid.UUID       `json:"report_id"`
	Report    *ReportResponse `json:"report,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewWSEvent(evt *models.ReportEvent) *WSEvent {
	out := &WSEvent{
		Type:      string(evt.Type),
		ReportID:  evt.ReportID,
		Timestamp: evt.Timestamp.Format(time.RFC3339),
	}
	if evt.Report != nil {
		r := NewReportResponse(evt.Report)
		out.Report = &r
	}
	return out
}
