package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

// ReportRequest is the body of POST /v1/reports and PUT /v1/reports/:id.
type ReportRequest struct {
	ImageRefs  []string          `json:"image_refs"`
	Attributes models.Attributes `json:"attributes"`
	IsFinished bool              `json:"is_finished"`
	IsFavorite bool              `json:"is_favorite"`
}

type ReportResponse struct {
	ID         uuid.UUID         `json:"id"`
	ImageRefs  []string          `json:"image_refs"`
	Attributes models.Attributes `json:"attributes"`
	IsFinished bool              `json:"is_finished"`
	IsFavorite bool              `json:"is_favorite"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

type ReportListResponse struct {
	Reports []ReportResponse `json:"reports"`
	Total   int              `json:"total"`
}

// FlagRequest sets a single boolean flag on a report.
type FlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func NewReportResponse(r *models.Report) ReportResponse {
	refs := r.ImageRefs
	if refs == nil {
		refs = []string{}
	}
	return ReportResponse{
		ID:         r.ID,
		ImageRefs:  refs,
		Attributes: r.Attributes,
		IsFinished: r.IsFinished,
		IsFavorite: r.IsFavorite,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
}
