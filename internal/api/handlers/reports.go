package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/storage"
	"github.com/your-org/lostfound/pkg/dto"
)

// EventPublisher announces report changes.
type EventPublisher interface {
	PublishReportEvent(ctx context.Context, evt *models.ReportEvent) error
}

type ReportHandler struct {
	store   match.RecordStore
	objects ObjectStore
	events  EventPublisher
	baseURL string
	now     func() time.Time
}

// NewReportHandler builds the report CRUD handler. baseURL is the public
// prefix of media this deployment stores; deleting a report removes those
// objects too.
func NewReportHandler(store match.RecordStore, objects ObjectStore, events EventPublisher, baseURL string) *ReportHandler {
	return &ReportHandler{
		store:   store,
		objects: objects,
		events:  events,
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := h.now().UTC()
	r := &models.Report{
		ID:         uuid.New(),
		ImageRefs:  nonNil(req.ImageRefs),
		Attributes: req.Attributes,
		IsFinished: req.IsFinished,
		IsFavorite: req.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := h.store.Upsert(c.Request.Context(), r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publish(c.Request.Context(), models.ReportCreated, r.ID, r)
	c.JSON(http.StatusCreated, dto.NewReportResponse(r))
}

func (h *ReportHandler) List(c *gin.Context) {
	finished, err := boolQuery(c, "finished")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finished filter"})
		return
	}
	favorite, err := boolQuery(c, "favorite")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid favorite filter"})
		return
	}

	reports, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if finished != nil && r.IsFinished != *finished {
			continue
		}
		if favorite != nil && r.IsFavorite != *favorite {
			continue
		}
		resp = append(resp, dto.NewReportResponse(r))
	}

	c.JSON(http.StatusOK, dto.ReportListResponse{Reports: resp, Total: len(resp)})
}

func (h *ReportHandler) Get(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewReportResponse(r))
}

// Update replaces the report's images, attributes and flags.
func (h *ReportHandler) Update(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r.ImageRefs = nonNil(req.ImageRefs)
	r.Attributes = req.Attributes
	r.IsFinished = req.IsFinished
	r.IsFavorite = req.IsFavorite
	h.save(c, r)
}

func (h *ReportHandler) SetFavorite(c *gin.Context) {
	h.setFlag(c, func(r *models.Report, v bool) { r.IsFavorite = v })
}

func (h *ReportHandler) SetFinished(c *gin.Context) {
	h.setFlag(c, func(r *models.Report, v bool) { r.IsFinished = v })
}

func (h *ReportHandler) setFlag(c *gin.Context, apply func(*models.Report, bool)) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apply(r, *req.Value)
	h.save(c, r)
}

func (h *ReportHandler) save(c *gin.Context, r *models.Report) {
	r.UpdatedAt = h.now().UTC()
	if _, err := h.store.Upsert(c.Request.Context(), r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.publish(c.Request.Context(), models.ReportUpdated, r.ID, r)
	c.JSON(http.StatusOK, dto.NewReportResponse(r))
}

// Delete removes the report and the media objects it owns in this deployment.
func (h *ReportHandler) Delete(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.store.Remove(c.Request.Context(), r.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if keys := h.ownedKeys(r); len(keys) > 0 && h.objects != nil {
		if err := h.objects.DeleteObjects(c.Request.Context(), keys); err != nil {
			slog.Warn("delete report media", "report_id", r.ID, "error", err)
		}
	}

	h.publish(c.Request.Context(), models.ReportDeleted, r.ID, r)
	c.Status(http.StatusNoContent)
}

func (h *ReportHandler) ownedKeys(r *models.Report) []string {
	refs := append([]string(nil), r.ImageRefs...)
	if r.Attributes.AudioRef != "" {
		refs = append(refs, r.Attributes.AudioRef)
	}

	var keys []string
	for _, ref := range refs {
		if key, ok := storage.KeyFromURL(h.baseURL, ref); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

func (h *ReportHandler) lookup(c *gin.Context) (*models.Report, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return nil, false
	}

	r, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return nil, false
	}
	return r, true
}

func (h *ReportHandler) publish(ctx context.Context, t models.ReportEventType, id uuid.UUID, r *models.Report) {
	if h.events == nil {
		return
	}
	evt := &models.ReportEvent{Type: t, ReportID: id, Report: r, Timestamp: h.now().UTC()}
	if err := h.events.PublishReportEvent(ctx, evt); err != nil {
		slog.Warn("publish report event", "type", t, "report_id", id, "error", err)
	}
}

func boolQuery(c *gin.Context, name string) (*bool, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nonNil(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}
