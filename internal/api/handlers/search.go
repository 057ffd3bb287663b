package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/similarity"
	"github.com/your-org/lostfound/pkg/dto"
)

// SessionHeader scopes remembered matches to one client.
const SessionHeader = "X-Session-ID"

type Finder interface {
	Search(ctx context.Context, session string, image []byte, filename string) ([]models.Match, error)
	Latest(session string) []models.Match
	SaveFavorites(ctx context.Context, session string, edited []models.Report) (match.MergeResult, error)
}

type SearchHandler struct {
	finder Finder
}

func NewSearchHandler(finder Finder) *SearchHandler {
	return &SearchHandler{finder: finder}
}

// Search matches an uploaded probe image against the report store.
func (h *SearchHandler) Search(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty file"})
		return
	}

	matches, err := h.finder.Search(c.Request.Context(), c.GetHeader(SessionHeader), data, header.Filename)
	if err != nil {
		var me *similarity.MatchError
		if errors.As(err, &me) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": me.Kind.String()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NewSearchResponse(matches))
}

func (h *SearchHandler) Latest(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSearchResponse(h.finder.Latest(c.GetHeader(SessionHeader))))
}

// SaveFavorites merges edited matched reports back into the store.
func (h *SearchHandler) SaveFavorites(c *gin.Context) {
	var req dto.FavoritesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.finder.SaveFavorites(c.Request.Context(), c.GetHeader(SessionHeader), req.Reports)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    err.Error(),
			"inserted": res.Inserted,
			"updated":  res.Updated,
		})
		return
	}

	c.JSON(http.StatusOK, dto.FavoritesResponse{Inserted: res.Inserted, Updated: res.Updated})
}
