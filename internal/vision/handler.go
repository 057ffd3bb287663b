package vision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/lostfound/internal/models"
)

const maxProbeSize = 20 << 20

type ImageMatcher interface {
	Match(ctx context.Context, image []byte) ([]models.MatchCandidate, error)
}

// MatchHandler serves POST /match_image: multipart "file" in,
// {"matches":[{"image","similarity"}]} out.
func MatchHandler(m ImageMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		defer file.Close()
		if header.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, maxProbeSize+1))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
			return
		}
		if len(data) > maxProbeSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		matches, err := m.Match(c.Request.Context(), data)
		if err != nil {
			if errors.Is(err, ErrUndecodable) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("match image", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		slog.Debug("match image", "file", header.Filename, "matches", len(matches))
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}
