package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/storage"
	"github.com/your-org/lostfound/pkg/dto"
)

// MaxUploadSize caps a single media upload.
const MaxUploadSize = 20 << 20

type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) (*storage.Object, error)
	DeleteObjects(ctx context.Context, keys []string) error
}

type ImagePublisher interface {
	PublishImageUploaded(ctx context.Context, img *models.ImageUploaded) error
}

type MediaHandler struct {
	objects ObjectStore
	images  ImagePublisher
	baseURL string
}

func NewMediaHandler(objects ObjectStore, images ImagePublisher, baseURL string) *MediaHandler {
	return &MediaHandler{objects: objects, images: images, baseURL: baseURL}
}

// Upload stores a multipart "file" as an image (default) or audio object and
// returns its public URL. New images are queued for indexing.
func (h *MediaHandler) Upload(c *gin.Context) {
	kind := c.DefaultPostForm("kind", "image")
	var prefix string
	switch kind {
	case "image":
		prefix = storage.ImagePrefix
	case "audio":
		prefix = storage.AudioPrefix
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be image or audio"})
		return
	}

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

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	key := ObjectKeyFor(prefix, header.Filename)
	if err := h.objects.PutObject(c.Request.Context(), key, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if kind == "image" && h.images != nil {
		task := &models.ImageUploaded{
			Key:         key,
			ContentType: contentType,
			Size:        int64(len(data)),
			Timestamp:   time.Now().UTC(),
		}
		if err := h.images.PublishImageUploaded(c.Request.Context(), task); err != nil {
			slog.Warn("queue image for indexing", "key", key, "error", err)
		}
	}

	c.JSON(http.StatusCreated, dto.UploadResponse{URL: h.baseURL + key, Key: key})
}

// ObjectKeyFor names a new upload: prefix + random hex + "_" + base filename.
func ObjectKeyFor(prefix, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if name == "" {
		return prefix + id
	}
	return prefix + id + "_" + name
}

// validObjectPath reports whether rel is a non-empty relative key with no
// empty, "." or ".." segments. Dots inside a segment are fine.
func validObjectPath(rel string) bool {
	if rel == "" {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".", "..":
			return false
		}
	}
	return true
}

// Serve returns a handler streaming objects stored under prefix. The route
// must end in a *key wildcard.
func (h *MediaHandler) Serve(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rel := strings.TrimPrefix(c.Param("key"), "/")
		if !validObjectPath(rel) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}

		obj, err := h.objects.GetObject(c.Request.Context(), prefix+rel)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		contentType := obj.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(obj.Data)
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, contentType, obj.Data)
	}
}
