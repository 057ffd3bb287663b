package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/observability"
)

// FileField is the multipart field the similarity service reads.
const FileField = "file"

const maxResponseBytes = 1 << 20

// Client uploads one probe image per call and returns the ranked candidates.
// It never retries.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.MatcherConfig) *Client {
	c := &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

type matchResponse struct {
	Matches *[]map[string]json.RawMessage `json:"matches"`
}

// Match sends image (JPEG bytes) and parses {"matches":[{"image","similarity"}]}.
// Entries lacking either field are dropped; any other body shape is
// ErrMalformed.
func (c *Client) Match(ctx context.Context, image []byte, filename string) ([]models.MatchCandidate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &MatchError{Kind: KindNetwork, Err: err}
		}
	}
	if filename == "" {
		filename = uuid.New().String() + ".jpg"
	}

	body, contentType, err := encodeMultipart(image, filename)
	if err != nil {
		return nil, &MatchError{Kind: KindNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &MatchError{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.SimilarityDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &MatchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &MatchError{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &MatchError{Kind: KindStatus, StatusCode: resp.StatusCode, Err: errors.New(snippet(data))}
	}

	return parseMatches(data)
}

func parseMatches(data []byte) ([]models.MatchCandidate, error) {
	var parsed matchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &MatchError{Kind: KindMalformed, Err: err}
	}
	if parsed.Matches == nil {
		return nil, &MatchError{Kind: KindMalformed, Err: errors.New(`missing "matches"`)}
	}

	out := make([]models.MatchCandidate, 0, len(*parsed.Matches))
	for _, entry := range *parsed.Matches {
		var cand models.MatchCandidate
		rawImage, ok := entry["image"]
		if !ok || json.Unmarshal(rawImage, &cand.Reference) != nil {
			continue
		}
		rawSim, ok := entry["similarity"]
		if !ok || json.Unmarshal(rawSim, &cand.Similarity) != nil {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func encodeMultipart(image []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, filename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
