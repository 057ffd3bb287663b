package vision

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/observability"
	"github.com/your-org/lostfound/internal/storage"
)

type ImageEmbedder interface {
	EmbedImage(data []byte) ([]float32, error)
}

// ObjectSource is where indexed images live.
type ObjectSource interface {
	GetObject(ctx context.Context, key string) (*storage.Object, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Matcher answers similarity queries against every indexed upload.
type Matcher struct {
	embedder      ImageEmbedder
	index         Index
	objects       ObjectSource
	topK          int
	minSimilarity float64
	workers       int
}

func NewMatcher(embedder ImageEmbedder, index Index, objects ObjectSource, cfg config.VisionConfig) *Matcher {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Matcher{
		embedder:      embedder,
		index:         index,
		objects:       objects,
		topK:          cfg.TopK,
		minSimilarity: cfg.MinSimilarity,
		workers:       workers,
	}
}

// Match embeds the probe and returns up to topK indexed images whose cosine
// similarity exceeds minSimilarity, as percentages rounded to two decimals.
func (m *Matcher) Match(ctx context.Context, image []byte) ([]models.MatchCandidate, error) {
	emb, err := m.embedder.EmbedImage(image)
	if err != nil {
		return nil, fmt.Errorf("embed probe: %w", err)
	}

	start := time.Now()
	hits, err := m.index.Search(ctx, emb, m.minSimilarity, m.topK)
	observability.InferenceDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]models.MatchCandidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.MatchCandidate{
			Reference:  h.Key,
			Similarity: Percent(h.Score),
		})
	}
	return out, nil
}

// Percent renders a cosine score as a percentage with two decimals.
func Percent(score float32) float64 {
	return math.Round(float64(score)*100*100) / 100
}

// IndexKey embeds one stored image and adds it to the index.
func (m *Matcher) IndexKey(ctx context.Context, key, source string) error {
	obj, err := m.objects.GetObject(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	emb, err := m.embedder.EmbedImage(obj.Data)
	if err != nil {
		return fmt.Errorf("embed %s: %w", key, err)
	}
	if err := m.index.Add(ctx, key, emb); err != nil {
		return fmt.Errorf("index %s: %w", key, err)
	}
	observability.ImagesIndexed.WithLabelValues(source).Inc()
	return nil
}

// Backfill indexes every stored upload the index does not know yet.
// Unreadable images are logged and skipped. It returns how many were added.
func (m *Matcher) Backfill(ctx context.Context) (int, error) {
	keys, err := m.objects.ListObjects(ctx, storage.ImagePrefix)
	if err != nil {
		return 0, fmt.Errorf("list uploads: %w", err)
	}

	var added atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		g.Go(func() error {
			known, err := m.index.Has(ctx, key)
			if err != nil {
				return fmt.Errorf("check %s: %w", key, err)
			}
			if known {
				return nil
			}
			if err := m.IndexKey(ctx, key, "backfill"); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("skipping image", "key", key, "error", err)
				return nil
			}
			added.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(added.Load()), err
}

// Forget drops keys from the index.
func (m *Matcher) Forget(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return m.index.Delete(ctx, keys)
}
