package vision

import (
	"context"
	"sort"
	"sync"

	"github.com/your-org/lostfound/internal/models"
)

// Index stores image embeddings by object key and answers nearest-neighbour
// queries by cosine similarity.
type Index interface {
	Add(ctx context.Context, key string, embedding []float32) error
	Has(ctx context.Context, key string) (bool, error)
	// Search returns hits with score strictly above minScore, best first.
	Search(ctx context.Context, embedding []float32, minScore float64, limit int) ([]models.ImageHit, error)
	Delete(ctx context.Context, keys []string) error
}

// EmbeddingStore is the pgvector side of storage.PostgresStore.
type EmbeddingStore interface {
	AddImageEmbedding(ctx context.Context, key string, embedding []float32) error
	HasImageEmbedding(ctx context.Context, key string) (bool, error)
	SearchImages(ctx context.Context, embedding []float32, minScore float64, limit int) ([]models.ImageHit, error)
	DeleteImageEmbeddings(ctx context.Context, keys []string) error
}

type pgvectorIndex struct {
	store EmbeddingStore
}

// NewPgvectorIndex serves the index from the image_embeddings table.
func NewPgvectorIndex(store EmbeddingStore) Index {
	return pgvectorIndex{store: store}
}

func (p pgvectorIndex) Add(ctx context.Context, key string, embedding []float32) error {
	return p.store.AddImageEmbedding(ctx, key, embedding)
}

func (p pgvectorIndex) Has(ctx context.Context, key string) (bool, error) {
	return p.store.HasImageEmbedding(ctx, key)
}

func (p pgvectorIndex) Search(ctx context.Context, embedding []float32, minScore float64, limit int) ([]models.ImageHit, error) {
	return p.store.SearchImages(ctx, embedding, minScore, limit)
}

func (p pgvectorIndex) Delete(ctx context.Context, keys []string) error {
	return p.store.DeleteImageEmbeddings(ctx, keys)
}

// MemoryIndex is a linear-scan index for single-node deployments. It is
// rebuilt by the startup backfill.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

func (m *MemoryIndex) Add(_ context.Context, key string, embedding []float32) error {
	v := append([]float32(nil), embedding...)
	m.mu.Lock()
	m.vectors[key] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.vectors[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryIndex) Delete(_ context.Context, keys []string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.vectors, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func (m *MemoryIndex) Search(_ context.Context, embedding []float32, minScore float64, limit int) ([]models.ImageHit, error) {
	m.mu.RLock()
	hits := make([]models.ImageHit, 0)
	for key, v := range m.vectors {
		score := CosineSimilarity(embedding, v)
		if float64(score) > minScore {
			hits = append(hits, models.ImageHit{Key: key, Score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
