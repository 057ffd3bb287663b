package match

import (
	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

// Index maps absolute image references to the first eligible report that
// owns them. Built once per snapshot, it turns correlation into a lookup per
// candidate and yields the same output as the linear scan.
type Index struct {
	records []models.Report
	byRef   map[string]int
}

func NewIndex(records []models.Report) *Index {
	idx := &Index{
		records: records,
		byRef:   make(map[string]int),
	}
	for i := range records {
		if records[i].IsFinished {
			continue
		}
		for _, ref := range records[i].ImageRefs {
			if _, ok := idx.byRef[ref]; !ok {
				idx.byRef[ref] = i
			}
		}
	}
	return idx
}

func (idx *Index) Len() int { return len(idx.byRef) }

func (idx *Index) Correlate(candidates []models.MatchCandidate, resolve Resolver) []models.Match {
	out := make([]models.Match, 0, len(candidates))
	seen := make(map[uuid.UUID]struct{}, len(candidates))

	for _, cand := range candidates {
		ref := resolve(cand.Reference)
		if ref == "" {
			continue
		}
		i, ok := idx.byRef[ref]
		if !ok {
			continue
		}
		r := &idx.records[i]
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, models.Match{
			Report:     r.Clone(),
			Reference:  cand.Reference,
			Similarity: cand.Similarity,
		})
	}
	return out
}
