package match

import (
	"errors"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

var ErrNilResolver = errors.New("match: nil reference resolver")

// Correlator maps similarity candidates onto locally known reports.
type Correlator struct {
	resolve Resolver
}

func NewCorrelator(resolve Resolver) (*Correlator, error) {
	if resolve == nil {
		return nil, ErrNilResolver
	}
	return &Correlator{resolve: resolve}, nil
}

// Correlate returns the eligible reports hit by candidates, in candidate
// order, each report at most once.
func (c *Correlator) Correlate(candidates []models.MatchCandidate, records []models.Report) []models.Match {
	return Correlate(candidates, records, c.resolve)
}

// CorrelateIndexed is Correlate over a prebuilt index.
func (c *Correlator) CorrelateIndexed(candidates []models.MatchCandidate, idx *Index) []models.Match {
	return idx.Correlate(candidates, c.resolve)
}

// Correlate is the linear form: O(candidates × records × images).
func Correlate(candidates []models.MatchCandidate, records []models.Report, resolve Resolver) []models.Match {
	out := make([]models.Match, 0, len(candidates))
	seen := make(map[uuid.UUID]struct{}, len(candidates))

	for _, cand := range candidates {
		ref := resolve(cand.Reference)
		if ref == "" {
			continue
		}
		r := firstEligible(records, ref)
		if r == nil {
			continue
		}
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

func firstEligible(records []models.Report, ref string) *models.Report {
	for i := range records {
		if records[i].IsFinished {
			continue
		}
		if records[i].HasImage(ref) {
			return &records[i]
		}
	}
	return nil
}
