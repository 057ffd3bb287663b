package match_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
)

var idA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
var idB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
var idC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")

func newCorrelator(t *testing.T) *match.Correlator {
	t.Helper()
	c, err := match.NewCorrelator(match.PrefixResolver("http://x/"))
	require.NoError(t, err)
	return c
}

func matchIDs(ms []models.Match) []uuid.UUID {
	out := make([]uuid.UUID, len(ms))
	for i := range ms {
		out[i] = ms[i].Report.ID
	}
	return out
}

func TestNewCorrelatorRejectsNilResolver(t *testing.T) {
	_, err := match.NewCorrelator(nil)
	assert.ErrorIs(t, err, match.ErrNilResolver)
}

func TestCorrelateScenarioFinishedAndUnknown(t *testing.T) {
	records := []models.Report{
		{ID: idA, ImageRefs: []string{"http://x/1.jpg"}},
		{ID: idB, ImageRefs: []string{"http://x/2.jpg"}, IsFinished: true},
	}
	candidates := []models.MatchCandidate{
		{Reference: "1.jpg", Similarity: 91.2},
		{Reference: "2.jpg", Similarity: 88.0},
		{Reference: "3.jpg", Similarity: 50.0},
	}

	got := newCorrelator(t).Correlate(candidates, records)

	require.Len(t, got, 1)
	assert.Equal(t, idA, got[0].Report.ID)
	assert.Equal(t, "1.jpg", got[0].Reference)
	assert.InDelta(t, 91.2, got[0].Similarity, 1e-9)
}

func TestCorrelateEmptyCandidates(t *testing.T) {
	records := []models.Report{{ID: idA, ImageRefs: []string{"http://x/1.jpg"}}}

	got := newCorrelator(t).Correlate(nil, records)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCorrelatePreservesCandidateOrder(t *testing.T) {
	records := []models.Report{
		{ID: idA, ImageRefs: []string{"http://x/a.jpg"}},
		{ID: idB, ImageRefs: []string{"http://x/b.jpg"}},
		{ID: idC, ImageRefs: []string{"http://x/c.jpg"}},
	}
	// lower score first: order follows candidates, not score
	candidates := []models.MatchCandidate{
		{Reference: "c.jpg", Similarity: 51},
		{Reference: "a.jpg", Similarity: 99},
		{Reference: "b.jpg", Similarity: 75},
	}

	got := newCorrelator(t).Correlate(candidates, records)
	assert.Equal(t, []uuid.UUID{idC, idA, idB}, matchIDs(got))
}

func TestCorrelateDeduplicatesAtFirstOccurrence(t *testing.T) {
	records := []models.Report{
		{ID: idA, ImageRefs: []string{"http://x/a1.jpg", "http://x/a2.jpg"}},
		{ID: idB, ImageRefs: []string{"http://x/b.jpg"}},
	}
	candidates := []models.MatchCandidate{
		{Reference: "a2.jpg", Similarity: 90},
		{Reference: "b.jpg", Similarity: 80},
		{Reference: "a1.jpg", Similarity: 70},
	}

	got := newCorrelator(t).Correlate(candidates, records)
	assert.Equal(t, []uuid.UUID{idA, idB}, matchIDs(got))
	assert.Equal(t, "a2.jpg", got[0].Reference)
	assert.InDelta(t, 90, got[0].Similarity, 1e-9)
}

func TestCorrelateSharedImagePrefersFirstEligible(t *testing.T) {
	records := []models.Report{
		{ID: idA, ImageRefs: []string{"http://x/s.jpg"}, IsFinished: true},
		{ID: idB, ImageRefs: []string{"http://x/s.jpg"}},
		{ID: idC, ImageRefs: []string{"http://x/s.jpg"}},
	}
	candidates := []models.MatchCandidate{{Reference: "s.jpg", Similarity: 60}}

	got := newCorrelator(t).Correlate(candidates, records)
	assert.Equal(t, []uuid.UUID{idB}, matchIDs(got))
}

func TestCorrelateExactEquality(t *testing.T) {
	records := []models.Report{{ID: idA, ImageRefs: []string{"http://x/1.jpg"}}}
	candidates := []models.MatchCandidate{
		{Reference: "1.JPG"},
		{Reference: "1.jpg/"},
		{Reference: ""},
	}
	assert.Empty(t, newCorrelator(t).Correlate(candidates, records))
}

func TestCorrelateUnresolvableReferenceIsSkipped(t *testing.T) {
	records := []models.Report{{ID: idA, ImageRefs: []string{"http://x/1.jpg"}}}
	resolve := func(ref string) string {
		if ref == "broken" {
			return ""
		}
		return "http://x/" + ref
	}
	candidates := []models.MatchCandidate{{Reference: "broken"}, {Reference: "1.jpg"}}

	got := match.Correlate(candidates, records, resolve)
	assert.Equal(t, []uuid.UUID{idA}, matchIDs(got))
}

func TestCorrelateDoesNotAliasInput(t *testing.T) {
	records := []models.Report{{ID: idA, ImageRefs: []string{"http://x/1.jpg"}}}
	got := newCorrelator(t).Correlate([]models.MatchCandidate{{Reference: "1.jpg"}}, records)
	require.Len(t, got, 1)

	got[0].Report.ImageRefs[0] = "changed"
	assert.Equal(t, "http://x/1.jpg", records[0].ImageRefs[0])
}

func TestIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	resolve := match.PrefixResolver("http://x/")

	for round := 0; round < 50; round++ {
		records := make([]models.Report, 20)
		for i := range records {
			n := rng.Intn(4)
			refs := make([]string, n)
			for j := range refs {
				refs[j] = resolve(string(rune('a'+rng.Intn(26))) + ".jpg")
			}
			records[i] = models.Report{ID: uuid.New(), ImageRefs: refs, IsFinished: rng.Intn(3) == 0}
		}
		candidates := make([]models.MatchCandidate, 10)
		for i := range candidates {
			candidates[i] = models.MatchCandidate{
				Reference:  string(rune('a'+rng.Intn(26))) + ".jpg",
				Similarity: rng.Float64() * 100,
			}
		}

		linear := match.Correlate(candidates, records, resolve)
		indexed := match.NewIndex(records).Correlate(candidates, resolve)
		assert.Equal(t, linear, indexed, "round %d", round)
	}
}

func TestIndexSkipsFinished(t *testing.T) {
	records := []models.Report{
		{ID: idA, ImageRefs: []string{"http://x/1.jpg"}, IsFinished: true},
		{ID: idB, ImageRefs: []string{"http://x/2.jpg"}},
	}
	idx := match.NewIndex(records)
	assert.Equal(t, 1, idx.Len())

	c := newCorrelator(t)
	got := c.CorrelateIndexed([]models.MatchCandidate{{Reference: "1.jpg"}, {Reference: "2.jpg"}}, idx)
	assert.Equal(t, []uuid.UUID{idB}, matchIDs(got))
}
