package finder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/similarity"
	"github.com/your-org/lostfound/internal/storage"
)

type fakeClient struct {
	candidates []models.MatchCandidate
	err        error
	calls      int
}

func (f *fakeClient) Match(_ context.Context, _ []byte, _ string) ([]models.MatchCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.ReportEvent
}

func (p *recordingPublisher) PublishReportEvent(_ context.Context, evt *models.ReportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newService(t *testing.T, client SimilarityClient, store match.RecordStore, pub EventPublisher, opts ...Option) *Service {
	t.Helper()
	corr, err := match.NewCorrelator(match.PrefixResolver("http://x/"))
	require.NoError(t, err)
	svc, err := New(client, store, corr, pub, opts...)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestNewRequiresCollaborators(t *testing.T) {
	corr, _ := match.NewCorrelator(match.PrefixResolver("http://x/"))
	_, err := New(nil, storage.NewMemoryStore(), corr, nil)
	assert.Error(t, err)
	_, err = New(&fakeClient{}, nil, corr, nil)
	assert.Error(t, err)
	_, err = New(&fakeClient{}, storage.NewMemoryStore(), nil, nil)
	assert.Error(t, err)
}

func TestSearchCorrelatesAndRemembers(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	b := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/2.jpg"}, IsFinished: true}
	client := &fakeClient{candidates: []models.MatchCandidate{
		{Reference: "uploads/1.jpg", Similarity: 91.2},
		{Reference: "uploads/2.jpg", Similarity: 88},
		{Reference: "uploads/3.jpg", Similarity: 50},
	}}
	svc := newService(t, client, storage.NewMemoryStore(a, b), nil)

	got, err := svc.Search(context.Background(), "s1", []byte("img"), "p.jpg")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].Report.ID)
	assert.InDelta(t, 91.2, got[0].Similarity, 1e-9)

	assert.Equal(t, got, svc.Latest("s1"))
	assert.Empty(t, svc.Latest("other"))
}

func TestSearchFailureClearsPreviousMatches(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg", Similarity: 70}}}
	svc := newService(t, client, storage.NewMemoryStore(a), nil)

	_, err := svc.Search(context.Background(), "s1", []byte("img"), "p.jpg")
	require.NoError(t, err)
	require.Len(t, svc.Latest("s1"), 1)

	client.err = &similarity.MatchError{Kind: similarity.KindNetwork, Err: errors.New("refused")}
	got, err := svc.Search(context.Background(), "s1", []byte("img"), "p.jpg")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, similarity.ErrNetwork)
	assert.Empty(t, svc.Latest("s1"))
	assert.Equal(t, 2, client.calls)
}

func TestSaveFavoritesMergesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	created := fixedNow.Add(-time.Hour)
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}, CreatedAt: created}
	store := storage.NewMemoryStore(a)
	pub := &recordingPublisher{}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg", Similarity: 70}}}
	svc := newService(t, client, store, pub)

	matches, err := svc.Search(ctx, "s", []byte("img"), "p.jpg")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	edited := matches[0].Report
	edited.IsFavorite = true
	res, err := svc.SaveFavorites(ctx, "s", []models.Report{edited})
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Updated: 1}, res)

	stored, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFavorite)
	assert.Equal(t, created, stored.CreatedAt)
	assert.Equal(t, fixedNow, stored.UpdatedAt)
	assert.Equal(t, 1, store.Len())

	latest := svc.Latest("s")
	require.Len(t, latest, 1)
	assert.True(t, latest[0].Report.IsFavorite)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.FavoritesSaved, pub.events[0].Type)
	assert.Equal(t, a.ID, pub.events[0].ReportID)
}

func TestSaveFavoritesInsertsUnknown(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, &fakeClient{}, store, nil)

	r := models.Report{ID: uuid.New(), IsFavorite: true}
	res, err := svc.SaveFavorites(ctx, "", []models.Report{r})
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Inserted: 1}, res)

	stored, _ := store.FindByID(ctx, r.ID)
	require.NotNil(t, stored)
	assert.Equal(t, fixedNow, stored.CreatedAt)
}

func TestLatestReturnsCopies(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg"}}}
	svc := newService(t, client, storage.NewMemoryStore(a), nil)

	_, err := svc.Search(context.Background(), "s", nil, "")
	require.NoError(t, err)

	first := svc.Latest("s")
	first[0].Report.ImageRefs[0] = "mutated"
	assert.Equal(t, "http://x/uploads/1.jpg", svc.Latest("s")[0].Report.ImageRefs[0])
}

func TestSearchWithoutSessionIsNotRemembered(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg", Similarity: 70}}}
	svc := newService(t, client, storage.NewMemoryStore(a), nil)

	got, err := svc.Search(context.Background(), "", []byte("img"), "p.jpg")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Empty(t, svc.Latest(""))
	assert.Equal(t, 0, svc.results.len())
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg", Similarity: 70}}}
	svc := newService(t, client, storage.NewMemoryStore(a), nil, WithSessionLimits(3, time.Hour))

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := svc.Search(ctx, fmt.Sprintf("s%d", i), []byte("img"), "p.jpg")
		require.NoError(t, err)
		if i == 98 {
			// reading s96 keeps it ahead of s97
			require.Len(t, svc.Latest("s96"), 1)
		}
	}

	assert.Equal(t, 3, svc.results.len())
	assert.Empty(t, svc.Latest("s0"))
	assert.Empty(t, svc.Latest("s97"))
	assert.Len(t, svc.Latest("s96"), 1)
	assert.Len(t, svc.Latest("s98"), 1)
	assert.Len(t, svc.Latest("s99"), 1)
}

func TestSessionsExpire(t *testing.T) {
	a := models.Report{ID: uuid.New(), ImageRefs: []string{"http://x/uploads/1.jpg"}}
	client := &fakeClient{candidates: []models.MatchCandidate{{Reference: "uploads/1.jpg", Similarity: 70}}}
	svc := newService(t, client, storage.NewMemoryStore(a), nil, WithSessionLimits(10, time.Minute))
	now := fixedNow
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := svc.Search(ctx, "old", []byte("img"), "p.jpg")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Search(ctx, "new", []byte("img"), "p.jpg")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.results.len())
	assert.Empty(t, svc.Latest("old"))
	assert.Len(t, svc.Latest("new"), 1)

	now = now.Add(2 * time.Minute)
	assert.Empty(t, svc.Latest("new"))
	assert.Equal(t, 0, svc.results.len())
}
