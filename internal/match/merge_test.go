package match_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/storage"
)

func TestMergeReplacesFavoriteInPlace(t *testing.T) {
	ctx := context.Background()
	a := models.Report{ID: idA, ImageRefs: []string{"http://x/1.jpg"}}
	b := models.Report{ID: idB, ImageRefs: []string{"http://x/2.jpg"}}
	store := storage.NewMemoryStore(b, a)

	edited := a
	edited.IsFavorite = true
	res, err := match.Merge(ctx, store, []models.Report{edited})
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Updated: 1}, res)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, idB, list[0].ID)
	assert.Equal(t, idA, list[1].ID)
	assert.True(t, list[1].IsFavorite)
}

func TestMergeUpsertCounts(t *testing.T) {
	ctx := context.Background()
	a := models.Report{ID: idA}
	store := storage.NewMemoryStore(a)

	fresh := models.Report{ID: idC, ImageRefs: []string{"http://x/9.jpg"}}
	a.IsFinished = true
	res, err := match.Merge(ctx, store, []models.Report{a, fresh})
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Inserted: 1, Updated: 1}, res)
	assert.Equal(t, 2, store.Len())

	got, err := store.FindByID(ctx, idC)
	require.NoError(t, err)
	assert.Equal(t, fresh, *got)
}

func TestMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	other := models.Report{ID: idB, ImageRefs: []string{"http://x/b.jpg"}}
	edited := []models.Report{
		{ID: idA, IsFavorite: true},
		{ID: idC, ImageRefs: []string{"http://x/c.jpg"}},
	}

	once := storage.NewMemoryStore(other, models.Report{ID: idA})
	_, err := match.Merge(ctx, once, edited)
	require.NoError(t, err)

	twice := storage.NewMemoryStore(other, models.Report{ID: idA})
	_, err = match.Merge(ctx, twice, edited)
	require.NoError(t, err)
	res, err := match.Merge(ctx, twice, edited)
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Updated: 2}, res)

	l1, _ := once.List(ctx)
	l2, _ := twice.List(ctx)
	assert.Equal(t, l1, l2)
}

func TestMergeLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := models.Report{ID: idA, Attributes: models.Attributes{Category: "wallet"}}
	second := models.Report{ID: idA, Attributes: models.Attributes{Category: "phone"}}
	res, err := match.Merge(ctx, store, []models.Report{first, second})
	require.NoError(t, err)
	assert.Equal(t, match.MergeResult{Inserted: 1, Updated: 1}, res)

	got, _ := store.FindByID(ctx, idA)
	assert.Equal(t, "phone", got.Attributes.Category)
}

func TestMergeLeavesOthersUntouched(t *testing.T) {
	ctx := context.Background()
	untouched := models.Report{ID: idB, ImageRefs: []string{"http://x/b.jpg"}, IsFavorite: true}
	store := storage.NewMemoryStore(untouched)

	_, err := match.Merge(ctx, store, []models.Report{{ID: idA}})
	require.NoError(t, err)

	got, _ := store.FindByID(ctx, idB)
	assert.Equal(t, untouched, *got)
}

func TestMergeZeroIDIsNotValidated(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	res, err := match.Merge(ctx, store, []models.Report{{ID: uuid.Nil}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

type failingStore struct {
	*storage.MemoryStore
	failOn uuid.UUID
}

func (f failingStore) Upsert(ctx context.Context, r *models.Report) (bool, error) {
	if r.ID == f.failOn {
		return false, errors.New("connection reset")
	}
	return f.MemoryStore.Upsert(ctx, r)
}

func TestMergeStopsOnStoreError(t *testing.T) {
	ctx := context.Background()
	store := failingStore{MemoryStore: storage.NewMemoryStore(), failOn: idB}

	res, err := match.Merge(ctx, store, []models.Report{{ID: idA}, {ID: idB}, {ID: idC}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), idB.String())
	assert.Equal(t, match.MergeResult{Inserted: 1}, res)
	assert.Equal(t, 1, store.Len())
}
