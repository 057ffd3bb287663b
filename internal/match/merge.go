package match

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

// RecordStore is the authoritative report collection.
//
// Upsert replaces a report with the same ID in place, keeping its position,
// or appends it; inserted reports whether it was new. FindByID returns
// (nil, nil) for unknown IDs.
type RecordStore interface {
	List(ctx context.Context) ([]models.Report, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Upsert(ctx context.Context, r *models.Report) (inserted bool, err error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type MergeResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Merge upserts every edited report into store in order, last writer wins.
// IDs are not validated. Errors only come from the store backend; the merge
// stops at the first one and reports what was applied so far.
func Merge(ctx context.Context, store RecordStore, edited []models.Report) (MergeResult, error) {
	var res MergeResult
	for i := range edited {
		r := edited[i].Clone()
		inserted, err := store.Upsert(ctx, &r)
		if err != nil {
			return res, fmt.Errorf("merge report %s: %w", r.ID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
