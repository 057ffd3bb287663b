package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/models"
)

// ReportStore is what the API binaries need from a report backend.
type ReportStore interface {
	List(ctx context.Context) ([]models.Report, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	Upsert(ctx context.Context, r *models.Report) (bool, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
	Close()
}

// OpenReportStore builds the backend selected by store.driver.
func OpenReportStore(ctx context.Context, cfg *config.Config) (ReportStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := NewPostgresStore(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case config.StoreDriverSQLite:
		return OpenSQLite(cfg.Store.SQLitePath)
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
