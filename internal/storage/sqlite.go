package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/your-org/lostfound/internal/models"
)

// SQLiteStore is the single-node report store used when no Postgres is
// deployed.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them, not just
	// the first one.
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReport(row rowScanner) (*models.Report, error) {
	var (
		id, refs, attrs      string
		finished, favorite   bool
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &refs, &attrs, &finished, &favorite, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	r := &models.Report{IsFinished: finished, IsFavorite: favorite}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if err := json.Unmarshal([]byte(refs), &r.ImageRefs); err != nil {
		return nil, fmt.Errorf("decode image refs: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	err := retryOnBusy(ctx, func() error {
		reports = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+reportColumns+` FROM reports ORDER BY position`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanSQLiteReport(rows)
			if err != nil {
				return fmt.Errorf("scan report: %w", err)
			}
			reports = append(reports, *r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var r *models.Report
	err := retryOnBusy(ctx, func() error {
		var err error
		r, err = scanSQLiteReport(s.db.QueryRowContext(ctx,
			`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id.String()))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// Upsert updates in place when the id exists; position is the rowid and
// never changes on update.
func (s *SQLiteStore) Upsert(ctx context.Context, r *models.Report) (bool, error) {
	refs := r.ImageRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return false, fmt.Errorf("encode image refs: %w", err)
	}
	attrsJSON, err := json.Marshal(r.Attributes)
	if err != nil {
		return false, fmt.Errorf("encode attributes: %w", err)
	}

	var inserted bool
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`UPDATE reports SET image_refs = ?, attributes = ?, is_finished = ?, is_favorite = ?, created_at = ?, updated_at = ?
			 WHERE id = ?`,
			string(refsJSON), string(attrsJSON), r.IsFinished, r.IsFavorite,
			r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano), r.ID.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n == 0
		if inserted {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO reports (id, image_refs, attributes, is_finished, is_favorite, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID.String(), string(refsJSON), string(attrsJSON), r.IsFinished, r.IsFavorite,
				r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return false, fmt.Errorf("upsert report: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id.String())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return nil
}
