package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Reports ---

const reportColumns = `id, image_refs, attributes, is_finished, is_favorite, created_at, updated_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	r := &models.Report{}
	err := row.Scan(&r.ID, &r.ImageRefs, &r.Attributes, &r.IsFinished, &r.IsFavorite, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if r.ImageRefs == nil {
		r.ImageRefs = []string{}
	}
	return r, nil
}

// List returns every report in insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]models.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// Upsert keeps the row's position on conflict, so replaced reports stay put.
func (s *PostgresStore) Upsert(ctx context.Context, r *models.Report) (bool, error) {
	refs := r.ImageRefs
	if refs == nil {
		refs = []string{}
	}
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reports (id, image_refs, attributes, is_finished, is_favorite, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   image_refs = EXCLUDED.image_refs,
		   attributes = EXCLUDED.attributes,
		   is_finished = EXCLUDED.is_finished,
		   is_favorite = EXCLUDED.is_favorite,
		   created_at = EXCLUDED.created_at,
		   updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		r.ID, refs, r.Attributes, r.IsFinished, r.IsFavorite, r.CreatedAt, r.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert report: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Image embeddings ---

func (s *PostgresStore) AddImageEmbedding(ctx context.Context, key string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO image_embeddings (key, embedding) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding`,
		key, vec)
	if err != nil {
		return fmt.Errorf("add image embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasImageEmbedding(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM image_embeddings WHERE key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check image embedding: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteImageEmbeddings(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM image_embeddings WHERE key = ANY($1)`, keys)
	if err != nil {
		return fmt.Errorf("delete image embeddings: %w", err)
	}
	return nil
}

// SearchImages finds the stored images closest to embedding whose cosine
// similarity is strictly above minScore, best first.
func (s *PostgresStore) SearchImages(ctx context.Context, embedding []float32, minScore float64, limit int) ([]models.ImageHit, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx, `
		SELECT key, 1 - (embedding <=> $1) AS score
		FROM image_embeddings
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	defer rows.Close()

	var hits []models.ImageHit
	for rows.Next() {
		var h models.ImageHit
		if err := rows.Scan(&h.Key, &h.Score); err != nil {
			return nil, fmt.Errorf("scan image hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
