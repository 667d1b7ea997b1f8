package store

import (
	"context"
	"errors"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"canvas-collab/internal/app"
)

var ErrNotFound = errors.New("snapshot not found")

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, cfg app.Config, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// SaveSnapshot upserts a project's canvas bytes and bumps the version.
func (p *Postgres) SaveSnapshot(ctx context.Context, projectID string, blob []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO canvas_snapshots (project_id, bytes, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (project_id) DO UPDATE
		SET bytes = $2, version = canvas_snapshots.version + 1, updated_at = NOW()
	`, projectID, blob)
	if err != nil {
		return err
	}
	p.log.Info("snapshot.saved", "project", projectID, "bytes", len(blob))
	return nil
}

// GetSnapshot fetches the latest persisted state for a project.
func (p *Postgres) GetSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT project_id, bytes, version, updated_at
		FROM canvas_snapshots
		WHERE project_id = $1
	`, projectID)

	var s Snapshot
	if err := row.Scan(&s.ProjectID, &s.Bytes, &s.Version, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	return s, nil
}

// ListSnapshots returns projects sorted by last update.
func (p *Postgres) ListSnapshots(ctx context.Context, limit, offset int) ([]Snapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT project_id, version, updated_at
		FROM canvas_snapshots
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ProjectID, &s.Version, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
