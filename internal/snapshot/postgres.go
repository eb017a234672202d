package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// snapshotRowID is the key of the single snapshot row.
const snapshotRowID = 1

// PostgresBackend keeps the snapshot as one jsonb row.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a new PostgreSQL snapshot backend.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS conditions_snapshot (
			id         SMALLINT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := b.pool.Exec(ctx, query)
	return err
}

// Read returns the stored document.
func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	query := `
		SELECT document
		FROM conditions_snapshot
		WHERE id = $1
	`

	var doc []byte
	err := b.pool.QueryRow(ctx, query, snapshotRowID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Write upserts the document.
func (b *PostgresBackend) Write(ctx context.Context, doc []byte) error {
	query := `
		INSERT INTO conditions_snapshot (id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err := b.pool.Exec(ctx, query, snapshotRowID, doc, time.Now())
	return err
}

// Ensure PostgresBackend implements Backend interface.
var _ Backend = (*PostgresBackend)(nil)
