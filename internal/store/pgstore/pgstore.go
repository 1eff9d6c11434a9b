// Package pgstore mirrors the plan state into PostgreSQL.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS studyplan_records (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS studyplan_pdr (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	inputs_hash TEXT NOT NULL,
	outcome TEXT NOT NULL,
	task_id TEXT,
	details TEXT,
	timestamp TIMESTAMPTZ NOT NULL
);
`

// Store is a PostgreSQL-backed mirror.
type Store struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool, verifies it and runs migrations.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("execute migration: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Read returns the values stored under keys. Missing keys are omitted.
func (s *Store) Read(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM studyplan_records WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Write upserts every record in a single transaction.
func (s *Store) Write(ctx context.Context, records map[string]string) error {
	now := time.Now().UTC()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range records {
			batch.Queue(
				`INSERT INTO studyplan_records (key, value, updated_at) VALUES ($1, $2, $3)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
				key, value, now,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert records: %w", err)
		}
		return nil
	})
}

// Delete removes the records stored under keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM studyplan_records WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO studyplan_pdr (id, action, inputs_hash, outcome, task_id, details, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.TaskID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the most recent audit entries, newest first.
func (s *Store) ListPDR(limit int) ([]models.PDREntry, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, action, inputs_hash, outcome, COALESCE(task_id, ''), COALESCE(details, ''), timestamp
		 FROM studyplan_pdr ORDER BY timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var id uuid.UUID
		if err := rows.Scan(&id, &e.Action, &e.InputsHash, &e.Outcome, &e.TaskID, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.ID = id.String()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
