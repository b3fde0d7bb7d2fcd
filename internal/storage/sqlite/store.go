// Package sqlite is the SQLite implementation of the adapter config store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/connorbell133/agentflow/internal/adapter"
	"github.com/connorbell133/agentflow/internal/storage"
)

// Store persists adapter configurations in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS model_adapters (
			model_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_model_adapters_updated ON model_adapters(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	config, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal adapter config: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_adapters (model_id, name, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			name = excluded.name,
			config = excluded.config,
			updated_at = excluded.updated_at`,
		rec.ModelID, rec.Name, string(config), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store adapter config: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, modelID string) (*storage.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT model_id, name, config, created_at, updated_at
		FROM model_adapters WHERE model_id = ?`, modelID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load adapter config: %w", err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]*storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model_id, name, config, created_at, updated_at
		FROM model_adapters ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list adapter configs: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adapter config: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Delete(ctx context.Context, modelID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM model_adapters WHERE model_id = ?`, modelID)
	if err != nil {
		return fmt.Errorf("failed to delete adapter config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*storage.Record, error) {
	var rec storage.Record
	var config string
	if err := row.Scan(&rec.ModelID, &rec.Name, &config, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	var cfg adapter.Config
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, fmt.Errorf("corrupt stored config for %q: %w", rec.ModelID, err)
	}
	rec.Config = cfg
	return &rec, nil
}
