// Package store persists batch results in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/evalops/agentbatch/domain"
)

// SQLiteStore records batches and their per-prompt results.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the results database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			batch_id TEXT PRIMARY KEY,
			prompt_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS batch_items (
			item_id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			thread_id TEXT,
			run_id TEXT,
			outcome TEXT NOT NULL,
			conversation TEXT NOT NULL,
			transcript TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (batch_id) REFERENCES batches(batch_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_items_batch ON batch_items(batch_id, seq)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateBatch records a new batch.
func (s *SQLiteStore) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (batch_id, prompt_count, created_at) VALUES (?, ?, ?)`,
		batch.BatchID, batch.PromptCount, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// CreateItem records one prompt's result.
func (s *SQLiteStore) CreateItem(ctx context.Context, item *domain.BatchItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_items (item_id, batch_id, seq, prompt, thread_id, run_id, outcome, conversation, transcript, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ItemID, item.BatchID, item.Seq, item.Prompt, item.ThreadID, item.RunID,
		string(item.Outcome), string(item.Conversation), string(item.Transcript), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch item: %w", err)
	}
	return nil
}

// ListItems returns a batch's items in sequence order.
func (s *SQLiteStore) ListItems(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, batch_id, seq, prompt, thread_id, run_id, outcome, conversation, transcript, created_at
		 FROM batch_items WHERE batch_id = ? ORDER BY seq`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch items: %w", err)
	}
	defer rows.Close()

	var items []domain.BatchItem
	for rows.Next() {
		var item domain.BatchItem
		var outcome, conversation, transcript string
		var createdAt time.Time
		if err := rows.Scan(&item.ItemID, &item.BatchID, &item.Seq, &item.Prompt,
			&item.ThreadID, &item.RunID, &outcome, &conversation, &transcript, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch item: %w", err)
		}
		item.Outcome = domain.Outcome(outcome)
		item.Conversation = []byte(conversation)
		if transcript != "" {
			item.Transcript = []byte(transcript)
		}
		item.CreatedAt = createdAt
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
