// Package history keeps a log of received webhook deliveries in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages delivery history in SQLite
type History struct {
	db *sql.DB
}

// NewHistory opens (or creates) the database at dbPath.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_id TEXT NOT NULL,
			event TEXT NOT NULL,
			ref TEXT NOT NULL,
			branch TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			received_at TEXT NOT NULL,
			duration_seconds REAL,
			commit_hash TEXT,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deliveries_outcome
		ON deliveries(outcome)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordDelivery stores a delivery and returns its row id. A zero ReceivedAt
// is replaced with the current time.
func (h *History) RecordDelivery(ctx context.Context, record *DeliveryRecord) (int64, error) {
	receivedAt := record.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(delivery_id, event, ref, branch, outcome, status_code, received_at,
		 duration_seconds, commit_hash, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.DeliveryID,
		record.Event,
		record.Ref,
		record.Branch,
		record.Outcome,
		record.StatusCode,
		receivedAt.UTC().Format(time.RFC3339Nano),
		record.DurationSeconds,
		record.CommitHash,
		record.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetLatestDelivery returns the most recent delivery, or nil when there is none.
func (h *History) GetLatestDelivery(ctx context.Context) (*DeliveryRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		ORDER BY id DESC
		LIMIT 1
	`)

	record, err := scanDeliveryRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest delivery: %w", err)
	}

	return record, nil
}

// GetRecentDeliveries returns up to limit deliveries, newest first.
func (h *History) GetRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery history: %w", err)
	}
	defer rows.Close()

	records := []DeliveryRecord{}
	for rows.Next() {
		record, err := scanDeliveryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// CountByOutcome returns the number of deliveries per outcome.
func (h *History) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM deliveries
		GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

// Summarize collects everything the status endpoint reports.
func (h *History) Summarize(ctx context.Context, limit int) (*Summary, error) {
	recent, err := h.GetRecentDeliveries(ctx, limit)
	if err != nil {
		return nil, err
	}

	counts, err := h.CountByOutcome(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Recent: recent, Outcomes: counts}
	if len(recent) > 0 {
		latest := recent[0]
		summary.Latest = &latest
	}
	return summary, nil
}

const deliveryColumns = `id, delivery_id, event, ref, branch, outcome, status_code,
		       received_at, duration_seconds, commit_hash, error_message`

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...any) error
}

func scanDeliveryRecord(s scanner) (*DeliveryRecord, error) {
	var record DeliveryRecord
	var receivedAtStr string

	err := s.Scan(
		&record.ID,
		&record.DeliveryID,
		&record.Event,
		&record.Ref,
		&record.Branch,
		&record.Outcome,
		&record.StatusCode,
		&receivedAtStr,
		&record.DurationSeconds,
		&record.CommitHash,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	receivedAt, err := time.Parse(time.RFC3339Nano, receivedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse received_at timestamp: %w", err)
	}
	record.ReceivedAt = receivedAt

	return &record, nil
}
