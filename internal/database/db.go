package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rmpower/pkg/models"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		kwh REAL NOT NULL,
		unit TEXT NOT NULL DEFAULT 'kWh',
		cost REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		published INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_history(date);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_history(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// StoredRecord is a usage record with its storage identity
type StoredRecord struct {
	ID        int64
	Published bool
	models.UsageRecord
}

// UpsertUsage inserts a usage record, replacing the values for an existing
// date. A replaced day is marked unpublished again so corrections flow back
// out to Home Assistant.
func (db *DB) UpsertUsage(ctx context.Context, rec models.UsageRecord) error {
	query := `
	INSERT INTO usage_history (date, kwh, unit, cost, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		kwh = excluded.kwh,
		unit = excluded.unit,
		cost = excluded.cost,
		published = CASE WHEN usage_history.kwh != excluded.kwh THEN 0 ELSE usage_history.published END
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.conn.ExecContext(ctx, query, rec.DateKey(), rec.KWh, string(rec.Unit), rec.Cost, createdAt); err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

// Store persists a batch of records. It satisfies the poller's sink.
func (db *DB) Store(ctx context.Context, records []models.UsageRecord) error {
	for _, rec := range records {
		if err := db.UpsertUsage(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ListUsage returns records in [since, until], date ascending. Zero times
// leave the corresponding bound open.
func (db *DB) ListUsage(ctx context.Context, since, until time.Time) ([]StoredRecord, error) {
	query := `
	SELECT id, date, kwh, unit, cost, published
	FROM usage_history
	WHERE (? = '' OR date >= ?) AND (? = '' OR date <= ?)
	ORDER BY date ASC
	`

	var sinceStr, untilStr string
	if !since.IsZero() {
		sinceStr = since.Format("2006-01-02")
	}
	if !until.IsZero() {
		untilStr = until.Format("2006-01-02")
	}

	rows, err := db.conn.QueryContext(ctx, query, sinceStr, sinceStr, untilStr, untilStr)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// UnpublishedUsage returns records not yet pushed to Home Assistant, oldest
// first. limit of 0 means no limit.
func (db *DB) UnpublishedUsage(ctx context.Context, limit int) ([]StoredRecord, error) {
	query := `
	SELECT id, date, kwh, unit, cost, published
	FROM usage_history
	WHERE published = 0
	ORDER BY date ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// MarkPublished flags a record as pushed to Home Assistant
func (db *DB) MarkPublished(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `UPDATE usage_history SET published = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("marking record published: %w", err)
	}
	return nil
}

// Stats summarizes the stored history
type Stats struct {
	Count     int
	FirstDate time.Time
	LastDate  time.Time
	TotalKWh  float64
	TotalCost float64
}

// GetStats returns summary statistics over all stored records
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	query := `
	SELECT COUNT(*), COALESCE(MIN(date), ''), COALESCE(MAX(date), ''),
	       COALESCE(SUM(kwh), 0), COALESCE(SUM(cost), 0)
	FROM usage_history
	`

	var stats Stats
	var firstStr, lastStr string
	row := db.conn.QueryRowContext(ctx, query)
	if err := row.Scan(&stats.Count, &firstStr, &lastStr, &stats.TotalKWh, &stats.TotalCost); err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	var err error
	if firstStr != "" {
		if stats.FirstDate, err = time.Parse("2006-01-02", firstStr); err != nil {
			return nil, fmt.Errorf("parsing first date: %w", err)
		}
	}
	if lastStr != "" {
		if stats.LastDate, err = time.Parse("2006-01-02", lastStr); err != nil {
			return nil, fmt.Errorf("parsing last date: %w", err)
		}
	}

	return &stats, nil
}

func scanRecords(rows *sql.Rows) ([]StoredRecord, error) {
	var records []StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var dateStr, unitStr string
		var published int
		if err := rows.Scan(&rec.ID, &dateStr, &rec.KWh, &unitStr, &rec.Cost, &published); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing stored date: %w", err)
		}
		rec.Date = date
		rec.Unit = models.Unit(unitStr)
		rec.Published = published != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}
