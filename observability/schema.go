package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema is the DDL for the hint event log and hint metrics. Apply it with
// Init, or pass it to dbopen.WithSchema.
const Schema = `
-- Hint session events
CREATE TABLE IF NOT EXISTS hint_events (
    event_id TEXT PRIMARY KEY,
    page_id TEXT NOT NULL,
    session_id TEXT,
    kind TEXT NOT NULL,
    code TEXT,
    tag TEXT,
    hints INTEGER NOT NULL DEFAULT 0,
    reason TEXT,
    url TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_hint_events_page_time
    ON hint_events(page_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_hint_events_session
    ON hint_events(session_id);

-- Hint metrics timeseries
CREATE TABLE IF NOT EXISTS hint_metrics (
    metric_id INTEGER PRIMARY KEY AUTOINCREMENT,
    metric_name TEXT NOT NULL,
    page_id TEXT,
    timestamp INTEGER NOT NULL,
    value REAL NOT NULL,
    unit TEXT
);
CREATE INDEX IF NOT EXISTS idx_hint_metrics_name_time
    ON hint_metrics(metric_name, timestamp DESC);
`

// Init applies Schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// RetentionConfig is per-table retention in days. Zero keeps everything.
type RetentionConfig struct {
	EventDays      int
	MetricDays     int
	RunVacuumAfter bool
}

// Cleanup deletes rows older than the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM hint_events WHERE created_at < ?", cfg.EventDays},
		{"DELETE FROM hint_metrics WHERE timestamp < ?", cfg.MetricDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, t.query, now-int64(t.days*86400)); err != nil {
			return fmt.Errorf("observability: cleanup: %w", err)
		}
	}
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("observability: vacuum: %w", err)
		}
	}
	return nil
}
