package observability

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/keyhint/dbopen"
)

func setupObsDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
}

func TestInit_CreatesTables(t *testing.T) {
	db := setupObsDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("Init twice: %v", err)
	}
	for _, table := range []string{"hint_events", "hint_metrics"} {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if count != 1 {
			t.Fatalf("table %s not found", table)
		}
	}
}

func TestEventLogger_LogAndRecent(t *testing.T) {
	db := setupObsDB(t)
	n := 0
	l := NewEventLogger(db, WithEventIDGenerator(func() string { n++; return fmt.Sprintf("ev%d", n) }))
	ctx := context.Background()

	l.LogEvent(ctx, HintEvent{PageID: "p1", SessionID: "s1", Kind: "hint_session_started", Hints: 12})
	l.LogEvent(ctx, HintEvent{PageID: "p1", SessionID: "s1", Kind: "hint_activated", Code: "as", Tag: "a"})
	l.LogEvent(ctx, HintEvent{PageID: "p2", Kind: "hint_session_empty"})
	l.Close()

	got, err := l.Recent(ctx, "p1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("p1 events: got %d, want 2", len(got))
	}
	if got[0].ID != "ev2" || got[0].Code != "as" || got[0].Tag != "a" || got[1].Hints != 12 {
		t.Errorf("order/content: %+v", got)
	}

	all, err := l.Recent(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all events: got %d, want 3", len(all))
	}

	one, _ := l.Recent(ctx, "", 1)
	if len(one) != 1 {
		t.Fatalf("limit: got %d", len(one))
	}
}

func TestEventLogger_FailureDoesNotPanic(t *testing.T) {
	db := dbopen.OpenMemory(t) // no schema
	l := NewEventLogger(db)
	l.LogEvent(context.Background(), HintEvent{PageID: "p", Kind: "x"})
	l.Close()
	l.Close()
	l.LogEvent(context.Background(), HintEvent{PageID: "p", Kind: "after close"})
}

func TestEventLogger_LogEventDoesNotWaitForWriter(t *testing.T) {
	db := setupObsDB(t)
	// The open transaction holds the only connection, so the writer stalls.
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	l := NewEventLogger(db, WithQueueSize(2))

	start := time.Now()
	for range 5 {
		l.LogEvent(context.Background(), HintEvent{PageID: "p", Kind: "hint_session_started"})
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("LogEvent blocked for %v", d)
	}

	tx.Rollback()
	l.Close()
	var count int
	db.QueryRow("SELECT COUNT(*) FROM hint_events").Scan(&count)
	if count < 1 || count > 3 {
		t.Errorf("written events: got %d, want between 1 and 3", count)
	}
}

func TestMetricsManager_RecordAndQuery(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 100, time.Hour)
	mm.Record(Metric{Name: MetricScanDurationMs, PageID: "p1", Value: 42.5, Unit: "ms"})
	mm.Record(Metric{Name: MetricHintsShown, PageID: "p1", Value: 7, Unit: "count"})
	mm.Close()
	mm.Close()

	mm2 := NewMetricsManager(db, 0, 0)
	defer mm2.Close()
	ctx := context.Background()

	got, err := mm2.Query(ctx, MetricScanDurationMs, time.Time{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != 42.5 || got[0].PageID != "p1" {
		t.Fatalf("scan duration: %+v", got)
	}
	all, err := mm2.Query(ctx, "", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all: got %d, want 2", len(all))
	}
}

func TestMetricsManager_FlushOnFullBuffer(t *testing.T) {
	db := setupObsDB(t)
	mm := NewMetricsManager(db, 2, time.Hour)
	defer mm.Close()
	mm.Record(Metric{Name: MetricCandidates, Value: 1})
	mm.Record(Metric{Name: MetricCandidates, Value: 2})

	var count int
	db.QueryRow("SELECT COUNT(*) FROM hint_metrics").Scan(&count)
	if count != 2 {
		t.Fatalf("rows after full buffer: got %d, want 2", count)
	}
}

func TestCleanup(t *testing.T) {
	db := setupObsDB(t)
	ctx := context.Background()
	old := time.Now().Add(-40 * 24 * time.Hour).Unix()
	db.Exec(`INSERT INTO hint_events (event_id, page_id, kind, created_at) VALUES ('old','p','k',?)`, old)
	db.Exec(`INSERT INTO hint_events (event_id, page_id, kind) VALUES ('new','p','k')`)
	db.Exec(`INSERT INTO hint_metrics (metric_name, timestamp, value) VALUES ('m', ?, 1)`, old)

	if err := Cleanup(ctx, db, RetentionConfig{EventDays: 30}); err != nil {
		t.Fatal(err)
	}
	var events, metrics int
	db.QueryRow("SELECT COUNT(*) FROM hint_events").Scan(&events)
	db.QueryRow("SELECT COUNT(*) FROM hint_metrics").Scan(&metrics)
	if events != 1 || metrics != 1 {
		t.Fatalf("after event cleanup: events=%d metrics=%d", events, metrics)
	}

	if err := Cleanup(ctx, db, RetentionConfig{MetricDays: 30, RunVacuumAfter: true}); err != nil {
		t.Fatal(err)
	}
	db.QueryRow("SELECT COUNT(*) FROM hint_metrics").Scan(&metrics)
	if metrics != 0 {
		t.Fatalf("metrics after cleanup: %d", metrics)
	}
}
