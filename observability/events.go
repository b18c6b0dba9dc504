package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/keyhint/dbopen"
	"github.com/hazyhaar/keyhint/idgen"
)

// HintEvent is one hint session lifecycle event of one page.
type HintEvent struct {
	ID        string    `json:"id"`
	PageID    string    `json:"page_id"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Hints     int       `json:"hints,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultEventQueue bounds events waiting for the writer.
const DefaultEventQueue = 1024

// EventLogger writes hint events to the observability database from its
// own goroutine. LogEvent only queues.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	size   int

	mu     sync.RWMutex
	queue  chan HintEvent
	closed bool
	done   chan struct{}
	once   sync.Once
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets the generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithLogger sets the logger failures are reported to.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// WithQueueSize sets how many events may wait for the writer. Default
// DefaultEventQueue.
func WithQueueSize(n int) EventLoggerOption {
	return func(l *EventLogger) { l.size = n }
}

// NewEventLogger creates an EventLogger on db and starts its writer. The
// schema must have been applied. Close stops the writer.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("hev_", idgen.Default),
		logger: slog.Default(),
		size:   DefaultEventQueue,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	if l.size <= 0 {
		l.size = DefaultEventQueue
	}
	l.queue = make(chan HintEvent, l.size)
	go l.writeLoop()
	return l
}

// LogEvent queues ev for the writer. It never blocks: when the queue is
// full or the logger is closed the event is dropped and logged.
func (l *EventLogger) LogEvent(_ context.Context, ev HintEvent) {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.logger.Warn("observability: event logger closed, dropping event", "kind", ev.Kind, "page_id", ev.PageID)
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("observability: event queue full, dropping event", "kind", ev.Kind, "page_id", ev.PageID)
	}
}

// Close writes every queued event and stops the writer. Safe to call more
// than once.
func (l *EventLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *EventLogger) writeLoop() {
	defer close(l.done)
	for ev := range l.queue {
		l.write(ev)
	}
}

func (l *EventLogger) write(ev HintEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO hint_events (
			event_id, page_id, session_id, kind, code, tag, hints, reason, url, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.PageID, ev.SessionID, ev.Kind, ev.Code, ev.Tag, ev.Hints, ev.Reason, ev.URL, ev.CreatedAt.Unix())
	if err != nil {
		l.logger.Error("observability: event log failed", "error", err, "kind", ev.Kind, "page_id", ev.PageID)
	}
}

// Recent returns the newest events of a page, newest first. An empty
// pageID returns events of every page.
func (l *EventLogger) Recent(ctx context.Context, pageID string, limit int) ([]HintEvent, error) {
	q := `SELECT event_id, page_id, COALESCE(session_id,''), kind, COALESCE(code,''), COALESCE(tag,''), hints,
		COALESCE(reason,''), COALESCE(url,''), created_at FROM hint_events`
	var args []any
	if pageID != "" {
		q += " WHERE page_id = ?"
		args = append(args, pageID)
	}
	q += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: recent events: %w", err)
	}
	defer rows.Close()

	var out []HintEvent
	for rows.Next() {
		var ev HintEvent
		var ts int64
		if err := rows.Scan(&ev.ID, &ev.PageID, &ev.SessionID, &ev.Kind, &ev.Code, &ev.Tag, &ev.Hints,
			&ev.Reason, &ev.URL, &ts); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		ev.CreatedAt = time.Unix(ts, 0)
		out = append(out, ev)
	}
	return out, rows.Err()
}
