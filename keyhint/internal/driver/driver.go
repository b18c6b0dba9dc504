// CLAUDE:SUMMARY Per-page event loop: page keys, navigations and deferred activations feed one hint state machine; control requests are serialized onto the same loop.
// Package driver owns the hint engine of one page. Everything that touches
// the state machine (page keys, in-page teardown, navigations, deferred
// activations, MCP/HTTP control requests) runs on a single loop goroutine.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/keyhint/keyhint/internal/activate"
	"github.com/hazyhaar/keyhint/keyhint/internal/describe"
	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
	"github.com/hazyhaar/keyhint/keyhint/internal/overlay"
	"github.com/hazyhaar/keyhint/keyhint/internal/page"
	"github.com/hazyhaar/keyhint/observability"
)

// ErrStopped is returned by control requests once the loop has exited.
var ErrStopped = errors.New("driver: stopped")

// DefaultQueueSize bounds page events waiting for the loop.
const DefaultQueueSize = 256

// Host is the browser side of one page.
type Host interface {
	machine.Page
	overlay.Surface
	activate.Clicker
	Install(ctx context.Context, keys machine.KeySet) error
	Uninstall(ctx context.Context) error
	// Listen blocks, delivering page events to fn until ctx is done.
	Listen(ctx context.Context, fn func(page.Event))
	OuterHTML(ctx context.Context, id dom.NodeID) (string, error)
	URL() string
}

// EventRecorder persists session lifecycle events.
type EventRecorder interface {
	LogEvent(ctx context.Context, ev observability.HintEvent)
}

// MetricRecorder queues datapoints.
type MetricRecorder interface {
	Record(m observability.Metric)
}

// Config configures a Driver.
type Config struct {
	PageID string // required
	Host   Host   // required

	// Engine carries the hint settings. Page, Surface, Activator, Scheduler
	// and OnEvent are owned by the driver and overwritten.
	Engine machine.Config

	Describer *describe.Describer // default describe.New()
	Events    EventRecorder       // optional
	Metrics   MetricRecorder      // optional
	QueueSize int                 // default DefaultQueueSize
	Logger    *slog.Logger
}

// Driver runs one page.
type Driver struct {
	id      string
	host    Host
	m       *machine.Machine
	sched   *machine.Deferred
	desc    *describe.Describer
	events  EventRecorder
	metrics MetricRecorder
	logger  *slog.Logger

	in   chan page.Event
	ctl  chan func()
	done chan struct{}
	url  atomic.Value // string

	started  atomic.Bool
	cancel   context.CancelFunc
	stopOnce sync.Once

	// Loop-confined.
	loopCtx context.Context
	keyAt   time.Time
}

// New creates a Driver. Call Start to attach it to the page.
func New(cfg Config) (*Driver, error) {
	if cfg.PageID == "" || cfg.Host == nil {
		return nil, fmt.Errorf("driver: page id and host are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Describer == nil {
		cfg.Describer = describe.New()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger.With("page_id", cfg.PageID)

	d := &Driver{
		id:      cfg.PageID,
		host:    cfg.Host,
		sched:   machine.NewDeferred(),
		desc:    cfg.Describer,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		logger:  logger,
		in:      make(chan page.Event, cfg.QueueSize),
		ctl:     make(chan func()),
		done:    make(chan struct{}),
	}
	d.url.Store("")

	eng := cfg.Engine
	eng.Page = cfg.Host
	eng.Surface = cfg.Host
	eng.Activator = activate.New(cfg.Host, logger)
	eng.Scheduler = d.sched
	eng.OnEvent = d.onEvent
	eng.Logger = logger
	m, err := machine.New(eng)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	d.m = m
	return d, nil
}

// ID returns the page id.
func (d *Driver) ID() string { return d.id }

// URL returns the last known page URL.
func (d *Driver) URL() string { return d.url.Load().(string) }

// Start installs the page shim and starts the loop. The loop runs until
// ctx is done or Stop is called.
func (d *Driver) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("driver: %s already started", d.id)
	}
	if err := d.host.Install(ctx, d.m.ConsumedKeys()); err != nil {
		return fmt.Errorf("driver: install: %w", err)
	}
	d.url.Store(d.host.URL())

	lctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.loopCtx = lctx
	go d.host.Listen(lctx, d.enqueue)
	go d.loop(lctx)

	d.logger.Info("driver: attached", "url", d.URL())
	return nil
}

// Stop ends the loop, cancels any pending activation and removes the shim
// from the page. Safe to call more than once.
func (d *Driver) Stop(ctx context.Context) {
	d.stopOnce.Do(func() {
		d.sched.Close()
		if d.cancel == nil {
			return
		}
		d.cancel()
		<-d.done
		if err := d.host.Uninstall(ctx); err != nil {
			d.logger.Warn("driver: uninstall", "error", err)
		}
		d.logger.Info("driver: detached")
	})
}

func (d *Driver) enqueue(ev page.Event) {
	select {
	case d.in <- ev:
	default:
		d.logger.Warn("driver: event queue full, dropping event", "kind", ev.Kind)
	}
}

func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.in:
			d.handle(ctx, ev)
		case task := <-d.sched.C():
			task.Run(ctx)
		case fn := <-d.ctl:
			d.drain(ctx)
			fn()
		}
	}
}

// drain handles page events already queued, so control requests observe
// every key the page sent before them.
func (d *Driver) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.in:
			d.handle(ctx, ev)
		default:
			return
		}
	}
}

func (d *Driver) handle(ctx context.Context, ev page.Event) {
	switch ev.Kind {
	case page.EventKey:
		d.keyAt = time.Now()
		v := d.m.HandleKey(ctx, ev.Key)
		d.logger.Debug("driver: key", "key", ev.Key.Key, "verdict", v, "mode", d.m.Mode())
	case page.EventTeardown:
		d.m.Reset(ctx, "page_teardown")
	case page.EventNavigated:
		d.url.Store(ev.URL)
		d.m.Reset(ctx, "navigation")
		d.logger.Debug("driver: navigated", "url", ev.URL)
	}
}

// do runs fn on the loop and waits for it. Once the loop has taken fn it
// runs to completion with the loop context, and do waits for it even if
// ctx ends first.
func (d *Driver) do(ctx context.Context, fn func(ctx context.Context)) error {
	if !d.started.Load() {
		return ErrStopped
	}
	ran := make(chan struct{})
	select {
	case d.ctl <- func() { fn(d.loopCtx); close(ran) }:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

func (d *Driver) onEvent(ev machine.Event) {
	if d.events != nil {
		d.events.LogEvent(d.loopCtx, observability.HintEvent{
			PageID:    d.id,
			SessionID: ev.SessionID,
			Kind:      string(ev.Kind),
			Code:      ev.Code,
			Tag:       ev.Tag,
			Hints:     ev.Hints,
			Reason:    ev.Reason,
			URL:       d.URL(),
		})
	}
	if d.metrics == nil || (ev.Kind != machine.EventStarted && ev.Kind != machine.EventEmpty) {
		return
	}
	now := time.Now()
	if !d.keyAt.IsZero() {
		d.metrics.Record(observability.Metric{
			Name: observability.MetricScanDurationMs, PageID: d.id, Timestamp: now,
			Value: float64(now.Sub(d.keyAt).Microseconds()) / 1000, Unit: "ms",
		})
	}
	d.metrics.Record(observability.Metric{
		Name: observability.MetricCandidates, PageID: d.id, Timestamp: now,
		Value: float64(ev.Matched), Unit: "count",
	})
	d.metrics.Record(observability.Metric{
		Name: observability.MetricHintsShown, PageID: d.id, Timestamp: now,
		Value: float64(ev.Hints), Unit: "count",
	})
}
