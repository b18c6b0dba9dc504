// Package keyhint drives keyboard link hints in Chrome pages: press the
// activation key, type the code shown next to a link, and it is clicked.
//
// A Navigator owns the browser and one driver per attached page. Pages are
// opened from configuration or attached at runtime, and every page can be
// inspected and driven over MCP or HTTP.
package keyhint

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/keyhint/keyhint/internal/browser"
	"github.com/hazyhaar/keyhint/keyhint/internal/config"
	"github.com/hazyhaar/keyhint/keyhint/internal/describe"
	"github.com/hazyhaar/keyhint/keyhint/internal/driver"
	"github.com/hazyhaar/keyhint/keyhint/internal/page"
	"github.com/hazyhaar/keyhint/observability"
)

// SessionView is the hint state of a page.
type SessionView = driver.SessionView

// HintView is one displayed hint.
type HintView = driver.HintView

// PressResult is the outcome of a synthesized key.
type PressResult = driver.PressResult

// HintEvent is one recorded session event.
type HintEvent = observability.HintEvent

// PageInfo describes an attached page.
type PageInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	TargetID string `json:"target_id,omitempty"`
}

type pageEntry struct {
	drv  *driver.Driver
	tab  *browser.Tab // nil for hosts attached without a browser tab
	spec config.PageConfig
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithObservability records hint events and scan metrics to db. Schema
// must already be applied.
func WithObservability(db *sql.DB) Option {
	return func(n *Navigator) { n.db = db }
}

// Navigator is the top-level orchestrator.
type Navigator struct {
	cfg    *config.Config
	mgr    *browser.Manager
	desc   *describe.Describer
	logger *slog.Logger

	db      *sql.DB
	events  *observability.EventLogger
	metrics *observability.MetricsManager

	mu     sync.Mutex
	pages  map[string]*pageEntry
	runCtx context.Context
	closed bool
}

// New creates a Navigator from configuration. A nil cfg uses defaults.
func New(cfg *Config, logger *slog.Logger, opts ...Option) *Navigator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Navigator{
		cfg: cfg,
		mgr: browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			Headless:         cfg.Browser.Headless,
			RecycleInterval:  cfg.Browser.RecycleInterval,
			MemoryLimit:      cfg.Browser.MemoryLimit,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Logger:           logger,
		}),
		desc:   describe.New(),
		logger: logger,
		pages:  make(map[string]*pageEntry),
		runCtx: context.Background(),
	}
	for _, o := range opts {
		o(n)
	}
	if n.db != nil {
		n.events = observability.NewEventLogger(n.db, observability.WithLogger(logger))
		n.metrics = observability.NewMetricsManager(n.db, 0, 0)
	}
	return n
}

// Start launches the browser and attaches every configured page. Page
// failures are logged and skipped. Drivers live until ctx is done or Stop.
func (n *Navigator) Start(ctx context.Context) error {
	n.mu.Lock()
	n.runCtx = ctx
	n.mu.Unlock()

	if _, err := n.mgr.Start(ctx); err != nil {
		return fmt.Errorf("keyhint: start browser: %w", err)
	}
	n.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: n.detachAll,
		AfterRecycle:  func(*rod.Browser) { go n.reattach() },
	})

	for _, p := range n.cfg.Pages {
		if _, err := n.Open(ctx, p); err != nil {
			n.logger.Error("keyhint: failed to attach page", "page_id", p.ID, "url", p.URL, "error", err)
		}
	}
	return nil
}

// Open attaches a page: a new tab on p.URL, or the existing tab p.TargetID.
func (n *Navigator) Open(ctx context.Context, p PageConfig) (PageInfo, error) {
	if p.ID == "" {
		return PageInfo{}, fmt.Errorf("keyhint: page id required")
	}
	if n.has(p.ID) {
		return PageInfo{}, fmt.Errorf("%w: %s", ErrPageExists, p.ID)
	}

	var tab *browser.Tab
	var err error
	switch {
	case p.TargetID != "":
		tab, err = browser.AttachTab(n.mgr, p.TargetID, p.ID)
	case p.URL != "":
		tab, err = browser.OpenTab(ctx, n.mgr, p.URL, p.ID)
	default:
		err = fmt.Errorf("keyhint: page %q: url or target_id required", p.ID)
	}
	if err != nil {
		return PageInfo{}, err
	}

	host := page.New(tab.Page, n.logger)
	info, err := n.attach(p, host, tab)
	if err != nil {
		_ = tab.Close()
		return PageInfo{}, err
	}
	return info, nil
}

// attach starts a driver on host and registers it.
func (n *Navigator) attach(p config.PageConfig, host driver.Host, tab *browser.Tab) (PageInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return PageInfo{}, ErrClosed
	}
	if _, ok := n.pages[p.ID]; ok {
		return PageInfo{}, fmt.Errorf("%w: %s", ErrPageExists, p.ID)
	}

	cfg := driver.Config{
		PageID:    p.ID,
		Host:      host,
		Engine:    n.cfg.Engine(),
		Describer: n.desc,
		Logger:    n.logger,
	}
	if n.events != nil {
		cfg.Events = n.events
		cfg.Metrics = n.metrics
	}
	drv, err := driver.New(cfg)
	if err != nil {
		return PageInfo{}, err
	}
	if err := drv.Start(n.runCtx); err != nil {
		return PageInfo{}, err
	}
	n.pages[p.ID] = &pageEntry{drv: drv, tab: tab, spec: p}
	n.logger.Info("keyhint: page attached", "page_id", p.ID, "url", drv.URL())
	return pageInfo(n.pages[p.ID]), nil
}

// Detach stops driving a page. Tabs opened by the Navigator are closed.
func (n *Navigator) Detach(ctx context.Context, id string) error {
	n.mu.Lock()
	e, ok := n.pages[id]
	delete(n.pages, id)
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	n.stopEntry(ctx, e)
	return nil
}

func (n *Navigator) stopEntry(ctx context.Context, e *pageEntry) {
	e.drv.Stop(ctx)
	if e.tab != nil {
		if err := e.tab.Close(); err != nil {
			n.logger.Debug("keyhint: close tab", "page_id", e.drv.ID(), "error", err)
		}
	}
}

// Pages lists attached pages by id.
func (n *Navigator) Pages() []PageInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]PageInfo, 0, len(n.pages))
	for _, e := range n.pages {
		out = append(out, pageInfo(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func pageInfo(e *pageEntry) PageInfo {
	return PageInfo{ID: e.drv.ID(), URL: e.drv.URL(), TargetID: e.spec.TargetID}
}

// Session returns the hint state of a page, with element descriptions
// when describe is set.
func (n *Navigator) Session(ctx context.Context, id string, describe bool) (SessionView, error) {
	d, err := n.driver(id)
	if err != nil {
		return SessionView{}, err
	}
	return d.Session(ctx, describe)
}

// Press feeds a key to a page as if typed outside an editable field.
func (n *Navigator) Press(ctx context.Context, id, key string) (PressResult, error) {
	d, err := n.driver(id)
	if err != nil {
		return PressResult{}, err
	}
	return d.Press(ctx, key)
}

// Teardown removes every hint of a page.
func (n *Navigator) Teardown(ctx context.Context, id string) error {
	d, err := n.driver(id)
	if err != nil {
		return err
	}
	return d.Teardown(ctx)
}

// Events returns the newest recorded events of a page.
func (n *Navigator) Events(ctx context.Context, id string, limit int) ([]HintEvent, error) {
	if n.events == nil {
		return nil, ErrNoEventLog
	}
	if _, err := n.driver(id); err != nil {
		return nil, err
	}
	return n.events.Recent(ctx, id, limit)
}

// Targets lists the browser's page targets, for attaching.
func (n *Navigator) Targets() ([]PageInfo, error) {
	infos, err := browser.Targets(n.mgr)
	if err != nil {
		return nil, err
	}
	out := make([]PageInfo, 0, len(infos))
	for _, t := range infos {
		out = append(out, PageInfo{URL: t.URL, TargetID: string(t.TargetID)})
	}
	return out, nil
}

// Cleanup applies the configured retention to the event log.
func (n *Navigator) Cleanup(ctx context.Context) error {
	if n.db == nil {
		return nil
	}
	days := n.cfg.Observability.RetentionDays
	return observability.Cleanup(ctx, n.db, observability.RetentionConfig{EventDays: days, MetricDays: days})
}

func (n *Navigator) driver(id string) (*driver.Driver, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	e, ok := n.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}
	return e.drv, nil
}

func (n *Navigator) has(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.pages[id]
	return ok
}

// Stop detaches every page and shuts the browser down.
func (n *Navigator) Stop() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	entries := n.pages
	n.pages = make(map[string]*pageEntry)
	n.mu.Unlock()

	ctx := context.Background()
	for id, e := range entries {
		n.stopEntry(ctx, e)
		n.logger.Info("keyhint: page detached", "page_id", id)
	}
	if n.events != nil {
		_ = n.events.Close()
	}
	if n.metrics != nil {
		_ = n.metrics.Close()
	}
	if err := n.mgr.Close(); err != nil {
		n.logger.Warn("keyhint: close browser", "error", err)
	}
}

// detachAll stops every driver before the browser goes away, keeping the
// page specs for reattach.
func (n *Navigator) detachAll() {
	n.mu.Lock()
	entries := make([]*pageEntry, 0, len(n.pages))
	for _, e := range n.pages {
		entries = append(entries, e)
	}
	n.mu.Unlock()
	for _, e := range entries {
		e.drv.Stop(context.Background())
	}
}

// reattach reopens every page after a recycle. Attached targets died with
// the old browser and are dropped.
func (n *Navigator) reattach() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	old := n.pages
	n.pages = make(map[string]*pageEntry)
	ctx := n.runCtx
	n.mu.Unlock()

	for id, e := range old {
		spec := e.spec
		spec.TargetID = ""
		if u := e.drv.URL(); u != "" {
			spec.URL = u
		}
		if spec.URL == "" {
			n.logger.Warn("keyhint: page lost in recycle", "page_id", id)
			continue
		}
		if _, err := n.Open(ctx, spec); err != nil {
			n.logger.Error("keyhint: reattach failed", "page_id", id, "error", err)
		}
	}
}
