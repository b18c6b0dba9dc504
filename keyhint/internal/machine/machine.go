// CLAUDE:SUMMARY Input State Machine: Idle/Hinting transitions on keydown, prefix accumulation, deferred unique-match activation.
// Package machine is the keyboard state machine of one page. It decides,
// for every keydown, whether to start or cancel a hint session, scroll,
// extend or shorten the typed prefix, or let the key through.
//
// A Machine is confined to the goroutine that owns it (the page driver);
// none of its methods are safe for concurrent use.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/keyhint/idgen"
	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/hint"
	"github.com/hazyhaar/keyhint/keyhint/internal/overlay"
	"github.com/hazyhaar/keyhint/keyhint/internal/query"
	"github.com/hazyhaar/keyhint/keyhint/internal/visibility"
)

// DefaultScrollStep is ten 16px lines.
const DefaultScrollStep = 10 * 16

// Verdict tells the page whether a key was handled.
type Verdict int

const (
	// Ignored keys reach the page untouched.
	Ignored Verdict = iota
	// Consumed keys have their default action and propagation suppressed.
	Consumed
)

func (v Verdict) String() string {
	if v == Consumed {
		return "consumed"
	}
	return "ignored"
}

// Mode is the machine state.
type Mode string

const (
	Idle    Mode = "idle"
	Hinting Mode = "hinting"
)

// Page is everything the machine needs from the browser.
type Page interface {
	// Snapshot returns the current document, open shadow roots included.
	Snapshot(ctx context.Context) (*dom.Tree, error)
	// Measure returns the bounding boxes of nodes, in order, and the viewport.
	// Nodes that cannot be measured are dropped.
	Measure(ctx context.Context, nodes []*dom.Node) ([]dom.Candidate, dom.Viewport, error)
	visibility.HitTester
	// ScrollBy scrolls the window vertically by dy CSS pixels.
	ScrollBy(ctx context.Context, dy float64, smooth bool) error
	// PublishKeys tells the page which keys to swallow from now on.
	PublishKeys(ctx context.Context, keys KeySet) error
	// Forget releases page-side handles held for the session.
	Forget(ctx context.Context) error
}

// Activator acts on the element a hint selected. teardown must run before
// anything else.
type Activator interface {
	Activate(ctx context.Context, target *dom.Node, teardown func(context.Context))
}

// Session is the live hint session.
type Session struct {
	ID     string
	Hints  []hint.Hint
	Prefix string
}

// Active reports whether hints are displayed.
func (s *Session) Active() bool { return s != nil && len(s.Hints) > 0 }

// State is a read-only copy of the machine state.
type State struct {
	Mode      Mode
	SessionID string
	Prefix    string
	Hints     []hint.Hint
	Views     []overlay.View
}

// EventKind names a session lifecycle event.
type EventKind string

const (
	EventStarted   EventKind = "hint_session_started"
	EventEmpty     EventKind = "hint_session_empty"
	EventActivated EventKind = "hint_activated"
	EventCancelled EventKind = "hint_session_cancelled"
	EventReset     EventKind = "hint_session_reset"
)

// Event is emitted on session lifecycle transitions.
type Event struct {
	Kind      EventKind
	SessionID string
	Matched   int // selector matches before visibility filtering
	Hints     int
	Code      string
	Tag       string // activated element
	Reason    string
}

// Config configures a Machine.
type Config struct {
	Page      Page            // required
	Surface   overlay.Surface // required
	Activator Activator       // required
	Scheduler Scheduler       // required

	Selector   *query.Selector // default query.DefaultSelector
	Alphabet   string          // default hint.DefaultAlphabet
	Keys       Keymap          // default DefaultKeymap()
	ScrollStep float64         // default DefaultScrollStep
	Smooth     bool
	Style      overlay.Style

	NewID   idgen.Generator // default idgen.Prefixed("hs_", idgen.Default)
	OnEvent func(Event)
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.Selector == nil {
		c.Selector = query.MustCompile(query.DefaultSelector)
	}
	if c.Alphabet == "" {
		c.Alphabet = hint.DefaultAlphabet
	}
	if c.Keys == (Keymap{}) {
		c.Keys = DefaultKeymap()
	}
	if c.ScrollStep == 0 {
		c.ScrollStep = DefaultScrollStep
	}
	if c.Style == (overlay.Style{}) {
		c.Style = overlay.DefaultStyle()
	}
	if c.NewID == nil {
		c.NewID = idgen.Prefixed("hs_", idgen.Default)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Machine is the per-page keyboard state machine.
type Machine struct {
	cfg      Config
	page     Page
	sched    Scheduler
	renderer *overlay.Renderer
	logger   *slog.Logger
	session  *Session
}

// New creates an idle Machine.
func New(cfg Config) (*Machine, error) {
	if cfg.Page == nil || cfg.Surface == nil || cfg.Activator == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("machine: page, surface, activator and scheduler are required")
	}
	cfg.defaults()
	if err := hint.ValidateAlphabet(cfg.Alphabet); err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	if err := cfg.Keys.Validate(cfg.Alphabet); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:      cfg,
		page:     cfg.Page,
		sched:    cfg.Scheduler,
		renderer: overlay.NewRenderer(cfg.Surface, cfg.Style, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// Mode returns the current state.
func (m *Machine) Mode() Mode {
	if m.session.Active() {
		return Hinting
	}
	return Idle
}

// HandleKey runs one keydown through the machine. Checks happen in a fixed
// order: editable target, meta chord, escape, activation key, scroll keys,
// then hint keys.
func (m *Machine) HandleKey(ctx context.Context, ev KeyEvent) Verdict {
	if dom.AnyEditable(ev.Path) || ev.Meta {
		return Ignored
	}
	key := strings.ToLower(ev.Key)
	hinting := m.session.Active()

	if hinting && (key == "escape" || ev.KeyCode == codeEscape) {
		m.cancel(ctx, "escape")
		return Consumed
	}

	if is(ev, m.cfg.Keys.Activation) {
		if hinting {
			m.cancel(ctx, "toggle")
		} else {
			m.start(ctx)
		}
		return Consumed
	}

	if is(ev, m.cfg.Keys.ScrollDown) {
		m.scroll(ctx, m.cfg.ScrollStep)
		return Consumed
	}
	if is(ev, m.cfg.Keys.ScrollUp) {
		m.scroll(ctx, -m.cfg.ScrollStep)
		return Consumed
	}

	if !hinting {
		return Ignored
	}

	switch sym, ok := hintSymbol(ev, m.cfg.Alphabet); {
	case key == "backspace" || ev.KeyCode == codeBackspace:
		if p := m.session.Prefix; p != "" {
			m.session.Prefix = p[:len(p)-1]
		}
	case ok:
		m.session.Prefix += sym
	default:
		return Ignored
	}

	if err := m.renderer.UpdateDisplay(ctx, m.session.Hints, m.session.Prefix); err != nil {
		m.logger.Warn("machine: update labels", "session_id", m.session.ID, "error", err)
	}
	if h, ok := hint.Unique(m.session.Hints, m.session.Prefix); ok {
		m.scheduleActivation(h)
	}
	return Consumed
}

// start collects candidates and, if any qualify, shows hints.
func (m *Machine) start(ctx context.Context) {
	hints, vp, matched, err := m.scan(ctx)
	if err != nil {
		m.logger.Warn("machine: scan failed", "error", err)
		m.release(ctx)
		return
	}
	if len(hints) == 0 {
		m.logger.Debug("machine: no hintable elements")
		m.release(ctx)
		m.emit(Event{Kind: EventEmpty, Matched: matched})
		return
	}

	s := &Session{ID: m.cfg.NewID(), Hints: hints}
	if err := m.renderer.Show(ctx, hints, vp); err != nil {
		m.logger.Warn("machine: show hints", "session_id", s.ID, "error", err)
		m.clearPage(ctx)
		return
	}
	m.session = s
	m.publish(ctx)
	m.logger.Info("machine: hints shown", "session_id", s.ID, "count", len(hints))
	m.emit(Event{Kind: EventStarted, SessionID: s.ID, Matched: matched, Hints: len(hints)})
}

func (m *Machine) scan(ctx context.Context) ([]hint.Hint, dom.Viewport, int, error) {
	tree, err := m.page.Snapshot(ctx)
	if err != nil {
		return nil, dom.Viewport{}, 0, fmt.Errorf("snapshot: %w", err)
	}
	nodes := query.Collect(m.cfg.Selector, tree.Root)
	if len(nodes) == 0 {
		return nil, dom.Viewport{}, 0, nil
	}
	cands, vp, err := m.page.Measure(ctx, nodes)
	if err != nil {
		return nil, dom.Viewport{}, len(nodes), fmt.Errorf("measure: %w", err)
	}
	cands = visibility.Filter(ctx, cands, vp, m.page, tree, m.logger)
	return hint.Allocate(cands, m.cfg.Alphabet), vp, len(nodes), nil
}

func (m *Machine) scroll(ctx context.Context, dy float64) {
	if err := m.page.ScrollBy(ctx, dy, m.cfg.Smooth); err != nil {
		m.logger.Warn("machine: scroll", "dy", dy, "error", err)
	}
}

func (m *Machine) scheduleActivation(h hint.Hint) {
	sessionID := m.session.ID
	target := h.Candidate.Node
	code := h.Code
	var tag string
	if target != nil {
		tag = target.Tag
	}
	m.logger.Debug("machine: unique match", "session_id", sessionID, "code", code)
	m.sched.Schedule(func(ctx context.Context) {
		m.emit(Event{Kind: EventActivated, SessionID: sessionID, Code: code, Tag: tag})
		m.cfg.Activator.Activate(ctx, target, m.Teardown)
	})
}

func (m *Machine) cancel(ctx context.Context, reason string) {
	id := m.session.ID
	m.Teardown(ctx)
	m.logger.Info("machine: hints cancelled", "session_id", id, "reason", reason)
	m.emit(Event{Kind: EventCancelled, SessionID: id, Reason: reason})
}

// Teardown removes every label, cancels any pending activation and
// returns to Idle. Safe to call in any state.
func (m *Machine) Teardown(ctx context.Context) {
	m.sched.Cancel()
	m.session = nil
	m.clearPage(ctx)
}

// Reset drops the session without touching the page. Used once the page
// has already lost labels and handles on its own (navigation, in-page
// teardown). reason ends up in the reset event.
func (m *Machine) Reset(ctx context.Context, reason string) {
	m.sched.Cancel()
	prev := m.session
	m.session = nil
	m.renderer.Forget()
	if prev.Active() {
		m.logger.Info("machine: session reset", "session_id", prev.ID, "reason", reason)
		m.emit(Event{Kind: EventReset, SessionID: prev.ID, Reason: reason})
	}
}

func (m *Machine) clearPage(ctx context.Context) {
	if err := m.renderer.RemoveAll(ctx); err != nil {
		m.logger.Warn("machine: remove labels", "error", err)
	}
	m.release(ctx)
	m.publish(ctx)
}

func (m *Machine) release(ctx context.Context) {
	if err := m.page.Forget(ctx); err != nil {
		m.logger.Debug("machine: release handles", "error", err)
	}
}

func (m *Machine) publish(ctx context.Context) {
	if err := m.page.PublishKeys(ctx, m.ConsumedKeys()); err != nil {
		m.logger.Warn("machine: publish keys", "mode", m.Mode(), "error", err)
	}
}

// ConsumedKeys is the set of keys the page must swallow in the current
// state: command keys always, plus escape, backspace and the alphabet
// while hinting.
func (m *Machine) ConsumedKeys() KeySet {
	var ks KeySet
	for _, k := range []string{m.cfg.Keys.Activation, m.cfg.Keys.ScrollDown, m.cfg.Keys.ScrollUp} {
		ks.add(k, letterCode(k))
	}
	if m.session.Active() {
		ks.add("escape", codeEscape)
		ks.add("backspace", codeBackspace)
		for _, r := range m.cfg.Alphabet {
			s := string(r)
			ks.add(s, letterCode(s))
		}
	}
	ks.normalize()
	return ks
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	st := State{Mode: m.Mode()}
	if !m.session.Active() {
		return st
	}
	st.SessionID = m.session.ID
	st.Prefix = m.session.Prefix
	st.Hints = append([]hint.Hint(nil), m.session.Hints...)
	st.Views = make([]overlay.View, len(st.Hints))
	for i, h := range st.Hints {
		st.Views[i] = overlay.Render(h, st.Prefix)
	}
	return st
}

func (m *Machine) emit(ev Event) {
	if m.cfg.OnEvent != nil {
		m.cfg.OnEvent(ev)
	}
}
