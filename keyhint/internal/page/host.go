// CLAUDE:SUMMARY go-rod page host: DOM snapshot, measurement, hit test, label surface, clicks, scroll, key-event binding.
// Package page connects the hint engine to a live Chromium page over CDP.
//
// The page runs a small embedded script (keys.js) that forwards keydown
// events through a runtime binding, swallows the keys the state machine
// has published as consumed, and performs label DOM operations in batches.
// Everything else (document tree, geometry, hit testing, clicks) goes
// through DevTools protocol calls.
package page

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
	"github.com/hazyhaar/keyhint/keyhint/internal/overlay"
)

//go:embed keys.js
var shim string

// Binding is the runtime binding the shim reports through.
const Binding = "__keyhintEmit"

// objectGroup holds every remote object resolved during a hint session.
const objectGroup = "keyhint-session"

// Host implements the engine's page ports on a rod page.
type Host struct {
	page   *rod.Page
	logger *slog.Logger

	vp           dom.Viewport // last measured viewport, for hit testing
	removeScript func() error
}

// New wraps p. A nil logger uses slog.Default.
func New(p *rod.Page, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{page: p, logger: logger}
}

func (h *Host) ctx(ctx context.Context) *rod.Page { return h.page.Context(ctx) }

// Install adds the binding and runs the shim now and on every new
// document. keys is the set the shim swallows until the next PublishKeys;
// every fresh document starts with it.
func (h *Host) Install(ctx context.Context, keys machine.KeySet) error {
	p := h.ctx(ctx)
	if err := (proto.RuntimeEnable{}).Call(p); err != nil {
		return fmt.Errorf("page: runtime enable: %w", err)
	}
	if err := (proto.PageEnable{}).Call(p); err != nil {
		return fmt.Errorf("page: page enable: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: Binding}).Call(p); err != nil {
		return fmt.Errorf("page: add binding: %w", err)
	}
	boot, err := bootScript(keys)
	if err != nil {
		return err
	}
	remove, err := p.EvalOnNewDocument(boot)
	if err != nil {
		return fmt.Errorf("page: register shim: %w", err)
	}
	h.removeScript = remove
	if _, err := p.Eval("function() {\n" + boot + "\n}"); err != nil {
		return fmt.Errorf("page: run shim: %w", err)
	}
	h.logger.Debug("page: shim installed", "keys", len(keys.Names))
	return nil
}

// bootScript is the shim followed by the initial key set.
func bootScript(keys machine.KeySet) (string, error) {
	raw, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("page: encode keys: %w", err)
	}
	return shim + "\nwindow.__keyhint && window.__keyhint.setKeys(" + string(raw) + ");\n", nil
}

// Uninstall removes the page listeners and labels and stops injecting the
// shim into new documents.
func (h *Host) Uninstall(ctx context.Context) error {
	p := h.ctx(ctx)
	if h.removeScript != nil {
		h.cleanupFailed("remove shim script", h.removeScript())
		h.removeScript = nil
	}
	if _, err := p.Eval(`() => window.removeHotkeyListeners && window.removeHotkeyListeners()`); err != nil {
		return fmt.Errorf("page: uninstall: %w", err)
	}
	h.cleanupFailed("remove binding", proto.RuntimeRemoveBinding{Name: Binding}.Call(p))
	return nil
}

// cleanupFailed logs a best-effort teardown step that failed.
func (h *Host) cleanupFailed(step string, err error) {
	if err != nil {
		h.logger.Debug("page: "+step, "error", err)
	}
}

// Snapshot reads the whole document with open shadow roots pierced.
func (h *Host) Snapshot(ctx context.Context) (*dom.Tree, error) {
	depth := -1
	res, err := proto.DOMGetDocument{Depth: &depth, Pierce: true}.Call(h.ctx(ctx))
	if err != nil {
		return nil, fmt.Errorf("page: get document: %w", err)
	}
	return Convert(res.Root), nil
}

// measurement is what the measure script returns.
type measurement struct {
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	ScrollX float64      `json:"scroll_x"`
	ScrollY float64      `json:"scroll_y"`
	Rects   [][4]float64 `json:"rects"`
}

const measureJS = `function(...els) {
	const de = document.documentElement;
	return JSON.stringify({
		width: window.innerWidth || de.clientWidth,
		height: window.innerHeight || de.clientHeight,
		scroll_x: window.scrollX,
		scroll_y: window.scrollY,
		rects: els.map(el => {
			const r = el.getBoundingClientRect();
			return [r.left, r.top, r.width, r.height];
		}),
	});
}`

// Measure resolves nodes in the session object group and reads their
// bounding boxes and the viewport in one evaluation.
func (h *Host) Measure(ctx context.Context, nodes []*dom.Node) ([]dom.Candidate, dom.Viewport, error) {
	p := h.ctx(ctx)
	args := make([]interface{}, 0, len(nodes))
	kept := make([]*dom.Node, 0, len(nodes))
	for _, n := range nodes {
		res, err := proto.DOMResolveNode{
			BackendNodeID: proto.DOMBackendNodeID(n.ID),
			ObjectGroup:   objectGroup,
		}.Call(p)
		if err != nil {
			h.logger.Debug("page: resolve node", "node", n.ID, "error", err)
			continue
		}
		args = append(args, res.Object)
		kept = append(kept, n)
	}

	res, err := p.Evaluate(&rod.EvalOptions{ByValue: true, JS: measureJS, JSArgs: args})
	if err != nil {
		return nil, dom.Viewport{}, fmt.Errorf("page: measure: %w", err)
	}
	var m measurement
	if err := json.Unmarshal([]byte(res.Value.Str()), &m); err != nil {
		return nil, dom.Viewport{}, fmt.Errorf("page: measure: decode: %w", err)
	}
	if len(m.Rects) != len(kept) {
		return nil, dom.Viewport{}, fmt.Errorf("page: measure: got %d boxes for %d nodes", len(m.Rects), len(kept))
	}

	vp := dom.Viewport{Width: m.Width, Height: m.Height, ScrollX: m.ScrollX, ScrollY: m.ScrollY}
	h.vp = vp
	out := make([]dom.Candidate, len(kept))
	for i, n := range kept {
		r := m.Rects[i]
		out[i] = dom.Candidate{Node: n, Box: dom.Rect{Left: r[0], Top: r[1], Width: r[2], Height: r[3]}}
	}
	return out, vp, nil
}

// HitTest returns the deepest node at the viewport point (x, y), shadow
// trees included. The point is shifted by the scroll offset of the last
// Measure.
func (h *Host) HitTest(ctx context.Context, x, y float64) (dom.NodeID, error) {
	res, err := proto.DOMGetNodeForLocation{
		X: int(math.Ceil(x + h.vp.ScrollX)),
		Y: int(math.Ceil(y + h.vp.ScrollY)),
	}.Call(h.ctx(ctx))
	if err != nil {
		return 0, fmt.Errorf("page: hit test (%.0f,%.0f): %w", x, y, err)
	}
	return dom.NodeID(res.BackendNodeID), nil
}

// Forget releases every remote object held for the session.
func (h *Host) Forget(ctx context.Context) error {
	if err := (proto.RuntimeReleaseObjectGroup{ObjectGroup: objectGroup}).Call(h.ctx(ctx)); err != nil {
		return fmt.Errorf("page: release group: %w", err)
	}
	return nil
}

// shimCall runs a method of the in-page shim.
func (h *Host) shimCall(ctx context.Context, method string, args ...interface{}) error {
	js := fmt.Sprintf(`function(...args) {
	if (!window.__keyhint) throw new Error('keyhint shim not installed');
	return window.__keyhint.%s(...args);
}`, method)
	if _, err := h.ctx(ctx).Evaluate(rod.Eval(js, args...)); err != nil {
		return fmt.Errorf("page: %s: %w", method, err)
	}
	return nil
}

type mountArgs struct {
	Style       overlay.Style   `json:"style"`
	Labels      []overlay.Label `json:"labels"`
	ActiveClass string          `json:"active_class"`
}

// Mount draws the labels.
func (h *Host) Mount(ctx context.Context, style overlay.Style, labels []overlay.Label) error {
	return h.shimCall(ctx, "mount", mountArgs{Style: style, Labels: labels, ActiveClass: overlay.ActiveClass})
}

// Update applies per-label display state.
func (h *Host) Update(ctx context.Context, views []overlay.View) error {
	return h.shimCall(ctx, "update", views)
}

// Unmount removes every label.
func (h *Host) Unmount(ctx context.Context) error {
	return h.shimCall(ctx, "unmount")
}

// ScrollBy scrolls the window vertically.
func (h *Host) ScrollBy(ctx context.Context, dy float64, smooth bool) error {
	return h.shimCall(ctx, "scrollBy", dy, smooth)
}

// PublishKeys sets the keys the shim swallows.
func (h *Host) PublishKeys(ctx context.Context, keys machine.KeySet) error {
	return h.shimCall(ctx, "setKeys", keys)
}

func (h *Host) element(ctx context.Context, id dom.NodeID) (*rod.Element, error) {
	el, err := h.ctx(ctx).ElementFromNode(&proto.DOMNode{BackendNodeID: proto.DOMBackendNodeID(id)})
	if err != nil {
		return nil, fmt.Errorf("page: resolve %d: %w", id, err)
	}
	return el, nil
}

// DispatchClick dispatches a bubbling, cancelable click on the element.
func (h *Host) DispatchClick(ctx context.Context, id dom.NodeID) error {
	el, err := h.element(ctx, id)
	if err != nil {
		return err
	}
	_, err = el.Evaluate(&rod.EvalOptions{
		JS:          `function() { this.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true, view: window})); }`,
		UserGesture: true,
	})
	if err != nil {
		return fmt.Errorf("page: dispatch click: %w", err)
	}
	return nil
}

// DirectClick calls the element's native click().
func (h *Host) DirectClick(ctx context.Context, id dom.NodeID) error {
	el, err := h.element(ctx, id)
	if err != nil {
		return err
	}
	if _, err := el.Eval(`function() { this.click(); }`); err != nil {
		return fmt.Errorf("page: click: %w", err)
	}
	return nil
}

// Focus focuses the element.
func (h *Host) Focus(ctx context.Context, id dom.NodeID) error {
	el, err := h.element(ctx, id)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("page: focus: %w", err)
	}
	return nil
}

// OuterHTML returns the markup of a node.
func (h *Host) OuterHTML(ctx context.Context, id dom.NodeID) (string, error) {
	res, err := proto.DOMGetOuterHTML{BackendNodeID: proto.DOMBackendNodeID(id)}.Call(h.ctx(ctx))
	if err != nil {
		return "", fmt.Errorf("page: outer html %d: %w", id, err)
	}
	return res.OuterHTML, nil
}

// URL returns the current page URL.
func (h *Host) URL() string {
	info, err := h.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
