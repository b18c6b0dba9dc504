// Package drivertest provides an in-memory driver.Host for tests.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/dom/domtest"
	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
	"github.com/hazyhaar/keyhint/keyhint/internal/overlay"
	"github.com/hazyhaar/keyhint/keyhint/internal/page"
)

// Host is a fake page. Every element with a box is visible and unobscured.
type Host struct {
	mu sync.Mutex

	tree    *dom.Tree
	boxes   map[dom.NodeID]dom.Rect
	html    map[dom.NodeID]string
	vp      dom.Viewport
	pageURL string

	installed   []machine.KeySet
	published   []machine.KeySet
	labels      []overlay.Label
	views       []overlay.View
	clicks      []dom.NodeID
	scrolls     []float64
	uninstalled bool

	emit      func(page.Event)
	listening chan struct{}
	once      sync.Once
}

// NewLinks returns a page at pageURL with n links stacked 20px apart.
// Link i has id attribute "l<i>" and markup <a href="/p<i>">Link <i></a>.
func NewLinks(pageURL string, n int) *Host {
	var links []*dom.Node
	for i := range n {
		links = append(links, domtest.El("a", []string{fmt.Sprintf("id=l%d", i)}))
	}
	tree := domtest.Tree(domtest.Doc(domtest.El("body", nil, links...)))
	h := &Host{
		tree:      tree,
		boxes:     make(map[dom.NodeID]dom.Rect),
		html:      make(map[dom.NodeID]string),
		vp:        dom.Viewport{Width: 1000, Height: 100000},
		pageURL:   pageURL,
		listening: make(chan struct{}),
	}
	for i, l := range links {
		h.boxes[l.ID] = dom.Rect{Left: 5, Top: float64(i * 20), Width: 40, Height: 12}
		h.html[l.ID] = fmt.Sprintf(`<a id="l%d" href="/p%d">Link %d</a>`, i, i, i)
	}
	return h
}

// Node returns the element with the given id attribute.
func (h *Host) Node(id string) *dom.Node { return domtest.Find(h.tree, id) }

// Emit delivers ev as if the page sent it. It waits for Listen.
func (h *Host) Emit(ev page.Event) {
	<-h.listening
	h.mu.Lock()
	fn := h.emit
	h.mu.Unlock()
	fn(ev)
}

// Clicks returns the clicked node ids.
func (h *Host) Clicks() []dom.NodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dom.NodeID(nil), h.clicks...)
}

// Labels returns the mounted labels.
func (h *Host) Labels() []overlay.Label {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]overlay.Label(nil), h.labels...)
}

// Scrolls returns every scroll delta.
func (h *Host) Scrolls() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.scrolls...)
}

// Installed returns the key sets passed to Install.
func (h *Host) Installed() []machine.KeySet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]machine.KeySet(nil), h.installed...)
}

// Uninstalled reports whether Uninstall ran.
func (h *Host) Uninstalled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.uninstalled
}

func (h *Host) Install(_ context.Context, keys machine.KeySet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installed = append(h.installed, keys)
	return nil
}

func (h *Host) Uninstall(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uninstalled = true
	h.labels = nil
	return nil
}

func (h *Host) Listen(ctx context.Context, fn func(page.Event)) {
	h.mu.Lock()
	h.emit = fn
	h.mu.Unlock()
	h.once.Do(func() { close(h.listening) })
	<-ctx.Done()
}

func (h *Host) Snapshot(context.Context) (*dom.Tree, error) { return h.tree, nil }

func (h *Host) Measure(_ context.Context, nodes []*dom.Node) ([]dom.Candidate, dom.Viewport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]dom.Candidate, 0, len(nodes))
	for _, n := range nodes {
		if b, ok := h.boxes[n.ID]; ok {
			out = append(out, dom.Candidate{Node: n, Box: b})
		}
	}
	return out, h.vp, nil
}

func (h *Host) HitTest(_ context.Context, x, y float64) (dom.NodeID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, b := range h.boxes {
		if b.Left == x && b.Top == y {
			return id, nil
		}
	}
	return 0, errors.New("drivertest: nothing at point")
}

func (h *Host) ScrollBy(_ context.Context, dy float64, _ bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrolls = append(h.scrolls, dy)
	return nil
}

func (h *Host) PublishKeys(_ context.Context, keys machine.KeySet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, keys)
	return nil
}

func (h *Host) Forget(context.Context) error { return nil }

func (h *Host) Mount(_ context.Context, _ overlay.Style, labels []overlay.Label) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels = labels
	return nil
}

func (h *Host) Update(_ context.Context, views []overlay.View) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views = views
	return nil
}

func (h *Host) Unmount(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.labels = nil
	h.views = nil
	return nil
}

func (h *Host) DispatchClick(_ context.Context, id dom.NodeID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clicks = append(h.clicks, id)
	return nil
}

func (h *Host) DirectClick(ctx context.Context, id dom.NodeID) error {
	return h.DispatchClick(ctx, id)
}

func (h *Host) Focus(context.Context, dom.NodeID) error { return nil }

func (h *Host) OuterHTML(_ context.Context, id dom.NodeID) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.html[id]
	if !ok {
		return "", fmt.Errorf("drivertest: no node %d", id)
	}
	return s, nil
}

func (h *Host) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pageURL
}
