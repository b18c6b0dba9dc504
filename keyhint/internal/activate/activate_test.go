package activate

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

type recClicker struct {
	calls       []string
	dispatchErr error
}

func (c *recClicker) DispatchClick(context.Context, dom.NodeID) error {
	c.calls = append(c.calls, "dispatch")
	return c.dispatchErr
}

func (c *recClicker) DirectClick(context.Context, dom.NodeID) error {
	c.calls = append(c.calls, "direct")
	return nil
}

func (c *recClicker) Focus(context.Context, dom.NodeID) error {
	c.calls = append(c.calls, "focus")
	return nil
}

func run(c *recClicker, target *dom.Node) []string {
	New(c, nil).Activate(context.Background(), target, func(context.Context) {
		c.calls = append(c.calls, "teardown")
	})
	return c.calls
}

func el(tag string) *dom.Node { return &dom.Node{ID: 4, Type: dom.ElementNode, Tag: tag} }

func TestActivate(t *testing.T) {
	tests := []struct {
		name   string
		target *dom.Node
		err    error
		want   string
	}{
		{"link", el("a"), nil, "[teardown dispatch]"},
		{"input gets focus", el("input"), nil, "[teardown dispatch focus]"},
		{"select gets focus", el("select"), nil, "[teardown dispatch focus]"},
		{"button no focus", el("button"), nil, "[teardown dispatch]"},
		{"fallback", el("a"), errors.New("context lost"), "[teardown dispatch direct]"},
		{"fallback then focus", el("textarea"), errors.New("context lost"), "[teardown dispatch direct focus]"},
		{"nil target", nil, nil, "[teardown]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(&recClicker{dispatchErr: tt.err}, tt.target)
			if s := fmtCalls(got); s != tt.want {
				t.Errorf("calls: got %s, want %s", s, tt.want)
			}
		})
	}
}

func fmtCalls(c []string) string {
	s := "["
	for i, x := range c {
		if i > 0 {
			s += " "
		}
		s += x
	}
	return s + "]"
}
