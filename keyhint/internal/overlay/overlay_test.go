package overlay

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/hint"
)

type recSurface struct {
	labels   []Label
	style    Style
	updates  [][]View
	unmounts int
	err      error
}

func (s *recSurface) Mount(_ context.Context, style Style, labels []Label) error {
	if s.err != nil {
		return s.err
	}
	s.style, s.labels = style, labels
	return nil
}

func (s *recSurface) Update(_ context.Context, views []View) error {
	s.updates = append(s.updates, views)
	return nil
}

func (s *recSurface) Unmount(context.Context) error {
	s.unmounts++
	s.labels = nil
	return nil
}

func mkHint(code string, id dom.NodeID, left, top float64) hint.Hint {
	return hint.Hint{Code: code, Candidate: dom.Candidate{
		Node: &dom.Node{ID: id, Type: dom.ElementNode, Tag: "a"},
		Box:  dom.Rect{Left: left, Top: top, Width: 10, Height: 10},
	}}
}

func TestRender(t *testing.T) {
	h := mkHint("sd", 1, 0, 0)
	tests := []struct {
		prefix string
		want   View
	}{
		{"", View{Code: "sd", Rest: "sd"}},
		{"s", View{Code: "sd", Emphasis: "s", Rest: "d"}},
		{"sd", View{Code: "sd", Emphasis: "sd", Rest: ""}},
		{"a", View{Code: "sd", Hidden: true}},
		{"sdx", View{Code: "sd", Hidden: true}},
	}
	for _, tt := range tests {
		if got := Render(h, tt.prefix); got != tt.want {
			t.Errorf("Render(%q): got %+v, want %+v", tt.prefix, got, tt.want)
		}
	}
}

func TestPlace_AddsScrollOffset(t *testing.T) {
	l := Place(mkHint("aa", 7, 15, 25), dom.Viewport{Width: 800, Height: 600, ScrollX: 100, ScrollY: 300})
	want := Label{Code: "aa", Target: 7, Left: 115, Top: 325}
	if l != want {
		t.Errorf("Place: got %+v, want %+v", l, want)
	}
}

func TestRenderer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := &recSurface{}
	r := NewRenderer(s, DefaultStyle(), nil)
	hints := []hint.Hint{mkHint("aa", 1, 0, 0), mkHint("as", 2, 0, 20), mkHint("sa", 3, 0, 40)}

	if err := r.UpdateDisplay(ctx, hints, "a"); err != nil || len(s.updates) != 0 {
		t.Fatalf("update before show should be a no-op: err=%v updates=%d", err, len(s.updates))
	}

	if err := r.Show(ctx, hints, dom.Viewport{}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if len(s.labels) != 3 || s.style.ZIndex != 10000 || !r.Mounted() {
		t.Fatalf("Show: labels=%d style=%+v", len(s.labels), s.style)
	}

	if err := r.UpdateDisplay(ctx, hints, "a"); err != nil {
		t.Fatalf("UpdateDisplay: %v", err)
	}
	got := s.updates[0]
	if got[0].Hidden || got[1].Hidden || !got[2].Hidden {
		t.Errorf("UpdateDisplay(a): hidden flags %v %v %v", got[0].Hidden, got[1].Hidden, got[2].Hidden)
	}

	if err := r.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := r.RemoveAll(ctx); err != nil {
		t.Fatalf("second RemoveAll: %v", err)
	}
	if s.unmounts != 2 || r.Mounted() {
		t.Errorf("unmounts=%d mounted=%v", s.unmounts, r.Mounted())
	}
}

func TestRenderer_MountError(t *testing.T) {
	s := &recSurface{err: errors.New("detached")}
	r := NewRenderer(s, DefaultStyle(), nil)
	if err := r.Show(context.Background(), []hint.Hint{mkHint("aa", 1, 0, 0)}, dom.Viewport{}); err == nil {
		t.Fatal("expected error")
	}
	if r.Mounted() {
		t.Error("failed mount must not mark the overlay mounted")
	}
}
