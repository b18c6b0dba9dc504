package page

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
)

func el(id int, name string, attrs []string, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{
		BackendNodeID: proto.DOMBackendNodeID(id),
		NodeType:      dom.ElementNode,
		NodeName:      strings.ToUpper(name),
		LocalName:     name,
		Attributes:    attrs,
		Children:      children,
	}
}

func TestConvert(t *testing.T) {
	host := el(4, "my-card", nil)
	host.ShadowRoots = []*proto.DOMNode{{
		BackendNodeID:  5,
		NodeType:       dom.FragmentNode,
		ShadowRootType: proto.DOMShadowRootTypeOpen,
		Children:       []*proto.DOMNode{el(6, "button", []string{"ID", "inner"})},
	}}
	closed := el(7, "x-closed", nil)
	closed.ShadowRoots = []*proto.DOMNode{{
		BackendNodeID:  8,
		NodeType:       dom.FragmentNode,
		ShadowRootType: proto.DOMShadowRootTypeClosed,
		Children:       []*proto.DOMNode{el(9, "a", nil)},
	}}
	frame := el(10, "iframe", []string{"src", "/x"})
	frame.ContentDocument = &proto.DOMNode{BackendNodeID: 11, NodeType: dom.DocumentNode,
		Children: []*proto.DOMNode{el(12, "a", nil)}}

	doc := &proto.DOMNode{
		BackendNodeID: 1,
		NodeType:      dom.DocumentNode,
		Children: []*proto.DOMNode{
			el(2, "body", []string{"class", "main"},
				el(3, "a", []string{"href", "/a", "role", "link"}),
				host,
				closed,
				frame,
				&proto.DOMNode{BackendNodeID: 13, NodeType: dom.TextNode, NodeValue: "hi"},
			),
		},
	}

	tree := Convert(doc)
	if tree.Len() != 9 {
		t.Errorf("Len: got %d, want 9", tree.Len())
	}
	body := tree.Lookup(2)
	if body == nil || len(body.Children) != 5 {
		t.Fatalf("body: %+v", body)
	}
	for i, want := range []dom.NodeID{3, 4, 7, 10, 13} {
		if body.Children[i].ID != want {
			t.Errorf("child %d: got %d, want %d", i, body.Children[i].ID, want)
		}
	}
	a := tree.Lookup(3)
	if v, _ := a.Attr("role"); v != "link" || a.Tag != "a" || a.Parent != body {
		t.Errorf("a: %+v", a)
	}
	inner := tree.Lookup(6)
	if inner == nil || !inner.Parent.IsShadowRoot() || inner.Parent.Parent != tree.Lookup(4) {
		t.Fatalf("inner button not under open shadow root: %+v", inner)
	}
	if v, _ := inner.Attr("id"); v != "inner" {
		t.Errorf("attribute names must be lower-cased: %v", inner.Attrs)
	}
	if tree.Lookup(9) != nil || tree.Lookup(7).ShadowRoot != nil {
		t.Error("closed shadow roots must be skipped")
	}
	if tree.Lookup(12) != nil {
		t.Error("frame documents must be skipped")
	}
}

func TestConvert_Nil(t *testing.T) {
	if tree := Convert(nil); tree.Root == nil || tree.Len() != 1 {
		t.Errorf("Convert(nil): %+v", tree)
	}
}

func TestDecode(t *testing.T) {
	ev, err := Decode(`{"type":"keydown","key":"F","key_code":70,"meta":false,"path":[{"tag":"DIV","content_editable":false,"editable_attr":""}]}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Kind != EventKey || ev.Key.Key != "F" || ev.Key.KeyCode != 70 || len(ev.Key.Path) != 1 || ev.Key.Path[0].Tag != "DIV" {
		t.Errorf("keydown: %+v", ev)
	}

	ev, err = Decode(`{"type":"teardown"}`)
	if err != nil || ev.Kind != EventTeardown {
		t.Errorf("teardown: %+v %v", ev, err)
	}

	if _, err := Decode(`{"type":"mystery"}`); err == nil {
		t.Error("unknown type: expected error")
	}
	if _, err := Decode(`not json`); err == nil {
		t.Error("garbage: expected error")
	}
}

func TestShimIsEmbedded(t *testing.T) {
	for _, want := range []string{Binding, "removeHotkeyListeners", "preventDefault", "setKeys"} {
		if !strings.Contains(shim, want) {
			t.Errorf("shim missing %q", want)
		}
	}
}

func TestBootScriptCarriesKeys(t *testing.T) {
	boot, err := bootScript(machine.KeySet{Names: []string{"f", "j"}, Codes: []int{70, 74}})
	if err != nil {
		t.Fatalf("bootScript: %v", err)
	}
	if !strings.HasPrefix(boot, shim) || !strings.Contains(boot, `setKeys({"names":["f","j"],"codes":[70,74]})`) {
		t.Errorf("boot script tail: %q", boot[len(shim):])
	}
}

func TestCleanupFailedLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	h := &Host{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	h.cleanupFailed("remove binding", nil)
	if buf.Len() != 0 {
		t.Fatalf("logged without an error: %s", buf.String())
	}
	h.cleanupFailed("remove binding", errors.New("target closed"))
	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "page: remove binding") ||
		!strings.Contains(out, "target closed") {
		t.Errorf("log: %s", out)
	}
}
