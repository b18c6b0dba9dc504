// CLAUDE:SUMMARY Pure Go mirror of the page document: nodes, composed parent links, open shadow roots, geometry.
// Package dom holds the in-memory document model the hint engine reasons
// about. Trees are built by the page host from a pierced DOM.getDocument
// and never talk to the browser themselves.
package dom

import "strings"

// Node types, as reported by the DOM.
const (
	ElementNode  = 1
	TextNode     = 3
	DocumentNode = 9
	FragmentNode = 11
)

// NodeID identifies a node for the lifetime of the page (CDP backend node id).
type NodeID int

// Node is one DOM node. Parent is the composed parent: the parent of a
// shadow root is its host.
type Node struct {
	ID         NodeID
	Type       int
	Tag        string // lower-case local name, empty for non-elements
	Attrs      map[string]string
	Parent     *Node
	Children   []*Node
	ShadowRoot *Node // open shadow root hosted by this element, if any
}

// Attr returns the value of an attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// IsElement reports whether n is an element node.
func (n *Node) IsElement() bool { return n != nil && n.Type == ElementNode }

// IsShadowRoot reports whether n is the root fragment of a shadow tree.
func (n *Node) IsShadowRoot() bool {
	return n != nil && n.Type == FragmentNode && n.Parent != nil && n.Parent.ShadowRoot == n
}

// Contains reports whether other is n or a composed descendant of n.
func (n *Node) Contains(other *Node) bool {
	if n == nil || other == nil {
		return false
	}
	for cur := other; cur != nil; cur = cur.Parent {
		if cur == n {
			return true
		}
	}
	return false
}

// ContainsTag reports whether a descendant of n in n's own tree (shadow
// trees excluded) has the given tag.
func (n *Node) ContainsTag(tag string) bool {
	if n == nil {
		return false
	}
	stack := append([]*Node(nil), n.Children...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Tag == tag {
			return true
		}
		stack = append(stack, cur.Children...)
	}
	return false
}

// Tree is an indexed document.
type Tree struct {
	Root  *Node
	index map[NodeID]*Node
}

// NewTree indexes every node reachable from root, shadow roots included.
func NewTree(root *Node) *Tree {
	t := &Tree{Root: root, index: make(map[NodeID]*Node)}
	stack := []*Node{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		t.index[cur.ID] = cur
		stack = append(stack, cur.Children...)
		if cur.ShadowRoot != nil {
			stack = append(stack, cur.ShadowRoot)
		}
	}
	return t
}

// Lookup returns the node with the given id, or nil.
func (t *Tree) Lookup(id NodeID) *Node {
	if t == nil {
		return nil
	}
	return t.index[id]
}

// Len returns the number of indexed nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.index)
}

// Rect is a viewport-relative bounding box in CSS pixels.
type Rect struct {
	Left, Top, Width, Height float64
}

// Right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Viewport is the layout viewport size and scroll offset.
type Viewport struct {
	Width, Height    float64
	ScrollX, ScrollY float64
}

// Candidate is an element plus its bounding box at hint-generation time.
type Candidate struct {
	Node *Node
	Box  Rect
}

// PathEntry describes one element of a keyboard event's composed path.
type PathEntry struct {
	Tag             string `json:"tag"`
	ContentEditable bool   `json:"content_editable"`
	EditableAttr    string `json:"editable_attr"`
}

// Editable reports whether the entry is a text-editable control.
func (p PathEntry) Editable() bool {
	switch strings.ToLower(p.Tag) {
	case "input", "textarea":
		return true
	}
	return p.ContentEditable || p.EditableAttr == "true"
}

// AnyEditable reports whether any entry of the path is editable.
func AnyEditable(path []PathEntry) bool {
	for _, p := range path {
		if p.Editable() {
			return true
		}
	}
	return false
}
