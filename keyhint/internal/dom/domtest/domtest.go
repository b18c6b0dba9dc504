// Package domtest builds dom trees for tests.
package domtest

import (
	"strings"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// El creates an element. Attributes are "name=value" strings; a bare name
// gets an empty value.
func El(tag string, attrs []string, children ...*dom.Node) *dom.Node {
	n := &dom.Node{Type: dom.ElementNode, Tag: tag, Children: children}
	if len(attrs) > 0 {
		n.Attrs = make(map[string]string, len(attrs))
		for _, a := range attrs {
			k, v, _ := strings.Cut(a, "=")
			n.Attrs[k] = strings.Trim(v, `"`)
		}
	}
	return n
}

// Text creates a text node.
func Text() *dom.Node { return &dom.Node{Type: dom.TextNode} }

// Doc creates a document node.
func Doc(children ...*dom.Node) *dom.Node {
	return &dom.Node{Type: dom.DocumentNode, Children: children}
}

// Host attaches an open shadow root holding children to host and returns host.
func Host(host *dom.Node, children ...*dom.Node) *dom.Node {
	host.ShadowRoot = &dom.Node{Type: dom.FragmentNode, Children: children}
	return host
}

// Tree wires parent links, numbers nodes in pre-order starting at 1 and
// indexes the result.
func Tree(root *dom.Node) *dom.Tree {
	id := dom.NodeID(0)
	var walk func(n, parent *dom.Node)
	walk = func(n, parent *dom.Node) {
		id++
		n.ID = id
		n.Parent = parent
		for _, c := range n.Children {
			walk(c, n)
		}
		if n.ShadowRoot != nil {
			walk(n.ShadowRoot, n)
		}
	}
	walk(root, nil)
	return dom.NewTree(root)
}

// Find returns the first element (pre-order, shadow trees included) whose
// id attribute equals id.
func Find(t *dom.Tree, id string) *dom.Node {
	var found *dom.Node
	var walk func(n *dom.Node)
	walk = func(n *dom.Node) {
		if n == nil || found != nil {
			return
		}
		if v, ok := n.Attr("id"); ok && v == id {
			found = n
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
		walk(n.ShadowRoot)
	}
	walk(t.Root)
	return found
}
