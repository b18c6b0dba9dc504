package page

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// Convert turns a pierced CDP document into a dom.Tree. Open shadow roots
// are kept; closed and user-agent roots, frame documents, template
// contents and pseudo elements are not.
func Convert(root *proto.DOMNode) *dom.Tree {
	if root == nil {
		return dom.NewTree(&dom.Node{Type: dom.DocumentNode})
	}
	type frame struct {
		src    *proto.DOMNode
		parent *dom.Node
		shadow bool
	}

	var top *dom.Node
	stack := []frame{{src: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &dom.Node{
			ID:     dom.NodeID(f.src.BackendNodeID),
			Type:   f.src.NodeType,
			Parent: f.parent,
		}
		if n.Type == dom.ElementNode {
			n.Tag = strings.ToLower(f.src.LocalName)
			n.Attrs = attrs(f.src.Attributes)
		}
		switch {
		case f.parent == nil:
			top = n
		case f.shadow:
			f.parent.ShadowRoot = n
		default:
			f.parent.Children = append(f.parent.Children, n)
		}

		// Children are pushed in reverse so they are appended in order.
		for i := len(f.src.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{src: f.src.Children[i], parent: n})
		}
		for _, sr := range f.src.ShadowRoots {
			if sr.ShadowRootType == proto.DOMShadowRootTypeOpen {
				stack = append(stack, frame{src: sr, parent: n, shadow: true})
				break
			}
		}
	}
	return dom.NewTree(top)
}

// attrs unflattens CDP's [name, value, name, value, ...] list.
func attrs(flat []string) map[string]string {
	if len(flat) < 2 {
		return nil
	}
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		m[strings.ToLower(flat[i])] = flat[i+1]
	}
	return m
}
