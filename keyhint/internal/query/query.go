// CLAUDE:SUMMARY Deep Query: CSS selector matching across a document and every open shadow root it hosts.
// Package query finds hintable elements in a dom.Tree, piercing open shadow
// roots. Each tree (the document and every shadow root) is projected onto
// golang.org/x/net/html and matched with goquery using a cascadia selector.
package query

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// DefaultSelector matches the elements hints are offered for.
const DefaultSelector = `a, button, [role="button"], input[type="text"], textarea, select`

// MaxTrees bounds the number of trees (document plus shadow roots) visited
// by a single Collect.
const MaxTrees = 4096

// Selector is a compiled selector group.
type Selector struct {
	source string
	m      cascadia.Selector
}

// Compile parses a CSS selector group.
func Compile(selector string) (*Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("query: compile %q: %w", selector, err)
	}
	return &Selector{source: selector, m: m}, nil
}

// MustCompile is Compile that panics on error. For package-level defaults.
func MustCompile(selector string) *Selector {
	s, err := Compile(selector)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the selector source.
func (s *Selector) String() string { return s.source }

// Collect returns every element matching sel in the tree rooted at root and
// in every open shadow root reachable from it. Matches of one tree come in
// document order; the matches of each shadow tree follow those of its host
// tree, hosts taken in document order, depth first.
func Collect(sel *Selector, root *dom.Node) []*dom.Node {
	if sel == nil || root == nil {
		return nil
	}

	var out []*dom.Node
	visited := make(map[*dom.Node]bool)
	stack := []*dom.Node{root}
	trees := 0

	for len(stack) > 0 && trees < MaxTrees {
		tree := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[tree] {
			continue
		}
		visited[tree] = true
		trees++

		p := project(tree)
		matched := goquery.NewDocumentFromNode(p.doc).FindMatcher(sel.m)
		for _, hn := range matched.Nodes {
			if n, ok := p.back[hn]; ok {
				out = append(out, n)
			}
		}

		// Reverse so the first host pops first.
		for i := len(p.hosts) - 1; i >= 0; i-- {
			stack = append(stack, p.hosts[i].ShadowRoot)
		}
	}
	return out
}

// projection is one tree rendered as x/net/html nodes.
type projection struct {
	doc   *html.Node
	back  map[*html.Node]*dom.Node
	hosts []*dom.Node // shadow hosts in document order
}

// project mirrors the light tree under root. Shadow contents are not
// descended into; their hosts are recorded instead.
func project(root *dom.Node) *projection {
	p := &projection{
		doc:  &html.Node{Type: html.DocumentNode},
		back: make(map[*html.Node]*dom.Node),
	}

	type frame struct {
		src *dom.Node
		dst *html.Node
	}
	// Children are pushed in reverse so hosts are recorded in document order.
	stack := make([]frame, 0, len(root.Children))
	for i := len(root.Children) - 1; i >= 0; i-- {
		stack = append(stack, frame{root.Children[i], p.doc})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var hn *html.Node
		switch f.src.Type {
		case dom.ElementNode:
			hn = &html.Node{
				Type:     html.ElementNode,
				Data:     f.src.Tag,
				DataAtom: atom.Lookup([]byte(f.src.Tag)),
				Attr:     attrs(f.src),
			}
			p.back[hn] = f.src
			if f.src.ShadowRoot != nil {
				p.hosts = append(p.hosts, f.src)
			}
		case dom.TextNode:
			hn = &html.Node{Type: html.TextNode}
		default:
			continue
		}
		f.dst.AppendChild(hn)

		for i := len(f.src.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.src.Children[i], hn})
		}
	}
	return p
}

func attrs(n *dom.Node) []html.Attribute {
	if len(n.Attrs) == 0 {
		return nil
	}
	out := make([]html.Attribute, 0, len(n.Attrs))
	for k, v := range n.Attrs {
		out = append(out, html.Attribute{Key: k, Val: v})
	}
	return out
}
