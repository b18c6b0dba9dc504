// CLAUDE:SUMMARY Visibility Oracle: viewport intersection, single-point occlusion test, redundant role=button filter.
// Package visibility decides which collected elements deserve a hint.
package visibility

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// HitTester returns the topmost node at a viewport point.
type HitTester interface {
	HitTest(ctx context.Context, x, y float64) (dom.NodeID, error)
}

// IsVisible reports whether box has a positive area and intersects the
// viewport.
func IsVisible(box dom.Rect, vp dom.Viewport) bool {
	return box.Width > 0 &&
		box.Height > 0 &&
		box.Bottom() > 0 &&
		box.Right() > 0 &&
		box.Top < vp.Height &&
		box.Left < vp.Width
}

// IsObscured reports whether hit, the topmost node at target's top-left
// corner, is unrelated to target. Containment crosses shadow boundaries.
// An unknown hit (nil) counts as obscuring.
//
// Only one point is sampled: an element covered at its corner but visible
// elsewhere is treated as obscured.
func IsObscured(target, hit *dom.Node) bool {
	if target == nil || hit == nil {
		return true
	}
	return !(target.Contains(hit) || hit.Contains(target))
}

// IsRedundantButton reports whether n is a role="button" element that
// wraps a link; the link gets the hint instead.
func IsRedundantButton(n *dom.Node) bool {
	if role, ok := n.Attr("role"); !ok || role != "button" {
		return false
	}
	return n.ContainsTag("a")
}

// Filter keeps the candidates that are not redundant buttons, intersect
// the viewport and are not obscured, preserving order. Only visible
// candidates are hit tested; a failed hit test drops the candidate.
func Filter(ctx context.Context, cands []dom.Candidate, vp dom.Viewport, ht HitTester, tree *dom.Tree, logger *slog.Logger) []dom.Candidate {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]dom.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Node == nil || IsRedundantButton(c.Node) || !IsVisible(c.Box, vp) {
			continue
		}
		id, err := ht.HitTest(ctx, c.Box.Left, c.Box.Top)
		if err != nil {
			logger.Debug("visibility: hit test failed", "node", c.Node.ID, "error", err)
			continue
		}
		if IsObscured(c.Node, tree.Lookup(id)) {
			continue
		}
		out = append(out, c)
	}
	return out
}
