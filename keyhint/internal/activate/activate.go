// CLAUDE:SUMMARY Activation Trigger: teardown, synthetic bubbling click with direct-click fallback, focus for form controls.
// Package activate performs the action a selected hint stands for.
package activate

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// Clicker drives an element in the page.
type Clicker interface {
	// DispatchClick dispatches a bubbling, cancelable click MouseEvent.
	DispatchClick(ctx context.Context, target dom.NodeID) error
	// DirectClick invokes the element's native click().
	DirectClick(ctx context.Context, target dom.NodeID) error
	Focus(ctx context.Context, target dom.NodeID) error
}

// focusable tags receive focus after the click.
var focusable = map[string]bool{"input": true, "textarea": true, "select": true}

// Trigger activates hinted elements.
type Trigger struct {
	clicker Clicker
	logger  *slog.Logger
}

// New creates a Trigger. A nil logger uses slog.Default.
func New(c Clicker, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{clicker: c, logger: logger}
}

// Activate tears the hint session down, then clicks target. Failures are
// logged, never returned: a key handler has nothing to do with them.
func (t *Trigger) Activate(ctx context.Context, target *dom.Node, teardown func(context.Context)) {
	if teardown != nil {
		teardown(ctx)
	}
	if target == nil {
		t.logger.Error("activate: no target element")
		return
	}

	if err := t.clicker.DispatchClick(ctx, target.ID); err != nil {
		t.logger.Warn("activate: dispatch click failed, falling back to click()",
			"node", target.ID, "tag", target.Tag, "error", err)
		if err := t.clicker.DirectClick(ctx, target.ID); err != nil {
			t.logger.Error("activate: click", "node", target.ID, "tag", target.Tag, "error", err)
			return
		}
	}

	if focusable[target.Tag] {
		if err := t.clicker.Focus(ctx, target.ID); err != nil {
			t.logger.Warn("activate: focus", "node", target.ID, "tag", target.Tag, "error", err)
		}
	}
	t.logger.Debug("activate: clicked", "node", target.ID, "tag", target.Tag)
}
