package page

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
)

// EventKind classifies page events.
type EventKind int

const (
	// EventKey is a keydown outside editable fields.
	EventKey EventKind = iota + 1
	// EventTeardown means removeHotkeyListeners was called in the page.
	EventTeardown
	// EventNavigated means the main frame committed a new document.
	EventNavigated
)

// Event is something the driver must react to.
type Event struct {
	Kind EventKind
	Key  machine.KeyEvent
	URL  string
}

// message is the JSON the shim sends through the binding.
type message struct {
	Type string `json:"type"`
	machine.KeyEvent
}

// Decode parses a binding payload.
func Decode(payload string) (Event, error) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Event{}, fmt.Errorf("page: decode payload: %w", err)
	}
	switch m.Type {
	case "keydown":
		return Event{Kind: EventKey, Key: m.KeyEvent}, nil
	case "teardown":
		return Event{Kind: EventTeardown}, nil
	}
	return Event{}, fmt.Errorf("page: unknown message type %q", m.Type)
}

// Listen delivers page events to fn until ctx is done. fn runs on rod's
// event goroutine and must not block.
func (h *Host) Listen(ctx context.Context, fn func(Event)) {
	wait := h.ctx(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != Binding {
				return
			}
			ev, err := Decode(e.Payload)
			if err != nil {
				h.logger.Debug("page: bad binding payload", "error", err)
				return
			}
			fn(ev)
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			fn(Event{Kind: EventNavigated, URL: e.Frame.URL})
		},
	)
	wait()
}
