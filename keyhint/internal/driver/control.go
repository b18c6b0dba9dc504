package driver

import (
	"context"
	"time"

	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
)

// HintView is one displayed hint as seen from outside the page.
type HintView struct {
	Code        string `json:"code"`
	NodeID      int    `json:"node_id"`
	Tag         string `json:"tag"`
	Typed       string `json:"typed"`
	Rest        string `json:"rest"`
	Hidden      bool   `json:"hidden"`
	Description string `json:"description,omitempty"`
}

// SessionView is the state of a page's hint engine.
type SessionView struct {
	PageID    string     `json:"page_id"`
	URL       string     `json:"url"`
	Mode      string     `json:"mode"`
	SessionID string     `json:"session_id,omitempty"`
	Prefix    string     `json:"prefix"`
	Hints     []HintView `json:"hints"`
}

// PressResult is the outcome of a synthesized key.
type PressResult struct {
	Verdict string `json:"verdict"`
	Mode    string `json:"mode"`
	Prefix  string `json:"prefix"`
}

// Session returns the current hint session. With describe set, each hint
// carries a one-line description of its element.
func (d *Driver) Session(ctx context.Context, describe bool) (SessionView, error) {
	var view SessionView
	err := d.do(ctx, func(ctx context.Context) {
		st := d.m.Snapshot()
		view = SessionView{
			PageID:    d.id,
			URL:       d.URL(),
			Mode:      string(st.Mode),
			SessionID: st.SessionID,
			Prefix:    st.Prefix,
			Hints:     make([]HintView, 0, len(st.Hints)),
		}
		for i, h := range st.Hints {
			n := h.Candidate.Node
			hv := HintView{
				Code:   h.Code,
				NodeID: int(n.ID),
				Tag:    n.Tag,
				Typed:  st.Views[i].Emphasis,
				Rest:   st.Views[i].Rest,
				Hidden: st.Views[i].Hidden,
			}
			if describe {
				html, err := d.host.OuterHTML(ctx, n.ID)
				if err != nil {
					d.logger.Debug("driver: outer html", "node", n.ID, "error", err)
				} else {
					hv.Description = d.desc.Describe(html, view.URL, 0)
				}
			}
			view.Hints = append(view.Hints, hv)
		}
	})
	return view, err
}

// Press feeds key to the state machine as if typed outside any editable
// field. An activation it triggers runs after Press returns. A key the
// loop has accepted is applied and reported even if ctx ends meanwhile.
func (d *Driver) Press(ctx context.Context, key string) (PressResult, error) {
	var res PressResult
	err := d.do(ctx, func(ctx context.Context) {
		d.keyAt = time.Now()
		v := d.m.HandleKey(ctx, machine.Synthesize(key))
		st := d.m.Snapshot()
		res = PressResult{Verdict: v.String(), Mode: string(st.Mode), Prefix: st.Prefix}
	})
	return res, err
}

// Teardown removes every label and cancels any pending activation.
func (d *Driver) Teardown(ctx context.Context) error {
	return d.do(ctx, d.m.Teardown)
}
