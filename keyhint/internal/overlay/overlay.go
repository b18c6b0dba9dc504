// CLAUDE:SUMMARY Overlay Renderer: places one label per hint, renders prefix emphasis, batches updates to a page Surface.
// Package overlay computes hint labels and their per-keystroke display state
// and hands them to a Surface that draws them in the page.
package overlay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
	"github.com/hazyhaar/keyhint/keyhint/internal/hint"
)

// ActiveClass is set on the page body while labels are mounted.
const ActiveClass = "keyhint-active"

// Style is the label appearance.
type Style struct {
	Background    string `json:"background"`
	Color         string `json:"color"`
	FontSize      string `json:"font_size"`
	FontFamily    string `json:"font_family"`
	Padding       string `json:"padding"`
	BorderRadius  string `json:"border_radius"`
	EmphasisColor string `json:"emphasis_color"`
	ZIndex        int    `json:"z_index"`
}

// DefaultStyle is a yellow monospace tag with an orange typed prefix.
func DefaultStyle() Style {
	return Style{
		Background:    "yellow",
		Color:         "black",
		FontSize:      "12px",
		FontFamily:    "monospace",
		Padding:       "2px 4px",
		BorderRadius:  "3px",
		EmphasisColor: "orange",
		ZIndex:        10000,
	}
}

// Label is one hint tag to mount. Left and Top are document coordinates.
// Target is a lookup-only reference to the hinted element.
type Label struct {
	Code   string     `json:"code"`
	Target dom.NodeID `json:"target"`
	Left   float64    `json:"left"`
	Top    float64    `json:"top"`
}

// View is the display state of one mounted label.
type View struct {
	Code     string `json:"code"`
	Emphasis string `json:"emphasis"`
	Rest     string `json:"rest"`
	Hidden   bool   `json:"hidden"`
}

// Surface draws labels in the page.
type Surface interface {
	Mount(ctx context.Context, style Style, labels []Label) error
	Update(ctx context.Context, views []View) error
	// Unmount removes every label. It must be safe to call with nothing mounted.
	Unmount(ctx context.Context) error
}

// Place anchors a label at the candidate's top-left corner in document
// coordinates.
func Place(h hint.Hint, vp dom.Viewport) Label {
	return Label{
		Code:   h.Code,
		Target: h.Candidate.Node.ID,
		Left:   h.Candidate.Box.Left + vp.ScrollX,
		Top:    h.Candidate.Box.Top + vp.ScrollY,
	}
}

// Render computes how a label looks once prefix has been typed.
func Render(h hint.Hint, prefix string) View {
	v := View{Code: h.Code}
	switch {
	case prefix == "":
		v.Rest = h.Code
	case len(h.Code) >= len(prefix) && h.Code[:len(prefix)] == prefix:
		v.Emphasis = prefix
		v.Rest = h.Code[len(prefix):]
	default:
		v.Hidden = true
	}
	return v
}

// Renderer keeps a Surface in sync with the hint session.
type Renderer struct {
	surface Surface
	style   Style
	logger  *slog.Logger
	mounted bool
}

// NewRenderer creates a Renderer. A nil logger uses slog.Default.
func NewRenderer(s Surface, style Style, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{surface: s, style: style, logger: logger}
}

// Show mounts one label per hint with the full code displayed.
func (r *Renderer) Show(ctx context.Context, hints []hint.Hint, vp dom.Viewport) error {
	labels := make([]Label, len(hints))
	for i, h := range hints {
		labels[i] = Place(h, vp)
	}
	if err := r.surface.Mount(ctx, r.style, labels); err != nil {
		return fmt.Errorf("overlay: mount %d labels: %w", len(labels), err)
	}
	r.mounted = true
	r.logger.Debug("overlay: labels mounted", "count", len(labels))
	return nil
}

// UpdateDisplay renders every hint against prefix in one batch.
func (r *Renderer) UpdateDisplay(ctx context.Context, hints []hint.Hint, prefix string) error {
	if !r.mounted {
		return nil
	}
	views := make([]View, len(hints))
	for i, h := range hints {
		views[i] = Render(h, prefix)
	}
	if err := r.surface.Update(ctx, views); err != nil {
		return fmt.Errorf("overlay: update: %w", err)
	}
	return nil
}

// RemoveAll unmounts every label. Idempotent.
func (r *Renderer) RemoveAll(ctx context.Context) error {
	r.mounted = false
	if err := r.surface.Unmount(ctx); err != nil {
		return fmt.Errorf("overlay: unmount: %w", err)
	}
	return nil
}

// Forget marks the overlay as gone without touching the page; used when a
// navigation already destroyed the labels.
func (r *Renderer) Forget() { r.mounted = false }

// Mounted reports whether labels are believed to be in the page.
func (r *Renderer) Mounted() bool { return r.mounted }
