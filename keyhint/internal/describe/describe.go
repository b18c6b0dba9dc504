// CLAUDE:SUMMARY Short human-readable description of a hinted element from its outer HTML.
// Package describe turns a hinted element's markup into one line of text
// for hint listings: markdown when the element converts cleanly (links keep
// their target), plain sanitized text otherwise.
package describe

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultMax is the description length cap in runes.
const DefaultMax = 120

// Describer converts element markup to descriptions. Safe for concurrent
// use.
type Describer struct {
	conv   *converter.Converter
	strict *bluemonday.Policy
}

// New creates a Describer.
func New() *Describer {
	return &Describer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		strict: bluemonday.StrictPolicy(),
	}
}

// Describe returns at most max runes (DefaultMax if max <= 0) describing
// outerHTML. Relative links resolve against pageURL.
func (d *Describer) Describe(outerHTML, pageURL string, max int) string {
	if max <= 0 {
		max = DefaultMax
	}
	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	text, err := d.conv.ConvertString(outerHTML, opts...)
	if err != nil || strings.TrimSpace(text) == "" {
		text = d.strict.Sanitize(outerHTML)
	}
	return truncate(collapse(text), max)
}

// collapse joins all whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
