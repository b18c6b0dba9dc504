package describe

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDescribe_Link(t *testing.T) {
	d := New()
	got := d.Describe(`<a href="/docs/intro">Getting   started</a>`, "https://example.com", 0)
	if got != "[Getting started](https://example.com/docs/intro)" {
		t.Errorf("got %q", got)
	}
}

func TestDescribe_Button(t *testing.T) {
	got := New().Describe("<button class=\"primary\">\n  Save\n  changes\n</button>", "", 0)
	if got != "Save changes" {
		t.Errorf("got %q", got)
	}
}

func TestDescribe_EmptyControlFallsBackToText(t *testing.T) {
	got := New().Describe(`<input type="text" name="q">`, "", 0)
	if strings.Contains(got, "<") {
		t.Errorf("markup leaked: %q", got)
	}
}

func TestDescribe_Truncates(t *testing.T) {
	long := "<button>" + strings.Repeat("word ", 100) + "</button>"
	got := New().Describe(long, "", 20)
	if utf8.RuneCountInString(got) > 20 || !strings.HasSuffix(got, "…") {
		t.Errorf("got %q (%d runes)", got, utf8.RuneCountInString(got))
	}
}

func TestCollapse(t *testing.T) {
	if got := collapse("  a\n\tb   c "); got != "a b c" {
		t.Errorf("collapse: %q", got)
	}
}
