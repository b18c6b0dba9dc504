package hint

import (
	"testing"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

func cands(n int) []dom.Candidate {
	out := make([]dom.Candidate, n)
	for i := range out {
		out[i] = dom.Candidate{Node: &dom.Node{ID: dom.NodeID(i + 1), Type: dom.ElementNode, Tag: "a"}}
	}
	return out
}

func TestCode(t *testing.T) {
	tests := []struct {
		i    int
		want string
		ok   bool
	}{
		{0, "aa", true},
		{1, "as", true},
		{19, "am", true},
		{20, "sa", true},
		{21, "ss", true},
		{399, "mm", true},
		{400, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		got, ok := Code(tt.i, DefaultAlphabet)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Code(%d): got (%q, %v), want (%q, %v)", tt.i, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAllocate_CapsAtCapacity(t *testing.T) {
	hints := Allocate(cands(450), DefaultAlphabet)
	if len(hints) != 400 {
		t.Fatalf("Allocate: got %d hints, want 400", len(hints))
	}
	if hints[399].Candidate.Node.ID != 400 {
		t.Errorf("last hint bound to node %d, want 400", hints[399].Candidate.Node.ID)
	}
	seen := make(map[string]bool)
	for _, h := range hints {
		if len(h.Code) != 2 {
			t.Fatalf("code %q: want length 2", h.Code)
		}
		if seen[h.Code] {
			t.Fatalf("duplicate code %q", h.Code)
		}
		seen[h.Code] = true
	}
}

func TestAllocate_Empty(t *testing.T) {
	if got := Allocate(nil, DefaultAlphabet); len(got) != 0 {
		t.Errorf("Allocate(nil): got %d", len(got))
	}
}

func TestMatchAndUnique(t *testing.T) {
	hints := Allocate(cands(25), DefaultAlphabet)

	if got := Match(hints, ""); len(got) != 25 {
		t.Errorf("Match(\"\"): got %d, want 25", len(got))
	}
	if got := Match(hints, "a"); len(got) != 20 {
		t.Errorf("Match(a): got %d, want 20", len(got))
	}
	if got := Match(hints, "s"); len(got) != 5 {
		t.Errorf("Match(s): got %d, want 5", len(got))
	}
	if got := Match(hints, "z"); len(got) != 0 {
		t.Errorf("Match(z): got %d, want 0", len(got))
	}

	if _, ok := Unique(hints, "a"); ok {
		t.Error("Unique(a): prefix alone must not select")
	}
	h, ok := Unique(hints, "sd")
	if !ok || h.Code != "sd" || h.Candidate.Node.ID != 23 {
		t.Errorf("Unique(sd): got (%+v, %v)", h, ok)
	}
	if _, ok := Unique(hints, "se"); ok {
		t.Error("Unique(se): code was not allocated")
	}
	if _, ok := Unique(hints, "sdx"); ok {
		t.Error("Unique(sdx): over-long prefix matches nothing")
	}
}

func TestUnique_SingleHint(t *testing.T) {
	hints := Allocate(cands(1), DefaultAlphabet)
	if _, ok := Unique(hints, "a"); ok {
		t.Error("one-symbol prefix must not select the only hint")
	}
	if _, ok := Unique(hints, "aa"); !ok {
		t.Error("full code must select")
	}
}

func TestValidateAlphabet(t *testing.T) {
	for _, a := range []string{DefaultAlphabet, "ab", "fjdkslaghrueiwoqpty"} {
		if err := ValidateAlphabet(a); err != nil {
			t.Errorf("ValidateAlphabet(%q): %v", a, err)
		}
	}
	for _, a := range []string{"", "a", "aba", "aB", "a1", "é"} {
		if err := ValidateAlphabet(a); err == nil {
			t.Errorf("ValidateAlphabet(%q): expected error", a)
		}
	}
}
