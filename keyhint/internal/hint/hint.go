// CLAUDE:SUMMARY Hint Allocator: two-symbol codes from an alphabet, prefix matching, unique-match detection.
// Package hint assigns fixed-length codes to candidates and matches typed
// prefixes against them.
package hint

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// DefaultAlphabet is the symbol set codes are drawn from.
const DefaultAlphabet = "asdqwertyuiopzxcvbnm"

// Hint binds a code to a candidate.
type Hint struct {
	Code      string
	Candidate dom.Candidate
}

// Code returns the code for index i: alphabet[i/n] followed by
// alphabet[i%n]. It reports false once the n*n codes are exhausted.
func Code(i int, alphabet string) (string, bool) {
	n := len(alphabet)
	if n == 0 || i < 0 || i >= n*n {
		return "", false
	}
	return string([]byte{alphabet[i/n], alphabet[i%n]}), true
}

// Capacity is the number of distinct codes an alphabet yields.
func Capacity(alphabet string) int { return len(alphabet) * len(alphabet) }

// Allocate pairs candidates with codes in order. Candidates beyond the
// alphabet's capacity get no hint.
func Allocate(cands []dom.Candidate, alphabet string) []Hint {
	hints := make([]Hint, 0, min(len(cands), Capacity(alphabet)))
	for i, c := range cands {
		code, ok := Code(i, alphabet)
		if !ok {
			break
		}
		hints = append(hints, Hint{Code: code, Candidate: c})
	}
	return hints
}

// Match returns the hints whose code starts with prefix.
func Match(hints []Hint, prefix string) []Hint {
	var out []Hint
	for _, h := range hints {
		if strings.HasPrefix(h.Code, prefix) {
			out = append(out, h)
		}
	}
	return out
}

// Unique returns the hint selected by prefix: the only match, and only when
// its code is the whole prefix.
func Unique(hints []Hint, prefix string) (Hint, bool) {
	m := Match(hints, prefix)
	if len(m) != 1 || m[0].Code != prefix {
		return Hint{}, false
	}
	return m[0], true
}

// ValidateAlphabet rejects alphabets that cannot produce unambiguous codes.
func ValidateAlphabet(alphabet string) error {
	if len(alphabet) < 2 {
		return fmt.Errorf("hint: alphabet %q: need at least 2 symbols", alphabet)
	}
	seen := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("hint: alphabet %q: symbol %q is not a lowercase ASCII letter", alphabet, r)
		}
		if seen[r] {
			return fmt.Errorf("hint: alphabet %q: duplicate symbol %q", alphabet, r)
		}
		seen[r] = true
	}
	return nil
}
