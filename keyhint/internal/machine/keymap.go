package machine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/keyhint/keyhint/internal/dom"
)

// Legacy keyCodes for the named keys the machine reacts to.
const (
	codeBackspace = 8
	codeEscape    = 27
)

// KeyEvent is a keydown as observed in the page.
type KeyEvent struct {
	Key     string          `json:"key"`
	KeyCode int             `json:"key_code"`
	Meta    bool            `json:"meta"`
	Path    []dom.PathEntry `json:"path"`
}

// Synthesize builds the keydown a user typing key outside any editable
// field would produce. key is a single letter or escape/backspace.
func Synthesize(key string) KeyEvent {
	switch k := strings.ToLower(key); k {
	case "escape", "esc":
		return KeyEvent{Key: "Escape", KeyCode: codeEscape}
	case "backspace":
		return KeyEvent{Key: "Backspace", KeyCode: codeBackspace}
	default:
		ev := KeyEvent{Key: key}
		if len(k) == 1 && k[0] >= 'a' && k[0] <= 'z' {
			ev.KeyCode = letterCode(k)
		}
		return ev
	}
}

// Keymap names the command keys. Each is a single lowercase letter.
type Keymap struct {
	Activation string
	ScrollDown string
	ScrollUp   string
}

// DefaultKeymap is f to toggle hints, j and k to scroll.
func DefaultKeymap() Keymap {
	return Keymap{Activation: "f", ScrollDown: "j", ScrollUp: "k"}
}

// Validate rejects keys that are not single lowercase letters, and keys
// that collide with each other or with the alphabet.
func (k Keymap) Validate(alphabet string) error {
	seen := map[string]string{}
	for _, kv := range [][2]string{
		{"activation", k.Activation},
		{"scroll_down", k.ScrollDown},
		{"scroll_up", k.ScrollUp},
	} {
		name, key := kv[0], kv[1]
		if len(key) != 1 || key[0] < 'a' || key[0] > 'z' {
			return fmt.Errorf("machine: %s key %q: want a single lowercase letter", name, key)
		}
		if other, dup := seen[key]; dup {
			return fmt.Errorf("machine: %s key %q already bound to %s", name, key, other)
		}
		if strings.Contains(alphabet, key) {
			return fmt.Errorf("machine: %s key %q is also a hint symbol", name, key)
		}
		seen[key] = name
	}
	return nil
}

// letterCode is the legacy keyCode of a letter key (its uppercase ASCII).
func letterCode(letter string) int {
	if len(letter) != 1 {
		return -1
	}
	return int(strings.ToUpper(letter)[0])
}

// is reports whether ev is the given letter key, by name or legacy keyCode.
func is(ev KeyEvent, letter string) bool {
	return strings.ToLower(ev.Key) == letter || (ev.KeyCode != 0 && ev.KeyCode == letterCode(letter))
}

// hintSymbol maps ev to an alphabet symbol, preferring the legacy keyCode.
func hintSymbol(ev KeyEvent, alphabet string) (string, bool) {
	if ev.KeyCode >= 'A' && ev.KeyCode <= 'Z' {
		s := strings.ToLower(string(rune(ev.KeyCode)))
		if strings.Contains(alphabet, s) {
			return s, true
		}
	}
	key := strings.ToLower(ev.Key)
	if len(key) == 1 && strings.Contains(alphabet, key) {
		return key, true
	}
	return "", false
}

// KeySet is what the page must swallow synchronously: key names (lower
// case) and legacy keyCodes. Editable targets and meta chords are always
// let through by the page.
type KeySet struct {
	Names []string `json:"names"`
	Codes []int    `json:"codes"`
}

func (s *KeySet) add(name string, code int) {
	s.Names = append(s.Names, name)
	s.Codes = append(s.Codes, code)
}

func (s *KeySet) normalize() {
	sort.Strings(s.Names)
	sort.Ints(s.Codes)
}
