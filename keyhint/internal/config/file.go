// CLAUDE:SUMMARY Defines keyhint config structs, parses YAML files, fills defaults and validates hint settings.
// Package config handles keyhint configuration from YAML files. It is
// loaded once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/keyhint/keyhint/internal/hint"
	"github.com/hazyhaar/keyhint/keyhint/internal/machine"
	"github.com/hazyhaar/keyhint/keyhint/internal/overlay"
	"github.com/hazyhaar/keyhint/keyhint/internal/query"
)

// Config is the top-level keyhint configuration.
type Config struct {
	Browser       BrowserConfig       `yaml:"browser"`
	Pages         []PageConfig        `yaml:"pages"`
	Hints         HintsConfig         `yaml:"hints"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BrowserConfig controls the Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headless         bool          `yaml:"headless"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// PageConfig is a page to drive: a URL to open in a new tab, or the
// target id of an existing tab.
type PageConfig struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	TargetID string `yaml:"target_id"`
}

// HintsConfig holds the hint engine settings shared by every page.
type HintsConfig struct {
	Alphabet      string      `yaml:"alphabet"`
	ActivationKey string      `yaml:"activation_key"`
	ScrollDownKey string      `yaml:"scroll_down_key"`
	ScrollUpKey   string      `yaml:"scroll_up_key"`
	ScrollStep    float64     `yaml:"scroll_step"`
	SmoothScroll  bool        `yaml:"smooth_scroll"`
	Selector      string      `yaml:"selector"`
	Style         StyleConfig `yaml:"style"`
}

// StyleConfig is the label appearance.
type StyleConfig struct {
	Background    string `yaml:"background"`
	Color         string `yaml:"color"`
	FontSize      string `yaml:"font_size"`
	FontFamily    string `yaml:"font_family"`
	Padding       string `yaml:"padding"`
	BorderRadius  string `yaml:"border_radius"`
	EmphasisColor string `yaml:"emphasis_color"`
	ZIndex        int    `yaml:"z_index"`
}

// HTTPConfig controls the control surface. An empty Listen disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// ObservabilityConfig points at the optional SQLite event log. An empty
// DB disables it.
type ObservabilityConfig struct {
	DB            string `yaml:"db"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, fills defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no pages.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	h := &c.Hints
	if h.Alphabet == "" {
		h.Alphabet = hint.DefaultAlphabet
	}
	keys := machine.DefaultKeymap()
	if h.ActivationKey == "" {
		h.ActivationKey = keys.Activation
	}
	if h.ScrollDownKey == "" {
		h.ScrollDownKey = keys.ScrollDown
	}
	if h.ScrollUpKey == "" {
		h.ScrollUpKey = keys.ScrollUp
	}
	if h.ScrollStep <= 0 {
		h.ScrollStep = machine.DefaultScrollStep
	}
	if h.Selector == "" {
		h.Selector = query.DefaultSelector
	}

	s, d := &h.Style, overlay.DefaultStyle()
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&s.Background, d.Background},
		{&s.Color, d.Color},
		{&s.FontSize, d.FontSize},
		{&s.FontFamily, d.FontFamily},
		{&s.Padding, d.Padding},
		{&s.BorderRadius, d.BorderRadius},
		{&s.EmphasisColor, d.EmphasisColor},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	if s.ZIndex == 0 {
		s.ZIndex = d.ZIndex
	}

	if c.Observability.RetentionDays <= 0 {
		c.Observability.RetentionDays = 30
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page%d", i+1)
		}
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if err := hint.ValidateAlphabet(c.Hints.Alphabet); err != nil {
		errs = append(errs, err)
	} else if err := c.Keymap().Validate(c.Hints.Alphabet); err != nil {
		errs = append(errs, err)
	}
	if _, err := query.Compile(c.Hints.Selector); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("config: duplicate page id %q", p.ID))
		}
		seen[p.ID] = true
		if p.URL == "" && p.TargetID == "" {
			errs = append(errs, fmt.Errorf("config: page %q: url or target_id required", p.ID))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Keymap returns the configured command keys.
func (c *Config) Keymap() machine.Keymap {
	return machine.Keymap{
		Activation: c.Hints.ActivationKey,
		ScrollDown: c.Hints.ScrollDownKey,
		ScrollUp:   c.Hints.ScrollUpKey,
	}
}

// Style returns the configured label style.
func (c *Config) Style() overlay.Style {
	s := c.Hints.Style
	return overlay.Style{
		Background:    s.Background,
		Color:         s.Color,
		FontSize:      s.FontSize,
		FontFamily:    s.FontFamily,
		Padding:       s.Padding,
		BorderRadius:  s.BorderRadius,
		EmphasisColor: s.EmphasisColor,
		ZIndex:        s.ZIndex,
	}
}

// Engine returns the hint engine settings. The selector must have passed
// Validate.
func (c *Config) Engine() machine.Config {
	return machine.Config{
		Selector:   query.MustCompile(c.Hints.Selector),
		Alphabet:   c.Hints.Alphabet,
		Keys:       c.Keymap(),
		ScrollStep: c.Hints.ScrollStep,
		Smooth:     c.Hints.SmoothScroll,
		Style:      c.Style(),
	}
}
