package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/tagcompare/internal/schemas"
	schemafiles "github.com/jonathan/tagcompare/schemas"
)

// Capabilities describe the browser a config captures with.
type Capabilities struct {
	BrowserName string `json:"browser_name" validate:"required"`
	Version     string `json:"version,omitempty"`
	Platform    string `json:"platform,omitempty"`
	Width       int    `json:"width,omitempty" validate:"gte=0"`
	Height      int    `json:"height,omitempty" validate:"gte=0"`
	UserAgent   string `json:"user_agent,omitempty"`
	RemoteURL   string `json:"remote_url,omitempty" validate:"omitempty,url"`
}

// BrowserConfig is one named capture configuration.
type BrowserConfig struct {
	Enabled      bool         `json:"enabled"`
	Capabilities Capabilities `json:"capabilities"`
}

// CompareSet is the content of compare.json.
type CompareSet struct {
	Configs     map[string]BrowserConfig `json:"configs" validate:"required,dive,keys,segment,endkeys"`
	Comparisons map[string][]string      `json:"comparisons" validate:"required"`
}

// LoadCompareSet loads compare.json, checks it against the compare set schema
// and validates it.
func LoadCompareSet(path string) (*CompareSet, error) {
	data, resolved, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var cs CompareSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := schemas.Validate(schemafiles.CompareSet, data); err != nil {
		return nil, fmt.Errorf("invalid compare set %s: %w", resolved, err)
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return &cs, nil
}

// ConfigsInComparisons returns the sorted, unique names of every config
// referenced by a comparison group.
func (cs *CompareSet) ConfigsInComparisons() []string {
	seen := make(map[string]struct{})
	for _, names := range cs.Comparisons {
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EnabledConfigs returns the sorted names of the enabled configs.
func (cs *CompareSet) EnabledConfigs() []string {
	var out []string
	for name, c := range cs.Configs {
		if c.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Group returns the configs of a named comparison group.
func (cs *CompareSet) Group(name string) ([]string, error) {
	configs, ok := cs.Comparisons[name]
	if !ok {
		groups := make([]string, 0, len(cs.Comparisons))
		for g := range cs.Comparisons {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		return nil, fmt.Errorf("unknown comparison group %q (have %s)", name, strings.Join(groups, ", "))
	}
	return configs, nil
}

// Validate checks field values and that every config referenced by a
// comparison group is defined.
func (cs *CompareSet) Validate() error {
	if err := validate.Struct(cs); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	for name, c := range cs.Configs {
		if err := validate.Struct(c.Capabilities); err != nil {
			return fmt.Errorf("config error: config %q: %w", name, err)
		}
	}
	var missing []string
	for _, name := range cs.ConfigsInComparisons() {
		if _, ok := cs.Configs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config error: comparisons reference undefined configs: %s", strings.Join(missing, ", "))
	}
	return nil
}
