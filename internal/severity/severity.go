// Package severity classifies dissimilarity scores and decides where the
// diagnostics for each level are kept.
package severity

import (
	"fmt"
	"strings"

	"github.com/jonathan/tagcompare/internal/imaging"
)

// Level is an ordered severity: Invalid < None < Slight < Moderate < Severe.
type Level int

const (
	Invalid Level = iota
	None
	Slight
	Moderate
	Severe
)

var levelNames = [...]string{"invalid", "none", "slight", "moderate", "severe"}

// Levels returns every level in ascending order.
func Levels() []Level {
	return []Level{Invalid, None, Slight, Moderate, Severe}
}

func (l Level) String() string {
	if l < Invalid || l > Severe {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText implements encoding.TextMarshaler so levels can key JSON maps.
func (l Level) MarshalText() ([]byte, error) {
	if l < Invalid || l > Severe {
		return nil, fmt.Errorf("unknown severity level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Invalid, fmt.Errorf("unknown severity level %q", s)
}

// Thresholds are the ascending lower bounds of the None, Slight, Moderate and
// Severe levels. Every comparable score below Slight is None, so a
// self-comparison is None whatever the None bound is.
type Thresholds struct {
	None     float64 `json:"none"`
	Slight   float64 `json:"slight"`
	Moderate float64 `json:"moderate"`
	Severe   float64 `json:"severe"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{None: 0, Slight: 50, Moderate: 200, Severe: 500}
}

// Validate checks that the thresholds are non-negative and strictly ascending.
func (t Thresholds) Validate() error {
	if t.None < 0 {
		return fmt.Errorf("thresholds error: 'none' must be non-negative")
	}
	if !(t.None < t.Slight && t.Slight < t.Moderate && t.Moderate < t.Severe) {
		return fmt.Errorf("thresholds error: expected none < slight < moderate < severe, got %v < %v < %v < %v",
			t.None, t.Slight, t.Moderate, t.Severe)
	}
	return nil
}

// Classify maps a score to its level. Only the invalid sentinel is Invalid.
func (t Thresholds) Classify(score float64) Level {
	switch {
	case imaging.IsInvalid(score):
		return Invalid
	case score < t.Slight:
		return None
	case score < t.Moderate:
		return Slight
	case score < t.Severe:
		return Moderate
	default:
		return Severe
	}
}

// Destinations says which diagnostic paths a level is written to.
type Destinations struct {
	Tag      bool
	Campaign bool
}

// Any reports whether anything is persisted.
func (d Destinations) Any() bool {
	return d.Tag || d.Campaign
}

// Persistence returns where diagnostics of level l are kept. Slight
// differences stay next to the tag; moderate and severe ones are also raised
// to the campaign.
func Persistence(l Level) Destinations {
	switch l {
	case Slight:
		return Destinations{Tag: true}
	case Moderate, Severe:
		return Destinations{Tag: true, Campaign: true}
	default:
		return Destinations{}
	}
}
