// Package config loads the tagcompare settings and compare set files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/tagcompare/internal/schemas"
	"github.com/jonathan/tagcompare/internal/severity"
	schemafiles "github.com/jonathan/tagcompare/schemas"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL      = "TAGCOMPARE_DATABASE_URL"
	EnvPlaceLocalAPIKey = "PLACELOCAL_API_KEY"
)

// DefaultSettingsFile and DefaultCompareFile are looked up in the working
// directory when no path is given.
const (
	DefaultSettingsFile = "settings.json"
	DefaultCompareFile  = "compare.json"
)

// IDs is a list of campaign or publisher IDs. JSON numbers and strings are
// both accepted.
type IDs []string

// UnmarshalJSON implements json.Unmarshaler.
func (ids *IDs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(IDs, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case json.Number:
			out = append(out, id.String())
		case string:
			out = append(out, strings.TrimSpace(id))
		default:
			return fmt.Errorf("invalid id %v: expected a number or a string", v)
		}
	}
	*ids = out
	return nil
}

// PlaceLocal holds the tag API settings.
type PlaceLocal struct {
	APIKey        string `json:"api_key,omitempty"`
	AnimationTime int    `json:"animation_time,omitempty" validate:"gte=0"` // seconds before animated tags settle
}

// Settings is the content of settings.json.
type Settings struct {
	Domain     string   `json:"domain,omitempty" validate:"omitempty,hostname_rfc1123"`
	Campaigns  IDs      `json:"campaigns,omitempty" validate:"dive,numeric"`
	Publishers IDs      `json:"publishers,omitempty" validate:"dive,numeric"`
	TagSizes   []string `json:"tagsizes,omitempty" validate:"dive,required,segment"`
	TagTypes   []string `json:"tagtypes,omitempty" validate:"dive,oneof=iframe script"`

	OutputDir string `json:"output_dir,omitempty"`
	LogDir    string `json:"log_dir,omitempty"`

	Workers    int                 `json:"workers,omitempty" validate:"gte=0"`
	Greyscale  bool                `json:"greyscale,omitempty"`
	Opacity    float64             `json:"opacity,omitempty" validate:"omitempty,gt=0,lte=1"`
	Thresholds severity.Thresholds `json:"thresholds"`

	DatabaseURL string     `json:"database_url,omitempty"`
	PlaceLocal  PlaceLocal `json:"placelocal"`
	Verbose     bool       `json:"verbose,omitempty"`
}

// Defaults returns the settings used for values missing from settings.json.
func Defaults() Settings {
	return Settings{
		Domain:     "www.placelocal.com",
		TagSizes:   []string{"skyscraper", "medium_rectangle", "leaderboard", "mobile_leaderboard"},
		TagTypes:   []string{"iframe", "script"},
		OutputDir:  "output",
		LogDir:     "logs",
		Workers:    8,
		Opacity:    0.8,
		Thresholds: severity.DefaultThresholds(),
		PlaceLocal: PlaceLocal{AnimationTime: 1},
	}
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// values used as a single output path segment
	_ = v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return segmentPattern.MatchString(s) && s != "." && s != ".."
	})
	return v
}

// ResolvePath returns path made absolute against the working directory. A
// sibling "<name>.local<ext>" file takes precedence when it exists, so
// settings.local.json overrides settings.json.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	ext := filepath.Ext(path)
	if !strings.HasSuffix(strings.TrimSuffix(path, ext), ".local") {
		local := strings.TrimSuffix(path, ext) + ".local" + ext
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	return path, nil
}

func readFile(path string) ([]byte, string, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config file %s: %w", resolved, err)
	}
	return data, resolved, nil
}

// LoadSettings loads settings from a JSON file and applies environment
// overrides. Missing values are not defaulted; see MergeWithDefaults.
func LoadSettings(path string) (*Settings, error) {
	data, resolved, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := schemas.Validate(schemafiles.Settings, data); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", resolved, err)
	}
	s.ApplyEnv()
	return &s, nil
}

// ApplyEnv overrides secrets and connection strings from the environment.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		s.DatabaseURL = v
	}
	if v := os.Getenv(EnvPlaceLocalAPIKey); v != "" {
		s.PlaceLocal.APIKey = v
	}
}

// Validate checks that the settings have valid values.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if s.Thresholds != (severity.Thresholds{}) {
		if err := s.Thresholds.Validate(); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	if s.OutputDir != "" && s.LogDir != "" && filepath.Clean(s.OutputDir) == filepath.Clean(s.LogDir) {
		return fmt.Errorf("config error: 'output_dir' and 'log_dir' must differ")
	}
	return nil
}

// MergeWithDefaults returns a copy of the settings with unset fields filled
// from defaults.
func (s *Settings) MergeWithDefaults(defaults Settings) Settings {
	result := *s

	if result.Domain == "" {
		result.Domain = defaults.Domain
	}
	if len(result.Campaigns) == 0 {
		result.Campaigns = defaults.Campaigns
	}
	if len(result.Publishers) == 0 {
		result.Publishers = defaults.Publishers
	}
	if len(result.TagSizes) == 0 {
		result.TagSizes = defaults.TagSizes
	}
	if len(result.TagTypes) == 0 {
		result.TagTypes = defaults.TagTypes
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.LogDir == "" {
		result.LogDir = defaults.LogDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.PlaceLocal.APIKey == "" {
		result.PlaceLocal.APIKey = defaults.PlaceLocal.APIKey
	}

	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.PlaceLocal.AnimationTime == 0 {
		result.PlaceLocal.AnimationTime = defaults.PlaceLocal.AnimationTime
	}
	if result.Opacity == 0 {
		result.Opacity = defaults.Opacity
	}
	if result.Thresholds == (severity.Thresholds{}) {
		result.Thresholds = defaults.Thresholds
	}

	// Bools are not merged: unset and false look the same, and flags win.
	return result
}
