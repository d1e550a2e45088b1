package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSettings_ValidJSON(t *testing.T) {
	content := `{
		"domain": "www.placelocal.com",
		"campaigns": [477944, "52983"],
		"tagsizes": ["medium_rectangle", "skyscraper"],
		"tagtypes": ["iframe"],
		"workers": 4,
		"opacity": 0.5,
		"thresholds": {"none": 0, "slight": 10, "moderate": 20, "severe": 30},
		"placelocal": {"api_key": "file-key", "animation_time": 2},
		"verbose": true
	}`
	path := writeFile(t, t.TempDir(), "settings.json", content)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "www.placelocal.com", s.Domain)
	assert.Equal(t, IDs{"477944", "52983"}, s.Campaigns)
	assert.Equal(t, []string{"medium_rectangle", "skyscraper"}, s.TagSizes)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 0.5, s.Opacity)
	assert.Equal(t, severity.Thresholds{None: 0, Slight: 10, Moderate: 20, Severe: 30}, s.Thresholds)
	assert.Equal(t, "file-key", s.PlaceLocal.APIKey)
	assert.Equal(t, 2, s.PlaceLocal.AnimationTime)
	assert.True(t, s.Verbose)
	assert.NoError(t, s.Validate())
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "settings.json", `{ invalid json }`)

	s, err := LoadSettings(path)
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadSettings_SchemaViolation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "settings.json", `{"tagtypes": ["embed"]}`)

	s, err := LoadSettings(path)
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestLoadSettings_ZeroOpacityRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "settings.json", `{"opacity": 0}`)

	s, err := LoadSettings(path)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestLoadSettings_FileNotFound(t *testing.T) {
	s, err := LoadSettings("/nonexistent/path/settings.json")
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadSettings_EmptyPath(t *testing.T) {
	s, err := LoadSettings("")
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestLoadSettings_LocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.json", `{"domain": "www.placelocal.com"}`)
	writeFile(t, dir, "settings.local.json", `{"domain": "staging.placelocal.com"}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "staging.placelocal.com", s.Domain)
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://env/db")
	t.Setenv(EnvPlaceLocalAPIKey, "env-key")
	path := writeFile(t, t.TempDir(), "settings.json",
		`{"database_url": "postgres://file/db", "placelocal": {"api_key": "file-key"}}`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", s.DatabaseURL)
	assert.Equal(t, "env-key", s.PlaceLocal.APIKey)
}

func TestResolvePath_Relative(t *testing.T) {
	path, err := ResolvePath("settings.json")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "settings.json", filepath.Base(path))
}

func TestIDs_UnmarshalJSON_Invalid(t *testing.T) {
	var ids IDs
	assert.Error(t, ids.UnmarshalJSON([]byte(`[true]`)))
	assert.Error(t, ids.UnmarshalJSON([]byte(`{}`)))
}

func TestValidate_Settings(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  string
	}{
		{name: "defaults", settings: Defaults()},
		{name: "empty", settings: Settings{}},
		{name: "negative workers", settings: Settings{Workers: -1}, wantErr: "Workers"},
		{name: "opacity above one", settings: Settings{Opacity: 1.5}, wantErr: "Opacity"},
		{name: "negative opacity", settings: Settings{Opacity: -0.2}, wantErr: "Opacity"},
		{name: "bad tag type", settings: Settings{TagTypes: []string{"embed"}}, wantErr: "TagTypes"},
		{name: "tag size with separator", settings: Settings{TagSizes: []string{"a/b"}}, wantErr: "TagSizes"},
		{name: "non numeric campaign", settings: Settings{Campaigns: IDs{"abc"}}, wantErr: "Campaigns"},
		{name: "bad domain", settings: Settings{Domain: "not a host"}, wantErr: "Domain"},
		{name: "descending thresholds", settings: Settings{
			Thresholds: severity.Thresholds{None: 0, Slight: 10, Moderate: 5, Severe: 20},
		}, wantErr: "thresholds"},
		{name: "same output and log dir", settings: Settings{OutputDir: "out", LogDir: "./out"}, wantErr: "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	s := &Settings{
		Domain:    "staging.placelocal.com",
		Campaigns: IDs{"1"},
		Workers:   2,
	}

	merged := s.MergeWithDefaults(Defaults())

	assert.Equal(t, "staging.placelocal.com", merged.Domain)
	assert.Equal(t, IDs{"1"}, merged.Campaigns)
	assert.Equal(t, 2, merged.Workers)
	assert.Equal(t, Defaults().TagSizes, merged.TagSizes)
	assert.Equal(t, []string{"iframe", "script"}, merged.TagTypes)
	assert.Equal(t, "output", merged.OutputDir)
	assert.Equal(t, 0.8, merged.Opacity)
	assert.Equal(t, severity.DefaultThresholds(), merged.Thresholds)
	assert.Equal(t, 1, merged.PlaceLocal.AnimationTime)

	// the receiver is not modified
	assert.Empty(t, s.TagSizes)
}
