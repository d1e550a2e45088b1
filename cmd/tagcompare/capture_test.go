package main

import (
	"os/exec"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectConfigs(t *testing.T) {
	useWorkspace(t)
	cs, err := loadCompareSet()
	require.NoError(t, err)

	t.Run("enabled configs of every group", func(t *testing.T) {
		got, err := selectConfigs(cs, nil)
		require.NoError(t, err)

		names := make([]string, 0, len(got))
		for name := range got {
			names = append(names, name)
		}
		sort.Strings(names)
		assert.Equal(t, []string{"chrome", "firefox"}, names)
	})

	t.Run("named configs", func(t *testing.T) {
		got, err := selectConfigs(cs, []string{"safari"})
		require.NoError(t, err)
		require.Contains(t, got, "safari")
		assert.Equal(t, "safari", got["safari"].Capabilities.BrowserName)
	})

	t.Run("unknown config", func(t *testing.T) {
		_, err := selectConfigs(cs, []string{"opera"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opera")
	})
}

func TestCaptureCommand_FlagsValidation(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "capture", "--campaigns", "1", "--publishers", "2")
	output, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(output), "none of the others can be")
}
