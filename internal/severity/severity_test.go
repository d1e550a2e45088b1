package severity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Boundaries(t *testing.T) {
	th := Thresholds{None: 0, Slight: 10, Moderate: 20, Severe: 30}

	tests := []struct {
		score float64
		want  Level
	}{
		{imaging.InvalidScore, Invalid},
		{-0.5, Invalid},
		{0, None},
		{9.999, None},
		{10, Slight},
		{19.999, Slight},
		{20, Moderate},
		{29.999, Moderate},
		{30, Severe},
		{1e9, Severe},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %v", tt.score)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	th := DefaultThresholds()
	for _, bound := range []float64{th.Slight, th.Moderate, th.Severe} {
		below := th.Classify(math.Nextafter(bound, 0))
		at := th.Classify(bound)
		assert.Equal(t, below+1, at, "threshold %v", bound)
	}
}

func TestClassify_SelfComparisonIsNone(t *testing.T) {
	assert.Equal(t, None, DefaultThresholds().Classify(0))
}

func TestClassify_NoneBoundDoesNotInvalidate(t *testing.T) {
	th := Thresholds{None: 10, Slight: 50, Moderate: 200, Severe: 500}
	require.NoError(t, th.Validate())

	assert.Equal(t, None, th.Classify(0))
	assert.Equal(t, None, th.Classify(9.9))
	assert.Equal(t, None, th.Classify(49.9))
	assert.Equal(t, Slight, th.Classify(50))
	assert.Equal(t, Invalid, th.Classify(imaging.InvalidScore))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{None: -1, Slight: 1, Moderate: 2, Severe: 3}.Validate())
	assert.Error(t, Thresholds{None: 0, Slight: 5, Moderate: 5, Severe: 6}.Validate())
	assert.Error(t, Thresholds{None: 0, Slight: 50, Moderate: 20, Severe: 60}.Validate())
}

func TestLevel_Ordering(t *testing.T) {
	levels := Levels()
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1], levels[i])
	}
}

func TestLevel_TextRoundTrip(t *testing.T) {
	counts := map[Level]int{Invalid: 1, Severe: 2}
	data, err := json.Marshal(counts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"invalid":1,"severe":2}`, string(data))

	var decoded map[Level]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, counts, decoded)

	_, err = ParseLevel("catastrophic")
	assert.Error(t, err)
	lvl, err := ParseLevel(" Moderate ")
	require.NoError(t, err)
	assert.Equal(t, Moderate, lvl)
}

func TestPersistence(t *testing.T) {
	assert.False(t, Persistence(Invalid).Any())
	assert.False(t, Persistence(None).Any())
	assert.Equal(t, Destinations{Tag: true}, Persistence(Slight))
	assert.Equal(t, Destinations{Tag: true, Campaign: true}, Persistence(Moderate))
	assert.Equal(t, Destinations{Tag: true, Campaign: true}, Persistence(Severe))
}
