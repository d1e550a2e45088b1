package db

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitRecord_ValidScore(t *testing.T) {
	runID := uuid.New()
	unit := compare.UnitResult{
		Unit:        compare.Unit{Campaign: "477944", Size: "medium_rectangle", Type: "iframe"},
		Score:       12.5,
		Level:       severity.Slight,
		Pairs:       []compare.PairResult{{A: "chrome", B: "firefox", Score: 12.5, Level: severity.Slight}},
		Diagnostics: []string{"out/default/477944/medium_rectangle/iframe/chrome__vs__firefox.png"},
		Elapsed:     1500 * time.Millisecond,
	}

	record, err := unitRecord(runID, unit)
	require.NoError(t, err)

	assert.Equal(t, runID, record.RunID)
	require.NotNil(t, record.Score)
	assert.Equal(t, 12.5, *record.Score)
	assert.Equal(t, "slight", record.Level)
	assert.Nil(t, record.Error)
	assert.Equal(t, int64(1500), record.ElapsedMS)

	var pairs []map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Pairs, &pairs))
	require.Len(t, pairs, 1)
	assert.Equal(t, "chrome", pairs[0]["a"])
	assert.Equal(t, "slight", pairs[0]["level"])
}

func TestUnitRecord_InvalidScoreIsNull(t *testing.T) {
	unit := compare.UnitResult{
		Unit:  compare.Unit{Campaign: "1", Size: "skyscraper", Type: "script"},
		Score: compare.Score(math.NaN()),
		Level: severity.Invalid,
		Error: "missing artifact",
	}

	record, err := unitRecord(uuid.New(), unit)
	require.NoError(t, err)
	assert.Nil(t, record.Score)
	assert.Nil(t, record.Pairs)
	require.NotNil(t, record.Error)
	assert.Equal(t, "missing artifact", *record.Error)
	assert.Equal(t, "invalid", record.Level)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("x"))
	assert.Equal(t, "x", *nullable("x"))
}
