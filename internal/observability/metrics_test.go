package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetrics(t *testing.T) {
	metrics, handler, err := NewMetrics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.NotNil(t, handler)
}

func TestMetrics_RecordsComparisons(t *testing.T) {
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	require.NoError(t, err)

	metrics.UnitStarted(ctx, "browsers")
	metrics.UnitCompleted(ctx, "browsers", severity.Moderate, 20*time.Millisecond)
	metrics.UnitStarted(ctx, "browsers")
	metrics.UnitCompleted(ctx, "browsers", severity.Invalid, time.Millisecond)
	metrics.JobCompleted(ctx, "browsers", compare.StatusCompleted, 2*time.Second)
	metrics.RecordCaptures(ctx, "chrome", OutcomeCaptured, 3)
	metrics.RecordCaptures(ctx, "chrome", OutcomeFailed, 0)

	body := scrape(t, handler)
	assert.Contains(t, body, "compare_units_total")
	assert.Contains(t, body, `level="moderate"`)
	assert.Contains(t, body, `level="invalid"`)
	assert.Contains(t, body, `group="browsers"`)
	assert.Contains(t, body, "compare_job_duration_seconds")
	assert.Contains(t, body, `status="completed"`)
	assert.Contains(t, body, `outcome="captured"`)
	assert.NotContains(t, body, `outcome="failed"`)

	require.NoError(t, metrics.Shutdown(ctx))
}

func TestMetrics_IsRecorder(t *testing.T) {
	metrics, _, err := NewMetrics(context.Background())
	require.NoError(t, err)

	base := t.TempDir()
	job, err := compare.NewComparer(nil, metrics).Run(context.Background(), compare.Options{
		BaseDir:   base,
		Campaigns: []string{"1"},
		Sizes:     []string{"medium_rectangle"},
		Types:     []string{"iframe"},
		Configs:   []string{"chrome", "firefox"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, job.Result.Count(severity.Invalid))
}

func TestGroupAttr_Empty(t *testing.T) {
	assert.Equal(t, "adhoc", groupAttr("").Value.AsString())
}
