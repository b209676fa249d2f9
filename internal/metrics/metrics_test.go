package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procedure-review/internal/metrics"
	"procedure-review/shared/models"
)

func TestMetrics_Observe(t *testing.T) {
	m := metrics.New()

	m.ObserveResolution(models.AssetKindImage, nil)
	m.ObserveResolution(models.AssetKindImage, nil)
	m.ObserveResolution(models.AssetKindVideo, errors.New("boom"))
	m.ObserveAssembly(150 * time.Millisecond)
	m.ObserveDelivery(models.DeliveryOutcome{Local: models.Succeeded("/tmp/a.pdf"), Remote: models.Skipped()})
	m.ObserveRun(models.RunStatusSuccess)

	expected := `
# HELP procedure_review_assets_resolved_total Total number of asset references resolved, by kind and status.
# TYPE procedure_review_assets_resolved_total counter
procedure_review_assets_resolved_total{kind="image",status="success"} 2
procedure_review_assets_resolved_total{kind="video",status="error"} 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "procedure_review_assets_resolved_total")
	assert.NoError(t, err)

	expectedDeliveries := `
# HELP procedure_review_deliveries_total Delivery outcomes per sink.
# TYPE procedure_review_deliveries_total counter
procedure_review_deliveries_total{sink="local",status="succeeded"} 1
procedure_review_deliveries_total{sink="remote",status="skipped"} 1
`
	err = testutil.GatherAndCompare(m.Registry(), strings.NewReader(expectedDeliveries), "procedure_review_deliveries_total")
	assert.NoError(t, err)
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveResolution(models.AssetKindImage, nil)
		m.ObserveAssembly(time.Second)
		m.ObserveDelivery(models.NewDeliveryOutcome())
		m.ObserveRun(models.RunStatusError)
		assert.NoError(t, m.Push("http://localhost:9091"))
	})
}

func TestMetrics_Push(t *testing.T) {
	var calls atomic.Int32
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath.Store(r.URL.Path)
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := metrics.New()
	m.ObserveRun(models.RunStatusSuccess)

	require.NoError(t, m.Push(srv.URL))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, strings.HasPrefix(gotPath.Load().(string), "/metrics/job/"+metrics.JobName))
}

func TestMetrics_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := metrics.New()
	err := m.Push(srv.URL)
	assert.Error(t, err)
}
