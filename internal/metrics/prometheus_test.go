package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAnalysisStarted()
	m.RecordAnalysisStarted()
	m.RecordAnalysisCompleted(0.2, 12)
	m.RecordAnalysisFailed("decode", 0.01)
	m.RecordFrames(100, 40, 1)
	m.RecordSilence(0.33)
	m.RecordCacheHit()
	m.RecordHTTPRequest("POST", "/upload", "200", 0.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesStarted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AnalysesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesFailed.WithLabelValues("decode")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.FramesClassified))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.FramesSpeech))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SilencesDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/upload", "200")))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
