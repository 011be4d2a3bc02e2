package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the silence analysis service
type Metrics struct {
	// Analysis metrics
	AnalysesStarted   prometheus.Counter
	AnalysesCompleted prometheus.Counter
	AnalysesFailed    *prometheus.CounterVec
	AnalysesInFlight  prometheus.Gauge
	AnalysisDuration  prometheus.Histogram
	AudioDuration     prometheus.Histogram
	CacheHits         prometheus.Counter

	// VAD metrics
	FramesClassified prometheus.Counter
	FramesSpeech     prometheus.Counter
	FramesSkipped    prometheus.Counter
	SilencesDetected prometheus.Counter
	SilenceDuration  prometheus.Histogram

	// Storage metrics
	StoredAnalyses prometheus.Gauge
	StoreErrors    *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Analysis metrics
		AnalysesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_analyses_started_total",
			Help: "Total number of analyses started",
		}),
		AnalysesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_analyses_completed_total",
			Help: "Total number of analyses completed successfully",
		}),
		AnalysesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silencesense_analyses_failed_total",
			Help: "Total number of failed analyses by reason",
		}, []string{"reason"}),
		AnalysesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "silencesense_analyses_in_flight",
			Help: "Current number of analyses being processed",
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "silencesense_analysis_duration_seconds",
			Help:    "Wall time spent decoding and analyzing a file",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		AudioDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "silencesense_audio_duration_seconds",
			Help:    "Duration of analyzed audio",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_cache_hits_total",
			Help: "Total number of uploads answered from a stored analysis",
		}),

		// VAD metrics
		FramesClassified: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_vad_frames_classified_total",
			Help: "Total number of frames classified",
		}),
		FramesSpeech: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_vad_frames_speech_total",
			Help: "Total number of frames classified as speech",
		}),
		FramesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_vad_frames_skipped_total",
			Help: "Total number of short trailing frames skipped",
		}),
		SilencesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "silencesense_silences_detected_total",
			Help: "Total number of silence intervals reported",
		}),
		SilenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "silencesense_silence_duration_seconds",
			Help:    "Duration of reported silence intervals",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		// Storage metrics
		StoredAnalyses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "silencesense_stored_analyses",
			Help: "Number of analyses currently held by the result store",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silencesense_store_errors_total",
			Help: "Total number of result store errors",
		}, []string{"operation"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silencesense_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "silencesense_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "silencesense_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordAnalysisStarted increments the started counter and the in-flight gauge
func (m *Metrics) RecordAnalysisStarted() {
	m.AnalysesStarted.Inc()
	m.AnalysesInFlight.Inc()
}

// RecordAnalysisCompleted records a successful analysis
func (m *Metrics) RecordAnalysisCompleted(processingSeconds, audioSeconds float64) {
	m.AnalysesInFlight.Dec()
	m.AnalysesCompleted.Inc()
	m.AnalysisDuration.Observe(processingSeconds)
	m.AudioDuration.Observe(audioSeconds)
}

// RecordAnalysisFailed records a failed analysis
func (m *Metrics) RecordAnalysisFailed(reason string, processingSeconds float64) {
	m.AnalysesInFlight.Dec()
	m.AnalysesFailed.WithLabelValues(reason).Inc()
	m.AnalysisDuration.Observe(processingSeconds)
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordFrames records per-analysis frame counts
func (m *Metrics) RecordFrames(classified, speech, skipped int) {
	m.FramesClassified.Add(float64(classified))
	m.FramesSpeech.Add(float64(speech))
	m.FramesSkipped.Add(float64(skipped))
}

// RecordSilence records a reported silence interval
func (m *Metrics) RecordSilence(durationSeconds float64) {
	m.SilencesDetected.Inc()
	m.SilenceDuration.Observe(durationSeconds)
}

// SetStoredAnalyses sets the current number of stored analyses
func (m *Metrics) SetStoredAnalyses(count int) {
	m.StoredAnalyses.Set(float64(count))
}

// RecordStoreError records a failed store operation
func (m *Metrics) RecordStoreError(operation string) {
	m.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
