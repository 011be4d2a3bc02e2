package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/silencesense/internal/audio"
	"github.com/skypro1111/silencesense/internal/metrics"
	"github.com/skypro1111/silencesense/internal/report"
	"github.com/skypro1111/silencesense/internal/store"
	"github.com/skypro1111/silencesense/internal/vad"
)

// ErrBusy is returned when the context ends while waiting for a free slot.
var ErrBusy = errors.New("analyzer busy")

type (
	Params   = report.Params
	Analysis = report.Analysis
)

// Classifier names accepted by ClassifierByName.
const (
	ClassifierWebRTC = "webrtc"
	ClassifierEnergy = "energy"
)

// ClassifierFactory builds frame classifiers for one detector and states the
// frame durations its classifiers accept.
type ClassifierFactory interface {
	New(mode int) (vad.Classifier, error)
	SupportsFrameDuration(ms int) bool
}

// ClassifierFactoryFunc adapts a constructor to ClassifierFactory. It accepts
// every frame duration.
type ClassifierFactoryFunc func(mode int) (vad.Classifier, error)

func (f ClassifierFactoryFunc) New(mode int) (vad.Classifier, error) {
	return f(mode)
}

func (f ClassifierFactoryFunc) SupportsFrameDuration(int) bool {
	return true
}

type webrtcFactory struct{}

func (webrtcFactory) New(mode int) (vad.Classifier, error) {
	c, err := vad.NewWebRTCClassifier(mode)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (webrtcFactory) SupportsFrameDuration(ms int) bool {
	return vad.SupportedFrameDuration(ms)
}

type energyFactory struct{}

func (energyFactory) New(mode int) (vad.Classifier, error) {
	c, err := vad.NewEnergyClassifier(mode)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (energyFactory) SupportsFrameDuration(ms int) bool {
	return vad.SupportedFrameDuration(ms)
}

var (
	// WebRTCClassifiers builds vad.WebRTCClassifier. It is the default.
	WebRTCClassifiers ClassifierFactory = webrtcFactory{}
	// EnergyClassifiers builds vad.EnergyClassifier.
	EnergyClassifiers ClassifierFactory = energyFactory{}
)

// ClassifierByName returns the factory for a configured classifier name.
func ClassifierByName(name string) (ClassifierFactory, error) {
	switch name {
	case ClassifierWebRTC, "":
		return WebRTCClassifiers, nil
	case ClassifierEnergy:
		return EnergyClassifiers, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q (supported: %s, %s)", name, ClassifierWebRTC, ClassifierEnergy)
	}
}

// Options configures an Analyzer.
type Options struct {
	Params           Params // defaults for requests that do not override them
	TargetSampleRate int
	ScratchDir       string // empty means os.TempDir()
	MaxConcurrent    int
}

// Dependencies are the collaborators of an Analyzer. Logger defaults to
// slog.Default and Classifiers to WebRTCClassifiers; a nil Store disables
// caching and persistence, a nil Metrics disables instrumentation.
type Dependencies struct {
	Store       store.Store
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Classifiers ClassifierFactory
}

// Analyzer runs the decode, frame, collect and report pipeline with bounded
// concurrency.
type Analyzer struct {
	opts        Options
	store       store.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
	classifiers ClassifierFactory
	semaphore   chan struct{}

	// Statistics
	totalRequests     uint64
	completedRequests uint64
	failedRequests    uint64
	cacheHits         uint64

	mu sync.RWMutex
}

// Stats contains analyzer counters.
type Stats struct {
	TotalRequests     uint64 `json:"total_requests"`
	CompletedRequests uint64 `json:"completed_requests"`
	FailedRequests    uint64 `json:"failed_requests"`
	CacheHits         uint64 `json:"cache_hits"`
	ActiveAnalyses    int    `json:"active_analyses"`
	MaxConcurrent     int    `json:"max_concurrent"`
}

// New validates opts and the default params and creates an Analyzer.
func New(opts Options, deps Dependencies) (*Analyzer, error) {
	if opts.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("target sample rate must be positive, got %d", opts.TargetSampleRate)
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max concurrent must be at least 1, got %d", opts.MaxConcurrent)
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}

	a := &Analyzer{
		opts:        opts,
		store:       deps.Store,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		classifiers: deps.Classifiers,
		semaphore:   make(chan struct{}, opts.MaxConcurrent),
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.classifiers == nil {
		a.classifiers = WebRTCClassifiers
	}

	if err := a.ValidateParams(opts.Params); err != nil {
		return nil, fmt.Errorf("default params: %w", err)
	}
	return a, nil
}

// DefaultParams returns the params used when a request does not override them.
func (a *Analyzer) DefaultParams() Params {
	return a.opts.Params
}

// TargetSampleRate is the rate audio is resampled to before framing.
func (a *Analyzer) TargetSampleRate() int {
	return a.opts.TargetSampleRate
}

// ValidateParams checks p against the target sample rate and the frame
// durations the classifier accepts. Failures are *vad.ConfigError.
func (a *Analyzer) ValidateParams(p Params) error {
	cfg := vad.Config{
		SampleRate:        a.opts.TargetSampleRate,
		FrameDurationMs:   p.FrameDurationMs,
		PaddingDurationMs: p.PaddingDurationMs,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !a.classifiers.SupportsFrameDuration(p.FrameDurationMs) {
		return &vad.ConfigError{
			Field:  "frame_duration_ms",
			Reason: fmt.Sprintf("%d ms is not supported by the classifier", p.FrameDurationMs),
		}
	}
	if p.Mode < vad.MinMode || p.Mode > vad.MaxMode {
		return &vad.ConfigError{
			Field:  "mode",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", vad.MinMode, vad.MaxMode, p.Mode),
		}
	}
	return nil
}

// AnalyzeUpload spools r into a scratch file while hashing it, then analyzes
// it. The scratch file is removed before AnalyzeUpload returns. A previous
// analysis of identical content with identical params is returned from the
// store instead of being recomputed.
func (a *Analyzer) AnalyzeUpload(ctx context.Context, filename string, r io.Reader, p Params) (*Analysis, error) {
	format, err := a.begin(p, filename)
	if err != nil {
		return nil, err
	}

	release, err := a.acquire(ctx)
	if err != nil {
		return nil, a.fail(filename, err, time.Now())
	}
	defer release()

	start := time.Now()

	tmp, err := os.CreateTemp(a.opts.ScratchDir, "upload-"+uuid.NewString()+"-*"+filepath.Ext(filename))
	if err != nil {
		return nil, a.fail(filename, fmt.Errorf("failed to create scratch file: %w", err), start)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("Failed to remove scratch file",
				slog.String("path", tmp.Name()),
				slog.String("error", err.Error()),
			)
		}
	}()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), r); err != nil {
		return nil, a.fail(filename, fmt.Errorf("failed to spool upload: %w", err), start)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, a.fail(filename, fmt.Errorf("failed to rewind scratch file: %w", err), start)
	}

	return a.process(ctx, filename, format, tmp, hex.EncodeToString(hash.Sum(nil)), p, start)
}

// AnalyzeFile analyzes a local audio file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, p Params) (*Analysis, error) {
	format, err := a.begin(p, path)
	if err != nil {
		return nil, err
	}

	release, err := a.acquire(ctx)
	if err != nil {
		return nil, a.fail(path, err, time.Now())
	}
	defer release()

	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, a.fail(path, fmt.Errorf("failed to open %s: %w", path, err), start)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, a.fail(path, fmt.Errorf("failed to read %s: %w", path, err), start)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, a.fail(path, fmt.Errorf("failed to rewind %s: %w", path, err), start)
	}

	return a.process(ctx, filepath.Base(path), format, f, hex.EncodeToString(hash.Sum(nil)), p, start)
}

// begin counts the request and rejects bad params or extensions before any I/O.
func (a *Analyzer) begin(p Params, filename string) (audio.Format, error) {
	a.mu.Lock()
	a.totalRequests++
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.RecordAnalysisStarted()
	}

	start := time.Now()
	if err := a.ValidateParams(p); err != nil {
		return "", a.fail(filename, err, start)
	}
	format, err := audio.DetectFormat(filename)
	if err != nil {
		return "", a.fail(filename, err, start)
	}
	return format, nil
}

func (a *Analyzer) acquire(ctx context.Context) (func(), error) {
	select {
	case a.semaphore <- struct{}{}:
		return func() { <-a.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (a *Analyzer) process(ctx context.Context, filename string, format audio.Format, src io.Reader, digest string, p Params, start time.Time) (*Analysis, error) {
	if cached := a.lookup(ctx, p.CacheKey(digest)); cached != nil {
		a.mu.Lock()
		a.completedRequests++
		a.cacheHits++
		a.mu.Unlock()
		if a.metrics != nil {
			a.metrics.RecordCacheHit()
			a.metrics.RecordAnalysisCompleted(time.Since(start).Seconds(), cached.AudioDuration)
		}

		a.logger.Info("Analysis served from store",
			slog.String("id", cached.ID),
			slog.String("filename", filename),
			slog.String("digest", digest),
		)
		return cached, nil
	}

	pcm, err := audio.Decode(src, format, a.opts.TargetSampleRate)
	if err != nil {
		return nil, a.fail(filename, err, start)
	}
	if err := ctx.Err(); err != nil {
		return nil, a.fail(filename, err, start)
	}

	res, err := a.collect(ctx, pcm, p)
	if err != nil {
		return nil, a.fail(filename, err, start)
	}

	summary, err := report.Build(res.Intervals)
	if err != nil {
		return nil, a.fail(filename, err, start)
	}

	result := &Analysis{
		ID:             uuid.NewString(),
		Filename:       filename,
		Digest:         digest,
		Params:         p,
		SampleRate:     pcm.SampleRate,
		AudioDuration:  pcm.Duration().Seconds(),
		Frames:         res.Frames,
		SkippedFrames:  res.Skipped,
		SpeechFrames:   res.SpeechFrames,
		CreatedAt:      time.Now().UTC(),
		ProcessingTime: time.Since(start),
		Summary:        summary,
	}

	a.save(ctx, result)

	a.mu.Lock()
	a.completedRequests++
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.RecordFrames(res.Frames, res.SpeechFrames, res.Skipped)
		for _, s := range summary.Silences {
			a.metrics.RecordSilence(s.Duration)
		}
		a.metrics.RecordAnalysisCompleted(result.ProcessingTime.Seconds(), result.AudioDuration)
	}

	a.logger.Info("Analysis completed",
		slog.String("id", result.ID),
		slog.String("filename", filename),
		slog.Float64("audio_duration", result.AudioDuration),
		slog.Int("frames", res.Frames),
		slog.Int("silences", len(summary.Silences)),
		slog.Float64("total_silence_duration", summary.TotalSilenceDuration),
		slog.Duration("processing_time", result.ProcessingTime),
	)

	return result, nil
}

func (a *Analyzer) collect(ctx context.Context, pcm *audio.PCM, p Params) (*vad.Result, error) {
	classifier, err := a.classifiers.New(p.Mode)
	if err != nil {
		return nil, err
	}
	collector, err := vad.NewCollector(vad.Config{
		SampleRate:        pcm.SampleRate,
		FrameDurationMs:   p.FrameDurationMs,
		PaddingDurationMs: p.PaddingDurationMs,
	}, classifier)
	if err != nil {
		return nil, err
	}
	framer, err := vad.NewFramer(pcm.Samples, pcm.SampleRate, p.FrameDurationMs)
	if err != nil {
		return nil, err
	}

	res, err := collector.Collect(untilDone(ctx, framer.Frames()))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// untilDone stops frames once ctx is done.
func untilDone(ctx context.Context, frames iter.Seq[vad.Frame]) iter.Seq[vad.Frame] {
	return func(yield func(vad.Frame) bool) {
		for f := range frames {
			if ctx.Err() != nil || !yield(f) {
				return
			}
		}
	}
}

func (a *Analyzer) lookup(ctx context.Context, key string) *Analysis {
	if a.store == nil {
		return nil
	}
	cached, err := a.store.FindByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.storeError("find", err)
		}
		return nil
	}
	return cached
}

func (a *Analyzer) save(ctx context.Context, result *Analysis) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, result); err != nil {
		a.storeError("save", err)
		return
	}
	if a.metrics != nil {
		if stats, err := a.store.Stats(ctx); err == nil {
			a.metrics.SetStoredAnalyses(stats.Count)
		}
	}
}

func (a *Analyzer) storeError(op string, err error) {
	if a.metrics != nil {
		a.metrics.RecordStoreError(op)
	}
	a.logger.Warn("Result store operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// fail records a failed request and returns err unchanged.
func (a *Analyzer) fail(filename string, err error, start time.Time) error {
	a.mu.Lock()
	a.failedRequests++
	a.mu.Unlock()

	reason := FailureReason(err)
	if a.metrics != nil {
		a.metrics.RecordAnalysisFailed(reason, time.Since(start).Seconds())
	}

	a.logger.Warn("Analysis failed",
		slog.String("filename", filename),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	return err
}

// FailureReason classifies an analysis error into a short label.
func FailureReason(err error) string {
	var (
		decodeErr   *audio.DecodeError
		classifyErr *vad.ClassificationError
	)
	switch {
	case errors.Is(err, vad.ErrConfiguration):
		return "config"
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "format"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &classifyErr):
		return "classify"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// GetStats returns current analyzer statistics
func (a *Analyzer) GetStats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Stats{
		TotalRequests:     a.totalRequests,
		CompletedRequests: a.completedRequests,
		FailedRequests:    a.failedRequests,
		CacheHits:         a.cacheHits,
		ActiveAnalyses:    len(a.semaphore),
		MaxConcurrent:     cap(a.semaphore),
	}
}
