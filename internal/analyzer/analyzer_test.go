package analyzer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/silencesense/internal/audio"
	"github.com/skypro1111/silencesense/internal/metrics"
	"github.com/skypro1111/silencesense/internal/report"
	"github.com/skypro1111/silencesense/internal/store"
	"github.com/skypro1111/silencesense/internal/vad"
)

const testRate = 16000

var defaultParams = Params{FrameDurationMs: 30, PaddingDurationMs: 300, Mode: 3}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// frames30 returns n 30 ms frames of silence or a loud tone at testRate.
func frames30(n int, loud bool) []int16 {
	samples := make([]int16, n*vad.SamplesPerFrame(testRate, 30))
	if loud {
		for i := range samples {
			samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/testRate))
		}
	}
	return samples
}

func concat(parts ...[]int16) []int16 {
	var out []int16
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func wavBytes(t *testing.T, samples []int16) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(samples, testRate, 1)
	require.NoError(t, err)
	return data
}

func writeWAV(t *testing.T, dir, name string, samples []int16) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, wavBytes(t, samples), 0o644))
	return path
}

// leadingSilence is 20 silent frames followed by 10 speech frames.
func leadingSilence() []int16 {
	return concat(frames30(20, false), frames30(10, true))
}

func newTestAnalyzer(t *testing.T, deps Dependencies) *Analyzer {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	if deps.Classifiers == nil {
		// The tone fixtures are calibrated against the level gate.
		deps.Classifiers = EnergyClassifiers
	}
	a, err := New(Options{
		Params:           defaultParams,
		TargetSampleRate: testRate,
		ScratchDir:       t.TempDir(),
		MaxConcurrent:    2,
	}, deps)
	require.NoError(t, err)
	return a
}

func assertScratchEmpty(t *testing.T, a *Analyzer) {
	t.Helper()
	entries, err := os.ReadDir(a.opts.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func TestAnalyzeFileLeadingSilence(t *testing.T) {
	a := newTestAnalyzer(t, Dependencies{})
	path := writeWAV(t, t.TempDir(), "call.wav", leadingSilence())

	got, err := a.AnalyzeFile(context.Background(), path, defaultParams)
	require.NoError(t, err)

	assert.Equal(t, "call.wav", got.Filename)
	assert.Equal(t, testRate, got.SampleRate)
	assert.InDelta(t, 0.9, got.AudioDuration, 1e-9)
	assert.Equal(t, 30, got.Frames)
	assert.Equal(t, 10, got.SpeechFrames)
	assert.Zero(t, got.SkippedFrames)
	assert.NotEmpty(t, got.ID)
	assert.Len(t, got.Digest, 64)

	require.Len(t, got.Silences, 1)
	assert.Equal(t, report.Silence{Start: "0:00", End: "0:00", Duration: 0.33, StartMs: 270, EndMs: 600}, got.Silences[0])
	assert.InDelta(t, 0.33, got.TotalSilenceDuration, 1e-9)
}

func TestAnalyzeUploadMidStreamSilence(t *testing.T) {
	a := newTestAnalyzer(t, Dependencies{})
	samples := concat(frames30(10, true), frames30(30, false), frames30(10, true))

	got, err := a.AnalyzeUpload(context.Background(), "talk.WAV", bytes.NewReader(wavBytes(t, samples)), defaultParams)
	require.NoError(t, err)

	require.Len(t, got.Silences, 1)
	assert.Equal(t, 570, got.Silences[0].StartMs)
	assert.Equal(t, 1200, got.Silences[0].EndMs)
	assert.InDelta(t, 0.63, got.Silences[0].Duration, 1e-9)
	assertScratchEmpty(t, a)
}

func TestAnalyzeUploadDiscardsTrailingSilence(t *testing.T) {
	a := newTestAnalyzer(t, Dependencies{})
	samples := concat(frames30(10, true), frames30(40, false))

	got, err := a.AnalyzeUpload(context.Background(), "tail.wav", bytes.NewReader(wavBytes(t, samples)), defaultParams)
	require.NoError(t, err)
	assert.Empty(t, got.Silences)
	assert.Zero(t, got.TotalSilenceDuration)
}

func TestAnalyzeUploadResamples(t *testing.T) {
	a := newTestAnalyzer(t, Dependencies{})
	data, err := audio.EncodeWAV(make([]int16, 8000), 8000, 1)
	require.NoError(t, err)

	got, err := a.AnalyzeUpload(context.Background(), "slow.wav", bytes.NewReader(data), defaultParams)
	require.NoError(t, err)
	assert.Equal(t, testRate, got.SampleRate)
	assert.InDelta(t, 1.0, got.AudioDuration, 1e-9)
	assert.Empty(t, got.Silences)
}

func TestAnalyzeUploadErrors(t *testing.T) {
	failing := func(mode int) (vad.Classifier, error) {
		return vad.ClassifierFunc(func([]byte, int) (bool, error) {
			return false, errors.New("detector crashed")
		}), nil
	}

	tests := []struct {
		name     string
		deps     Dependencies
		filename string
		body     []byte
		params   Params
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unsupported extension",
			filename: "notes.txt",
			body:     []byte("hello"),
			params:   defaultParams,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
			},
		},
		{
			name:     "padding shorter than frame",
			filename: "a.wav",
			params:   Params{FrameDurationMs: 30, PaddingDurationMs: 10, Mode: 3},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, vad.ErrConfiguration)
			},
		},
		{
			name:     "unsupported frame duration",
			filename: "a.wav",
			params:   Params{FrameDurationMs: 25, PaddingDurationMs: 300, Mode: 3},
			check: func(t *testing.T, err error) {
				var cfgErr *vad.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, "frame_duration_ms", cfgErr.Field)
			},
		},
		{
			name:     "mode out of range",
			filename: "a.wav",
			params:   Params{FrameDurationMs: 30, PaddingDurationMs: 300, Mode: 7},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, vad.ErrConfiguration)
			},
		},
		{
			name:     "undecodable audio",
			filename: "broken.wav",
			body:     []byte("definitely not riff"),
			params:   defaultParams,
			check: func(t *testing.T, err error) {
				var decodeErr *audio.DecodeError
				require.ErrorAs(t, err, &decodeErr)
				assert.Equal(t, audio.FormatWAV, decodeErr.Format)
			},
		},
		{
			name:     "classifier failure",
			deps:     Dependencies{Classifiers: ClassifierFactoryFunc(failing)},
			filename: "ok.wav",
			body:     nil, // filled below
			params:   defaultParams,
			check: func(t *testing.T, err error) {
				var classifyErr *vad.ClassificationError
				require.ErrorAs(t, err, &classifyErr)
				assert.Equal(t, 0, classifyErr.FrameIndex)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t, tt.deps)
			body := tt.body
			if body == nil {
				body = wavBytes(t, leadingSilence())
			}

			got, err := a.AnalyzeUpload(context.Background(), tt.filename, bytes.NewReader(body), tt.params)
			require.Error(t, err)
			assert.Nil(t, got)
			tt.check(t, err)
			assertScratchEmpty(t, a)

			stats := a.GetStats()
			assert.Equal(t, uint64(1), stats.TotalRequests)
			assert.Equal(t, uint64(1), stats.FailedRequests)
		})
	}
}

func TestAnalyzeUploadReusesStoredAnalysis(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(time.Minute, quietLogger())
	t.Cleanup(func() { _ = mem.Close(ctx) })

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	a := newTestAnalyzer(t, Dependencies{Store: mem, Metrics: m})
	body := wavBytes(t, leadingSilence())

	first, err := a.AnalyzeUpload(ctx, "one.wav", bytes.NewReader(body), defaultParams)
	require.NoError(t, err)

	second, err := a.AnalyzeUpload(ctx, "two.wav", bytes.NewReader(body), defaultParams)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other := Params{FrameDurationMs: 30, PaddingDurationMs: 600, Mode: 3}
	third, err := a.AnalyzeUpload(ctx, "one.wav", bytes.NewReader(body), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 570, third.Silences[0].StartMs)

	stored, err := mem.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, stored.Summary)

	stats := a.GetStats()
	assert.Equal(t, uint64(3), stats.CompletedRequests)
	assert.Equal(t, uint64(1), stats.CacheHits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoredAnalyses))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AnalysesInFlight))
}

func TestAnalyzeFileBusy(t *testing.T) {
	a := newTestAnalyzer(t, Dependencies{})
	path := writeWAV(t, t.TempDir(), "call.wav", leadingSilence())

	for i := 0; i < cap(a.semaphore); i++ {
		a.semaphore <- struct{}{}
	}
	assert.Equal(t, 2, a.GetStats().ActiveAnalyses)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.AnalyzeFile(ctx, path, defaultParams)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "busy", FailureReason(err))
}

func TestAnalyzeStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := 0
	cancelling := func(mode int) (vad.Classifier, error) {
		return vad.ClassifierFunc(func([]byte, int) (bool, error) {
			seen++
			if seen == 5 {
				cancel()
			}
			return false, nil
		}), nil
	}

	a := newTestAnalyzer(t, Dependencies{Classifiers: ClassifierFactoryFunc(cancelling)})
	_, err := a.AnalyzeUpload(ctx, "long.wav", bytes.NewReader(wavBytes(t, frames30(100, false))), defaultParams)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, seen)
	assertScratchEmpty(t, a)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Params: defaultParams, MaxConcurrent: 1}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Options{Params: defaultParams, TargetSampleRate: testRate}, Dependencies{})
	assert.Error(t, err)

	_, err = New(Options{
		Params:           Params{FrameDurationMs: 30, PaddingDurationMs: 0, Mode: 3},
		TargetSampleRate: testRate,
		MaxConcurrent:    1,
	}, Dependencies{})
	assert.ErrorIs(t, err, vad.ErrConfiguration)

	a, err := New(Options{Params: defaultParams, TargetSampleRate: testRate, MaxConcurrent: 1}, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), a.opts.ScratchDir)
	assert.Equal(t, defaultParams, a.DefaultParams())
	assert.Equal(t, testRate, a.TargetSampleRate())
	assert.Equal(t, WebRTCClassifiers, a.classifiers)
}

func TestFrameDurationFollowsClassifier(t *testing.T) {
	odd := Params{FrameDurationMs: 25, PaddingDurationMs: 250, Mode: 0}

	builtin, err := New(Options{Params: defaultParams, TargetSampleRate: testRate, MaxConcurrent: 1}, Dependencies{})
	require.NoError(t, err)
	assert.ErrorIs(t, builtin.ValidateParams(odd), vad.ErrConfiguration)

	// A custom detector that accepts any frame length.
	custom := ClassifierFactoryFunc(func(int) (vad.Classifier, error) {
		return vad.ClassifierFunc(func(frame []byte, _ int) (bool, error) {
			return !bytes.Equal(frame, make([]byte, len(frame))), nil
		}), nil
	})
	a := newTestAnalyzer(t, Dependencies{Classifiers: custom})
	require.NoError(t, a.ValidateParams(odd))

	// 20 silent 25 ms frames then one loud one: the window completes at frame 9.
	samples := concat(make([]int16, 20*400), frames30(1, true))
	path := writeWAV(t, t.TempDir(), "odd.wav", samples)

	got, err := a.AnalyzeFile(context.Background(), path, odd)
	require.NoError(t, err)
	require.Len(t, got.Silences, 1)
	assert.Equal(t, 225, got.Silences[0].StartMs)
	assert.Equal(t, 500, got.Silences[0].EndMs)
}

func TestClassifierByName(t *testing.T) {
	for name, want := range map[string]ClassifierFactory{
		"":               WebRTCClassifiers,
		ClassifierWebRTC: WebRTCClassifiers,
		ClassifierEnergy: EnergyClassifiers,
	} {
		got, err := ClassifierByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ClassifierByName("neural")
	assert.Error(t, err)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&vad.ConfigError{Field: "mode", Reason: "bad"}, "config"},
		{audio.ErrUnsupportedFormat, "format"},
		{&audio.DecodeError{Format: audio.FormatMP3, Err: io.ErrUnexpectedEOF}, "decode"},
		{&vad.ClassificationError{FrameIndex: 3, Err: io.EOF}, "classify"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("disk full"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureReason(tt.err), tt.err.Error())
	}
}
