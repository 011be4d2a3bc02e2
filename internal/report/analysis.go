package report

import (
	"fmt"
	"time"
)

// Params are the per-request VAD settings an analysis ran with.
type Params struct {
	FrameDurationMs   int `json:"frame_duration_ms"`
	PaddingDurationMs int `json:"padding_duration_ms"`
	Mode              int `json:"mode"`
}

// CacheKey identifies an analysis of the content with the given digest under p.
func (p Params) CacheKey(digest string) string {
	return fmt.Sprintf("%s:%d:%d:%d", digest, p.FrameDurationMs, p.PaddingDurationMs, p.Mode)
}

// Analysis is a stored, client-facing analysis result.
type Analysis struct {
	ID             string        `json:"id"`
	Filename       string        `json:"filename"`
	Digest         string        `json:"digest"`
	Params         Params        `json:"params"`
	SampleRate     int           `json:"sample_rate"`
	AudioDuration  float64       `json:"audio_duration"` // seconds
	Frames         int           `json:"frames"`
	SkippedFrames  int           `json:"skipped_frames"`
	SpeechFrames   int           `json:"speech_frames"`
	CreatedAt      time.Time     `json:"created_at"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
	Summary
}

// CacheKey is the key the analysis is indexed under in a result store.
func (a *Analysis) CacheKey() string {
	return a.Params.CacheKey(a.Digest)
}
