package vad

import (
	"iter"
)

// Config holds the framing and smoothing parameters of a collector.
type Config struct {
	SampleRate        int
	FrameDurationMs   int
	PaddingDurationMs int
}

// Validate checks the combination before any frame is processed.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return configErrorf("sample_rate", "must be positive, got %d", c.SampleRate)
	}
	if c.FrameDurationMs <= 0 {
		return configErrorf("frame_duration_ms", "must be positive, got %d", c.FrameDurationMs)
	}
	if c.PaddingDurationMs <= 0 {
		return configErrorf("padding_duration_ms", "must be positive, got %d", c.PaddingDurationMs)
	}
	if SamplesPerFrame(c.SampleRate, c.FrameDurationMs) == 0 {
		return configErrorf("frame_duration_ms",
			"%d ms at %d Hz yields zero samples per frame", c.FrameDurationMs, c.SampleRate)
	}
	if c.PaddingDurationMs < c.FrameDurationMs {
		return configErrorf("padding_duration_ms",
			"must be at least frame_duration_ms (%d), got %d", c.FrameDurationMs, c.PaddingDurationMs)
	}
	return nil
}

// NumPaddingFrames is the padding window length in frames. A padding that is
// not a multiple of the frame duration is floored.
func (c Config) NumPaddingFrames() int {
	return c.PaddingDurationMs / c.FrameDurationMs
}

// Result is the outcome of one collector pass.
type Result struct {
	Intervals    []Interval
	Frames       int // frames classified
	Skipped      int // frames dropped for having an unexpected length
	SpeechFrames int
}

// Collector turns a classified frame stream into silence intervals. It holds
// no per-stream state, so one collector can serve concurrent streams.
type Collector struct {
	cfg        Config
	classifier Classifier
	frameLen   int
}

// NewCollector validates cfg and binds the classifier.
func NewCollector(cfg Config, classifier Classifier) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, configErrorf("classifier", "must not be nil")
	}
	return &Collector{
		cfg:        cfg,
		classifier: classifier,
		frameLen:   SamplesPerFrame(cfg.SampleRate, cfg.FrameDurationMs),
	}, nil
}

// Config returns the collector parameters.
func (c *Collector) Config() Config {
	return c.cfg
}

// Collect scans frames in order. A silence still open when the frames run out
// is discarded. On a classifier failure the scan stops and the returned error
// is a *ClassificationError; no partial result is returned.
func (c *Collector) Collect(frames iter.Seq[Frame]) (*Result, error) {
	m := newMachine(c.cfg.NumPaddingFrames(), c.cfg.FrameDurationMs)
	res := &Result{Intervals: make([]Interval, 0)}

	for frame := range frames {
		if len(frame.Samples) != c.frameLen {
			res.Skipped++
			continue
		}

		speech, err := c.classifier.IsSpeech(frame.Bytes(), c.cfg.SampleRate)
		if err != nil {
			return nil, &ClassificationError{FrameIndex: frame.Index, Err: err}
		}
		res.Frames++
		if speech {
			res.SpeechFrames++
		}

		if iv, ok := m.step(frame.Index, speech); ok {
			res.Intervals = append(res.Intervals, iv)
		}
	}

	return res, nil
}

// CollectSamples frames samples with the collector's frame duration and
// collects them.
func (c *Collector) CollectSamples(samples []int16) (*Result, error) {
	framer, err := NewFramer(samples, c.cfg.SampleRate, c.cfg.FrameDurationMs)
	if err != nil {
		return nil, err
	}
	return c.Collect(framer.Frames())
}
