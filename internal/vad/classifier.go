package vad

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Classifier decides whether a frame of little-endian 16-bit mono PCM holds
// speech.
type Classifier interface {
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(frame []byte, sampleRate int) (bool, error)

func (f ClassifierFunc) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	return f(frame, sampleRate)
}

// Aggressiveness bounds. Higher modes are stricter about what counts as speech.
const (
	MinMode = 0
	MaxMode = 3
)

// Energy thresholds in dBFS per aggressiveness mode.
var modeThresholds = [MaxMode + 1]float64{-55, -50, -45, -40}

var supportedSampleRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

var supportedFrameDurations = []int{10, 20, 30}

// EnergyClassifier is an RMS-energy speech detector, available as a fallback
// where the WebRTC detector cannot be built or a plain level gate is wanted.
// It accepts the same rates (8, 16, 32, 48 kHz) and frame durations
// (10, 20, 30 ms) as WebRTCClassifier. It is stateless and safe for
// concurrent use.
type EnergyClassifier struct {
	mode          int
	thresholdDBFS float64
}

// NewEnergyClassifier returns a classifier for the given aggressiveness mode.
func NewEnergyClassifier(mode int) (*EnergyClassifier, error) {
	if mode < MinMode || mode > MaxMode {
		return nil, configErrorf("mode", "must be between %d and %d, got %d", MinMode, MaxMode, mode)
	}
	return &EnergyClassifier{
		mode:          mode,
		thresholdDBFS: modeThresholds[mode],
	}, nil
}

// Mode returns the aggressiveness mode.
func (c *EnergyClassifier) Mode() int {
	return c.mode
}

// ThresholdDBFS returns the energy level at or above which a frame is speech.
func (c *EnergyClassifier) ThresholdDBFS() float64 {
	return c.thresholdDBFS
}

// IsSpeech implements Classifier.
func (c *EnergyClassifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(frame, sampleRate); err != nil {
		return false, err
	}
	return levelDBFS(frame) >= c.thresholdDBFS, nil
}

// checkFrame applies the WebRTC rate and frame length limits.
func checkFrame(frame []byte, sampleRate int) error {
	if !supportedSampleRates[sampleRate] {
		return fmt.Errorf("unsupported sample rate %d (supported: 8000, 16000, 32000, 48000)", sampleRate)
	}
	if len(frame)%2 != 0 {
		return fmt.Errorf("frame length must be even, got %d bytes", len(frame))
	}
	if !validFrameLength(len(frame)/2, sampleRate) {
		return fmt.Errorf("frame of %d samples is not 10, 20 or 30 ms at %d Hz", len(frame)/2, sampleRate)
	}
	return nil
}

func validFrameLength(samples, sampleRate int) bool {
	for _, d := range supportedFrameDurations {
		if samples == SamplesPerFrame(sampleRate, d) {
			return true
		}
	}
	return false
}

// levelDBFS returns the RMS level of the frame relative to full scale.
func levelDBFS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return math.Inf(-1)
	}

	var energy float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		energy += s * s
	}
	rms := math.Sqrt(energy / float64(n))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768.0)
}

// SupportedFrameDuration reports whether d ms is a frame duration the WebRTC
// and energy classifiers accept.
func SupportedFrameDuration(d int) bool {
	for _, v := range supportedFrameDurations {
		if v == d {
			return true
		}
	}
	return false
}

// SupportedSampleRate reports whether the WebRTC and energy classifiers
// accept rate.
func SupportedSampleRate(rate int) bool {
	return supportedSampleRates[rate]
}
