package vad

import (
	"encoding/binary"
	"iter"
)

// Frame is a contiguous, non-overlapping slice of the sample sequence.
type Frame struct {
	Index    int     // zero-based position in the frame sequence
	OffsetMs int     // Index * frame duration
	Samples  []int16 // borrowed from the source sequence, do not modify
}

// Bytes returns the frame as little-endian 16-bit PCM.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Framer slices a PCM sample sequence into fixed-duration frames.
type Framer struct {
	samples         []int16
	sampleRate      int
	frameDurationMs int
	samplesPerFrame int
}

// SamplesPerFrame returns the frame length in samples for the given rate and
// duration, using integer division.
func SamplesPerFrame(sampleRate, frameDurationMs int) int {
	return sampleRate * frameDurationMs / 1000
}

// NewFramer validates the rate/duration combination. A combination that
// yields zero samples per frame is a configuration error.
func NewFramer(samples []int16, sampleRate, frameDurationMs int) (*Framer, error) {
	if sampleRate <= 0 {
		return nil, configErrorf("sample_rate", "must be positive, got %d", sampleRate)
	}
	if frameDurationMs <= 0 {
		return nil, configErrorf("frame_duration_ms", "must be positive, got %d", frameDurationMs)
	}

	spf := SamplesPerFrame(sampleRate, frameDurationMs)
	if spf == 0 {
		return nil, configErrorf("frame_duration_ms",
			"%d ms at %d Hz yields zero samples per frame", frameDurationMs, sampleRate)
	}

	return &Framer{
		samples:         samples,
		sampleRate:      sampleRate,
		frameDurationMs: frameDurationMs,
		samplesPerFrame: spf,
	}, nil
}

// Frames yields the frames in order. The final frame may be shorter than the
// others and is not padded. The sequence can be ranged over any number of times.
func (f *Framer) Frames() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		index := 0
		for start := 0; start < len(f.samples); start += f.samplesPerFrame {
			end := min(start+f.samplesPerFrame, len(f.samples))
			frame := Frame{
				Index:    index,
				OffsetMs: index * f.frameDurationMs,
				Samples:  f.samples[start:end:end],
			}
			if !yield(frame) {
				return
			}
			index++
		}
	}
}

// Count returns the number of frames Frames will yield, including a short tail.
func (f *Framer) Count() int {
	return (len(f.samples) + f.samplesPerFrame - 1) / f.samplesPerFrame
}

// SamplesPerFrame returns the nominal frame length in samples.
func (f *Framer) SamplesPerFrame() int {
	return f.samplesPerFrame
}
