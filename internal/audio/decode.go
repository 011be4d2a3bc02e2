package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Format identifies a supported container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// ErrUnsupportedFormat is returned for files whose extension is not accepted.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError reports audio that could not be decoded.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PCM is a decoded mono 16-bit sample sequence. It is not modified after
// decoding.
type PCM struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the samples.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p.Samples)) * time.Second / time.Duration(p.SampleRate)
}

// DetectFormat maps a file name to a Format by extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return FormatMP3, nil
	case ".wav":
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("%q: %w", filename, ErrUnsupportedFormat)
	}
}

// Decode reads r as format, downmixes to mono and resamples to targetRate.
// A targetRate of 0 keeps the source rate.
func Decode(r io.Reader, format Format, targetRate int) (*PCM, error) {
	var (
		samples  []int16
		rate     int
		channels int
		err      error
	)

	switch format {
	case FormatMP3:
		samples, rate, err = decodeMP3(r)
		channels = 2
	case FormatWAV:
		samples, rate, channels, err = DecodeWAV(r)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	if channels == 2 {
		samples = StereoToMono(samples)
	}
	if targetRate > 0 && targetRate != rate {
		samples = Resample(samples, rate, targetRate)
		rate = targetRate
	}

	return &PCM{Samples: samples, SampleRate: rate}, nil
}

// decodeMP3 returns interleaved stereo samples; go-mp3 always emits 16-bit
// little-endian stereo.
func decodeMP3(r io.Reader) ([]int16, int, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("no audio frames")
	}
	return BytesToSamples(data), d.SampleRate(), nil
}
