package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header written by EncodeWAV.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// wavFmt is the body of a "fmt " chunk.
type wavFmt struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// EncodeWAV encodes interleaved 16-bit samples into a WAV file.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", channels)
	}

	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV reads a 16-bit PCM WAV stream and returns its interleaved samples,
// sample rate and channel count. Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) ([]int16, int, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, 0, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var (
		format    *wavFmt
		chunkHead [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunkHead[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, 0, fmt.Errorf("invalid WAV file: missing data chunk")
			}
			return nil, 0, 0, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunkHead[0:4])
		size := binary.LittleEndian.Uint32(chunkHead[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("invalid WAV file: fmt chunk too short (%d bytes)", size)
			}
			format = &wavFmt{}
			if err := binary.Read(r, binary.LittleEndian, format); err != nil {
				return nil, 0, 0, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if err := skip(r, int64(size)-16+int64(size%2)); err != nil {
				return nil, 0, 0, err
			}

		case "data":
			if format == nil {
				return nil, 0, 0, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			if err := checkFormat(format); err != nil {
				return nil, 0, 0, err
			}
			samples, err := readSamples(r, size)
			if err != nil {
				return nil, 0, 0, err
			}
			return samples, int(format.SampleRate), int(format.NumChannels), nil

		default:
			if err := skip(r, int64(size)+int64(size%2)); err != nil {
				return nil, 0, 0, err
			}
		}
	}
}

func checkFormat(f *wavFmt) error {
	if f.AudioFormat != 1 {
		return fmt.Errorf("unsupported audio format: %d (only PCM is supported)", f.AudioFormat)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", f.BitsPerSample)
	}
	if f.NumChannels != 1 && f.NumChannels != 2 {
		return fmt.Errorf("unsupported channel count: %d (only mono and stereo are supported)", f.NumChannels)
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("invalid sample rate: 0")
	}
	return nil
}

// readSamples reads up to size bytes of samples. Writers that stream WAV data
// often leave the data size unset or too large, so a short read is accepted.
func readSamples(r io.Reader, size uint32) ([]int16, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("no audio data found")
	}
	return BytesToSamples(data), nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("invalid WAV file: truncated chunk: %w", err)
	}
	return nil
}
