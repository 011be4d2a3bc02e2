package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/silencesense/internal/audio"
)

func writeFixture(t *testing.T) string {
	t.Helper()

	// 20 silent 30 ms frames followed by 10 loud ones at 16 kHz.
	samples := make([]int16, 30*480)
	for i := 20 * 480; i < len(samples); i++ {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	data, err := audio.EncodeWAV(samples, 16000, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunText(t *testing.T) {
	path := writeFixture(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-classifier", "energy", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), path+": 1 silences, 0.33s of 0.90s")
	assert.Contains(t, stdout.String(), "  0:00 - 0:00  0.33s")
}

func TestRunJSONWithFailure(t *testing.T) {
	path := writeFixture(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-json", "-classifier", "energy", "-padding", "600", path, "missing.mp3"}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var reports []fileReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &reports))
	require.Len(t, reports, 2)

	require.NotNil(t, reports[0].Analysis)
	assert.Equal(t, 570, reports[0].Analysis.Silences[0].StartMs)
	assert.Equal(t, 600, reports[0].Analysis.Params.PaddingDurationMs)
	assert.NotEmpty(t, reports[1].Error)
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-frame", "25", "x.wav"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-nosuchflag"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-classifier", "neural", "x.wav"}, &stdout, &stderr))
}
