package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/silencesense/internal/vad"
)

func TestBuild(t *testing.T) {
	summary, err := Build([]vad.Interval{
		{StartMs: 270, EndMs: 600, DurationS: 0.33},
		{StartMs: 64000, EndMs: 67500, DurationS: 3.5},
	})
	require.NoError(t, err)

	require.Len(t, summary.Silences, 2)
	assert.Equal(t, Silence{Start: "0:00", End: "0:00", Duration: 0.33, StartMs: 270, EndMs: 600}, summary.Silences[0])
	assert.Equal(t, "1:04", summary.Silences[1].Start)
	assert.Equal(t, "1:07", summary.Silences[1].End)
	assert.InDelta(t, 3.83, summary.TotalSilenceDuration, 1e-9)

	longest, ok := summary.Longest()
	require.True(t, ok)
	assert.Equal(t, 64000, longest.StartMs)
}

func TestBuildEmpty(t *testing.T) {
	summary, err := Build(nil)
	require.NoError(t, err)

	assert.NotNil(t, summary.Silences)
	assert.Empty(t, summary.Silences)
	assert.Zero(t, summary.TotalSilenceDuration)

	_, ok := summary.Longest()
	assert.False(t, ok)
}

func TestBuildRejectsNegativeOffsets(t *testing.T) {
	_, err := Build([]vad.Interval{{StartMs: -30, EndMs: 0, DurationS: 0.03}})
	assert.ErrorIs(t, err, ErrNegativeOffset)
}
