package report

import (
	"errors"
	"fmt"
)

// ErrNegativeOffset is returned for offsets before the start of the stream.
var ErrNegativeOffset = errors.New("time offset must not be negative")

// FormatTime renders a millisecond offset as "M:SS". Minutes are not padded
// and fractional seconds are truncated.
func FormatTime(ms int) (string, error) {
	if ms < 0 {
		return "", fmt.Errorf("format %d ms: %w", ms, ErrNegativeOffset)
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60), nil
}
