package report

import (
	"fmt"

	"github.com/skypro1111/silencesense/internal/vad"
)

// Silence is one interval as returned to clients.
type Silence struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration float64 `json:"duration"`
	StartMs  int     `json:"start_ms"`
	EndMs    int     `json:"end_ms"`
}

// Summary is the formatted result for one audio stream.
type Summary struct {
	Silences             []Silence `json:"silences"`
	TotalSilenceDuration float64   `json:"total_silence_duration"`
}

// Build formats intervals in order and sums their durations.
func Build(intervals []vad.Interval) (Summary, error) {
	summary := Summary{Silences: make([]Silence, 0, len(intervals))}

	for i, iv := range intervals {
		start, err := FormatTime(iv.StartMs)
		if err != nil {
			return Summary{}, fmt.Errorf("interval %d start: %w", i, err)
		}
		end, err := FormatTime(iv.EndMs)
		if err != nil {
			return Summary{}, fmt.Errorf("interval %d end: %w", i, err)
		}

		summary.Silences = append(summary.Silences, Silence{
			Start:    start,
			End:      end,
			Duration: iv.DurationS,
			StartMs:  iv.StartMs,
			EndMs:    iv.EndMs,
		})
		summary.TotalSilenceDuration += iv.DurationS
	}

	return summary, nil
}

// Longest returns the longest silence, or false when there is none.
func (s Summary) Longest() (Silence, bool) {
	if len(s.Silences) == 0 {
		return Silence{}, false
	}
	longest := s.Silences[0]
	for _, sil := range s.Silences[1:] {
		if sil.Duration > longest.Duration {
			longest = sil
		}
	}
	return longest, true
}
