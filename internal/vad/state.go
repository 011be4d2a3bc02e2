package vad

// Phase is the collector's trigger state.
type Phase uint8

const (
	// NotTriggered: speech, or silence not yet confirmed by a full padding window.
	NotTriggered Phase = iota
	// Triggered: inside a confirmed silence run.
	Triggered
)

func (p Phase) String() string {
	switch p {
	case NotTriggered:
		return "not_triggered"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// State is the collector state. SilenceStartMs is meaningful only while
// Phase is Triggered.
type State struct {
	Phase          Phase
	SilenceStartMs int
}

// Interval is a detected silence run.
type Interval struct {
	StartMs   int     `json:"start_ms"`
	EndMs     int     `json:"end_ms"`
	DurationS float64 `json:"duration_s"`
}

// machine applies the hysteresis rules to one stream of classified frames.
// Entering silence needs a full window of non-speech frames; leaving it needs
// a single speech frame. The window is only fed while not triggered, so it
// still holds the frames that confirmed the previous silence when that
// silence ends, and the speech frame that ended it is not in it.
type machine struct {
	state           State
	window          *ring
	frameDurationMs int
}

func newMachine(numPaddingFrames, frameDurationMs int) *machine {
	return &machine{
		state:           State{Phase: NotTriggered},
		window:          newRing(numPaddingFrames),
		frameDurationMs: frameDurationMs,
	}
}

// step feeds the classified frame at index i. It reports a completed interval
// when the frame ends a silence run.
func (m *machine) step(i int, speech bool) (Interval, bool) {
	offset := i * m.frameDurationMs

	switch m.state.Phase {
	case NotTriggered:
		m.window.push(verdict{index: i, speech: speech})
		if m.window.full() && m.window.speechCount() == 0 {
			m.state = State{Phase: Triggered, SilenceStartMs: offset}
		}
		return Interval{}, false

	case Triggered:
		if !speech {
			return Interval{}, false
		}
		start := m.state.SilenceStartMs
		m.state = State{Phase: NotTriggered}
		return Interval{
			StartMs:   start,
			EndMs:     offset,
			DurationS: float64(offset-start) / 1000.0,
		}, true
	}

	return Interval{}, false
}
