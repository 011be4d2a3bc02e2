package vad

import (
	"fmt"
	"sync"

	"github.com/maxhawkins/go-webrtcvad"
)

// WebRTCClassifier wraps the WebRTC voice activity detector. It accepts
// 8, 16, 32 and 48 kHz audio in 10, 20 or 30 ms frames. The detector keeps
// state between frames, so calls are serialized and one classifier should
// serve one stream.
type WebRTCClassifier struct {
	mu   sync.Mutex
	mode int
	vad  *webrtcvad.VAD
}

// NewWebRTCClassifier creates a detector with the given aggressiveness mode.
func NewWebRTCClassifier(mode int) (*WebRTCClassifier, error) {
	if mode < MinMode || mode > MaxMode {
		return nil, configErrorf("mode", "must be between %d and %d, got %d", MinMode, MaxMode, mode)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set WebRTC VAD mode: %w", err)
	}

	return &WebRTCClassifier{mode: mode, vad: v}, nil
}

// Mode returns the aggressiveness mode.
func (c *WebRTCClassifier) Mode() int {
	return c.mode
}

// IsSpeech implements Classifier.
func (c *WebRTCClassifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(frame, sampleRate); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.vad.Process(sampleRate, frame)
	if err != nil {
		return false, fmt.Errorf("WebRTC VAD process error: %w", err)
	}
	return active, nil
}
