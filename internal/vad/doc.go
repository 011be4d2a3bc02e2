// Package vad turns a PCM sample sequence into silence intervals.
// It frames the samples, classifies each frame through an injected Classifier,
// and smooths the verdicts with a padding window: a silence starts only once a
// full window of frames is non-speech and ends on the first speech frame.
package vad
