// Package audio decodes uploaded audio into mono 16-bit PCM at a fixed rate.
// MP3 goes through go-mp3, WAV through the RIFF codec in wav.go; both are
// downmixed and linearly resampled before framing.
package audio
