// Package analyzer turns uploaded or local audio files into silence reports.
//
// An Analyzer decodes the file to mono PCM at a fixed sample rate, splits it
// into frames, runs the padded silence collector over them and formats the
// resulting intervals. Identical content analyzed with identical parameters
// is answered from the result store when one is configured. The number of
// concurrent analyses is bounded; callers waiting for a slot give up with
// ErrBusy when their context ends.
package analyzer
