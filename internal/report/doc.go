// Package report formats silence intervals into the response payload:
// clock-style start/end strings, per-interval durations and their total.
package report
