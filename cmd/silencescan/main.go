// Command silencescan reports silent intervals in local MP3 and WAV files.
//
//	silencescan [-config file] [-frame ms] [-padding ms] [-mode n] [-classifier name] [-json] [-concurrency n] file...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skypro1111/silencesense/internal/analyzer"
	"github.com/skypro1111/silencesense/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type fileReport struct {
	Path     string             `json:"path"`
	Analysis *analyzer.Analysis `json:"analysis,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("silencescan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to configuration file (defaults when empty)")
	frame := fs.Int("frame", 0, "Frame duration in ms (10, 20 or 30); 0 uses the configured value")
	padding := fs.Int("padding", 0, "Padding duration in ms; 0 uses the configured value")
	mode := fs.Int("mode", -1, "Classifier aggressiveness 0-3; -1 uses the configured value")
	classifier := fs.String("classifier", "", "Frame classifier (webrtc or energy); empty uses the configured value")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	concurrency := fs.Int("concurrency", 0, "Files analyzed in parallel; 0 uses the configured value")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: silencescan [flags] file...")
		fs.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	params := analyzer.Params{
		FrameDurationMs:   cfg.VAD.FrameDurationMs,
		PaddingDurationMs: cfg.VAD.PaddingDurationMs,
		Mode:              cfg.VAD.Mode,
	}
	if *frame > 0 {
		params.FrameDurationMs = *frame
	}
	if *padding > 0 {
		params.PaddingDurationMs = *padding
	}
	if *mode >= 0 {
		params.Mode = *mode
	}
	maxConcurrent := cfg.Analysis.MaxConcurrent
	if *concurrency > 0 {
		maxConcurrent = *concurrency
	}

	name := cfg.VAD.Classifier
	if *classifier != "" {
		name = *classifier
	}
	classifiers, err := analyzer.ClassifierByName(name)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid parameters: %v\n", err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	a, err := analyzer.New(analyzer.Options{
		Params:           params,
		TargetSampleRate: cfg.Audio.SampleRate,
		ScratchDir:       cfg.Audio.ScratchDir,
		MaxConcurrent:    maxConcurrent,
	}, analyzer.Dependencies{Logger: logger, Classifiers: classifiers})
	if err != nil {
		fmt.Fprintf(stderr, "Invalid parameters: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := a.AnalyzeFiles(ctx, fs.Args(), params)
	if err != nil {
		fmt.Fprintf(stderr, "Interrupted: %v\n", err)
	}

	failed := 0
	reports := make([]fileReport, 0, len(results))
	for _, r := range results {
		rep := fileReport{Path: r.Path, Analysis: r.Analysis}
		if r.Err != nil {
			rep.Error = r.Err.Error()
			failed++
		}
		reports = append(reports, rep)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			fmt.Fprintf(stderr, "Failed to encode results: %v\n", err)
			return 1
		}
	} else {
		printText(stdout, reports)
	}

	if failed > 0 || err != nil {
		return 1
	}
	return 0
}

func printText(w io.Writer, reports []fileReport) {
	for _, rep := range reports {
		if rep.Error != "" {
			fmt.Fprintf(w, "%s: error: %s\n", rep.Path, rep.Error)
			continue
		}
		a := rep.Analysis
		fmt.Fprintf(w, "%s: %d silences, %.2fs of %.2fs\n",
			rep.Path, len(a.Silences), a.TotalSilenceDuration, a.AudioDuration)
		for _, s := range a.Silences {
			fmt.Fprintf(w, "  %s - %s  %.2fs\n", s.Start, s.End, s.Duration)
		}
	}
}
