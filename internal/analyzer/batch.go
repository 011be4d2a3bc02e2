package analyzer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome for one path of a batch.
type FileResult struct {
	Path     string
	Analysis *Analysis
	Err      error
}

// AnalyzeFiles analyzes paths concurrently, at most MaxConcurrent at a time.
// Results are in input order. A failing file does not stop the others; the
// returned error is non-nil only when ctx ends first.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, p Params) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.MaxConcurrent)

	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			analysis, err := a.AnalyzeFile(gctx, path, p)
			results[i].Analysis = analysis
			results[i].Err = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
