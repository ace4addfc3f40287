package workspace

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/tracing"
)

// FileError records a file that could not be analysed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Report is the outcome of a scan.
type Report struct {
	Root     string
	Analyses []*Analysis
	Failures []FileError
}

// Diagnostics counts diagnostics across all analyses.
func (r Report) Diagnostics() int {
	n := 0
	for _, a := range r.Analyses {
		n += len(a.Result.Diagnostics)
	}
	return n
}

// Scan analyses every matching file under root with a bounded worker pool.
// Unreadable files are reported in Failures; cancellation stops the scan.
func (s *Service) Scan(ctx context.Context, root string) (Report, error) {
	files, err := Discover(root, s.opts.Filter)
	if err != nil {
		return Report{}, err
	}
	return s.ScanFiles(ctx, root, files)
}

// ScanFiles analyses the given files with a bounded worker pool.
func (s *Service) ScanFiles(ctx context.Context, root string, files []string) (Report, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanScan,
		attribute.String(tracing.AttrDocumentPath, root),
		attribute.Int(tracing.AttrScanFiles, len(files)),
	)

	var (
		mu       sync.Mutex
		failures []FileError
	)

	p := pool.NewWithResults[*Analysis]().WithContext(ctx).WithMaxGoroutines(s.opts.Workers)
	for _, path := range files {
		p.Go(func(ctx context.Context) (*Analysis, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, err := s.AnalyzeFile(ctx, path)
			switch {
			case err == nil:
				return a, nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil, err
			case errors.Is(err, ErrSuperseded):
				// A newer version is being analysed by someone else.
				return nil, nil
			default:
				mu.Lock()
				failures = append(failures, FileError{Path: path, Err: err})
				mu.Unlock()
				return nil, nil
			}
		})
	}

	results, err := p.Wait()
	analyses := make([]*Analysis, 0, len(results))
	for _, a := range results {
		if a != nil {
			analyses = append(analyses, a)
		}
	}
	sortByPath(analyses)
	slices.SortFunc(failures, func(a, b FileError) int { return strings.Compare(a.Path, b.Path) })
	report := Report{Root: root, Analyses: analyses, Failures: failures}

	if cerr := ctx.Err(); cerr != nil {
		tracing.End(span, cerr)
		return report, cerr
	}
	if err != nil {
		tracing.End(span, err)
		return report, err
	}

	log.Info(log.CatWorkspace, "scan complete", "root", root, "files", len(analyses),
		"failures", len(failures), "diagnostics", report.Diagnostics())
	tracing.End(span, nil)
	return report, nil
}
