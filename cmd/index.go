package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/clarionscope/internal/index"
	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/tracing"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and search the persistent symbol index",
	}
	cmd.AddCommand(newIndexBuildCmd(a), newIndexSearchCmd(a))
	return cmd
}

func newIndexBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build [dir]",
		Short: "Index symbols and diagnostics of a source tree",
		Long: `Analyse every Clarion file under dir and store its outline and diagnostics
in the index database (index.path, default .clarionscope/index.db under dir).

Files whose content is unchanged since the previous build are not
re-analysed. Files that no longer exist are dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", root, err)
			}

			db, err := index.Open(a.cfg.IndexPath(root))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			svc := a.newService()
			defer svc.Close()

			summary, err := buildIndex(cmd.Context(), a.tracer, svc, index.NewStore(db), root)
			if err != nil {
				return err
			}
			f := a.formatter(cmd.OutOrStdout())
			if a.json() {
				return f.JSON(summary)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d analysed, %d unchanged, %d removed), %d diagnostics\n",
				summary.Files, summary.Analysed, summary.Unchanged, summary.Removed, summary.Diagnostics)
			return err
		},
	}
}

// indexSummary reports one index build.
type indexSummary struct {
	RunID       string   `json:"run_id"`
	Root        string   `json:"root"`
	Files       int      `json:"files"`
	Analysed    int      `json:"analysed"`
	Unchanged   int      `json:"unchanged"`
	Removed     int      `json:"removed"`
	Failed      []string `json:"failed,omitempty"`
	Diagnostics int      `json:"diagnostics"`
}

// buildIndex brings the index for root up to date with the files on disk.
func buildIndex(ctx context.Context, tracer *tracing.Provider, svc *workspace.Service, store *index.Store, root string) (summary indexSummary, err error) {
	run, err := store.BeginRun(ctx, root)
	if err != nil {
		return summary, err
	}
	ctx, span := tracer.Start(ctx, tracing.SpanIndex,
		attribute.String(tracing.AttrDocumentPath, root),
		attribute.String(tracing.AttrScanRunID, run.ID),
	)
	defer func() { tracing.End(span, err) }()

	summary = indexSummary{RunID: run.ID, Root: root}

	files, err := workspace.Discover(root, svc.Filter())
	if err != nil {
		return summary, err
	}

	var changed []string
	for _, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the scanned tree
		if err != nil {
			// Left to the scan so the failure is reported once.
			changed = append(changed, path)
			continue
		}
		same, err := store.Unchanged(ctx, path, workspace.Hash(string(data)))
		if err != nil {
			return summary, err
		}
		if !same {
			changed = append(changed, path)
			continue
		}
		if err := store.Touch(ctx, run.ID, path); err != nil {
			return summary, err
		}
		diags, err := store.Diagnostics(ctx, path)
		if err != nil {
			return summary, err
		}
		summary.Unchanged++
		summary.Diagnostics += len(diags)
	}

	report, err := svc.ScanFiles(ctx, root, changed)
	if err != nil {
		return summary, err
	}
	for _, an := range report.Analyses {
		_, err := store.PutFile(ctx, run.ID, index.FileInput{
			Path:        an.Path,
			Hash:        an.Hash,
			Lines:       an.Lines,
			Symbols:     an.Symbols,
			Diagnostics: an.Result.Diagnostics,
		})
		if err != nil {
			return summary, err
		}
		summary.Analysed++
		summary.Diagnostics += len(an.Result.Diagnostics)
	}
	for _, f := range report.Failures {
		summary.Failed = append(summary.Failed, f.Path)
	}

	removed, err := store.Prune(ctx, run.ID, root)
	if err != nil {
		return summary, err
	}
	summary.Removed = len(removed)
	summary.Files = summary.Analysed + summary.Unchanged

	if err := store.FinishRun(ctx, run.ID, summary.Files, summary.Diagnostics); err != nil {
		return summary, err
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrScanFiles, summary.Files),
		attribute.Int(tracing.AttrDiagnosticCount, summary.Diagnostics),
	)
	log.Info(log.CatIndex, "index built", "run", run.ID, "files", summary.Files,
		"analysed", summary.Analysed, "removed", summary.Removed)
	return summary, nil
}

func newIndexSearchCmd(a *app) *cobra.Command {
	var (
		root     string
		category string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Find symbols in the index",
		Long: `Find indexed symbols whose name contains <name>, ignoring case. '*'
matches any run of characters.

Examples:
  clarionscope index search Init
  clarionscope index search 'Browse*Window' --category procedure
  clarionscope index search Cus --limit 10 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", root, err)
			}
			path := a.cfg.IndexPath(abs)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no index at %s: run 'clarionscope index build' first", path)
			}
			db, err := index.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			hits, err := index.NewStore(db).Search(cmd.Context(), index.Query{Name: args[0], Category: category, Limit: limit})
			if err != nil {
				return err
			}
			return writeHits(a.formatter(cmd.OutOrStdout()), a.json(), hits)
		},
	}
	cmd.Flags().StringVarP(&root, "root", "r", ".", "directory the index was built for")
	cmd.Flags().StringVar(&category, "category", "", "only symbols of this category (procedure, method, routine, class, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (0 = no limit)")
	return cmd
}

func writeHits(f *presentation.Formatter, json bool, hits []index.SymbolRecord) error {
	dtos := make([]presentation.SymbolHitDTO, len(hits))
	for i, h := range hits {
		dtos[i] = presentation.SymbolHitDTO{
			Path:     h.Path,
			Name:     h.Name,
			Category: h.Category,
			Kind:     h.Kind,
			Line:     h.Line + 1,
			EndLine:  h.EndLine + 1,
		}
	}
	if json {
		return f.JSON(dtos)
	}
	return f.SymbolHits(dtos)
}
