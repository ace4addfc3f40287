package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/clarionscope/internal/clarion"
	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

// scanPaths analyses every file under each path. Unreadable files are
// reported on stderr and returned so callers can decide the exit status.
func (a *app) scanPaths(ctx context.Context, stderr io.Writer, paths []string) ([]*workspace.Analysis, []workspace.FileError, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	svc := a.newService()
	defer svc.Close()

	var (
		analyses []*workspace.Analysis
		failures []workspace.FileError
	)
	for _, p := range paths {
		report, err := svc.Scan(ctx, p)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		analyses = append(analyses, report.Analyses...)
		failures = append(failures, report.Failures...)
	}
	for _, f := range failures {
		fmt.Fprintf(stderr, "%s: %v\n", f.Path, f.Err)
	}
	stats := svc.CacheStats()
	log.Debug(log.CatWorkspace, "scan complete", "files", len(analyses), "failures", len(failures), "cache_hits", stats.Hits)
	return analyses, failures, nil
}

func newOutlineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outline [path...]",
		Short: "Print the symbol outline of Clarion files",
		Long: `Print procedures, routines, classes, data structures and windows as an
indented tree with 1-based line ranges. Directories are scanned recursively.

Examples:
  clarionscope outline main.clw
  clarionscope outline src/ --format json | jq '.[].symbols[].name'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			analyses, _, err := a.scanPaths(cmd.Context(), cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			f := a.formatter(cmd.OutOrStdout())

			dtos := make([]presentation.OutlineDTO, len(analyses))
			for i, an := range analyses {
				dtos[i] = presentation.OutlineDTO{Path: an.Path, Symbols: an.Symbols}
			}
			if a.json() {
				return f.JSON(dtos)
			}
			for _, d := range dtos {
				if err := f.Outline(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newFoldCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fold [path...]",
		Short: "Print folding ranges",
		Long: `Print the foldable line ranges of each structure and of runs of full-line
comments, 1-based.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			analyses, _, err := a.scanPaths(cmd.Context(), cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			f := a.formatter(cmd.OutOrStdout())

			dtos := make([]presentation.FoldingDTO, len(analyses))
			for i, an := range analyses {
				dtos[i] = presentation.FoldingDTO{Path: an.Path, Ranges: an.Folding}
			}
			if a.json() {
				return f.JSON(dtos)
			}
			for _, d := range dtos {
				if err := f.Folding(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path...]",
		Short: "Report unterminated and unexpected structures",
		Long: `Report structures that are never terminated and END or '.' terminators
that close nothing. Exits with status 1 when anything is reported or a
file cannot be read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			analyses, failures, err := a.scanPaths(cmd.Context(), cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			f := a.formatter(cmd.OutOrStdout())

			diags := []presentation.DiagnosticDTO{}
			for _, an := range analyses {
				diags = append(diags, presentation.FromDiagnostics(an.Path, an.Result.Diagnostics)...)
			}
			if a.json() {
				err = f.JSON(diags)
			} else {
				err = f.Diagnostics(diags)
			}
			if err != nil {
				return err
			}
			if len(diags) > 0 || len(failures) > 0 {
				return errDiagnostics
			}
			return nil
		},
	}
}

func newTokensCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Show classified lexemes",
		Long: `Print the source with every lexeme coloured by its classification, or
with --list one lexeme per line with its 1-based position and kind.

Use --no-color for plain text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			src := string(data)
			f := a.formatter(cmd.OutOrStdout())

			switch {
			case a.json():
				return f.JSON(presentation.FromLexemes(clarion.Parse(src).Lexemes))
			case list:
				return f.Tokens(presentation.FromLexemes(clarion.Classify(src)))
			default:
				out := clarion.Highlight(src)
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				_, err := io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "print one lexeme per line")
	return cmd
}
