package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/fetcher"
	"github.com/tre1322/best-of-analyzer/internal/report"
	"github.com/tre1322/best-of-analyzer/internal/store"
)

var (
	analyzeFile     string
	analyzeCategory string
	analyzeOutput   string
	analyzeFormat   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one category of a vote spreadsheet",
	Example: `  best-of-analyzer analyze --file votes.xlsx --category "Best Pizza"
  best-of-analyzer analyze --file votes.csv --category "best coffee" --format json --output coffee.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		e, err := initAnalysis(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := runAnalyze(ctx, e.Analyzer, analyzeFile, analyzeCategory)
		if err != nil {
			return err
		}

		out := analyzeOutput
		if out == "" {
			out = "final_results." + analyzeFormat
		}
		if err := writeResult(out, analyzeFormat, res); err != nil {
			return err
		}

		if rec := e.runRecorder(cfg); rec != nil {
			if err := rec.SaveRun(ctx, store.SummaryFromResult(res)); err != nil {
				zap.L().Warn("record run failed", zap.String("run_id", res.RunID), zap.Error(err))
			}
		}

		formatSummary(os.Stdout, res)
		fmt.Fprintf(os.Stdout, "\nResults written to %s\n", out)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "vote spreadsheet (.xlsx or .csv, required)")
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "category column to analyze (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "output path (default final_results.<format>)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "xlsx", "output format: xlsx or json")
	_ = analyzeCmd.MarkFlagRequired("file")
	_ = analyzeCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(analyzeCmd)
}

// runAnalyze reads path and analyzes category.
func runAnalyze(ctx context.Context, a *analysis.Analyzer, path, category string) (*analysis.Result, error) {
	tbl, err := readTable(ctx, path)
	if err != nil {
		return nil, err
	}
	res, err := a.Run(ctx, tbl, category)
	if err != nil {
		return nil, eris.Wrapf(err, "analyze %s", filepath.Base(path))
	}
	return res, nil
}

func readTable(ctx context.Context, path string) (*ballot.Table, error) {
	rows, err := fetcher.ReadFile(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	tbl, err := ballot.NewTable(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return tbl, nil
}

func writeResult(path, format string, res *analysis.Result) error {
	switch strings.ToLower(format) {
	case "xlsx":
		return report.SaveWorkbook(path, res)
	case "json":
		return report.SaveJSON(path, res)
	default:
		return eris.Errorf("unsupported output format %q (want xlsx or json)", format)
	}
}

// formatSummary prints the ranking and exclusion counts.
func formatSummary(out io.Writer, res *analysis.Result) {
	_, _ = fmt.Fprintf(out, "Category: %s\n", res.Category)
	_, _ = fmt.Fprintf(out, "Rows: %d  Votes: %d  Counted: %d  Excluded: %d\n\n",
		res.Rows, res.Votes, res.Tally.Counted, res.Tally.Excluded)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tBUSINESS\tVOTES")
	_, _ = fmt.Fprintln(w, "----\t--------\t-----")
	for _, e := range res.Summary {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\n", e.Rank, e.Name, e.Votes)
	}
	_ = w.Flush()
}
