package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/queryloom/internal/complexity"
	"github.com/roach88/queryloom/internal/schema"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Schema string // optional
}

// AnalyzeResult holds complexity metrics and suggestions.
type AnalyzeResult struct {
	Score       int              `json:"score"`
	Level       complexity.Level `json:"level"`
	Factors     map[string]any   `json:"factors"`
	Warnings    []string         `json:"warnings,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <ir-file>",
		Short: "Estimate query complexity from IR structure",
		Long: `Estimate query complexity from IR structure.

Scores table count, aggregation, grouping, CTEs, and predicate shape,
then reports a complexity level with performance warnings and
optimization suggestions. The analysis is purely structural; no
database is consulted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file or SQLite database")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, irPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	q, err := LoadIR(irPath)
	if err != nil {
		return reportExitError(formatter, ErrCodeBadIR, err)
	}

	var s *schema.Schema
	if opts.Schema != "" {
		s, err = LoadSchema(cmd.Context(), opts.Schema)
		if err != nil {
			return reportExitError(formatter, ErrCodeBadSchema, err)
		}
	}

	metrics := complexity.Analyze(q, s)
	suggestions := complexity.SuggestOptimizations(metrics)

	result := AnalyzeResult{
		Score:       metrics.Score,
		Level:       metrics.Level,
		Factors:     metrics.Factors,
		Warnings:    metrics.Warnings,
		Suggestions: suggestions,
	}
	return formatter.Success(renderAnalysis(result), result)
}

func renderAnalysis(r AnalyzeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Complexity: %s (score %d)\n", r.Level, r.Score)

	keys := make([]string, 0, len(r.Factors))
	for k := range r.Factors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, r.Factors[k])
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	for _, s := range r.Suggestions {
		fmt.Fprintf(&b, "Suggestion: %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}
