package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/queryloom/internal/compile"
	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/validate"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema string // optional schema to validate against before compiling
	Output string // output file path
}

// CompileResult holds the compiled SQL and its parameters.
type CompileResult struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <ir-file>",
		Short: "Compile a query IR document to SQL",
		Long: `Compile a query IR document to parameterized SQL.

The IR is normalized (key variants, string shorthands) and decoded
before compilation. With --schema, the query is validated against the
schema first and compilation is skipped if findings are reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file or SQLite database to validate against")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, irPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	q, err := LoadIR(irPath)
	if err != nil {
		return reportExitError(formatter, ErrCodeBadIR, err)
	}
	formatter.VerboseLog("Decoded IR from %s (confidence %.2f)", irPath, q.Confidence)

	if opts.Schema != "" {
		s, err := LoadSchema(cmd.Context(), opts.Schema)
		if err != nil {
			return reportExitError(formatter, ErrCodeBadSchema, err)
		}
		if findings := validate.Validate(q, s); len(findings) > 0 {
			if err := formatter.Error(ErrCodeValidation, "query does not match schema", findings); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d validation finding(s)", len(findings)))
		}
		formatter.VerboseLog("Validated against %s", opts.Schema)
	}

	sql, params, err := compile.Compile(q)
	if err != nil {
		if outErr := formatter.Error(ErrCodeCompile, err.Error(), nil); outErr != nil {
			return outErr
		}
		return &ExitError{Code: ExitFailure, Message: "compilation failed", Err: err}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(sql+"\n"), 0o644); err != nil {
			writeErr := &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("writing %s", opts.Output), Err: err}
			return reportExitError(formatter, ErrCodeWrite, writeErr)
		}
		formatter.VerboseLog("Wrote SQL to %s", opts.Output)
	}

	return formatter.Success(sql, CompileResult{SQL: sql, Params: plainParams(params)})
}

// plainParams converts scalar parameters to plain Go values for JSON
// encoding.
func plainParams(params map[string]ir.Scalar) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = ir.GoValue(v)
	}
	return out
}

// reportExitError prints err through the formatter and returns it
// unchanged so the caller's exit code survives.
func reportExitError(formatter *OutputFormatter, code string, err error) error {
	if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return err
}
