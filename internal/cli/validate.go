package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/queryloom/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Findings []string `json:"findings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <ir-file>",
		Short: "Validate a query IR document against a schema",
		Long: `Validate a query IR document against a schema description.

Checks every table and column reference, CTE scoping, and ORDER BY
expressions. All findings are reported at once; the command exits
non-zero when any finding exists.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file or SQLite database (required)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(opts *ValidateOptions, irPath string, cmd *cobra.Command) error {
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

	s, err := LoadSchema(cmd.Context(), opts.Schema)
	if err != nil {
		return reportExitError(formatter, ErrCodeBadSchema, err)
	}
	formatter.VerboseLog("Validating %s against %d table(s)", irPath, len(s.Tables))

	findings := validate.Validate(q, s)
	if len(findings) > 0 {
		if opts.Format == "json" {
			if err := formatter.Error(ErrCodeValidation, "query does not match schema", ValidationResult{Valid: false, Findings: findings}); err != nil {
				return err
			}
		} else {
			var b strings.Builder
			fmt.Fprintf(&b, "%d finding(s):\n", len(findings))
			for _, f := range findings {
				fmt.Fprintf(&b, "  - %s\n", f)
			}
			fmt.Fprint(formatter.Writer, b.String())
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation finding(s)", len(findings)))
	}

	return formatter.Success("Valid.", ValidationResult{Valid: true})
}
