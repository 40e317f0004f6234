package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/queryloom/internal/schema"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Fingerprint bool
	MaxColumns  int
}

// SchemaResult holds the extracted schema and its fingerprint.
type SchemaResult struct {
	Schema      *schema.Schema `json:"schema"`
	Fingerprint string         `json:"fingerprint"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <database-or-file>",
		Short: "Show a schema description",
		Long: `Show a schema description.

Accepts a serialized schema (.json, .yaml) or a SQLite database to
introspect. Text output is the same compact rendering used in
generation prompts; --fingerprint prints only the structural hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fingerprint, "fingerprint", false, "print only the schema fingerprint")
	cmd.Flags().IntVar(&opts.MaxColumns, "max-columns", 0, "max columns to show per table (0 = all)")

	return cmd
}

func runSchema(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := LoadSchema(cmd.Context(), path)
	if err != nil {
		return reportExitError(formatter, ErrCodeBadSchema, err)
	}
	formatter.VerboseLog("Loaded %d table(s) from %s", len(s.Tables), path)

	fp, err := schema.Fingerprint(s)
	if err != nil {
		return reportExitError(formatter, ErrCodeGeneric, err)
	}

	if opts.Fingerprint {
		return formatter.Success(fp, map[string]string{"fingerprint": fp})
	}

	text := schema.PromptText(s, opts.MaxColumns)
	return formatter.Success(text+"Fingerprint: "+fp, SchemaResult{Schema: s, Fingerprint: fp})
}
