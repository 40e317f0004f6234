package schema

import (
	"fmt"
	"sort"
	"strings"
)

// PromptText renders a compact schema description for generator prompts.
// Tables are listed alphabetically for deterministic output. Each table
// shows at most maxColumns columns (0 = unlimited); truncation is marked
// so the generator knows columns were omitted.
func PromptText(s *Schema, maxColumns int) string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		table := s.Tables[name]
		fmt.Fprintf(&b, "Table: %s\n", name)

		cols := table.Columns
		truncated := 0
		if maxColumns > 0 && len(cols) > maxColumns {
			truncated = len(cols) - maxColumns
			cols = cols[:maxColumns]
		}
		for _, c := range cols {
			var marks []string
			if c.PrimaryKey {
				marks = append(marks, "PRIMARY KEY")
			}
			if !c.Nullable {
				marks = append(marks, "NOT NULL")
			}
			suffix := ""
			if len(marks) > 0 {
				suffix = " (" + strings.Join(marks, ", ") + ")"
			}
			fmt.Fprintf(&b, "  - %s: %s%s\n", c.Name, c.Type, suffix)
		}
		if truncated > 0 {
			fmt.Fprintf(&b, "  ... %d more column(s)\n", truncated)
		}

		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "  FK: %s -> %s.%s\n",
				strings.Join(fk.ConstrainedColumns, ","),
				fk.ReferredTable,
				strings.Join(fk.ReferredColumns, ","))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
