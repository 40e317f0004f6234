package pipeline

import (
	"strings"

	"github.com/roach88/queryloom/internal/schema"
)

// BuildPrompt assembles the IR-generation prompt from the schema text,
// retrieved examples, conversation context, and the user's question.
// The JSON structure block pins the exact field names so the sanitizer
// has less drift to repair.
func BuildPrompt(s *schema.Schema, userQuery, examples, context string, maxColumns int) string {
	parts := []string{
		"You are an expert NL2SQL assistant. Convert the user's question into a JSON Intermediate Representation (IR) for SQL.",
		"",
		"Return ONLY valid JSON. Do not include explanations.",
		"",
		"Schema:",
		schema.PromptText(s, maxColumns),
	}

	if examples != "" {
		parts = append(parts,
			"",
			"Similar past queries (for reference):",
			examples,
		)
	}

	if context != "" {
		parts = append(parts, "", context)
	}

	parts = append(parts,
		"",
		"User Question:",
		userQuery,
		"",
		"CRITICAL: Use EXACT field names as specified below:",
		"",
		"JSON Structure:",
		"{",
		`  "select": [{"type": "column", "value": "table.column", "alias": "..."}],`,
		`  "from_table": "table_name",`,
		`  "joins": [{"type": "INNER", "table": "table_name", "on": [{"left": {"type": "column", "value": "..."}, "operator": "=", "right": {"type": "column", "value": "..."}}]}],`,
		`  "where": [{"left": {...}, "operator": "=", "right": {...}}],`,
		`  "group_by": ["column1", "column2"],`,
		`  "order_by": [{"column": "column_name", "direction": "ASC"}],`,
		`  "limit": 10,`,
		`  "ctes": [{"name": "cte_name", "query": {...}}]`,
		"}",
		"",
		"Rules:",
		"- select items MUST have 'type' and 'value' fields",
		"- joins MUST have 'type', 'table', and 'on' fields (not 'join_type', 'target_table', or 'condition')",
		"- order_by MUST have 'column' and 'direction' fields (not 'field' or 'col')",
		"- ctes MUST have 'name' and 'query' fields (not 'cte_name' or 'cte_definition')",
		"- direction must be 'ASC' or 'DESC' (uppercase)",
		"- type for joins must be one of: INNER, LEFT, RIGHT, FULL, CROSS",
		"- If ORDER BY uses an aggregate like COUNT(*), that aggregate MUST also appear in SELECT",
		"- For aggregates in SELECT, use type='aggregate', function='COUNT', args=[...], not type='column'",
		"- When grouping, include all non-aggregated SELECT columns in group_by",
	)

	return strings.Join(parts, "\n")
}
