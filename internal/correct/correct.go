// Package correct runs static checks over compiled SQL and its IR.
//
// Checks are independent and advisory. Errors are diagnostics for the
// response; corrections list fixes that were applied to the SQL. The
// only correction recorded today is the ORDER BY suggestion, which is
// advisory and leaves the SQL unchanged.
package correct

import (
	"fmt"
	"strings"

	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/schema"
)

// CheckAndCorrect inspects sql and the IR it was compiled from, and
// returns the possibly-rewritten SQL plus diagnostics and applied
// corrections.
func CheckAndCorrect(sql string, q *ir.Query, s *schema.Schema) (string, []string, []string) {
	var errors []string
	var corrections []string
	corrected := sql

	if len(q.Joins) > 0 && hasAmbiguousColumns(sql, q, s) {
		errors = append(errors, "Potential ambiguous column references in multi-table query")
		if prefixed := addTablePrefixes(sql, q, s); prefixed != sql {
			corrected = prefixed
			corrections = append(corrections, "Added table prefixes to disambiguate columns")
		}
	}

	if len(q.GroupBy) > 0 {
		if missing := missingGroupByColumns(q); len(missing) > 0 {
			errors = append(errors, fmt.Sprintf(
				"Non-aggregated columns in SELECT should be in GROUP BY: %s",
				strings.Join(missing, ", ")))
		}
	}

	if hasAggregate(q.Select) {
		errors = append(errors, aggregationErrors(q)...)
	}

	if q.Limit != nil && len(q.OrderBy) == 0 {
		errors = append(errors, "LIMIT without ORDER BY may produce non-deterministic results")
		corrections = append(corrections, "Consider adding ORDER BY clause for consistent results")
	}

	if cartesianRisk(q.Joins) {
		errors = append(errors, "Potential cartesian product; verify JOIN conditions")
	}

	return corrected, errors, corrections
}

// hasAmbiguousColumns reports whether a column name shared by two or
// more of the query's tables appears unqualified in the SQL text.
func hasAmbiguousColumns(sql string, q *ir.Query, s *schema.Schema) bool {
	counts := map[string]int{}
	for _, table := range q.Tables() {
		for _, col := range s.ColumnNames(table) {
			counts[strings.ToLower(col)]++
		}
	}

	lower := strings.ToLower(sql)
	for col, n := range counts {
		if n < 2 {
			continue
		}
		if strings.Contains(lower, " "+col+" ") || strings.Contains(lower, " "+col+",") {
			return true
		}
	}
	return false
}

// addTablePrefixes would qualify ambiguous columns with their table.
// TODO: implement column qualification against the compiled text; until
// then the ambiguity is reported but the SQL is returned unchanged.
func addTablePrefixes(sql string, q *ir.Query, s *schema.Schema) string {
	return sql
}

// missingGroupByColumns returns SELECT column references that are not
// aggregated and not listed in GROUP BY.
func missingGroupByColumns(q *ir.Query) []string {
	groupBy := make(map[string]bool, len(q.GroupBy))
	for _, col := range q.GroupBy {
		groupBy[col] = true
	}

	var missing []string
	for _, expr := range q.Select {
		col, ok := expr.(ir.Column)
		if !ok || col.Ref == "*" {
			continue
		}
		if !groupBy[col.Ref] {
			missing = append(missing, col.Ref)
		}
	}
	return missing
}

func hasAggregate(exprs []ir.Expr) bool {
	for _, expr := range exprs {
		if _, ok := expr.(ir.Aggregate); ok {
			return true
		}
	}
	return false
}

// aggregationErrors checks aggregate usage: mixing aggregated and plain
// columns without GROUP BY, and nested aggregate calls.
func aggregationErrors(q *ir.Query) []string {
	var errors []string

	hasPlain := false
	for _, expr := range q.Select {
		if _, ok := expr.(ir.Aggregate); !ok {
			hasPlain = true
			break
		}
	}
	if hasPlain && len(q.GroupBy) == 0 {
		errors = append(errors, "Mixing aggregated and non-aggregated columns without GROUP BY")
	}

	for _, expr := range q.Select {
		agg, ok := expr.(ir.Aggregate)
		if !ok {
			continue
		}
		if containsAggregate(agg.Args) {
			errors = append(errors, fmt.Sprintf(
				"Nested aggregation detected in: %s", describeAggregate(agg)))
		}
	}
	return errors
}

func containsAggregate(args []ir.Expr) bool {
	for _, arg := range args {
		switch a := arg.(type) {
		case ir.Aggregate:
			return true
		case ir.Func:
			if containsAggregate(a.Args) {
				return true
			}
		}
	}
	return false
}

// describeAggregate renders an aggregate call for diagnostics.
func describeAggregate(agg ir.Aggregate) string {
	args := make([]string, len(agg.Args))
	for i, arg := range agg.Args {
		switch a := arg.(type) {
		case ir.Column:
			args[i] = a.Ref
		case ir.Literal:
			args[i] = ir.RenderScalar(a.Value)
		case ir.Aggregate:
			args[i] = describeAggregate(a)
		case ir.Func:
			args[i] = describeAggregate(ir.Aggregate{Name: a.Name, Args: a.Args})
		default:
			args[i] = "..."
		}
	}
	return fmt.Sprintf("%s(%s)", agg.Name, strings.Join(args, ", "))
}

// cartesianRisk reports a join with no ON predicates. CROSS joins are
// exempt: an empty ON list is their legitimate shape.
func cartesianRisk(joins []ir.Join) bool {
	for _, join := range joins {
		if join.Kind == ir.JoinCross {
			continue
		}
		if len(join.On) == 0 {
			return true
		}
	}
	return false
}
