// Package validate checks a query IR against a schema description.
//
// Validation is pure and total: it never fails, it only reports. Every
// finding is a plain string suitable for surfacing to the user as a
// "Please clarify: ..." explanation.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/schema"
)

// Validate walks every expression and predicate reachable from the query
// and returns all semantic errors found (empty slice = valid).
//
// Resolution rules:
//   - from_table and join tables must be schema tables or CTE names
//   - qualified column references are checked against the named table's
//     columns, except CTE references (their shape is not statically known)
//   - bare column references must resolve to exactly one visible table;
//     a name present in two or more tables is an ambiguity error even if
//     it would otherwise resolve (ambiguity wins over not-found)
//   - ORDER BY entries containing parentheses are matched against the
//     rendered SELECT aggregates and aliases instead of schema columns
//
// CTE bodies are validated recursively; each body sees the names of the
// CTEs defined before it, so a later CTE may reference an earlier one.
// Errors from a CTE body are prefixed with the CTE name.
func Validate(q *ir.Query, s *schema.Schema) []string {
	return validateWithCTEs(q, s, nil)
}

// validateWithCTEs validates q with extra virtual table names visible
// from an enclosing scope (earlier CTEs in the same WITH clause).
func validateWithCTEs(q *ir.Query, s *schema.Schema, outerCTEs []string) []string {
	v := &validator{schema: s}

	v.cteNames = make(map[string]bool, len(q.CTEs)+len(outerCTEs))
	for _, name := range outerCTEs {
		v.cteNames[name] = true
		v.available = append(v.available, name)
	}
	for _, cte := range q.CTEs {
		v.cteNames[cte.Name] = true
	}

	if q.FromTable != "" {
		v.available = append(v.available, q.FromTable)
		if q.FromAlias != "" {
			v.aliases = map[string]string{q.FromAlias: q.FromTable}
		}
	}
	for _, join := range q.Joins {
		v.available = append(v.available, join.Table)
		if join.Alias != "" {
			if v.aliases == nil {
				v.aliases = map[string]string{}
			}
			v.aliases[join.Alias] = join.Table
		}
	}
	for _, cte := range q.CTEs {
		v.available = append(v.available, cte.Name)
	}

	if q.FromTable != "" && !v.cteNames[q.FromTable] && !s.HasTable(q.FromTable) {
		v.errorf("Table '%s' does not exist", q.FromTable)
	}

	for _, expr := range q.Select {
		v.checkExpr(expr)
	}

	for _, join := range q.Joins {
		if !v.cteNames[join.Table] && !s.HasTable(join.Table) {
			v.errorf("JOIN table '%s' does not exist", join.Table)
		}
		for _, pred := range join.On {
			v.checkPredicate(pred)
		}
	}

	for _, pred := range q.Where {
		v.checkPredicate(pred)
	}
	for _, col := range q.GroupBy {
		v.checkColumnRef(col)
	}
	for _, pred := range q.Having {
		v.checkPredicate(pred)
	}

	for _, ob := range q.OrderBy {
		v.checkOrderBy(ob, q.Select)
	}

	// Each CTE body sees the CTEs declared before it.
	var defined []string
	defined = append(defined, outerCTEs...)
	for _, cte := range q.CTEs {
		for _, err := range validateWithCTEs(cte.Query, s, defined) {
			v.errorf("CTE '%s': %s", cte.Name, err)
		}
		defined = append(defined, cte.Name)
	}

	return dedupe(v.errors)
}

// dedupe drops repeated findings while keeping first-seen order. The
// same unknown table is typically reported by both the FROM check and
// the column references that name it.
func dedupe(errors []string) []string {
	if len(errors) < 2 {
		return errors
	}
	seen := make(map[string]bool, len(errors))
	out := errors[:0]
	for _, e := range errors {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// validator accumulates errors during traversal.
type validator struct {
	schema    *schema.Schema
	available []string          // from_table, join tables, CTE names
	aliases   map[string]string // alias -> table
	cteNames  map[string]bool
	errors    []string
}

func (v *validator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) checkExpr(e ir.Expr) {
	switch expr := e.(type) {
	case ir.Column:
		v.checkColumnRef(expr.Ref)
	case ir.Literal:
		// Nothing to resolve.
	case ir.Func:
		for _, arg := range expr.Args {
			v.checkExpr(arg)
		}
	case ir.Aggregate:
		for _, arg := range expr.Args {
			v.checkExpr(arg)
		}
	case ir.Window:
		for _, arg := range expr.Args {
			v.checkExpr(arg)
		}
		for _, col := range expr.PartitionBy {
			v.checkColumnRef(col)
		}
		for _, ob := range expr.OrderBy {
			v.checkColumnRef(ob.Column)
		}
	case ir.Case:
		for _, when := range expr.Whens {
			if when.Condition != nil {
				v.checkPredicate(*when.Condition)
			}
			if when.Result != nil {
				v.checkExpr(when.Result)
			}
		}
		if expr.Else != nil {
			v.checkExpr(expr.Else)
		}
	case ir.Subquery:
		if expr.Query != nil {
			v.errors = append(v.errors, Validate(expr.Query, v.schema)...)
		}
	}
}

func (v *validator) checkPredicate(p ir.Predicate) {
	if p.Left != nil {
		v.checkExpr(p.Left)
	}
	if p.Right != nil {
		v.checkExpr(p.Right)
	}
}

func (v *validator) checkColumnRef(ref string) {
	if ref == "*" {
		return
	}
	if table, column, ok := strings.Cut(ref, "."); ok {
		v.checkQualifiedRef(table, column)
		return
	}

	// Bare reference: resolve against every visible schema table,
	// excluding CTEs (their columns are not statically known).
	var foundIn []string
	for _, t := range v.available {
		if v.cteNames[t] {
			continue
		}
		if v.schema.HasColumn(t, ref) {
			foundIn = append(foundIn, t)
		}
	}

	switch {
	case len(foundIn) > 1:
		sort.Strings(foundIn)
		v.errorf("Ambiguous column '%s' found in tables [%s]; qualify with table name",
			ref, strings.Join(foundIn, ", "))
	case len(foundIn) == 0 && len(v.cteNames) == 0:
		// With CTEs in scope the column may come from one of them,
		// so absence from schema tables is not an error.
		v.errorf("Column '%s' not found in any table", ref)
	}
}

func (v *validator) checkQualifiedRef(table, column string) {
	if resolved, ok := v.aliases[table]; ok {
		table = resolved
	}
	if !v.isAvailable(table) {
		v.errorf("Table '%s' not in query", table)
		return
	}
	if v.cteNames[table] {
		return // CTE columns are not in the schema
	}
	if !v.schema.HasTable(table) {
		v.errorf("Table '%s' does not exist", table)
		return
	}
	if column != "*" && !v.schema.HasColumn(table, column) {
		v.errorf("Column '%s' not in table '%s'", column, table)
	}
}

func (v *validator) isAvailable(table string) bool {
	for _, t := range v.available {
		if t == table {
			return true
		}
	}
	return false
}

// checkOrderBy validates one ORDER BY entry. Entries containing a
// parenthesized expression (aggregates, functions) are not schema
// columns; they must textually match a SELECT expression or alias.
func (v *validator) checkOrderBy(ob ir.OrderBy, selectList []ir.Expr) {
	target := strings.TrimSpace(ob.Column)

	if !strings.Contains(target, "(") {
		// A bare name that matches a SELECT alias is an alias
		// reference, not a column reference.
		for _, expr := range selectList {
			if alias := expr.ExprAlias(); alias != "" && alias == target {
				return
			}
		}
		v.checkColumnRef(ob.Column)
		return
	}

	for _, expr := range selectList {
		if rendered, ok := renderCall(expr); ok && rendered == target {
			return
		}
		if alias := expr.ExprAlias(); alias != "" && alias == target {
			return
		}
	}
	v.errorf("ORDER BY expression '%s' must appear in SELECT when using aggregates", target)
}

// renderCall reconstructs "FUNC(arg, ...)" text for aggregate and
// function SELECT expressions, for ORDER BY matching only.
func renderCall(e ir.Expr) (string, bool) {
	var name string
	var args []ir.Expr
	switch expr := e.(type) {
	case ir.Aggregate:
		name, args = expr.Name, expr.Args
	case ir.Func:
		name, args = expr.Name, expr.Args
	default:
		return "", false
	}

	rendered := make([]string, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case ir.Column:
			rendered[i] = a.Ref
		case ir.Literal:
			rendered[i] = ir.RenderScalar(a.Value)
		default:
			if nested, ok := renderCall(arg); ok {
				rendered[i] = nested
			}
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(rendered, ", ")), true
}
