// Package compile renders a query IR to SQL text.
//
// Compilation is deterministic: the same IR always yields byte-identical
// SQL. Literal values are inlined with type-aware rendering rather than
// bound as parameters; string escaping in ir.RenderScalar is the trust
// boundary for any text that reaches the emitted SQL.
package compile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/queryloom/internal/ir"
)

// arithmeticOps maps pseudo-function names to their infix operators.
var arithmeticOps = map[string]string{
	ir.FuncMultiply: "*",
	ir.FuncDivide:   "/",
	ir.FuncAdd:      "+",
	ir.FuncSubtract: "-",
	ir.FuncModulo:   "%",
}

// Compile renders q to SQL and returns the statement together with a
// copy of the query's parameter map. Under the inline-literal policy the
// map is empty in practice; it is kept as the interface seam for a
// parameterized mode.
//
// A well-formed IR always compiles. An unsupported expression variant is
// a contract violation upstream and returns an error.
func Compile(q *ir.Query) (string, map[string]ir.Scalar, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	params := make(map[string]ir.Scalar, len(q.Parameters))
	for k, v := range q.Parameters {
		params[k] = v
	}

	sql, err := compileQuery(q)
	if err != nil {
		return "", nil, err
	}
	return sql, params, nil
}

// compileQuery assembles the statement parts, one clause per line.
func compileQuery(q *ir.Query) (string, error) {
	var parts []string

	if len(q.CTEs) > 0 {
		withs := make([]string, len(q.CTEs))
		for i, cte := range q.CTEs {
			body, err := compileQuery(cte.Query)
			if err != nil {
				return "", fmt.Errorf("compile CTE %q: %w", cte.Name, err)
			}
			withs[i] = fmt.Sprintf("%s AS (%s)", cte.Name, body)
		}
		parts = append(parts, "WITH "+strings.Join(withs, ", "))
	}

	selectClause, err := compileSelect(q)
	if err != nil {
		return "", err
	}
	parts = append(parts, selectClause)

	if q.FromTable != "" {
		from := "FROM " + quoteIdent(q.FromTable)
		if q.FromAlias != "" {
			from += " AS " + q.FromAlias
		}
		parts = append(parts, from)
	}

	for _, join := range q.Joins {
		clause := string(join.Kind) + " JOIN " + quoteIdent(join.Table)
		if join.Alias != "" {
			clause += " AS " + join.Alias
		}
		if len(join.On) > 0 {
			on, err := compilePredicates(join.On)
			if err != nil {
				return "", fmt.Errorf("compile join on %q: %w", join.Table, err)
			}
			clause += " ON " + on
		}
		parts = append(parts, clause)
	}

	if len(q.Where) > 0 {
		where, err := compilePredicates(q.Where)
		if err != nil {
			return "", fmt.Errorf("compile where: %w", err)
		}
		parts = append(parts, "WHERE "+where)
	}

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, c := range q.GroupBy {
			cols[i] = quoteRef(c)
		}
		parts = append(parts, "GROUP BY "+strings.Join(cols, ", "))
	}

	if len(q.Having) > 0 {
		having, err := compilePredicates(q.Having)
		if err != nil {
			return "", fmt.Errorf("compile having: %w", err)
		}
		parts = append(parts, "HAVING "+having)
	}

	if len(q.OrderBy) > 0 {
		entries := make([]string, len(q.OrderBy))
		for i, ob := range q.OrderBy {
			entries[i] = orderByEntry(ob)
		}
		parts = append(parts, "ORDER BY "+strings.Join(entries, ", "))
	}

	if q.Limit != nil {
		parts = append(parts, "LIMIT "+strconv.Itoa(*q.Limit))
		if q.Offset != nil {
			parts = append(parts, "OFFSET "+strconv.Itoa(*q.Offset))
		}
	}

	return strings.Join(parts, "\n"), nil
}

// compileSelect renders the SELECT clause: single-line for one column,
// one column per line otherwise.
func compileSelect(q *ir.Query) (string, error) {
	items := make([]string, len(q.Select))
	for i, expr := range q.Select {
		rendered, err := compileExpr(expr)
		if err != nil {
			return "", fmt.Errorf("compile select: %w", err)
		}
		items[i] = rendered
	}

	keyword := "SELECT"
	if q.Distinct {
		keyword = "SELECT DISTINCT"
	}
	if len(items) == 1 {
		return keyword + " " + items[0], nil
	}
	return keyword + "\n  " + strings.Join(items, ",\n  "), nil
}

// compileExpr renders one expression, exhaustive over the variant set.
func compileExpr(e ir.Expr) (string, error) {
	switch expr := e.(type) {
	case ir.Column:
		return withAlias(quoteRef(expr.Ref), expr.Alias), nil

	case ir.Literal:
		return withAlias(ir.RenderScalar(expr.Value), expr.Alias), nil

	case ir.Func:
		rendered, err := compileFunc(expr)
		if err != nil {
			return "", err
		}
		return withAlias(rendered, expr.Alias), nil

	case ir.Aggregate:
		args, err := compileArgs(expr.Args)
		if err != nil {
			return "", fmt.Errorf("aggregate %s: %w", expr.Name, err)
		}
		if expr.Distinct {
			return withAlias(fmt.Sprintf("%s(DISTINCT %s)", expr.Name, args), expr.Alias), nil
		}
		return withAlias(fmt.Sprintf("%s(%s)", expr.Name, args), expr.Alias), nil

	case ir.Window:
		rendered, err := compileWindow(expr)
		if err != nil {
			return "", err
		}
		return withAlias(rendered, expr.Alias), nil

	case ir.Case:
		rendered, err := compileCase(expr)
		if err != nil {
			return "", err
		}
		return withAlias(rendered, expr.Alias), nil

	case ir.Subquery:
		if expr.Query == nil {
			return "", fmt.Errorf("subquery expression has no query")
		}
		sub, err := compileQuery(expr.Query)
		if err != nil {
			return "", fmt.Errorf("compile subquery: %w", err)
		}
		return withAlias("("+sub+")", expr.Alias), nil

	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

// compileFunc handles CAST and the arithmetic pseudo-functions before
// falling back to plain call syntax.
func compileFunc(f ir.Func) (string, error) {
	if op, ok := arithmeticOps[f.Name]; ok {
		if len(f.Args) < 2 {
			return "", fmt.Errorf("%s needs at least two operands, got %d", f.Name, len(f.Args))
		}
		operands := make([]string, len(f.Args))
		for i, arg := range f.Args {
			rendered, err := compileExpr(arg)
			if err != nil {
				return "", fmt.Errorf("%s operand: %w", f.Name, err)
			}
			operands[i] = rendered
		}
		return strings.Join(operands, " "+op+" "), nil
	}

	if f.Name == ir.FuncCast {
		if len(f.Args) != 2 {
			return "", fmt.Errorf("CAST needs expression and type, got %d args", len(f.Args))
		}
		inner, err := compileExpr(f.Args[0])
		if err != nil {
			return "", fmt.Errorf("CAST expression: %w", err)
		}
		lit, ok := f.Args[1].(ir.Literal)
		if !ok {
			return "", fmt.Errorf("CAST type must be a literal, got %T", f.Args[1])
		}
		typ, ok := lit.Value.(ir.String)
		if !ok {
			return "", fmt.Errorf("CAST type must be a string literal")
		}
		return fmt.Sprintf("CAST(%s AS %s)", inner, strings.ToUpper(string(typ))), nil
	}

	args, err := compileArgs(f.Args)
	if err != nil {
		return "", fmt.Errorf("function %s: %w", f.Name, err)
	}
	return fmt.Sprintf("%s(%s)", f.Name, args), nil
}

func compileWindow(w ir.Window) (string, error) {
	args, err := compileArgs(w.Args)
	if err != nil {
		return "", fmt.Errorf("window %s: %w", w.Name, err)
	}

	var over []string
	if len(w.PartitionBy) > 0 {
		cols := make([]string, len(w.PartitionBy))
		for i, c := range w.PartitionBy {
			cols[i] = quoteRef(c)
		}
		over = append(over, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(w.OrderBy) > 0 {
		entries := make([]string, len(w.OrderBy))
		for i, ob := range w.OrderBy {
			entries[i] = orderByEntry(ob)
		}
		over = append(over, "ORDER BY "+strings.Join(entries, ", "))
	}

	return fmt.Sprintf("%s(%s) OVER (%s)", w.Name, args, strings.Join(over, " ")), nil
}

func compileCase(c ir.Case) (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	for _, when := range c.Whens {
		if when.Condition == nil {
			return "", fmt.Errorf("CASE WHEN clause has no condition")
		}
		cond, err := compilePredicates([]ir.Predicate{*when.Condition})
		if err != nil {
			return "", fmt.Errorf("CASE condition: %w", err)
		}
		result, err := compileExpr(when.Result)
		if err != nil {
			return "", fmt.Errorf("CASE result: %w", err)
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", cond, result)
	}
	if c.Else != nil {
		rendered, err := compileExpr(c.Else)
		if err != nil {
			return "", fmt.Errorf("CASE else: %w", err)
		}
		b.WriteString(" ELSE " + rendered)
	}
	b.WriteString(" END")
	return b.String(), nil
}

func compileArgs(args []ir.Expr) (string, error) {
	rendered := make([]string, len(args))
	for i, arg := range args {
		s, err := compileExpr(arg)
		if err != nil {
			return "", err
		}
		rendered[i] = s
	}
	return strings.Join(rendered, ", "), nil
}

// compilePredicates renders a predicate chain. Each predicate's
// conjunction links it to the next one in the list.
func compilePredicates(preds []ir.Predicate) (string, error) {
	var parts []string
	for i, p := range preds {
		left, err := compileExpr(p.Left)
		if err != nil {
			return "", fmt.Errorf("predicate left: %w", err)
		}

		if p.Right == nil {
			// Unary operator such as IS NULL.
			parts = append(parts, left+" "+p.Operator)
		} else {
			right, err := compileExpr(p.Right)
			if err != nil {
				return "", fmt.Errorf("predicate right: %w", err)
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", left, p.Operator, right))
		}

		if i < len(preds)-1 {
			conj := preds[i+1].Conjunction
			if conj == "" {
				conj = ir.ConjAnd
			}
			parts = append(parts, string(conj))
		}
	}
	return strings.Join(parts, " "), nil
}

// orderByEntry renders one ORDER BY entry. Entries containing a function
// call pass through verbatim; bare references are quoted.
func orderByEntry(ob ir.OrderBy) string {
	col := ob.Column
	if !strings.Contains(col, "(") {
		col = quoteRef(col)
	}
	return col + " " + string(ob.Direction)
}

// quoteRef backtick-quotes a column reference, splitting a qualified
// reference on its first dot. "*" passes through unquoted.
func quoteRef(ref string) string {
	if ref == "*" {
		return ref
	}
	if table, column, ok := strings.Cut(ref, "."); ok {
		if column == "*" {
			return quoteIdent(table) + ".*"
		}
		return quoteIdent(table) + "." + quoteIdent(column)
	}
	return quoteIdent(ref)
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

func withAlias(rendered, alias string) string {
	if alias == "" {
		return rendered
	}
	return rendered + " AS " + alias
}
