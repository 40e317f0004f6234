package ir

import (
	"fmt"
	"strings"
)

// Decode constructs a typed Query from a sanitized raw IR document.
//
// The input is the generator's JSON object AFTER sanitize.Normalize has
// unified key variants; Decode itself is strict about structure and
// returns an error on the first contract violation. Keeping the adapter
// (sanitize) separate from this constructor means schema drift in the
// external generator never leaks into the typed IR.
func Decode(doc map[string]any) (*Query, error) {
	q := &Query{Confidence: 1.0}

	if raw, ok := doc["ctes"].([]any); ok {
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ctes[%d]: expected object, got %T", i, item)
			}
			cte, err := decodeCTE(m)
			if err != nil {
				return nil, fmt.Errorf("ctes[%d]: %w", i, err)
			}
			q.CTEs = append(q.CTEs, cte)
		}
	}

	rawSelect, ok := doc["select"].([]any)
	if !ok || len(rawSelect) == 0 {
		return nil, fmt.Errorf("select clause cannot be empty")
	}
	for i, item := range rawSelect {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("select[%d]: expected object, got %T", i, item)
		}
		expr, err := decodeExpr(m)
		if err != nil {
			return nil, fmt.Errorf("select[%d]: %w", i, err)
		}
		q.Select = append(q.Select, expr)
	}

	q.Distinct, _ = doc["distinct"].(bool)
	q.FromTable, _ = doc["from_table"].(string)
	q.FromAlias, _ = doc["from_alias"].(string)

	if raw, ok := doc["joins"].([]any); ok {
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("joins[%d]: expected object, got %T", i, item)
			}
			join, err := decodeJoin(m)
			if err != nil {
				return nil, fmt.Errorf("joins[%d]: %w", i, err)
			}
			q.Joins = append(q.Joins, join)
		}
	}

	var err error
	if q.Where, err = decodePredicates(doc["where"]); err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	if q.Having, err = decodePredicates(doc["having"]); err != nil {
		return nil, fmt.Errorf("having: %w", err)
	}

	if raw, ok := doc["group_by"].([]any); ok {
		for i, item := range raw {
			col, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("group_by[%d]: expected string, got %T", i, item)
			}
			q.GroupBy = append(q.GroupBy, col)
		}
	}

	if raw, ok := doc["order_by"].([]any); ok {
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("order_by[%d]: expected object, got %T", i, item)
			}
			ob, err := decodeOrderBy(m)
			if err != nil {
				return nil, fmt.Errorf("order_by[%d]: %w", i, err)
			}
			q.OrderBy = append(q.OrderBy, ob)
		}
	}

	if v, ok := intField(doc, "limit"); ok {
		q.Limit = &v
	}
	if v, ok := intField(doc, "offset"); ok {
		q.Offset = &v
	}

	if raw, ok := doc["parameters"].(map[string]any); ok && len(raw) > 0 {
		q.Parameters = make(map[string]Scalar, len(raw))
		for k, v := range raw {
			sc, err := ScalarFromJSON(v)
			if err != nil {
				return nil, fmt.Errorf("parameters[%q]: %w", k, err)
			}
			q.Parameters[k] = sc
		}
	}

	if v, ok := doc["confidence"].(float64); ok {
		q.Confidence = v
	}
	if raw, ok := doc["ambiguities"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			amb := Ambiguity{}
			amb.Question, _ = m["question"].(string)
			amb.Reason, _ = m["reason"].(string)
			amb.Field, _ = m["field"].(string)
			if opts, ok := m["options"].([]any); ok {
				for _, o := range opts {
					if s, ok := o.(string); ok {
						amb.Options = append(amb.Options, s)
					}
				}
			}
			q.Ambiguities = append(q.Ambiguities, amb)
		}
	}

	return q, nil
}

func decodeCTE(m map[string]any) (CTE, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return CTE{}, fmt.Errorf("cte name is required")
	}
	body, ok := m["query"].(map[string]any)
	if !ok {
		return CTE{}, fmt.Errorf("cte %q: query body is required", name)
	}
	q, err := Decode(body)
	if err != nil {
		return CTE{}, fmt.Errorf("cte %q: %w", name, err)
	}
	return CTE{Name: name, Query: q}, nil
}

func decodeJoin(m map[string]any) (Join, error) {
	join := Join{Kind: JoinInner}
	if t, ok := m["type"].(string); ok && t != "" {
		join.Kind = JoinKind(strings.ToUpper(t))
	}
	switch join.Kind {
	case JoinInner, JoinLeft, JoinRight, JoinFull, JoinCross:
	default:
		return Join{}, fmt.Errorf("unknown join type %q", join.Kind)
	}
	join.Table, _ = m["table"].(string)
	if join.Table == "" {
		return Join{}, fmt.Errorf("join table is required")
	}
	join.Alias, _ = m["alias"].(string)
	preds, err := decodePredicates(m["on"])
	if err != nil {
		return Join{}, fmt.Errorf("on: %w", err)
	}
	join.On = preds
	return join, nil
}

func decodePredicates(v any) ([]Predicate, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	preds := make([]Predicate, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("[%d]: expected object, got %T", i, item)
		}
		p, err := decodePredicate(m)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func decodePredicate(m map[string]any) (Predicate, error) {
	p := Predicate{Conjunction: ConjAnd}

	left, ok := m["left"].(map[string]any)
	if !ok {
		return Predicate{}, fmt.Errorf("predicate left side is required")
	}
	leftExpr, err := decodeExpr(left)
	if err != nil {
		return Predicate{}, fmt.Errorf("left: %w", err)
	}
	p.Left = leftExpr

	p.Operator, _ = m["operator"].(string)
	if p.Operator == "" {
		return Predicate{}, fmt.Errorf("predicate operator is required")
	}

	if right, ok := m["right"].(map[string]any); ok {
		rightExpr, err := decodeExpr(right)
		if err != nil {
			return Predicate{}, fmt.Errorf("right: %w", err)
		}
		p.Right = rightExpr
	}

	if c, ok := m["conjunction"].(string); ok && strings.EqualFold(c, "OR") {
		p.Conjunction = ConjOr
	}
	return p, nil
}

func decodeExpr(m map[string]any) (Expr, error) {
	typ, _ := m["type"].(string)
	alias, _ := m["alias"].(string)

	switch typ {
	case "column":
		ref, ok := m["value"].(string)
		if !ok {
			return nil, fmt.Errorf("column expression requires a string value")
		}
		return Column{Ref: ref, Alias: alias}, nil

	case "literal":
		sc, err := ScalarFromJSON(m["value"])
		if err != nil {
			return nil, err
		}
		return Literal{Value: sc, Alias: alias}, nil

	case "function":
		name, args, err := decodeCall(m)
		if err != nil {
			return nil, err
		}
		return Func{Name: name, Args: args, Alias: alias}, nil

	case "aggregate":
		name, args, err := decodeCall(m)
		if err != nil {
			return nil, err
		}
		distinct, _ := m["distinct"].(bool)
		return Aggregate{Name: name, Args: args, Distinct: distinct, Alias: alias}, nil

	case "window":
		return decodeWindow(m, alias)

	case "subquery":
		body, ok := m["subquery"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("subquery expression requires a query body")
		}
		q, err := Decode(body)
		if err != nil {
			return nil, fmt.Errorf("subquery: %w", err)
		}
		return Subquery{Query: q, Alias: alias}, nil

	case "case":
		return decodeCase(m, alias)

	default:
		return nil, fmt.Errorf("unknown expression type %q", typ)
	}
}

func decodeCall(m map[string]any) (string, []Expr, error) {
	name, _ := m["function"].(string)
	if name == "" {
		return "", nil, fmt.Errorf("function name is required")
	}
	var args []Expr
	if raw, ok := m["args"].([]any); ok {
		for i, item := range raw {
			am, ok := item.(map[string]any)
			if !ok {
				return "", nil, fmt.Errorf("args[%d]: expected object, got %T", i, item)
			}
			arg, err := decodeExpr(am)
			if err != nil {
				return "", nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			args = append(args, arg)
		}
	}
	return strings.ToUpper(name), args, nil
}

// decodeWindow accepts both the nested format ({"window": {...}}) and the
// direct format with partition_by/order_by at the expression level.
func decodeWindow(m map[string]any, alias string) (Expr, error) {
	name, args, err := decodeCall(m)
	if err != nil {
		return nil, err
	}
	w := Window{Name: name, Args: args, Alias: alias}

	spec := m
	if nested, ok := m["window"].(map[string]any); ok {
		spec = nested
		if fn, ok := nested["function"].(string); ok && fn != "" {
			w.Name = strings.ToUpper(fn)
		}
	}

	if raw, ok := spec["partition_by"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				w.PartitionBy = append(w.PartitionBy, s)
			}
		}
	}
	if raw, ok := spec["order_by"].([]any); ok {
		for i, item := range raw {
			om, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("window order_by[%d]: expected object, got %T", i, item)
			}
			ob, err := decodeOrderBy(om)
			if err != nil {
				return nil, fmt.Errorf("window order_by[%d]: %w", i, err)
			}
			w.OrderBy = append(w.OrderBy, ob)
		}
	}
	return w, nil
}

// decodeCase accepts both the direct format ({"conditions": [...], "else": ...})
// and the nested format ({"case": {"when_clauses": [...], "else_clause": ...}}).
func decodeCase(m map[string]any, alias string) (Expr, error) {
	spec := m
	whensKey, elseKey := "conditions", "else"
	if nested, ok := m["case"].(map[string]any); ok {
		spec = nested
		whensKey, elseKey = "when_clauses", "else_clause"
	}

	c := Case{Alias: alias}
	raw, ok := spec[whensKey].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("case expression requires at least one when clause")
	}
	for i, item := range raw {
		wm, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("when[%d]: expected object, got %T", i, item)
		}
		when := CaseWhen{}

		cond, ok := wm["condition"].(map[string]any)
		if !ok {
			cond, ok = wm["when"].(map[string]any)
		}
		if ok {
			p, err := decodePredicate(cond)
			if err != nil {
				return nil, fmt.Errorf("when[%d] condition: %w", i, err)
			}
			when.Condition = &p
		}

		result, ok := wm["result"].(map[string]any)
		if !ok {
			result, ok = wm["then"].(map[string]any)
		}
		if ok {
			expr, err := decodeExpr(result)
			if err != nil {
				return nil, fmt.Errorf("when[%d] result: %w", i, err)
			}
			when.Result = expr
		}
		c.Whens = append(c.Whens, when)
	}

	if rawElse, ok := spec[elseKey].(map[string]any); ok {
		expr, err := decodeExpr(rawElse)
		if err != nil {
			return nil, fmt.Errorf("else: %w", err)
		}
		c.Else = expr
	}
	return c, nil
}

func decodeOrderBy(m map[string]any) (OrderBy, error) {
	col, _ := m["column"].(string)
	if col == "" {
		return OrderBy{}, fmt.Errorf("order_by column is required")
	}
	dir := Asc
	if d, ok := m["direction"].(string); ok && strings.EqualFold(d, "DESC") {
		dir = Desc
	}
	return OrderBy{Column: col, Direction: dir}, nil
}

func intField(doc map[string]any, key string) (int, bool) {
	switch v := doc[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
