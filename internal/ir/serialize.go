package ir

// ToDocument converts a Query back to plain JSON-shaped data.
// Used when persisting an IR into conversation memory; the record is
// stored as data and is not re-validated on replay.
func (q *Query) ToDocument() map[string]any {
	doc := map[string]any{
		"select":     exprsToDocs(q.Select),
		"confidence": q.Confidence,
	}
	if len(q.CTEs) > 0 {
		ctes := make([]any, len(q.CTEs))
		for i, cte := range q.CTEs {
			ctes[i] = map[string]any{"name": cte.Name, "query": cte.Query.ToDocument()}
		}
		doc["ctes"] = ctes
	}
	if q.Distinct {
		doc["distinct"] = true
	}
	if q.FromTable != "" {
		doc["from_table"] = q.FromTable
	}
	if q.FromAlias != "" {
		doc["from_alias"] = q.FromAlias
	}
	if len(q.Joins) > 0 {
		joins := make([]any, len(q.Joins))
		for i, j := range q.Joins {
			jm := map[string]any{"type": string(j.Kind), "table": j.Table}
			if j.Alias != "" {
				jm["alias"] = j.Alias
			}
			if len(j.On) > 0 {
				jm["on"] = predsToDocs(j.On)
			}
			joins[i] = jm
		}
		doc["joins"] = joins
	}
	if len(q.Where) > 0 {
		doc["where"] = predsToDocs(q.Where)
	}
	if len(q.GroupBy) > 0 {
		cols := make([]any, len(q.GroupBy))
		for i, c := range q.GroupBy {
			cols[i] = c
		}
		doc["group_by"] = cols
	}
	if len(q.Having) > 0 {
		doc["having"] = predsToDocs(q.Having)
	}
	if len(q.OrderBy) > 0 {
		obs := make([]any, len(q.OrderBy))
		for i, ob := range q.OrderBy {
			obs[i] = map[string]any{"column": ob.Column, "direction": string(ob.Direction)}
		}
		doc["order_by"] = obs
	}
	if q.Limit != nil {
		doc["limit"] = *q.Limit
	}
	if q.Offset != nil {
		doc["offset"] = *q.Offset
	}
	if len(q.Parameters) > 0 {
		params := make(map[string]any, len(q.Parameters))
		for k, v := range q.Parameters {
			params[k] = GoValue(v)
		}
		doc["parameters"] = params
	}
	if len(q.Ambiguities) > 0 {
		ambs := make([]any, len(q.Ambiguities))
		for i, a := range q.Ambiguities {
			am := map[string]any{"question": a.Question}
			if len(a.Options) > 0 {
				opts := make([]any, len(a.Options))
				for j, o := range a.Options {
					opts[j] = o
				}
				am["options"] = opts
			}
			if a.Reason != "" {
				am["reason"] = a.Reason
			}
			if a.Field != "" {
				am["field"] = a.Field
			}
			ambs[i] = am
		}
		doc["ambiguities"] = ambs
	}
	return doc
}

func exprsToDocs(exprs []Expr) []any {
	docs := make([]any, len(exprs))
	for i, e := range exprs {
		docs[i] = exprToDoc(e)
	}
	return docs
}

func exprToDoc(e Expr) map[string]any {
	var doc map[string]any
	switch ex := e.(type) {
	case Column:
		doc = map[string]any{"type": "column", "value": ex.Ref}
	case Literal:
		doc = map[string]any{"type": "literal", "value": GoValue(ex.Value)}
	case Func:
		doc = map[string]any{"type": "function", "function": ex.Name, "args": exprsToDocs(ex.Args)}
	case Aggregate:
		doc = map[string]any{"type": "aggregate", "function": ex.Name, "args": exprsToDocs(ex.Args)}
		if ex.Distinct {
			doc["distinct"] = true
		}
	case Window:
		doc = map[string]any{"type": "window", "function": ex.Name, "args": exprsToDocs(ex.Args)}
		if len(ex.PartitionBy) > 0 {
			cols := make([]any, len(ex.PartitionBy))
			for i, c := range ex.PartitionBy {
				cols[i] = c
			}
			doc["partition_by"] = cols
		}
		if len(ex.OrderBy) > 0 {
			obs := make([]any, len(ex.OrderBy))
			for i, ob := range ex.OrderBy {
				obs[i] = map[string]any{"column": ob.Column, "direction": string(ob.Direction)}
			}
			doc["order_by"] = obs
		}
	case Case:
		whens := make([]any, len(ex.Whens))
		for i, w := range ex.Whens {
			wm := map[string]any{}
			if w.Condition != nil {
				wm["condition"] = predToDoc(*w.Condition)
			}
			if w.Result != nil {
				wm["result"] = exprToDoc(w.Result)
			}
			whens[i] = wm
		}
		doc = map[string]any{"type": "case", "conditions": whens}
		if ex.Else != nil {
			doc["else"] = exprToDoc(ex.Else)
		}
	case Subquery:
		doc = map[string]any{"type": "subquery", "subquery": ex.Query.ToDocument()}
	default:
		doc = map[string]any{"type": "unknown"}
	}
	if alias := e.ExprAlias(); alias != "" {
		doc["alias"] = alias
	}
	return doc
}

func predsToDocs(preds []Predicate) []any {
	docs := make([]any, len(preds))
	for i, p := range preds {
		docs[i] = predToDoc(p)
	}
	return docs
}

func predToDoc(p Predicate) map[string]any {
	doc := map[string]any{
		"left":        exprToDoc(p.Left),
		"operator":    p.Operator,
		"conjunction": string(p.Conjunction),
	}
	if p.Right != nil {
		doc["right"] = exprToDoc(p.Right)
	}
	return doc
}
