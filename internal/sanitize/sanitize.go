// Package sanitize is the defensive adapter at the generator boundary.
//
// The external IR generator's output schema is not strictly enforced:
// providers emit key variants ("cte_name" for "name", "join_type" for
// "type"), bare strings where expression objects are expected, and
// string ON clauses. Normalize unifies those variants in place and
// checks the result against an embedded CUE shape contract, so schema
// drift in the generator never leaks past this package.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a normalized raw IR document, ready for typed decoding.
type Document map[string]any

// Error describes a sanitization failure with the offending field path.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("sanitize %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("sanitize: %s", e.Message)
}

// Normalize parses raw generator JSON and unifies key variants.
//
// A document that fails to parse as JSON is a hard failure; after
// normalization the document is validated against the CUE shape
// contract and shape violations are returned as *Error values.
//
// Normalizations applied:
//   - select: string items become {"type":"column","value":s}; dict
//     items missing a type tag are inferred from present fields
//     (function/aggregation -> aggregate, window -> window,
//     subquery -> subquery, else column)
//   - order_by: key variants value/field/col unified to column;
//     direction uppercased, defaulting to ASC
//   - ctes: cte_name -> name; cte_query/cte_definition/definition -> query
//   - joins: join_type -> type (with "JOIN" suffix stripped);
//     target_table/join_table -> table; condition/join_condition -> on;
//     a string on clause with a single comparison operator is parsed
//     into one predicate; a lone object becomes a one-element list
func Normalize(raw []byte) (Document, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse generator output: %w", err)
	}

	normalizeSelect(doc)
	normalizeOrderBy(doc)
	normalizeCTEs(doc)
	normalizeJoins(doc)

	if err := checkShape(doc); err != nil {
		return nil, err
	}
	return Document(doc), nil
}

func normalizeSelect(doc map[string]any) {
	raw, ok := doc["select"].([]any)
	if !ok {
		return
	}
	normalized := make([]any, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			normalized = append(normalized, map[string]any{"type": "column", "value": v})
		case map[string]any:
			normalized = append(normalized, normalizeSelectItem(v))
		default:
			normalized = append(normalized, item)
		}
	}
	doc["select"] = normalized
}

func normalizeSelectItem(item map[string]any) map[string]any {
	if _, ok := item["type"]; ok {
		return item
	}
	// {"column": "t.col", "alias": "..."} shape
	if col, ok := item["column"]; ok {
		expr := map[string]any{"type": "column", "value": col}
		if alias, ok := item["alias"]; ok {
			expr["alias"] = alias
		}
		return expr
	}
	// {"value": ..., "alias": ...} with the type tag forgotten: infer
	// from the other fields present.
	if _, ok := item["value"]; ok {
		switch {
		case item["function"] != nil || item["aggregation"] != nil:
			item["type"] = "aggregate"
		case item["window"] != nil:
			item["type"] = "window"
		case item["subquery"] != nil:
			item["type"] = "subquery"
		default:
			item["type"] = "column"
		}
	}
	return item
}

func normalizeOrderBy(doc map[string]any) {
	raw, ok := doc["order_by"].([]any)
	if !ok {
		return
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, variant := range []string{"value", "field", "col"} {
			if _, has := m["column"]; has {
				break
			}
			if v, ok := m[variant]; ok {
				m["column"] = v
				delete(m, variant)
			}
		}
		if d, ok := m["direction"].(string); ok && strings.EqualFold(d, "DESC") {
			m["direction"] = "DESC"
		} else {
			m["direction"] = "ASC"
		}
	}
}

func normalizeCTEs(doc map[string]any) {
	raw, ok := doc["ctes"].([]any)
	if !ok {
		return
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, has := m["name"]; !has {
			if v, ok := m["cte_name"]; ok {
				m["name"] = v
				delete(m, "cte_name")
			}
		}
		if _, has := m["query"]; !has {
			for _, variant := range []string{"cte_query", "cte_definition", "definition"} {
				if v, ok := m[variant]; ok {
					m["query"] = v
					delete(m, variant)
					break
				}
			}
		}
		if body, ok := m["query"].(map[string]any); ok {
			normalizeSelect(body)
			normalizeOrderBy(body)
			normalizeCTEs(body)
			normalizeJoins(body)
		}
	}
}

func normalizeJoins(doc map[string]any) {
	raw, ok := doc["joins"].([]any)
	if !ok {
		return
	}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, has := m["type"]; !has {
			if v, ok := m["join_type"].(string); ok {
				kind := strings.TrimSpace(strings.ReplaceAll(strings.ToUpper(v), "JOIN", ""))
				switch kind {
				case "INNER", "LEFT", "RIGHT", "FULL", "CROSS":
				default:
					kind = "INNER"
				}
				m["type"] = kind
				delete(m, "join_type")
			}
		}
		if _, has := m["table"]; !has {
			for _, variant := range []string{"target_table", "join_table"} {
				if v, ok := m[variant]; ok {
					m["table"] = v
					delete(m, variant)
					break
				}
			}
		}
		if _, has := m["on"]; !has {
			for _, variant := range []string{"condition", "join_condition"} {
				if v, ok := m[variant]; ok {
					m["on"] = v
					delete(m, variant)
					break
				}
			}
		}
		switch on := m["on"].(type) {
		case string:
			if pred := parseOnClause(on); pred != nil {
				m["on"] = []any{pred}
			} else {
				delete(m, "on")
			}
		case map[string]any:
			m["on"] = []any{on}
		}
	}
}

// onOperators are ordered longest-first so ">=" is not split as ">".
var onOperators = []string{">=", "<=", "!=", "=", ">", "<"}

// parseOnClause parses a simple ON clause like "a.col = b.col" into a
// predicate document. Best effort: anything more complex returns nil.
func parseOnClause(clause string) map[string]any {
	clause = strings.TrimSpace(clause)
	for _, op := range onOperators {
		idx := strings.Index(clause, op)
		if idx < 0 {
			continue
		}
		left := strings.TrimSpace(clause[:idx])
		right := strings.TrimSpace(clause[idx+len(op):])
		if left == "" || right == "" {
			return nil
		}
		return map[string]any{
			"left":        map[string]any{"type": "column", "value": left},
			"operator":    op,
			"right":       map[string]any{"type": "column", "value": right},
			"conjunction": "AND",
		}
	}
	return nil
}
