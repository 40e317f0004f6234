// Package complexity scores a query IR for execution cost signals.
package complexity

import (
	"fmt"

	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/schema"
)

// Level buckets a score into a coarse label.
type Level string

const (
	Simple      Level = "simple"
	Moderate    Level = "moderate"
	Complex     Level = "complex"
	VeryComplex Level = "very_complex"
)

// Metrics is the result of analyzing one query.
type Metrics struct {
	Score    int            `json:"score"`
	Level    Level          `json:"level"`
	Factors  map[string]any `json:"factors"`
	Warnings []string       `json:"warnings"`
}

// Analyze scores q additively across independent factors. Each factor
// is capped individually; there is no single universal cap.
//
// Factor points: tables min(count*10, 30); any aggregate in SELECT 10;
// GROUP BY 10 (+5 past three columns); HAVING 10; each CTE 15; WHERE
// condition complexity (capped at 10) times 5; aggregate together with
// HAVING 10.
func Analyze(q *ir.Query, s *schema.Schema) *Metrics {
	factors := map[string]any{}
	warnings := []string{}
	score := 0

	numTables := len(q.Joins)
	if q.FromTable != "" {
		numTables++
	}
	factors["num_tables"] = numTables
	score += min(numTables*10, 30)
	if numTables > 5 {
		warnings = append(warnings,
			fmt.Sprintf("Query involves %d tables; consider breaking into smaller queries", numTables))
	}

	hasAggregation := false
	for _, expr := range q.Select {
		if _, ok := expr.(ir.Aggregate); ok {
			hasAggregation = true
			break
		}
	}
	factors["has_aggregation"] = hasAggregation
	if hasAggregation {
		score += 10
	}

	if len(q.GroupBy) > 0 {
		factors["has_group_by"] = true
		score += 10
		if len(q.GroupBy) > 3 {
			warnings = append(warnings,
				fmt.Sprintf("Grouping by %d columns may be slow", len(q.GroupBy)))
			score += 5
		}
	}

	if len(q.Having) > 0 {
		factors["has_having"] = true
		score += 10
	}

	if len(q.CTEs) > 0 {
		factors["num_ctes"] = len(q.CTEs)
		score += len(q.CTEs) * 15
		if len(q.CTEs) > 2 {
			warnings = append(warnings,
				fmt.Sprintf("Query uses %d CTEs and may be difficult to optimize", len(q.CTEs)))
		}
	}

	if len(q.Where) > 0 {
		wc := conditionComplexity(q.Where)
		factors["where_complexity"] = wc
		score += int(wc * 5)
		if wc > 5 {
			warnings = append(warnings, "Complex WHERE clause with many conditions")
		}
	}

	if hasAggregation && len(q.Having) > 0 {
		factors["nested_aggregation"] = true
		score += 10
		warnings = append(warnings,
			"Nested aggregation (HAVING with GROUP BY); ensure indexes exist")
	}

	level := Simple
	switch {
	case score < 20:
		level = Simple
	case score < 40:
		level = Moderate
	case score < 70:
		level = Complex
	default:
		level = VeryComplex
	}
	factors["total_score"] = score

	return &Metrics{Score: score, Level: level, Factors: factors, Warnings: warnings}
}

// conditionComplexity scores a predicate chain: each conjunction link
// adds 1 for AND and 2 for OR, each operator adds by kind. Capped at 10
// per top-level call.
func conditionComplexity(preds []ir.Predicate) float64 {
	var c float64
	for i, p := range preds {
		if i > 0 {
			if p.Conjunction == ir.ConjOr {
				c += 2
			} else {
				c += 1
			}
		}
		switch p.Operator {
		case "IN", "NOT IN":
			c += 2
		case "LIKE", "NOT LIKE":
			c += 1
		case "BETWEEN":
			c += 1
		default:
			c += 0.5
		}
	}
	if c > 10 {
		return 10
	}
	return c
}

// SuggestOptimizations turns metrics into actionable advice strings.
func SuggestOptimizations(m *Metrics) []string {
	var suggestions []string

	numTables, _ := m.Factors["num_tables"].(int)
	hasAggregation, _ := m.Factors["has_aggregation"].(bool)
	numCTEs, _ := m.Factors["num_ctes"].(int)
	whereComplexity, _ := m.Factors["where_complexity"].(float64)

	if numTables > 2 {
		suggestions = append(suggestions,
			"Consider adding indexes on JOIN columns for better performance")
	}
	if hasAggregation && numTables > 3 {
		suggestions = append(suggestions,
			"For frequently run aggregations, consider creating a materialized view")
	}
	if m.Level == VeryComplex {
		suggestions = append(suggestions,
			"Consider breaking this query into smaller, simpler queries")
	}
	if numCTEs > 2 {
		suggestions = append(suggestions,
			"Review CTEs; some may be candidates for temporary tables")
	}
	if whereComplexity > 5 {
		suggestions = append(suggestions,
			"Simplify WHERE clause or ensure all filter columns are indexed")
	}

	return suggestions
}
