package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/queryloom/internal/ir"
)

func simpleQuery() *ir.Query {
	return &ir.Query{
		Select:    []ir.Expr{ir.Column{Ref: "users.name"}},
		FromTable: "users",
	}
}

func TestAnalyzeSimple(t *testing.T) {
	m := Analyze(simpleQuery(), nil)

	assert.Equal(t, 10, m.Score)
	assert.Equal(t, Simple, m.Level)
	assert.Equal(t, 1, m.Factors["num_tables"])
	assert.Empty(t, m.Warnings)
}

func TestAnalyzeTableCountCapped(t *testing.T) {
	q := simpleQuery()
	for _, tbl := range []string{"a", "b", "c", "d", "e", "f"} {
		q.Joins = append(q.Joins, ir.Join{Kind: ir.JoinInner, Table: tbl})
	}

	m := Analyze(q, nil)
	assert.Equal(t, 30, m.Score)
	assert.Equal(t, 7, m.Factors["num_tables"])
	assert.Len(t, m.Warnings, 1)
	assert.Contains(t, m.Warnings[0], "7 tables")
}

func TestAnalyzeAggregateGroupByHaving(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Column{Ref: "users.name"},
			ir.Aggregate{Name: "COUNT", Args: []ir.Expr{ir.Column{Ref: "*"}}},
		},
		FromTable: "users",
		GroupBy:   []string{"users.name"},
		Having: []ir.Predicate{{
			Left:     ir.Aggregate{Name: "COUNT", Args: []ir.Expr{ir.Column{Ref: "*"}}},
			Operator: ">",
			Right:    ir.Literal{Value: ir.Number(1)},
		}},
	}

	m := Analyze(q, nil)
	// tables 10 + aggregate 10 + group by 10 + having 10 + nested 10
	assert.Equal(t, 50, m.Score)
	assert.Equal(t, Complex, m.Level)
	assert.Contains(t, m.Warnings[0], "Nested aggregation")
}

func TestAnalyzeFourthGroupByColumnWarns(t *testing.T) {
	q := simpleQuery()
	q.GroupBy = []string{"a", "b", "c"}
	base := Analyze(q, nil)
	assert.Empty(t, base.Warnings)

	q.GroupBy = append(q.GroupBy, "d")
	m := Analyze(q, nil)
	assert.Equal(t, base.Score+5, m.Score)
	assert.Len(t, m.Warnings, 1)
	assert.Contains(t, m.Warnings[0], "may be slow")
}

func TestAnalyzeCTEMonotonic(t *testing.T) {
	q := simpleQuery()
	before := Analyze(q, nil).Score

	q.CTEs = append(q.CTEs, ir.CTE{Name: "extra", Query: simpleQuery()})
	after := Analyze(q, nil).Score
	assert.Greater(t, after, before)
	assert.Equal(t, before+15, after)

	q.CTEs = append(q.CTEs,
		ir.CTE{Name: "second", Query: simpleQuery()},
		ir.CTE{Name: "third", Query: simpleQuery()})
	m := Analyze(q, nil)
	assert.Contains(t, m.Warnings[0], "3 CTEs")
}

func TestConditionComplexity(t *testing.T) {
	preds := []ir.Predicate{
		{Left: ir.Column{Ref: "a"}, Operator: "IN"},
		{Left: ir.Column{Ref: "b"}, Operator: "LIKE", Conjunction: ir.ConjOr},
		{Left: ir.Column{Ref: "c"}, Operator: "=", Conjunction: ir.ConjAnd},
	}

	// IN 2 + OR link 2 + LIKE 1 + AND link 1 + other 0.5
	assert.Equal(t, 6.5, conditionComplexity(preds))
}

func TestConditionComplexityCap(t *testing.T) {
	var preds []ir.Predicate
	for i := 0; i < 10; i++ {
		preds = append(preds, ir.Predicate{
			Left: ir.Column{Ref: "x"}, Operator: "IN", Conjunction: ir.ConjOr,
		})
	}
	assert.Equal(t, 10.0, conditionComplexity(preds))
}

func TestSuggestOptimizations(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Aggregate{Name: "SUM", Args: []ir.Expr{ir.Column{Ref: "orders.total"}}},
		},
		FromTable: "orders",
		Joins: []ir.Join{
			{Kind: ir.JoinInner, Table: "a"},
			{Kind: ir.JoinInner, Table: "b"},
			{Kind: ir.JoinInner, Table: "c"},
		},
		CTEs: []ir.CTE{
			{Name: "one", Query: simpleQuery()},
			{Name: "two", Query: simpleQuery()},
			{Name: "three", Query: simpleQuery()},
		},
	}

	m := Analyze(q, nil)
	suggestions := SuggestOptimizations(m)

	assert.Contains(t, suggestions, "Consider adding indexes on JOIN columns for better performance")
	assert.Contains(t, suggestions, "For frequently run aggregations, consider creating a materialized view")
	assert.Contains(t, suggestions, "Review CTEs; some may be candidates for temporary tables")
}

func TestSuggestOptimizationsVeryComplex(t *testing.T) {
	m := &Metrics{Level: VeryComplex, Factors: map[string]any{}}
	assert.Contains(t, SuggestOptimizations(m),
		"Consider breaking this query into smaller, simpler queries")
}
