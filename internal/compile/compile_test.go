package compile

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryloom/internal/ir"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func intPtr(n int) *int { return &n }

func TestCompileSimpleSelect(t *testing.T) {
	q := &ir.Query{
		Select:    []ir.Expr{ir.Column{Ref: "users.name"}},
		FromTable: "users",
		Limit:     intPtr(10),
	}

	sql, params, err := Compile(q)
	require.NoError(t, err)
	assert.Empty(t, params)
	golden(t).Assert(t, "simple_select", []byte(sql))
}

func TestCompileJoinAggregate(t *testing.T) {
	sum := ir.Aggregate{Name: "SUM", Args: []ir.Expr{ir.Column{Ref: "orders.total"}}, Alias: "spend"}
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Column{Ref: "users.name", Alias: "customer"},
			sum,
		},
		FromTable: "users",
		Joins: []ir.Join{{
			Kind:  ir.JoinInner,
			Table: "orders",
			On: []ir.Predicate{{
				Left:     ir.Column{Ref: "users.id"},
				Operator: "=",
				Right:    ir.Column{Ref: "orders.user_id"},
			}},
		}},
		GroupBy: []string{"users.name"},
		Having: []ir.Predicate{{
			Left:     ir.Aggregate{Name: "SUM", Args: []ir.Expr{ir.Column{Ref: "orders.total"}}},
			Operator: ">",
			Right:    ir.Literal{Value: ir.Number(100)},
		}},
		OrderBy: []ir.OrderBy{{Column: "SUM(orders.total)", Direction: ir.Desc}},
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	golden(t).Assert(t, "join_aggregate", []byte(sql))
}

func TestCompileCTEChain(t *testing.T) {
	q := &ir.Query{
		CTEs: []ir.CTE{
			{Name: "recent", Query: &ir.Query{
				Select: []ir.Expr{
					ir.Column{Ref: "orders.user_id"},
					ir.Column{Ref: "orders.total"},
				},
				FromTable: "orders",
				Where: []ir.Predicate{{
					Left:     ir.Column{Ref: "orders.created_at"},
					Operator: ">=",
					Right:    ir.Literal{Value: ir.String("2026-01-01")},
				}},
			}},
			{Name: "ranked", Query: &ir.Query{
				Select: []ir.Expr{
					ir.Column{Ref: "recent.user_id"},
					ir.Window{
						Name:        "ROW_NUMBER",
						PartitionBy: []string{"recent.user_id"},
						OrderBy:     []ir.OrderBy{{Column: "recent.total", Direction: ir.Desc}},
						Alias:       "rn",
					},
				},
				FromTable: "recent",
			}},
		},
		Select:    []ir.Expr{ir.Column{Ref: "ranked.user_id"}},
		FromTable: "ranked",
		Limit:     intPtr(5),
		Offset:    intPtr(10),
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	golden(t).Assert(t, "cte_chain", []byte(sql))
}

func TestCompileCaseArithmeticCast(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Case{
				Whens: []ir.CaseWhen{{
					Condition: &ir.Predicate{
						Left:     ir.Column{Ref: "orders.total"},
						Operator: ">",
						Right:    ir.Literal{Value: ir.Number(100)},
					},
					Result: ir.Literal{Value: ir.String("big")},
				}},
				Else:  ir.Literal{Value: ir.String("small")},
				Alias: "bucket",
			},
			ir.Func{
				Name:  ir.FuncMultiply,
				Args:  []ir.Expr{ir.Column{Ref: "orders.total"}, ir.Literal{Value: ir.Number(0.1)}},
				Alias: "tax",
			},
			ir.Func{
				Name: ir.FuncCast,
				Args: []ir.Expr{
					ir.Column{Ref: "orders.total"},
					ir.Literal{Value: ir.String("decimal(10,2)")},
				},
			},
		},
		FromTable: "orders",
		Where: []ir.Predicate{{
			Left:     ir.Column{Ref: "orders.customer"},
			Operator: "=",
			Right:    ir.Literal{Value: ir.String("O'Brien")},
		}},
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	golden(t).Assert(t, "case_arithmetic_cast", []byte(sql))
}

func TestCompileLiteralEscaping(t *testing.T) {
	q := &ir.Query{
		Select:    []ir.Expr{ir.Column{Ref: "*"}},
		FromTable: "users",
		Where: []ir.Predicate{{
			Left:     ir.Column{Ref: "users.name"},
			Operator: "=",
			Right:    ir.Literal{Value: ir.String("O'Brien")},
		}},
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "'O''Brien'")
}

func TestCompileDeterminism(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Column{Ref: "users.name"},
			ir.Aggregate{Name: "COUNT", Args: []ir.Expr{ir.Column{Ref: "*"}}, Alias: "n"},
		},
		FromTable: "users",
		GroupBy:   []string{"users.name"},
	}

	first, firstParams, err := Compile(q)
	require.NoError(t, err)
	second, secondParams, err := Compile(q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstParams, secondParams)
}

func TestCompileDistinctAggregate(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Aggregate{
				Name:     "COUNT",
				Args:     []ir.Expr{ir.Column{Ref: "orders.user_id"}},
				Distinct: true,
				Alias:    "buyers",
			},
		},
		FromTable: "orders",
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(DISTINCT `orders`.`user_id`) AS buyers\nFROM `orders`", sql)
}

func TestCompileUnaryPredicateAndConjunctions(t *testing.T) {
	q := &ir.Query{
		Select:    []ir.Expr{ir.Column{Ref: "*"}},
		FromTable: "users",
		Where: []ir.Predicate{
			{Left: ir.Column{Ref: "users.email"}, Operator: "IS NOT NULL"},
			{
				Left:        ir.Column{Ref: "users.name"},
				Operator:    "LIKE",
				Right:       ir.Literal{Value: ir.String("A%")},
				Conjunction: ir.ConjOr,
			},
		},
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE `users`.`email` IS NOT NULL OR `users`.`name` LIKE 'A%'")
}

func TestCompileCrossJoinHasNoOn(t *testing.T) {
	q := &ir.Query{
		Select:    []ir.Expr{ir.Column{Ref: "*"}},
		FromTable: "users",
		Joins:     []ir.Join{{Kind: ir.JoinCross, Table: "regions"}},
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "CROSS JOIN `regions`")
	assert.NotContains(t, sql, " ON ")
}

func TestCompileSubqueryExpression(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Column{Ref: "users.name"},
			ir.Subquery{
				Query: &ir.Query{
					Select:    []ir.Expr{ir.Aggregate{Name: "COUNT", Args: []ir.Expr{ir.Column{Ref: "*"}}}},
					FromTable: "orders",
				},
				Alias: "order_count",
			},
		},
		FromTable: "users",
	}

	sql, _, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "(SELECT COUNT(*)\nFROM `orders`) AS order_count")
}

func TestCompileParametersCopied(t *testing.T) {
	q := &ir.Query{
		Select:     []ir.Expr{ir.Column{Ref: "*"}},
		FromTable:  "users",
		Parameters: map[string]ir.Scalar{"limit": ir.Number(10)},
	}

	_, params, err := Compile(q)
	require.NoError(t, err)
	params["limit"] = ir.Number(99)
	assert.Equal(t, ir.Number(10), q.Parameters["limit"])
}

func TestCompileNilQuery(t *testing.T) {
	_, _, err := Compile(nil)
	assert.Error(t, err)
}

func TestCompileCastErrors(t *testing.T) {
	q := &ir.Query{
		Select: []ir.Expr{
			ir.Func{Name: ir.FuncCast, Args: []ir.Expr{ir.Column{Ref: "users.id"}}},
		},
		FromTable: "users",
	}

	_, _, err := Compile(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAST")
}
