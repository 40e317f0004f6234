package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryloom/internal/convo"
	"github.com/roach88/queryloom/internal/schema"
)

type stubSchemas struct {
	s   *schema.Schema
	err error
}

func (f stubSchemas) Schema(ctx context.Context, databaseID string) (*schema.Schema, error) {
	return f.s, f.err
}

type stubGenerator struct {
	raw        []byte
	err        error
	lastPrompt string
}

func (f *stubGenerator) GenerateIR(ctx context.Context, prompt string) ([]byte, error) {
	f.lastPrompt = prompt
	return f.raw, f.err
}

type stubMemory struct {
	turns    []convo.Turn
	resolved string
}

func (f *stubMemory) ResolveReferences(ctx context.Context, query, conversationID string) (string, error) {
	if f.resolved != "" {
		return f.resolved, nil
	}
	return query, nil
}

func (f *stubMemory) BuildContextPrompt(ctx context.Context, conversationID string, maxTurns int) (string, error) {
	return "", nil
}

func (f *stubMemory) AddTurn(ctx context.Context, turn convo.Turn) error {
	f.turns = append(f.turns, turn)
	return nil
}

func testSchema() *schema.Schema {
	return &schema.Schema{
		Database: "shop",
		Version:  "abc123",
		Tables: map[string]schema.Table{
			"users": {Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "name", Type: "TEXT"},
			}},
			"orders": {Columns: []schema.Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "user_id", Type: "INTEGER"},
				{Name: "total", Type: "REAL"},
			}},
		},
	}
}

func newOrchestrator(gen *stubGenerator, memory ContextStore) *Orchestrator {
	return New(DefaultConfig(), stubSchemas{s: testSchema()}, gen, nil, memory)
}

func TestRunHappyPath(t *testing.T) {
	// Raw generator output deliberately uses the documented key
	// variants to exercise sanitization end to end.
	raw := []byte(`{
		"select": [
			"users.name",
			{"type": "aggregate", "function": "count", "args": [{"type": "column", "value": "orders.id"}], "alias": "order_count"}
		],
		"from_table": "users",
		"joins": [{"join_type": "inner join", "target_table": "orders", "condition": "users.id = orders.user_id"}],
		"group_by": ["users.name"],
		"order_by": [{"field": "order_count", "direction": "desc"}],
		"limit": 10,
		"confidence": 0.95
	}`)

	gen := &stubGenerator{raw: raw}
	memory := &stubMemory{}
	o := newOrchestrator(gen, memory)

	result, err := o.Run(context.Background(), Request{
		QueryText:      "order counts per user",
		ConversationID: "c1",
		DatabaseID:     "shop",
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.NotEmpty(t, result.RequestID)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
	assert.Empty(t, result.Questions)

	expected := "SELECT\n" +
		"  `users`.`name`,\n" +
		"  COUNT(`orders`.`id`) AS order_count\n" +
		"FROM `users`\n" +
		"INNER JOIN `orders` ON `users`.`id` = `orders`.`user_id`\n" +
		"GROUP BY `users`.`name`\n" +
		"ORDER BY `order_count` DESC\n" +
		"LIMIT 10"
	assert.Equal(t, expected, result.SQL)

	// Context write happened with the tables the query touched.
	require.Len(t, memory.turns, 1)
	assert.Equal(t, "order counts per user", memory.turns[0].Query)
	assert.Equal(t, []string{"users", "orders"}, memory.turns[0].TablesUsed)
}

func TestRunPromptContainsSchemaAndQuestion(t *testing.T) {
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "users.name"}],
		"from_table": "users",
		"confidence": 0.9
	}`)}
	o := newOrchestrator(gen, nil)

	_, err := o.Run(context.Background(), Request{QueryText: "list user names", DatabaseID: "shop"})
	require.NoError(t, err)

	assert.Contains(t, gen.lastPrompt, "Table: users")
	assert.Contains(t, gen.lastPrompt, "User Question:\nlist user names")
	assert.Contains(t, gen.lastPrompt, "Return ONLY valid JSON")
}

func TestRunValidationFailureStopsPipeline(t *testing.T) {
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "ghost.name"}],
		"from_table": "ghost"
	}`)}
	memory := &stubMemory{}
	o := newOrchestrator(gen, memory)

	result, err := o.Run(context.Background(), Request{
		QueryText:      "anything",
		ConversationID: "c1",
		DatabaseID:     "shop",
	})
	require.NoError(t, err)

	assert.Equal(t, StateValidating, result.State)
	assert.Empty(t, result.SQL)
	assert.Empty(t, result.Questions)
	require.Len(t, result.Explanations, 1)
	assert.Equal(t, "Please clarify: Table 'ghost' does not exist", result.Explanations[0])
	assert.Empty(t, memory.turns)
}

func TestRunLowConfidenceAsksQuestions(t *testing.T) {
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "orders.total"}],
		"from_table": "orders",
		"confidence": 0.5
	}`)}
	memory := &stubMemory{}
	o := newOrchestrator(gen, memory)

	result, err := o.Run(context.Background(), Request{
		QueryText:      "total for recent orders",
		ConversationID: "c1",
		DatabaseID:     "shop",
	})
	require.NoError(t, err)

	assert.Equal(t, StateNeedsClarification, result.State)
	assert.Empty(t, result.SQL)
	require.NotEmpty(t, result.Questions)
	assert.Regexp(t, `^1\. `, result.Questions[0])
	// Clarification is terminal: no context write.
	assert.Empty(t, memory.turns)
}

func TestRunExplicitAmbiguityAsksQuestions(t *testing.T) {
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "orders.total"}],
		"from_table": "orders",
		"confidence": 0.95,
		"ambiguities": [{"question": "Which period?", "options": ["Q1", "Q2"], "reason": "period unclear", "field": "where"}]
	}`)}
	o := newOrchestrator(gen, nil)

	result, err := o.Run(context.Background(), Request{QueryText: "totals", DatabaseID: "shop"})
	require.NoError(t, err)

	assert.Equal(t, StateNeedsClarification, result.State)
	assert.Contains(t, result.Questions, "1. Which period? Options: Q1, Q2")
}

func TestRunGenerationFailureAborts(t *testing.T) {
	gen := &stubGenerator{err: errors.New("provider timeout")}
	o := newOrchestrator(gen, nil)

	_, err := o.Run(context.Background(), Request{QueryText: "anything", DatabaseID: "shop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate ir")
}

func TestRunUnparseableIRAborts(t *testing.T) {
	gen := &stubGenerator{raw: []byte("not json at all")}
	o := newOrchestrator(gen, nil)

	_, err := o.Run(context.Background(), Request{QueryText: "anything", DatabaseID: "shop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sanitize ir")
}

func TestRunSchemaLookupFailureAborts(t *testing.T) {
	o := New(DefaultConfig(), stubSchemas{err: errors.New("no such database")},
		&stubGenerator{}, nil, nil)

	_, err := o.Run(context.Background(), Request{QueryText: "anything", DatabaseID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load schema")
}

func TestRunAdvisoryCorrections(t *testing.T) {
	// LIMIT without ORDER BY: flagged, suggestion recorded, SQL kept.
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "orders.total"}],
		"from_table": "orders",
		"limit": 5,
		"confidence": 0.9
	}`)}
	o := newOrchestrator(gen, nil)

	result, err := o.Run(context.Background(), Request{QueryText: "some totals", DatabaseID: "shop"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "SELECT `orders`.`total`\nFROM `orders`\nLIMIT 5", result.SQL)
	assert.Contains(t, result.Explanations,
		"Note: LIMIT without ORDER BY may produce non-deterministic results")
	assert.Contains(t, result.SuggestedFixes,
		"Consider adding ORDER BY clause for consistent results")
}

func TestRunResolvedReferencesReachGenerator(t *testing.T) {
	gen := &stubGenerator{raw: []byte(`{
		"select": [{"type": "column", "value": "orders.total"}],
		"from_table": "orders",
		"confidence": 0.9
	}`)}
	memory := &stubMemory{resolved: "show totals (referring to previous query about orders)"}
	o := newOrchestrator(gen, memory)

	_, err := o.Run(context.Background(), Request{
		QueryText:      "show the same",
		ConversationID: "c1",
		DatabaseID:     "shop",
	})
	require.NoError(t, err)

	assert.Contains(t, gen.lastPrompt,
		"show totals (referring to previous query about orders)")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 0.7, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 5, cfg.MaxTurns)
	assert.True(t, cfg.UseExamples)
}
