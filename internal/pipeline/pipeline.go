// Package pipeline orchestrates the NL-to-SQL request flow.
//
// A request moves through a fixed state sequence:
//
//	PreparingContext -> GeneratingIR -> Validating ->
//	    (NeedsClarification | Compiling) -> Correcting -> Done
//
// The pure stages (validate, compile, complexity, correct, clarify) run
// synchronously between two I/O points: the external IR generation call
// and the best-effort context write. A generation failure aborts before
// Validating; a context-write failure never fails the request.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/queryloom/internal/clarify"
	"github.com/roach88/queryloom/internal/compile"
	"github.com/roach88/queryloom/internal/complexity"
	"github.com/roach88/queryloom/internal/convo"
	"github.com/roach88/queryloom/internal/correct"
	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/sanitize"
	"github.com/roach88/queryloom/internal/schema"
	"github.com/roach88/queryloom/internal/validate"
)

// State labels a stage of the request flow.
type State string

const (
	StatePreparingContext   State = "preparing_context"
	StateGeneratingIR       State = "generating_ir"
	StateValidating         State = "validating"
	StateNeedsClarification State = "needs_clarification"
	StateCompiling          State = "compiling"
	StateCorrecting         State = "correcting"
	StateDone               State = "done"
)

// Generator produces raw IR JSON for a prompt. Implementations wrap an
// external model call and may retry or fall back internally.
type Generator interface {
	GenerateIR(ctx context.Context, prompt string) ([]byte, error)
}

// SchemaProvider resolves a database ID to its schema description.
type SchemaProvider interface {
	Schema(ctx context.Context, databaseID string) (*schema.Schema, error)
}

// ExampleProvider retrieves similar past queries as prompt text.
// Implementations may return "" when nothing relevant exists.
type ExampleProvider interface {
	Examples(ctx context.Context, query, schemaVersion string, max int) (string, error)
}

// ContextStore is the conversation-memory surface the orchestrator
// needs. *convo.Store satisfies it.
type ContextStore interface {
	ResolveReferences(ctx context.Context, query, conversationID string) (string, error)
	BuildContextPrompt(ctx context.Context, conversationID string, maxTurns int) (string, error)
	AddTurn(ctx context.Context, turn convo.Turn) error
}

// Request is one NL-to-SQL invocation.
type Request struct {
	QueryText      string
	ConversationID string
	DatabaseID     string
}

// Result is the diagnostics bundle returned for a request. When
// Questions is non-empty the request stopped for clarification and SQL
// is empty.
type Result struct {
	RequestID       string               `json:"request_id"`
	State           State                `json:"state"`
	SQL             string               `json:"sql"`
	Params          map[string]ir.Scalar `json:"params,omitempty"`
	Confidence      float64              `json:"confidence"`
	Ambiguities     []ir.Ambiguity       `json:"ambiguities,omitempty"`
	Explanations    []string             `json:"explanations,omitempty"`
	SuggestedFixes  []string             `json:"suggested_fixes,omitempty"`
	ComplexityLevel complexity.Level     `json:"complexity_level,omitempty"`
	Questions       []string             `json:"questions,omitempty"`
}

// Orchestrator wires the pure core to its collaborators.
type Orchestrator struct {
	cfg      Config
	schemas  SchemaProvider
	gen      Generator
	examples ExampleProvider
	memory   ContextStore
}

// New constructs an Orchestrator. examples and memory may be nil, which
// disables example retrieval and conversation features respectively.
func New(cfg Config, schemas SchemaProvider, gen Generator, examples ExampleProvider, memory ContextStore) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		schemas:  schemas,
		gen:      gen,
		examples: examples,
		memory:   memory,
	}
}

// Run executes the pipeline for one request.
//
// Errors are reserved for request-fatal conditions: schema lookup
// failure, generation failure, unparseable or malformed IR, and
// compile-level contract violations. Validator findings and the
// clarification path return a Result, not an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	log := slog.With("request_id", requestID, "conversation_id", req.ConversationID)

	result := &Result{RequestID: requestID, State: StatePreparingContext, Confidence: 1.0}

	// PreparingContext: schema plus reference resolution against the
	// conversation history.
	s, err := o.schemas.Schema(ctx, req.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("load schema for %q: %w", req.DatabaseID, err)
	}

	resolvedQuery := req.QueryText
	if o.memory != nil && req.ConversationID != "" {
		resolved, err := o.memory.ResolveReferences(ctx, req.QueryText, req.ConversationID)
		if err != nil {
			log.Warn("reference resolution failed", "error", err)
		} else {
			resolvedQuery = resolved
		}
	}
	log.Debug("context prepared", "schema_version", s.Version)

	// GeneratingIR: the only call that may block on the network. A
	// failure here aborts before Validating.
	result.State = StateGeneratingIR
	prompt, err := o.buildPrompt(ctx, s, resolvedQuery, req.ConversationID)
	if err != nil {
		return nil, err
	}
	rawIR, err := o.gen.GenerateIR(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate ir: %w", err)
	}

	doc, err := sanitize.Normalize(rawIR)
	if err != nil {
		return nil, fmt.Errorf("sanitize ir: %w", err)
	}
	q, err := ir.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode ir: %w", err)
	}
	result.Confidence = q.Confidence
	result.Ambiguities = q.Ambiguities

	// Validating: schema findings stop the request before any
	// downstream stage sees the invalid IR.
	result.State = StateValidating
	if errs := validate.Validate(q, s); len(errs) > 0 {
		for _, e := range errs {
			result.Explanations = append(result.Explanations, "Please clarify: "+e)
		}
		log.Info("validation failed", "errors", len(errs))
		return result, nil
	}

	if clarify.NeedsClarification(q, q.Confidence, q.Ambiguities, o.cfg.ConfidenceThreshold) {
		result.State = StateNeedsClarification
		questions := clarify.GenerateQuestions(req.QueryText, q, s, q.Ambiguities)
		result.Questions = clarify.FormatQuestions(questions)
		log.Info("clarification needed", "questions", len(result.Questions))
		return result, nil
	}

	// Compiling: pure and deterministic; an error is a generator or
	// sanitizer contract violation.
	result.State = StateCompiling
	sql, params, err := compile.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	result.SQL = sql
	result.Params = params

	metrics := complexity.Analyze(q, s)
	result.ComplexityLevel = metrics.Level
	suggestions := complexity.SuggestOptimizations(metrics)

	// Correcting: static checks over the compiled text. Corrected SQL
	// replaces the original only when a correction was applied.
	result.State = StateCorrecting
	correctedSQL, errorsFound, correctionsApplied := correct.CheckAndCorrect(sql, q, s)
	if len(correctionsApplied) > 0 {
		result.SQL = correctedSQL
	}

	for _, w := range metrics.Warnings {
		result.Explanations = append(result.Explanations, "Performance note: "+w)
	}
	for _, e := range errorsFound {
		result.Explanations = append(result.Explanations, "Note: "+e)
	}
	result.SuggestedFixes = append(result.SuggestedFixes, correctionsApplied...)
	result.SuggestedFixes = append(result.SuggestedFixes, suggestions...)

	// Context write is best-effort: a failure is logged, never
	// surfaced.
	if o.memory != nil && req.ConversationID != "" {
		turn := convo.Turn{
			ConversationID: req.ConversationID,
			Query:          req.QueryText,
			SQL:            result.SQL,
			IR:             q.ToDocument(),
			TablesUsed:     q.Tables(),
		}
		if err := o.memory.AddTurn(ctx, turn); err != nil {
			log.Warn("context write failed", "error", err)
		}
	}

	result.State = StateDone
	log.Info("pipeline completed",
		"confidence", result.Confidence,
		"complexity", result.ComplexityLevel,
		"explanations", len(result.Explanations))
	return result, nil
}

// buildPrompt assembles the generation prompt, pulling examples and
// conversation context when those collaborators are configured.
func (o *Orchestrator) buildPrompt(ctx context.Context, s *schema.Schema, query, conversationID string) (string, error) {
	examples := ""
	if o.examples != nil && o.cfg.UseExamples {
		text, err := o.examples.Examples(ctx, query, s.Version, o.cfg.MaxExamples)
		if err != nil {
			slog.Warn("example retrieval failed", "error", err)
		} else {
			examples = text
		}
	}

	contextPrompt := ""
	if o.memory != nil && conversationID != "" {
		text, err := o.memory.BuildContextPrompt(ctx, conversationID, o.cfg.ContextTurnsInPrompt)
		if err != nil {
			slog.Warn("context prompt build failed", "error", err)
		} else {
			contextPrompt = text
		}
	}

	return BuildPrompt(s, query, examples, contextPrompt, o.cfg.MaxColumnsInPrompt), nil
}
