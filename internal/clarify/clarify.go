// Package clarify decides when a query needs a follow-up question and
// generates the questions heuristically from the raw query text.
package clarify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/schema"
)

// DefaultThreshold is the confidence below which clarification is
// always requested.
const DefaultThreshold = 0.7

// Question is one clarification question with its answer options and
// the IR field it affects.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Reason   string   `json:"reason"`
	Field    string   `json:"field"`
}

// genericTables maps vague nouns in user text to the tables they could
// plausibly mean.
var genericTables = map[string][]string{
	"user":    {"users", "customers", "accounts"},
	"product": {"products", "items", "inventory"},
	"order":   {"orders", "purchases", "transactions"},
	"sale":    {"sales", "orders", "transactions"},
}

// genericColumns are column names common enough to exist in several
// tables at once.
var genericColumns = []string{"name", "id", "date", "status", "type"}

// vagueTimes maps vague temporal phrases to concrete interpretations.
var vagueTimes = map[string][]string{
	"recent":     {"last 7 days", "last 30 days", "last 90 days"},
	"this month": {"current calendar month", "last 30 days"},
	"this year":  {"current calendar year", "last 365 days"},
}

// NeedsClarification reports whether the request should return
// questions instead of SQL: low confidence, explicit ambiguities from
// the generator, or an IR with nothing to select.
func NeedsClarification(q *ir.Query, confidence float64, ambiguities []ir.Ambiguity, threshold float64) bool {
	if confidence < threshold {
		return true
	}
	if len(ambiguities) > 0 {
		return true
	}
	if q == nil || len(q.Select) == 0 {
		return true
	}
	return false
}

// GenerateQuestions runs the independent heuristics against the raw
// query text and schema, then surfaces each explicit generator
// ambiguity as a question of its own.
func GenerateQuestions(queryText string, q *ir.Query, s *schema.Schema, ambiguities []ir.Ambiguity) []Question {
	lower := strings.ToLower(queryText)
	var questions []Question

	questions = append(questions, ambiguousTables(lower, s)...)
	questions = append(questions, ambiguousColumns(lower, s)...)
	questions = append(questions, missingAggregation(lower, q)...)
	questions = append(questions, ambiguousTimeRange(lower)...)
	questions = append(questions, ambiguousSorting(lower, q)...)

	for _, amb := range ambiguities {
		question := amb.Question
		if question == "" {
			question = "Please clarify"
		}
		reason := amb.Reason
		if reason == "" {
			reason = "Ambiguity detected"
		}
		field := amb.Field
		if field == "" {
			field = "unknown"
		}
		questions = append(questions, Question{
			Question: question,
			Options:  amb.Options,
			Reason:   reason,
			Field:    field,
		})
	}

	return questions
}

// ambiguousTables flags generic nouns that map to two or more existing
// tables.
func ambiguousTables(lower string, s *schema.Schema) []Question {
	terms := make([]string, 0, len(genericTables))
	for term := range genericTables {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var questions []Question
	for _, term := range terms {
		if !strings.Contains(lower, term) {
			continue
		}
		var matching []string
		for _, candidate := range genericTables[term] {
			if s.HasTable(candidate) {
				matching = append(matching, candidate)
			}
		}
		if len(matching) > 1 {
			questions = append(questions, Question{
				Question: fmt.Sprintf("Which table did you mean by '%s'?", term),
				Options:  matching,
				Reason:   fmt.Sprintf("Multiple tables match '%s'", term),
				Field:    "from_table",
			})
		}
	}
	return questions
}

// ambiguousColumns flags generic column names present in two or more
// tables.
func ambiguousColumns(lower string, s *schema.Schema) []Question {
	tableNames := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	var questions []Question
	for _, col := range genericColumns {
		if !strings.Contains(lower, col) {
			continue
		}
		var holders []string
		for _, table := range tableNames {
			if s.HasColumn(table, col) {
				holders = append(holders, table+"."+col)
			}
		}
		if len(holders) > 1 {
			questions = append(questions, Question{
				Question: fmt.Sprintf("Which '%s' column did you mean?", col),
				Options:  holders,
				Reason:   fmt.Sprintf("Multiple tables have a '%s' column", col),
				Field:    "select",
			})
		}
	}
	return questions
}

// missingAggregation flags "total"/"sum" without a SUM aggregate and
// "average"/"avg" without AVG.
func missingAggregation(lower string, q *ir.Query) []Question {
	var questions []Question

	if strings.Contains(lower, "total") || strings.Contains(lower, "sum") {
		if !hasAggregateNamed(q, "SUM") {
			questions = append(questions, Question{
				Question: "Did you mean SUM (total value) or COUNT (total number)?",
				Options:  []string{"SUM", "COUNT"},
				Reason:   "'total' can mean sum or count",
				Field:    "select",
			})
		}
	}

	if strings.Contains(lower, "average") || strings.Contains(lower, "avg") {
		if !hasAggregateNamed(q, "AVG") {
			questions = append(questions, Question{
				Question: "Which column should be averaged?",
				Reason:   "Average aggregation not clearly specified",
				Field:    "select",
			})
		}
	}

	return questions
}

func hasAggregateNamed(q *ir.Query, name string) bool {
	if q == nil {
		return false
	}
	for _, expr := range q.Select {
		if agg, ok := expr.(ir.Aggregate); ok && agg.Name == name {
			return true
		}
	}
	return false
}

// ambiguousTimeRange flags vague temporal phrases with their concrete
// interpretation options.
func ambiguousTimeRange(lower string) []Question {
	terms := make([]string, 0, len(vagueTimes))
	for term := range vagueTimes {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var questions []Question
	for _, term := range terms {
		if strings.Contains(lower, term) {
			questions = append(questions, Question{
				Question: fmt.Sprintf("What do you mean by '%s'?", term),
				Options:  vagueTimes[term],
				Reason:   fmt.Sprintf("'%s' is ambiguous", term),
				Field:    "where",
			})
		}
	}
	return questions
}

// ambiguousSorting flags superlative language with no ORDER BY.
func ambiguousSorting(lower string, q *ir.Query) []Question {
	superlative := strings.Contains(lower, "top") ||
		strings.Contains(lower, "best") ||
		strings.Contains(lower, "highest")
	if !superlative {
		return nil
	}
	if q != nil && len(q.OrderBy) > 0 {
		return nil
	}
	return []Question{{
		Question: "What should the results be sorted by?",
		Reason:   "'top/best/highest' requires sorting specification",
		Field:    "order_by",
	}}
}

// FormatQuestions renders questions as numbered user-facing strings
// with an "Options: ..." suffix when options exist.
func FormatQuestions(questions []Question) []string {
	formatted := make([]string, 0, len(questions))
	for i, q := range questions {
		if len(q.Options) > 0 {
			formatted = append(formatted, fmt.Sprintf(
				"%d. %s Options: %s", i+1, q.Question, strings.Join(q.Options, ", ")))
		} else {
			formatted = append(formatted, fmt.Sprintf("%d. %s", i+1, q.Question))
		}
	}
	return formatted
}
