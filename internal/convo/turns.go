package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/queryloom/internal/ir"
)

// Turn is one recorded exchange in a conversation.
type Turn struct {
	ConversationID string         `json:"conversation_id"`
	Query          string         `json:"query"`
	SQL            string         `json:"sql"`
	IR             map[string]any `json:"ir"`
	TablesUsed     []string       `json:"tables_used"`
	CreatedAt      time.Time      `json:"created_at"`
}

// referenceKeywords mark a follow-up query that leans on the previous
// turn ("show me the same for products", "what about their orders").
var referenceKeywords = []string{"same", "those", "them", "their", "that", "it"}

// AddTurn appends a turn to the conversation and prunes history beyond
// the store's turn limit. The IR document and table list are serialized
// to canonical JSON so identical turns produce identical rows.
func (s *Store) AddTurn(ctx context.Context, turn Turn) error {
	irJSON, err := ir.MarshalCanonical(turn.IR)
	if err != nil {
		return fmt.Errorf("add turn: marshal ir: %w", err)
	}

	tables := make([]any, len(turn.TablesUsed))
	for i, table := range turn.TablesUsed {
		tables[i] = table
	}
	tablesJSON, err := ir.MarshalCanonical(tables)
	if err != nil {
		return fmt.Errorf("add turn: marshal tables: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add turn: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO turns (conversation_id, query, sql_text, ir, tables_used)
		VALUES (?, ?, ?, ?, ?)
	`,
		turn.ConversationID,
		turn.Query,
		turn.SQL,
		string(irJSON),
		string(tablesJSON),
	)
	if err != nil {
		return fmt.Errorf("add turn: insert: %w", err)
	}

	// Keep only the newest maxTurns rows for this conversation.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE conversation_id = ?
		  AND id NOT IN (
			SELECT id FROM turns
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`, turn.ConversationID, turn.ConversationID, s.maxTurns)
	if err != nil {
		return fmt.Errorf("add turn: prune: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add turn: commit: %w", err)
	}
	return nil
}

// History returns the conversation's turns, oldest first.
func (s *Store) History(ctx context.Context, conversationID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, query, sql_text, ir, tables_used, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var irJSON, tablesJSON, createdAt string
		if err := rows.Scan(&turn.ConversationID, &turn.Query, &turn.SQL,
			&irJSON, &tablesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(irJSON), &turn.IR); err != nil {
			return nil, fmt.Errorf("history: decode ir: %w", err)
		}
		if err := json.Unmarshal([]byte(tablesJSON), &turn.TablesUsed); err != nil {
			return nil, fmt.Errorf("history: decode tables: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			turn.CreatedAt = ts
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return turns, nil
}

// RecentTables returns the distinct tables used in the last n turns,
// sorted for deterministic output.
func (s *Store) RecentTables(ctx context.Context, conversationID string, n int) ([]string, error) {
	turns, err := s.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	set := map[string]bool{}
	for _, turn := range turns {
		for _, table := range turn.TablesUsed {
			set[table] = true
		}
	}

	tables := make([]string, 0, len(set))
	for table := range set {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables, nil
}

// BuildContextPrompt renders the last maxTurns turns as a prompt
// fragment, or "" when the conversation has no history.
func (s *Store) BuildContextPrompt(ctx context.Context, conversationID string, maxTurns int) (string, error) {
	turns, err := s.History(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", nil
	}
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	lines := []string{"Previous conversation:"}
	for i, turn := range turns {
		lines = append(lines, fmt.Sprintf("%d. User: %s\n   SQL: %s", i+1, turn.Query, turn.SQL))
	}
	return strings.Join(lines, "\n"), nil
}

// ResolveReferences rewrites a follow-up query that references the
// previous turn by appending a hint naming the tables it was about.
// Queries without reference keywords, or conversations without
// history, pass through unchanged.
func (s *Store) ResolveReferences(ctx context.Context, query, conversationID string) (string, error) {
	turns, err := s.History(ctx, conversationID)
	if err != nil {
		return query, err
	}
	if len(turns) == 0 {
		return query, nil
	}

	lower := strings.ToLower(query)
	hasReference := false
	for _, kw := range referenceKeywords {
		if strings.Contains(lower, kw) {
			hasReference = true
			break
		}
	}
	if !hasReference {
		return query, nil
	}

	last := turns[len(turns)-1]
	if len(last.TablesUsed) == 0 {
		return query, nil
	}
	return fmt.Sprintf("%s (referring to previous query about %s)",
		query, strings.Join(last.TablesUsed, ", ")), nil
}

// Clear removes all turns for a conversation.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM turns WHERE conversation_id = ?
	`, conversationID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}
