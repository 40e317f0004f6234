package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryloom/internal/convo"
)

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const shopSchemaJSON = `{
	"database": "shop",
	"tables": {
		"users": {"columns": [
			{"name": "id", "type": "INTEGER", "primary_key": true},
			{"name": "name", "type": "TEXT"}
		]},
		"orders": {"columns": [
			{"name": "id", "type": "INTEGER", "primary_key": true},
			{"name": "user_id", "type": "INTEGER"},
			{"name": "total", "type": "REAL"}
		]}
	}
}`

const simpleIR = `{
	"select": [{"type": "column", "value": "users.name"}],
	"from_table": "users",
	"limit": 10
}`

func TestCompileCommandText(t *testing.T) {
	irPath := writeFile(t, "query.json", simpleIR)

	out, _, err := execute(t, "compile", irPath)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `users`.`name`\nFROM `users`\nLIMIT 10\n", out)
}

func TestCompileCommandJSON(t *testing.T) {
	irPath := writeFile(t, "query.json", simpleIR)

	out, _, err := execute(t, "--format", "json", "compile", irPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SELECT `users`.`name`\nFROM `users`\nLIMIT 10", data["sql"])
}

func TestCompileCommandWithSchemaValidation(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", shopSchemaJSON)

	t.Run("valid query compiles", func(t *testing.T) {
		irPath := writeFile(t, "query.json", simpleIR)
		out, _, err := execute(t, "compile", irPath, "--schema", schemaPath)
		require.NoError(t, err)
		assert.Contains(t, out, "SELECT `users`.`name`")
	})

	t.Run("invalid query stops before compile", func(t *testing.T) {
		irPath := writeFile(t, "query.json", `{
			"select": [{"type": "column", "value": "users.nickname"}],
			"from_table": "users"
		}`)
		out, _, err := execute(t, "compile", irPath, "--schema", schemaPath)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "query does not match schema")
	})
}

func TestCompileCommandWritesOutputFile(t *testing.T) {
	irPath := writeFile(t, "query.json", simpleIR)
	outPath := filepath.Join(t.TempDir(), "query.sql")

	_, _, err := execute(t, "compile", irPath, "-o", outPath)
	require.NoError(t, err)

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `users`.`name`\nFROM `users`\nLIMIT 10\n", string(written))
}

func TestCompileCommandMissingIRFile(t *testing.T) {
	_, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", shopSchemaJSON)

	t.Run("valid", func(t *testing.T) {
		irPath := writeFile(t, "query.json", simpleIR)
		out, _, err := execute(t, "validate", irPath, "--schema", schemaPath)
		require.NoError(t, err)
		assert.Equal(t, "Valid.\n", out)
	})

	t.Run("findings reported", func(t *testing.T) {
		irPath := writeFile(t, "query.json", `{
			"select": [{"type": "column", "value": "ghost.name"}],
			"from_table": "ghost"
		}`)
		out, _, err := execute(t, "validate", irPath, "--schema", schemaPath)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Table 'ghost' does not exist")
	})

	t.Run("findings in json", func(t *testing.T) {
		irPath := writeFile(t, "query.json", `{
			"select": [{"type": "column", "value": "ghost.name"}],
			"from_table": "ghost"
		}`)
		out, _, err := execute(t, "--format", "json", "validate", irPath, "--schema", schemaPath)
		require.Error(t, err)

		var resp CLIResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	})

	t.Run("schema flag required", func(t *testing.T) {
		irPath := writeFile(t, "query.json", simpleIR)
		_, _, err := execute(t, "validate", irPath)
		require.Error(t, err)
	})
}

func TestAnalyzeCommand(t *testing.T) {
	irPath := writeFile(t, "query.json", simpleIR)

	out, _, err := execute(t, "analyze", irPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Complexity: simple (score 10)")
	assert.Contains(t, out, "num_tables: 1")
}

func TestAnalyzeCommandJSON(t *testing.T) {
	irPath := writeFile(t, "query.json", `{
		"ctes": [
			{"name": "a", "query": {"select": [{"type": "column", "value": "orders.total"}], "from_table": "orders"}},
			{"name": "b", "query": {"select": [{"type": "column", "value": "a.total"}], "from_table": "a"}},
			{"name": "c", "query": {"select": [{"type": "column", "value": "b.total"}], "from_table": "b"}}
		],
		"select": [{"type": "aggregate", "function": "SUM", "args": [{"type": "column", "value": "c.total"}], "alias": "t"}],
		"from_table": "c",
		"group_by": ["c.total"]
	}`)

	out, _, err := execute(t, "--format", "json", "analyze", irPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["warnings"])
	assert.EqualValues(t, 75, data["score"])
	assert.Equal(t, "very_complex", data["level"])
}

func TestSchemaCommand(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", shopSchemaJSON)

	out, _, err := execute(t, "schema", schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Table: users")
	assert.Contains(t, out, "Table: orders")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestSchemaCommandFingerprint(t *testing.T) {
	schemaPath := writeFile(t, "schema.json", shopSchemaJSON)

	first, _, err := execute(t, "schema", schemaPath, "--fingerprint")
	require.NoError(t, err)
	second, _, err := execute(t, "schema", schemaPath, "--fingerprint")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 17) // 16 hex chars plus trailing newline
}

func TestHistoryCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "convo.db")
	store, err := convo.Open(dbPath, 5)
	require.NoError(t, err)
	require.NoError(t, store.AddTurn(context.Background(), convo.Turn{
		ConversationID: "c1",
		Query:          "list users",
		SQL:            "SELECT `users`.`name`\nFROM `users`",
		TablesUsed:     []string{"users"},
	}))
	require.NoError(t, store.Close())

	out, _, err := execute(t, "history", "c1", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1. list users")
	assert.Contains(t, out, "SQL: SELECT `users`.`name`")

	t.Run("empty conversation", func(t *testing.T) {
		out, _, err := execute(t, "history", "nobody", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "No turns stored")
	})

	t.Run("clear", func(t *testing.T) {
		_, _, err := execute(t, "history", "c1", "--db", dbPath, "--clear")
		require.NoError(t, err)

		out, _, err := execute(t, "history", "c1", "--db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "No turns stored")
	})
}

func TestSchemaCommandYAML(t *testing.T) {
	schemaPath := writeFile(t, "schema.yaml", `
database: shop
tables:
  users:
    columns:
      - name: id
        type: INTEGER
        primarykey: true
      - name: name
        type: TEXT
`)

	out, _, err := execute(t, "schema", schemaPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Table: users")
}
