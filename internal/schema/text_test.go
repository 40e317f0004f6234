package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptText(t *testing.T) {
	got := PromptText(shopSchema(), 0)

	expected := "Table: orders\n" +
		"  - id: INTEGER (PRIMARY KEY, NOT NULL)\n" +
		"  - user_id: INTEGER (NOT NULL)\n" +
		"  - total: REAL\n" +
		"  FK: user_id -> users.id\n" +
		"\n" +
		"Table: users\n" +
		"  - id: INTEGER (PRIMARY KEY, NOT NULL)\n" +
		"  - name: TEXT\n" +
		"  - email: TEXT\n" +
		"\n"
	assert.Equal(t, expected, got)
}

func TestPromptTextTruncatesColumns(t *testing.T) {
	got := PromptText(shopSchema(), 2)

	assert.Contains(t, got, "Table: users\n  - id: INTEGER (PRIMARY KEY, NOT NULL)\n  - name: TEXT\n  ... 1 more column(s)\n")
	assert.NotContains(t, got, "email")
}

func TestPromptTextDeterministic(t *testing.T) {
	s := shopSchema()
	first := PromptText(s, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, PromptText(s, 0))
	}
}
