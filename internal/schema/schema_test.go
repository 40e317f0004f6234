package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func shopSchema() *Schema {
	return &Schema{
		Database: "shop",
		Tables: map[string]Table{
			"users": {Columns: []Column{
				{Name: "id", Type: "INTEGER", PrimaryKey: true},
				{Name: "name", Type: "TEXT", Nullable: true},
				{Name: "email", Type: "TEXT", Nullable: true},
			}},
			"orders": {
				Columns: []Column{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "user_id", Type: "INTEGER"},
					{Name: "total", Type: "REAL", Nullable: true},
				},
				ForeignKeys: []ForeignKey{{
					ConstrainedColumns: []string{"user_id"},
					ReferredTable:      "users",
					ReferredColumns:    []string{"id"},
				}},
			},
		},
		Relationships: []Relationship{{
			FromTable:   "orders",
			FromColumns: []string{"user_id"},
			ToTable:     "users",
			ToColumns:   []string{"id"},
		}},
	}
}

func TestHasTableAndColumn(t *testing.T) {
	s := shopSchema()

	assert.True(t, s.HasTable("users"))
	assert.False(t, s.HasTable("invoices"))

	assert.True(t, s.HasColumn("users", "email"))
	assert.False(t, s.HasColumn("users", "total"))
	assert.False(t, s.HasColumn("invoices", "id"), "unknown table has no columns")
}

func TestColumnNames(t *testing.T) {
	s := shopSchema()
	assert.Equal(t, []string{"id", "name", "email"}, s.ColumnNames("users"))
	assert.Empty(t, s.ColumnNames("invoices"))
}
