// Package schema defines the database schema description the core
// consumes read-only, plus a SQLite-backed reference introspector,
// structural fingerprinting, and prompt-text rendering.
package schema

// Column describes one column of a table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// ForeignKey describes a foreign-key constraint on a table.
type ForeignKey struct {
	ConstrainedColumns []string `json:"constrained_columns"`
	ReferredTable      string   `json:"referred_table"`
	ReferredColumns    []string `json:"referred_columns"`
}

// Index describes an index on a table.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Table describes one table: columns, foreign keys, indexes.
type Table struct {
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
}

// Relationship is a resolved foreign-key edge between two tables.
type Relationship struct {
	FromTable   string   `json:"from_table"`
	FromColumns []string `json:"from_columns"`
	ToTable     string   `json:"to_table"`
	ToColumns   []string `json:"to_columns"`
}

// Schema is the full schema description for one database. The core
// treats it as immutable; ownership stays with the schema collaborator.
type Schema struct {
	Database      string           `json:"database,omitempty"`
	Tables        map[string]Table `json:"tables"`
	Relationships []Relationship   `json:"relationships,omitempty"`
	Version       string           `json:"version,omitempty"`
}

// HasTable reports whether name is a known table.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.Tables[name]
	return ok
}

// HasColumn reports whether table exists and has the named column.
func (s *Schema) HasColumn(table, column string) bool {
	t, ok := s.Tables[table]
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}

// ColumnNames returns the column names of a table, or nil if unknown.
func (s *Schema) ColumnNames(table string) []string {
	t, ok := s.Tables[table]
	if !ok {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
