package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// TableDiff describes column-level changes to one table.
type TableDiff struct {
	AddedColumns    []string `json:"added_columns,omitempty"`
	RemovedColumns  []string `json:"removed_columns,omitempty"`
	ModifiedColumns []string `json:"modified_columns,omitempty"`
}

// Changes describes the structural difference between two schema versions.
// Consumers use it to invalidate caches keyed on the old fingerprint.
type Changes struct {
	AddedTables          []string             `json:"added_tables,omitempty"`
	RemovedTables        []string             `json:"removed_tables,omitempty"`
	ModifiedTables       map[string]TableDiff `json:"modified_tables,omitempty"`
	AddedRelationships   []Relationship       `json:"added_relationships,omitempty"`
	RemovedRelationships []Relationship       `json:"removed_relationships,omitempty"`
}

// Empty reports whether the two schemas were structurally identical.
func (c *Changes) Empty() bool {
	return len(c.AddedTables) == 0 &&
		len(c.RemovedTables) == 0 &&
		len(c.ModifiedTables) == 0 &&
		len(c.AddedRelationships) == 0 &&
		len(c.RemovedRelationships) == 0
}

// Diff computes the changes from old to new.
func Diff(old, new *Schema) *Changes {
	changes := &Changes{ModifiedTables: map[string]TableDiff{}}

	for name := range new.Tables {
		if _, ok := old.Tables[name]; !ok {
			changes.AddedTables = append(changes.AddedTables, name)
		}
	}
	for name := range old.Tables {
		if _, ok := new.Tables[name]; !ok {
			changes.RemovedTables = append(changes.RemovedTables, name)
		}
	}
	sort.Strings(changes.AddedTables)
	sort.Strings(changes.RemovedTables)

	for name, oldTable := range old.Tables {
		newTable, ok := new.Tables[name]
		if !ok {
			continue
		}
		if d := diffTable(oldTable, newTable); d != nil {
			changes.ModifiedTables[name] = *d
		}
	}
	if len(changes.ModifiedTables) == 0 {
		changes.ModifiedTables = nil
	}

	oldRels := relSet(old.Relationships)
	newRels := relSet(new.Relationships)
	for _, r := range new.Relationships {
		if _, ok := oldRels[relKey(r)]; !ok {
			changes.AddedRelationships = append(changes.AddedRelationships, r)
		}
	}
	for _, r := range old.Relationships {
		if _, ok := newRels[relKey(r)]; !ok {
			changes.RemovedRelationships = append(changes.RemovedRelationships, r)
		}
	}

	return changes
}

func diffTable(old, new Table) *TableDiff {
	oldCols := map[string]Column{}
	for _, c := range old.Columns {
		oldCols[c.Name] = c
	}
	newCols := map[string]Column{}
	for _, c := range new.Columns {
		newCols[c.Name] = c
	}

	d := TableDiff{}
	for name := range newCols {
		if _, ok := oldCols[name]; !ok {
			d.AddedColumns = append(d.AddedColumns, name)
		}
	}
	for name, oc := range oldCols {
		nc, ok := newCols[name]
		if !ok {
			d.RemovedColumns = append(d.RemovedColumns, name)
			continue
		}
		if !reflect.DeepEqual(oc, nc) {
			d.ModifiedColumns = append(d.ModifiedColumns, name)
		}
	}
	sort.Strings(d.AddedColumns)
	sort.Strings(d.RemovedColumns)
	sort.Strings(d.ModifiedColumns)

	if len(d.AddedColumns) == 0 && len(d.RemovedColumns) == 0 && len(d.ModifiedColumns) == 0 {
		return nil
	}
	return &d
}

func relSet(rels []Relationship) map[string]struct{} {
	set := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		set[relKey(r)] = struct{}{}
	}
	return set
}

// relKey builds a unique key for a relationship edge.
func relKey(r Relationship) string {
	return fmt.Sprintf("%s.%s->%s.%s",
		r.FromTable, strings.Join(r.FromColumns, ","),
		r.ToTable, strings.Join(r.ToColumns, ","))
}
