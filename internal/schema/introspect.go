package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Introspect extracts the full schema from a SQLite database file.
//
// This is the reference implementation of the external schema
// collaborator: production deployments substitute their own extractor
// behind the same Schema shape. Uses PRAGMA table_info,
// foreign_key_list, and index_list.
func Introspect(ctx context.Context, path string) (*Schema, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Schema{
		Database: path,
		Tables:   make(map[string]Table),
	}

	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		table, rels, err := introspectTable(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		s.Tables[name] = table
		s.Relationships = append(s.Relationships, rels...)
	}

	version, err := Fingerprint(s)
	if err != nil {
		return nil, err
	}
	s.Version = version

	return s, nil
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func introspectTable(ctx context.Context, db *sql.DB, name string) (Table, []Relationship, error) {
	table := Table{}

	cols, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return Table{}, nil, fmt.Errorf("table_info: %w", err)
	}
	defer cols.Close()

	for cols.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := cols.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return Table{}, nil, fmt.Errorf("scan column: %w", err)
		}
		table.Columns = append(table.Columns, Column{
			Name:       colName,
			Type:       colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	if err := cols.Err(); err != nil {
		return Table{}, nil, err
	}

	fks, rels, err := foreignKeys(ctx, db, name)
	if err != nil {
		return Table{}, nil, err
	}
	table.ForeignKeys = fks

	idxs, err := indexes(ctx, db, name)
	if err != nil {
		return Table{}, nil, err
	}
	table.Indexes = idxs

	return table, rels, nil
}

func foreignKeys(ctx context.Context, db *sql.DB, table string) ([]ForeignKey, []Relationship, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, nil, fmt.Errorf("foreign_key_list: %w", err)
	}
	defer rows.Close()

	// Multi-column FKs share an id; group rows by it.
	type fkGroup struct {
		referred string
		from     []string
		to       []string
	}
	groups := map[int]*fkGroup{}
	var order []int

	for rows.Next() {
		var (
			id, seq                         int
			referred, from, to              string
			onUpdate, onDelete, matchClause string
		)
		if err := rows.Scan(&id, &seq, &referred, &from, &to, &onUpdate, &onDelete, &matchClause); err != nil {
			return nil, nil, fmt.Errorf("scan foreign key: %w", err)
		}
		g, ok := groups[id]
		if !ok {
			g = &fkGroup{referred: referred}
			groups[id] = g
			order = append(order, id)
		}
		g.from = append(g.from, from)
		g.to = append(g.to, to)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.Ints(order)
	var fks []ForeignKey
	var rels []Relationship
	for _, id := range order {
		g := groups[id]
		fks = append(fks, ForeignKey{
			ConstrainedColumns: g.from,
			ReferredTable:      g.referred,
			ReferredColumns:    g.to,
		})
		rels = append(rels, Relationship{
			FromTable:   table,
			FromColumns: g.from,
			ToTable:     g.referred,
			ToColumns:   g.to,
		})
	}
	return fks, rels, nil
}

func indexes(ctx context.Context, db *sql.DB, table string) ([]Index, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("index_list: %w", err)
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
	}
	var metas []idxMeta
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		metas = append(metas, idxMeta{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var idxs []Index
	for _, m := range metas {
		cols, err := indexColumns(ctx, db, m.name)
		if err != nil {
			return nil, err
		}
		idxs = append(idxs, Index{Name: m.name, Columns: cols, Unique: m.unique})
	}
	return idxs, nil
}

func indexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, fmt.Errorf("index_info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scan index column: %w", err)
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}
