// Package ir defines the typed intermediate representation for one SQL
// statement: a closed expression union, predicate chains, joins, CTEs,
// and the Query root, plus decoding from sanitized generator output and
// canonical serialization for persistence.
//
// The IR is independent of surface SQL syntax. SQL is only ever produced
// from it (internal/compile), never parsed back into it.
package ir
