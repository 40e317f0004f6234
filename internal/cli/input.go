package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/queryloom/internal/ir"
	"github.com/roach88/queryloom/internal/sanitize"
	"github.com/roach88/queryloom/internal/schema"
)

// LoadIR reads an IR document from path, normalizes its key variants,
// and decodes it to a typed query. "-" reads from stdin is not
// supported; commands take explicit file paths.
func LoadIR(path string) (*ir.Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("reading IR file %s", path), Err: err}
	}

	doc, err := sanitize.Normalize(raw)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("normalizing IR file %s", path), Err: err}
	}

	q, err := ir.Decode(doc)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("decoding IR file %s", path), Err: err}
	}
	return q, nil
}

// LoadSchema reads a schema description. The format is chosen by file
// extension: .json and .yaml/.yml files hold a serialized schema, any
// other extension is treated as a SQLite database to introspect.
func LoadSchema(ctx context.Context, path string) (*schema.Schema, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("reading schema file %s", path), Err: err}
		}
		var s schema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("parsing schema file %s", path), Err: err}
		}
		return &s, nil
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("reading schema file %s", path), Err: err}
		}
		var s schema.Schema
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("parsing schema file %s", path), Err: err}
		}
		return &s, nil
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("schema database not found: %s", path), Err: err}
		}
		s, err := schema.Introspect(ctx, path)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("introspecting %s", path), Err: err}
		}
		return s, nil
	}
}
