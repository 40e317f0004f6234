package sanitize

import (
	_ "embed"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed queryir.cue
var shapeCUE string

var (
	shapeOnce  sync.Once
	shapeValue cue.Value
)

// shapeSchema compiles the embedded CUE shape contract once.
func shapeSchema() cue.Value {
	shapeOnce.Do(func() {
		ctx := cuecontext.New()
		shapeValue = ctx.CompileString(shapeCUE, cue.Filename("queryir.cue"))
	})
	return shapeValue
}

// checkShape unifies the normalized document with the CUE shape contract
// and converts the first violation into an *Error.
func checkShape(doc map[string]any) error {
	schema := shapeSchema()
	if err := schema.Err(); err != nil {
		return &Error{Field: "schema", Message: cueerrors.Details(err, nil)}
	}

	value := schema.Context().Encode(doc)
	if err := value.Err(); err != nil {
		return &Error{Message: cueerrors.Details(err, nil)}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		errs := cueerrors.Errors(err)
		if len(errs) > 0 {
			first := errs[0]
			return &Error{
				Field:   strings.Join(first.Path(), "."),
				Message: first.Error(),
			}
		}
		return &Error{Message: err.Error()}
	}
	return nil
}
