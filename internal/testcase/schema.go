package testcase

import (
	_ "embed"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// ErrSchema is returned when a case does not satisfy the #Case definition.
var ErrSchema = errors.New("test case does not match schema")

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	caseDef    cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = errors.Wrap(err, "compile case schema")
			return
		}
		caseDef = v.LookupPath(cue.ParsePath("#Case"))
		schemaErr = caseDef.Err()
	})
	return schemaCtx, caseDef, schemaErr
}

// Validate checks the case's raw tree against the embedded CUE #Case
// definition: closed top-level keys, one title per mockup entry, a positive
// integer age and well-typed documentation.
func Validate(c *Case) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	data := ctx.Encode(ir.ToAny(c.Raw))
	if err := data.Err(); err != nil {
		return errors.Wrapf(err, "encode case %s", c.ID)
	}
	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return errors.WithDetail(
			errors.Wrapf(ErrSchema, "case %s: %s", c.ID, cueerrors.Details(err, nil)),
			"see schema.cue in the testcase package for the accepted shape",
		)
	}
	return nil
}
