package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource []byte

// ValidationError lists every schema violation in a configuration.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate checks c against the embedded schema. The program ID is also
// decoded, since the schema only checks its alphabet.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	val := def.Unify(ctx.Encode(c))

	var problems []string
	if err := val.Validate(cue.Concrete(true)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, describe(e))
		}
	}
	if _, err := c.ProgramID(); err != nil && len(problems) == 0 {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(e cueerrors.Error) string {
	path := strings.Join(e.Path(), ".")
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if path == "" {
		return msg
	}
	return path + ": " + msg
}
