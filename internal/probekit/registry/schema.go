package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiledSchema wraps a compiled JSON Schema for argument validation.
type compiledSchema struct {
	schema *jsonschema.Schema
}

// compileSchema compiles an inline schema document. The schema is anchored
// at a synthetic URL so self-references resolve.
func compileSchema(name string, schema json.RawMessage) (*compiledSchema, error) {
	if !json.Valid(schema) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	url := "inline://" + name
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(u string) (io.ReadCloser, error) {
		if u == url {
			return io.NopCloser(bytes.NewReader(schema)), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", u)
	}
	if err := compiler.AddResource(url, bytes.NewReader(schema)); err != nil {
		return nil, err
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	return &compiledSchema{schema: sch}, nil
}

// validate checks a JSON document against the schema. The returned error
// reports the innermost violated constraint and its instance location.
func (cs *compiledSchema) validate(doc json.RawMessage) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := cs.schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := leafCause(ve)
			loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
			if loc == "" {
				loc = "(root)"
			}
			return fmt.Errorf("%s: %s", loc, leaf.Message)
		}
		return err
	}
	return nil
}

// leafCause descends to the deepest cause of a validation error.
func leafCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
