package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiled is a JSON Schema compiled once and reused across validations.
// Workflow documents are checked against one on every registration, so the
// compile cost is paid up front.
type Compiled struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema payload under the given id.
func Compile(id string, schema []byte) (*Compiled, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema is empty")
	}
	resourceID := schemaID(id)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceID, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Compiled{schema: compiled}, nil
}

// MustCompile is Compile for embedded schemas that are known to be valid.
func MustCompile(id string, schema []byte) *Compiled {
	c, err := Compile(id, schema)
	if err != nil {
		panic(fmt.Sprintf("schema %s: %v", id, err))
	}
	return c
}

// Validate checks a value against the compiled schema.
func (c *Compiled) Validate(value any) error {
	payload, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("normalize payload: %w", err)
	}
	if err := c.schema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidateSchema validates a value against a JSON schema payload, compiling it
// for this call only. Use Compile for schemas validated repeatedly.
func ValidateSchema(id string, schema []byte, value any) error {
	compiled, err := Compile(id, schema)
	if err != nil {
		return err
	}
	return compiled.Validate(value)
}

func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return out, nil
	case []byte:
		var out any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return out, nil
	default:
		return value, nil
	}
}

func schemaID(id string) string {
	if id == "" {
		id = "schema"
	}
	return "inmemory://" + id
}
