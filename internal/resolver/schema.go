package resolver

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const resolveHandleSchemaURL = "resolve-handle.schema.json"

// resolveHandleSchema describes the com.atproto.identity.resolveHandle output
const resolveHandleSchema = `{
  "type": "object",
  "required": ["did"],
  "properties": {
    "did": {"type": "string", "pattern": "^did:[a-z]+:"}
  }
}`

var (
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
	compileOnce       sync.Once
)

func handleSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(resolveHandleSchema))
		if err != nil {
			compiledSchemaErr = fmt.Errorf("failed to parse resolveHandle schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(resolveHandleSchemaURL, doc); err != nil {
			compiledSchemaErr = fmt.Errorf("failed to add resolveHandle schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = c.Compile(resolveHandleSchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// validateHandleResponse checks a resolveHandle body against the schema
func validateHandleResponse(body []byte) error {
	schema, err := handleSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
