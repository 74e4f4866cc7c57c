package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema is the wire shape of POST /api/submit. Requests that do
// not carry the structural members are rejected before the pipeline runs;
// the pipeline's own gates then judge the values. The signature member is
// deliberately NOT required here: its absence is a distinct protocol
// outcome owned by the pipeline's signature-presence gate, not a malformed
// request.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["payload", "timestamp", "nonce", "csrfToken"],
  "properties": {
    "payload":   {"type": "string", "minLength": 1},
    "signature": {"type": "string"},
    "timestamp": {"type": "string"},
    "nonce":     {"type": "string"},
    "csrfToken": {"type": "string"}
  }
}`

// compileEnvelopeSchema compiles the embedded schema once at startup.
func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const url = "https://intake.schemas.local/envelope.schema.json"
	if err := c.AddResource(url, strings.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("envelope schema load failed: %w", err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("envelope schema compile failed: %w", err)
	}
	return schema, nil
}
