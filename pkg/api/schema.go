package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request body schemas. Compiled once at init; a compile failure is a
// programming error and panics on startup.
var (
	submitSchema      = mustCompile("submit", submitSchemaJSON)
	approveSchema     = mustCompile("approve", approveSchemaJSON)
	rejectSchema      = mustCompile("reject", rejectSchemaJSON)
	renegotiateSchema = mustCompile("renegotiate", renegotiateSchemaJSON)
)

const submitSchemaJSON = `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"text": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"type": {"type": "string", "enum": ["SERVICE", "NDA", "EMPLOYMENT", "LICENSING", "PURCHASE", "LEASE", "GENERAL"]},
		"value_cents": {"type": "integer", "minimum": 0},
		"submitted_by": {"type": "string"}
	},
	"additionalProperties": false
}`

const approveSchemaJSON = `{
	"type": "object",
	"properties": {
		"approver_id": {"type": "string"},
		"role": {"type": "string", "enum": ["AUTO", "MANAGER", "VP", "LEGAL", "CFO"]},
		"comments": {"type": "string"}
	},
	"additionalProperties": false
}`

const rejectSchemaJSON = `{
	"type": "object",
	"required": ["reason"],
	"properties": {
		"approver_id": {"type": "string"},
		"reason": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

const renegotiateSchemaJSON = `{
	"type": "object",
	"required": ["counter_terms"],
	"properties": {
		"counter_terms": {"type": "string", "minLength": 1},
		"submitted_by": {"type": "string"}
	},
	"additionalProperties": false
}`

func mustCompile(name, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://pactum.covenant.systems/schemas/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("api: schema %s load failed: %v", name, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("api: schema %s compile failed: %v", name, err))
	}
	return compiled
}

// decodeBody reads the request body, validates it against the schema,
// and unmarshals it into dst. Returns a client-facing error message on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("request body unreadable: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("request body failed validation: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
