// Package evidence validates and fetches trust evidence produced by the trust
// evaluation system.
package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

const schemaURL = "https://helm.schemas.local/authz/trust_evidence.schema.json"

// TrustEvidenceSchema is the JSON Schema of the trust evidence payload.
const TrustEvidenceSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["trust_matrix_id", "application_name", "overall_trust_index", "risk_tier", "pass_rate"],
  "properties": {
    "trust_matrix_id":     {"type": "string", "minLength": 1},
    "application_name":    {"type": "string", "minLength": 1},
    "archetype":           {"type": "string"},
    "overall_trust_index": {"type": "integer", "minimum": 0, "maximum": 100},
    "risk_tier":           {"type": "string", "minLength": 1},
    "pass_rate":           {"type": "number", "minimum": 0, "maximum": 100},
    "failed_tests":        {"type": "integer", "minimum": 0}
  }
}`

var compiled = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(TrustEvidenceSchema)); err != nil {
		panic(fmt.Sprintf("evidence schema load failed: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// Parse validates data against TrustEvidenceSchema and decodes it.
func Parse(data []byte) (*contracts.TrustEvidence, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &contracts.ValidationError{Field: "evidence", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, &contracts.ValidationError{Field: "evidence", Reason: err.Error()}
	}

	var ev contracts.TrustEvidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &contracts.ValidationError{Field: "evidence", Reason: err.Error()}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
