// pkg/registry/schema.go
package registry

// SpecialistRegistry is the catalog of specialist agents known to the
// supervisor. It is loaded once at startup and immutable afterward.
type SpecialistRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Specialists []Specialist `json:"specialists"`
}

// Specialist describes one registered agent. Registration order in the
// catalog determines routing order.
type Specialist struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	Description      string   `json:"description,omitempty"`
	AgentName        string   `json:"agentName"` // endpoint path segment under /api/agents/
	Keywords         []string `json:"keywords"`  // empty only for the fallback specialist
	IntentAffinities []string `json:"intentAffinities,omitempty"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// registrySchema is the JSON Schema every catalog file must satisfy.
const registrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "specialists"],
  "properties": {
    "version": {"type": "string"},
    "lastUpdated": {"type": "string"},
    "specialists": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "displayName", "agentName", "keywords"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "displayName": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "agentName": {"type": "string", "minLength": 1},
          "keywords": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "intentAffinities": {"type": "array", "items": {"type": "string"}},
          "fallback": {"type": "boolean"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
