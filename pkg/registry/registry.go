// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Load reads and validates a specialist catalog from disk.
func Load(path string) (*SpecialistRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates raw catalog JSON against the registry schema and decodes
// it. Keywords are lowercased on load so routing never has to normalize
// the table again.
func Parse(data []byte) (*SpecialistRegistry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(registrySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("invalid specialist registry: %s", strings.Join(problems, "; "))
	}

	var reg SpecialistRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	if err := checkInvariants(&reg); err != nil {
		return nil, err
	}

	for i := range reg.Specialists {
		for j, kw := range reg.Specialists[i].Keywords {
			reg.Specialists[i].Keywords[j] = strings.ToLower(kw)
		}
	}

	return &reg, nil
}

// checkInvariants enforces catalog rules the schema cannot express.
func checkInvariants(reg *SpecialistRegistry) error {
	seen := make(map[string]bool, len(reg.Specialists))
	fallbacks := 0

	for _, s := range reg.Specialists {
		if seen[s.ID] {
			return fmt.Errorf("duplicate specialist id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Fallback {
			fallbacks++
			if len(s.Keywords) > 0 {
				return fmt.Errorf("fallback specialist %q must not have a keyword table", s.ID)
			}
		} else if len(s.Keywords) == 0 {
			return fmt.Errorf("specialist %q has an empty keyword table", s.ID)
		}
	}

	if fallbacks != 1 {
		return fmt.Errorf("registry must declare exactly one fallback specialist, found %d", fallbacks)
	}
	return nil
}

// ByID returns the specialist with the given id, or nil.
func (r *SpecialistRegistry) ByID(id string) *Specialist {
	for i := range r.Specialists {
		if r.Specialists[i].ID == id {
			return &r.Specialists[i]
		}
	}
	return nil
}

// FallbackID returns the id of the designated fallback specialist.
func (r *SpecialistRegistry) FallbackID() string {
	for _, s := range r.Specialists {
		if s.Fallback {
			return s.ID
		}
	}
	return ""
}

// Default returns the built-in catalog used when no registry file is
// configured. Kept in sync with configs/specialist-registry.json.
func Default() *SpecialistRegistry {
	return &SpecialistRegistry{
		Version: "1.0.0",
		Specialists: []Specialist{
			{
				ID:          "financial_analyst",
				DisplayName: "Financial Analyst",
				Description: "Deal financials: metrics, statements, valuation",
				AgentName:   "financial-analyst",
				Keywords: []string{
					"ebitda", "revenue", "margin", "cash flow", "valuation",
					"profit", "income statement", "balance sheet", "debt",
					"capex", "working capital", "multiple", "earnings",
					"financial", "growth rate",
				},
				IntentAffinities: []string{"analytical"},
			},
			{
				ID:          "knowledge_graph",
				DisplayName: "Knowledge Graph",
				Description: "Entity and relationship traversal across deal documents",
				AgentName:   "knowledge-graph",
				Keywords: []string{
					"entity", "relationship", "related", "connected", "graph",
					"ownership", "subsidiary", "who owns", "linked", "network",
					"between", "structure",
				},
				IntentAffinities: []string{"factual"},
			},
			{
				ID:          "general",
				DisplayName: "General Assistant",
				Description: "Fallback for queries no specialist claims",
				AgentName:   "general",
				Keywords:    []string{},
				Fallback:    true,
			},
		},
	}
}
