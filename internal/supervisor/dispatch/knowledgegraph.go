// internal/supervisor/dispatch/knowledgegraph.go
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/supervisor/types"
)

// knowledgeGraphAgent invokes the knowledge-graph specialist: entity and
// relationship traversal across deal documents.
type knowledgeGraphAgent struct {
	caller      *agentCaller
	id          types.SpecialistID
	agentName   string
	displayName string
}

type knowledgeGraphResult struct {
	Summary           string        `json:"summary"`
	Confidence        float64       `json:"confidence"`
	KeyFindings       []string      `json:"key_findings"`
	RelationshipPaths []string      `json:"relationship_paths"`
	Limitations       []string      `json:"limitations"`
	FollowUpQuestions []string      `json:"follow_up_questions"`
	Sources           []agentSource `json:"sources"`
}

func (a *knowledgeGraphAgent) ID() types.SpecialistID { return a.id }
func (a *knowledgeGraphAgent) DisplayName() string    { return a.displayName }

func (a *knowledgeGraphAgent) Invoke(ctx context.Context, qc *types.QueryContext) (*types.SpecialistResult, error) {
	body := map[string]interface{}{
		"query":           qc.Query,
		"deal_id":         qc.DealID,
		"organization_id": qc.OrganizationID,
		"context":         intentContext(qc),
	}
	if qc.Intent != nil && len(qc.Intent.SuggestedEntityTypes) > 0 {
		body["entity_types"] = qc.Intent.SuggestedEntityTypes
	}

	raw, err := a.caller.invoke(ctx, a.agentName, qc.OrganizationID, body)
	if err != nil {
		return nil, err
	}

	var result knowledgeGraphResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "malformed result payload: "+err.Error())
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "result missing required field 'summary'")
	}

	var b strings.Builder
	b.WriteString(result.Summary)
	renderSection(&b, "Key Findings", result.KeyFindings)
	renderSection(&b, "Relationship Paths", result.RelationshipPaths)
	renderSection(&b, "Limitations", result.Limitations)
	renderSection(&b, "Follow-up Questions", result.FollowUpQuestions)

	return &types.SpecialistResult{
		SpecialistID: a.id,
		Output:       b.String(),
		Confidence:   result.Confidence,
		Sources:      mapSources(result.Sources),
	}, nil
}
