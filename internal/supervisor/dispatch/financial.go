// internal/supervisor/dispatch/financial.go
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/supervisor/types"
)

// financialAgent invokes the financial-analysis specialist: deal metrics,
// statements, valuation.
type financialAgent struct {
	caller      *agentCaller
	id          types.SpecialistID
	agentName   string
	displayName string
}

// financialResult is the strict shape of the financial agent's result
// payload. Summary is required; everything else defaults to empty.
type financialResult struct {
	Summary           string        `json:"summary"`
	Confidence        float64       `json:"confidence"`
	KeyFindings       []string      `json:"key_findings"`
	Contradictions    []string      `json:"contradictions"`
	Limitations       []string      `json:"limitations"`
	FollowUpQuestions []string      `json:"follow_up_questions"`
	Sources           []agentSource `json:"sources"`
}

func (a *financialAgent) ID() types.SpecialistID { return a.id }
func (a *financialAgent) DisplayName() string    { return a.displayName }

func (a *financialAgent) Invoke(ctx context.Context, qc *types.QueryContext) (*types.SpecialistResult, error) {
	body := map[string]interface{}{
		"query":           qc.Query,
		"deal_id":         qc.DealID,
		"organization_id": qc.OrganizationID,
		"context":         intentContext(qc),
	}

	raw, err := a.caller.invoke(ctx, a.agentName, qc.OrganizationID, body)
	if err != nil {
		return nil, err
	}

	var result financialResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "malformed result payload: "+err.Error())
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "result missing required field 'summary'")
	}

	var b strings.Builder
	b.WriteString(result.Summary)
	renderSection(&b, "Key Findings", result.KeyFindings)
	renderSection(&b, "Detected Contradictions", result.Contradictions)
	renderSection(&b, "Limitations", result.Limitations)
	renderSection(&b, "Follow-up Questions", result.FollowUpQuestions)

	return &types.SpecialistResult{
		SpecialistID: a.id,
		Output:       b.String(),
		Confidence:   result.Confidence,
		Sources:      mapSources(result.Sources),
	}, nil
}
