// internal/supervisor/dispatch/general.go
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/supervisor/types"
)

// generalAgent invokes the fallback assistant used when no specialist
// claims the query.
type generalAgent struct {
	caller      *agentCaller
	id          types.SpecialistID
	agentName   string
	displayName string
}

type generalResult struct {
	Summary    string        `json:"summary"`
	Confidence float64       `json:"confidence"`
	Sources    []agentSource `json:"sources"`
}

func (a *generalAgent) ID() types.SpecialistID { return a.id }
func (a *generalAgent) DisplayName() string    { return a.displayName }

func (a *generalAgent) Invoke(ctx context.Context, qc *types.QueryContext) (*types.SpecialistResult, error) {
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

	var result generalResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "malformed result payload: "+err.Error())
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, serrors.NewAgentResponseInvalidError(a.agentName, "result missing required field 'summary'")
	}

	return &types.SpecialistResult{
		SpecialistID: a.id,
		Output:       result.Summary,
		Confidence:   result.Confidence,
		Sources:      mapSources(result.Sources),
	}, nil
}
