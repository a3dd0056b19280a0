// internal/supervisor/dispatch/agent_call.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/common/httpclient"
	"supervisor-core/internal/supervisor/types"
)

// agentEnvelope is the wire envelope every agent endpoint returns.
type agentEnvelope struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	ModelUsed string          `json:"model_used,omitempty"`
	LatencyMs int64           `json:"latency_ms,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// agentSource is the citation shape agents report; mapped one-to-one onto
// SourceReference.
type agentSource struct {
	DocumentID     string  `json:"document_id,omitempty"`
	DocumentName   string  `json:"document_name,omitempty"`
	ChunkID        string  `json:"chunk_id,omitempty"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Snippet        string  `json:"snippet,omitempty"`
}

func mapSources(in []agentSource) []types.SourceReference {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.SourceReference, len(in))
	for i, s := range in {
		out[i] = types.SourceReference{
			DocumentID:     s.DocumentID,
			DocumentName:   s.DocumentName,
			ChunkID:        s.ChunkID,
			RelevanceScore: s.RelevanceScore,
			Snippet:        s.Snippet,
		}
	}
	return out
}

// agentCaller holds what every concrete agent needs to reach its endpoint.
type agentCaller struct {
	client  *httpclient.Client
	baseURL string
}

// invoke posts the agent-specific body to /api/agents/<name>/invoke and
// returns the decoded result payload. Every failure comes back as a
// *StandardError so the dispatcher can classify it; the original transport
// error text is preserved verbatim inside it.
func (c *agentCaller) invoke(ctx context.Context, agentName, organizationID string, body map[string]interface{}) (json.RawMessage, error) {
	if strings.TrimSpace(c.baseURL) == "" {
		return nil, serrors.NewAgentServiceUnconfiguredError(agentName)
	}

	url := fmt.Sprintf("%s/api/agents/%s/invoke", strings.TrimRight(c.baseURL, "/"), agentName)
	resp, err := c.client.PostJSON(ctx, url, body, map[string]string{
		"x-organization-id": organizationID,
	})
	if err != nil {
		return nil, serrors.NewAgentInvocationFailedError(agentName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serrors.NewAgentResponseInvalidError(agentName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serrors.NewAgentInvocationFailedError(agentName, err)
	}

	var envelope agentEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, serrors.NewAgentResponseInvalidError(agentName,
			fmt.Sprintf("malformed response body: %v", err))
	}
	if !envelope.Success {
		detail := envelope.Error
		if detail == "" {
			detail = "agent reported success=false without an error message"
		}
		return nil, serrors.NewAgentResponseInvalidError(agentName, detail)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil, serrors.NewAgentResponseInvalidError(agentName, "missing result payload")
	}

	return envelope.Result, nil
}

// renderSection appends a titled list section to the output builder, but
// only when the list is non-empty.
func renderSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(title)
	b.WriteString(":")
	for _, item := range items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
}

// intentContext extracts the free-text context agents receive from the
// prior intent classification.
func intentContext(qc *types.QueryContext) string {
	if qc.Intent == nil {
		return ""
	}
	return qc.Intent.Rationale
}
