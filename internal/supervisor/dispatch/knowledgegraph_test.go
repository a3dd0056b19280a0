// internal/supervisor/dispatch/knowledgegraph_test.go
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supervisor-core/internal/common/httpclient"
	"supervisor-core/internal/supervisor/types"
)

func newKGAgentForTest(baseURL string) *knowledgeGraphAgent {
	return &knowledgeGraphAgent{
		caller:      &agentCaller{client: httpclient.NewClient(), baseURL: baseURL},
		id:          types.SpecialistKnowledgeGraph,
		agentName:   "knowledge-graph",
		displayName: "Knowledge Graph",
	}
}

func TestKnowledgeGraphAgent_Invoke_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agents/knowledge-graph/invoke", r.URL.Path)
		assert.Equal(t, "org-9", r.Header.Get("x-organization-id"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"company", "person"}, body["entity_types"])

		data, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"summary":            "Acme Holdings owns three operating subsidiaries.",
				"confidence":         0.81,
				"relationship_paths": []string{"Acme Holdings -> owns -> Acme Logistics"},
				"limitations":        []string{"Org chart dated 2023"},
				"sources": []map[string]interface{}{
					{"document_name": "Org Chart", "chunk_id": "c-12", "relevance_score": 0.75},
				},
			},
		})
		w.Write(data)
	}))
	defer server.Close()

	agent := newKGAgentForTest(server.URL)
	qc := &types.QueryContext{
		Query:          "Which entities does Acme own?",
		DealID:         "deal-3",
		OrganizationID: "org-9",
		Intent: &types.Intent{
			Domain:               "factual",
			SuggestedEntityTypes: []string{"company", "person"},
		},
	}

	result, err := agent.Invoke(context.Background(), qc)
	require.NoError(t, err)

	assert.Equal(t, types.SpecialistKnowledgeGraph, result.SpecialistID)
	assert.Contains(t, result.Output, "Acme Holdings owns three operating subsidiaries.")
	assert.Contains(t, result.Output, "Relationship Paths:")
	assert.Contains(t, result.Output, "- Acme Holdings -> owns -> Acme Logistics")
	assert.Contains(t, result.Output, "Limitations:")

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Org Chart", result.Sources[0].DocumentName)
	assert.Equal(t, "c-12", result.Sources[0].ChunkID)
}

func TestKnowledgeGraphAgent_Invoke_OmitsEntityTypesWhenAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["entity_types"]
		assert.False(t, present)

		data, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"result":  map[string]interface{}{"summary": "No graph matches.", "confidence": 0.4},
		})
		w.Write(data)
	}))
	defer server.Close()

	agent := newKGAgentForTest(server.URL)
	result, err := agent.Invoke(context.Background(), &types.QueryContext{Query: "entity?", OrganizationID: "o"})

	require.NoError(t, err)
	assert.Equal(t, "No graph matches.", result.Output)
}
