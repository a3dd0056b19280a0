// internal/supervisor/pipeline_test.go
package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supervisor-core/internal/common/cache"
	"supervisor-core/internal/common/config"
	"supervisor-core/internal/common/httpclient"
	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/common/observability"
	"supervisor-core/internal/supervisor/dispatch"
	"supervisor-core/internal/supervisor/routing"
	"supervisor-core/internal/supervisor/synthesis"
	"supervisor-core/internal/supervisor/types"
	"supervisor-core/pkg/registry"
)

type scriptedLLM struct {
	text string
}

func (s *scriptedLLM) Synthesize(ctx context.Context, query string, blocks []synthesis.LabeledBlock) (string, error) {
	return s.text, nil
}

// recordingAgentService captures which agent endpoints were invoked.
type recordingAgentService struct {
	mu    sync.Mutex
	paths []string
	srv   *httptest.Server
}

func newRecordingAgentService(t *testing.T) *recordingAgentService {
	t.Helper()
	s := &recordingAgentService{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()

		data, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"summary":    "EBITDA for FY2025 was $4.2M.",
				"confidence": 0.85,
				"sources": []map[string]interface{}{
					{"document_id": "doc-1", "document_name": "FY25 Financials", "relevance_score": 0.9},
				},
			},
		})
		w.Write(data)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *recordingAgentService) invokedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

func newPipelineForTest(t *testing.T, baseURL string, responseCache *cache.ResponseCache) *Pipeline {
	t.Helper()

	reg := registry.Default()
	agents, err := dispatch.NewAgents(reg, config.AgentsConfig{BaseURL: baseURL}, httpclient.NewClient())
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	return NewPipeline(
		routing.NewRouter(reg),
		dispatch.NewDispatcher(agents, time.Second, log),
		synthesis.NewSynthesizer(&scriptedLLM{text: "merged"}, log),
		responseCache,
		&observability.Observability{},
		log,
	)
}

func TestPipeline_FinancialQueryRoutesToOneSpecialist(t *testing.T) {
	service := newRecordingAgentService(t)
	p := newPipelineForTest(t, service.srv.URL, nil)

	resp := p.Answer(context.Background(), &types.QueryContext{
		Query:          "What is the company EBITDA?",
		DealID:         "deal-1",
		OrganizationID: "org-1",
	})

	require.NotNil(t, resp)
	assert.Equal(t, "EBITDA for FY2025 was $4.2M.", resp.Content)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.False(t, resp.WasSynthesized)
	assert.Equal(t, []types.SpecialistID{types.SpecialistFinancial}, resp.Specialists)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "doc-1", resp.Sources[0].DocumentID)

	// Exactly one specialist was consulted, and it was the financial one.
	paths := service.invokedPaths()
	require.Len(t, paths, 1)
	assert.Equal(t, "/api/agents/financial-analyst/invoke", paths[0])
}

func TestPipeline_MultiSpecialistQuerySynthesizes(t *testing.T) {
	service := newRecordingAgentService(t)
	p := newPipelineForTest(t, service.srv.URL, nil)

	resp := p.Answer(context.Background(), &types.QueryContext{
		Query:          "How does the ownership structure affect EBITDA?",
		OrganizationID: "org-1",
	})

	assert.True(t, resp.WasSynthesized)
	assert.Equal(t, "merged", resp.Content)
	assert.Len(t, resp.Specialists, 2)
	assert.Len(t, service.invokedPaths(), 2)
}

func TestPipeline_AgentServiceDownDegradesGracefully(t *testing.T) {
	service := newRecordingAgentService(t)
	baseURL := service.srv.URL
	service.srv.Close()

	p := newPipelineForTest(t, baseURL, nil)

	resp := p.Answer(context.Background(), &types.QueryContext{
		Query:          "What is the company EBITDA?",
		OrganizationID: "org-1",
	})

	require.NotNil(t, resp)
	assert.Contains(t, resp.Content, "encountered an issue")
	assert.Equal(t, dispatch.StubConfidence, resp.Confidence)
	assert.False(t, resp.WasSynthesized)
}

func TestPipeline_GreetingFallsBackToGeneral(t *testing.T) {
	service := newRecordingAgentService(t)
	p := newPipelineForTest(t, service.srv.URL, nil)

	p.Answer(context.Background(), &types.QueryContext{
		Query:          "Hello there!",
		OrganizationID: "org-1",
		Intent:         &types.Intent{Domain: "greeting"},
	})

	paths := service.invokedPaths()
	require.Len(t, paths, 1)
	assert.Equal(t, "/api/agents/general/invoke", paths[0])
}

func TestPipeline_CacheShortCircuitsSecondCall(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	responseCache := cache.NewWithClient(rdb, time.Minute)

	service := newRecordingAgentService(t)
	p := newPipelineForTest(t, service.srv.URL, responseCache)

	qc := &types.QueryContext{Query: "What is the company EBITDA?", DealID: "d", OrganizationID: "o"}

	first := p.Answer(context.Background(), qc)
	second := p.Answer(context.Background(), qc)

	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Confidence, second.Confidence)
	// The second answer came from the cache, not the agent service.
	assert.Len(t, service.invokedPaths(), 1)
}
