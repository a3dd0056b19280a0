// internal/supervisor/synthesis/synthesizer_test.go
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/supervisor/types"
)

// fakeLLM scripts the text-synthesis service for unit tests.
type fakeLLM struct {
	text   string
	err    error
	calls  int
	blocks []LabeledBlock
}

func (f *fakeLLM) Synthesize(ctx context.Context, query string, blocks []LabeledBlock) (string, error) {
	f.calls++
	f.blocks = blocks
	return f.text, f.err
}

func newSynthesizerForTest(t *testing.T, llm TextSynthesizer) *Synthesizer {
	t.Helper()
	return NewSynthesizer(llm, logger.NewTestLogger(t))
}

func genuineResult(id types.SpecialistID, output string, confidence float64, sources ...types.SourceReference) *types.SpecialistResult {
	return &types.SpecialistResult{
		SpecialistID: id,
		Output:       output,
		Confidence:   confidence,
		Sources:      sources,
		TimingMs:     100,
	}
}

func stubbedResult(id types.SpecialistID, errText string) *types.SpecialistResult {
	return &types.SpecialistResult{
		SpecialistID: id,
		Output:       fmt.Sprintf("The %s specialist is temporarily unavailable and could not analyze this request.", id),
		Confidence:   0.3,
		TimingMs:     50,
		Error:        errText,
		Stub:         true,
	}
}

func TestSynthesizeResults_EmptyInput(t *testing.T) {
	llm := &fakeLLM{}
	s := newSynthesizerForTest(t, llm)

	resp := s.SynthesizeResults(context.Background(), "anything", nil)

	require.NotNil(t, resp)
	assert.Contains(t, resp.Content, "unable to find information")
	assert.Zero(t, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Specialists)
	assert.False(t, resp.WasSynthesized)
	assert.Zero(t, llm.calls)
}

func TestSynthesizeResults_SinglePassthroughVerbatim(t *testing.T) {
	llm := &fakeLLM{text: "should never be used"}
	s := newSynthesizerForTest(t, llm)

	src := types.SourceReference{DocumentID: "d1", RelevanceScore: 0.9}
	r := genuineResult(types.SpecialistFinancial, "EBITDA was $4.2M.", 0.85, src)

	resp := s.SynthesizeResults(context.Background(), "ebitda?", []*types.SpecialistResult{r})

	assert.Equal(t, "EBITDA was $4.2M.", resp.Content)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.Equal(t, []types.SpecialistID{types.SpecialistFinancial}, resp.Specialists)
	assert.False(t, resp.WasSynthesized)
	assert.Equal(t, int64(100), resp.TotalLatencyMs)
	assert.Zero(t, llm.calls, "single result must not invoke synthesis")
}

func TestSynthesizeResults_SingleErroredResult(t *testing.T) {
	s := newSynthesizerForTest(t, &fakeLLM{})

	r := stubbedResult(types.SpecialistFinancial, "[AGENT_TIMEOUT] Agent 'Financial Analyst' call exceeded 45s timeout")
	resp := s.SynthesizeResults(context.Background(), "q", []*types.SpecialistResult{r})

	assert.Contains(t, resp.Content, "encountered an issue")
	assert.Contains(t, resp.Content, "AGENT_TIMEOUT")
	assert.Equal(t, 0.3, resp.Confidence)
	assert.False(t, resp.WasSynthesized)
}

func TestSynthesizeResults_TwoGenuineMerged(t *testing.T) {
	llm := &fakeLLM{text: "Merged answer combining finance and graph."}
	s := newSynthesizerForTest(t, llm)

	results := []*types.SpecialistResult{
		genuineResult(types.SpecialistFinancial, "Finance view.", 0.8,
			types.SourceReference{DocumentID: "d1", RelevanceScore: 0.9},
			types.SourceReference{DocumentName: "Deck", ChunkID: "c1", RelevanceScore: 0.5}),
		genuineResult(types.SpecialistKnowledgeGraph, "Graph view.", 0.7,
			types.SourceReference{DocumentID: "d1", RelevanceScore: 0.6},
			types.SourceReference{DocumentID: "d2", RelevanceScore: 0.4}),
	}
	results[1].TimingMs = 250

	resp := s.SynthesizeResults(context.Background(), "q", results)

	assert.Equal(t, "Merged answer combining finance and graph.", resp.Content)
	assert.True(t, resp.WasSynthesized)
	assert.Equal(t, 1, llm.calls)
	require.Len(t, llm.blocks, 2)
	assert.Equal(t, "financial_analyst", llm.blocks[0].Label)

	// Distinct identity keys across both inputs: d1, Deck/c1, d2.
	assert.Len(t, resp.Sources, 3)
	assert.Equal(t, []types.SpecialistID{types.SpecialistFinancial, types.SpecialistKnowledgeGraph}, resp.Specialists)
	assert.Equal(t, int64(250), resp.TotalLatencyMs)
	assert.Greater(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
}

func TestSynthesizeResults_LLMFailureDegradesToLocalJoin(t *testing.T) {
	llm := &fakeLLM{err: errors.New("genai unreachable")}
	s := newSynthesizerForTest(t, llm)

	results := []*types.SpecialistResult{
		genuineResult(types.SpecialistFinancial, "Finance view.", 0.8),
		genuineResult(types.SpecialistKnowledgeGraph, "Graph view.", 0.7),
	}

	resp := s.SynthesizeResults(context.Background(), "q", results)

	assert.False(t, resp.WasSynthesized)
	// Both outputs survive, labeled, in order.
	assert.Contains(t, resp.Content, "[financial_analyst]")
	assert.Contains(t, resp.Content, "Finance view.")
	assert.Contains(t, resp.Content, "[knowledge_graph]")
	assert.Contains(t, resp.Content, "Graph view.")
}

func TestSynthesizeResults_OneGenuineOneStub(t *testing.T) {
	llm := &fakeLLM{text: "never"}
	s := newSynthesizerForTest(t, llm)

	results := []*types.SpecialistResult{
		genuineResult(types.SpecialistFinancial, "Finance view.", 0.8),
		stubbedResult(types.SpecialistKnowledgeGraph, "connection refused"),
	}
	results[1].TimingMs = 400

	resp := s.SynthesizeResults(context.Background(), "q", results)

	// The sole genuine answer passes through untouched.
	assert.Equal(t, "Finance view.", resp.Content)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.Equal(t, []types.SpecialistID{types.SpecialistFinancial}, resp.Specialists)
	assert.False(t, resp.WasSynthesized)
	assert.Equal(t, int64(400), resp.TotalLatencyMs)
	assert.Zero(t, llm.calls)
}

func TestSynthesizeResults_AllStubbed(t *testing.T) {
	s := newSynthesizerForTest(t, &fakeLLM{})

	results := []*types.SpecialistResult{
		stubbedResult(types.SpecialistFinancial, "timeout a"),
		stubbedResult(types.SpecialistKnowledgeGraph, "timeout b"),
	}

	resp := s.SynthesizeResults(context.Background(), "q", results)

	assert.Contains(t, resp.Content, "encountered an issue")
	assert.Contains(t, resp.Content, "timeout a")
	assert.Equal(t, 0.2, resp.Confidence)
	assert.False(t, resp.WasSynthesized)
}

func TestNeedsSynthesis(t *testing.T) {
	g1 := genuineResult(types.SpecialistFinancial, "a", 0.8)
	g2 := genuineResult(types.SpecialistKnowledgeGraph, "b", 0.7)
	bad := stubbedResult(types.SpecialistGeneral, "down")

	assert.False(t, NeedsSynthesis(nil))
	assert.False(t, NeedsSynthesis([]*types.SpecialistResult{g1}))
	assert.False(t, NeedsSynthesis([]*types.SpecialistResult{g1, bad}))
	assert.True(t, NeedsSynthesis([]*types.SpecialistResult{g1, g2}))
	assert.True(t, NeedsSynthesis([]*types.SpecialistResult{g1, g2, bad}))
}

func TestDeduplicateSources(t *testing.T) {
	in := []types.SourceReference{
		{DocumentID: "d1", RelevanceScore: 0.8},
		{DocumentName: "Deck", ChunkID: "c1", RelevanceScore: 0.5},
		{DocumentID: "d1", RelevanceScore: 0.9, Snippet: "better"},
		{DocumentName: "Deck", ChunkID: "c2"},
	}

	out := DeduplicateSources(in)

	require.Len(t, out, 3)
	// Higher score wins on collision and sorts first.
	assert.Equal(t, "d1", out[0].DocumentID)
	assert.Equal(t, 0.9, out[0].RelevanceScore)
	assert.Equal(t, "better", out[0].Snippet)
	assert.Equal(t, "c1", out[1].ChunkID)
	// The unscored entry sorts last.
	assert.Equal(t, "c2", out[2].ChunkID)
}

func TestDeduplicateSources_Idempotent(t *testing.T) {
	in := []types.SourceReference{
		{DocumentID: "d1", RelevanceScore: 0.8},
		{DocumentID: "d2", RelevanceScore: 0.6},
	}

	once := DeduplicateSources(in)
	twice := DeduplicateSources(once)

	assert.Equal(t, once, twice)
}

func TestCalculateAggregateConfidence(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Zero(t, CalculateAggregateConfidence(nil))
	})

	t.Run("all errored floors", func(t *testing.T) {
		results := []*types.SpecialistResult{
			stubbedResult(types.SpecialistFinancial, "x"),
			stubbedResult(types.SpecialistKnowledgeGraph, "y"),
		}
		assert.Equal(t, 0.2, CalculateAggregateConfidence(results))
	})

	t.Run("single genuine equals own confidence", func(t *testing.T) {
		results := []*types.SpecialistResult{genuineResult(types.SpecialistFinancial, "text", 0.77)}
		assert.InDelta(t, 0.77, CalculateAggregateConfidence(results), 1e-9)
	})

	t.Run("longer output weighs more", func(t *testing.T) {
		long := genuineResult(types.SpecialistFinancial, "a long detailed analysis with much more text", 0.9)
		short := genuineResult(types.SpecialistKnowledgeGraph, "brief", 0.3)

		agg := CalculateAggregateConfidence([]*types.SpecialistResult{long, short})
		assert.Greater(t, agg, 0.6, "the long high-confidence result must dominate")
		assert.Less(t, agg, 0.9)
	})

	t.Run("errored result confidence is halved", func(t *testing.T) {
		ok := genuineResult(types.SpecialistFinancial, "xxxx", 0.8)
		bad := &types.SpecialistResult{
			SpecialistID: types.SpecialistKnowledgeGraph,
			Output:       "yyyy",
			Confidence:   0.8,
			Error:        "boom",
		}

		// Equal lengths: average of 0.8 and 0.4.
		agg := CalculateAggregateConfidence([]*types.SpecialistResult{ok, bad})
		assert.InDelta(t, 0.6, agg, 1e-9)
	})

	t.Run("bounded to unit interval", func(t *testing.T) {
		hot := genuineResult(types.SpecialistFinancial, "text", 1.5)
		agg := CalculateAggregateConfidence([]*types.SpecialistResult{hot, genuineResult(types.SpecialistGeneral, "t", 1.2)})
		assert.LessOrEqual(t, agg, 1.0)
	})
}

func TestGetSynthesisStats(t *testing.T) {
	resp := &types.SynthesizedResponse{
		Content:        "hello",
		Confidence:     0.5,
		Sources:        []types.SourceReference{{DocumentID: "d1"}},
		Specialists:    []types.SpecialistID{types.SpecialistFinancial},
		WasSynthesized: true,
		TotalLatencyMs: 42,
	}

	stats := GetSynthesisStats(resp)
	assert.Equal(t, 1, stats.SpecialistCount)
	assert.Equal(t, 1, stats.SourceCount)
	assert.Equal(t, 5, stats.ContentLength)
	assert.Equal(t, 0.5, stats.Confidence)
	assert.True(t, stats.WasSynthesized)
	assert.Equal(t, int64(42), stats.LatencyMs)
}
