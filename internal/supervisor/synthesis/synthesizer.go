// internal/supervisor/synthesis/synthesizer.go
package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/common/metrics"
	"supervisor-core/internal/supervisor/types"
)

const (
	// errorConfidencePenalty discounts, without zeroing, the confidence of
	// results that carry an error: a partially-useful stub is still
	// informative context.
	errorConfidencePenalty = 0.5

	// allErrorConfidenceFloor is returned when every input result carries
	// an error, instead of a misleadingly precise computed average.
	// TODO: derivation of this constant is unspecified policy carried over
	// for compatibility; recalibrate together with the length weighting.
	allErrorConfidenceFloor = 0.2

	noResultsContent = "I was unable to find information to answer this question. " +
		"Try rephrasing it, or ask about a specific document or metric."
)

// LabeledBlock is one specialist's output handed to the text-synthesis
// service.
type LabeledBlock struct {
	Label string
	Text  string
}

// TextSynthesizer merges labeled specialist outputs into one answer. It is
// consumed only when at least two genuine results exist.
type TextSynthesizer interface {
	Synthesize(ctx context.Context, query string, blocks []LabeledBlock) (string, error)
}

// Synthesizer turns the dispatch layer's result set into the final
// response. It has no fatal failure mode: a broken synthesis service
// degrades to locally-joined output.
type Synthesizer struct {
	llm    TextSynthesizer
	logger logger.Logger
}

func NewSynthesizer(llm TextSynthesizer, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		llm:    llm,
		logger: log.WithFields(map[string]interface{}{"component": "synthesizer"}),
	}
}

// SynthesizeResults produces the terminal SynthesizedResponse for a query.
func (s *Synthesizer) SynthesizeResults(ctx context.Context, query string, results []*types.SpecialistResult) *types.SynthesizedResponse {
	switch {
	case len(results) == 0:
		// Terminal, non-error outcome: the pipeline ran and found nothing.
		return &types.SynthesizedResponse{
			Content:        noResultsContent,
			Confidence:     0,
			Sources:        []types.SourceReference{},
			Specialists:    []types.SpecialistID{},
			WasSynthesized: false,
		}

	case len(results) == 1:
		return s.passthrough(results[0])
	}

	genuine := genuineResults(results)
	if len(genuine) < 2 {
		return s.degradedMulti(results, genuine)
	}

	return s.merge(ctx, query, results, genuine)
}

// passthrough preserves a single specialist's answer verbatim rather than
// paraphrasing it through a second model pass.
func (s *Synthesizer) passthrough(r *types.SpecialistResult) *types.SynthesizedResponse {
	content := r.Output
	if r.Error != "" {
		content = fmt.Sprintf("I encountered an issue while processing your request: %s", r.Error)
	}

	return &types.SynthesizedResponse{
		Content:        content,
		Confidence:     r.Confidence,
		Sources:        DeduplicateSources(r.Sources),
		Specialists:    []types.SpecialistID{r.SpecialistID},
		WasSynthesized: false,
		TotalLatencyMs: r.TimingMs,
	}
}

// degradedMulti handles multiple results of which fewer than two are
// genuine: the best genuine answer passes through untouched, or, with none
// at all, the failure is reported explicitly.
func (s *Synthesizer) degradedMulti(results, genuine []*types.SpecialistResult) *types.SynthesizedResponse {
	if len(genuine) == 1 {
		resp := s.passthrough(genuine[0])
		resp.TotalLatencyMs = maxTiming(results)
		return resp
	}

	return &types.SynthesizedResponse{
		Content:        fmt.Sprintf("I encountered an issue while processing your request: %s", results[0].Error),
		Confidence:     CalculateAggregateConfidence(results),
		Sources:        deduplicateAll(results),
		Specialists:    contributingIDs(results),
		WasSynthesized: false,
		TotalLatencyMs: maxTiming(results),
	}
}

// merge invokes the text-synthesis service over the genuine outputs. A
// synthesis-service failure falls back to locally-joined labeled output
// rather than failing the pipeline.
func (s *Synthesizer) merge(ctx context.Context, query string, results, genuine []*types.SpecialistResult) *types.SynthesizedResponse {
	blocks := make([]LabeledBlock, 0, len(genuine))
	for _, r := range genuine {
		blocks = append(blocks, LabeledBlock{Label: string(r.SpecialistID), Text: r.Output})
	}

	content, err := s.llm.Synthesize(ctx, query, blocks)
	wasSynthesized := true
	if err != nil || strings.TrimSpace(content) == "" {
		if err != nil {
			s.logger.Warn("text synthesis failed; joining outputs locally", map[string]interface{}{
				"error":      err.Error(),
				"blockCount": len(blocks),
			})
		}
		metrics.SynthesisPasses.WithLabelValues("fallback_join").Inc()
		content = joinBlocks(blocks)
		wasSynthesized = false
	} else {
		metrics.SynthesisPasses.WithLabelValues("merged").Inc()
	}

	return &types.SynthesizedResponse{
		Content:        content,
		Confidence:     CalculateAggregateConfidence(results),
		Sources:        deduplicateAll(results),
		Specialists:    contributingIDs(results),
		WasSynthesized: wasSynthesized,
		TotalLatencyMs: maxTiming(results),
	}
}

// NeedsSynthesis reports whether the heavier multi-result path applies:
// at least two results, at least two of them error-free.
func NeedsSynthesis(results []*types.SpecialistResult) bool {
	if len(results) < 2 {
		return false
	}
	errorFree := 0
	for _, r := range results {
		if r.Error == "" {
			errorFree++
		}
	}
	return errorFree >= 2
}

// DeduplicateSources merges citations by identity key (document id, else
// the name/chunk pair), keeping the higher relevance score on collision.
// Output is sorted by descending relevance; unscored entries sort after all
// scored ones, stable among equals.
func DeduplicateSources(sources []types.SourceReference) []types.SourceReference {
	out := make([]types.SourceReference, 0, len(sources))
	index := make(map[string]int, len(sources))

	for _, src := range sources {
		key := src.IdentityKey()
		if i, ok := index[key]; ok {
			if src.RelevanceScore > out[i].RelevanceScore {
				out[i] = src
			}
			continue
		}
		index[key] = len(out)
		out = append(out, src)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

// CalculateAggregateConfidence computes a weighted average of result
// confidences, weighted by output text length. Verbosity as a proxy for
// depth of analysis is a carried-over heuristic, not a claim of semantic
// correctness; preserve the observable behavior (longer plus higher
// confidence weighs more) when touching this.
func CalculateAggregateConfidence(results []*types.SpecialistResult) float64 {
	if len(results) == 0 {
		return 0
	}

	allErrored := true
	for _, r := range results {
		if r.Error == "" {
			allErrored = false
			break
		}
	}
	if allErrored {
		return allErrorConfidenceFloor
	}

	var weightedSum, totalWeight float64
	for _, r := range results {
		weight := float64(len(r.Output))
		if weight == 0 {
			weight = 1
		}
		effective := r.Confidence
		if r.Error != "" {
			effective *= errorConfidencePenalty
		}
		weightedSum += effective * weight
		totalWeight += weight
	}

	agg := weightedSum / totalWeight
	if agg < 0 {
		return 0
	}
	if agg > 1 {
		return 1
	}
	return agg
}

// GetSynthesisStats derives logging fields from a response. No behavioral
// effect.
func GetSynthesisStats(resp *types.SynthesizedResponse) types.SynthesisStats {
	return types.SynthesisStats{
		SpecialistCount: len(resp.Specialists),
		SourceCount:     len(resp.Sources),
		ContentLength:   len(resp.Content),
		Confidence:      resp.Confidence,
		WasSynthesized:  resp.WasSynthesized,
		LatencyMs:       resp.TotalLatencyMs,
	}
}

func genuineResults(results []*types.SpecialistResult) []*types.SpecialistResult {
	var out []*types.SpecialistResult
	for _, r := range results {
		if r.IsGenuine() && strings.TrimSpace(r.Output) != "" {
			out = append(out, r)
		}
	}
	return out
}

// contributingIDs lists every specialist that produced output, including
// those whose result carried zero weight in the aggregate.
func contributingIDs(results []*types.SpecialistResult) []types.SpecialistID {
	ids := make([]types.SpecialistID, 0, len(results))
	for _, r := range results {
		if r.Output != "" {
			ids = append(ids, r.SpecialistID)
		}
	}
	return ids
}

func deduplicateAll(results []*types.SpecialistResult) []types.SourceReference {
	var all []types.SourceReference
	for _, r := range results {
		all = append(all, r.Sources...)
	}
	return DeduplicateSources(all)
}

// maxTiming returns the wall-clock bound of a parallel dispatch: the
// slowest contributing call.
func maxTiming(results []*types.SpecialistResult) int64 {
	var max int64
	for _, r := range results {
		if r.TimingMs > max {
			max = r.TimingMs
		}
	}
	return max
}

func joinBlocks(blocks []LabeledBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, fmt.Sprintf("[%s]\n%s", b.Label, b.Text))
	}
	return strings.Join(parts, "\n\n")
}
