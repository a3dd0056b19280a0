// internal/supervisor/pipeline.go
// Package supervisor wires the routing, dispatch, and synthesis stages into
// the query pipeline exposed to the transport layer.
package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"supervisor-core/internal/common/cache"
	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/common/metrics"
	"supervisor-core/internal/common/observability"
	"supervisor-core/internal/supervisor/dispatch"
	"supervisor-core/internal/supervisor/routing"
	"supervisor-core/internal/supervisor/synthesis"
	"supervisor-core/internal/supervisor/types"
)

// Pipeline executes one user query end to end. It never returns an error:
// every internal failure degrades into the response content, so the caller
// always has something to show the user.
type Pipeline struct {
	router      *routing.Router
	dispatcher  *dispatch.Dispatcher
	synthesizer *synthesis.Synthesizer
	cache       *cache.ResponseCache // nil when caching is disabled
	obs         *observability.Observability
	logger      logger.Logger
}

func NewPipeline(
	router *routing.Router,
	dispatcher *dispatch.Dispatcher,
	synthesizer *synthesis.Synthesizer,
	responseCache *cache.ResponseCache,
	obs *observability.Observability,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		router:      router,
		dispatcher:  dispatcher,
		synthesizer: synthesizer,
		cache:       responseCache,
		obs:         obs,
		logger:      log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Answer runs route, dispatch, and synthesize for one query.
func (p *Pipeline) Answer(ctx context.Context, qc *types.QueryContext) *types.SynthesizedResponse {
	start := time.Now()
	requestID := uuid.NewString()

	log := p.logger.WithFields(map[string]interface{}{
		"requestId":      requestID,
		"organizationId": qc.OrganizationID,
		"dealId":         qc.DealID,
	})
	log.Info("query received", map[string]interface{}{"queryLength": len(qc.Query)})

	if cached, ok := p.cache.Get(ctx, qc); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		p.obs.RecordQueryProcessed(ctx, "cache_hit")
		log.Info("served from cache", map[string]interface{}{"elapsedMs": time.Since(start).Milliseconds()})
		return cached
	}
	if p.cache != nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	route := p.router.RouteToSpecialists(qc.Intent, qc.Query)
	log.Info("routing decided", map[string]interface{}{
		"specialists":     route.Specialists,
		"isParallel":      route.IsParallel,
		"matchedKeywords": route.MatchedKeywords,
		"rationale":       route.Rationale,
	})

	results := p.dispatcher.Dispatch(ctx, qc, route.Specialists)

	resp := p.synthesizer.SynthesizeResults(ctx, qc.Query, results)
	resp.TotalLatencyMs = time.Since(start).Milliseconds()

	if err := p.cache.Set(ctx, qc, resp); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn("response cache write failed", map[string]interface{}{"error": err.Error()})
	}

	status := "success"
	for _, r := range results {
		if r.Stub {
			status = "degraded"
			break
		}
	}
	p.obs.RecordQueryProcessed(ctx, status)
	p.obs.RecordPipelineDuration(ctx, time.Since(start), status)

	stats := synthesis.GetSynthesisStats(resp)
	log.Info("query answered", map[string]interface{}{
		"status":          status,
		"specialistCount": stats.SpecialistCount,
		"sourceCount":     stats.SourceCount,
		"confidence":      stats.Confidence,
		"wasSynthesized":  stats.WasSynthesized,
		"elapsedMs":       resp.TotalLatencyMs,
	})
	return resp
}
