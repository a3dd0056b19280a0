// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SpecialistInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specialist_invocations_total",
			Help: "Total number of specialist agent invocations",
		},
		[]string{"specialist"},
	)

	SpecialistStubFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specialist_stub_fallbacks_total",
			Help: "Total number of invocations degraded to stub results",
		},
		[]string{"specialist", "error_code"},
	)

	SpecialistCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "specialist_call_duration_seconds",
			Help: "Duration of specialist agent calls in seconds",
		},
		[]string{"specialist"},
	)

	SynthesisPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synthesis_passes_total",
			Help: "Total number of multi-result text-synthesis passes",
		},
		[]string{"outcome"}, // "merged", "fallback_join"
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Synthesized-response cache lookups",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)
