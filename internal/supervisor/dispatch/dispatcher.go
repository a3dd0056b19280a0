// internal/supervisor/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"supervisor-core/internal/common/config"
	serrors "supervisor-core/internal/common/errors"
	"supervisor-core/internal/common/httpclient"
	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/common/metrics"
	"supervisor-core/internal/supervisor/types"
	"supervisor-core/pkg/registry"
)

const (
	// DefaultTimeout bounds every specialist call. The known specialists
	// share the same constant; deployments override it via agents.timeout.
	DefaultTimeout = 45 * time.Second

	// StubConfidence is the low but non-zero confidence assigned to
	// degraded placeholder results.
	StubConfidence = 0.3
)

// Agent is one specialist's invocation variant. Adding a specialist means
// adding a new implementation and wiring it in NewAgents; nothing branches
// on loosely-typed response fields.
type Agent interface {
	ID() types.SpecialistID
	DisplayName() string
	Invoke(ctx context.Context, qc *types.QueryContext) (*types.SpecialistResult, error)
}

// Dispatcher fans a query out to the routed specialists and joins on all of
// them. It never returns fewer results than specialists routed, and no
// failure propagates past it: anything that goes wrong inside one call
// degrades to a stub result for that specialist only.
type Dispatcher struct {
	agents  map[types.SpecialistID]Agent
	timeout time.Duration
	logger  logger.Logger
}

// NewAgents constructs the closed set of agent implementations declared in
// the catalog. An id without an implementation is a wiring bug surfaced at
// startup, not at query time.
func NewAgents(reg *registry.SpecialistRegistry, cfg config.AgentsConfig, client *httpclient.Client) (map[types.SpecialistID]Agent, error) {
	caller := &agentCaller{client: client, baseURL: cfg.BaseURL}

	agents := make(map[types.SpecialistID]Agent, len(reg.Specialists))
	for _, s := range reg.Specialists {
		id := types.SpecialistID(s.ID)
		switch id {
		case types.SpecialistFinancial:
			agents[id] = &financialAgent{caller: caller, id: id, agentName: s.AgentName, displayName: s.DisplayName}
		case types.SpecialistKnowledgeGraph:
			agents[id] = &knowledgeGraphAgent{caller: caller, id: id, agentName: s.AgentName, displayName: s.DisplayName}
		case types.SpecialistGeneral:
			agents[id] = &generalAgent{caller: caller, id: id, agentName: s.AgentName, displayName: s.DisplayName}
		default:
			return nil, fmt.Errorf("no agent implementation for specialist %q", s.ID)
		}
	}
	return agents, nil
}

func NewDispatcher(agents map[types.SpecialistID]Agent, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		agents:  agents,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch invokes every listed specialist concurrently and waits for all
// of them. Each task owns its result slot; there is no shared accumulator.
// Caller cancellation propagates into every in-flight call, whose results
// are then discarded via the stub path.
func (d *Dispatcher) Dispatch(ctx context.Context, qc *types.QueryContext, ids []types.SpecialistID) []*types.SpecialistResult {
	results := make([]*types.SpecialistResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(slot int, id types.SpecialistID) {
			defer wg.Done()
			results[slot] = d.invokeOne(ctx, qc, id)
		}(i, id)
	}
	wg.Wait()

	return results
}

// invokeOne runs a single specialist call inside its own error boundary.
func (d *Dispatcher) invokeOne(ctx context.Context, qc *types.QueryContext, id types.SpecialistID) (result *types.SpecialistResult) {
	start := time.Now()
	metrics.SpecialistInvocations.WithLabelValues(string(id)).Inc()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("specialist invocation panicked", map[string]interface{}{
				"specialist": id,
				"panic":      fmt.Sprint(r),
			})
			result = d.stubResult(id, fmt.Errorf("internal error: %v", r), time.Since(start))
		}
		metrics.SpecialistCallDuration.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())
	}()

	agent, ok := d.agents[id]
	if !ok {
		return d.stubResult(id, fmt.Errorf("unknown specialist %q", id), time.Since(start))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := agent.Invoke(callCtx, qc)
	elapsed := time.Since(start)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = serrors.NewAgentTimeoutError(agent.DisplayName(), d.timeout)
		}
		d.logger.Warn("specialist degraded to stub", map[string]interface{}{
			"specialist": id,
			"error":      err.Error(),
			"elapsedMs":  elapsed.Milliseconds(),
		})
		return d.stubResult(id, err, elapsed)
	}

	res.TimingMs = elapsed.Milliseconds()
	d.logger.Info("specialist responded", map[string]interface{}{
		"specialist":  id,
		"confidence":  res.Confidence,
		"sourceCount": len(res.Sources),
		"elapsedMs":   res.TimingMs,
	})
	return res
}

// stubResult produces the degraded placeholder for a failed invocation.
// The cause text is preserved verbatim in the Error field.
func (d *Dispatcher) stubResult(id types.SpecialistID, cause error, elapsed time.Duration) *types.SpecialistResult {
	code := serrors.ErrCodeAgentInvocationFailed
	var stdErr *serrors.StandardError
	if errors.As(cause, &stdErr) {
		code = stdErr.Code
	}
	metrics.SpecialistStubFallbacks.WithLabelValues(string(id), string(code)).Inc()

	name := string(id)
	if agent, ok := d.agents[id]; ok {
		name = agent.DisplayName()
	}

	return &types.SpecialistResult{
		SpecialistID: id,
		Output:       fmt.Sprintf("The %s specialist is temporarily unavailable and could not analyze this request.", name),
		Confidence:   StubConfidence,
		Sources:      nil,
		TimingMs:     elapsed.Milliseconds(),
		Error:        cause.Error(),
		Stub:         true,
	}
}
