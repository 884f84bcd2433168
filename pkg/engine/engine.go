// Package engine schedules the pipeline agents: each enabled agent runs on
// its own periodic loop bounded by a single cancellation signal, with metric
// tracking, an error-rate watchdog, and graceful shutdown.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ageree/curator/pkg/agent"
	"github.com/ageree/curator/pkg/alerts"
)

// AgentConfig is one agent's scheduling configuration.
type AgentConfig struct {
	Enabled  bool
	Interval time.Duration
}

// registration pairs an agent with its schedule and metrics.
type registration struct {
	agent   agent.Agent
	config  AgentConfig
	metrics *Metrics
}

// Config tunes the engine itself.
type Config struct {
	// ShutdownTimeout bounds each agent's cleanup hook on Stop.
	ShutdownTimeout time.Duration

	// ErrorRateThreshold is the per-agent error ratio that triggers a
	// high-error-rate alert.
	ErrorRateThreshold float64

	// WatchdogInterval is how often error ratios are polled.
	WatchdogInterval time.Duration
}

// Engine owns the agent set and drives the periodic loops.
type Engine struct {
	cfg      Config
	notifier alerts.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	agents []*registration
	byName map[string]*registration

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

// New creates an engine. notifier may be nil (alerting disabled).
func New(cfg Config, notifier alerts.Notifier) *Engine {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = 0.5
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = 5 * time.Minute
	}
	return &Engine{
		cfg:      cfg,
		notifier: notifier,
		logger:   slog.Default().With("component", "engine"),
		byName:   map[string]*registration{},
	}
}

// Register adds an agent with its schedule. Must be called before Start.
func (e *Engine) Register(a agent.Agent, cfg AgentConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg := &registration{
		agent:   a,
		config:  cfg,
		metrics: newMetrics(a.Name()),
	}
	e.agents = append(e.agents, reg)
	e.byName[a.Name()] = reg
}

// Start launches every enabled agent on its own periodic loop plus the
// watchdog, then returns. Safe to call once; subsequent calls are no-ops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	agents := append([]*registration(nil), e.agents...)
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range agents {
		if !reg.config.Enabled {
			e.logger.Info("Agent disabled", "agent", reg.agent.Name())
			continue
		}
		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			e.runLoop(ctx, reg)
		}(reg)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runWatchdog(ctx)
	}()

	go func() {
		wg.Wait()
		close(e.done)
	}()

	e.logger.Info("Engine started", "agents", len(agents))
	return nil
}

// runLoop is one agent's periodic loop: run an iteration, sleep the period,
// repeat until cancellation.
func (e *Engine) runLoop(ctx context.Context, reg *registration) {
	log := e.logger.With("agent", reg.agent.Name())
	log.Info("Agent loop started", "interval", reg.config.Interval)

	ticker := time.NewTicker(reg.config.Interval)
	defer ticker.Stop()

	// First iteration runs immediately; subsequent ones on the ticker.
	e.runOnce(ctx, reg)

	for {
		select {
		case <-ctx.Done():
			log.Info("Agent loop stopped")
			return
		case <-ticker.C:
			e.runOnce(ctx, reg)
		}
	}
}

// runOnce executes one iteration and records its metrics. Errors increment
// the error count and the loop continues.
func (e *Engine) runOnce(ctx context.Context, reg *registration) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	result, err := reg.agent.Process(ctx)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-iteration is not an agent failure.
			return
		}
		reg.metrics.recordError(err, duration)
		e.logger.Error("Agent iteration failed",
			"agent", reg.agent.Name(),
			"duration", duration,
			"error", err)
		return
	}

	reg.metrics.recordSuccess(duration)
	e.logger.Debug("Agent iteration complete",
		"agent", reg.agent.Name(),
		"duration", duration,
		"result", fmt.Sprintf("%+v", result))
}

// runWatchdog periodically polls error ratios and raises alerts.
func (e *Engine) runWatchdog(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkErrorRates(ctx)
		}
	}
}

// checkErrorRates raises a high-error-rate alert for every agent above the
// threshold. The alert service deduplicates repeats within its window.
func (e *Engine) checkErrorRates(ctx context.Context) {
	if e.notifier == nil {
		return
	}

	e.mu.Lock()
	agents := append([]*registration(nil), e.agents...)
	e.mu.Unlock()

	for _, reg := range agents {
		snapshot := reg.metrics.Snapshot()
		if snapshot.Runs() == 0 {
			continue
		}
		rate := snapshot.ErrorRate()
		switch {
		case rate > e.cfg.ErrorRateThreshold:
			e.notifier.Send(ctx, alerts.HighErrorRate(reg.agent.Name(), rate, e.cfg.ErrorRateThreshold))
		case !snapshot.healthy():
			e.notifier.Send(ctx, alerts.AgentUnhealthy(reg.agent.Name(),
				fmt.Sprintf("error rate %.0f%% over recent runs", rate*100)))
		}
	}
}

// Stop cancels every loop, runs each agent's cleanup hook with a bounded
// timeout, and emits a critical alert when a reason is given. Safe to call
// multiple times.
func (e *Engine) Stop(reason string) {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	done := e.done
	agents := append([]*registration(nil), e.agents...)
	e.mu.Unlock()

	e.logger.Info("Stopping engine", "reason", reason)
	cancel()

	// Wait for loops to drain, bounded by the shutdown budget.
	select {
	case <-done:
	case <-time.After(e.cfg.ShutdownTimeout):
		e.logger.Warn("Agent loops did not drain within shutdown budget")
	}

	for _, reg := range agents {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
		if err := reg.agent.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("Agent cleanup failed", "agent", reg.agent.Name(), "error", err)
		}
		cancelShutdown()
	}

	if reason != "" && e.notifier != nil {
		// Delivery gets its own context: the engine's is already cancelled.
		alertCtx, cancelAlert := context.WithTimeout(context.Background(), 10*time.Second)
		e.notifier.Send(alertCtx, alerts.SchedulerStopped(reason))
		cancelAlert()
	}

	e.logger.Info("Engine stopped")
}

// RunOnce executes exactly one iteration of the named agent (or of every
// enabled agent when name is empty) without entering the periodic loop, and
// returns the results keyed by agent name.
func (e *Engine) RunOnce(ctx context.Context, name string) (map[string]any, error) {
	e.mu.Lock()
	var targets []*registration
	if name != "" {
		reg, ok := e.byName[name]
		if !ok {
			e.mu.Unlock()
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		targets = []*registration{reg}
	} else {
		for _, reg := range e.agents {
			if reg.config.Enabled {
				targets = append(targets, reg)
			}
		}
	}
	e.mu.Unlock()

	results := map[string]any{}
	for _, reg := range targets {
		result, err := reg.agent.Process(ctx)
		if err != nil {
			if name != "" {
				return nil, err
			}
			results[reg.agent.Name()] = map[string]string{"error": err.Error()}
			continue
		}
		results[reg.agent.Name()] = result
	}
	return results, nil
}

// Status returns the serialized engine snapshot.
func (e *Engine) Status() *StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := &StatusSnapshot{
		Running: e.started && !e.stopped,
		Agents:  map[string]AgentStatus{},
	}
	for _, reg := range e.agents {
		m := reg.metrics.Snapshot()
		snapshot.Agents[reg.agent.Name()] = AgentStatus{
			Enabled:   reg.config.Enabled,
			Interval:  reg.config.Interval.String(),
			Processed: m.Processed,
			Errors:    m.Errors,
			ErrorRate: m.ErrorRate(),
			LastRun:   m.LastRun,
			LastError: m.LastError,
			Healthy:   m.healthy(),
		}
	}
	return snapshot
}
