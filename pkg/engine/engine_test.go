package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/alerts"
)

// stubAgent is a scripted agent for engine tests.
type stubAgent struct {
	name      string
	processFn func(ctx context.Context) (any, error)
	calls     atomic.Int64
	shutdowns atomic.Int64
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) Process(ctx context.Context) (any, error) {
	a.calls.Add(1)
	if a.processFn != nil {
		return a.processFn(ctx)
	}
	return "ok", nil
}

func (a *stubAgent) Shutdown(context.Context) error {
	a.shutdowns.Add(1)
	return nil
}

// recordingNotifier captures alerts.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []alerts.Alert
}

func (n *recordingNotifier) Send(_ context.Context, alert alerts.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, alert)
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var titles []string
	for _, a := range n.sent {
		titles = append(titles, a.Title)
	}
	return titles
}

func fastEngine(notifier alerts.Notifier) *Engine {
	return New(Config{
		ShutdownTimeout:    time.Second,
		ErrorRateThreshold: 0.5,
		WatchdogInterval:   20 * time.Millisecond,
	}, notifier)
}

func TestEngine_RunsAgentsPeriodically(t *testing.T) {
	e := fastEngine(nil)
	a := &stubAgent{name: "research"}
	e.Register(a, AgentConfig{Enabled: true, Interval: 15 * time.Millisecond})

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	e.Stop("")

	// Immediate first run plus several ticks.
	assert.GreaterOrEqual(t, a.calls.Load(), int64(3))
	assert.Equal(t, int64(1), a.shutdowns.Load())
}

func TestEngine_DisabledAgentNeverRuns(t *testing.T) {
	e := fastEngine(nil)
	a := &stubAgent{name: "conflict"}
	e.Register(a, AgentConfig{Enabled: false, Interval: 5 * time.Millisecond})

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	e.Stop("")

	assert.Equal(t, int64(0), a.calls.Load())
}

func TestEngine_ErrorsAreCountedAndLoopContinues(t *testing.T) {
	e := fastEngine(nil)
	a := &stubAgent{
		name: "extraction",
		processFn: func(context.Context) (any, error) {
			return nil, errors.New("boom")
		},
	}
	e.Register(a, AgentConfig{Enabled: true, Interval: 10 * time.Millisecond})

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	e.Stop("")

	status := e.Status()
	agentStatus := status.Agents["extraction"]
	assert.GreaterOrEqual(t, agentStatus.Errors, 2)
	assert.Equal(t, 0, agentStatus.Processed)
	assert.Equal(t, "boom", agentStatus.LastError)
	assert.False(t, agentStatus.Healthy)
}

func TestEngine_WatchdogRaisesHighErrorRateAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	e := fastEngine(notifier)
	a := &stubAgent{
		name: "validation",
		processFn: func(context.Context) (any, error) {
			return nil, errors.New("always failing")
		},
	}
	e.Register(a, AgentConfig{Enabled: true, Interval: 5 * time.Millisecond})

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(80 * time.Millisecond)
	e.Stop("")

	assert.Contains(t, notifier.titles(), "High Error Rate")
}

func TestEngine_StopWithReasonSendsCriticalAlert(t *testing.T) {
	notifier := &recordingNotifier{}
	e := fastEngine(notifier)
	a := &stubAgent{name: "research"}
	e.Register(a, AgentConfig{Enabled: true, Interval: time.Hour})

	require.NoError(t, e.Start(context.Background()))
	e.Stop("SIGTERM received")

	titles := notifier.titles()
	require.Contains(t, titles, "Scheduler Stopped")

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for _, alert := range notifier.sent {
		if alert.Title == "Scheduler Stopped" {
			assert.Equal(t, alerts.SeverityCritical, alert.Severity)
			assert.Contains(t, alert.Message, "SIGTERM received")
		}
	}
}

func TestEngine_StopCancelsInFlightWork(t *testing.T) {
	e := fastEngine(nil)
	started := make(chan struct{})
	a := &stubAgent{
		name: "extraction",
		processFn: func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	e.Register(a, AgentConfig{Enabled: true, Interval: time.Hour})

	require.NoError(t, e.Start(context.Background()))
	<-started

	done := make(chan struct{})
	go func() {
		e.Stop("")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return within the shutdown budget")
	}

	// Cancellation mid-iteration is not an agent failure.
	assert.Equal(t, 0, e.Status().Agents["extraction"].Errors)
}

func TestEngine_RunOnceSingleAgent(t *testing.T) {
	e := fastEngine(nil)
	a := &stubAgent{name: "research"}
	b := &stubAgent{name: "conflict"}
	e.Register(a, AgentConfig{Enabled: true, Interval: time.Hour})
	e.Register(b, AgentConfig{Enabled: true, Interval: time.Hour})

	results, err := e.RunOnce(context.Background(), "research")
	require.NoError(t, err)
	assert.Equal(t, "ok", results["research"])
	assert.Equal(t, int64(1), a.calls.Load())
	assert.Equal(t, int64(0), b.calls.Load())
}

func TestEngine_RunOnceAllEnabledAgents(t *testing.T) {
	e := fastEngine(nil)
	a := &stubAgent{name: "research"}
	b := &stubAgent{name: "conflict"}
	c := &stubAgent{name: "disabled"}
	e.Register(a, AgentConfig{Enabled: true, Interval: time.Hour})
	e.Register(b, AgentConfig{Enabled: true, Interval: time.Hour})
	e.Register(c, AgentConfig{Enabled: false, Interval: time.Hour})

	results, err := e.RunOnce(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int64(0), c.calls.Load())
}

func TestEngine_RunOnceUnknownAgent(t *testing.T) {
	e := fastEngine(nil)
	_, err := e.RunOnce(context.Background(), "nope")
	assert.Error(t, err)
}

func TestMetricsSnapshot_ErrorRate(t *testing.T) {
	m := newMetrics("x")
	m.recordSuccess(time.Millisecond)
	m.recordSuccess(time.Millisecond)
	m.recordError(errors.New("e"), time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, 3, s.Runs())
	assert.InDelta(t, 1.0/3.0, s.ErrorRate(), 0.0001)
	assert.True(t, s.healthy())
}
