// Package alerts delivers severity-filtered, rate-limited operational alerts
// over chat channels. Delivery is fail-open: a broken channel is logged and
// never propagates into the pipeline.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Severity orders alerts from informational to critical.
type Severity int

// Alert severities.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity resolves a severity name, defaulting to warning.
func ParseSeverity(name string) Severity {
	switch name {
	case "info":
		return SeverityInfo
	case "warning":
		return SeverityWarning
	case "error":
		return SeverityError
	case "critical":
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Alert is one outbound notification.
type Alert struct {
	Severity Severity
	Title    string
	Message  string
	Details  map[string]string
	At       time.Time
}

// Channel delivers alerts to one destination.
type Channel interface {
	Send(ctx context.Context, alert Alert) error
	Name() string
}

// Notifier is the alerting surface consumed by the engine.
// Nil-safe: all methods are no-ops on a nil receiver.
type Notifier interface {
	Send(ctx context.Context, alert Alert)
}

// Service fans alerts out to its channels, dropping alerts below the minimum
// severity and deduplicating per (severity, title) within the rate-limit
// window.
type Service struct {
	channels    []Channel
	minSeverity Severity
	window      time.Duration
	logger      logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// logger is the small slog surface the service uses, extracted for tests.
type logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewService creates the alert service. Returns nil when no channels are
// configured; a nil *Service is safe to use.
func NewService(channels []Channel, minSeverity Severity, window time.Duration, log logger) *Service {
	if len(channels) == 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Service{
		channels:    channels,
		minSeverity: minSeverity,
		window:      window,
		logger:      log,
		lastSent:    map[string]time.Time{},
		now:         time.Now,
	}
}

// Send delivers one alert to every channel, subject to the severity filter
// and the per-(severity, title) rate limit.
func (s *Service) Send(ctx context.Context, alert Alert) {
	if s == nil {
		return
	}
	if alert.Severity < s.minSeverity {
		return
	}
	if !s.shouldSend(alert) {
		return
	}
	if alert.At.IsZero() {
		alert.At = s.now()
	}

	for _, channel := range s.channels {
		if err := channel.Send(ctx, alert); err != nil {
			s.logger.Error("Alert delivery failed",
				"channel", channel.Name(),
				"title", alert.Title,
				"error", err)
		}
	}
}

// shouldSend enforces one alert per (severity, title) per window.
func (s *Service) shouldSend(alert Alert) bool {
	key := fmt.Sprintf("%s:%s", alert.Severity, alert.Title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSent[key]; ok && s.now().Sub(last) < s.window {
		return false
	}
	s.lastSent[key] = s.now()
	return true
}

// HighErrorRate builds the alert for an agent whose error ratio exceeds the
// threshold.
func HighErrorRate(agentName string, errorRate, threshold float64) Alert {
	return Alert{
		Severity: SeverityError,
		Title:    "High Error Rate",
		Message:  fmt.Sprintf("Agent %s error rate %.0f%% exceeds threshold %.0f%%", agentName, errorRate*100, threshold*100),
		Details: map[string]string{
			"agent":      agentName,
			"error_rate": fmt.Sprintf("%.3f", errorRate),
			"threshold":  fmt.Sprintf("%.3f", threshold),
		},
	}
}

// SchedulerStopped builds the critical alert raised when the engine stops
// with a reason.
func SchedulerStopped(reason string) Alert {
	message := "Agent scheduler stopped"
	if reason != "" {
		message += ": " + reason
	}
	return Alert{
		Severity: SeverityCritical,
		Title:    "Scheduler Stopped",
		Message:  message,
	}
}

// AgentUnhealthy builds the warning for an unresponsive or failing agent.
func AgentUnhealthy(agentName, detail string) Alert {
	return Alert{
		Severity: SeverityWarning,
		Title:    "Agent Unhealthy",
		Message:  fmt.Sprintf("Agent %s is unhealthy: %s", agentName, detail),
		Details:  map[string]string{"agent": agentName},
	}
}

// PersistenceError builds the alert for store failures that exhausted their
// retries.
func PersistenceError(operation string, err error) Alert {
	return Alert{
		Severity: SeverityError,
		Title:    "Persistence Error",
		Message:  fmt.Sprintf("Store operation %s failed: %v", operation, err),
		Details:  map[string]string{"operation": operation},
	}
}

// UpstreamRateLimited builds the warning for an upstream 429.
func UpstreamRateLimited(host string) Alert {
	return Alert{
		Severity: SeverityWarning,
		Title:    "Upstream Rate Limit Reached",
		Message:  fmt.Sprintf("Rate limit reached for %s; backing off", host),
		Details:  map[string]string{"host": host},
	}
}
