package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
}

var validRetryStrategies = map[string]bool{
	"exponential": true, "linear": true, "fibonacci": true, "fixed": true,
}

var validJitterModes = map[string]bool{
	"none": true, "full": true, "equal": true, "decorrelated": true,
}

var validSeverities = map[string]bool{
	"info": true, "warning": true, "error": true, "critical": true,
}

// validate performs typed validation over the fully merged settings.
// It fails fast: the first invalid field aborts startup.
func validate(cfg *Settings) error {
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return NewValidationError("logging", "LOG_LEVEL", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.LogLevel))
	}

	if err := validateLLM(&cfg.LLM); err != nil {
		return err
	}
	if err := validateAgents(&cfg.Agents); err != nil {
		return err
	}
	if err := validateSources(&cfg.Source); err != nil {
		return err
	}
	if err := validateRetry(&cfg.Retry); err != nil {
		return err
	}
	if err := validateAlerts(&cfg.Alerts); err != nil {
		return err
	}
	return nil
}

func validateLLM(llm *LLMSettings) error {
	if err := requireHTTPURL("llm", "LLM_CHAT_URL", llm.ChatBaseURL); err != nil {
		return err
	}
	if err := requireHTTPURL("llm", "EMBEDDING_URL", llm.EmbeddingBaseURL); err != nil {
		return err
	}
	if llm.EmbeddingDimensions <= 0 {
		return NewValidationError("llm", "EMBEDDING_DIMENSIONS", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if llm.RateLimit <= 0 {
		return NewValidationError("llm", "LLM_RATE_LIMIT", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	if llm.RequestTimeout <= 0 {
		return NewValidationError("llm", "LLM_TIMEOUT", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	return nil
}

func validateAgents(a *AgentSettings) error {
	intervals := map[string]int64{
		"RESEARCH_INTERVAL":   int64(a.ResearchInterval),
		"EXTRACTION_INTERVAL": int64(a.ExtractionInterval),
		"VALIDATION_INTERVAL": int64(a.ValidationInterval),
		"KB_INTERVAL":         int64(a.KBInterval),
		"CONFLICT_INTERVAL":   int64(a.ConflictInterval),
		"PROMPT_INTERVAL":     int64(a.PromptInterval),
		"WATCHDOG_INTERVAL":   int64(a.WatchdogInterval),
	}
	for field, v := range intervals {
		if v <= 0 {
			return NewValidationError("agents", field, fmt.Errorf("%w: interval must be strictly positive", ErrInvalidValue))
		}
	}

	batches := map[string]int{
		"EXTRACTION_BATCH_SIZE": a.ExtractionBatchSize,
		"VALIDATION_BATCH_SIZE": a.ValidationBatchSize,
		"KB_BATCH_SIZE":         a.KBBatchSize,
		"CONFLICT_BATCH_SIZE":   a.ConflictBatchSize,
	}
	for field, v := range batches {
		if v <= 0 {
			return NewValidationError("agents", field, fmt.Errorf("%w: batch size must be strictly positive", ErrInvalidValue))
		}
	}

	if a.SimilarityThreshold < 0 || a.SimilarityThreshold > 1 {
		return NewValidationError("agents", "SIMILARITY_THRESHOLD", fmt.Errorf("%w: must be within [0,1]", ErrInvalidValue))
	}
	if a.MinEvidenceLevel < 1 || a.MinEvidenceLevel > 5 {
		return NewValidationError("agents", "MIN_EVIDENCE_LEVEL", fmt.Errorf("%w: must be within [1,5]", ErrInvalidValue))
	}
	if a.ErrorRateThreshold <= 0 || a.ErrorRateThreshold > 1 {
		return NewValidationError("agents", "ALERT_ERROR_RATE_THRESHOLD", fmt.Errorf("%w: must be within (0,1]", ErrInvalidValue))
	}
	if a.DaysBack <= 0 {
		return NewValidationError("agents", "RESEARCH_DAYS_BACK", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	return nil
}

func validateSources(s *SourceSettings) error {
	rates := map[string]float64{
		"PUBMED_RATE_LIMIT":   s.PubMedRateLimit,
		"CROSSREF_RATE_LIMIT": s.CrossRefRateLimit,
		"RSS_RATE_LIMIT":      s.RSSRateLimit,
		"SCRAPER_RATE_LIMIT":  s.ScraperRateLimit,
	}
	for field, v := range rates {
		if v <= 0 {
			return NewValidationError("sources", field, fmt.Errorf("%w: rate limit must be strictly positive", ErrInvalidValue))
		}
	}
	if s.BreakerFailureThreshold <= 0 {
		return NewValidationError("sources", "BREAKER_FAILURE_THRESHOLD", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	if s.BreakerResetTimeout <= 0 {
		return NewValidationError("sources", "BREAKER_RESET_TIMEOUT", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	return nil
}

func validateRetry(r *RetrySettings) error {
	if r.MaxAttempts <= 0 {
		return NewValidationError("retry", "RETRY_MAX_ATTEMPTS", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	if !validRetryStrategies[r.Strategy] {
		return NewValidationError("retry", "RETRY_STRATEGY", fmt.Errorf("%w: %q", ErrInvalidValue, r.Strategy))
	}
	if !validJitterModes[r.Jitter] {
		return NewValidationError("retry", "RETRY_JITTER", fmt.Errorf("%w: %q", ErrInvalidValue, r.Jitter))
	}
	if r.BaseDelay <= 0 || r.MaxDelay <= 0 {
		return NewValidationError("retry", "RETRY_BASE_DELAY", fmt.Errorf("%w: delays must be strictly positive", ErrInvalidValue))
	}
	if r.MaxDelay < r.BaseDelay {
		return NewValidationError("retry", "RETRY_MAX_DELAY", fmt.Errorf("%w: must be >= RETRY_BASE_DELAY", ErrInvalidValue))
	}
	if r.DeadLetterCapacity <= 0 {
		return NewValidationError("retry", "DEAD_LETTER_CAPACITY", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	return nil
}

func validateAlerts(al *AlertSettings) error {
	if !validSeverities[strings.ToLower(al.MinSeverity)] {
		return NewValidationError("alerts", "ALERT_MIN_SEVERITY", fmt.Errorf("%w: %q", ErrInvalidValue, al.MinSeverity))
	}
	if al.WebhookURL != "" {
		if err := requireHTTPURL("alerts", "ALERT_WEBHOOK_URL", al.WebhookURL); err != nil {
			return err
		}
	}
	if al.RateLimitWindow <= 0 {
		return NewValidationError("alerts", "ALERT_RATE_LIMIT_WINDOW", fmt.Errorf("%w: must be strictly positive", ErrInvalidValue))
	}
	return nil
}

func requireHTTPURL(section, field, value string) error {
	if value == "" {
		return NewValidationError(section, field, ErrMissingRequiredField)
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return NewValidationError(section, field, fmt.Errorf("%w: must begin with http:// or https://", ErrInvalidValue))
	}
	return nil
}
