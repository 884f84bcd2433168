package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// Load builds the configuration snapshot:
//
//  1. Start from DefaultSettings
//  2. Merge the ENVIRONMENT preset (development/production/testing)
//  3. Apply individual environment variables with typed parsing
//  4. Validate everything
//
// The returned Settings is ready for use and never mutated afterwards.
func Load() (*Settings, error) {
	env := Environment(getEnv("ENVIRONMENT", string(EnvProduction)))
	if env != EnvDevelopment && env != EnvProduction && env != EnvTesting {
		return nil, fmt.Errorf("%w: ENVIRONMENT=%q", ErrInvalidValue, env)
	}

	cfg := DefaultSettings()
	cfg.Environment = env

	// Preset overrides defaults; non-zero preset values win.
	if err := mergo.Merge(cfg, preset(env), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge %s preset: %w", env, err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Info("Configuration loaded",
		"environment", cfg.Environment,
		"log_level", cfg.LogLevel,
		"llm_provider", cfg.LLM.Provider)

	return cfg, nil
}

// applyEnv overlays individual environment variables on the merged settings.
func applyEnv(cfg *Settings) {
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	// LLM
	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.ChatBaseURL = getEnv("LLM_CHAT_URL", cfg.LLM.ChatBaseURL)
	cfg.LLM.ChatModel = getEnv("LLM_CHAT_MODEL", cfg.LLM.ChatModel)
	cfg.LLM.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", firstNonEmpty(cfg.LLM.EmbeddingAPIKey, cfg.LLM.APIKey))
	cfg.LLM.EmbeddingBaseURL = getEnv("EMBEDDING_URL", cfg.LLM.EmbeddingBaseURL)
	cfg.LLM.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.EmbeddingDimensions = getInt("EMBEDDING_DIMENSIONS", cfg.LLM.EmbeddingDimensions)
	cfg.LLM.RequestTimeout = getDuration("LLM_TIMEOUT", cfg.LLM.RequestTimeout)
	cfg.LLM.RateLimit = getFloat("LLM_RATE_LIMIT", cfg.LLM.RateLimit)

	// Agents
	a := &cfg.Agents
	a.ResearchInterval = getDuration("RESEARCH_INTERVAL", a.ResearchInterval)
	a.ExtractionInterval = getDuration("EXTRACTION_INTERVAL", a.ExtractionInterval)
	a.ValidationInterval = getDuration("VALIDATION_INTERVAL", a.ValidationInterval)
	a.KBInterval = getDuration("KB_INTERVAL", a.KBInterval)
	a.ConflictInterval = getDuration("CONFLICT_INTERVAL", a.ConflictInterval)
	a.PromptInterval = getDuration("PROMPT_INTERVAL", a.PromptInterval)
	a.ExtractionBatchSize = getInt("EXTRACTION_BATCH_SIZE", a.ExtractionBatchSize)
	a.ValidationBatchSize = getInt("VALIDATION_BATCH_SIZE", a.ValidationBatchSize)
	a.KBBatchSize = getInt("KB_BATCH_SIZE", a.KBBatchSize)
	a.ConflictBatchSize = getInt("CONFLICT_BATCH_SIZE", a.ConflictBatchSize)
	a.DaysBack = getInt("RESEARCH_DAYS_BACK", a.DaysBack)
	a.MaxResultsPerSource = getInt("RESEARCH_MAX_RESULTS", a.MaxResultsPerSource)
	a.SimilarityThreshold = getFloat("SIMILARITY_THRESHOLD", a.SimilarityThreshold)
	a.MinEvidenceLevel = getInt("MIN_EVIDENCE_LEVEL", a.MinEvidenceLevel)
	a.EnableWebScraping = getBool("ENABLE_WEB_SCRAPING", a.EnableWebScraping)
	a.EnablePerplexity = getBool("ENABLE_PERPLEXITY", a.EnablePerplexity)
	a.EnableTrustedSourceSearch = getBool("ENABLE_TRUSTED_SOURCE_SEARCH", a.EnableTrustedSourceSearch)
	a.EnableAutoValidation = getBool("ENABLE_AUTO_VALIDATION", a.EnableAutoValidation)
	a.ErrorRateThreshold = getFloat("ALERT_ERROR_RATE_THRESHOLD", a.ErrorRateThreshold)
	a.WatchdogInterval = getDuration("WATCHDOG_INTERVAL", a.WatchdogInterval)

	// Sources
	s := &cfg.Source
	s.PubMedAPIKey = getEnv("PUBMED_API_KEY", s.PubMedAPIKey)
	s.PubMedRateLimit = getFloat("PUBMED_RATE_LIMIT", s.PubMedRateLimit)
	s.CrossRefMailto = getEnv("CROSSREF_MAILTO", s.CrossRefMailto)
	s.CrossRefRateLimit = getFloat("CROSSREF_RATE_LIMIT", s.CrossRefRateLimit)
	s.RSSRateLimit = getFloat("RSS_RATE_LIMIT", s.RSSRateLimit)
	s.ScraperRateLimit = getFloat("SCRAPER_RATE_LIMIT", s.ScraperRateLimit)
	s.ScraperTimeout = getDuration("SCRAPER_TIMEOUT", s.ScraperTimeout)
	s.PerplexityAPIKey = getEnv("PERPLEXITY_API_KEY", s.PerplexityAPIKey)
	s.PerplexityModel = getEnv("PERPLEXITY_MODEL", s.PerplexityModel)
	s.PerplexityTimeout = getDuration("PERPLEXITY_TIMEOUT", s.PerplexityTimeout)
	s.ConfigDir = getEnv("CONFIG_DIR", s.ConfigDir)
	s.BreakerFailureThreshold = getInt("BREAKER_FAILURE_THRESHOLD", s.BreakerFailureThreshold)
	s.BreakerResetTimeout = getDuration("BREAKER_RESET_TIMEOUT", s.BreakerResetTimeout)

	// Retry
	r := &cfg.Retry
	r.MaxAttempts = getInt("RETRY_MAX_ATTEMPTS", r.MaxAttempts)
	r.BaseDelay = getDuration("RETRY_BASE_DELAY", r.BaseDelay)
	r.MaxDelay = getDuration("RETRY_MAX_DELAY", r.MaxDelay)
	r.Strategy = getEnv("RETRY_STRATEGY", r.Strategy)
	r.Jitter = getEnv("RETRY_JITTER", r.Jitter)
	r.BudgetRate = getFloat("RETRY_BUDGET_RATE", r.BudgetRate)
	r.BudgetBurst = getInt("RETRY_BUDGET_BURST", r.BudgetBurst)
	r.DeadLetterCapacity = getInt("DEAD_LETTER_CAPACITY", r.DeadLetterCapacity)

	// Alerts
	al := &cfg.Alerts
	al.SlackToken = getEnv("SLACK_BOT_TOKEN", al.SlackToken)
	al.SlackChannel = getEnv("SLACK_CHANNEL", al.SlackChannel)
	al.WebhookURL = getEnv("ALERT_WEBHOOK_URL", al.WebhookURL)
	al.MinSeverity = getEnv("ALERT_MIN_SEVERITY", al.MinSeverity)
	al.RateLimitWindow = getDuration("ALERT_RATE_LIMIT_WINDOW", al.RateLimitWindow)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Invalid float environment variable, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Invalid boolean environment variable, using default", "key", key, "value", v)
		return fallback
	}
	return b
}

// getDuration accepts Go duration strings ("30m") and falls back to plain
// seconds ("1800") for compatibility with the legacy interval variables.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("Invalid duration environment variable, using default", "key", key, "value", v)
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
