package config

import "time"

// DefaultSettings returns the production-grade baseline configuration.
// Presets and environment variables are layered on top of this.
func DefaultSettings() *Settings {
	return &Settings{
		Environment:     EnvProduction,
		LogLevel:        "info",
		HTTPPort:        "8080",
		ShutdownTimeout: 30 * time.Second,

		LLM: LLMSettings{
			Provider:            "openai",
			ChatBaseURL:         "https://api.openai.com/v1/chat/completions",
			ChatModel:           "gpt-4o",
			EmbeddingBaseURL:    "https://api.openai.com/v1/embeddings",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
			RequestTimeout:      60 * time.Second,
			RateLimit:           3.0,
		},

		Agents: AgentSettings{
			ResearchInterval:   24 * time.Hour,
			ExtractionInterval: 30 * time.Minute,
			ValidationInterval: 15 * time.Minute,
			KBInterval:         10 * time.Minute,
			ConflictInterval:   time.Hour,
			PromptInterval:     24 * time.Hour,

			ExtractionBatchSize: 5,
			ValidationBatchSize: 10,
			KBBatchSize:         10,
			ConflictBatchSize:   10,

			DaysBack:            7,
			MaxResultsPerSource: 20,

			SimilarityThreshold: 0.85,
			MinEvidenceLevel:    2,

			EnableWebScraping:         false,
			EnablePerplexity:          true,
			EnableTrustedSourceSearch: true,
			EnableAutoValidation:      true,

			ErrorRateThreshold: 0.5,
			WatchdogInterval:   5 * time.Minute,
		},

		Source: SourceSettings{
			PubMedRateLimit:         3.0,
			CrossRefRateLimit:       5.0,
			RSSRateLimit:            1.0,
			ScraperRateLimit:        0.5,
			ScraperTimeout:          30 * time.Second,
			PerplexityModel:         "sonar",
			PerplexityTimeout:       60 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerResetTimeout:     60 * time.Second,
		},

		Retry: RetrySettings{
			MaxAttempts:        3,
			BaseDelay:          2 * time.Second,
			MaxDelay:           10 * time.Second,
			Strategy:           "exponential",
			Jitter:             "equal",
			BudgetRate:         1.0,
			BudgetBurst:        10,
			DeadLetterCapacity: 256,
		},

		Alerts: AlertSettings{
			MinSeverity:     "warning",
			RateLimitWindow: time.Minute,
		},
	}
}

// preset returns the environment-specific overrides merged over the defaults.
// Unset (zero) preset fields keep their default values.
func preset(env Environment) *Settings {
	switch env {
	case EnvDevelopment:
		return &Settings{
			LogLevel: "debug",
			Agents: AgentSettings{
				ResearchInterval:   time.Hour,
				ExtractionInterval: 5 * time.Minute,
				ValidationInterval: 3 * time.Minute,
				KBInterval:         2 * time.Minute,
				ConflictInterval:   10 * time.Minute,
				PromptInterval:     time.Hour,
				WatchdogInterval:   time.Minute,
			},
			Source: SourceSettings{
				PubMedRateLimit:   5.0,
				CrossRefRateLimit: 15.0,
			},
			Retry: RetrySettings{
				BaseDelay: time.Second,
				MaxDelay:  5 * time.Second,
			},
		}
	case EnvTesting:
		return &Settings{
			LogLevel: "debug",
			Agents: AgentSettings{
				ResearchInterval:   10 * time.Second,
				ExtractionInterval: 5 * time.Second,
				ValidationInterval: 5 * time.Second,
				KBInterval:         5 * time.Second,
				ConflictInterval:   10 * time.Second,
				PromptInterval:     10 * time.Second,
				WatchdogInterval:   5 * time.Second,
			},
			Retry: RetrySettings{
				BaseDelay: 10 * time.Millisecond,
				MaxDelay:  50 * time.Millisecond,
			},
		}
	default:
		return &Settings{}
	}
}
