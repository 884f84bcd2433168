// Curator pipeline daemon - harvests scientific sources, distills claims,
// and maintains the coaching knowledge base.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ageree/curator/pkg/agent"
	"github.com/ageree/curator/pkg/alerts"
	"github.com/ageree/curator/pkg/api"
	"github.com/ageree/curator/pkg/config"
	"github.com/ageree/curator/pkg/database"
	"github.com/ageree/curator/pkg/engine"
	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/resilience"
	"github.com/ageree/curator/pkg/sources"
	"github.com/ageree/curator/pkg/store"
	"github.com/ageree/curator/pkg/version"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to environment file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: could not load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	command := "run"
	args := flag.Args()
	if len(args) > 0 {
		command = args[0]
	}

	slog.Info("Starting curator", "version", version.Full(), "environment", cfg.Environment)

	ctx := context.Background()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL, schema up to date")

	eng, err := buildEngine(cfg, store.NewPostgres(dbClient.DB()))
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	switch command {
	case "run":
		runDaemon(ctx, cfg, eng, dbClient)
	case "once":
		agentName := ""
		if len(args) > 1 {
			agentName = args[1]
		}
		results, err := eng.RunOnce(ctx, agentName)
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		printJSON(results)
	case "status":
		printJSON(eng.Status())
	default:
		log.Fatalf("Unknown command %q (expected run, once, or status)", command)
	}
}

// runDaemon starts the engine and the operational HTTP server, then blocks
// until SIGINT/SIGTERM.
func runDaemon(ctx context.Context, cfg *config.Settings, eng *engine.Engine, dbClient *database.Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	server := api.NewServer(eng, dbClient.DB())
	go func() {
		if err := server.Run(ctx, cfg.HTTPPort); err != nil {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("Shutdown signal received", "signal", sig)
	eng.Stop(fmt.Sprintf("signal %s received", sig))
	cancel()
}

// buildEngine wires the store, LLM providers, source adapters, and agents.
func buildEngine(cfg *config.Settings, rawStore store.Store) (*engine.Engine, error) {
	catalog, err := config.LoadSourceCatalog(cfg.Source.ConfigDir)
	if err != nil {
		return nil, err
	}

	// Alerting.
	var channels []alerts.Channel
	if slack := alerts.NewSlackChannel(cfg.Alerts.SlackToken, cfg.Alerts.SlackChannel); slack != nil {
		channels = append(channels, slack)
	}
	if webhook := alerts.NewWebhookChannel(cfg.Alerts.WebhookURL); webhook != nil {
		channels = append(channels, webhook)
	}
	notifier := alerts.NewService(channels,
		alerts.ParseSeverity(cfg.Alerts.MinSeverity), cfg.Alerts.RateLimitWindow, slog.Default())

	// Shared retry primitives: one budget and dead-letter queue per process.
	budget := resilience.NewRetryBudget(cfg.Retry.BudgetRate, cfg.Retry.BudgetBurst)
	dlq := resilience.NewDeadLetterQueue(cfg.Retry.DeadLetterCapacity)
	retryCfg := resilience.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Strategy:    resilience.Strategy(cfg.Retry.Strategy),
		Jitter:      resilience.Jitter(cfg.Retry.Jitter),
	}

	upstreamCfg := retryCfg
	upstreamCfg.OnRetryableError = func(taskID string, err error) {
		if resilience.IsThrottle(err) {
			notifier.Send(context.Background(), alerts.UpstreamRateLimited(taskID))
		}
	}
	retryer := resilience.NewRetryer(upstreamCfg, budget, dlq)

	// Persistence failures go through the same primitive before alerting.
	st := store.NewRetrying(rawStore, retryCfg, budget, dlq, notifier)

	breaker := func(name string) *resilience.Breaker {
		return resilience.NewBreaker(resilience.BreakerConfig{
			Name:             name,
			FailureThreshold: cfg.Source.BreakerFailureThreshold,
			ResetTimeout:     cfg.Source.BreakerResetTimeout,
		})
	}

	// LLM capability: nil when no key is configured; agents degrade.
	var capability llm.Capability
	if cfg.LLM.APIKey != "" {
		chatLimiter := resilience.NewAdaptiveLimiter(cfg.LLM.RateLimit, 0.5, cfg.LLM.RateLimit*2, 1)
		chat := llm.NewChatClient(llm.ClientConfig{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.ChatBaseURL,
			Model:    cfg.LLM.ChatModel,
			Timeout:  cfg.LLM.RequestTimeout,
		}, chatLimiter)
		embed := llm.NewEmbeddingClient(
			cfg.LLM.EmbeddingAPIKey, cfg.LLM.EmbeddingBaseURL,
			cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDimensions, cfg.LLM.RequestTimeout)
		capability = llm.NewService(chat, embed)
	} else {
		slog.Warn("No LLM API key configured; extraction and validation will degrade")
	}

	// Source adapters.
	pubmed := sources.NewPubMedClient(cfg.Source.PubMedAPIKey,
		resilience.NewLimiter(cfg.Source.PubMedRateLimit, 1), breaker("pubmed"), retryer)
	crossref := sources.NewCrossRefClient(cfg.Source.CrossRefMailto,
		resilience.NewLimiter(cfg.Source.CrossRefRateLimit, 1), breaker("crossref"), retryer)
	feeds := sources.NewFeedClient(catalog.Feeds,
		resilience.NewLimiter(cfg.Source.RSSRateLimit, 1), breaker("rss"), retryer)
	scraper := sources.NewScraper(catalog.Sites, cfg.Source.ScraperRateLimit,
		cfg.Source.ScraperTimeout, breaker("scraper"), retryer)
	perplexity := sources.NewPerplexityClient(cfg.Source.PerplexityAPIKey,
		cfg.Source.PerplexityModel, cfg.Source.PerplexityTimeout, breaker("perplexity"), retryer)

	eng := engine.New(engine.Config{
		ShutdownTimeout:    cfg.ShutdownTimeout,
		ErrorRateThreshold: cfg.Agents.ErrorRateThreshold,
		WatchdogInterval:   cfg.Agents.WatchdogInterval,
	}, notifier)

	a := cfg.Agents
	eng.Register(agent.NewResearch(st, pubmed, crossref, feeds, scraper, perplexity, agent.ResearchConfig{
		DaysBack:                  a.DaysBack,
		MaxResultsPerSource:       a.MaxResultsPerSource,
		EnableWebScraping:         a.EnableWebScraping && len(catalog.Sites) > 0,
		EnablePerplexity:          a.EnablePerplexity,
		EnableTrustedSourceSearch: a.EnableTrustedSourceSearch,
	}), engine.AgentConfig{Enabled: true, Interval: a.ResearchInterval})

	eng.Register(agent.NewExtraction(st, capability, a.ExtractionBatchSize),
		engine.AgentConfig{Enabled: true, Interval: a.ExtractionInterval})

	eng.Register(agent.NewValidation(st, capability, agent.ValidationConfig{
		BatchSize:            a.ValidationBatchSize,
		SimilarityThreshold:  a.SimilarityThreshold,
		MinEvidenceLevel:     a.MinEvidenceLevel,
		EnableAutoValidation: a.EnableAutoValidation,
	}), engine.AgentConfig{Enabled: true, Interval: a.ValidationInterval})

	eng.Register(agent.NewKnowledgeBase(st, capability, a.KBBatchSize),
		engine.AgentConfig{Enabled: true, Interval: a.KBInterval})

	eng.Register(agent.NewConflict(st, capability, agent.ConflictConfig{
		BatchSize:           a.ConflictBatchSize,
		SimilarityThreshold: 0.75,
	}), engine.AgentConfig{Enabled: true, Interval: a.ConflictInterval})

	eng.Register(agent.NewPromptEngineering(st, nil),
		engine.AgentConfig{Enabled: true, Interval: a.PromptInterval})

	return eng, nil
}

func setupLogging(level string) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error", "fatal":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to serialize result: %v", err)
	}
	fmt.Println(string(data))
}
