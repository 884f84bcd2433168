package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ageree/curator/pkg/resilience"
)

const perplexityBaseURL = "https://api.perplexity.ai"

// perplexityQueries is the default research query set.
var perplexityQueries = []string{
	"hypertrophy training research",
	"strength training scientific study",
	"muscle growth evidence-based",
	"resistance training meta-analysis",
	"protein synthesis exercise",
	"progressive overload study",
	"recovery between workouts research",
	"training volume hypertrophy",
}

// PerplexityArticle is one citation-backed result from LLM-backed search.
type PerplexityArticle struct {
	Title       string
	URL         string
	Snippet     string
	Citations   []string
	SearchQuery string
}

// PerplexityClient searches for research via the Sonar chat-completions API,
// harvesting the citations returned alongside the answer.
type PerplexityClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	breaker    *resilience.Breaker
	retry      *resilience.Retryer
	logger     *slog.Logger
}

// NewPerplexityClient creates a Perplexity adapter. An empty API key leaves
// the client unconfigured; IsConfigured reports that state.
func NewPerplexityClient(apiKey, model string, timeout time.Duration, breaker *resilience.Breaker, retry *resilience.Retryer) *PerplexityClient {
	if model == "" {
		model = "sonar"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PerplexityClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    perplexityBaseURL,
		maxTokens:  1024,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		retry:      retry,
		logger:     slog.Default().With("component", "perplexity"),
	}
}

// SetBaseURL points the client at a different endpoint (for tests).
func (c *PerplexityClient) SetBaseURL(u string) { c.baseURL = u }

// IsConfigured reports whether an API key is present.
func (c *PerplexityClient) IsConfigured() bool { return c.apiKey != "" }

// SearchResearch runs the default query set and returns citation-backed
// articles. Per-query failures are logged and skipped.
func (c *PerplexityClient) SearchResearch(ctx context.Context, maxResults int) ([]PerplexityArticle, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("perplexity API key not configured")
	}

	var all []PerplexityArticle
	seen := map[string]bool{}

	for _, query := range perplexityQueries {
		if len(all) >= maxResults {
			break
		}
		articles, err := c.search(ctx, query)
		if err != nil {
			c.logger.Error("Perplexity query failed", "query", query, "error", err)
			continue
		}
		for _, article := range articles {
			if !seen[article.URL] {
				seen[article.URL] = true
				all = append(all, article)
			}
		}
	}

	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

type perplexityRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Citations []string `json:"citations"`
	Choices   []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *PerplexityClient) search(ctx context.Context, query string) ([]PerplexityArticle, error) {
	prompt := fmt.Sprintf(
		"Find recent scientific research about: %s. Cite specific studies with their sources.", query)

	body, err := json.Marshal(perplexityRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a research assistant. Find and cite recent peer-reviewed studies."},
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("perplexity request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resilience.NewHTTPError(resp.StatusCode, c.baseURL)
		}
		respBody, err = io.ReadAll(resp.Body)
		return err
	}

	wrapped := call
	if c.breaker != nil {
		wrapped = func(ctx context.Context) error { return c.breaker.Execute(ctx, call) }
	}
	if c.retry != nil {
		err = c.retry.Do(ctx, "perplexity-search", wrapped)
	} else {
		err = wrapped(ctx)
	}
	if err != nil {
		return nil, err
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse perplexity response: %w", err)
	}

	answer := ""
	if len(parsed.Choices) > 0 {
		answer = parsed.Choices[0].Message.Content
	}
	return articlesFromCitations(parsed.Citations, answer, query), nil
}

var urlTitlePattern = regexp.MustCompile(`https?://[^\s)\]]+`)

// articlesFromCitations turns the citation URLs into queue candidates; every
// candidate carries the first 500 bytes of the answer text as its snippet.
func articlesFromCitations(citations []string, answer, query string) []PerplexityArticle {
	articles := make([]PerplexityArticle, 0, len(citations))
	for _, citation := range citations {
		citation = strings.TrimSpace(citation)
		if !urlTitlePattern.MatchString(citation) {
			continue
		}
		articles = append(articles, PerplexityArticle{
			Title:       titleFromURL(citation),
			URL:         citation,
			Snippet:     truncateSnippet(answer, 500),
			Citations:   citations,
			SearchQuery: query,
		})
	}
	return articles
}

// titleFromURL derives a readable title from a citation URL path.
func titleFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		slug := trimmed[idx+1:]
		slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
		if len(slug) > 3 {
			return slug
		}
	}
	return rawURL
}

func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
