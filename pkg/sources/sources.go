// Package sources implements the external source adapters feeding the
// research queue: the PubMed biomedical index, the CrossRef DOI registry,
// RSS/Atom journal feeds, a CSS-selector web scraper, and LLM-backed search.
// The PubMed, CrossRef and feed adapters take a rate limiter from the caller
// (the feed adapter uses one limiter for all of its feeds), and the scraper
// keeps one limiter per domain. Every adapter routes its HTTP calls through a
// circuit breaker and the shared retry primitive. The LLM-backed search
// adapter has no rate limiter.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ageree/curator/pkg/resilience"
)

// acquirer is the subset of the limiter types used by the adapters.
type acquirer interface {
	Acquire(ctx context.Context) error
}

// guardedClient is the shared HTTP plumbing: retry → breaker → limiter → GET
// (every attempt acquires its own limiter token).
type guardedClient struct {
	httpClient *http.Client
	limiter    acquirer
	breaker    *resilience.Breaker
	retry      *resilience.Retryer
	userAgent  string
}

func newGuardedClient(timeout time.Duration, limiter acquirer, breaker *resilience.Breaker, retry *resilience.Retryer, userAgent string) *guardedClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &guardedClient{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		breaker:    breaker,
		retry:      retry,
		userAgent:  userAgent,
	}
}

// get fetches a URL with the full resilience stack and returns the body.
func (g *guardedClient) get(ctx context.Context, taskID, url string) ([]byte, error) {
	var body []byte

	call := func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Acquire(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if g.userAgent != "" {
			req.Header.Set("User-Agent", g.userAgent)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return resilience.NewHTTPError(resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		return nil
	}

	wrapped := call
	if g.breaker != nil {
		wrapped = func(ctx context.Context) error {
			return g.breaker.Execute(ctx, call)
		}
	}

	if g.retry != nil {
		if err := g.retry.Do(ctx, taskID, wrapped); err != nil {
			return nil, err
		}
		return body, nil
	}
	if err := wrapped(ctx); err != nil {
		return nil, err
	}
	return body, nil
}
