package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ageree/curator/pkg/config"
	"github.com/ageree/curator/pkg/resilience"
)

// ScrapedArticle is one article lifted from a configured site.
type ScrapedArticle struct {
	Title           string
	Link            string
	Description     *string
	PublicationDate *time.Time
	Source          string
	Categories      []string
}

// Scraper extracts articles from configured sites using CSS selectors, with
// per-domain rate limiting.
type Scraper struct {
	client   *guardedClient
	sites    map[string]config.SiteConfig
	rate     float64
	mu       sync.Mutex
	limiters map[string]*resilience.Limiter
	logger   *slog.Logger
}

// NewScraper creates a scraper over the declarative site config.
// ratePerSecond applies per domain, not globally.
func NewScraper(sites map[string]config.SiteConfig, ratePerSecond float64, timeout time.Duration, breaker *resilience.Breaker, retry *resilience.Retryer) *Scraper {
	return &Scraper{
		client:   newGuardedClient(timeout, nil, breaker, retry, "curator-knowledge-bot/1.0"),
		sites:    sites,
		rate:     ratePerSecond,
		limiters: map[string]*resilience.Limiter{},
		logger:   slog.Default().With("component", "scraper"),
	}
}

// ScrapeAll visits every configured site. Per-site failures are logged and
// skipped.
func (s *Scraper) ScrapeAll(ctx context.Context) ([]ScrapedArticle, error) {
	var all []ScrapedArticle
	for id := range s.sites {
		articles, err := s.ScrapeSite(ctx, id)
		if err != nil {
			s.logger.Error("Site scrape failed", "site", id, "error", err)
			continue
		}
		all = append(all, articles...)
	}
	return all, nil
}

// ScrapeSite fetches one site's listing page and extracts its articles.
func (s *Scraper) ScrapeSite(ctx context.Context, siteID string) ([]ScrapedArticle, error) {
	site, ok := s.sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site %q", siteID)
	}

	if err := s.domainLimiter(site.URL).Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := s.client.get(ctx, "scrape-"+siteID, site.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", site.URL, err)
	}

	return extractArticles(body, site, s.logger)
}

// domainLimiter returns (creating on first use) the limiter for a URL's host.
func (s *Scraper) domainLimiter(rawURL string) *resilience.Limiter {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = resilience.NewLimiter(s.rate, 1)
		s.limiters[host] = limiter
	}
	return limiter
}

// extractArticles applies the site's CSS selectors to the page.
// Items missing a title or link are skipped.
func extractArticles(body []byte, site config.SiteConfig, logger *slog.Logger) ([]ScrapedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	base, _ := url.Parse(site.URL)

	var articles []ScrapedArticle
	doc.Find(site.ArticleSelector).Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel.Find(site.TitleSelector).First()
		title := cleanText(titleSel.Text())
		if title == "" {
			return
		}

		linkSel := sel.Find(site.LinkSelector).First()
		href, _ := linkSel.Attr("href")
		if href == "" {
			return
		}
		link := resolveURL(base, href)

		article := ScrapedArticle{
			Title:  title,
			Link:   link,
			Source: site.Name,
		}

		if site.DescriptionSelector != "" {
			if desc := cleanText(sel.Find(site.DescriptionSelector).First().Text()); desc != "" {
				article.Description = &desc
			}
		}
		if site.DateSelector != "" {
			dateSel := sel.Find(site.DateSelector).First()
			dateText := dateSel.AttrOr("datetime", cleanText(dateSel.Text()))
			article.PublicationDate = ParseFeedDate(dateText)
		}

		articles = append(articles, article)
	})

	return articles, nil
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
