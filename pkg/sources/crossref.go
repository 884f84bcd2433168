package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/ageree/curator/pkg/resilience"
	"github.com/ageree/curator/pkg/version"
)

const crossrefBaseURL = "https://api.crossref.org"

// crossrefQueries is the default query list for recent-works sweeps.
var crossrefQueries = []string{
	"resistance training",
	"strength training",
	"muscle hypertrophy",
	"protein synthesis",
	"exercise physiology",
	"sports nutrition",
	"periodization",
	"training adaptation",
	"muscle recovery",
}

// CrossRefWork is one parsed work from the registry.
type CrossRefWork struct {
	DOI                 string
	Title               string
	Authors             []string
	Abstract            *string
	PublicationDate     *time.Time
	Journal             *string
	URL                 *string
	Subjects            []string
	IsReferencedByCount int
	Type                string
}

// CrossRefClient queries the CrossRef REST API. Providing a mailto address
// routes requests into the polite pool with better service levels.
type CrossRefClient struct {
	client  *guardedClient
	mailto  string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// NewCrossRefClient creates a CrossRef adapter.
func NewCrossRefClient(mailto string, limiter acquirer, breaker *resilience.Breaker, retry *resilience.Retryer) *CrossRefClient {
	userAgent := version.Full()
	if mailto != "" {
		userAgent += " (mailto:" + mailto + ")"
	}
	return &CrossRefClient{
		client:  newGuardedClient(30*time.Second, limiter, breaker, retry, userAgent),
		mailto:  mailto,
		baseURL: crossrefBaseURL,
		logger:  slog.Default().With("component", "crossref"),
		now:     time.Now,
	}
}

// SetBaseURL points the client at a different endpoint (for tests).
func (c *CrossRefClient) SetBaseURL(u string) { c.baseURL = u }

// SearchRecent sweeps the default query list for works published in the
// look-back window. Per-query failures are logged and skipped.
func (c *CrossRefClient) SearchRecent(ctx context.Context, daysBack, maxResults int) ([]CrossRefWork, error) {
	dateFrom := c.now().AddDate(0, 0, -daysBack).Format("2006-01-02")

	var all []CrossRefWork
	seen := map[string]bool{}

	for _, query := range crossrefQueries {
		works, err := c.searchWorks(ctx, query, dateFrom, maxResults)
		if err != nil {
			c.logger.Error("CrossRef query failed", "query", query, "error", err)
			continue
		}
		for _, work := range works {
			if work.DOI != "" && !seen[work.DOI] {
				seen[work.DOI] = true
				all = append(all, work)
			}
		}
	}
	return all, nil
}

func (c *CrossRefClient) searchWorks(ctx context.Context, query, fromDate string, maxResults int) ([]CrossRefWork, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("filter", "from-pub-date:"+fromDate+",type:journal-article")
	params.Set("rows", strconv.Itoa(maxResults))
	params.Set("sort", "published")
	params.Set("order", "desc")
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	body, err := c.client.get(ctx, "crossref-works", c.baseURL+"/works?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("crossref search: %w", err)
	}

	var parsed struct {
		Message struct {
			Items []crossrefItem `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse crossref response: %w", err)
	}

	works := make([]CrossRefWork, 0, len(parsed.Message.Items))
	for _, item := range parsed.Message.Items {
		work, err := c.parseWork(item)
		if err != nil {
			c.logger.Warn("Skipping malformed CrossRef work", "error", err)
			continue
		}
		works = append(works, *work)
	}
	return works, nil
}

type crossrefItem struct {
	DOI    string   `json:"DOI"`
	Title  []string `json:"title"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	Abstract       string   `json:"abstract"`
	ContainerTitle []string `json:"container-title"`
	URL            string   `json:"URL"`
	Subject        []string `json:"subject"`
	ReferencedBy   int      `json:"is-referenced-by-count"`
	Type           string   `json:"type"`
	PublishedPrint struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published-print"`
	PublishedOnline struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published-online"`
}

func (c *CrossRefClient) parseWork(item crossrefItem) (*CrossRefWork, error) {
	if item.DOI == "" {
		return nil, fmt.Errorf("work without DOI")
	}
	if len(item.Title) == 0 || item.Title[0] == "" {
		return nil, fmt.Errorf("work %s without title", item.DOI)
	}

	work := CrossRefWork{
		DOI:                 item.DOI,
		Title:               item.Title[0],
		Subjects:            item.Subject,
		IsReferencedByCount: item.ReferencedBy,
		Type:                item.Type,
	}

	for _, author := range item.Author {
		name := author.Family
		if name == "" {
			continue
		}
		if author.Given != "" {
			name = author.Given + " " + name
		}
		work.Authors = append(work.Authors, name)
	}

	if item.Abstract != "" {
		abstract := item.Abstract
		work.Abstract = &abstract
	}
	if len(item.ContainerTitle) > 0 && item.ContainerTitle[0] != "" {
		journal := item.ContainerTitle[0]
		work.Journal = &journal
	}
	if item.URL != "" {
		u := item.URL
		work.URL = &u
	}

	// Prefer the print date, fall back to online. Incomplete dates (year
	// only, year+month) take defaults; implausible years are dropped.
	dateParts := item.PublishedPrint.DateParts
	if len(dateParts) == 0 {
		dateParts = item.PublishedOnline.DateParts
	}
	if len(dateParts) > 0 {
		parsed, err := ParseDateParts(dateParts[0], c.now())
		if err != nil {
			c.logger.Warn("Dropping invalid CrossRef date", "doi", item.DOI, "error", err)
		} else {
			work.PublicationDate = parsed
		}
	}

	return &work, nil
}
