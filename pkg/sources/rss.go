package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ageree/curator/pkg/config"
	"github.com/ageree/curator/pkg/resilience"
)

// FeedArticle is one entry parsed from an RSS/RDF/Atom feed.
type FeedArticle struct {
	Title           string
	Link            string
	Description     *string
	PublicationDate *time.Time
	Authors         []string
	Source          string
	DOI             *string
	Categories      []string
}

// FeedClient fetches and parses journal/blog feeds in RSS 2.0, RSS 1.0/RDF,
// and Atom formats.
type FeedClient struct {
	client *guardedClient
	feeds  map[string]config.FeedConfig
	logger *slog.Logger
}

// NewFeedClient creates a feed adapter over the configured feed set.
func NewFeedClient(feeds map[string]config.FeedConfig, limiter acquirer, breaker *resilience.Breaker, retry *resilience.Retryer) *FeedClient {
	return &FeedClient{
		client: newGuardedClient(30*time.Second, limiter, breaker, retry, ""),
		feeds:  feeds,
		logger: slog.Default().With("component", "rss"),
	}
}

// FetchAll polls every configured feed and returns entries newer than the
// look-back window. Per-feed failures are logged and skipped.
func (c *FeedClient) FetchAll(ctx context.Context, daysBack int) ([]FeedArticle, error) {
	cutoff := time.Now().AddDate(0, 0, -daysBack)

	var all []FeedArticle
	for id, feed := range c.feeds {
		body, err := c.client.get(ctx, "rss-"+id, feed.URL)
		if err != nil {
			c.logger.Error("Feed fetch failed", "feed", id, "error", err)
			continue
		}

		articles, err := ParseFeed(body, feed.Name)
		if err != nil {
			c.logger.Error("Feed parse failed", "feed", id, "error", err)
			continue
		}

		for _, article := range articles {
			if article.PublicationDate != nil && article.PublicationDate.Before(cutoff) {
				continue
			}
			article.Categories = append(article.Categories, feed.Categories...)
			all = append(all, article)
		}
	}
	return all, nil
}

// --- feed XML shapes ---

type rssDocument struct {
	XMLName xml.Name
	Channel struct {
		Items []feedItemXML `xml:"item"`
	} `xml:"channel"`
	// RSS 1.0/RDF places items at the top level, outside the channel.
	Items   []feedItemXML `xml:"item"`
	Entries []atomEntry   `xml:"entry"`
}

type feedItemXML struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Encoded     string   `xml:"encoded"` // content:encoded
	PubDate     string   `xml:"pubDate"`
	DCDate      string   `xml:"date"`    // dc:date (RDF feeds)
	Creators    []string `xml:"creator"` // dc:creator
	Authors     []string `xml:"author"`
	Categories  []string `xml:"category"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// ParseFeed parses RSS 2.0, RSS 1.0/RDF, and Atom documents. CDATA sections
// and the common dc:/content: namespaces are honored.
func ParseFeed(data []byte, sourceName string) ([]FeedArticle, error) {
	var doc rssDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed XML: %w", err)
	}

	var articles []FeedArticle

	items := doc.Channel.Items
	if len(items) == 0 {
		items = doc.Items
	}
	for _, item := range items {
		article := parseRSSItem(item, sourceName)
		if article != nil {
			articles = append(articles, *article)
		}
	}

	for _, entry := range doc.Entries {
		article := parseAtomEntry(entry, sourceName)
		if article != nil {
			articles = append(articles, *article)
		}
	}

	return articles, nil
}

func parseRSSItem(item feedItemXML, sourceName string) *FeedArticle {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return nil
	}

	article := FeedArticle{
		Title:  title,
		Link:   link,
		Source: sourceName,
	}

	description := strings.TrimSpace(item.Description)
	if description == "" {
		description = strings.TrimSpace(item.Encoded)
	}
	if description != "" {
		stripped := stripHTMLTags(description)
		article.Description = &stripped
	}

	dateValue := item.PubDate
	if dateValue == "" {
		dateValue = item.DCDate
	}
	article.PublicationDate = ParseFeedDate(dateValue)

	article.Authors = append(article.Authors, item.Creators...)
	for _, author := range item.Authors {
		if author = strings.TrimSpace(author); author != "" {
			article.Authors = append(article.Authors, author)
		}
	}

	for _, category := range item.Categories {
		if category = strings.TrimSpace(category); category != "" {
			article.Categories = append(article.Categories, category)
		}
	}

	article.DOI = extractDOI(link, description)
	return &article
}

func parseAtomEntry(entry atomEntry, sourceName string) *FeedArticle {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return nil
	}

	var link string
	for _, l := range entry.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			link = l.Href
			break
		}
	}
	if link == "" && len(entry.Links) > 0 {
		link = entry.Links[0].Href
	}
	if link == "" {
		return nil
	}

	article := FeedArticle{
		Title:  title,
		Link:   link,
		Source: sourceName,
	}

	description := strings.TrimSpace(entry.Summary)
	if description == "" {
		description = strings.TrimSpace(entry.Content)
	}
	if description != "" {
		stripped := stripHTMLTags(description)
		article.Description = &stripped
	}

	dateValue := entry.Published
	if dateValue == "" {
		dateValue = entry.Updated
	}
	article.PublicationDate = ParseFeedDate(dateValue)

	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			article.Authors = append(article.Authors, name)
		}
	}
	for _, category := range entry.Categories {
		if category.Term != "" {
			article.Categories = append(article.Categories, category.Term)
		}
	}

	article.DOI = extractDOI(link, description)
	return &article
}

var (
	doiPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// extractDOI pulls a DOI out of a link or description, if present.
func extractDOI(link, description string) *string {
	for _, text := range []string{link, description} {
		if match := doiPattern.FindString(text); match != "" {
			doi := strings.TrimRight(match, ".,;")
			return &doi
		}
	}
	return nil
}

func stripHTMLTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, " "))
}
