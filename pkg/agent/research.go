package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/sources"
	"github.com/ageree/curator/pkg/store"
)

// maxCandidateAgeDays is the quality-filter window for candidate papers.
const maxCandidateAgeDays = 365 * 5

// minAbstractLength is the quality-filter floor for abstract length.
const minAbstractLength = 100

// PubMedSearcher is the biomedical-index surface consumed by Research.
type PubMedSearcher interface {
	SearchRecent(ctx context.Context, daysBack, maxResults int) ([]sources.PubMedArticle, error)
	SearchWithQuery(ctx context.Context, query string, daysBack, maxResults int) ([]sources.PubMedArticle, error)
}

// CrossRefSearcher is the DOI-registry surface consumed by Research.
type CrossRefSearcher interface {
	SearchRecent(ctx context.Context, daysBack, maxResults int) ([]sources.CrossRefWork, error)
}

// FeedFetcher is the journal/blog feed surface consumed by Research.
type FeedFetcher interface {
	FetchAll(ctx context.Context, daysBack int) ([]sources.FeedArticle, error)
}

// SiteScraper is the web-scrape surface consumed by Research.
type SiteScraper interface {
	ScrapeAll(ctx context.Context) ([]sources.ScrapedArticle, error)
}

// PerplexitySearcher is the LLM-backed search surface consumed by Research.
type PerplexitySearcher interface {
	IsConfigured() bool
	SearchResearch(ctx context.Context, maxResults int) ([]sources.PerplexityArticle, error)
}

// ResearchConfig tunes the research agent.
type ResearchConfig struct {
	DaysBack            int
	MaxResultsPerSource int

	EnableWebScraping         bool
	EnablePerplexity          bool
	EnableTrustedSourceSearch bool
}

// SourceResult counts one source's contribution to a run.
type SourceResult struct {
	Found int `json:"found"`
	Added int `json:"added"`
}

// ResearchResult summarizes one research iteration.
type ResearchResult struct {
	PerSource  map[string]SourceResult `json:"per_source"`
	TotalAdded int                     `json:"total_added"`
}

// Research harvests candidate papers from the external sources, scores their
// priority against the trusted registries, and enqueues them.
type Research struct {
	store      store.Store
	pubmed     PubMedSearcher
	crossref   CrossRefSearcher
	feeds      FeedFetcher
	scraper    SiteScraper
	perplexity PerplexitySearcher
	cfg        ResearchConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewResearch creates the research agent. Any source may be nil (disabled).
func NewResearch(s store.Store, pubmed PubMedSearcher, crossref CrossRefSearcher, feeds FeedFetcher, scraper SiteScraper, perplexity PerplexitySearcher, cfg ResearchConfig) *Research {
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 7
	}
	if cfg.MaxResultsPerSource <= 0 {
		cfg.MaxResultsPerSource = 20
	}
	return &Research{
		store:      s,
		pubmed:     pubmed,
		crossref:   crossref,
		feeds:      feeds,
		scraper:    scraper,
		perplexity: perplexity,
		cfg:        cfg,
		logger:     slog.Default().With("agent", NameResearch),
		now:        time.Now,
	}
}

// Name implements Agent.
func (a *Research) Name() string { return NameResearch }

// Shutdown implements Agent.
func (a *Research) Shutdown(context.Context) error { return nil }

// Process fans out over every enabled source concurrently, then merges and
// enqueues the candidates. A failing source is logged and skipped; it never
// aborts its siblings.
func (a *Research) Process(ctx context.Context) (any, error) {
	a.logger.Info("Starting research search")

	authors, journals, err := a.loadTrusted(ctx)
	if err != nil {
		return nil, err
	}

	var (
		pubmedArticles     []sources.PubMedArticle
		crossrefWorks      []sources.CrossRefWork
		feedArticles       []sources.FeedArticle
		scrapedArticles    []sources.ScrapedArticle
		perplexityArticles []sources.PerplexityArticle
		trustedJournalHits []sources.PubMedArticle
		trustedAuthorHits  []sources.PubMedArticle
	)

	// Fan out; each task absorbs its own failure.
	g, gctx := errgroup.WithContext(ctx)

	if a.pubmed != nil {
		g.Go(func() error {
			var err error
			pubmedArticles, err = a.pubmed.SearchRecent(gctx, a.cfg.DaysBack, a.cfg.MaxResultsPerSource)
			if err != nil {
				a.logger.Error("PubMed search failed", "error", err)
			}
			return nil
		})
	}
	if a.crossref != nil {
		g.Go(func() error {
			var err error
			crossrefWorks, err = a.crossref.SearchRecent(gctx, a.cfg.DaysBack, a.cfg.MaxResultsPerSource)
			if err != nil {
				a.logger.Error("CrossRef search failed", "error", err)
			}
			return nil
		})
	}
	if a.feeds != nil {
		g.Go(func() error {
			var err error
			feedArticles, err = a.feeds.FetchAll(gctx, a.cfg.DaysBack)
			if err != nil {
				a.logger.Error("Feed fetch failed", "error", err)
			}
			return nil
		})
	}
	if a.cfg.EnableWebScraping && a.scraper != nil {
		g.Go(func() error {
			var err error
			scrapedArticles, err = a.scraper.ScrapeAll(gctx)
			if err != nil {
				a.logger.Error("Web scraping failed", "error", err)
			}
			return nil
		})
	}
	if a.cfg.EnablePerplexity && a.perplexity != nil && a.perplexity.IsConfigured() {
		g.Go(func() error {
			var err error
			perplexityArticles, err = a.perplexity.SearchResearch(gctx, a.cfg.MaxResultsPerSource)
			if err != nil {
				a.logger.Error("Perplexity search failed", "error", err)
			}
			return nil
		})
	}
	if a.cfg.EnableTrustedSourceSearch && a.pubmed != nil {
		// Trusted sweeps look back twice as far.
		if !journals.Empty() {
			g.Go(func() error {
				query := sources.BuildJournalQuery(journals.Names())
				var err error
				trustedJournalHits, err = a.pubmed.SearchWithQuery(gctx, query, a.cfg.DaysBack*2, a.cfg.MaxResultsPerSource)
				if err != nil {
					a.logger.Error("Trusted journal search failed", "error", err)
				}
				return nil
			})
		}
		if !authors.Empty() {
			g.Go(func() error {
				query := sources.BuildAuthorQuery(authors.Names())
				var err error
				trustedAuthorHits, err = a.pubmed.SearchWithQuery(gctx, query, a.cfg.DaysBack*2, a.cfg.MaxResultsPerSource)
				if err != nil {
					a.logger.Error("Trusted author search failed", "error", err)
				}
				return nil
			})
		}
	}

	_ = g.Wait()

	result := &ResearchResult{PerSource: map[string]SourceResult{}}

	result.record("pubmed", len(pubmedArticles), a.enqueuePubMed(ctx, pubmedArticles, authors, journals))
	result.record("crossref", len(crossrefWorks), a.enqueueCrossRef(ctx, crossrefWorks, authors, journals))
	result.record("rss", len(feedArticles), a.enqueueFeeds(ctx, feedArticles))
	result.record("trusted_journal_search", len(trustedJournalHits), a.enqueuePubMed(ctx, trustedJournalHits, authors, journals))
	result.record("trusted_author_search", len(trustedAuthorHits), a.enqueuePubMed(ctx, trustedAuthorHits, authors, journals))
	result.record("web_scraped", len(scrapedArticles), a.enqueueScraped(ctx, scrapedArticles))
	result.record("perplexity", len(perplexityArticles), a.enqueuePerplexity(ctx, perplexityArticles))

	a.logger.Info("Research search complete", "total_added", result.TotalAdded)
	return result, nil
}

func (r *ResearchResult) record(source string, found, added int) {
	r.PerSource[source] = SourceResult{Found: found, Added: added}
	r.TotalAdded += added
}

func (a *Research) loadTrusted(ctx context.Context) (*trustedRegistry, *trustedRegistry, error) {
	authorRows, err := a.store.ListTrustedAuthors(ctx)
	if err != nil {
		return nil, nil, err
	}
	journalRows, err := a.store.ListTrustedJournals(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newTrustedRegistry(authorRows), newTrustedRegistry(journalRows), nil
}

func (a *Research) enqueuePubMed(ctx context.Context, articles []sources.PubMedArticle, authors, journals *trustedRegistry) int {
	added := 0
	for _, article := range articles {
		if !a.meetsCriteria(article) {
			continue
		}

		authorBoost := authors.MaxBoost(article.Authors)
		journalBoost := 0
		if article.Journal != nil {
			journalBoost = journals.Boost(*article.Journal)
		}

		var url *string
		if article.PMID != "" {
			u := "https://pubmed.ncbi.nlm.nih.gov/" + article.PMID + "/"
			url = &u
		}

		item := &models.ResearchQueueItem{
			Title:           article.Title,
			Authors:         article.Authors,
			Abstract:        article.Abstract,
			DOI:             article.DOI,
			URL:             url,
			PublicationDate: article.PublicationDate,
			SourceType:      models.SourcePubMed,
			Priority:        a.priorityFor(article.StudyType, authorBoost, journalBoost, article.PublicationDate),
			RawData: map[string]any{
				"pmid":           article.PMID,
				"journal":        derefOrEmpty(article.Journal),
				"mesh_terms":     article.MeshTerms,
				"study_type":     derefOrEmpty(article.StudyType),
				"trusted_source": authorBoost > 0 || journalBoost > 0,
				"author_boost":   authorBoost,
				"journal_boost":  journalBoost,
			},
		}
		added += a.enqueue(ctx, item)
	}
	return added
}

func (a *Research) enqueueCrossRef(ctx context.Context, works []sources.CrossRefWork, authors, journals *trustedRegistry) int {
	added := 0
	for _, work := range works {
		authorBoost := authors.MaxBoost(work.Authors)
		journalBoost := 0
		if work.Journal != nil {
			journalBoost = journals.Boost(*work.Journal)
		}

		priority := models.PriorityDefault - authorBoost - journalBoost
		// Highly cited works float up.
		switch {
		case work.IsReferencedByCount > 50:
			priority -= 2
		case work.IsReferencedByCount > 10:
			priority -= 1
		}
		if a.isRecent(work.PublicationDate) {
			priority--
		}

		doi := work.DOI
		item := &models.ResearchQueueItem{
			Title:           work.Title,
			Authors:         work.Authors,
			Abstract:        work.Abstract,
			DOI:             &doi,
			URL:             work.URL,
			PublicationDate: work.PublicationDate,
			SourceType:      models.SourceCrossRef,
			Priority:        models.ClampPriority(priority),
			RawData: map[string]any{
				"journal":        derefOrEmpty(work.Journal),
				"subjects":       work.Subjects,
				"cited_by_count": work.IsReferencedByCount,
				"type":           work.Type,
			},
		}
		added += a.enqueue(ctx, item)
	}
	return added
}

func (a *Research) enqueueFeeds(ctx context.Context, articles []sources.FeedArticle) int {
	added := 0
	for _, article := range articles {
		link := article.Link
		item := &models.ResearchQueueItem{
			Title:           article.Title,
			Authors:         article.Authors,
			Abstract:        article.Description,
			DOI:             article.DOI,
			URL:             &link,
			PublicationDate: article.PublicationDate,
			SourceType:      models.SourceRSSFeed,
			Priority:        models.PriorityDefault,
			RawData: map[string]any{
				"source":     article.Source,
				"categories": article.Categories,
			},
		}
		added += a.enqueue(ctx, item)
	}
	return added
}

func (a *Research) enqueueScraped(ctx context.Context, articles []sources.ScrapedArticle) int {
	added := 0
	for _, article := range articles {
		link := article.Link
		item := &models.ResearchQueueItem{
			Title:           article.Title,
			Abstract:        article.Description,
			URL:             &link,
			PublicationDate: article.PublicationDate,
			SourceType:      models.SourceWebScrape,
			Priority:        6, // below feed content: scraped pages carry less signal
			RawData: map[string]any{
				"source":     article.Source,
				"categories": article.Categories,
				"scraped":    true,
			},
		}
		added += a.enqueue(ctx, item)
	}
	return added
}

func (a *Research) enqueuePerplexity(ctx context.Context, articles []sources.PerplexityArticle) int {
	added := 0
	for _, article := range articles {
		url := article.URL
		snippet := article.Snippet
		item := &models.ResearchQueueItem{
			Title:      article.Title,
			Authors:    []string{},
			Abstract:   &snippet,
			URL:        &url,
			SourceType: models.SourcePerplexity,
			Priority:   4, // curated results rank above plain feeds
			RawData: map[string]any{
				"source":       "perplexity",
				"citations":    article.Citations,
				"search_query": article.SearchQuery,
			},
		}
		added += a.enqueue(ctx, item)
	}
	return added
}

// enqueue inserts one candidate, silently skipping duplicates.
func (a *Research) enqueue(ctx context.Context, item *models.ResearchQueueItem) int {
	_, err := a.store.EnqueueCandidate(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCandidate) {
			return 0
		}
		a.logger.Error("Failed to enqueue candidate", "title", item.Title, "error", err)
		return 0
	}
	return 1
}

// meetsCriteria is the quality filter: publication inside the window and an
// abstract of at least minAbstractLength characters.
func (a *Research) meetsCriteria(article sources.PubMedArticle) bool {
	if article.PublicationDate != nil {
		cutoff := a.now().AddDate(0, 0, -maxCandidateAgeDays)
		if article.PublicationDate.Before(cutoff) {
			return false
		}
	}
	if article.Abstract == nil || len(strings.TrimSpace(*article.Abstract)) < minAbstractLength {
		return false
	}
	return true
}

// priorityFor computes the candidate priority:
//
//	5 − design_bonus − author_boost − journal_boost − recency_bonus
//
// clamped to [1,10] once, at the end.
func (a *Research) priorityFor(studyType *string, authorBoost, journalBoost int, pubDate *time.Time) int {
	priority := models.PriorityDefault

	if studyType != nil {
		switch *studyType {
		case models.DesignMetaAnalysis:
			priority -= 3
		case models.DesignSystematicReview:
			priority -= 2
		case models.DesignRCT:
			priority -= 1
		}
	}

	priority -= authorBoost
	priority -= journalBoost

	if a.isRecent(pubDate) {
		priority--
	}

	return models.ClampPriority(priority)
}

// isRecent reports whether the date falls within the last 30 days.
func (a *Research) isRecent(t *time.Time) bool {
	return t != nil && a.now().Sub(*t) < 30*24*time.Hour
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
