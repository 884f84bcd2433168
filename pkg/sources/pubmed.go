package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/resilience"
)

const pubmedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// pubmedSearchTerms is the default topic list for recent-literature sweeps.
var pubmedSearchTerms = []string{
	"resistance training",
	"strength training",
	"muscle hypertrophy",
	"protein synthesis",
	"muscle recovery",
	"exercise nutrition",
	"periodization",
	"training volume",
	"training intensity",
	"muscle damage",
	"DOMS",
	"creatine supplementation",
	"protein supplementation",
	"BCAA",
	"sleep recovery",
	"overtraining",
}

// pubmedStudyTypeFilters restricts sweeps to interventional evidence.
var pubmedStudyTypeFilters = []string{
	"Randomized Controlled Trial",
	"Meta-Analysis",
	"Systematic Review",
	"Clinical Trial",
	"Controlled Clinical Trial",
}

// PubMedArticle is one parsed article from the efetch response.
type PubMedArticle struct {
	PMID            string
	Title           string
	Abstract        *string
	Authors         []string
	PublicationDate *time.Time
	Journal         *string
	DOI             *string
	MeshTerms       []string
	StudyType       *string
}

// PubMedClient queries the NCBI E-utilities REST API. Unauthenticated access
// is limited to ~3 requests per second; an API key raises the limit.
type PubMedClient struct {
	client  *guardedClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewPubMedClient creates a PubMed adapter.
func NewPubMedClient(apiKey string, limiter acquirer, breaker *resilience.Breaker, retry *resilience.Retryer) *PubMedClient {
	return &PubMedClient{
		client:  newGuardedClient(30*time.Second, limiter, breaker, retry, ""),
		apiKey:  apiKey,
		baseURL: pubmedBaseURL,
		logger:  slog.Default().With("component", "pubmed"),
	}
}

// SetBaseURL points the client at a different endpoint (for tests).
func (c *PubMedClient) SetBaseURL(u string) { c.baseURL = u }

// SearchRecent sweeps the default topic list for articles published in the
// look-back window. Per-term failures are logged and skipped.
func (c *PubMedClient) SearchRecent(ctx context.Context, daysBack, maxResults int) ([]PubMedArticle, error) {
	now := time.Now()
	dateFrom := now.AddDate(0, 0, -daysBack).Format("2006/01/02")
	dateTo := now.Format("2006/01/02")

	var all []PubMedArticle
	seen := map[string]bool{}

	for _, term := range pubmedSearchTerms {
		pmids, err := c.search(ctx, c.buildQuery(term, dateFrom, dateTo, pubmedStudyTypeFilters), maxResults)
		if err != nil {
			c.logger.Error("PubMed term search failed", "term", term, "error", err)
			continue
		}

		fresh := pmids[:0:0]
		for _, pmid := range pmids {
			if !seen[pmid] {
				seen[pmid] = true
				fresh = append(fresh, pmid)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		articles, err := c.FetchArticles(ctx, fresh)
		if err != nil {
			c.logger.Error("PubMed fetch failed", "term", term, "error", err)
			continue
		}
		all = append(all, articles...)
	}

	return all, nil
}

// SearchWithQuery runs one explicit query over the look-back window and
// fetches the matching articles.
func (c *PubMedClient) SearchWithQuery(ctx context.Context, query string, daysBack, maxResults int) ([]PubMedArticle, error) {
	now := time.Now()
	dateFrom := now.AddDate(0, 0, -daysBack).Format("2006/01/02")
	dateTo := now.Format("2006/01/02")

	pmids, err := c.search(ctx, c.buildQuery(query, dateFrom, dateTo, pubmedStudyTypeFilters), maxResults)
	if err != nil {
		return nil, err
	}
	return c.FetchArticles(ctx, pmids)
}

// BuildJournalQuery composes an esearch filter over trusted journal names
// combined with the core topic terms.
func BuildJournalQuery(journals []string) string {
	if len(journals) > 10 {
		journals = journals[:10]
	}
	filters := make([]string, 0, len(journals))
	for _, j := range journals {
		filters = append(filters, fmt.Sprintf("%q[journal]", j))
	}
	return fmt.Sprintf("(%s) AND (resistance training OR hypertrophy OR strength training OR protein synthesis)",
		strings.Join(filters, " OR "))
}

// BuildAuthorQuery composes an esearch filter over trusted author names.
func BuildAuthorQuery(authors []string) string {
	if len(authors) > 10 {
		authors = authors[:10]
	}
	filters := make([]string, 0, len(authors))
	for _, a := range authors {
		filters = append(filters, fmt.Sprintf("%q[author]", a))
	}
	return "(" + strings.Join(filters, " OR ") + ")"
}

func (c *PubMedClient) buildQuery(query, dateFrom, dateTo string, studyTypes []string) string {
	full := query
	if len(studyTypes) > 0 {
		filters := make([]string, 0, len(studyTypes))
		for _, st := range studyTypes {
			filters = append(filters, fmt.Sprintf("%q[pt]", st))
		}
		full = fmt.Sprintf("(%s) AND (%s)", full, strings.Join(filters, " OR "))
	}
	full = fmt.Sprintf("(%s) AND %s:%s[pdat]", full, dateFrom, dateTo)
	return full
}

// search runs esearch and returns the matching PMIDs.
func (c *PubMedClient) search(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "date")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.client.get(ctx, "pubmed-esearch", c.baseURL+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}

	var parsed struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse esearch response: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

// FetchArticles fetches full article records for the given PMIDs.
func (c *PubMedClient) FetchArticles(ctx context.Context, pmids []string) ([]PubMedArticle, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.client.get(ctx, "pubmed-efetch", c.baseURL+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}
	return ParsePubMedXML(body, c.logger)
}

// --- efetch XML shapes ---

type pubmedArticleSet struct {
	Articles []pubmedArticleXML `xml:"PubmedArticle"`
}

type pubmedArticleXML struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title    string `xml:"ArticleTitle"`
		Abstract struct {
			Texts []string `xml:"AbstractText"`
		} `xml:"Abstract"`
		Authors []struct {
			LastName string `xml:"LastName"`
			ForeName string `xml:"ForeName"`
		} `xml:"AuthorList>Author"`
		Journal struct {
			Title   string `xml:"Title"`
			PubDate struct {
				Year  string `xml:"Year"`
				Month string `xml:"Month"`
				Day   string `xml:"Day"`
			} `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
	} `xml:"MedlineCitation>Article"`
	MeshHeadings []string `xml:"MedlineCitation>MeshHeadingList>MeshHeading>DescriptorName"`
	ArticleIDs   []struct {
		IDType string `xml:"IdType,attr"`
		Value  string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// ParsePubMedXML parses an efetch response. Articles that fail to parse are
// logged and skipped; the rest of the batch survives.
func ParsePubMedXML(data []byte, logger *slog.Logger) ([]PubMedArticle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse pubmed XML: %w", err)
	}

	articles := make([]PubMedArticle, 0, len(set.Articles))
	for _, raw := range set.Articles {
		if raw.PMID == "" {
			logger.Warn("Skipping article without PMID")
			continue
		}

		article := PubMedArticle{
			PMID:      raw.PMID,
			Title:     raw.Article.Title,
			MeshTerms: raw.MeshHeadings,
		}

		if len(raw.Article.Abstract.Texts) > 0 {
			abstract := strings.Join(raw.Article.Abstract.Texts, " ")
			if abstract != "" {
				article.Abstract = &abstract
			}
		}

		for _, author := range raw.Article.Authors {
			if author.LastName == "" {
				continue
			}
			name := author.LastName
			if author.ForeName != "" {
				name = author.ForeName + " " + name
			}
			article.Authors = append(article.Authors, name)
		}

		if journal := raw.Article.Journal.Title; journal != "" {
			article.Journal = &journal
		}

		article.PublicationDate = parsePubDate(
			raw.Article.Journal.PubDate.Year,
			raw.Article.Journal.PubDate.Month,
			raw.Article.Journal.PubDate.Day,
		)

		for _, id := range raw.ArticleIDs {
			if id.IDType == "doi" && id.Value != "" {
				doi := id.Value
				article.DOI = &doi
				break
			}
		}

		article.StudyType = determineStudyType(raw.Article.PublicationTypes, raw.MeshHeadings)

		articles = append(articles, article)
	}

	return articles, nil
}

func parsePubDate(year, month, day string) *time.Time {
	if year == "" {
		return nil
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	m := time.January
	if month != "" {
		m = parseMonth(month)
	}
	d := 1
	if day != "" {
		if parsed, err := strconv.Atoi(day); err == nil {
			d = parsed
		}
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// determineStudyType maps PubMed publication types (falling back to MeSH
// terms) to the pipeline's study-design tags.
func determineStudyType(pubTypes, meshTerms []string) *string {
	lower := make([]string, 0, len(pubTypes))
	for _, pt := range pubTypes {
		lower = append(lower, strings.ToLower(pt))
	}

	match := func(needle string) bool {
		for _, pt := range lower {
			if strings.Contains(pt, needle) {
				return true
			}
		}
		return false
	}

	var design string
	switch {
	case match("meta-analysis"):
		design = models.DesignMetaAnalysis
	case match("systematic review"):
		design = models.DesignSystematicReview
	case match("randomized controlled trial"), match("controlled clinical trial"):
		design = models.DesignRCT
	case match("cohort"):
		design = models.DesignCohort
	case match("case-control"):
		design = models.DesignCaseControl
	case match("cross-sectional"):
		design = models.DesignCrossSectional
	}

	if design == "" {
		for _, mesh := range meshTerms {
			m := strings.ToLower(mesh)
			if strings.Contains(m, "meta-analysis") {
				design = models.DesignMetaAnalysis
				break
			}
			if strings.Contains(m, "randomized controlled trial") {
				design = models.DesignRCT
				break
			}
		}
	}

	if design == "" {
		return nil
	}
	return &design
}
