package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/config"
)

const listingPage = `<!DOCTYPE html>
<html><body>
  <article class="blog-post">
    <h2><a href="/articles/volume-landmarks">Volume landmarks for muscle growth</a></h2>
    <div class="excerpt">How much is too much?   A practical guide.</div>
    <time datetime="2025-06-02">June 2, 2025</time>
  </article>
  <article class="blog-post">
    <h2><a href="https://other.example.com/absolute">Absolute link article</a></h2>
    <div class="excerpt"></div>
  </article>
  <article class="blog-post">
    <h2>No link in this one</h2>
  </article>
</body></html>`

func testSite(url string) config.SiteConfig {
	return config.SiteConfig{
		Name:                "Test Blog",
		URL:                 url,
		ArticleSelector:     "article.blog-post",
		TitleSelector:       "h2 a",
		LinkSelector:        "h2 a",
		DescriptionSelector: ".excerpt",
		DateSelector:        "time",
	}
}

func TestScraper_ExtractsArticlesWithSelectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	s := NewScraper(map[string]config.SiteConfig{"test": testSite(srv.URL)}, 100, 5*time.Second, nil, nil)

	articles, err := s.ScrapeSite(context.Background(), "test")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "Volume landmarks for muscle growth", a.Title)
	assert.Equal(t, srv.URL+"/articles/volume-landmarks", a.Link)
	require.NotNil(t, a.Description)
	assert.Equal(t, "How much is too much? A practical guide.", *a.Description)
	require.NotNil(t, a.PublicationDate)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), *a.PublicationDate)
	assert.Equal(t, "Test Blog", a.Source)

	// Absolute links pass through unchanged; empty descriptions stay nil.
	b := articles[1]
	assert.Equal(t, "https://other.example.com/absolute", b.Link)
	assert.Nil(t, b.Description)
}

func TestScraper_UnknownSite(t *testing.T) {
	s := NewScraper(map[string]config.SiteConfig{}, 1, time.Second, nil, nil)
	_, err := s.ScrapeSite(context.Background(), "nope")
	assert.Error(t, err)
}

func TestScraper_PerDomainLimiterIsShared(t *testing.T) {
	s := NewScraper(map[string]config.SiteConfig{}, 1, time.Second, nil, nil)

	l1 := s.domainLimiter("https://example.com/a")
	l2 := s.domainLimiter("https://example.com/b")
	l3 := s.domainLimiter("https://other.com/c")

	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}
