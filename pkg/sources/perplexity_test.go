package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticlesFromCitations(t *testing.T) {
	articles := articlesFromCitations(
		[]string{"https://pubmed.ncbi.nlm.nih.gov/38000001/", "not a url"},
		"Recent research shows...", "hypertrophy training research")

	require.Len(t, articles, 1)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/38000001/", articles[0].URL)
	assert.Equal(t, "hypertrophy training research", articles[0].SearchQuery)
	assert.NotEmpty(t, articles[0].Snippet)
}

func TestPerplexityClient_UnconfiguredIsNoOp(t *testing.T) {
	c := NewPerplexityClient("", "sonar", time.Second, nil, nil)
	assert.False(t, c.IsConfigured())

	_, err := c.SearchResearch(context.Background(), 10)
	assert.Error(t, err)
}

func TestPerplexityClient_HarvestsCitations(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"citations": []string{
				"https://pubmed.ncbi.nlm.nih.gov/38000001/",
				"https://doi.org/10.1007/s40279-025-02001-1",
			},
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Two recent studies stand out."}},
			},
		})
	}))
	defer srv.Close()

	c := NewPerplexityClient("pplx-key", "sonar", time.Second, nil, nil)
	c.SetBaseURL(srv.URL)

	articles, err := c.SearchResearch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/38000001/", articles[0].URL)
	assert.Equal(t, "Two recent studies stand out.", articles[0].Snippet)
	// maxResults caps the harvest even though more queries are available.
	assert.Less(t, calls, len(perplexityQueries))
}
