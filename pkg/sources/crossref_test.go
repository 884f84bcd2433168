package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crossrefFixture = `{
  "message": {
    "items": [
      {
        "DOI": "10.1007/s40279-025-02001-1",
        "title": ["Training to failure: a systematic review"],
        "author": [
          {"given": "Pedro", "family": "Lopez"},
          {"given": "", "family": "Singh"}
        ],
        "abstract": "Training to failure offers no hypertrophy advantage over stopping short.",
        "container-title": ["Sports Medicine"],
        "URL": "https://doi.org/10.1007/s40279-025-02001-1",
        "subject": ["Physiology"],
        "is-referenced-by-count": 42,
        "type": "journal-article",
        "published-print": {"date-parts": [[2025, 4]]}
      },
      {
        "DOI": "10.9999/bad-year",
        "title": ["Suspicious future paper"],
        "published-online": {"date-parts": [[2031]]}
      },
      {
        "title": ["No DOI, dropped"]
      }
    ]
  }
}`

func newTestCrossRef(t *testing.T, handler http.HandlerFunc) *CrossRefClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewCrossRefClient("research@example.com", nil, nil, nil)
	c.SetBaseURL(srv.URL)
	c.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCrossRefClient_ParsesWorksAndPoliteUA(t *testing.T) {
	var gotUA, gotMailto string
	c := newTestCrossRef(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotMailto = r.URL.Query().Get("mailto")
		_, _ = w.Write([]byte(crossrefFixture))
	})

	works, err := c.searchWorks(context.Background(), "resistance training", "2025-05-25", 20)
	require.NoError(t, err)

	assert.Contains(t, gotUA, "mailto:research@example.com")
	assert.Equal(t, "research@example.com", gotMailto)

	// The DOI-less item is dropped; the bad-year item survives with no date.
	require.Len(t, works, 2)

	w0 := works[0]
	assert.Equal(t, "10.1007/s40279-025-02001-1", w0.DOI)
	assert.Equal(t, "Training to failure: a systematic review", w0.Title)
	assert.Equal(t, []string{"Pedro Lopez", "Singh"}, w0.Authors)
	require.NotNil(t, w0.Journal)
	assert.Equal(t, "Sports Medicine", *w0.Journal)
	assert.Equal(t, 42, w0.IsReferencedByCount)

	// Year+month date defaults the day to 1.
	require.NotNil(t, w0.PublicationDate)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *w0.PublicationDate)

	// Year 2031 > current_year+1 is rejected; the work keeps a nil date.
	assert.Nil(t, works[1].PublicationDate)
}

func TestCrossRefClient_SearchRecentDeduplicatesByDOI(t *testing.T) {
	calls := 0
	c := newTestCrossRef(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(crossrefFixture))
	})

	works, err := c.SearchRecent(context.Background(), 7, 20)
	require.NoError(t, err)

	// Every default query hits the server, but identical DOIs collapse.
	assert.Equal(t, len(crossrefQueries), calls)
	assert.Len(t, works, 2)
}
