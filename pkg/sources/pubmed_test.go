package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/models"
)

const pubmedFixture = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>38000001</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate><Year>2025</Year><Month>May</Month><Day>12</Day></PubDate>
          </JournalIssue>
          <Title>Journal of Applied Physiology</Title>
        </Journal>
        <ArticleTitle>Resistance training volume and hypertrophy</ArticleTitle>
        <Abstract>
          <AbstractText>Higher weekly set volumes produced greater hypertrophy in trained men over 12 weeks.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Schoenfeld</LastName><ForeName>Brad</ForeName></Author>
          <Author><LastName>Krieger</LastName><ForeName>James</ForeName></Author>
        </AuthorList>
        <PublicationTypeList>
          <PublicationType>Journal Article</PublicationType>
          <PublicationType>Meta-Analysis</PublicationType>
        </PublicationTypeList>
      </Article>
      <MeshHeadingList>
        <MeshHeading><DescriptorName>Resistance Training</DescriptorName></MeshHeading>
      </MeshHeadingList>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">38000001</ArticleId>
        <ArticleId IdType="doi">10.1152/japplphysiol.2025.001</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>38000002</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2025</Year></PubDate></JournalIssue>
          <Title>Sports Medicine</Title>
        </Journal>
        <ArticleTitle>Protein timing revisited</ArticleTitle>
        <PublicationTypeList>
          <PublicationType>Randomized Controlled Trial</PublicationType>
        </PublicationTypeList>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestParsePubMedXML_FullArticle(t *testing.T) {
	articles, err := ParsePubMedXML([]byte(pubmedFixture), nil)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "38000001", a.PMID)
	assert.Equal(t, "Resistance training volume and hypertrophy", a.Title)
	require.NotNil(t, a.Abstract)
	assert.Contains(t, *a.Abstract, "greater hypertrophy")
	assert.Equal(t, []string{"Brad Schoenfeld", "James Krieger"}, a.Authors)
	require.NotNil(t, a.Journal)
	assert.Equal(t, "Journal of Applied Physiology", *a.Journal)
	require.NotNil(t, a.DOI)
	assert.Equal(t, "10.1152/japplphysiol.2025.001", *a.DOI)
	require.NotNil(t, a.PublicationDate)
	assert.Equal(t, time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC), *a.PublicationDate)
	require.NotNil(t, a.StudyType)
	assert.Equal(t, models.DesignMetaAnalysis, *a.StudyType)
	assert.Equal(t, []string{"Resistance Training"}, a.MeshTerms)
}

func TestParsePubMedXML_YearOnlyDateAndRCTMapping(t *testing.T) {
	articles, err := ParsePubMedXML([]byte(pubmedFixture), nil)
	require.NoError(t, err)

	b := articles[1]
	assert.Nil(t, b.Abstract)
	require.NotNil(t, b.PublicationDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *b.PublicationDate)
	require.NotNil(t, b.StudyType)
	assert.Equal(t, models.DesignRCT, *b.StudyType)
}

func TestDetermineStudyType_MeshFallback(t *testing.T) {
	design := determineStudyType([]string{"Journal Article"}, []string{"Meta-Analysis as Topic"})
	require.NotNil(t, design)
	assert.Equal(t, models.DesignMetaAnalysis, *design)
}

func TestDetermineStudyType_UnknownIsNil(t *testing.T) {
	assert.Nil(t, determineStudyType([]string{"Journal Article"}, nil))
}

func TestBuildJournalQuery_CapsAtTen(t *testing.T) {
	journals := make([]string, 15)
	for i := range journals {
		journals[i] = "J" + string(rune('a'+i))
	}
	query := BuildJournalQuery(journals)
	assert.Contains(t, query, `"Ja"[journal]`)
	assert.NotContains(t, query, `"Jl"[journal]`)
	assert.Contains(t, query, "resistance training")
}

func TestPubMedClient_SearchWithQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		_, _ = w.Write([]byte(`{"esearchresult": {"idlist": ["38000001", "38000002"]}}`))
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "38000001,38000002", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(pubmedFixture))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewPubMedClient("", nil, nil, nil)
	c.SetBaseURL(srv.URL)

	articles, err := c.SearchWithQuery(context.Background(), "hypertrophy", 7, 20)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}
