package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rss2Fixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Stronger By Science</title>
    <item>
      <title><![CDATA[How much volume do you really need?]]></title>
      <link>https://www.strongerbyscience.com/volume/</link>
      <description><![CDATA[<p>A deep dive into <b>training volume</b> research.</p>]]></description>
      <pubDate>Mon, 02 Jun 2025 10:30:00 +0000</pubDate>
      <dc:creator>Greg Nuckols</dc:creator>
      <category>hypertrophy</category>
      <category>programming</category>
    </item>
    <item>
      <title>DOI-carrying study summary</title>
      <link>https://doi.org/10.1007/s40279-025-01999-1</link>
      <description>New meta-analysis on protein intake.</description>
      <pubDate>Tue, 03 Jun 2025 08:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

const rdfFixture = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns="http://purl.org/rss/1.0/"
         xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel rdf:about="https://example.org/feed">
    <title>RDF Journal</title>
  </channel>
  <item rdf:about="https://example.org/a1">
    <title>Cross-sectional study of training frequency</title>
    <link>https://example.org/a1</link>
    <description>Observational data on frequency.</description>
    <dc:date>2025-06-02T09:00:00Z</dc:date>
    <dc:creator>A Researcher</dc:creator>
  </item>
</rdf:RDF>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Journal Feed</title>
  <entry>
    <title>Sleep extension improves recovery markers</title>
    <link rel="alternate" href="https://journal.example.org/sleep-extension"/>
    <summary>Ten days of sleep extension improved HRV.</summary>
    <published>2025-06-01T12:00:00Z</published>
    <author><name>J Sleep</name></author>
    <category term="recovery"/>
  </entry>
</feed>`

func TestParseFeed_RSS2WithCDATAAndNamespaces(t *testing.T) {
	articles, err := ParseFeed([]byte(rss2Fixture), "Stronger By Science")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "How much volume do you really need?", a.Title)
	assert.Equal(t, "https://www.strongerbyscience.com/volume/", a.Link)
	require.NotNil(t, a.Description)
	assert.Contains(t, *a.Description, "training volume")
	assert.NotContains(t, *a.Description, "<p>")
	require.NotNil(t, a.PublicationDate)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC).Unix(), a.PublicationDate.Unix())
	assert.Equal(t, []string{"Greg Nuckols"}, a.Authors)
	assert.Equal(t, []string{"hypertrophy", "programming"}, a.Categories)
	assert.Equal(t, "Stronger By Science", a.Source)
}

func TestParseFeed_ExtractsDOIFromLink(t *testing.T) {
	articles, err := ParseFeed([]byte(rss2Fixture), "src")
	require.NoError(t, err)

	b := articles[1]
	require.NotNil(t, b.DOI)
	assert.Equal(t, "10.1007/s40279-025-01999-1", *b.DOI)
}

func TestParseFeed_RDFItemsOutsideChannel(t *testing.T) {
	articles, err := ParseFeed([]byte(rdfFixture), "RDF Journal")
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "Cross-sectional study of training frequency", a.Title)
	require.NotNil(t, a.PublicationDate)
	assert.Equal(t, []string{"A Researcher"}, a.Authors)
}

func TestParseFeed_Atom(t *testing.T) {
	articles, err := ParseFeed([]byte(atomFixture), "Journal Feed")
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.Equal(t, "Sleep extension improves recovery markers", a.Title)
	assert.Equal(t, "https://journal.example.org/sleep-extension", a.Link)
	require.NotNil(t, a.Description)
	assert.Equal(t, []string{"J Sleep"}, a.Authors)
	assert.Equal(t, []string{"recovery"}, a.Categories)
}

func TestParseFeed_SkipsItemsWithoutTitleOrLink(t *testing.T) {
	const broken = `<rss version="2.0"><channel>
		<item><title>No link here</title></item>
		<item><link>https://example.org/no-title</link></item>
	</channel></rss>`

	articles, err := ParseFeed([]byte(broken), "src")
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestParseFeed_MalformedXMLIsError(t *testing.T) {
	_, err := ParseFeed([]byte("<rss><channel><item>"), "src")
	assert.Error(t, err)
}
