package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSourceCatalog_DefaultsWhenNoDir(t *testing.T) {
	catalog, err := LoadSourceCatalog("")
	require.NoError(t, err)

	assert.Equal(t, DefaultFeeds, catalog.Feeds)
	assert.Empty(t, catalog.Sites)
}

func TestLoadSourceCatalog_MissingFilesUseDefaults(t *testing.T) {
	catalog, err := LoadSourceCatalog(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultFeeds, catalog.Feeds)
}

func TestLoadSourceCatalog_FeedsFromYAML(t *testing.T) {
	dir := t.TempDir()
	feeds := `feeds:
  jissn:
    name: Journal of the International Society of Sports Nutrition
    url: https://jissn.biomedcentral.com/articles/most-recent/rss.xml
    categories: [nutrition, research]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds.yaml"), []byte(feeds), 0o644))

	catalog, err := LoadSourceCatalog(dir)
	require.NoError(t, err)

	require.Len(t, catalog.Feeds, 1)
	assert.Equal(t, "https://jissn.biomedcentral.com/articles/most-recent/rss.xml", catalog.Feeds["jissn"].URL)
	assert.Equal(t, []string{"nutrition", "research"}, catalog.Feeds["jissn"].Categories)
}

func TestLoadSourceCatalog_SitesWithSelectors(t *testing.T) {
	dir := t.TempDir()
	sites := `sites:
  sbs:
    name: Stronger By Science
    url: https://www.strongerbyscience.com/articles/
    article_selector: "article, .blog-post"
    title_selector: "h2 a"
    link_selector: "h2 a"
    description_selector: ".excerpt"
    date_selector: "time"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sites.yaml"), []byte(sites), 0o644))

	catalog, err := LoadSourceCatalog(dir)
	require.NoError(t, err)

	require.Contains(t, catalog.Sites, "sbs")
	assert.Equal(t, "article, .blog-post", catalog.Sites["sbs"].ArticleSelector)
}

func TestLoadSourceCatalog_ExpandsEnvVars(t *testing.T) {
	t.Setenv("FEED_HOST", "feeds.example.com")

	dir := t.TempDir()
	feeds := "feeds:\n  custom:\n    name: Custom\n    url: https://${FEED_HOST}/rss\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds.yaml"), []byte(feeds), 0o644))

	catalog, err := LoadSourceCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.com/rss", catalog.Feeds["custom"].URL)
}

func TestLoadSourceCatalog_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds.yaml"), []byte("feeds: [broken"), 0o644))

	_, err := LoadSourceCatalog(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}
