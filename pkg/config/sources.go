package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes one RSS/Atom feed to poll.
type FeedConfig struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	Categories []string `yaml:"categories,omitempty"`
}

// SiteConfig describes one scrapeable site with its CSS selectors.
type SiteConfig struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	ArticleSelector     string `yaml:"article_selector"`
	TitleSelector       string `yaml:"title_selector"`
	LinkSelector        string `yaml:"link_selector"`
	DescriptionSelector string `yaml:"description_selector,omitempty"`
	DateSelector        string `yaml:"date_selector,omitempty"`
}

// SourceCatalog is the declarative source configuration loaded from the
// config directory (feeds.yaml, sites.yaml). Missing files fall back to the
// built-in defaults; an empty sites.yaml disables scraping regardless of the
// enable flag.
type SourceCatalog struct {
	Feeds map[string]FeedConfig `yaml:"feeds"`
	Sites map[string]SiteConfig `yaml:"sites"`
}

// DefaultFeeds is the built-in journal/blog/channel feed set.
var DefaultFeeds = map[string]FeedConfig{
	"frontiers_sports": {
		Name:       "Frontiers in Sports and Active Living",
		URL:        "https://www.frontiersin.org/journals/sports-and-active-living/rss",
		Categories: []string{"sports_science", "exercise", "research"},
	},
	"jissn": {
		Name:       "Journal of the International Society of Sports Nutrition",
		URL:        "https://jissn.biomedcentral.com/articles/most-recent/rss.xml",
		Categories: []string{"nutrition", "supplements", "research"},
	},
	"jappl": {
		Name:       "Journal of Applied Physiology",
		URL:        "https://www.physiology.org/action/showFeed?type=etoc&feed=rss&jc=jappl",
		Categories: []string{"physiology", "research"},
	},
	"sports_medicine": {
		Name:       "Sports Medicine",
		URL:        "https://link.springer.com/search.rss?facet-content-type=Article&facet-journal-id=40279&channel-name=Sports%20Medicine",
		Categories: []string{"sports_medicine", "research"},
	},
	"bjsm": {
		Name:       "British Journal of Sports Medicine",
		URL:        "https://bjsm.bmj.com/rss/current.xml",
		Categories: []string{"sports_medicine", "injury", "research"},
	},
	"sbs": {
		Name:       "Stronger By Science",
		URL:        "https://www.strongerbyscience.com/feed/",
		Categories: []string{"strength", "hypertrophy", "programming"},
	},
	"examine": {
		Name:       "Examine.com",
		URL:        "https://examine.com/blog/feed/",
		Categories: []string{"nutrition", "supplements"},
	},
	"weightology": {
		Name:       "Weightology",
		URL:        "https://weightology.net/feed/",
		Categories: []string{"strength", "nutrition", "research"},
	},
}

// LoadSourceCatalog reads feeds.yaml and sites.yaml from configDir.
// Environment variables in the files are expanded before parsing. Missing
// files are not errors: feeds fall back to DefaultFeeds, sites to empty.
func LoadSourceCatalog(configDir string) (*SourceCatalog, error) {
	catalog := &SourceCatalog{
		Feeds: DefaultFeeds,
		Sites: map[string]SiteConfig{},
	}

	if configDir == "" {
		return catalog, nil
	}

	var feeds struct {
		Feeds map[string]FeedConfig `yaml:"feeds"`
	}
	found, err := loadYAMLFile(filepath.Join(configDir, "feeds.yaml"), &feeds)
	if err != nil {
		return nil, err
	}
	if found && len(feeds.Feeds) > 0 {
		catalog.Feeds = feeds.Feeds
	}

	var sites struct {
		Sites map[string]SiteConfig `yaml:"sites"`
	}
	found, err = loadYAMLFile(filepath.Join(configDir, "sites.yaml"), &sites)
	if err != nil {
		return nil, err
	}
	if found {
		catalog.Sites = sites.Sites
	}

	return catalog, nil
}

// loadYAMLFile reads and parses one YAML file with env expansion.
// Returns false without error when the file does not exist.
func loadYAMLFile(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, NewLoadError(filepath.Base(path), err)
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return false, NewLoadError(filepath.Base(path), fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return true, nil
}
