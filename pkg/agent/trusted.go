package agent

import (
	"regexp"
	"strings"

	"github.com/ageree/curator/pkg/models"
)

var punctuationPattern = regexp.MustCompile(`[[:punct:]]`)

// normalizeName lowercases a name, strips punctuation, and collapses
// whitespace so registry lookups tolerate formatting differences.
func normalizeName(name string) string {
	normalized := punctuationPattern.ReplaceAllString(strings.ToLower(name), "")
	return strings.Join(strings.Fields(normalized), " ")
}

// trustedRegistry is an in-memory view of one trusted-source table, keyed by
// normalized name.
type trustedRegistry struct {
	boosts map[string]int
}

// newTrustedRegistry indexes the registry rows under their normalized names
// and short names.
func newTrustedRegistry(sources []*models.TrustedSource) *trustedRegistry {
	boosts := make(map[string]int, len(sources))
	for _, src := range sources {
		name := normalizeName(src.NormalizedName)
		if name == "" {
			name = normalizeName(src.Name)
		}
		if name != "" {
			boosts[name] = src.PriorityBoost
		}
		if src.ShortName != nil {
			if short := normalizeName(*src.ShortName); short != "" {
				boosts[short] = src.PriorityBoost
			}
		}
	}
	return &trustedRegistry{boosts: boosts}
}

// Empty reports whether the registry has no entries.
func (r *trustedRegistry) Empty() bool { return len(r.boosts) == 0 }

// Names returns the registry's normalized names.
func (r *trustedRegistry) Names() []string {
	names := make([]string, 0, len(r.boosts))
	for name := range r.boosts {
		names = append(names, name)
	}
	return names
}

// Boost returns the priority boost for a name: exact match on the normalized
// form first, then substring containment in either direction.
func (r *trustedRegistry) Boost(name string) int {
	if name == "" {
		return 0
	}
	normalized := normalizeName(name)
	if boost, ok := r.boosts[normalized]; ok {
		return boost
	}
	for trusted, boost := range r.boosts {
		if strings.Contains(normalized, trusted) || strings.Contains(trusted, normalized) {
			return boost
		}
	}
	return 0
}

// MaxBoost returns the highest boost across a list of names.
func (r *trustedRegistry) MaxBoost(names []string) int {
	max := 0
	for _, name := range names {
		if boost := r.Boost(name); boost > max {
			max = boost
		}
	}
	return max
}

// Matches reports whether the name (or any substring relation) is trusted.
func (r *trustedRegistry) Matches(name string) bool {
	return r.Boost(name) > 0
}

// MatchesAnywhere reports whether any registry name occurs inside the text.
// Used for journal detection in free-form source titles.
func (r *trustedRegistry) MatchesAnywhere(text string) bool {
	if text == "" {
		return false
	}
	normalized := normalizeName(text)
	for trusted := range r.boosts {
		if strings.Contains(normalized, trusted) {
			return true
		}
	}
	return false
}
