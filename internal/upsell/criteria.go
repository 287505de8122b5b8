package upsell

import (
	"strings"

	"upsell-workers/internal/models"
)

// DeriveCriteria turns a profile and requested limit into matching criteria.
// Categories are the explicit ones first, then those hinted by the intent, then
// defaultCategories; duplicates are dropped case-insensitively keeping the
// first spelling. The profile must already be normalized.
func DeriveCriteria(profile models.ShopperProfile, limit int, limits Limits, defaultCategories []string) models.Criteria {
	categories := make([]string, 0)
	seen := make(map[string]bool)
	add := func(values []string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			categories = append(categories, v)
		}
	}

	add(profile.ExplicitCategories())
	add(IntentCategoryHints(profile.Intent))
	add(defaultCategories)

	return models.Criteria{
		Categories: categories,
		Limit:      limits.Normalize(limit),
		Budget:     profile.Budget,
		Intent:     profile.Intent,
		Source:     models.CriteriaSource,
	}
}

// MatchCategories maps criteria categories onto catalog categories,
// case-insensitively, preserving criteria order. Unknown names are dropped.
func MatchCategories(meta *models.RankingMetadata, wanted []string) []string {
	catalog := make(map[string]string)
	for _, c := range SortedCategories(meta) {
		key := strings.ToLower(c)
		if _, ok := catalog[key]; !ok {
			catalog[key] = c
		}
	}

	matched := make([]string, 0, len(wanted))
	seen := make(map[string]bool)
	for _, w := range wanted {
		c, ok := catalog[strings.ToLower(strings.TrimSpace(w))]
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		matched = append(matched, c)
	}
	return matched
}
