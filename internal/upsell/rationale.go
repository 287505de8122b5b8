package upsell

import (
	"fmt"
	"strings"

	"upsell-workers/internal/models"
)

type rationaleKey struct {
	source      models.RankSource
	hasCategory bool
}

// rationaleTemplates maps (rank source, category known) to display text. A
// "%s" verb is filled with the category name.
var rationaleTemplates = map[rationaleKey]string{
	{models.RankSourceCategoryLeader, true}:     "Highly rated in %s",
	{models.RankSourceCategoryLeader, false}:    "Highly rated in its category",
	{models.RankSourceCategorySecondary, true}:  "Another favorite in %s",
	{models.RankSourceCategorySecondary, false}: "Another shopper favorite",
	{models.RankSourceSiteTop, true}:            "Popular choice this week",
	{models.RankSourceSiteTop, false}:           "Popular choice this week",
	{models.RankSourceSiteSecond, true}:         "Trending across the store",
	{models.RankSourceSiteSecond, false}:        "Trending across the store",
	{models.RankSourceFallback, true}:           "Worth a look in %s",
	{models.RankSourceFallback, false}:          "New arrival you might love",
}

const defaultRationale = "Recommended for you"

// Rationale renders the explanation for a recommendation. Site top and site
// second text never names the category.
func Rationale(rec models.UpsellRecommendation) string {
	tmpl, ok := rationaleTemplates[rationaleKey{rec.RankSource, rec.Category != ""}]
	if !ok {
		return defaultRationale
	}
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, rec.Category)
}

// Rationales renders one string per recommendation, in order.
func Rationales(recs []models.UpsellRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Rationale(rec))
	}
	return out
}
