package upsell

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"upsell-workers/internal/models"
)

// IntentWeights are the scoring weights of the shopping-intent heuristic.
type IntentWeights struct {
	PopularityCap         float64
	KeywordPositive       float64
	CategoryPositive      float64
	SameCategory          float64
	UpgradePriceRatio     float64
	UpgradePriceBoost     float64
	UpgradeLabelBoost     float64
	ReplacementLabelBoost float64
	GiftSetBoost          float64
	GiftPriceBoost        float64
	TeacherPriceCeiling   float64
	TeacherPriceBoost     float64
	BudgetProximityMult   float64
	NegativePenalty       float64
	BadgeThreshold        float64
}

// PriceRange is the ideal price band of a budget.
type PriceRange struct{ Min, Max float64 }

// IntentHeuristics is the tunable part of intent scoring. Budget ranges are
// keyed by budget; unknown budgets use "high".
type IntentHeuristics struct {
	Weights      IntentWeights
	BudgetRanges map[string]PriceRange
}

func DefaultIntentHeuristics() IntentHeuristics {
	return IntentHeuristics{
		Weights: IntentWeights{
			PopularityCap:         3.0,
			KeywordPositive:       2.5,
			CategoryPositive:      3.5,
			SameCategory:          2.0,
			UpgradePriceRatio:     1.25,
			UpgradePriceBoost:     3.0,
			UpgradeLabelBoost:     2.5,
			ReplacementLabelBoost: 3.0,
			GiftSetBoost:          1.0,
			GiftPriceBoost:        1.5,
			TeacherPriceCeiling:   30.0,
			TeacherPriceBoost:     1.5,
			BudgetProximityMult:   2.0,
			NegativePenalty:       2.0,
			BadgeThreshold:        2.0,
		},
		BudgetRanges: map[string]PriceRange{
			"low":  {8, 20},
			"mid":  {15, 40},
			"high": {35, 120},
		},
	}
}

func (w *IntentWeights) fields() map[string]*float64 {
	return map[string]*float64{
		"popularity_cap":          &w.PopularityCap,
		"keyword_positive":        &w.KeywordPositive,
		"category_positive":       &w.CategoryPositive,
		"same_category":           &w.SameCategory,
		"upgrade_price_ratio":     &w.UpgradePriceRatio,
		"upgrade_price_boost":     &w.UpgradePriceBoost,
		"upgrade_label_boost":     &w.UpgradeLabelBoost,
		"replacement_label_boost": &w.ReplacementLabelBoost,
		"gift_set_boost":          &w.GiftSetBoost,
		"gift_price_boost":        &w.GiftPriceBoost,
		"teacher_price_ceiling":   &w.TeacherPriceCeiling,
		"teacher_price_boost":     &w.TeacherPriceBoost,
		"budget_proximity_mult":   &w.BudgetProximityMult,
		"negative_penalty":        &w.NegativePenalty,
		"badge_threshold":         &w.BadgeThreshold,
	}
}

// Merge returns a copy of h with the given overrides applied. Weight keys are
// the snake_case field names; unknown keys and inverted ranges are rejected.
func (h IntentHeuristics) Merge(weights map[string]float64, ranges map[string]PriceRange) (IntentHeuristics, error) {
	out := IntentHeuristics{
		Weights:      h.Weights,
		BudgetRanges: make(map[string]PriceRange, len(h.BudgetRanges)+len(ranges)),
	}
	for k, v := range h.BudgetRanges {
		out.BudgetRanges[k] = v
	}

	fields := out.Weights.fields()
	for key, value := range weights {
		field, ok := fields[strings.ToLower(key)]
		if !ok {
			return IntentHeuristics{}, fmt.Errorf("unknown intent weight %q", key)
		}
		*field = value
	}

	for budget, r := range ranges {
		if r.Min < 0 || r.Max < r.Min {
			return IntentHeuristics{}, fmt.Errorf("budget range %q: invalid bounds %.2f..%.2f", budget, r.Min, r.Max)
		}
		out.BudgetRanges[strings.ToLower(budget)] = r
	}
	if _, ok := out.BudgetRanges["high"]; !ok {
		return IntentHeuristics{}, fmt.Errorf("budget range %q is required", "high")
	}
	return out, nil
}

// budgetCeilings is the maximum price that still fits a budget.
var budgetCeilings = map[string]float64{
	"low":  20,
	"mid":  40,
	"high": 9999,
}

var intentKeywords = map[string][]string{
	"gift":           {"gift", "set", "bundle", "present", "pack", "box"},
	"replacement":    {"refill", "replacement", "spare", "recharge", "insert"},
	"upgrade":        {"upgrade", "pro", "deluxe", "premium", "xl", "plus", "ultimate"},
	"diy-project":    {"diy", "kit", "project", "starter", "make your own", "how to"},
	"home-decor":     {"decor", "wall", "frame", "sign", "plaque", "art", "canvas"},
	"holiday":        {"holiday", "christmas", "xmas", "easter", "halloween", "valentine", "mother", "father"},
	"birthday":       {"birthday", "party", "celebration", "cake", "bday"},
	"anniversary":    {"anniversary", "love", "heart", "romance", "romantic"},
	"wedding":        {"wedding", "bride", "groom", "bridal", "mr & mrs", "mr and mrs"},
	"teacher-gift":   {"teacher", "school", "classroom", "teach"},
	"office-decor":   {"office", "desk", "workspace", "cubicle"},
	"event-supplies": {"event", "party", "supplies", "decoration", "bulk"},
	"workshop-class": {"class", "workshop", "lesson", "course", "tutorial"},
}

var intentNegativeKeywords = map[string][]string{
	"gift":        {"refill", "replacement"},
	"replacement": {"gift", "decor"},
	"upgrade":     {"refill"},
}

// intentCategoryHints are category names an intent points at. They feed both
// criteria derivation and scoring.
var intentCategoryHints = map[string][]string{
	"gift":           {"gifts", "gift sets", "bundles"},
	"replacement":    {"supplies", "refills", "consumables"},
	"diy-project":    {"diy", "kits", "craft kits", "projects"},
	"home-decor":     {"home decor", "decor", "wall art", "signs"},
	"holiday":        {"holiday", "seasonal"},
	"office-decor":   {"office decor"},
	"event-supplies": {"event supplies", "party"},
	"workshop-class": {"classes", "workshops"},
}

var intentLabels = map[string]string{
	"gift":           "Gift",
	"personal":       "Personal use",
	"replacement":    "Replacement",
	"upgrade":        "Upgrade",
	"diy-project":    "DIY Project",
	"home-decor":     "Home Decor",
	"holiday":        "Holiday",
	"birthday":       "Birthday",
	"anniversary":    "Anniversary",
	"wedding":        "Wedding",
	"teacher-gift":   "Teacher Gift",
	"office-decor":   "Office Decor",
	"event-supplies": "Event Supplies",
	"workshop-class": "Workshop/Class",
}

var (
	upgradeLabel     = regexp.MustCompile(`(?i)\b(pro|deluxe|premium|xl|plus|ultimate)\b`)
	replacementLabel = regexp.MustCompile(`(?i)\b(refill|replacement|spare|insert|recharge)\b`)
	giftSetLabel     = regexp.MustCompile(`(?i)\b(set|bundle|pack|box)\b`)
)

// IntentLabel is the display label of an intent slug. Unknown slugs get their
// first letter capitalized.
func IntentLabel(intent string) string {
	if label, ok := intentLabels[intent]; ok {
		return label
	}
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(intent))
	if len(words) == 0 {
		return ""
	}
	first, size := utf8.DecodeRuneInString(words[0])
	if first != utf8.RuneError {
		words[0] = string(unicode.ToUpper(first)) + words[0][size:]
	}
	return strings.ToValidUTF8(strings.Join(words, " "), "")
}

// IntentCategoryHints returns the category names suggested by an intent.
func IntentCategoryHints(intent string) []string {
	return intentCategoryHints[intent]
}

// BudgetCeiling returns the highest price that fits the budget.
func BudgetCeiling(budget string) float64 {
	if ceiling, ok := budgetCeilings[budget]; ok {
		return ceiling
	}
	return budgetCeilings["high"]
}

// intentContext is the cart-level input shared by every scored product.
type intentContext struct {
	intent         string
	weights        IntentWeights
	budget         PriceRange
	cartCategories map[string]bool
	cartAvgPrice   float64
}

func newIntentContext(h IntentHeuristics, intent, budget string, meta *models.RankingMetadata, cart []string) intentContext {
	ic := intentContext{
		intent:         intent,
		weights:        h.Weights,
		cartCategories: make(map[string]bool),
	}
	if br, ok := h.BudgetRanges[budget]; ok {
		ic.budget = br
	} else {
		ic.budget = h.BudgetRanges["high"]
	}

	var sum float64
	var n int
	for _, sku := range cart {
		p, ok := meta.Products[sku]
		if !ok {
			continue
		}
		if p.Category != "" {
			ic.cartCategories[strings.ToLower(p.Category)] = true
		}
		if p.Price > 0 {
			sum += p.Price
			n++
		}
	}
	if n > 0 {
		ic.cartAvgPrice = sum / float64(n)
	}
	return ic
}

// score rates how well a product matches the shopping intent. Scores at or
// above the badge threshold earn an intent badge.
func (ic intentContext) score(p models.ProductMeta) float64 {
	w := ic.weights
	name := strings.ToLower(p.Name)
	category := strings.ToLower(p.Category)

	var s float64
	if p.UnitsSold > 0 {
		s += math.Min(w.PopularityCap, math.Log1p(float64(p.UnitsSold)))
	}

	for _, kw := range intentKeywords[ic.intent] {
		if strings.Contains(name, kw) {
			s += w.KeywordPositive
		}
	}
	for _, hint := range intentCategoryHints[ic.intent] {
		if strings.Contains(category, hint) {
			s += w.CategoryPositive
		}
	}

	if category != "" && ic.cartCategories[category] {
		s += w.SameCategory
	}

	switch ic.intent {
	case "upgrade":
		if ic.cartAvgPrice > 0 && p.Price >= ic.cartAvgPrice*w.UpgradePriceRatio {
			s += w.UpgradePriceBoost
		}
		if upgradeLabel.MatchString(p.Name) {
			s += w.UpgradeLabelBoost
		}
	case "replacement":
		if replacementLabel.MatchString(p.Name) {
			s += w.ReplacementLabelBoost
		}
	case "gift":
		if p.Price >= ic.budget.Min && p.Price <= ic.budget.Max {
			s += w.GiftPriceBoost
		}
		if giftSetLabel.MatchString(p.Name) {
			s += w.GiftSetBoost
		}
	case "teacher-gift":
		if p.Price > 0 && p.Price <= w.TeacherPriceCeiling {
			s += w.TeacherPriceBoost
		}
	}

	if p.Price > 0 && p.Price <= ic.budget.Max {
		center := (ic.budget.Min + ic.budget.Max) / 2
		span := math.Max(1, ic.budget.Max-ic.budget.Min)
		proximity := math.Max(0, 1-math.Abs(p.Price-center)/span)
		s += w.BudgetProximityMult * proximity
	}

	for _, kw := range intentNegativeKeywords[ic.intent] {
		if strings.Contains(name, kw) {
			s -= w.NegativePenalty
		}
	}

	return s
}

func (ic intentContext) badge(p models.ProductMeta) (string, bool) {
	if ic.intent == "" || ic.score(p) < ic.weights.BadgeThreshold {
		return "", false
	}
	return "Matches shopping intent: " + IntentLabel(ic.intent), true
}
