package selector

import (
	"regexp"
	"strconv"
	"strings"
)

// sectionTypeCategory maps normalised section-type synonyms to a canonical
// component category.
var sectionTypeCategory = map[string]string{
	"hero":           "hero",
	"header":         "header",
	"feature":        "feature",
	"features":       "feature",
	"content":        "content",
	"content-block":  "content",
	"card-grid":      "card-grid",
	"cards":          "card-grid",
	"services":       "card-grid",
	"products":       "card-grid",
	"catalog":        "card-grid",
	"cta":            "cta",
	"call-to-action": "cta",
	"testimonial":    "testimonial",
	"testimonials":   "testimonial",
	"quote":          "testimonial",
	"logo-wall":      "logo-wall",
	"logos":          "logo-wall",
	"partners":       "logo-wall",
	"clients":        "logo-wall",
	"pricing":        "pricing",
	"plans":          "pricing",
	"faq":            "faq",
	"questions":      "faq",
	"accordion":      "faq",
	"footer":         "footer",
	"navigation":     "navigation",
	"toc":            "navigation",
	"link-list":      "link-list",
	"links":          "link-list",
	"resources":      "link-list",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// countRe matches "<n> <noun>" with at most two modifier words in between,
// e.g. "3 features" or "3 core services". Numbers of four or more digits are
// years or prices, not counts.
var countRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s+(?:[a-z][a-z-]*\s+){0,2}?(items?|cards?|features?|tiers?|plans?|steps?|members?|team|services?|products?|testimonials?|logos?)\b`)

// NormalizeSectionType lowercases s and joins whitespace runs with hyphens.
func NormalizeSectionType(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

// NormalizeCategory maps a free-text section type to a canonical category.
// Unknown types pass through normalised but otherwise unchanged.
func NormalizeCategory(sectionType string) string {
	normalized := NormalizeSectionType(sectionType)
	if cat, ok := sectionTypeCategory[normalized]; ok {
		return cat
	}
	return normalized
}

// ParseContentCount extracts an item count from free text such as
// "3 core services". It returns nil when no count is present.
func ParseContentCount(text string) *int {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// PlacementZone returns the coarse zone for a section index. On pages of
// two sections or fewer the top zones and page-bottom overlap; the top zones
// take precedence.
func PlacementZone(index, total int) string {
	switch {
	case index == 0:
		return "page-top"
	case index == 1:
		return "after-hero"
	case index >= total-2:
		return "page-bottom"
	default:
		return "mid-page"
	}
}
