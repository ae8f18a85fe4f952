package selector

import (
	"strings"

	"github.com/starford/sitesmith/internal/registry"
)

// Points awarded per dimension.
const (
	categoryExact = 40
	categoryTag   = 25

	industryNeutral = 5
	industryExact   = 20
	industryPartial = 10

	countNeutral = 5
	countExact   = 15
	countNear    = 8

	placementExact   = 15
	placementAny     = 10
	placementPenalty = -10
	placementOther   = 3

	coherenceBase        = 10
	coherenceFloor       = -10
	coherenceRepeat      = -15
	coherenceOveruseFrom = 2
	coherencePairing     = -20

	tagPoints = 3
	tagCap    = 15
)

// ScoreCategory rewards an exact category match, or a tag naming the
// category or the raw section type.
func ScoreCategory(c registry.ComponentDescriptor, sectionType string) int {
	normalized := NormalizeSectionType(sectionType)
	category := NormalizeCategory(sectionType)
	if string(c.Category) == category {
		return categoryExact
	}
	if c.HasTag(category) || c.HasTag(normalized) {
		return categoryTag
	}
	return 0
}

// ScoreIndustry rewards components suited to the business type.
func ScoreIndustry(c registry.ComponentDescriptor, businessType string) int {
	if strings.TrimSpace(businessType) == "" {
		return industryNeutral
	}
	normalized := NormalizeSectionType(businessType)
	partial := false
	for _, s := range c.SuitableFor {
		if s == "" {
			continue
		}
		if s == normalized {
			return industryExact
		}
		if strings.Contains(normalized, s) || strings.Contains(s, normalized) {
			partial = true
		}
	}
	if partial {
		return industryPartial
	}
	return 0
}

// ScoreContentCount rewards layouts designed for the section's item count.
// A nil or zero count is treated as unknown.
func ScoreContentCount(c registry.ComponentDescriptor, count *int) int {
	if count == nil || *count == 0 || c.ContentCount == 0 {
		return countNeutral
	}
	diff := c.ContentCount - *count
	switch {
	case diff == 0:
		return countExact
	case diff >= -1 && diff <= 1:
		return countNear
	default:
		return 0
	}
}

// ScorePlacement compares the component's placement hint with the zone of
// the section index.
func ScorePlacement(c registry.ComponentDescriptor, index, total int) int {
	zone := PlacementZone(index, total)
	hint := string(c.PlacementHint)
	switch {
	case hint == zone:
		return placementExact
	case c.PlacementHint == registry.PlacementAny:
		return placementAny
	case c.PlacementHint == registry.PlacementPageTop && zone != "page-top":
		return placementPenalty
	case c.PlacementHint == registry.PlacementPageBottom && zone == "page-top":
		return placementPenalty
	default:
		return placementOther
	}
}

// ScoreCoherence penalises immediate repeats, overuse within the page
// history and forbidden pairings with the previous component. The result
// never drops below -10.
func ScoreCoherence(c registry.ComponentDescriptor, usedIDs []string, previousID string) int {
	score := coherenceBase

	if previousID != "" && c.ID == previousID {
		score += coherenceRepeat
	}

	usage := 0
	for _, id := range usedIDs {
		if id == c.ID {
			usage++
		}
	}
	if usage > coherenceOveruseFrom {
		score -= 2 * usage
	}

	if previousID != "" {
		prevPrefix := registry.IDPrefix(previousID)
		for _, n := range c.PairingRules.NeverFollowedBy {
			if n != "" && strings.Contains(prevPrefix, n) {
				score += coherencePairing
				break
			}
		}
	}

	return max(score, coherenceFloor)
}

// ScoreTags awards points for every component tag mentioned in the section
// name or description, up to a cap.
func ScoreTags(c registry.ComponentDescriptor, name, description string) int {
	text := strings.ToLower(name + " " + description)
	bonus := 0
	for _, tag := range c.Tags {
		tag = strings.ToLower(tag)
		if tag != "" && strings.Contains(text, tag) {
			bonus += tagPoints
		}
	}
	return min(bonus, tagCap)
}
