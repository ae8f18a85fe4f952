// Package selector chooses a presentational component for each content
// section by scoring every registry entry across six dimensions.
//
// Scoring is pure: a Selector holds only its read-only registry, so it is
// safe for concurrent use. Page-level history (used ids, previous id) is
// threaded explicitly by SelectComponentsForPage and never shared.
package selector

import (
	"fmt"
	"sort"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
)

// OverrideScore is reported when a component override short-circuits scoring.
const OverrideScore = 100

// Input describes one section and its page context.
type Input struct {
	SectionType        string
	SectionName        string
	SectionDescription string
	BusinessType       string
	// ContentCount is parsed from name and description when nil.
	ContentCount        *int
	SectionIndex        int
	TotalSections       int
	UsedComponentIDs    []string
	PreviousComponentID string
	ComponentOverride   string
}

// Scores holds the per-dimension breakdown of a total score.
type Scores struct {
	Category     int `json:"category"`
	Industry     int `json:"industry"`
	ContentCount int `json:"content_count"`
	Placement    int `json:"placement"`
	Coherence    int `json:"coherence"`
	Tags         int `json:"tags"`
}

// Total sums all dimensions.
func (s Scores) Total() int {
	return s.Category + s.Industry + s.ContentCount + s.Placement + s.Coherence + s.Tags
}

// Result is the selected component with its score.
type Result struct {
	Component registry.ComponentDescriptor `json:"component"`
	Score     int                          `json:"score"`
	Scores    Scores                       `json:"scores"`
	// Override is set when the component came from an explicit override.
	Override bool `json:"override,omitempty"`
}

// Selector scores sections against a registry.
type Selector struct {
	reg *registry.Registry
}

// New returns a Selector over reg. An empty registry is a configuration error.
func New(reg *registry.Registry) (*Selector, error) {
	if reg.Len() == 0 {
		return nil, apperr.ErrEmptyRegistry
	}
	return &Selector{reg: reg}, nil
}

// Registry returns the registry the selector scores against.
func (s *Selector) Registry() *registry.Registry {
	return s.reg
}

// SelectComponent returns the best component for in. A known override id
// wins outright; an unknown one is ignored.
func (s *Selector) SelectComponent(in Input) (Result, error) {
	if s == nil || s.reg.Len() == 0 {
		return Result{}, apperr.ErrEmptyRegistry
	}
	if in.ComponentOverride != "" {
		if c, ok := s.reg.Get(in.ComponentOverride); ok {
			return Result{Component: c, Score: OverrideScore, Override: true}, nil
		}
	}
	ranked := s.rank(in)
	return ranked[0], nil
}

// Rank scores every component for in and returns them best first. Equal
// scores keep registry order. Overrides are not applied.
func (s *Selector) Rank(in Input) ([]Result, error) {
	if s == nil || s.reg.Len() == 0 {
		return nil, apperr.ErrEmptyRegistry
	}
	return s.rank(in), nil
}

func (s *Selector) rank(in Input) []Result {
	count := in.ContentCount
	if count == nil {
		count = ParseContentCount(in.SectionName + " " + in.SectionDescription)
	}
	total := max(in.TotalSections, 1)

	components := s.reg.All()
	out := make([]Result, len(components))
	for i, c := range components {
		sc := Scores{
			Category:     ScoreCategory(c, in.SectionType),
			Industry:     ScoreIndustry(c, in.BusinessType),
			ContentCount: ScoreContentCount(c, count),
			Placement:    ScorePlacement(c, in.SectionIndex, total),
			Coherence:    ScoreCoherence(c, in.UsedComponentIDs, in.PreviousComponentID),
			Tags:         ScoreTags(c, in.SectionName, in.SectionDescription),
		}
		out[i] = Result{Component: c, Score: sc.Total(), Scores: sc}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// PageInput is the set of sections of one page, in page order.
type PageInput struct {
	Sections     []models.Section
	BusinessType string
	// UsedComponentIDs seeds the page history, e.g. with ids chosen on pages
	// built earlier. It is copied, never modified.
	UsedComponentIDs []string
}

// PageSelection pairs a section with the component chosen for it.
type PageSelection struct {
	Section models.Section `json:"section"`
	Result
}

// SelectComponentsForPage selects a component for each section in the
// given order, carrying the used ids and previous id forward so coherence
// scoring sees the page as built so far.
func (s *Selector) SelectComponentsForPage(in PageInput) ([]PageSelection, error) {
	used := make([]string, len(in.UsedComponentIDs), len(in.UsedComponentIDs)+len(in.Sections))
	copy(used, in.UsedComponentIDs)
	previous := ""

	out := make([]PageSelection, 0, len(in.Sections))
	for i, section := range in.Sections {
		sectionType := section.SectionType
		if sectionType == "" {
			sectionType = "content"
		}
		res, err := s.SelectComponent(Input{
			SectionType:         sectionType,
			SectionName:         section.Name,
			SectionDescription:  section.Description,
			BusinessType:        in.BusinessType,
			ContentCount:        section.ContentCount,
			SectionIndex:        i,
			TotalSections:       len(in.Sections),
			UsedComponentIDs:    used,
			PreviousComponentID: previous,
			ComponentOverride:   section.ComponentOverride,
		})
		if err != nil {
			return nil, fmt.Errorf("selector: section %d (%q): %w", i, section.Name, err)
		}
		out = append(out, PageSelection{Section: section, Result: res})
		used = append(used, res.Component.ID)
		previous = res.Component.ID
	}
	return out, nil
}
