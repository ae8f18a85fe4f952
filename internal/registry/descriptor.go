// Package registry holds the catalogue of presentational components the
// selector chooses from. A Registry is immutable once constructed.
package registry

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Category is the coarse kind of a component.
type Category string

const (
	CategoryHero        Category = "hero"
	CategoryFeature     Category = "feature"
	CategoryContent     Category = "content"
	CategoryCardGrid    Category = "card-grid"
	CategoryCTA         Category = "cta"
	CategoryTestimonial Category = "testimonial"
	CategoryLogoWall    Category = "logo-wall"
	CategoryPricing     Category = "pricing"
	CategoryFAQ         Category = "faq"
	CategoryHeader      Category = "header"
	CategoryFooter      Category = "footer"
	CategoryNavigation  Category = "navigation"
	CategoryLinkList    Category = "link-list"
)

// Categories lists every known category in declaration order.
var Categories = []Category{
	CategoryHero, CategoryFeature, CategoryContent, CategoryCardGrid, CategoryCTA,
	CategoryTestimonial, CategoryLogoWall, CategoryPricing, CategoryFAQ,
	CategoryHeader, CategoryFooter, CategoryNavigation, CategoryLinkList,
}

// Placement is a coarse position on a page.
type Placement string

const (
	PlacementPageTop    Placement = "page-top"
	PlacementAfterHero  Placement = "after-hero"
	PlacementMidPage    Placement = "mid-page"
	PlacementPageBottom Placement = "page-bottom"
	PlacementAny        Placement = "any"
)

// PairingRules constrain which components may directly precede this one.
type PairingRules struct {
	// NeverFollowedBy holds id prefixes (the part of a component id before
	// the first '-') that must not appear immediately before this component.
	NeverFollowedBy []string `yaml:"never_followed_by" json:"never_followed_by,omitempty"`
}

// ComponentDescriptor describes one renderable component and where it fits.
type ComponentDescriptor struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name,omitempty"`
	Category    Category `yaml:"category" json:"category"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
	SuitableFor []string `yaml:"suitable_for" json:"suitable_for,omitempty"`
	// ContentCount is the number of items the layout is designed for; 0 means
	// no preference.
	ContentCount  int          `yaml:"content_count" json:"content_count,omitempty"`
	PlacementHint Placement    `yaml:"placement_hint" json:"placement_hint"`
	PairingRules  PairingRules `yaml:"pairing_rules" json:"pairing_rules"`
	// ContentSlots names the copy fields the renderer fills in.
	ContentSlots []string `yaml:"content_slots" json:"content_slots,omitempty"`
}

// Validate validates the descriptor.
func (c *ComponentDescriptor) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Category, validation.Required, validation.In(categoryValues()...)),
		validation.Field(&c.PlacementHint, validation.Required, validation.In(
			PlacementPageTop, PlacementAfterHero, PlacementMidPage, PlacementPageBottom, PlacementAny)),
		validation.Field(&c.ContentCount, validation.Min(0)),
	)
}

// HasTag reports whether tag is one of the descriptor's tags.
func (c *ComponentDescriptor) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IDPrefix returns the portion of a component id before the first '-'.
func IDPrefix(id string) string {
	prefix, _, _ := strings.Cut(id, "-")
	return prefix
}

func categoryValues() []any {
	out := make([]any, len(Categories))
	for i, c := range Categories {
		out[i] = c
	}
	return out
}
