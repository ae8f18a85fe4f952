package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/sitesmith/internal/llm"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
)

// Copy is the text that fills a component's content slots.
type Copy struct {
	Eyebrow      string `json:"eyebrow,omitempty"`
	Heading      string `json:"heading,omitempty"`
	Description  string `json:"description,omitempty"`
	PrimaryCTA   string `json:"primaryCTA,omitempty"`
	SecondaryCTA string `json:"secondaryCTA,omitempty"`
	Quote        string `json:"quote,omitempty"`
	Author       string `json:"author,omitempty"`
	Role         string `json:"role,omitempty"`
	Cards        []Card `json:"cards,omitempty"`
	Items        []QA   `json:"items,omitempty"`
}

type Card struct {
	Heading     string `json:"heading"`
	Description string `json:"description,omitempty"`
	CTA         string `json:"cta,omitempty"`
	Link        string `json:"link,omitempty"`
}

type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CopyWriter fills content slots, asking the generator first and falling
// back to templated copy field by field.
type CopyWriter struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewCopyWriter returns a CopyWriter. A nil generator means templates only.
func NewCopyWriter(gen llm.Generator, logger *slog.Logger) *CopyWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CopyWriter{gen: gen, logger: logger}
}

// Write returns one Copy per selection, in order. It never fails: generator
// errors and unparseable output fall back to templates.
func (w *CopyWriter) Write(ctx context.Context, site models.Site, page models.Page, sels []selector.PageSelection, content models.ContentDatabases) []Copy {
	out := make([]Copy, len(sels))
	for i, s := range sels {
		out[i] = templateCopy(s, site, content)
	}
	if w.gen == nil || len(sels) == 0 {
		return out
	}

	raw, err := w.gen.Generate(ctx, copyPrompt(site, page, sels, content))
	if err != nil {
		w.logger.Warn("copy generation failed, using templates", "page", page.Name, "error", err)
		return out
	}
	generated, err := parseCopy(raw)
	if err != nil {
		w.logger.Warn("copy generation returned unusable output, using templates", "page", page.Name, "error", err)
		return out
	}
	for i := range out {
		if i < len(generated) {
			out[i] = fill(generated[i], out[i])
		}
	}
	return out
}

// parseCopy decodes a JSON array of Copy, tolerating markdown code fences
// around it.
func parseCopy(raw string) ([]Copy, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i, j := strings.Index(s, "["), strings.LastIndex(s, "]"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	var out []Copy
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("builder: parse copy: %w", err)
	}
	return out, nil
}

// fill copies every empty field of c from def.
func fill(c, def Copy) Copy {
	str := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	str(&c.Eyebrow, def.Eyebrow)
	str(&c.Heading, def.Heading)
	str(&c.Description, def.Description)
	str(&c.PrimaryCTA, def.PrimaryCTA)
	str(&c.SecondaryCTA, def.SecondaryCTA)
	str(&c.Quote, def.Quote)
	str(&c.Author, def.Author)
	str(&c.Role, def.Role)
	if len(c.Cards) == 0 {
		c.Cards = def.Cards
	}
	if len(c.Items) == 0 {
		c.Items = def.Items
	}
	return c
}

func copyPrompt(site models.Site, page models.Page, sels []selector.PageSelection, content models.ContentDatabases) string {
	var sections strings.Builder
	for i, s := range sels {
		slots := strings.Join(s.Component.ContentSlots, ", ")
		if slots == "" {
			slots = "heading, description"
		}
		fmt.Fprintf(&sections, "Section %d: %q (%s), needs: %s\n", i+1, s.Section.Name, s.Component.Category, slots)
	}

	var services strings.Builder
	for _, svc := range content.Services {
		fmt.Fprintf(&services, "- %s: %s\n", svc.Name, truncateRunes(svc.Description, 100))
	}
	if services.Len() == 0 {
		services.WriteString("Not specified\n")
	}

	businessType := site.BusinessType
	if businessType == "" {
		businessType = "SaaS"
	}
	audience := strings.Join(site.TargetAudience, ", ")
	if audience == "" {
		audience = "General"
	}

	return fmt.Sprintf(`You are a professional copywriter. Generate website copy for the %q page of %q.

Business Type: %s
Brand Description: %s
Target Audience: %s

Available Services/Products:
%s
Sections to fill:
%s
Write specific, consistent copy that flows from one section to the next and does not repeat phrases.

Respond with ONLY a JSON array with one object per section, in order. Use these keys where they apply:
"eyebrow", "heading", "description", "primaryCTA", "secondaryCTA", "quote", "author", "role",
"cards" (array of {"heading", "description", "cta"}), "items" (array of {"question", "answer"}).`,
		page.Name, site.Name, businessType, site.BrandDescription, audience, services.String(), sections.String())
}

// templateCopy is the deterministic copy used when no generator is
// configured or its output is unusable.
func templateCopy(s selector.PageSelection, site models.Site, content models.ContentDatabases) Copy {
	name := site.Name
	if name == "" {
		name = "Our Platform"
	}
	heading := s.Section.Name
	or := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	brand := site.BrandDescription

	switch s.Component.Category {
	case registry.CategoryHero, registry.CategoryHeader:
		return Copy{
			Heading:      or(heading, "Welcome to "+name),
			Description:  or(truncateRunes(or(s.Section.Description, brand), 200), name+" helps you achieve more with less effort."),
			PrimaryCTA:   "Get Started",
			SecondaryCTA: "Learn More",
		}
	case registry.CategoryFeature:
		return Copy{
			Eyebrow:     or(s.Section.SectionType, "Feature"),
			Heading:     or(heading, "Built for your workflow"),
			Description: or(s.Section.Description, name+" provides powerful tools designed to streamline your operations and boost productivity."),
			PrimaryCTA:  "Learn More",
		}
	case registry.CategoryCardGrid:
		return Copy{
			Heading: or(heading, "Our Services"),
			Cards:   gridCards(s.Component, content),
		}
	case registry.CategoryCTA:
		return Copy{
			Heading:      or(heading, "Ready to get started with "+name+"?"),
			Description:  or(s.Section.Description, "Join thousands of teams already using "+name+" to transform their workflow."),
			PrimaryCTA:   "Get Started Free",
			SecondaryCTA: "Contact Sales",
		}
	case registry.CategoryTestimonial:
		c := Copy{
			Heading: heading,
			Quote:   name + " has completely transformed how we work. The results speak for themselves.",
			Author:  "Customer Name",
			Role:    "Role, Company",
		}
		if len(content.Testimonials) > 0 {
			t := content.Testimonials[0]
			c.Quote, c.Author, c.Role = or(t.Quote, c.Quote), or(t.Author, c.Author), or(t.Role, c.Role)
		}
		return c
	case registry.CategoryPricing:
		return Copy{
			Heading:     or(heading, "Simple, transparent pricing"),
			Description: "Choose the plan that fits your needs. All plans include core " + name + " features.",
			Cards: []Card{
				{Heading: "Starter", Description: "Everything you need to get going.", CTA: "Choose Starter"},
				{Heading: "Professional", Description: "For growing teams that need more.", CTA: "Choose Professional"},
				{Heading: "Enterprise", Description: "Custom terms, support and scale.", CTA: "Contact Sales"},
			},
		}
	case registry.CategoryFAQ:
		return Copy{
			Heading: or(heading, "Frequently Asked Questions"),
			Items: []QA{
				{Question: "What is " + name + "?", Answer: or(truncateRunes(brand, 200), name+" is a platform designed to help you work smarter.")},
				{Question: "How do I get started?", Answer: "Sign up for a free account and follow our onboarding guide to get started with " + name + " in minutes."},
				{Question: "Is there a free plan?", Answer: "Yes! " + name + " offers a free tier with essential features. Upgrade anytime for more capabilities."},
			},
		}
	case registry.CategoryLogoWall:
		n := s.Component.ContentCount
		if n <= 0 {
			n = 6
		}
		cards := make([]Card, n)
		for i := range cards {
			cards[i] = Card{Heading: fmt.Sprintf("Partner %d", i+1)}
		}
		return Copy{Heading: or(heading, "Trusted by leading companies"), Cards: cards}
	case registry.CategoryFooter:
		return Copy{Heading: name, Description: truncateRunes(brand, 160)}
	case registry.CategoryContent:
		return Copy{
			Heading:     or(heading, "About Us"),
			Description: or(s.Section.Description, or(brand, name+" is committed to delivering exceptional value through innovative solutions.")),
		}
	default:
		return Copy{Heading: or(heading, "Section"), Description: s.Section.Description}
	}
}

// gridCards fills a card grid from the team or services collection,
// falling back to placeholders.
func gridCards(c registry.ComponentDescriptor, content models.ContentDatabases) []Card {
	if c.HasTag("team") && len(content.Team) > 0 {
		cards := make([]Card, 0, len(content.Team))
		for _, m := range content.Team {
			cards = append(cards, Card{Heading: m.Name, Description: strings.TrimSpace(m.Role + " " + truncateRunes(m.Bio, 120)), Link: m.LinkedIn})
		}
		return cards
	}
	if len(content.Services) > 0 {
		cards := make([]Card, 0, len(content.Services))
		for _, svc := range content.Services {
			cta := svc.CTALabel
			if cta == "" {
				cta = "Learn More"
			}
			cards = append(cards, Card{Heading: svc.Name, Description: truncateRunes(svc.Description, 120), CTA: cta, Link: svc.CTALink})
		}
		return cards
	}
	n := c.ContentCount
	if n <= 0 {
		n = 3
	}
	names := []string{"One", "Two", "Three", "Four", "Five", "Six"}
	cards := make([]Card, 0, n)
	for i := range n {
		label := fmt.Sprint(i + 1)
		if i < len(names) {
			label = names[i]
		}
		cards = append(cards, Card{Heading: "Feature " + label, Description: "Description of this feature.", CTA: "Learn More"})
	}
	return cards
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
