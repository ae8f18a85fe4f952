package selector

import (
	"errors"
	"reflect"
	"testing"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
)

func testSelector(t *testing.T, components ...registry.ComponentDescriptor) *Selector {
	t.Helper()
	reg, err := registry.New(components)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	s, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func defaultSelector(t *testing.T) *Selector {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	s, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func find(t *testing.T, results []Result, id string) Result {
	t.Helper()
	for _, r := range results {
		if r.Component.ID == id {
			return r
		}
	}
	t.Fatalf("component %q not ranked", id)
	return Result{}
}

func TestNew_EmptyRegistry(t *testing.T) {
	reg, err := registry.New(nil)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	if _, err := New(reg); !errors.Is(err, apperr.ErrEmptyRegistry) {
		t.Fatalf("expected ErrEmptyRegistry, got %v", err)
	}
	if _, err := New(nil); !errors.Is(err, apperr.ErrEmptyRegistry) {
		t.Fatalf("nil registry: expected ErrEmptyRegistry, got %v", err)
	}
	var s *Selector
	if _, err := s.SelectComponent(Input{SectionType: "hero"}); !errors.Is(err, apperr.ErrEmptyRegistry) {
		t.Fatalf("nil selector: expected ErrEmptyRegistry, got %v", err)
	}
}

func TestSelectComponent_PlacementPenaltyAtTop(t *testing.T) {
	s := testSelector(t,
		registry.ComponentDescriptor{ID: "cta-bottom", Category: registry.CategoryCTA, PlacementHint: registry.PlacementPageBottom},
		registry.ComponentDescriptor{ID: "cta-any", Category: registry.CategoryCTA, PlacementHint: registry.PlacementAny},
	)
	ranked, err := s.Rank(Input{SectionType: "cta", SectionName: "Get started", SectionIndex: 0, TotalSections: 5})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	bottom := find(t, ranked, "cta-bottom")
	anywhere := find(t, ranked, "cta-any")
	if bottom.Scores.Placement >= anywhere.Scores.Placement {
		t.Errorf("placement: page-bottom %d should score below any %d at index 0",
			bottom.Scores.Placement, anywhere.Scores.Placement)
	}
	if bottom.Scores.Placement != -10 || anywhere.Scores.Placement != 10 {
		t.Errorf("placement scores = %d/%d, want -10/10", bottom.Scores.Placement, anywhere.Scores.Placement)
	}
	if ranked[0].Component.ID != "cta-any" {
		t.Errorf("winner = %q, want cta-any", ranked[0].Component.ID)
	}
}

func TestSelectComponent_ParsesCountFromName(t *testing.T) {
	s := testSelector(t,
		registry.ComponentDescriptor{ID: "card-grid-two", Category: registry.CategoryCardGrid, ContentCount: 2, PlacementHint: registry.PlacementAny},
		registry.ComponentDescriptor{ID: "card-grid-three", Category: registry.CategoryCardGrid, ContentCount: 3, PlacementHint: registry.PlacementAny},
	)
	in := Input{SectionType: "services", SectionName: "3 core services", BusinessType: "SaaS", SectionIndex: 2, TotalSections: 6}
	ranked, err := s.Rank(in)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got := find(t, ranked, "card-grid-three").Scores.ContentCount; got != 15 {
		t.Errorf("content count score = %d, want 15", got)
	}
	if got := find(t, ranked, "card-grid-two").Scores.ContentCount; got != 8 {
		t.Errorf("near miss score = %d, want 8", got)
	}

	res, err := s.SelectComponent(in)
	if err != nil {
		t.Fatalf("SelectComponent: %v", err)
	}
	if res.Component.ID != "card-grid-three" {
		t.Errorf("selected %q, want card-grid-three", res.Component.ID)
	}
}

func TestSelectComponentsForPage_RepeatPenalty(t *testing.T) {
	s := testSelector(t,
		registry.ComponentDescriptor{ID: "content-prose", Category: registry.CategoryContent, PlacementHint: registry.PlacementAny},
		registry.ComponentDescriptor{ID: "content-split", Category: registry.CategoryContent, PlacementHint: registry.PlacementAny},
	)
	section := models.Section{Name: "About us", SectionType: "content"}
	picks, err := s.SelectComponentsForPage(PageInput{Sections: []models.Section{section, section}})
	if err != nil {
		t.Fatalf("SelectComponentsForPage: %v", err)
	}
	if len(picks) != 2 {
		t.Fatalf("got %d selections, want 2", len(picks))
	}
	if picks[0].Component.ID != "content-prose" {
		t.Errorf("first pick = %q, want content-prose (registry order)", picks[0].Component.ID)
	}
	if picks[1].Component.ID != "content-split" {
		t.Errorf("second pick = %q, want content-split", picks[1].Component.ID)
	}

	after := func(prev string) int {
		ranked, err := s.Rank(Input{
			SectionType: "content", SectionName: "About us",
			SectionIndex: 1, TotalSections: 2,
			UsedComponentIDs: []string{prev}, PreviousComponentID: prev,
		})
		if err != nil {
			t.Fatalf("Rank: %v", err)
		}
		return find(t, ranked, "content-prose").Score
	}
	if diff := after("content-split") - after("content-prose"); diff != 15 {
		t.Errorf("repeat penalty = %d, want 15", diff)
	}
}

func TestSelectComponent_Override(t *testing.T) {
	s := defaultSelector(t)

	res, err := s.SelectComponent(Input{SectionType: "hero", ComponentOverride: "faq-accordion", TotalSections: 3})
	if err != nil {
		t.Fatalf("SelectComponent: %v", err)
	}
	if res.Component.ID != "faq-accordion" || res.Score != OverrideScore || !res.Override {
		t.Errorf("override not honoured: %+v", res)
	}

	res, err = s.SelectComponent(Input{SectionType: "hero", ComponentOverride: "does-not-exist", TotalSections: 3})
	if err != nil {
		t.Fatalf("SelectComponent: %v", err)
	}
	if res.Override || res.Component.Category != registry.CategoryHero {
		t.Errorf("unknown override should fall back to scoring, got %+v", res)
	}
}

func TestSelectComponent_Deterministic(t *testing.T) {
	s := defaultSelector(t)
	in := Input{
		SectionType: "testimonials", SectionName: "What clients say", SectionDescription: "3 testimonials",
		BusinessType: "agency", SectionIndex: 3, TotalSections: 6,
		UsedComponentIDs: []string{"hero-lead-space"}, PreviousComponentID: "hero-lead-space",
	}
	first, err := s.Rank(in)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for range 5 {
		again, _ := s.Rank(in)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("ranking differs between identical calls")
		}
	}
}

func TestSelectComponent_TieKeepsRegistryOrder(t *testing.T) {
	s := testSelector(t,
		registry.ComponentDescriptor{ID: "faq-b", Category: registry.CategoryFAQ, PlacementHint: registry.PlacementAny},
		registry.ComponentDescriptor{ID: "faq-a", Category: registry.CategoryFAQ, PlacementHint: registry.PlacementAny},
	)
	res, err := s.SelectComponent(Input{SectionType: "faq", TotalSections: 4, SectionIndex: 2})
	if err != nil {
		t.Fatalf("SelectComponent: %v", err)
	}
	if res.Component.ID != "faq-b" {
		t.Errorf("tie broke to %q, want the first registered faq-b", res.Component.ID)
	}
}

func TestRank_ScoreBounds(t *testing.T) {
	s := defaultSelector(t)
	inputs := []Input{
		{SectionType: "hero", SectionIndex: 0, TotalSections: 5},
		{SectionType: "pricing", SectionName: "Plans", SectionDescription: "3 tiers", BusinessType: "saas", SectionIndex: 2, TotalSections: 5},
		{SectionType: "footer", SectionIndex: 4, TotalSections: 5, PreviousComponentID: "footer-standard",
			UsedComponentIDs: []string{"footer-standard", "footer-standard", "footer-standard"}},
		{SectionType: "unknown", SectionName: "Misc", SectionIndex: 1, TotalSections: 1},
	}
	for _, in := range inputs {
		ranked, err := s.Rank(in)
		if err != nil {
			t.Fatalf("Rank: %v", err)
		}
		for _, r := range ranked {
			sc := r.Scores
			if sc.Category < 0 || sc.Category > 40 ||
				sc.Industry < 0 || sc.Industry > 20 ||
				sc.ContentCount < 0 || sc.ContentCount > 15 ||
				sc.Placement < -10 || sc.Placement > 15 ||
				sc.Coherence < -10 || sc.Coherence > 10 ||
				sc.Tags < 0 || sc.Tags > 15 {
				t.Errorf("%s out of bounds for %q: %+v", r.Component.ID, in.SectionType, sc)
			}
			if r.Score != sc.Total() {
				t.Errorf("%s: score %d != sum %d", r.Component.ID, r.Score, sc.Total())
			}
		}
	}
}

func TestSelectComponentsForPage_DefaultsAndHistory(t *testing.T) {
	s := defaultSelector(t)
	sections := []models.Section{
		{Name: "Welcome", SectionType: "hero"},
		{Name: "Untyped block"},
		{Name: "Talk to us", SectionType: "cta"},
	}
	seed := []string{"cta-banner-inline"}
	picks, err := s.SelectComponentsForPage(PageInput{Sections: sections, BusinessType: "agency", UsedComponentIDs: seed})
	if err != nil {
		t.Fatalf("SelectComponentsForPage: %v", err)
	}
	if len(picks) != len(sections) {
		t.Fatalf("got %d picks, want %d", len(picks), len(sections))
	}
	if picks[0].Component.Category != registry.CategoryHero {
		t.Errorf("first pick category = %q, want hero", picks[0].Component.Category)
	}
	if picks[1].Component.Category != registry.CategoryContent {
		t.Errorf("untyped section should default to content, got %q", picks[1].Component.Category)
	}
	if len(seed) != 1 || seed[0] != "cta-banner-inline" {
		t.Errorf("seed history was modified: %v", seed)
	}
	if picks[2].Section.Name != "Talk to us" {
		t.Errorf("selection not paired with its section: %+v", picks[2].Section)
	}
}
