package notion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
)

// Databases holds the ids of the site-builder databases. Only Sites, Pages
// and Sections are required for extraction.
type Databases struct {
	Sites        string
	Pages        string
	Sections     string
	Services     string
	Testimonials string
	Team         string
	BuildLog     string
}

// Extractor reads a complete site definition.
type Extractor struct {
	client *Client
	dbs    Databases
	logger *slog.Logger
}

// NewExtractor returns an Extractor over the given databases.
func NewExtractor(client *Client, dbs Databases, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, dbs: dbs, logger: logger}
}

// ExtractSite reads the site record, its pages ordered by Nav Order, each
// page's sections ordered by Order, and the shared content collections.
func (e *Extractor) ExtractSite(ctx context.Context, siteID string) (models.SiteData, error) {
	if e.dbs.Pages == "" || e.dbs.Sections == "" {
		return models.SiteData{}, fmt.Errorf("notion: %w: pages and sections databases are required", apperr.ErrConfiguration)
	}

	sp, err := e.client.page(ctx, siteID)
	if err != nil {
		return models.SiteData{}, fmt.Errorf("notion: site %s: %w", siteID, err)
	}
	data := models.SiteData{Site: parseSite(sp)}

	pages, err := e.client.queryAll(ctx, e.dbs.Pages, queryRequest{
		Filter: relationContains("Site", siteID),
		Sorts:  []sortSpec{{Property: "Nav Order", Direction: "ascending"}},
	})
	if err != nil {
		return models.SiteData{}, fmt.Errorf("notion: pages of %s: %w", siteID, err)
	}
	for _, p := range pages {
		pg := parsePage(p)
		sections, err := e.client.queryAll(ctx, e.dbs.Sections, queryRequest{
			Filter: relationContains("Page", p.ID),
			Sorts:  []sortSpec{{Property: "Order", Direction: "ascending"}},
		})
		if err != nil {
			return models.SiteData{}, fmt.Errorf("notion: sections of %s: %w", p.ID, err)
		}
		for _, s := range sections {
			pg.Sections = append(pg.Sections, parseSection(s))
		}
		slices.SortStableFunc(pg.Sections, func(a, b models.Section) int { return a.Order - b.Order })
		data.Pages = append(data.Pages, pg)
	}
	slices.SortStableFunc(data.Pages, func(a, b models.Page) int { return a.NavOrder - b.NavOrder })

	content, err := e.extractContent(ctx)
	if err != nil {
		return models.SiteData{}, err
	}
	data.Content = content

	e.logger.Info("site extracted",
		"site_id", siteID,
		"pages", len(data.Pages),
		"services", len(content.Services),
		"testimonials", len(content.Testimonials),
		"team", len(content.Team),
	)
	return data, nil
}

func (e *Extractor) extractContent(ctx context.Context) (models.ContentDatabases, error) {
	var out models.ContentDatabases
	g, ctx := errgroup.WithContext(ctx)
	if e.dbs.Services != "" {
		g.Go(func() error {
			ps, err := e.client.queryAll(ctx, e.dbs.Services, queryRequest{})
			if err != nil {
				return fmt.Errorf("notion: services: %w", err)
			}
			for _, p := range ps {
				out.Services = append(out.Services, parseService(p))
			}
			return nil
		})
	}
	if e.dbs.Testimonials != "" {
		g.Go(func() error {
			ps, err := e.client.queryAll(ctx, e.dbs.Testimonials, queryRequest{})
			if err != nil {
				return fmt.Errorf("notion: testimonials: %w", err)
			}
			for _, p := range ps {
				out.Testimonials = append(out.Testimonials, parseTestimonial(p))
			}
			return nil
		})
	}
	if e.dbs.Team != "" {
		g.Go(func() error {
			ps, err := e.client.queryAll(ctx, e.dbs.Team, queryRequest{})
			if err != nil {
				return fmt.Errorf("notion: team: %w", err)
			}
			for _, p := range ps {
				out.Team = append(out.Team, parseTeamMember(p))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.ContentDatabases{}, err
	}
	return out, nil
}

func relationContains(property, id string) map[string]any {
	return map[string]any{
		"property": property,
		"relation": map[string]string{"contains": id},
	}
}

func parseSite(p page) models.Site {
	ps := p.Props
	return models.Site{
		ID:               p.ID,
		Name:             ps.title("Site Name", "Name"),
		Domain:           ps.url("Domain"),
		Repo:             ps.text("GitHub Repo"),
		BusinessType:     ps.selectName("Business Type", ""),
		BrandDescription: ps.text("Brand Description"),
		TargetAudience:   ps.multiSelect("Target Audience"),
		PrimaryColor:     ps.text("Primary Color"),
		Theme:            ps.selectName("Theme", "G100"),
		Status:           ps.selectName("Status", models.StatusDraft),
	}
}

func parsePage(p page) models.Page {
	ps := p.Props
	pg := models.Page{
		ID:             p.ID,
		Name:           ps.title("Page Name", "Name"),
		Route:          ps.text("Route"),
		PageType:       ps.selectName("Page Type", "Landing"),
		Status:         ps.selectName("Status", models.StatusDraft),
		SEOTitle:       ps.text("SEO Title"),
		SEODescription: ps.text("SEO Description"),
		LastEdited:     p.LastEditedTime,
	}
	if pg.Route == "" {
		pg.Route = "/"
	}
	pg.NavOrder, _ = ps.integer("Nav Order")
	return pg
}

func parseSection(p page) models.Section {
	ps := p.Props
	s := models.Section{
		ID:                p.ID,
		Name:              ps.title("Section Name", "Name"),
		SectionType:       ps.selectName("Section Type", "Content"),
		Description:       ps.text("Description"),
		ComponentOverride: ps.text("Carbon Component"),
	}
	s.Order, _ = ps.integer("Order")
	if n, ok := ps.integer("Content Count"); ok && n > 0 {
		s.ContentCount = &n
	}
	return s
}

func parseService(p page) models.Service {
	ps := p.Props
	return models.Service{
		ID:          p.ID,
		Name:        ps.title("Name"),
		Description: ps.text("Description"),
		Features:    ps.multiSelect("Features"),
		CTALabel:    ps.text("CTA Label"),
		CTALink:     ps.url("CTA Link"),
	}
}

func parseTestimonial(p page) models.Testimonial {
	ps := p.Props
	t := models.Testimonial{
		ID:     p.ID,
		Quote:  ps.title("Quote"),
		Author: ps.text("Author"),
		Role:   ps.text("Role"),
	}
	t.Rating, _ = ps.number("Rating")
	return t
}

func parseTeamMember(p page) models.TeamMember {
	ps := p.Props
	return models.TeamMember{
		ID:       p.ID,
		Name:     ps.title("Name"),
		Role:     ps.text("Role"),
		Bio:      ps.text("Bio"),
		LinkedIn: ps.url("LinkedIn"),
	}
}
