// Package builder turns extracted site data into static HTML: it selects a
// component per section, writes copy, renders pages and emits SEO files.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/llm"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
	"github.com/starford/sitesmith/internal/storage"
)

const (
	themeFile     = "css/theme.css"
	maxSEODescLen = 160

	// fallbackSectionType is used for pages without sections.
	fallbackSectionType = "hero"
)

// Options configure a Builder.
type Options struct {
	Selector *selector.Selector
	Store    storage.Provider
	// Generator writes copy; nil uses templated copy only.
	Generator llm.Generator
	// BaseURL overrides the site's domain for canonical links and sitemap.
	BaseURL string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Builder renders sites into a storage.Provider.
type Builder struct {
	sel     atomic.Pointer[selector.Selector]
	store   storage.Provider
	writer  *CopyWriter
	render  *renderer
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Builder. Selector and Store are required.
func New(opts Options) (*Builder, error) {
	if opts.Selector == nil {
		return nil, fmt.Errorf("builder: %w", apperr.ErrEmptyRegistry)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("builder: %w: no output store", apperr.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	b := &Builder{
		store:   opts.Store,
		writer:  NewCopyWriter(opts.Generator, logger),
		render:  r,
		baseURL: opts.BaseURL,
		logger:  logger,
		now:     now,
	}
	b.sel.Store(opts.Selector)
	return b, nil
}

// SetSelector replaces the selector used by later builds, for example after
// the component registry was reloaded.
func (b *Builder) SetSelector(sel *selector.Selector) {
	if sel != nil {
		b.sel.Store(sel)
	}
}

// PagePlan is the component selection for one page.
type PagePlan struct {
	Page       models.Page
	Path       string
	Selections []selector.PageSelection
}

// Plan selects components for every page in nav order. Component ids used
// on earlier pages seed the history of later ones.
func (b *Builder) Plan(data models.SiteData) ([]PagePlan, error) {
	pages := slices.Clone(data.Pages)
	slices.SortStableFunc(pages, func(a, c models.Page) int { return a.NavOrder - c.NavOrder })

	sel := b.sel.Load()
	var used []string
	plans := make([]PagePlan, 0, len(pages))
	seen := make(map[string]string, len(pages))
	for _, p := range pages {
		file := PagePath(p.Route)
		if other, ok := seen[file]; ok {
			return nil, fmt.Errorf("builder: pages %q and %q both render to %s", other, p.Name, file)
		}
		seen[file] = p.Name

		sections := p.Sections
		if len(sections) == 0 {
			sections = []models.Section{{Name: p.Name, SectionType: fallbackSectionType}}
		}
		sels, err := sel.SelectComponentsForPage(selector.PageInput{
			Sections:         sections,
			BusinessType:     data.Site.BusinessType,
			UsedComponentIDs: used,
		})
		if err != nil {
			return nil, fmt.Errorf("builder: page %q: %w", p.Name, err)
		}
		for _, s := range sels {
			used = append(used, s.Component.ID)
		}
		plans = append(plans, PagePlan{Page: p, Path: file, Selections: sels})
	}
	return plans, nil
}

// Build renders data into the store, replacing its previous contents.
func (b *Builder) Build(ctx context.Context, data models.SiteData) (models.BuildResult, error) {
	res := models.BuildResult{
		OutputDir: b.store.Root(),
		SiteID:    data.Site.ID,
		StartedAt: b.now(),
	}
	if len(data.Pages) == 0 {
		return res, fmt.Errorf("builder: site %q has no pages", data.Site.Name)
	}
	data = b.cleanData(data)
	plans, err := b.Plan(data)
	if err != nil {
		return res, err
	}
	if err := b.store.Reset(); err != nil {
		return res, fmt.Errorf("builder: %w", err)
	}

	base := BaseURL(b.baseURL, data.Site.Domain)
	nav := make([]navLink, 0, len(plans))
	for _, pl := range plans {
		if listed(pl.Page) {
			nav = append(nav, navLink{Name: pl.Page.Name, Href: pl.Path})
		}
	}

	for _, pl := range plans {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		update, err := b.buildPage(ctx, data, pl, nav, base)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, pl.Path)
		if update.SEOTitle != "" || update.SEODescription != "" {
			res.Pages = append(res.Pages, update)
		}
	}

	css, err := ThemeCSS(data.Site.Theme, data.Site.PrimaryColor)
	if err != nil {
		return res, err
	}
	extra := map[string][]byte{
		themeFile:    css,
		"robots.txt": Robots(base),
	}
	if base != "" {
		sm, err := Sitemap(base, data.Pages, b.now())
		if err != nil {
			return res, err
		}
		extra["sitemap.xml"] = sm
	}
	for _, name := range []string{themeFile, "robots.txt", "sitemap.xml"} {
		content, ok := extra[name]
		if !ok {
			continue
		}
		if err := b.store.Write(name, content); err != nil {
			return res, fmt.Errorf("builder: %w", err)
		}
		res.Files = append(res.Files, name)
	}
	slices.Sort(res.Files)
	res.FinishedAt = b.now()

	b.logger.Info("site built",
		"site", data.Site.Name,
		"pages", len(plans),
		"files", len(res.Files),
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

// buildPage renders one page and returns the SEO fields missing from its
// source record.
func (b *Builder) buildPage(ctx context.Context, data models.SiteData, pl PagePlan, nav []navLink, base string) (models.PageUpdate, error) {
	site := data.Site
	copies := b.writer.Write(ctx, site, pl.Page, pl.Selections, data.Content)
	for i := range copies {
		copies[i] = b.render.san.clean(copies[i])
	}

	pageNav := make([]navLink, len(nav))
	for i, n := range nav {
		pageNav[i] = navLink{Name: n.Name, Href: relLink(pl.Path, n.Href), Current: n.Href == pl.Path}
	}

	anchors := make([]string, len(pl.Selections))
	contact := "#"
	taken := map[string]int{}
	for i, s := range pl.Selections {
		anchors[i] = anchor(b.render.san.plain(s.Section.Name), i, taken)
		if contact == "#" && s.Component.Category == registry.CategoryCTA {
			contact = "#" + anchors[i]
		}
	}

	year := b.now().Year()
	sections := make([]template.HTML, 0, len(pl.Selections))
	for i, s := range pl.Selections {
		h, err := b.render.section(sectionView{
			Anchor:    anchors[i],
			Component: s.Component,
			Copy:      copies[i],
			Nav:       pageNav,
			Site:      site,
			Contact:   contact,
			Year:      year,
		})
		if err != nil {
			return models.PageUpdate{}, err
		}
		sections = append(sections, h)
	}

	title := b.render.san.plain(pl.Page.SEOTitle)
	if title == "" {
		title = pl.Page.Name + " | " + site.Name
	}
	desc := b.render.san.plain(pl.Page.SEODescription)
	if desc == "" {
		desc = b.seoDescription(site, copies)
	}

	var buf bytes.Buffer
	err := b.render.page(&buf, pageView{
		Lang:        DetectLanguage(site.BrandDescription + " " + copyText(copies)),
		Title:       title,
		Description: desc,
		Canonical:   canonicalURL(base, pl.Page.Route),
		SiteName:    site.Name,
		Home:        relLink(pl.Path, "index.html"),
		CSS:         relLink(pl.Path, themeFile),
		JSONLD:      jsonLD(site, pl.Page, base, desc),
		Nav:         pageNav,
		Sections:    sections,
	})
	if err != nil {
		return models.PageUpdate{}, err
	}
	if err := b.store.Write(pl.Path, buf.Bytes()); err != nil {
		return models.PageUpdate{}, fmt.Errorf("builder: %w", err)
	}

	update := models.PageUpdate{PageID: pl.Page.ID}
	if pl.Page.SEOTitle == "" {
		update.SEOTitle = title
	}
	if pl.Page.SEODescription == "" {
		update.SEODescription = desc
	}
	if update.PageID == "" {
		return models.PageUpdate{}, nil
	}
	return update, nil
}

// cleanData strips markup from the site and page names used outside
// section copy.
func (b *Builder) cleanData(data models.SiteData) models.SiteData {
	san := b.render.san
	data.Site.Name = san.plain(data.Site.Name)
	data.Site.BrandDescription = san.plain(data.Site.BrandDescription)
	pages := make([]models.Page, len(data.Pages))
	for i, p := range data.Pages {
		p.Name = san.plain(p.Name)
		pages[i] = p
	}
	data.Pages = pages
	return data
}

// seoDescription prefers the first section description, then the brand
// description.
func (b *Builder) seoDescription(site models.Site, copies []Copy) string {
	for _, c := range copies {
		if d := b.render.san.plain(c.Description); d != "" {
			return truncateRunes(d, maxSEODescLen)
		}
	}
	return truncateRunes(b.render.san.plain(site.BrandDescription), maxSEODescLen)
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// anchor derives a unique, URL-safe element id for a section.
func anchor(name string, index int, taken map[string]int) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = fmt.Sprintf("section-%d", index+1)
	}
	taken[slug]++
	if n := taken[slug]; n > 1 {
		slug = fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}
