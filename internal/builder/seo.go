package builder

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/sitesmith/internal/models"
)

const (
	pageTypeLanding  = "Landing"
	pageTypeBlogPost = "Blog Post"
)

// BaseURL returns the absolute site URL without a trailing slash. An explicit
// override wins over the site's domain; a bare domain gets https://.
func BaseURL(override, domain string) string {
	u := strings.TrimSpace(override)
	if u == "" {
		u = strings.TrimSpace(domain)
	}
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

// PagePath maps a route to its output file: "/" → index.html,
// "/about" → about.html, "/docs/" → docs/index.html.
func PagePath(route string) string {
	r := strings.TrimSpace(route)
	if r == "" || r == "/" {
		return "index.html"
	}
	dir := strings.HasSuffix(r, "/")
	r = strings.Trim(path.Clean("/"+r), "/")
	if r == "" {
		return "index.html"
	}
	if dir {
		return r + "/index.html"
	}
	if strings.HasSuffix(r, ".html") {
		return r
	}
	return r + ".html"
}

// relLink returns the link from the page written at from to the file at to,
// both relative to the output root.
func relLink(from, to string) string {
	depth := strings.Count(from, "/")
	return strings.Repeat("../", depth) + to
}

// canonicalURL joins base and route; the root route maps to base + "/".
func canonicalURL(base, route string) string {
	if base == "" {
		return ""
	}
	if route == "" || route == "/" {
		return base + "/"
	}
	return base + "/" + strings.TrimLeft(route, "/")
}

func listed(p models.Page) bool {
	return p.Status != models.StatusDraft
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap renders sitemap.xml for every non-draft page.
func Sitemap(base string, pages []models.Page, now time.Time) ([]byte, error) {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	day := now.UTC().Format(time.DateOnly)
	for _, p := range pages {
		if !listed(p) {
			continue
		}
		priority := "0.8"
		switch {
		case p.Route == "/" || p.Route == "":
			priority = "1.0"
		case p.PageType == pageTypeLanding:
			priority = "0.9"
		}
		freq := "monthly"
		if p.PageType == pageTypeBlogPost {
			freq = "weekly"
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        canonicalURL(base, p.Route),
			LastMod:    day,
			ChangeFreq: freq,
			Priority:   priority,
		})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("builder: sitemap: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Robots renders robots.txt, pointing at the sitemap when base is known.
func Robots(base string) []byte {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	if base != "" {
		fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", base)
	}
	return []byte(b.String())
}

// jsonLD returns schema.org structured data for a page.
func jsonLD(site models.Site, p models.Page, base, description string) map[string]any {
	url := canonicalURL(base, p.Route)
	switch {
	case p.Route == "/" || p.Route == "":
		return map[string]any{
			"@context":    "https://schema.org",
			"@type":       "WebSite",
			"name":        site.Name,
			"url":         url,
			"description": site.BrandDescription,
		}
	case p.PageType == pageTypeBlogPost:
		return map[string]any{
			"@context":    "https://schema.org",
			"@type":       "Article",
			"headline":    p.Name,
			"description": description,
			"url":         url,
			"publisher":   map[string]any{"@type": "Organization", "name": site.Name},
		}
	default:
		return map[string]any{
			"@context":    "https://schema.org",
			"@type":       "WebPage",
			"name":        p.Name,
			"description": description,
			"url":         url,
		}
	}
}
