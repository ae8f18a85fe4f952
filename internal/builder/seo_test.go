package builder

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/starford/sitesmith/internal/models"
)

func TestPagePath(t *testing.T) {
	tests := []struct {
		route, want string
	}{
		{"/", "index.html"},
		{"", "index.html"},
		{"/about", "about.html"},
		{"about", "about.html"},
		{"/docs/", "docs/index.html"},
		{"/blog/first-post", "blog/first-post.html"},
		{"/legal.html", "legal.html"},
		{"/../../etc", "etc.html"},
	}
	for _, tt := range tests {
		if got := PagePath(tt.route); got != tt.want {
			t.Errorf("PagePath(%q) = %q, want %q", tt.route, got, tt.want)
		}
	}
}

func TestRelLink(t *testing.T) {
	if got := relLink("index.html", "about.html"); got != "about.html" {
		t.Errorf("got %q", got)
	}
	if got := relLink("blog/post.html", "css/theme.css"); got != "../css/theme.css" {
		t.Errorf("got %q", got)
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		override, domain, want string
	}{
		{"", "example.com", "https://example.com"},
		{"", "http://example.com/", "http://example.com"},
		{"https://owner.github.io/repo/", "example.com", "https://owner.github.io/repo"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := BaseURL(tt.override, tt.domain); got != tt.want {
			t.Errorf("BaseURL(%q, %q) = %q, want %q", tt.override, tt.domain, got, tt.want)
		}
	}
}

func TestSitemap(t *testing.T) {
	pages := []models.Page{
		{Route: "/", PageType: "Landing", Status: "Published"},
		{Route: "/pricing", PageType: "Landing", Status: "Published"},
		{Route: "/blog/hello", PageType: "Blog Post", Status: "Published"},
		{Route: "/about", PageType: "About"},
		{Route: "/secret", Status: models.StatusDraft},
	}
	out, err := Sitemap("https://example.com", pages, buildTime)
	if err != nil {
		t.Fatalf("Sitemap: %v", err)
	}
	if !strings.HasPrefix(string(out), "<?xml") {
		t.Error("missing xml header")
	}

	var set urlSet
	if err := xml.Unmarshal(out, &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(set.URLs) != 4 {
		t.Fatalf("urls = %d, want 4 (draft excluded)", len(set.URLs))
	}
	want := []sitemapURL{
		{Loc: "https://example.com/", LastMod: "2026-05-01", ChangeFreq: "monthly", Priority: "1.0"},
		{Loc: "https://example.com/pricing", LastMod: "2026-05-01", ChangeFreq: "monthly", Priority: "0.9"},
		{Loc: "https://example.com/blog/hello", LastMod: "2026-05-01", ChangeFreq: "weekly", Priority: "0.8"},
		{Loc: "https://example.com/about", LastMod: "2026-05-01", ChangeFreq: "monthly", Priority: "0.8"},
	}
	for i, u := range set.URLs {
		if u != want[i] {
			t.Errorf("url[%d] = %+v, want %+v", i, u, want[i])
		}
	}
}

func TestRobots(t *testing.T) {
	got := string(Robots("https://example.com"))
	if !strings.Contains(got, "User-agent: *") || !strings.Contains(got, "Sitemap: https://example.com/sitemap.xml") {
		t.Errorf("robots = %q", got)
	}
	if strings.Contains(string(Robots("")), "Sitemap") {
		t.Error("sitemap line without base URL")
	}
}
