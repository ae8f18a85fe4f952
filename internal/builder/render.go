package builder

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
)

//go:embed templates
var templateFS embed.FS

const defaultLang = "en"

type navLink struct {
	Name    string
	Href    string
	Current bool
}

type sectionView struct {
	Anchor    string
	Component registry.ComponentDescriptor
	Copy      Copy
	Nav       []navLink
	Site      models.Site
	Contact   string
	Year      int
}

type pageView struct {
	Lang        string
	Title       string
	Description string
	Canonical   string
	SiteName    string
	Home        string
	CSS         string
	JSONLD      any
	Nav         []navLink
	Sections    []template.HTML
}

// sanitizer strips markup from CMS and generated text. Plain fields lose all
// tags; rich fields keep a user-content safe subset.
type sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	return &sanitizer{strict: bluemonday.StrictPolicy(), ugc: bluemonday.UGCPolicy()}
}

// plain returns s without markup. html/template escapes on output, so the
// entities bluemonday produces are decoded again.
func (s *sanitizer) plain(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(v)))
}

func (s *sanitizer) rich(v string) template.HTML {
	return template.HTML(s.ugc.Sanitize(v))
}

// clean strips markup from every plain-text field of c. Description is
// sanitised at render time with the rich policy.
func (s *sanitizer) clean(c Copy) Copy {
	c.Eyebrow = s.plain(c.Eyebrow)
	c.Heading = s.plain(c.Heading)
	c.PrimaryCTA = s.plain(c.PrimaryCTA)
	c.SecondaryCTA = s.plain(c.SecondaryCTA)
	c.Quote = s.plain(c.Quote)
	c.Author = s.plain(c.Author)
	c.Role = s.plain(c.Role)
	cards := make([]Card, len(c.Cards))
	for i, card := range c.Cards {
		cards[i] = Card{
			Heading:     s.plain(card.Heading),
			Description: s.plain(card.Description),
			CTA:         s.plain(card.CTA),
			Link:        strings.TrimSpace(card.Link),
		}
	}
	c.Cards = cards
	items := make([]QA, len(c.Items))
	for i, it := range c.Items {
		items[i] = QA{Question: s.plain(it.Question), Answer: s.plain(it.Answer)}
	}
	c.Items = items
	return c
}

type renderer struct {
	tmpl *template.Template
	san  *sanitizer
}

func newRenderer() (*renderer, error) {
	san := newSanitizer()
	tmpl, err := template.New("site").
		Funcs(template.FuncMap{"rich": san.rich}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("builder: parse templates: %w", err)
	}
	return &renderer{tmpl: tmpl, san: san}, nil
}

// sectionTemplate maps a component category to its section template.
func (r *renderer) sectionTemplate(cat registry.Category) string {
	switch cat {
	case registry.CategoryHeader:
		cat = registry.CategoryHero
	case registry.CategoryNavigation:
		cat = registry.CategoryLinkList
	}
	name := "section-" + string(cat)
	if r.tmpl.Lookup(name) == nil {
		return "section-content"
	}
	return name
}

func (r *renderer) section(v sectionView) (template.HTML, error) {
	var buf bytes.Buffer
	name := r.sectionTemplate(v.Component.Category)
	if err := r.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("builder: render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (r *renderer) page(w io.Writer, v pageView) error {
	if err := r.tmpl.ExecuteTemplate(w, "page", v); err != nil {
		return fmt.Errorf("builder: render page: %w", err)
	}
	return nil
}

// DetectLanguage returns the ISO 639-1 code of text, or "en" when the
// detection is unreliable.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return defaultLang
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return defaultLang
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return defaultLang
}

// copyText joins the visible text of a page's copy for language detection.
func copyText(copies []Copy) string {
	var b strings.Builder
	for _, c := range copies {
		for _, s := range []string{c.Heading, c.Description, c.Quote} {
			if s != "" {
				b.WriteString(s)
				b.WriteByte(' ')
			}
		}
		for _, card := range c.Cards {
			b.WriteString(card.Description)
			b.WriteByte(' ')
		}
		for _, it := range c.Items {
			b.WriteString(it.Question + " " + it.Answer + " ")
		}
	}
	return b.String()
}
