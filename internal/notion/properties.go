package notion

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/starford/sitesmith/internal/models"
)

type richText struct {
	PlainText string `json:"plain_text"`
}

type named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// property is the subset of a Notion property value the builder reads.
type property struct {
	Type        string     `json:"type"`
	Title       []richText `json:"title"`
	RichText    []richText `json:"rich_text"`
	Select      *named     `json:"select"`
	Status      *named     `json:"status"`
	MultiSelect []named    `json:"multi_select"`
	Number      *float64   `json:"number"`
	URL         *string    `json:"url"`
	Email       *string    `json:"email"`
	Phone       *string    `json:"phone_number"`
}

type properties map[string]property

// page is a decoded Notion page. Raw keeps the undecoded property values so
// change hashes cover every property, not only the ones read here.
type page struct {
	ID             string
	LastEditedTime time.Time
	Props          properties
	Raw            map[string]any
}

func decodePage(data []byte) (page, error) {
	var typed struct {
		ID             string     `json:"id"`
		LastEditedTime time.Time  `json:"last_edited_time"`
		Properties     properties `json:"properties"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return page{}, fmt.Errorf("notion: decode page: %w", err)
	}
	var raw struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return page{}, fmt.Errorf("notion: decode page properties: %w", err)
	}
	return page{
		ID:             typed.ID,
		LastEditedTime: typed.LastEditedTime,
		Props:          typed.Properties,
		Raw:            raw.Properties,
	}, nil
}

func (p page) record() models.Record {
	return models.Record{
		ID:           p.ID,
		Title:        p.Props.anyTitle(),
		LastEditedAt: p.LastEditedTime,
		Properties:   p.Raw,
	}
}

func plain(rt []richText) string {
	var b strings.Builder
	for _, t := range rt {
		b.WriteString(t.PlainText)
	}
	return b.String()
}

// first returns the first present property among names.
func (ps properties) first(names ...string) (property, bool) {
	for _, n := range names {
		if p, ok := ps[n]; ok {
			return p, true
		}
	}
	return property{}, false
}

// title reads a title property.
func (ps properties) title(names ...string) string {
	p, ok := ps.first(names...)
	if !ok || p.Type != "title" {
		return ""
	}
	return plain(p.Title)
}

// anyTitle returns the page's title property whatever it is called.
func (ps properties) anyTitle() string {
	for _, p := range ps {
		if p.Type == "title" && len(p.Title) > 0 {
			return plain(p.Title)
		}
	}
	return "(untitled)"
}

// text reads rich text, url, email, phone or title properties as plain text.
func (ps properties) text(names ...string) string {
	p, ok := ps.first(names...)
	if !ok {
		return ""
	}
	switch p.Type {
	case "rich_text":
		return plain(p.RichText)
	case "title":
		return plain(p.Title)
	case "url":
		return deref(p.URL)
	case "email":
		return deref(p.Email)
	case "phone_number":
		return deref(p.Phone)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	}
	return ""
}

func (ps properties) url(name string) string {
	p, ok := ps[name]
	if !ok || p.Type != "url" {
		return ""
	}
	return deref(p.URL)
}

// selectName reads a select or status property, falling back to def.
func (ps properties) selectName(name, def string) string {
	p, ok := ps[name]
	if !ok {
		return def
	}
	switch {
	case p.Type == "select" && p.Select != nil && p.Select.Name != "":
		return p.Select.Name
	case p.Type == "status" && p.Status != nil && p.Status.Name != "":
		return p.Status.Name
	}
	return def
}

func (ps properties) multiSelect(name string) []string {
	p, ok := ps[name]
	if !ok || p.Type != "multi_select" {
		return nil
	}
	out := make([]string, 0, len(p.MultiSelect))
	for _, s := range p.MultiSelect {
		out = append(out, s.Name)
	}
	return out
}

func (ps properties) number(name string) (float64, bool) {
	p, ok := ps[name]
	if !ok || p.Type != "number" || p.Number == nil {
		return 0, false
	}
	return *p.Number, true
}

func (ps properties) integer(name string) (int, bool) {
	n, ok := ps.number(name)
	if !ok {
		return 0, false
	}
	return int(math.Round(n)), true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
