// Package models defines the domain types for sitesmith.
package models

import "time"

// Site is the root record a generated website is built from.
type Site struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Domain           string   `json:"domain,omitempty"`
	Repo             string   `json:"repo,omitempty"`
	BusinessType     string   `json:"business_type,omitempty"`
	BrandDescription string   `json:"brand_description,omitempty"`
	TargetAudience   []string `json:"target_audience,omitempty"`
	PrimaryColor     string   `json:"primary_color,omitempty"`
	Theme            string   `json:"theme,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// Page is one routed page of a site. Sections are kept in page order.
type Page struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Route          string    `json:"route"`
	PageType       string    `json:"page_type,omitempty"`
	NavOrder       int       `json:"nav_order"`
	Status         string    `json:"status,omitempty"`
	SEOTitle       string    `json:"seo_title,omitempty"`
	SEODescription string    `json:"seo_description,omitempty"`
	Sections       []Section `json:"sections"`
	LastEdited     time.Time `json:"last_edited,omitempty"`
}

// Section is an abstract content block on a page, not yet bound to a component.
type Section struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	SectionType string `json:"section_type"`
	Description string `json:"description,omitempty"`
	// ContentCount overrides the count parsed from Name/Description.
	ContentCount *int `json:"content_count,omitempty"`
	Order        int  `json:"order"`
	// ComponentOverride names a registry component that bypasses scoring.
	ComponentOverride string `json:"component_override,omitempty"`
}

// Service is an entry of the services/products collection.
type Service struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	CTALabel    string   `json:"cta_label,omitempty"`
	CTALink     string   `json:"cta_link,omitempty"`
}

type Testimonial struct {
	ID     string  `json:"id"`
	Quote  string  `json:"quote"`
	Author string  `json:"author,omitempty"`
	Role   string  `json:"role,omitempty"`
	Rating float64 `json:"rating,omitempty"`
}

type TeamMember struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Bio      string `json:"bio,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// ContentDatabases groups the reusable content collections a site draws on.
type ContentDatabases struct {
	Services     []Service     `json:"services"`
	Testimonials []Testimonial `json:"testimonials"`
	Team         []TeamMember  `json:"team"`
}

// SiteData is everything pulled from the source for one build.
type SiteData struct {
	Site    Site             `json:"site"`
	Pages   []Page           `json:"pages"`
	Content ContentDatabases `json:"content"`
}
