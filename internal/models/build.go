package models

import "time"

// Status values written back to the site record.
const (
	StatusDraft     = "Draft"
	StatusBuilding  = "Building"
	StatusPublished = "Published"
	StatusFailed    = "Failed"
)

// BuildResult describes the output of one build + publish run.
type BuildResult struct {
	ID         string    `json:"id"`
	OutputDir  string    `json:"output_dir"`
	Files      []string  `json:"files"`
	DeployURL  string    `json:"deploy_url,omitempty"`
	CommitHash string    `json:"commit_hash,omitempty"`
	SiteID     string    `json:"site_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Pages carries per-page data to write back to the source.
	Pages []PageUpdate `json:"pages,omitempty"`
}

// BuildReport is the status written back after a build attempt.
type BuildReport struct {
	BuildID   string `json:"build_id"`
	SiteID    string `json:"site_id,omitempty"`
	Status    string `json:"status"`
	DeployURL string `json:"deploy_url,omitempty"`
	Files     int    `json:"files"`
	Error     string `json:"error,omitempty"`
}

// PageUpdate carries generated data written back to a page record.
type PageUpdate struct {
	PageID         string `json:"page_id"`
	Status         string `json:"status,omitempty"`
	SEOTitle       string `json:"seo_title,omitempty"`
	SEODescription string `json:"seo_description,omitempty"`
}
