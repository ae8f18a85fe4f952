// Package publish ships a built site from the output store to a static host.
package publish

import (
	"context"
	"strings"

	"github.com/starford/sitesmith/internal/storage"
)

// Targets accepted by configuration.
const (
	TargetNone = "none"
	TargetGit  = "git"
	TargetS3   = "s3"
)

// Request describes one publish.
type Request struct {
	Store   storage.Provider
	Message string
	// Domain is the site's custom domain, if any.
	Domain string
}

// Result reports what a publish did.
type Result struct {
	Target    string `json:"target"`
	Revision  string `json:"revision,omitempty"`
	Files     int    `json:"files"`
	Skipped   bool   `json:"skipped"`
	DeployURL string `json:"deploy_url,omitempty"`
}

// Publisher uploads the contents of a store somewhere reachable.
type Publisher interface {
	Publish(ctx context.Context, req Request) (Result, error)
}

// Noop leaves the output where it is. It is used when no target is set.
type Noop struct {
	BaseURL string
}

func (n Noop) Publish(_ context.Context, req Request) (Result, error) {
	files, err := req.Store.List()
	if err != nil {
		return Result{}, err
	}
	return Result{Target: TargetNone, Files: len(files), Skipped: true, DeployURL: n.BaseURL}, nil
}

// DeployURL picks the public URL of a site: an explicit base URL, then a
// custom domain, then the GitHub Pages URL of owner/repo.
func DeployURL(baseURL, domain, repo string) string {
	if u := strings.TrimSpace(baseURL); u != "" {
		return withScheme(strings.TrimRight(u, "/") + "/")
	}
	if d := strings.TrimSpace(domain); d != "" && !strings.Contains(d, "github.io") {
		return withScheme(strings.TrimRight(d, "/") + "/")
	}
	owner, name, ok := strings.Cut(strings.Trim(strings.TrimSpace(repo), "/"), "/")
	if !ok || owner == "" || name == "" {
		return ""
	}
	return "https://" + owner + ".github.io/" + name + "/"
}

func withScheme(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}

// customDomain returns the bare host of a custom domain, or "" for GitHub
// Pages hosts and empty input.
func customDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
	d, _, _ = strings.Cut(d, "/")
	if d == "" || strings.HasSuffix(d, "github.io") {
		return ""
	}
	return d
}
