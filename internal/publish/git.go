package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultBranch      = "main"
	DefaultAuthorName  = "sitesmith[bot]"
	DefaultAuthorEmail = "sitesmith-bot@users.noreply.github.com"

	workflowPath = ".github/workflows/pages.yml"
	remoteName   = "origin"
)

// GitOptions configure a Git publisher.
type GitOptions struct {
	// Remote is the push URL. Empty commits locally only.
	Remote string
	Branch string
	// Repo is owner/name, used to derive the GitHub Pages URL.
	Repo        string
	AuthorName  string
	AuthorEmail string
	BaseURL     string
	// PagesWorkflow adds a GitHub Actions workflow deploying the branch.
	PagesWorkflow bool
	PushRetries   int
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

// Git commits the output store as a git working tree and pushes it.
type Git struct {
	opts   GitOptions
	logger *slog.Logger
}

var _ Publisher = (*Git)(nil)

// NewGit returns a Git publisher with defaults applied.
func NewGit(opts GitOptions) *Git {
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	if opts.AuthorName == "" {
		opts.AuthorName = DefaultAuthorName
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = DefaultAuthorEmail
	}
	if opts.PushRetries < 0 {
		opts.PushRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Git{opts: opts, logger: logger}
}

// Author returns the commit author name, so webhook handlers can recognise
// pushes made by this publisher.
func (g *Git) Author() string { return g.opts.AuthorName }

// Publish commits the store's contents on top of the remote branch and
// pushes. A tree identical to the last commit is not committed again.
func (g *Git) Publish(ctx context.Context, req Request) (Result, error) {
	dir := req.Store.Root()
	res := Result{Target: TargetGit, DeployURL: DeployURL(g.opts.BaseURL, req.Domain, g.opts.Repo)}

	if host := customDomain(req.Domain); host != "" {
		if err := req.Store.Write("CNAME", []byte(host+"\n")); err != nil {
			return res, err
		}
	}
	if g.opts.PagesWorkflow {
		if err := req.Store.Write(workflowPath, []byte(pagesWorkflow(g.opts.Branch))); err != nil {
			return res, err
		}
	}

	if err := g.prepare(ctx, dir); err != nil {
		return res, err
	}
	if _, err := g.git(ctx, dir, "add", "-A"); err != nil {
		return res, err
	}
	status, err := g.git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return res, err
	}
	if status == "" {
		res.Skipped = true
		res.Revision, _ = g.git(ctx, dir, "rev-parse", "HEAD")
		g.logger.Info("publish skipped, no changes", "dir", dir)
		return res, nil
	}
	res.Files = len(strings.Split(status, "\n"))

	msg := req.Message
	if msg == "" {
		msg = "Update site"
	}
	_, err = g.run(ctx, dir, []string{
		"GIT_AUTHOR_NAME=" + g.opts.AuthorName,
		"GIT_AUTHOR_EMAIL=" + g.opts.AuthorEmail,
		"GIT_COMMITTER_NAME=" + g.opts.AuthorName,
		"GIT_COMMITTER_EMAIL=" + g.opts.AuthorEmail,
	}, "commit", "-q", "--no-gpg-sign", "-m", msg)
	if err != nil {
		return res, err
	}
	if res.Revision, err = g.git(ctx, dir, "rev-parse", "HEAD"); err != nil {
		return res, err
	}
	g.logger.Info("site committed", "revision", res.Revision, "files", res.Files)

	if g.opts.Remote != "" {
		if err := g.push(ctx, dir); err != nil {
			return res, err
		}
	}
	return res, nil
}

// prepare makes dir a repository on the configured branch whose HEAD and
// index match the remote branch, leaving the working tree untouched.
func (g *Git) prepare(ctx context.Context, dir string) error {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, err := g.git(ctx, dir, "init", "-q", "--initial-branch="+g.opts.Branch); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("publish: stat repository: %w", err)
	}
	if g.opts.Remote == "" {
		return nil
	}

	if url, err := g.git(ctx, dir, "remote", "get-url", remoteName); err != nil {
		if _, err := g.git(ctx, dir, "remote", "add", remoteName, g.opts.Remote); err != nil {
			return err
		}
	} else if url != g.opts.Remote {
		if _, err := g.git(ctx, dir, "remote", "set-url", remoteName, g.opts.Remote); err != nil {
			return err
		}
	}

	// A branch missing on the remote is not an error: the first push creates it.
	if _, err := g.git(ctx, dir, "fetch", "-q", remoteName, g.opts.Branch); err != nil {
		g.logger.Info("remote branch not fetched, publishing from scratch", "branch", g.opts.Branch, "error", err)
		return nil
	}
	if _, err := g.git(ctx, dir, "update-ref", "HEAD", "FETCH_HEAD"); err != nil {
		return err
	}
	_, err = g.git(ctx, dir, "reset", "-q")
	return err
}

// push retries with doubling delays.
func (g *Git) push(ctx context.Context, dir string) error {
	delay := g.opts.RetryDelay
	var err error
	for attempt := 0; ; attempt++ {
		_, err = g.git(ctx, dir, "push", "-q", "--set-upstream", remoteName, "HEAD:refs/heads/"+g.opts.Branch)
		if err == nil {
			g.logger.Info("site pushed", "remote", remoteName, "branch", g.opts.Branch)
			return nil
		}
		if attempt >= g.opts.PushRetries {
			break
		}
		g.logger.Warn("push failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("publish: push failed after %d attempt(s): %w", g.opts.PushRetries+1, err)
}

func (g *Git) git(ctx context.Context, dir string, args ...string) (string, error) {
	return g.run(ctx, dir, nil, args...)
}

func (g *Git) run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), "GIT_TERMINAL_PROMPT=0"), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("publish: git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

func pagesWorkflow(branch string) string {
	return `# Deploys the generated site to GitHub Pages.
name: Deploy to Pages

on:
  push:
    branches: ["` + branch + `"]
  workflow_dispatch:

permissions:
  contents: read
  pages: write
  id-token: write

concurrency:
  group: "pages"
  cancel-in-progress: false

jobs:
  deploy:
    environment:
      name: github-pages
      url: ${{ steps.deployment.outputs.page_url }}
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - uses: actions/configure-pages@v5
      - uses: actions/upload-pages-artifact@v3
        with:
          path: '.'
      - id: deployment
        uses: actions/deploy-pages@v4
`
}
