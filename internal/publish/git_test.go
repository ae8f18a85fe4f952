package publish

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// bareRemote creates an empty bare repository and returns its path.
func bareRemote(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "remote.git")
	if out, err := exec.Command("git", "init", "-q", "--bare", dir).CombinedOutput(); err != nil {
		t.Fatalf("git init --bare: %v: %s", err, out)
	}
	return dir
}

func gitOut(t *testing.T, gitDir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"--git-dir=" + gitDir}, args...)...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func newGit(remote string) *Git {
	return NewGit(GitOptions{
		Remote:     remote,
		Repo:       "acme/site",
		RetryDelay: time.Millisecond,
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
}

func TestGit_PublishCommitsAndPushes(t *testing.T) {
	requireGit(t)
	remote := bareRemote(t)
	store := tempStore(t, map[string]string{"index.html": "<h1>v1</h1>"})
	g := newGit(remote)
	ctx := context.Background()

	res, err := g.Publish(ctx, Request{Store: store, Message: "Build 1", Domain: "www.acme.test"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Skipped || res.Revision == "" || res.DeployURL != "https://www.acme.test/" {
		t.Errorf("result = %+v", res)
	}
	if got := gitOut(t, remote, "show", "main:index.html"); got != "<h1>v1</h1>" {
		t.Errorf("remote index.html = %q", got)
	}
	if got := gitOut(t, remote, "show", "main:CNAME"); got != "www.acme.test" {
		t.Errorf("remote CNAME = %q", got)
	}
	if got := gitOut(t, remote, "log", "-1", "--format=%an", "main"); got != DefaultAuthorName {
		t.Errorf("author = %q", got)
	}

	// Unchanged output is not committed again.
	res, err = g.Publish(ctx, Request{Store: store, Message: "Build 2", Domain: "www.acme.test"})
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if !res.Skipped {
		t.Errorf("expected skip, got %+v", res)
	}
	if got := gitOut(t, remote, "rev-list", "--count", "main"); got != "1" {
		t.Errorf("commits = %s, want 1", got)
	}
}

func TestGit_FreshWorkingTreeBuildsOnRemoteHistory(t *testing.T) {
	requireGit(t)
	remote := bareRemote(t)
	ctx := context.Background()

	first := tempStore(t, map[string]string{"index.html": "v1", "old.html": "gone soon"})
	if _, err := newGit(remote).Publish(ctx, Request{Store: first, Message: "first"}); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	second := tempStore(t, map[string]string{"index.html": "v2"})
	res, err := newGit(remote).Publish(ctx, Request{Store: second, Message: "second"})
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if res.Skipped {
		t.Fatal("expected a commit")
	}
	if got := gitOut(t, remote, "rev-list", "--count", "main"); got != "2" {
		t.Errorf("commits = %s, want 2 (fast-forward)", got)
	}
	if got := gitOut(t, remote, "ls-tree", "--name-only", "main"); got != "index.html" {
		t.Errorf("tree = %q, want only index.html", got)
	}
}

func TestGit_PagesWorkflow(t *testing.T) {
	requireGit(t)
	store := tempStore(t, map[string]string{"index.html": "x"})
	g := NewGit(GitOptions{PagesWorkflow: true, Branch: "pages", Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))})

	res, err := g.Publish(context.Background(), Request{Store: store})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Files != 2 {
		t.Errorf("files = %d, want 2", res.Files)
	}
	wf, err := store.Read(workflowPath)
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	if !strings.Contains(string(wf), `branches: ["pages"]`) {
		t.Errorf("workflow = %s", wf)
	}
	if got := gitOut(t, filepath.Join(store.Root(), ".git"), "rev-parse", "--abbrev-ref", "HEAD"); got != "pages" {
		t.Errorf("branch = %q", got)
	}
}

func TestGit_PushFailureIsReported(t *testing.T) {
	requireGit(t)
	store := tempStore(t, map[string]string{"index.html": "x"})
	g := NewGit(GitOptions{
		Remote:      filepath.Join(t.TempDir(), "does-not-exist.git"),
		PushRetries: 1,
		RetryDelay:  time.Millisecond,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	_, err := g.Publish(context.Background(), Request{Store: store})
	if err == nil || !strings.Contains(err.Error(), "push failed after 2 attempt(s)") {
		t.Fatalf("err = %v", err)
	}
}
