package publish

import (
	"context"
	"testing"

	"github.com/starford/sitesmith/internal/storage"
)

func tempStore(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	for p, c := range files {
		if err := s.Write(p, []byte(c)); err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
	}
	return s
}

func TestDeployURL(t *testing.T) {
	tests := []struct {
		name               string
		base, domain, repo string
		want               string
	}{
		{"base wins", "https://cdn.example.com/site", "example.com", "o/r", "https://cdn.example.com/site/"},
		{"custom domain", "", "example.com", "o/r", "https://example.com/"},
		{"github domain ignored", "", "o.github.io", "o/r", "https://o.github.io/r/"},
		{"repo", "", "", "acme/site", "https://acme.github.io/site/"},
		{"nothing", "", "", "bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeployURL(tt.base, tt.domain, tt.repo); got != tt.want {
				t.Errorf("DeployURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomDomain(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"example.com":              "example.com",
		"https://www.example.com/": "www.example.com",
		"acme.github.io":           "",
	}
	for in, want := range tests {
		if got := customDomain(in); got != want {
			t.Errorf("customDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNoop(t *testing.T) {
	s := tempStore(t, map[string]string{"index.html": "x", "css/theme.css": "y"})
	res, err := Noop{BaseURL: "https://example.com/"}.Publish(context.Background(), Request{Store: s})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !res.Skipped || res.Files != 2 || res.Target != TargetNone || res.DeployURL != "https://example.com/" {
		t.Errorf("result = %+v", res)
	}
}
