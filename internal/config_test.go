package internal

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/publish"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestNotionConfig(t *testing.T) {
	cfg := NotionConfig{}
	if cfg.Configured() {
		t.Error("empty config reports configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unconfigured source should validate: %v", err)
	}
	if err := cfg.Require(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("Require = %v, want ErrConfiguration", err)
	}

	cfg.APIKey = "secret"
	if err := cfg.Validate(); err == nil {
		t.Error("configured source without site_id should fail")
	}
	cfg.SiteID = "site-1"
	if err := cfg.Require(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("Require without databases = %v, want ErrConfiguration", err)
	}
	cfg.Databases = NotionDatabases{Pages: "p", Sections: "s"}
	if err := cfg.Require(); err != nil {
		t.Errorf("Require: %v", err)
	}
}

func TestNotionDatabases_Collections(t *testing.T) {
	dbs := NotionDatabases{
		Sites:    "sites-db",
		Pages:    "pages-db",
		Sections: "sections-db",
		Team:     "team-db",
		BuildLog: "log-db",
	}
	var names []string
	for _, col := range dbs.Collections() {
		names = append(names, col.Name+"="+col.ID)
	}
	want := "sites=sites-db,pages=pages-db,sections=sections-db,team=team-db"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("collections = %s, want %s", got, want)
	}
	if site := dbs.Collections()[0]; !slices.Equal(site.Owned, []string{"Status", "Domain"}) {
		t.Errorf("sites owned properties = %v", site.Owned)
	}
	if pages := dbs.Collections()[1]; len(pages.Owned) != 3 {
		t.Errorf("pages owned properties = %v", pages.Owned)
	}
}

func TestAgentConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AgentConfig)
		wantErr bool
	}{
		{"defaults", func(*AgentConfig) {}, false},
		{"interval below a second", func(c *AgentConfig) { c.Interval = time.Millisecond }, true},
		{"no state path", func(c *AgentConfig) { c.StatePath = "" }, true},
		{"unknown collection", func(c *AgentConfig) { c.Collections = []string{"pages", "build_log"} }, true},
		{"known collections", func(c *AgentConfig) { c.Collections = []string{"sites", "pages", "team"} }, false},
		{"concurrency too high", func(c *AgentConfig) { c.QueryConcurrency = 64 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Agent
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishConfig_Validate(t *testing.T) {
	cfg := PublishConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty target should default: %v", err)
	}
	if cfg.Target != publish.TargetNone {
		t.Errorf("target = %q, want %q", cfg.Target, publish.TargetNone)
	}

	cfg = PublishConfig{Target: "ftp"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown target should fail")
	}

	cfg = PublishConfig{Target: publish.TargetS3}
	if err := cfg.Validate(); err == nil {
		t.Error("s3 without bucket should fail")
	}
	cfg.S3 = S3Config{Bucket: "site", Region: "us-east-1"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 with bucket: %v", err)
	}

	cfg = PublishConfig{Target: publish.TargetGit, Git: GitConfig{PushRetries: -1}}
	if err := cfg.Validate(); err == nil {
		t.Error("negative push retries should fail")
	}
}
