package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/notion"
	"github.com/starford/sitesmith/internal/publish"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notion   NotionConfig      `yaml:"notion"`
	Agent    AgentConfig       `yaml:"agent"`
	Registry RegistryConfig    `yaml:"registry"`
	Build    BuildConfig       `yaml:"build"`
	LLM      LLMConfig         `yaml:"llm"`
	Publish  PublishConfig     `yaml:"publish"`
	Auth     AuthConfig        `yaml:"auth"`
	Webhook  WebhookConfig     `yaml:"webhook"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.App, &c.Notion, &c.Agent, &c.Build, &c.Publish, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, if set, receives a rotated copy of the log.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotionConfig holds content source credentials and database ids.
type NotionConfig struct {
	APIKey    string          `yaml:"api_key"`
	BaseURL   string          `yaml:"base_url"`
	Version   string          `yaml:"version"`
	SiteID    string          `yaml:"site_id"`
	Databases NotionDatabases `yaml:"databases"`
}

// NotionDatabases holds the ids of the site-builder databases.
type NotionDatabases struct {
	Sites        string `yaml:"sites"`
	Pages        string `yaml:"pages"`
	Sections     string `yaml:"sections"`
	Services     string `yaml:"services"`
	Testimonials string `yaml:"testimonials"`
	Team         string `yaml:"team"`
	BuildLog     string `yaml:"build_log"`
}

// Validate validates the Notion configuration. An empty api_key is allowed
// here; commands that need the source check Configured.
func (c *NotionConfig) Validate() error {
	if !c.Configured() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.SiteID, validation.Required),
	)
}

// Configured reports whether source credentials are present.
func (c *NotionConfig) Configured() bool {
	return c.APIKey != ""
}

// Require returns ErrConfiguration when the source is not usable.
func (c *NotionConfig) Require() error {
	if !c.Configured() {
		return fmt.Errorf("notion: %w: api_key is required (set NOTION_API_KEY)", apperr.ErrConfiguration)
	}
	if c.Databases.Pages == "" || c.Databases.Sections == "" {
		return fmt.Errorf("notion: %w: pages and sections database ids are required", apperr.ErrConfiguration)
	}
	return nil
}

// Collections returns the tracked collections in a stable order. The build
// log is never tracked because the agent writes to it. Properties the agent
// writes back on sites and pages are excluded from change detection.
func (c *NotionDatabases) Collections() []agent.Collection {
	var out []agent.Collection
	for _, col := range []agent.Collection{
		agent.SiteCollection(c.Sites),
		agent.PageCollection(c.Pages),
		{Name: "sections", ID: c.Sections},
		{Name: "services", ID: c.Services},
		{Name: "testimonials", ID: c.Testimonials},
		{Name: "team", ID: c.Team},
	} {
		if col.ID != "" {
			out = append(out, col)
		}
	}
	return out
}

// AgentConfig holds change-detection settings.
type AgentConfig struct {
	Interval  time.Duration `yaml:"interval"`
	StatePath string        `yaml:"state_path"`
	// Collections limits tracking to the named collections. Empty tracks all.
	Collections      []string      `yaml:"collections"`
	WriteBatchSize   int           `yaml:"write_batch_size"`
	WriteBatchDelay  time.Duration `yaml:"write_batch_delay"`
	ReconcileEvery   int           `yaml:"reconcile_every"`
	QueryConcurrency int           `yaml:"query_concurrency"`
}

// Validate validates the agent configuration.
func (c *AgentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.StatePath, validation.Required),
		validation.Field(&c.Collections, validation.Each(validation.In("sites", "pages", "sections", "services", "testimonials", "team"))),
		validation.Field(&c.WriteBatchSize, validation.Min(1)),
		validation.Field(&c.WriteBatchDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.ReconcileEvery, validation.Min(0)),
		validation.Field(&c.QueryConcurrency, validation.Min(1), validation.Max(16)),
	)
}

// RegistryConfig locates the component registry.
type RegistryConfig struct {
	// Path to a YAML registry. Empty uses the embedded default.
	Path string `yaml:"path"`
	// Watch reloads Path when it changes.
	Watch bool `yaml:"watch"`
}

// BuildConfig holds site build settings.
type BuildConfig struct {
	OutputDir string `yaml:"output_dir"`
	// BaseURL overrides the site domain for canonical links and the sitemap.
	BaseURL string `yaml:"base_url"`
	// DataFile caches pulled site data.
	DataFile string `yaml:"data_file"`
	// SkipLinkCheck publishes even with broken internal links.
	SkipLinkCheck bool `yaml:"skip_link_check"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
	)
}

// LLMConfig configures optional copy generation. An empty api_key disables it.
type LLMConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// PublishConfig selects and configures the publish target.
type PublishConfig struct {
	Target string    `yaml:"target"`
	Git    GitConfig `yaml:"git"`
	S3     S3Config  `yaml:"s3"`
}

// GitConfig configures the git publisher.
type GitConfig struct {
	Remote        string `yaml:"remote"`
	Branch        string `yaml:"branch"`
	Repo          string `yaml:"repo"`
	AuthorName    string `yaml:"author_name"`
	AuthorEmail   string `yaml:"author_email"`
	PagesWorkflow bool   `yaml:"pages_workflow"`
	PushRetries   int    `yaml:"push_retries"`
}

// S3Config configures the S3 publisher. Empty credentials fall back to the
// AWS_* environment variables.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	if c.Target == "" {
		c.Target = publish.TargetNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Target, validation.In(publish.TargetNone, publish.TargetGit, publish.TargetS3)),
	); err != nil {
		return err
	}
	switch c.Target {
	case publish.TargetS3:
		return validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Bucket, validation.Required),
			validation.Field(&c.S3.Region, validation.Required),
		)
	case publish.TargetGit:
		if c.Git.PushRetries < 0 {
			return errors.New("publish: git.push_retries must not be negative")
		}
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WebhookConfig holds GitHub webhook settings.
type WebhookConfig struct {
	// Secret verifies X-Hub-Signature-256. When empty, unsigned events are
	// accepted with auth disabled and rejected in token mode.
	Secret string `yaml:"secret"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notion: NotionConfig{
			Version: notion.DefaultVersion,
		},
		Agent: AgentConfig{
			Interval:         agent.DefaultInterval,
			StatePath:        "./sitesmith.db",
			WriteBatchSize:   3,
			WriteBatchDelay:  350 * time.Millisecond,
			QueryConcurrency: 1,
		},
		Build: BuildConfig{
			OutputDir: "./dist",
			DataFile:  "./data/site.json",
		},
		Publish: PublishConfig{
			Target: publish.TargetNone,
			Git: GitConfig{
				Branch:      publish.DefaultBranch,
				PushRetries: 3,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
