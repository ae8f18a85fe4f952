package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/builder"
	"github.com/starford/sitesmith/internal/llm"
	"github.com/starford/sitesmith/internal/metrics"
	"github.com/starford/sitesmith/internal/notion"
	"github.com/starford/sitesmith/internal/publish"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
	"github.com/starford/sitesmith/internal/sitesync"
	"github.com/starford/sitesmith/internal/state"
	"github.com/starford/sitesmith/internal/storage"
)

// components are the collaborators shared by every command.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	sel     atomic.Pointer[selector.Selector]
	builder *builder.Builder
	store   *storage.FS
	// client and reporter are nil when no source is configured.
	client   *notion.Client
	reporter *agent.Reporter
	sync     *sitesync.Service
	db       *state.DB
	closers  []func() error
}

// setup builds the shared components. logOut receives the log; the mcp
// command passes stderr because stdout carries the protocol.
func (a *application) setup(logOut io.Writer) (*components, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if a.interval > 0 {
		cfg.Agent.Interval = a.interval
	}
	if a.outputDir != "" {
		cfg.Build.OutputDir = a.outputDir
	}

	logger, closeLog := newLogger(cfg.App, logOut)
	slog.SetDefault(logger)
	c := &components{cfg: cfg, logger: logger, metrics: metrics.New(), closers: []func() error{closeLog}}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("output_dir", cfg.Build.OutputDir),
		slog.String("state_path", cfg.Agent.StatePath),
		slog.String("publish_target", cfg.Publish.Target),
		slog.Bool("source_configured", cfg.Notion.Configured()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	sel, err := selector.New(reg)
	if err != nil {
		return nil, err
	}
	c.sel.Store(sel)
	logger.Info("registry loaded", slog.Int("components", reg.Len()), slog.String("path", cfg.Registry.Path))

	if c.store, err = storage.NewFS(cfg.Build.OutputDir); err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}

	var gen llm.Generator
	if cfg.LLM.APIKey != "" {
		client, err := llm.New(llm.Options{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		gen = client
	}
	c.builder, err = builder.New(builder.Options{
		Selector:  sel,
		Store:     c.store,
		Generator: gen,
		BaseURL:   cfg.Build.BaseURL,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	var puller sitesync.Puller = sitesync.Static(builder.DemoSite())
	if cfg.Notion.Configured() && !a.demo {
		c.client, err = notion.New(notion.Options{
			BaseURL: cfg.Notion.BaseURL,
			APIKey:  cfg.Notion.APIKey,
			Version: cfg.Notion.Version,
		})
		if err != nil {
			return nil, err
		}
		dbs := cfg.Notion.Databases
		puller = notion.NewExtractor(c.client, notion.Databases{
			Sites:        dbs.Sites,
			Pages:        dbs.Pages,
			Sections:     dbs.Sections,
			Services:     dbs.Services,
			Testimonials: dbs.Testimonials,
			Team:         dbs.Team,
			BuildLog:     dbs.BuildLog,
		}, logger)
		c.reporter = agent.NewReporter(c.client, agent.ReporterOptions{
			SiteID:     cfg.Notion.SiteID,
			BuildLog:   dbs.BuildLog,
			BatchSize:  cfg.Agent.WriteBatchSize,
			BatchDelay: cfg.Agent.WriteBatchDelay,
			Logger:     logger,
			Metrics:    c.metrics,
		})
	}

	pub, err := newPublisher(cfg.Publish, cfg.Build.BaseURL, logger)
	if err != nil {
		return nil, err
	}
	c.sync, err = sitesync.New(sitesync.Options{
		SiteID:        cfg.Notion.SiteID,
		Puller:        puller,
		Builder:       c.builder,
		Store:         c.store,
		Publisher:     pub,
		Reporter:      c.reporter,
		DataFile:      cfg.Build.DataFile,
		SkipLinkCheck: cfg.Build.SkipLinkCheck,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// requireSource fails with ErrConfiguration when no source is configured.
func (c *components) requireSource() error {
	if c.client == nil {
		return c.cfg.Notion.Require()
	}
	return nil
}

// selector returns the current selector.
func (c *components) selector() *selector.Selector {
	return c.sel.Load()
}

// reloadRegistry swaps in a reloaded registry. An empty registry is
// rejected and the previous one stays active.
func (c *components) reloadRegistry(reg *registry.Registry) {
	sel, err := selector.New(reg)
	if err != nil {
		c.logger.Error("registry reload rejected", slog.String("error", err.Error()))
		return
	}
	c.sel.Store(sel)
	c.builder.SetSelector(sel)
	c.logger.Info("registry reloaded", slog.Int("components", reg.Len()))
}

// newAgent opens the state database and wires a detector and agent over
// the source. build may be nil to detect only.
func (c *components) newAgent(build agent.BuildFunc, notifier agent.Notifier) (*agent.Agent, error) {
	if err := c.requireSource(); err != nil {
		return nil, err
	}
	cols := c.cfg.Notion.Databases.Collections()
	if only := c.cfg.Agent.Collections; len(only) > 0 {
		cols = slices.DeleteFunc(cols, func(col agent.Collection) bool { return !slices.Contains(only, col.Name) })
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("agent: no collections to track: %w", errNoCollections)
	}

	if c.db == nil {
		db, err := state.Open(c.cfg.Agent.StatePath)
		if err != nil {
			return nil, fmt.Errorf("init state: %w", err)
		}
		c.db = db
		c.closers = append(c.closers, db.Close)
	}

	det := agent.NewDetector(c.client, c.db, cols, agent.DetectorOptions{
		Concurrency: c.cfg.Agent.QueryConcurrency,
		Logger:      c.logger,
		Metrics:     c.metrics,
	})
	return agent.New(det, build, agent.Options{
		Interval:       c.cfg.Agent.Interval,
		ReconcileEvery: c.cfg.Agent.ReconcileEvery,
		Reporter:       c.reporter,
		Notifier:       notifier,
		Logger:         c.logger,
		Metrics:        c.metrics,
	}), nil
}

var errNoCollections = errors.New("configure at least one tracked notion database")

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newPublisher(cfg PublishConfig, baseURL string, logger *slog.Logger) (publish.Publisher, error) {
	switch cfg.Target {
	case publish.TargetGit:
		return publish.NewGit(publish.GitOptions{
			Remote:        cfg.Git.Remote,
			Branch:        cfg.Git.Branch,
			Repo:          cfg.Git.Repo,
			AuthorName:    cfg.Git.AuthorName,
			AuthorEmail:   cfg.Git.AuthorEmail,
			BaseURL:       baseURL,
			PagesWorkflow: cfg.Git.PagesWorkflow,
			PushRetries:   cfg.Git.PushRetries,
			Logger:        logger,
		}), nil
	case publish.TargetS3:
		s3, err := publish.NewS3(publish.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			BaseURL:         baseURL,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return publish.Noop{BaseURL: baseURL}, nil
	}
}

// botAuthor is the commit author the git publisher uses.
func botAuthor(cfg PublishConfig) string {
	if cfg.Git.AuthorName != "" {
		return cfg.Git.AuthorName
	}
	return publish.DefaultAuthorName
}

// stdout returns the summary writer.
func (a *application) stdout() io.Writer {
	if a.out != nil {
		return a.out
	}
	return os.Stdout
}

// apply runs opts on a fresh application.
func apply(opts []Option) *application {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// withComponents sets up, runs fn and closes.
func withComponents(ctx context.Context, opts []Option, logOut io.Writer, fn func(context.Context, *application, *components) error) error {
	app := apply(opts)
	if logOut == nil {
		logOut = os.Stdout
	}
	c, err := app.setup(logOut)
	if err != nil {
		return err
	}
	defer c.close()
	return fn(ctx, app, c)
}
