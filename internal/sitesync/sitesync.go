// Package sitesync runs the pull, build, publish and push steps that move a
// site from the content source to its static host and report back.
package sitesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/builder"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/publish"
	"github.com/starford/sitesmith/internal/storage"
)

// Puller reads a complete site definition.
type Puller interface {
	ExtractSite(ctx context.Context, siteID string) (models.SiteData, error)
}

// Static is a Puller returning fixed data, used for demo builds.
type Static models.SiteData

func (s Static) ExtractSite(context.Context, string) (models.SiteData, error) {
	return models.SiteData(s), nil
}

// Options configure a Service.
type Options struct {
	SiteID    string
	Puller    Puller
	Builder   *builder.Builder
	Store     storage.Provider
	Publisher publish.Publisher
	// Reporter writes statuses back to the source. Nil skips write-backs.
	Reporter *agent.Reporter
	// DataFile caches pulled site data between pull-only and later runs.
	DataFile string
	// SkipLinkCheck publishes even when generated pages have broken links.
	SkipLinkCheck bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service runs the sync pipeline for one site.
type Service struct {
	siteID    string
	puller    Puller
	builder   *builder.Builder
	store     storage.Provider
	publisher publish.Publisher
	reporter  *agent.Reporter
	dataFile  string
	linkCheck bool
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Service. Puller, Builder and Store are required; a nil
// Publisher leaves the output in place.
func New(opts Options) (*Service, error) {
	if opts.Puller == nil || opts.Builder == nil || opts.Store == nil {
		return nil, fmt.Errorf("sitesync: %w: puller, builder and store are required", apperr.ErrConfiguration)
	}
	s := &Service{
		siteID:    opts.SiteID,
		puller:    opts.Puller,
		builder:   opts.Builder,
		store:     opts.Store,
		publisher: opts.Publisher,
		reporter:  opts.Reporter,
		dataFile:  opts.DataFile,
		linkCheck: !opts.SkipLinkCheck,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.publisher == nil {
		s.publisher = publish.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Pull extracts the site, caches it to the data file and marks the site
// Building.
func (s *Service) Pull(ctx context.Context) (models.SiteData, error) {
	data, err := s.extract(ctx)
	if err != nil {
		return data, err
	}
	s.report(ctx, models.BuildReport{Status: models.StatusBuilding})
	return data, nil
}

func (s *Service) extract(ctx context.Context) (models.SiteData, error) {
	data, err := s.puller.ExtractSite(ctx, s.siteID)
	if err != nil {
		return data, fmt.Errorf("sitesync: pull: %w", err)
	}
	if data.Site.ID == "" {
		data.Site.ID = s.siteID
	}
	s.logger.Info("site pulled",
		"site", data.Site.Name,
		"pages", len(data.Pages),
		"services", len(data.Content.Services),
		"testimonials", len(data.Content.Testimonials),
		"team", len(data.Content.Team),
	)
	if s.dataFile != "" {
		if err := s.saveData(data); err != nil {
			return data, err
		}
	}
	return data, nil
}

// LoadData reads site data cached by a previous Pull.
func (s *Service) LoadData() (models.SiteData, error) {
	var data models.SiteData
	if s.dataFile == "" {
		return data, fmt.Errorf("sitesync: %w: no data file configured", apperr.ErrConfiguration)
	}
	raw, err := os.ReadFile(s.dataFile)
	if errors.Is(err, os.ErrNotExist) {
		return data, fmt.Errorf("sitesync: %w: %s (run pull-only first)", apperr.ErrNotFound, s.dataFile)
	}
	if err != nil {
		return data, fmt.Errorf("sitesync: read data: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("sitesync: decode %s: %w", s.dataFile, err)
	}
	return data, nil
}

func (s *Service) saveData(data models.SiteData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("sitesync: encode data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.dataFile), 0o755); err != nil {
		return fmt.Errorf("sitesync: %w", err)
	}
	tmp := s.dataFile + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("sitesync: write data: %w", err)
	}
	return os.Rename(tmp, s.dataFile)
}

// Build renders data into the output store.
func (s *Service) Build(ctx context.Context, data models.SiteData) (models.BuildResult, error) {
	return s.builder.Build(ctx, data)
}

// Publish checks the output for broken internal links and ships it.
// res is updated with the deploy URL and revision.
func (s *Service) Publish(ctx context.Context, res *models.BuildResult, domain string) (publish.Result, error) {
	if s.linkCheck {
		broken, err := publish.CheckLinks(s.store)
		if err != nil {
			return publish.Result{}, fmt.Errorf("sitesync: %w", err)
		}
		if len(broken) > 0 {
			return publish.Result{}, fmt.Errorf("sitesync: %w", &publish.BrokenLinksError{Links: broken})
		}
	}
	msg := "Update site"
	if res.ID != "" {
		msg = "Update site (build " + res.ID + ")"
	}
	pr, err := s.publisher.Publish(ctx, publish.Request{Store: s.store, Message: msg, Domain: domain})
	if err != nil {
		return pr, fmt.Errorf("sitesync: publish: %w", err)
	}
	res.DeployURL = pr.DeployURL
	res.CommitHash = pr.Revision
	s.logger.Info("site published",
		"target", pr.Target,
		"files", pr.Files,
		"skipped", pr.Skipped,
		"deploy_url", pr.DeployURL,
	)
	return pr, nil
}

// Push writes the outcome of a build back to the source: Published with the
// deploy URL and page SEO fields on success, Failed otherwise.
func (s *Service) Push(ctx context.Context, res models.BuildResult, buildErr error) error {
	if s.reporter == nil {
		return nil
	}
	rep := models.BuildReport{
		BuildID:   res.ID,
		SiteID:    res.SiteID,
		Status:    models.StatusPublished,
		DeployURL: res.DeployURL,
		Files:     len(res.Files),
	}
	if buildErr != nil {
		rep.Status = models.StatusFailed
		rep.Error = buildErr.Error()
	}
	err := s.reporter.ReportBuildStatus(ctx, rep)
	if buildErr == nil && len(res.Pages) > 0 {
		if _, perr := s.reporter.ReportPageStatuses(ctx, res.Pages); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	if err != nil {
		return fmt.Errorf("sitesync: push: %w", err)
	}
	s.logger.Info("build status pushed", "status", rep.Status, "build_id", rep.BuildID)
	return nil
}

// PushOutput publishes the existing output store without rebuilding and
// reports the outcome.
func (s *Service) PushOutput(ctx context.Context) (models.BuildResult, error) {
	res := models.BuildResult{ID: uuid.NewString(), SiteID: s.siteID, OutputDir: s.store.Root(), StartedAt: s.now()}
	files, err := s.store.List()
	if err == nil && len(files) == 0 {
		err = fmt.Errorf("sitesync: %w: output %s is empty", apperr.ErrNotFound, s.store.Root())
	}
	if err == nil {
		for _, f := range files {
			res.Files = append(res.Files, f.Path)
		}
		domain := ""
		if data, derr := s.LoadData(); derr == nil {
			domain = data.Site.Domain
		}
		_, err = s.Publish(ctx, &res, domain)
	}
	res.FinishedAt = s.now()
	if perr := s.Push(ctx, res, err); perr != nil {
		s.logger.Warn("status write-back failed", "error", perr)
	}
	return res, err
}

// Run pulls, builds and publishes without writing statuses. It is the
// build callback of the change-detection agent, which reports itself.
func (s *Service) Run(ctx context.Context, changes []models.Change) (models.BuildResult, error) {
	s.logger.Info("rebuilding site", "changes", len(changes))
	data, err := s.extract(ctx)
	if err != nil {
		return models.BuildResult{SiteID: s.siteID}, err
	}
	return s.buildAndPublish(ctx, data)
}

func (s *Service) buildAndPublish(ctx context.Context, data models.SiteData) (models.BuildResult, error) {
	res, err := s.Build(ctx, data)
	res.ID = uuid.NewString()
	if err != nil {
		return res, err
	}
	_, err = s.Publish(ctx, &res, data.Site.Domain)
	return res, err
}

// Full runs Pull, Build, Publish and Push. Any failure is reported as
// Failed and returned.
func (s *Service) Full(ctx context.Context) (models.BuildResult, error) {
	data, err := s.Pull(ctx)
	if err != nil {
		s.report(ctx, models.BuildReport{Status: models.StatusFailed, Error: err.Error()})
		return models.BuildResult{SiteID: s.siteID}, err
	}
	res, err := s.buildAndPublish(ctx, data)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperr.ErrBuild, err)
		s.logger.Error("sync failed", "site", data.Site.Name, "error", err)
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if perr := s.Push(wctx, res, err); perr != nil {
		s.logger.Warn("status write-back failed", "error", perr)
	}
	return res, err
}

func (s *Service) report(ctx context.Context, rep models.BuildReport) {
	if s.reporter == nil {
		return
	}
	rep.SiteID = s.siteID
	if err := s.reporter.ReportBuildStatus(ctx, rep); err != nil {
		s.logger.Warn("status write-back failed", "status", rep.Status, "error", err)
	}
}
