package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/metrics"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
)

// maxErrorLen bounds the error text stored in a build-log record.
const maxErrorLen = 2000

// Property names on the site, page and build-log records.
const (
	propStatus         = "Status"
	propDomain         = "Domain"
	propSEOTitle       = "SEO Title"
	propSEODescription = "SEO Description"
	propBuildStatus    = "Build Status"
	propBuildID        = "Build ID"
	propTimestamp      = "Timestamp"
	propDeployURL      = "Deploy URL"
	propFilesCount     = "Files Count"
	propError          = "Error"
)

// ReporterOptions configure a Reporter.
type ReporterOptions struct {
	// SiteID is used when a report does not name its site.
	SiteID string
	// BuildLog is the collection id build-log records are created in.
	// Empty disables the build log.
	BuildLog   string
	BatchSize  int
	BatchDelay time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Reporter writes build outcomes back to the content source.
type Reporter struct {
	src      source.Source
	siteID   string
	buildLog string
	writer   *source.BatchWriter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewReporter returns a Reporter writing through src.
func NewReporter(src source.Source, opts ReporterOptions) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	w := source.NewBatchWriter(src, opts.BatchSize, opts.BatchDelay, logger)
	w.OnWrite = opts.Metrics.WriteBack
	return &Reporter{
		src:      src,
		siteID:   opts.SiteID,
		buildLog: opts.BuildLog,
		writer:   w,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      now,
	}
}

// ReportBuildStatus sets the site's Status (and Domain on success) and, for
// terminal statuses, appends a build-log record. Both writes are attempted;
// the returned error joins whichever failed.
func (r *Reporter) ReportBuildStatus(ctx context.Context, rep models.BuildReport) error {
	siteID := rep.SiteID
	if siteID == "" {
		siteID = r.siteID
	}

	var errs []error
	if siteID != "" {
		fields := source.Fields{propStatus: source.Select(rep.Status)}
		if rep.Status == models.StatusPublished && rep.DeployURL != "" {
			fields[propDomain] = source.URL(rep.DeployURL)
		}
		err := r.src.WriteStatus(ctx, siteID, fields)
		r.metrics.WriteBack(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("agent: site status: %w: %w", apperr.ErrTransient, err))
		} else {
			r.logger.Info("site status updated", "site_id", siteID, "status", rep.Status)
		}
	}

	terminal := rep.Status == models.StatusPublished || rep.Status == models.StatusFailed
	if r.buildLog != "" && terminal {
		fields := source.Fields{
			propBuildStatus: source.Select(rep.Status),
			propTimestamp:   source.Date(r.now()),
			propFilesCount:  source.Number(rep.Files),
		}
		if rep.BuildID != "" {
			fields[propBuildID] = source.Text(rep.BuildID)
		}
		if rep.DeployURL != "" {
			fields[propDeployURL] = source.URL(rep.DeployURL)
		}
		if rep.Error != "" {
			fields[propError] = source.Text(truncate(rep.Error, maxErrorLen))
		}
		_, err := r.src.CreateRecord(ctx, r.buildLog, fields)
		r.metrics.WriteBack(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("agent: build log: %w: %w", apperr.ErrTransient, err))
		}
	}
	return errors.Join(errs...)
}

// ReportPageStatuses writes per-page status and SEO fields in batches.
// Pages with nothing to write are skipped.
func (r *Reporter) ReportPageStatuses(ctx context.Context, pages []models.PageUpdate) (source.BatchResult, error) {
	writes := make([]source.Write, 0, len(pages))
	for _, p := range pages {
		if p.PageID == "" {
			continue
		}
		fields := source.Fields{}
		if p.Status != "" {
			fields[propStatus] = source.Select(p.Status)
		}
		if p.SEOTitle != "" {
			fields[propSEOTitle] = source.Text(p.SEOTitle)
		}
		if p.SEODescription != "" {
			fields[propSEODescription] = source.Text(p.SEODescription)
		}
		if len(fields) == 0 {
			continue
		}
		writes = append(writes, source.Write{RecordID: p.PageID, Fields: fields})
	}
	res, err := r.writer.WriteAll(ctx, writes)
	if res.Failed > 0 {
		r.logger.Warn("some page write-backs failed", "written", res.Written, "failed", res.Failed)
	}
	return res, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
