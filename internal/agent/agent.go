package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/metrics"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/state"
)

// DefaultInterval is the polling interval when none is configured.
const DefaultInterval = 60 * time.Second

// writeBackTimeout bounds status write-backs, which still run after the
// agent's context is cancelled.
const writeBackTimeout = 30 * time.Second

// State is the agent's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateSnapshotting State = "snapshotting"
	StatePolling      State = "polling"
	StateDetecting    State = "detecting"
	StateBuilding     State = "building"
)

// BuildFunc builds (and publishes) the site for a change set.
type BuildFunc func(ctx context.Context, changes []models.Change) (models.BuildResult, error)

// Notifier receives live change and build events.
type Notifier interface {
	PublishChange(c models.Change)
	PublishBuild(r models.BuildReport)
}

// Options configure an Agent.
type Options struct {
	Interval time.Duration
	// ReconcileEvery runs a deletion reconciliation pass every N cycles.
	// Zero disables it.
	ReconcileEvery int
	Reporter       *Reporter
	Notifier       Notifier
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// Cycle summarises one detection cycle.
type Cycle struct {
	Number     int                 `json:"number"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Changes    []models.Change     `json:"changes"`
	Baselined  []string            `json:"baselined,omitempty"`
	Failed     []string            `json:"failed_collections,omitempty"`
	Build      *models.BuildReport `json:"build,omitempty"`
}

// Agent polls the detector and runs the build callback at most once per
// cycle that produced changes.
type Agent struct {
	detector  *Detector
	build     BuildFunc
	interval  time.Duration
	reconcile int
	reporter  *Reporter
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	// cycleMu serialises detection cycles between Run and CheckOnce.
	cycleMu sync.Mutex

	mu      sync.Mutex
	state   State
	cycles  int
	last    *Cycle
	running bool
	cancel  context.CancelFunc
}

// New returns an idle Agent. A nil build makes the agent detect only.
func New(detector *Detector, build BuildFunc, opts Options) *Agent {
	a := &Agent{
		detector:  detector,
		build:     build,
		interval:  opts.Interval,
		reconcile: opts.ReconcileEvery,
		reporter:  opts.Reporter,
		notifier:  opts.Notifier,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
		state:     StateIdle,
	}
	if a.interval <= 0 {
		a.interval = DefaultInterval
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Run snapshots any collection without a baseline, then polls until ctx is
// cancelled or Stop is called. Cycle failures are logged, never returned.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("agent: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.state = StateIdle
		a.mu.Unlock()
	}()

	a.setState(StateSnapshotting)
	det, err := a.detector.Resume(ctx)
	if err != nil {
		return nil
	}
	a.logger.Info("agent started",
		"interval", a.interval.String(),
		"baselined", len(det.Baselined),
		"failed_collections", len(det.Failed),
	)

	timer := time.NewTimer(a.interval)
	defer timer.Stop()
	for {
		a.setState(StatePolling)
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopped")
			return nil
		case <-timer.C:
		}

		if _, err := a.runCycle(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("detection cycle failed", "error", err)
		}
		timer.Reset(a.interval)
	}
}

// CheckOnce runs a single detection cycle, building if anything changed.
func (a *Agent) CheckOnce(ctx context.Context) (Cycle, error) {
	defer func() {
		a.mu.Lock()
		if !a.running {
			a.state = StateIdle
		}
		a.mu.Unlock()
	}()
	return a.runCycle(ctx)
}

// Stop cancels a running agent, interrupting its sleep. It is a no-op when
// the agent is not running.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Running reports whether Run is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// LastCycle returns the most recent completed cycle.
func (a *Agent) LastCycle() (Cycle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return Cycle{}, false
	}
	return *a.last, true
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) runCycle(ctx context.Context) (Cycle, error) {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	a.mu.Lock()
	a.cycles++
	cycle := Cycle{Number: a.cycles, StartedAt: a.now()}
	a.mu.Unlock()

	a.setState(StateDetecting)
	det, err := a.detector.Detect(ctx)
	if err != nil {
		a.metrics.Cycle("error")
		return cycle, fmt.Errorf("agent: detect: %w", err)
	}
	if a.reconcile > 0 && cycle.Number%a.reconcile == 0 {
		rec, err := a.detector.Reconcile(ctx)
		if err != nil {
			a.metrics.Cycle("error")
			return cycle, fmt.Errorf("agent: reconcile: %w", err)
		}
		det.Changes = append(det.Changes, rec.Changes...)
		det.Failed = append(det.Failed, rec.Failed...)
	}

	cycle.Changes = det.Changes
	cycle.Baselined = det.Baselined
	for _, f := range det.Failed {
		cycle.Failed = append(cycle.Failed, f.Collection)
	}
	if a.notifier != nil {
		for _, c := range det.Changes {
			a.notifier.PublishChange(c)
		}
	}

	outcome := "idle"
	if len(det.Changes) > 0 {
		outcome = "changes"
		if a.build != nil {
			a.setState(StateBuilding)
			rep := a.runBuild(ctx, det.Changes)
			cycle.Build = &rep
		}
	}
	cycle.FinishedAt = a.now()
	a.metrics.Cycle(outcome)

	a.logger.Info("detection cycle",
		"cycle", cycle.Number,
		"changes", len(cycle.Changes),
		"failed_collections", len(cycle.Failed),
		"built", cycle.Build != nil,
		"duration", cycle.FinishedAt.Sub(cycle.StartedAt).String(),
	)

	a.mu.Lock()
	a.last = &cycle
	a.mu.Unlock()
	return cycle, nil
}

// runBuild invokes the build callback once and writes the outcome back to
// the source whether or not the build succeeded.
func (a *Agent) runBuild(ctx context.Context, changes []models.Change) models.BuildReport {
	buildID := uuid.NewString()
	started := a.now()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()

	rep := models.BuildReport{BuildID: buildID, Status: models.StatusBuilding}
	if a.reporter != nil {
		if err := a.reporter.ReportBuildStatus(wctx, rep); err != nil {
			a.logger.Warn("status write-back failed", "build_id", buildID, "error", err)
		}
	}
	if a.notifier != nil {
		a.notifier.PublishBuild(rep)
	}

	res, err := a.safeBuild(ctx, changes)
	finished := a.now()

	rep.SiteID = res.SiteID
	rep.DeployURL = res.DeployURL
	rep.Files = len(res.Files)
	if err != nil {
		rep.Status = models.StatusFailed
		rep.Error = err.Error()
		a.logger.Error("build failed", "build_id", buildID, "changes", len(changes), "error", err)
	} else {
		rep.Status = models.StatusPublished
		a.logger.Info("build published",
			"build_id", buildID,
			"files", rep.Files,
			"deploy_url", rep.DeployURL,
		)
	}
	a.metrics.Build(rep.Status, finished.Sub(started))

	if a.reporter != nil {
		if err := a.reporter.ReportBuildStatus(wctx, rep); err != nil {
			a.logger.Warn("status write-back failed", "build_id", buildID, "error", err)
		}
		if rep.Status == models.StatusPublished && len(res.Pages) > 0 {
			if _, err := a.reporter.ReportPageStatuses(wctx, res.Pages); err != nil {
				a.logger.Warn("page write-back interrupted", "build_id", buildID, "error", err)
			}
		}
	}

	err = a.detector.store.RecordBuild(state.BuildRow{
		BuildID:    buildID,
		SiteID:     rep.SiteID,
		Status:     rep.Status,
		Changes:    len(changes),
		Files:      rep.Files,
		DeployURL:  rep.DeployURL,
		Error:      rep.Error,
		StartedAt:  started,
		FinishedAt: finished,
	})
	if err != nil {
		a.logger.Warn("build log write failed", "build_id", buildID, "error", err)
	}

	if a.notifier != nil {
		a.notifier.PublishBuild(rep)
	}
	return rep
}

// safeBuild runs the callback, converting errors and panics to ErrBuild.
func (a *Agent) safeBuild(ctx context.Context, changes []models.Change) (res models.BuildResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", apperr.ErrBuild, r)
		}
	}()
	res, err = a.build(ctx, changes)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperr.ErrBuild, err)
	}
	return res, err
}
