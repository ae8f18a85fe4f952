package api

import (
	"context"
	"log/slog"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/selector"
	"github.com/starford/sitesmith/internal/state"
)

// Detector is the part of the agent the API drives.
type Detector interface {
	CheckOnce(ctx context.Context) (agent.Cycle, error)
	State() agent.State
	Running() bool
	LastCycle() (agent.Cycle, bool)
}

// BuildHistory lists recorded builds, newest first.
type BuildHistory interface {
	RecentBuilds(limit int) ([]state.BuildRow, error)
}

// StatusReporter writes site status back to the content source.
type StatusReporter interface {
	ReportBuildStatus(ctx context.Context, rep models.BuildReport) error
}

// Service holds the collaborators behind the API handlers. Detector,
// Builds and Reporter may be nil; the routes that need them then answer
// 503.
type Service struct {
	// Selector returns the current selector, which changes when the
	// component registry is reloaded.
	Selector func() *selector.Selector
	Detector Detector
	Builds   BuildHistory
	Reporter StatusReporter
	Webhook  WebhookConfig
	Logger   *slog.Logger
}

// WebhookConfig controls GitHub webhook handling.
type WebhookConfig struct {
	// Secret verifies X-Hub-Signature-256. Empty skips verification unless
	// RequireSignature is set, in which case every event is rejected.
	Secret           string
	RequireSignature bool
	// Branch is the branch whose pushes mark the site Building.
	Branch string
	// BotAuthor is the commit author name of the publisher. Its pushes are
	// ignored so a publish does not flag its own site as building.
	BotAuthor string
	// Repo is owner/name, used for the Published deploy URL.
	Repo string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
