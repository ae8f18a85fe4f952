package api

import (
	"time"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
	"github.com/starford/sitesmith/internal/state"
)

// StatusResponse describes the agent and its recent builds.
type StatusResponse struct {
	State     agent.State      `json:"state" example:"polling" validate:"required"`
	Running   bool             `json:"running"`
	LastCycle *agent.Cycle     `json:"last_cycle,omitempty"`
	Builds    []state.BuildRow `json:"builds" validate:"required"`
}

// DetectResponse is the outcome of an on-demand detection cycle.
type DetectResponse struct {
	Changes []models.Change     `json:"changes" validate:"required"`
	Count   int                 `json:"count" example:"1"`
	Failed  []string            `json:"failed_collections,omitempty"`
	Build   *models.BuildReport `json:"build,omitempty"`
}

// ComponentListResponse wraps the registry contents in registry order.
type ComponentListResponse struct {
	Components []registry.ComponentDescriptor `json:"components" validate:"required"`
	Total      int                            `json:"total" example:"24"`
}

// SelectRequest asks for a component per section of one page.
type SelectRequest struct {
	BusinessType     string           `json:"business_type" example:"SaaS"`
	Sections         []models.Section `json:"sections" validate:"required"`
	UsedComponentIDs []string         `json:"used_component_ids,omitempty"`
}

// SelectResponse lists the selection for each requested section, in order.
type SelectResponse struct {
	Selections []selector.PageSelection `json:"selections" validate:"required"`
}

// WebhookResponse reports how a GitHub event was handled.
type WebhookResponse struct {
	Event   string `json:"event" example:"push"`
	Handled bool   `json:"handled"`
	Action  string `json:"action,omitempty" example:"status-updated"`
	Reason  string `json:"reason,omitempty"`
}

// ReadyResponse is the readiness probe body.
type ReadyResponse struct {
	Status     string    `json:"status" example:"ok"`
	Components int       `json:"components" example:"24"`
	Time       time.Time `json:"time"`
}
