package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
	"github.com/starford/sitesmith/internal/state"
)

// detectTimeout bounds an on-demand detection cycle, including its build.
const detectTimeout = 10 * time.Minute

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) selector() *selector.Selector {
	if h.svc.Selector == nil {
		return nil
	}
	return h.svc.Selector()
}

// Ready handles GET /health/ready. The service is ready once a non-empty
// registry is loaded.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	sel := h.selector()
	if sel == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("registry not loaded"))
		return
	}
	writeJSON(w, http.StatusOK, ReadyResponse{
		Status:     "ok",
		Components: sel.Registry().Len(),
		Time:       time.Now().UTC(),
	})
}

// Status handles GET /api/status.
//
//	@Summary		Agent state, last detection cycle and recent builds
//	@Tags			agent
//	@Produce		json
//	@Param			limit	query		int	false	"Number of builds"
//	@Success		200		{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: "disabled", Builds: []state.BuildRow{}}
	if d := h.svc.Detector; d != nil {
		resp.State = d.State()
		resp.Running = d.Running()
		if c, ok := d.LastCycle(); ok {
			resp.LastCycle = &c
		}
	}
	if h.svc.Builds != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		builds, err := h.svc.Builds.RecentBuilds(limit)
		if err != nil {
			slog.Error("recent builds failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		if builds != nil {
			resp.Builds = builds
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Detect handles POST /api/detect.
//
//	@Summary		Run one detection cycle now, building if anything changed
//	@Tags			agent
//	@Produce		json
//	@Success		200	{object}	DetectResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/detect [post]
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	if h.svc.Detector == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("change detection is not configured"))
		return
	}
	// The cycle outlives a disconnecting client so a started build is
	// always reported.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), detectTimeout)
	defer cancel()

	cycle, err := h.svc.Detector.CheckOnce(ctx)
	if err != nil {
		slog.Error("detect failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("detection failed"))
		return
	}
	writeJSON(w, http.StatusOK, DetectResponse{
		Changes: cycle.Changes,
		Count:   len(cycle.Changes),
		Failed:  cycle.Failed,
		Build:   cycle.Build,
	})
}

// ListComponents handles GET /api/components.
//
//	@Summary		List registered components, optionally by category
//	@Tags			components
//	@Produce		json
//	@Param			category	query		string	false	"Category filter"
//	@Success		200			{object}	ComponentListResponse
//	@Security		BearerAuth
//	@Router			/components [get]
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	sel := h.selector()
	if sel == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("registry not loaded"))
		return
	}
	reg := sel.Registry()
	items := reg.All()
	if cat := r.URL.Query().Get("category"); cat != "" {
		items = reg.ByCategory(registry.Category(selector.NormalizeCategory(cat)))
	}
	if items == nil {
		items = []registry.ComponentDescriptor{}
	}
	writeJSON(w, http.StatusOK, ComponentListResponse{Components: items, Total: len(items)})
}

// Select handles POST /api/select.
//
//	@Summary		Preview component selection for a page
//	@Tags			components
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectRequest	true	"Page sections"
//	@Success		200		{object}	SelectResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/select [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if len(req.Sections) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("sections are required"))
		return
	}
	sel := h.selector()
	if sel == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("registry not loaded"))
		return
	}
	out, err := sel.SelectComponentsForPage(selector.PageInput{
		Sections:         req.Sections,
		BusinessType:     req.BusinessType,
		UsedComponentIDs: req.UsedComponentIDs,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyRegistry) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("registry is empty"))
			return
		}
		slog.Error("select failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SelectResponse{Selections: out})
}
