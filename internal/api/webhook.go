package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/publish"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventHeader     = "X-GitHub-Event"
	maxWebhookBytes = 10 << 20

	webhookWriteTimeout = 30 * time.Second
)

type pushEvent struct {
	Ref        string `json:"ref"`
	HeadCommit *struct {
		ID     string `json:"id"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"head_commit"`
	Commits []json.RawMessage `json:"commits"`
}

type workflowRunEvent struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HTMLURL    string `json:"html_url"`
		HeadBranch string `json:"head_branch"`
	} `json:"workflow_run"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// GitHubWebhook handles POST /api/webhooks/github.
//
//	@Summary		Receive GitHub push and workflow_run events
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	WebhookResponse
//	@Failure		401	{object}	errResponse
//	@Router			/webhooks/github [post]
func (h *Handler) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	cfg := h.svc.Webhook
	switch {
	case cfg.Secret == "" && cfg.RequireSignature:
		writeJSON(w, http.StatusUnauthorized, errorBody("webhook secret not configured"))
		return
	case cfg.Secret != "" && !validSignature(cfg.Secret, body, r.Header.Get(signatureHeader)):
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid signature"))
		return
	}

	event := r.Header.Get(eventHeader)
	resp := WebhookResponse{Event: event}
	switch event {
	case "ping":
		resp.Handled, resp.Action = true, "pong"
	case "push":
		var ev pushEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid push payload"))
			return
		}
		resp = h.handlePush(r.Context(), ev)
	case "workflow_run":
		var ev workflowRunEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid workflow_run payload"))
			return
		}
		resp = h.handleWorkflowRun(r.Context(), ev)
	default:
		resp.Reason = "unhandled event"
	}
	h.svc.logger().Info("webhook received",
		slog.String("event", event),
		slog.Bool("handled", resp.Handled),
		slog.String("action", resp.Action),
		slog.String("reason", resp.Reason))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePush(ctx context.Context, ev pushEvent) WebhookResponse {
	resp := WebhookResponse{Event: "push", Handled: true}
	branch := strings.TrimPrefix(ev.Ref, "refs/heads/")
	if ev.HeadCommit != nil && h.svc.Webhook.BotAuthor != "" && ev.HeadCommit.Author.Name == h.svc.Webhook.BotAuthor {
		resp.Action, resp.Reason = "skipped", "bot commit"
		return resp
	}
	if branch != h.webhookBranch() {
		resp.Action = "no-action"
		return resp
	}
	if !h.report(ctx, models.BuildReport{Status: models.StatusBuilding}) {
		resp.Handled, resp.Reason = false, "status write-back failed"
		return resp
	}
	resp.Action = "status-updated"
	return resp
}

func (h *Handler) handleWorkflowRun(ctx context.Context, ev workflowRunEvent) WebhookResponse {
	resp := WebhookResponse{Event: "workflow_run", Handled: true}
	run := ev.WorkflowRun
	if ev.Action != "" && ev.Action != "completed" {
		resp.Action = "no-action"
		return resp
	}

	var rep models.BuildReport
	switch run.Conclusion {
	case "success":
		repo := h.svc.Webhook.Repo
		if repo == "" {
			repo = ev.Repository.FullName
		}
		rep = models.BuildReport{Status: models.StatusPublished, DeployURL: publish.DeployURL("", "", repo)}
	case "failure", "timed_out":
		rep = models.BuildReport{
			Status: models.StatusFailed,
			Error:  "workflow " + run.Name + " " + run.Conclusion + ": " + run.HTMLURL,
		}
	default:
		resp.Action = "no-action"
		return resp
	}
	if !h.report(ctx, rep) {
		resp.Handled, resp.Reason = false, "status write-back failed"
		return resp
	}
	resp.Action = "status-updated"
	return resp
}

func (h *Handler) report(ctx context.Context, rep models.BuildReport) bool {
	if h.svc.Reporter == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), webhookWriteTimeout)
	defer cancel()
	if err := h.svc.Reporter.ReportBuildStatus(ctx, rep); err != nil {
		h.svc.logger().Warn("webhook status write-back failed",
			slog.String("status", rep.Status),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (h *Handler) webhookBranch() string {
	if h.svc.Webhook.Branch == "" {
		return publish.DefaultBranch
	}
	return h.svc.Webhook.Branch
}

// validSignature checks a "sha256=<hex>" HMAC of body.
func validSignature(secret string, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
