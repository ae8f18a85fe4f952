// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes sitesmith tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sitesmith/internal/agent"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/registry"
	"github.com/starford/sitesmith/internal/selector"
)

const sectionTypesURI = "sitesmith://section-types"

// detectTimeout bounds a detect_changes call, including its build.
const detectTimeout = 10 * time.Minute

// Detector is the part of the agent exposed over MCP.
type Detector interface {
	CheckOnce(ctx context.Context) (agent.Cycle, error)
	State() agent.State
	Running() bool
	LastCycle() (agent.Cycle, bool)
}

// Server wraps the MCP server with sitesmith tools.
type Server struct {
	mcp      *server.MCPServer
	selector func() *selector.Selector
	detector Detector
}

// New creates a new MCP server with all sitesmith tools registered.
// detector may be nil, in which case the agent tools report that change
// detection is not configured.
func New(sel func() *selector.Selector, detector Detector) *Server {
	s := &Server{selector: sel, detector: detector}

	s.mcp = server.NewMCPServer(
		"Sitesmith",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List registered page components in registry order."),
		mcp.WithString("category", mcp.Description("Optional section type or category filter (e.g. hero, services, faq)")),
	), s.listComponents)

	s.mcp.AddTool(mcp.NewTool("select_components",
		mcp.WithDescription("Choose a component for each section of a page, in page order, "+
			"and return the per-dimension scores. Read sitesmith://section-types for how "+
			"section types and item counts are interpreted."),
		mcp.WithArray("sections", mcp.Required(),
			mcp.Description(`Sections in page order, e.g. [{"name":"3 core services","section_type":"services"}]`)),
		mcp.WithString("business_type", mcp.Description("Business type of the site, e.g. SaaS")),
		mcp.WithArray("used_component_ids", mcp.Description("Component ids already used on earlier pages")),
	), s.selectComponents)

	s.mcp.AddTool(mcp.NewTool("detect_changes",
		mcp.WithDescription("Run one change-detection cycle against the content source now. "+
			"Rebuilds and publishes the site when anything changed."),
	), s.detectChanges)

	s.mcp.AddTool(mcp.NewTool("agent_status",
		mcp.WithDescription("Report the change-detection agent state and its last cycle."),
	), s.agentStatus)

	s.mcp.AddResource(
		mcp.NewResource(sectionTypesURI, "Section Types",
			mcp.WithResourceDescription("How section types, item counts and overrides drive component selection."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSectionTypes,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) current() (*selector.Selector, error) {
	if s.selector == nil {
		return nil, fmt.Errorf("registry not loaded")
	}
	sel := s.selector()
	if sel == nil {
		return nil, fmt.Errorf("registry not loaded")
	}
	return sel, nil
}

func (s *Server) listComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := s.current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reg := sel.Registry()
	items := reg.All()
	if cat := req.GetString("category", ""); cat != "" {
		items = reg.ByCategory(registry.Category(selector.NormalizeCategory(cat)))
		if len(items) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no components in category %q", cat)), nil
		}
	}
	return jsonResult(items)
}

func (s *Server) selectComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var in struct {
		Sections         []models.Section `json:"sections"`
		BusinessType     string           `json:"business_type"`
		UsedComponentIDs []string         `json:"used_component_ids"`
	}
	raw, err := json.Marshal(args)
	if err == nil {
		err = json.Unmarshal(raw, &in)
	}
	if err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if len(in.Sections) == 0 {
		return mcp.NewToolResultError("sections are required"), nil
	}

	sel, err := s.current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := sel.SelectComponentsForPage(selector.PageInput{
		Sections:         in.Sections,
		BusinessType:     in.BusinessType,
		UsedComponentIDs: in.UsedComponentIDs,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) detectChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.detector == nil {
		return mcp.NewToolResultError("change detection is not configured"), nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detectTimeout)
	defer cancel()
	cycle, err := s.detector.CheckOnce(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cycle.Changes) == 0 && len(cycle.Failed) == 0 {
		return mcp.NewToolResultText("no changes"), nil
	}
	return jsonResult(cycle)
}

func (s *Server) agentStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.detector == nil {
		return mcp.NewToolResultError("change detection is not configured"), nil
	}
	status := struct {
		State     agent.State  `json:"state"`
		Running   bool         `json:"running"`
		LastCycle *agent.Cycle `json:"last_cycle,omitempty"`
	}{State: s.detector.State(), Running: s.detector.Running()}
	if c, ok := s.detector.LastCycle(); ok {
		status.LastCycle = &c
	}
	return jsonResult(status)
}

func (s *Server) readSectionTypes(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sectionTypesURI,
			MIMEType: "text/markdown",
			Text:     SectionTypesGuide,
		},
	}, nil
}
