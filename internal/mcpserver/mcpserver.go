// Package mcpserver exposes consultation over the Model Context Protocol.
// It serves two tools on stdio: consult, which runs a full consultation
// and returns the engine's answer, and list_tools, which previews the
// selection a given request context would produce.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wombat2006/techdev-sub003/internal/consult"
	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// Consulter runs consultations on behalf of MCP clients.
type Consulter interface {
	Consult(ctx context.Context, req consult.Request) (consult.Response, error)
}

// Config assembles a Server.
type Config struct {
	// Version is reported to MCP clients during initialization.
	Version string

	Consulter Consulter
	Tools     *tool.Registry
	Logger    *slog.Logger
}

// Server hosts the MCP stdio surface.
type Server struct {
	cfg Config
	mcp *server.MCPServer
}

// New builds the server and registers its tools.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg}

	srv := server.NewMCPServer("consultd", cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("consult",
		mcp.WithDescription("Run one consultation against the best eligible engine and return its answer."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Question or task delivered to the engine."),
		),
		mcp.WithString("engine",
			mcp.Description("Force a specific engine id instead of letting selection pick."),
		),
		mcp.WithString("task_criticality",
			mcp.Description("Stakes of the task."),
			mcp.Enum("basic", "premium", "critical"),
		),
		mcp.WithString("budget_tier",
			mcp.Description("Spending category capping how many tools the request may select."),
			mcp.Enum("free", "standard", "premium"),
		),
		mcp.WithString("security_tier",
			mcp.Description("Requester clearance; tools above it are ineligible."),
			mcp.Enum("public", "internal", "sensitive", "critical"),
		),
	), s.handleConsult)

	srv.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("Preview which tools a consultation with the given context would select."),
		mcp.WithString("task_criticality",
			mcp.Description("Stakes of the task."),
			mcp.Enum("basic", "premium", "critical"),
		),
		mcp.WithString("budget_tier",
			mcp.Description("Spending category capping how many tools the request may select."),
			mcp.Enum("free", "standard", "premium"),
		),
		mcp.WithString("security_tier",
			mcp.Description("Requester clearance; tools above it are ineligible."),
			mcp.Enum("public", "internal", "sensitive", "critical"),
		),
		mcp.WithNumber("call_estimate",
			mcp.Description("Assumed calls per selected tool for cost estimation."),
		),
	), s.handleListTools)

	s.mcp = srv
	return s
}

// ServeStdio blocks serving MCP on stdin/stdout until the client hangs up.
func (s *Server) ServeStdio() error {
	s.cfg.Logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleConsult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("prompt must not be empty"), nil
	}

	resp, err := s.cfg.Consulter.Consult(ctx, consult.Request{
		Prompt:  prompt,
		Engine:  req.GetString("engine", ""),
		Context: requestContext(req),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resp.Text), nil
}

func (s *Server) handleListTools(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rc := requestContext(req)
	rc.CallEstimate = req.GetInt("call_estimate", 0)
	if rc.CallEstimate < 0 {
		return mcp.NewToolResultError("call_estimate must not be negative"), nil
	}

	sel := s.cfg.Tools.Select(rc)

	out := preview{
		Tools:         make([]previewTool, 0, len(sel.Tools)),
		EstimatedCost: sel.EstimatedCost,
		CostWarning:   sel.CostWarning,
	}
	for _, st := range sel.Tools {
		pt := previewTool{
			ID:           st.Descriptor.ID,
			Label:        st.Descriptor.Label,
			Engine:       st.Descriptor.Engine,
			CostTier:     string(st.Descriptor.Cost),
			SecurityTier: string(st.Descriptor.Security),
			Operations:   make([]previewOperation, 0, len(st.Operations)),
		}
		for _, op := range st.Operations {
			pt.Operations = append(pt.Operations, previewOperation{
				Name:     op,
				Approval: string(st.Approval.Resolve(op, rc)),
			})
		}
		out.Tools = append(out.Tools, pt)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode preview: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func requestContext(req mcp.CallToolRequest) tool.Context {
	return tool.Context{
		Criticality: tool.Criticality(req.GetString("task_criticality", "")),
		Budget:      tool.BudgetTier(req.GetString("budget_tier", "")),
		Security:    tool.SecurityTier(req.GetString("security_tier", "")),
	}
}

// Preview DTOs match the gateway's tool preview wire shape.

type previewOperation struct {
	Name     string `json:"name"`
	Approval string `json:"approval"`
}

type previewTool struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	Engine       string             `json:"engine,omitempty"`
	CostTier     string             `json:"cost_tier"`
	SecurityTier string             `json:"security_tier"`
	Operations   []previewOperation `json:"operations"`
}

type preview struct {
	Tools         []previewTool `json:"tools"`
	EstimatedCost float64       `json:"estimated_cost"`
	CostWarning   string        `json:"cost_warning,omitempty"`
}
