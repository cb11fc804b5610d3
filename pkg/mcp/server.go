package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/layout"
	"github.com/commongraph/graphview/pkg/render"
	"github.com/commongraph/graphview/pkg/style"
)

const schemaURI = "graphview://schema"

// GraphSource supplies the network when a tool call carries none.
// *client.Client satisfies it.
type GraphSource interface {
	GetGraph(ctx context.Context) (*graph.Export, error)
}

// Server exposes schema queries and graph layout over the Model Context
// Protocol.
type Server struct {
	mcpServer *server.MCPServer
	session   *render.Session
	graphs    GraphSource
}

// NewServer creates a new MCP server instance.
func NewServer(session *render.Session, graphs GraphSource, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("graphview", version),
		session:   session,
		graphs:    graphs,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		schemaURI,
		"Graph Schema",
		mcp.WithResourceDescription("Declared node types and permitted (source, target, label) edge rules"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadSchema)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"allowed_edge_types",
		mcp.WithDescription("List edge labels allowed between two node types. Omit a type to leave that end unconstrained."),
		mcp.WithString("source", mcp.Description("Source node type")),
		mcp.WithString("target", mcp.Description("Target node type")),
	), s.handleAllowedEdgeTypes)

	s.mcpServer.AddTool(mcp.NewTool(
		"allowed_target_types",
		mcp.WithDescription("List node types an edge from the given source type may point to."),
		mcp.WithString("source", mcp.Description("Source node type")),
	), s.handleAllowedTargetTypes)

	s.mcpServer.AddTool(mcp.NewTool(
		"allowed_source_types",
		mcp.WithDescription("List node types an edge into the given target type may come from."),
		mcp.WithString("target", mcp.Description("Target node type")),
	), s.handleAllowedSourceTypes)

	s.mcpServer.AddTool(mcp.NewTool(
		"layout_graph",
		mcp.WithDescription("Style and lay out a graph. Uses the backend's whole network when no graph is given."),
		mcp.WithString("direction", mcp.Description("TB, BT, LR or RL (default: last used)")),
		mcp.WithString("color_by", mcp.Description("type, rating or none")),
		mcp.WithString("graph", mcp.Description(`JSON object {"nodes": [...], "edges": [...]} of backend records`)),
	), s.handleLayoutGraph)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"graphview-aware",
		mcp.WithPromptDescription("Explains node types, edge rules and ratings of the causal graph"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadSchema(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.session.Schema.Load(ctx, false)
	if !s.session.Schema.Loaded() {
		return nil, fmt.Errorf("failed to load graph schema")
	}

	data, err := json.MarshalIndent(s.session.Schema.Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAllowedEdgeTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Schema.Load(ctx, false)
	source := mcp.ParseString(request, "source", "")
	target := mcp.ParseString(request, "target", "")
	return jsonResult(s.session.Schema.AllowedEdgeTypes(source, target))
}

func (s *Server) handleAllowedTargetTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Schema.Load(ctx, false)
	return jsonResult(s.session.Schema.AllowedTargetTypes(mcp.ParseString(request, "source", "")))
}

func (s *Server) handleAllowedSourceTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Schema.Load(ctx, false)
	return jsonResult(s.session.Schema.AllowedSourceTypes(mcp.ParseString(request, "target", "")))
}

// placedNode is the compact node view returned to agents.
type placedNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Type  string  `json:"type,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

type placedEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

type layoutSummary struct {
	Direction layout.Direction `json:"direction"`
	Nodes     []placedNode     `json:"nodes"`
	Edges     []placedEdge     `json:"edges"`
}

func (s *Server) handleLayoutGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var export graph.Export
	if raw := mcp.ParseString(request, "graph", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &export); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid graph JSON: %v", err)), nil
		}
	} else {
		if s.graphs == nil {
			return mcp.NewToolResultError("no graph given and no backend configured"), nil
		}
		exp, err := s.graphs.GetGraph(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
		}
		export = *exp
	}

	res := s.session.Render(ctx, render.Request{
		Nodes:     export.Nodes,
		Edges:     export.Edges,
		ColorBy:   style.ParseColorBy(mcp.ParseString(request, "color_by", "")),
		Direction: layout.Direction(mcp.ParseString(request, "direction", "")),
	})

	summary := layoutSummary{
		Direction: res.Direction,
		Nodes:     make([]placedNode, 0, len(res.Nodes)),
		Edges:     make([]placedEdge, 0, len(res.Edges)),
	}
	for _, n := range res.Nodes {
		summary.Nodes = append(summary.Nodes, placedNode{
			ID:    n.ID,
			Label: n.Label,
			Type:  n.Type,
			X:     n.Position.X,
			Y:     n.Position.Y,
			Color: n.Style.Background,
		})
	}
	for _, e := range res.Edges {
		summary.Edges = append(summary.Edges, placedEdge{ID: e.ID, Source: e.Source, Target: e.Target, Type: e.Type})
	}
	return jsonResult(summary)
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "graphview-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are working with a causal graph of objectives, actions and other node types.

Concepts:
- Node type: a category such as 'objective' or 'action'. Each type has its own style.
- Edge rule: a permitted (source type, target type, label) triple from the graph schema.
  A type with no rules is unconstrained, not forbidden.
- Support: how strongly a node is endorsed, graded A (best) to E (worst) or 1-5.
- Causal strength: the same scale applied to an edge.

Before proposing a new edge, call 'allowed_edge_types' with both endpoint types.
To see the graph arranged by cause and effect, call 'layout_graph'.
`

	return mcp.NewGetPromptResult(
		"graphview-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
