package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/commongraph/graphview/pkg/client"
	"github.com/commongraph/graphview/pkg/layout"
	"github.com/commongraph/graphview/pkg/prefs"
	"github.com/commongraph/graphview/pkg/render"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/config":
			w.Write([]byte(`{
				"platform_name": "CommonGraph",
				"node_types": {"objective": {"style": {"color": "#ff0000"}}, "action": {"style": {}}},
				"edge_types": {"imply": {"style": {}}},
				"polls": {},
				"permissions": {}
			}`))
		case "/graph/schema":
			w.Write([]byte(`{
				"node_types": ["objective", "action"],
				"edge_types": [{"source_type": "action", "target_type": "objective", "label": "imply"}]
			}`))
		case "/graph":
			w.Write([]byte(`{
				"nodes": [
					{"node_id": 1, "title": "Cut emissions", "node_type": "objective"},
					{"node_id": 2, "title": "Carbon tax", "node_type": "action"}
				],
				"edges": [{"source": 2, "target": 1, "edge_type": "imply"}]
			}`))
		default:
			http.NotFound(w, r)
		}
	})
	ts := httptest.NewServer(apiHandler)
	t.Cleanup(ts.Close)

	c := client.NewClient(ts.URL, client.WithRetry(0, nil))
	session := render.NewSession(c, render.Options{State: prefs.NewMemoryStore()})
	return NewServer(session, c, "test")
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) string {
	t.Helper()
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent")
	}
	if result.IsError {
		t.Fatalf("%s returned tool error: %s", name, text.Text)
	}
	return text.Text
}

func TestMCPServer_ReadSchema(t *testing.T) {
	s := newTestServer(t)

	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: schemaURI,
		},
	}
	result, err := s.handleReadSchema(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadSchema failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 resource content, got %d", len(result))
	}
	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("Expected TextResourceContents")
	}
	if content.MIMEType != "application/json" {
		t.Errorf("Expected application/json, got %s", content.MIMEType)
	}
	if !strings.Contains(content.Text, `"imply"`) {
		t.Errorf("Expected schema to list the imply rule, got %s", content.Text)
	}
}

func TestMCPServer_ReadSchema_BackendDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	c := client.NewClient(ts.URL, client.WithRetry(0, nil))
	s := NewServer(render.NewSession(c, render.Options{}), c, "test")

	_, err := s.handleReadSchema(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: schemaURI},
	})
	if err == nil {
		t.Fatal("Expected error when the schema cannot be fetched")
	}
}

func TestMCPServer_AllowedTypes(t *testing.T) {
	s := newTestServer(t)

	var labels []string
	text := callTool(t, s.handleAllowedEdgeTypes, "allowed_edge_types", map[string]interface{}{
		"source": "action",
		"target": "objective",
	})
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if len(labels) != 1 || labels[0] != "imply" {
		t.Errorf("Expected [imply], got %v", labels)
	}

	text = callTool(t, s.handleAllowedEdgeTypes, "allowed_edge_types", map[string]interface{}{
		"source": "objective",
		"target": "action",
	})
	if text != "[]" {
		t.Errorf("Expected an empty list, got %s", text)
	}

	var types []string
	text = callTool(t, s.handleAllowedTargetTypes, "allowed_target_types", map[string]interface{}{"source": "action"})
	if err := json.Unmarshal([]byte(text), &types); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if len(types) != 1 || types[0] != "objective" {
		t.Errorf("Expected [objective], got %v", types)
	}

	text = callTool(t, s.handleAllowedSourceTypes, "allowed_source_types", map[string]interface{}{"target": "objective"})
	if err := json.Unmarshal([]byte(text), &types); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if len(types) != 1 || types[0] != "action" {
		t.Errorf("Expected [action], got %v", types)
	}
}

func TestMCPServer_LayoutGraph_FromBackend(t *testing.T) {
	s := newTestServer(t)

	text := callTool(t, s.handleLayoutGraph, "layout_graph", map[string]interface{}{
		"direction": "TB",
		"color_by":  "type",
	})

	var summary layoutSummary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if summary.Direction != layout.TopBottom {
		t.Errorf("Expected TB, got %s", summary.Direction)
	}
	if len(summary.Nodes) != 2 || len(summary.Edges) != 1 {
		t.Fatalf("Expected 2 nodes and 1 edge, got %d and %d", len(summary.Nodes), len(summary.Edges))
	}

	pos := map[string]placedNode{}
	for _, n := range summary.Nodes {
		pos[n.ID] = n
	}
	if pos["2"].Y >= pos["1"].Y {
		t.Errorf("Expected the cause above its effect in TB, got %v and %v", pos["2"].Y, pos["1"].Y)
	}
	if pos["1"].Color != "#ff0000" {
		t.Errorf("Expected objective colored by type, got %s", pos["1"].Color)
	}
	if summary.Edges[0].ID != "2-1" {
		t.Errorf("Expected edge id 2-1, got %s", summary.Edges[0].ID)
	}
}

func TestMCPServer_LayoutGraph_InlineGraph(t *testing.T) {
	s := newTestServer(t)

	text := callTool(t, s.handleLayoutGraph, "layout_graph", map[string]interface{}{
		"direction": "sideways",
		"graph":     `{"nodes": [{"node_id": "a"}, {"node_id": "b"}], "edges": [{"source": "a", "target": "b"}]}`,
	})

	var summary layoutSummary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if summary.Direction != layout.LeftRight {
		t.Errorf("Expected invalid direction to fall back to LR, got %s", summary.Direction)
	}
	if len(summary.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(summary.Nodes))
	}
}

func TestMCPServer_LayoutGraph_BadJSON(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleLayoutGraph(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "layout_graph",
			Arguments: map[string]interface{}{"graph": `{"nodes": `},
		},
	})
	if err != nil {
		t.Fatalf("handleLayoutGraph failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for malformed graph JSON")
	}
}

func TestMCPServer_GetPrompt(t *testing.T) {
	s := newTestServer(t)

	req := mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{
			Name: "graphview-aware",
		},
	}
	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(result.Messages))
	}

	req.Params.Name = "unknown"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("Expected error for unknown prompt")
	}
}
