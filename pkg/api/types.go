package api

import (
	"github.com/commongraph/graphview/pkg/layout"
	"github.com/commongraph/graphview/pkg/platform"
)

// HealthResponse is returned by GET /v1/health
type HealthResponse struct {
	Status       string `json:"status"`
	ConfigLoaded bool   `json:"config_loaded"`
	SchemaLoaded bool   `json:"schema_loaded"`
}

// EdgeTypesResponse is returned by GET /v1/schema/edge-types
type EdgeTypesResponse struct {
	Source    string   `json:"source,omitempty"`
	Target    string   `json:"target,omitempty"`
	EdgeTypes []string `json:"edge_types"`
}

// NodeTypesResponse is returned by the target-types and source-types routes
type NodeTypesResponse struct {
	Source    string   `json:"source,omitempty"`
	Target    string   `json:"target,omitempty"`
	NodeTypes []string `json:"node_types"`
}

// ConfigResponse is returned by GET /v1/config
type ConfigResponse struct {
	Loaded      bool              `json:"loaded"`
	Metadata    platform.Metadata `json:"metadata"`
	Permissions map[string]bool   `json:"permissions"`
	// NodePolls and EdgePolls map each configured type to the labels of
	// the polls that apply to it.
	NodePolls map[string][]string `json:"node_polls"`
	EdgePolls map[string][]string `json:"edge_polls"`
	Config    *platform.Config    `json:"config"`
}

// ReloadResponse is returned by POST /v1/config/reload and DELETE /v1/config
type ReloadResponse struct {
	ConfigLoaded bool   `json:"config_loaded"`
	SchemaLoaded bool   `json:"schema_loaded"`
	Error        string `json:"error,omitempty"`
}

// DirectionResponse is returned by GET /v1/direction
type DirectionResponse struct {
	Direction layout.Direction `json:"direction"`
}
