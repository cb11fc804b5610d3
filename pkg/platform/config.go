package platform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Config is the platform-wide configuration served by GET /config.
type Config struct {
	NodeTypes           map[string]TypeDef `json:"node_types"`
	EdgeTypes           map[string]TypeDef `json:"edge_types"`
	Polls               map[string]Poll    `json:"polls"`
	PlatformName        string             `json:"platform_name"`
	PlatformTagline     string             `json:"platform_tagline"`
	PlatformDescription string             `json:"platform_description"`
	Permissions         Permissions        `json:"permissions"`
	AllowSignup         bool               `json:"allow_signup"`
	// DimmedStatuses overrides the resolver's default dimmed set when non-empty.
	DimmedStatuses []string `json:"dimmed_statuses,omitempty"`
}

// TypeDef describes one node or edge type.
type TypeDef struct {
	Style      Style      `json:"style"`
	Polls      []string   `json:"polls,omitempty"`
	Properties []string   `json:"properties,omitempty"`
	Between    [][]string `json:"between,omitempty"`
	// Direction only applies to edge types.
	Direction EdgeDirection `json:"direction,omitempty"`
}

// EdgeDirection declares how a backend edge maps onto the diagram.
type EdgeDirection string

const (
	// DirectionForward draws backend source -> backend target.
	DirectionForward EdgeDirection = "forward"
	// DirectionInverted draws backend target -> backend source.
	DirectionInverted EdgeDirection = "inverted"
)

// Inverted reports whether the visual direction is flipped. Anything other
// than "inverted" is forward.
func (d EdgeDirection) Inverted() bool {
	return strings.EqualFold(strings.TrimSpace(string(d)), string(DirectionInverted))
}

// Style holds the style attributes of a type. Unset fields fall back to
// literals in the style resolver.
type Style struct {
	Color           string   `json:"color,omitempty"`
	BorderColor     string   `json:"border_color,omitempty"`
	BorderWidth     *Length  `json:"border_width,omitempty"`
	BorderRadius    *Length  `json:"border_radius,omitempty"`
	BorderStyle     string   `json:"border_style,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`
	DimmedOpacity   *float64 `json:"dimmed_opacity,omitempty"`
	StrokeWidth     *Length  `json:"stroke_width,omitempty"`
	StrokeDasharray string   `json:"stroke_dasharray,omitempty"`
	MarkerStart     string   `json:"marker_start,omitempty"`
	MarkerEnd       string   `json:"marker_end,omitempty"`
}

// Length is a pixel size. It decodes from a number or a CSS string like "2px".
type Length float64

// Px returns a pointer to a length, for building styles in code.
func Px(v float64) *Length {
	l := Length(v)
	return &l
}

func (l *Length) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "px")
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid length %q: %w", s, err)
		}
		*l = Length(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid length: %w", err)
	}
	*l = Length(v)
	return nil
}

// Poll is a secondary rating mechanism attachable to node/edge types.
type Poll struct {
	Label       string          `json:"-"`
	NodeTypes   []string        `json:"node_types"`
	EdgeTypes   []string        `json:"edge_types"`
	Description string          `json:"description,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// Permissions are the feature flags of the current platform. Absent values
// fall back to read=true and everything else false.
type Permissions struct {
	Read   *bool `json:"read,omitempty"`
	Create *bool `json:"create,omitempty"`
	Edit   *bool `json:"edit,omitempty"`
	Delete *bool `json:"delete,omitempty"`
	Rate   *bool `json:"rate,omitempty"`
}

func (p Permissions) CanRead() bool   { return flag(p.Read, true) }
func (p Permissions) CanCreate() bool { return flag(p.Create, false) }
func (p Permissions) CanEdit() bool   { return flag(p.Edit, false) }
func (p Permissions) CanDelete() bool { return flag(p.Delete, false) }
func (p Permissions) CanRate() bool   { return flag(p.Rate, false) }

// Summary returns the resolved permission set.
func (p Permissions) Summary() map[string]bool {
	return map[string]bool{
		"read":   p.CanRead(),
		"create": p.CanCreate(),
		"edit":   p.CanEdit(),
		"delete": p.CanDelete(),
		"rate":   p.CanRate(),
	}
}

func flag(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Metadata is the descriptive part of the platform configuration.
type Metadata struct {
	Name        string `json:"platform_name"`
	Tagline     string `json:"platform_tagline"`
	Description string `json:"platform_description"`
	AllowSignup bool   `json:"allow_signup"`
}

// Validate checks the configured type keys against the schema's declared node
// types and edge labels. An empty declared set skips that check.
func (c *Config) Validate(nodeTypes, edgeLabels []string) error {
	var errs []error
	errs = append(errs, unknownKeys("node type", c.NodeTypes, nodeTypes)...)
	errs = append(errs, unknownKeys("edge type", c.EdgeTypes, edgeLabels)...)
	for _, label := range sortedKeys(c.Polls) {
		p := c.Polls[label]
		for _, t := range p.NodeTypes {
			if _, ok := c.NodeTypes[t]; !ok {
				errs = append(errs, fmt.Errorf("poll %q references unknown node type %q", label, t))
			}
		}
		for _, t := range p.EdgeTypes {
			if _, ok := c.EdgeTypes[t]; !ok {
				errs = append(errs, fmt.Errorf("poll %q references unknown edge type %q", label, t))
			}
		}
	}
	return errors.Join(errs...)
}

func unknownKeys[V any](kind string, defs map[string]V, declared []string) []error {
	if len(declared) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		known[d] = struct{}{}
	}
	var errs []error
	for _, name := range sortedKeys(defs) {
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Errorf("%s %q is configured but not declared by the schema", kind, name))
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
