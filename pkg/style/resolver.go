// Package style turns raw graph records into renderable descriptors.
//
// Formatting is pure apart from diagnostic logging and metrics: the same
// record, color mode and configuration always produce the same descriptor.
package style

import (
	"log/slog"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/metrics"
	"github.com/commongraph/graphview/pkg/platform"
)

// TypeSource looks up configured node and edge types. *platform.Store
// satisfies it.
type TypeSource interface {
	NodeType(name string) (platform.TypeDef, bool)
	EdgeType(name string) (platform.TypeDef, bool)
	DimmedStatuses() []string
}

// Literal fallbacks for unset style attributes.
const (
	defaultBorderWidth   = 1.0
	defaultBorderRadius  = 8.0
	defaultBorderStyle   = "solid"
	draftBorderStyle     = "dotted"
	defaultOpacity       = 0.95
	defaultDimmedOpacity = 0.4
	defaultStrokeWidth   = 2.0
	defaultEdgeOpacity   = 1.0
	markerSize           = 25
	markerNone           = "none"
	markerArrowClosed    = "arrowclosed"
)

// DefaultDimmedStatuses are statuses rendered faded unless configured otherwise.
var DefaultDimmedStatuses = []string{"completed", "realised", "unrealised"}

// Options configure a Resolver.
type Options struct {
	Theme Theme
	// DimmedStatuses applies when the platform config declares none.
	DimmedStatuses []string
	// Rules replaces the default color cascade.
	Rules  []ColorRule
	Logger *slog.Logger
}

// Resolver formats node and edge records.
type Resolver struct {
	types  TypeSource
	theme  Theme
	rules  []ColorRule
	dimmed []string
	logger *slog.Logger
}

// NewResolver creates a resolver over the given type source.
func NewResolver(types TypeSource, opts Options) *Resolver {
	if opts.Theme == "" {
		opts.Theme = ThemeSystem
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultCascade(opts.Theme)
	}
	dimmed := opts.DimmedStatuses
	if len(dimmed) == 0 {
		dimmed = DefaultDimmedStatuses
	}
	return &Resolver{
		types:  types,
		theme:  opts.Theme,
		rules:  rules,
		dimmed: dimmed,
		logger: opts.Logger.With("component", "style_resolver"),
	}
}

// Theme returns the resolver's theme.
func (r *Resolver) Theme() Theme {
	return r.theme
}

// FormatNode builds the renderable descriptor of a node record.
func (r *Resolver) FormatNode(rec graph.NodeRecord, colorBy ColorBy) graph.RenderableNode {
	def, known := r.types.NodeType(rec.NodeType)
	if !known {
		metrics.StyleUnknownType.WithLabelValues(string(KindNode)).Inc()
		r.logger.Debug("node type not configured, using fallback style", "node_id", rec.NodeID, "node_type", rec.NodeType)
	}
	st := def.Style

	color := r.color(ColorInput{
		Kind:    KindNode,
		Type:    rec.NodeType,
		Def:     def,
		Known:   known,
		Rating:  rec.Support,
		ColorBy: colorBy,
	})

	borderStyle := st.BorderStyle
	if borderStyle == "" {
		borderStyle = defaultBorderStyle
		if rec.Status == "draft" {
			borderStyle = draftBorderStyle
		}
	}
	borderColor := st.BorderColor
	if borderColor == "" {
		borderColor = r.theme.palette().Border
	}

	opacity := floatOr(st.Opacity, defaultOpacity)
	if r.isDimmed(rec.Status) {
		opacity = floatOr(st.DimmedOpacity, defaultDimmedOpacity)
	}

	var pos graph.Position
	if rec.Position != nil {
		pos = *rec.Position
	}

	return graph.RenderableNode{
		ID:       rec.NodeID,
		Position: pos,
		Label:    rec.Title,
		Type:     rec.NodeType,
		Style: graph.NodeStyle{
			Background:   color,
			BorderColor:  borderColor,
			BorderWidth:  lengthOr(st.BorderWidth, defaultBorderWidth),
			BorderStyle:  borderStyle,
			BorderRadius: lengthOr(st.BorderRadius, defaultBorderRadius),
			Opacity:      opacity,
		},
		Selected: rec.Selected,
		Data: graph.NodeData{
			Record:      rec.Fields(),
			RatingLabel: ratingLabel(rec.Support),
		},
	}
}

// FormatEdge builds the renderable descriptor of an edge record. The id is
// always "<source>-<target>" in backend order; the drawn direction follows
// the edge type's declared direction.
func (r *Resolver) FormatEdge(rec graph.EdgeRecord, colorBy ColorBy) graph.RenderableEdge {
	def, known := r.types.EdgeType(rec.EdgeType)
	if !known {
		metrics.StyleUnknownType.WithLabelValues(string(KindEdge)).Inc()
		r.logger.Debug("edge type not configured, using fallback style", "source", rec.Source, "target", rec.Target, "edge_type", rec.EdgeType)
	}
	st := def.Style

	color := r.color(ColorInput{
		Kind:    KindEdge,
		Type:    rec.EdgeType,
		Def:     def,
		Known:   known,
		Rating:  rec.CausalStrength,
		ColorBy: colorBy,
	})

	inverted := def.Direction.Inverted()
	source, target := rec.Source, rec.Target
	if inverted {
		source, target = target, source
	}

	markerEnd := st.MarkerEnd
	if markerEnd == "" {
		markerEnd = markerArrowClosed
	}

	return graph.RenderableEdge{
		ID:          rec.Source + "-" + rec.Target,
		Type:        rec.EdgeType,
		Source:      source,
		Target:      target,
		MarkerEnd:   marker(markerEnd),
		MarkerStart: marker(st.MarkerStart),
		Style: graph.EdgeStyle{
			Stroke:          color,
			StrokeWidth:     lengthOr(st.StrokeWidth, defaultStrokeWidth),
			StrokeDasharray: st.StrokeDasharray,
			Opacity:         floatOr(st.Opacity, defaultEdgeOpacity),
		},
		Selected: rec.Selected,
		Data: graph.EdgeData{
			Record:      rec.Fields(),
			RatingLabel: ratingLabel(rec.CausalStrength),
			Inverted:    inverted,
		},
	}
}

// FormatNodes formats a batch of node records.
func (r *Resolver) FormatNodes(recs []graph.NodeRecord, colorBy ColorBy) []graph.RenderableNode {
	out := make([]graph.RenderableNode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.FormatNode(rec, colorBy))
	}
	return out
}

// FormatEdges formats a batch of edge records.
func (r *Resolver) FormatEdges(recs []graph.EdgeRecord, colorBy ColorBy) []graph.RenderableEdge {
	out := make([]graph.RenderableEdge, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.FormatEdge(rec, colorBy))
	}
	return out
}

func (r *Resolver) color(in ColorInput) string {
	if c := resolveColor(r.rules, in); c != "" {
		return c
	}
	// Custom cascades without a terminal rule still get a neutral color.
	c, _ := ThemeDefault(r.theme)(in)
	return c
}

func (r *Resolver) isDimmed(status string) bool {
	if status == "" {
		return false
	}
	set := r.types.DimmedStatuses()
	if len(set) == 0 {
		set = r.dimmed
	}
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func ratingLabel(rating graph.Rating) string {
	if g, ok := GradeOf(rating); ok {
		return string(g)
	}
	return ""
}

func marker(kind string) *graph.Marker {
	if kind == "" || kind == markerNone {
		return nil
	}
	return &graph.Marker{Type: kind, Width: markerSize, Height: markerSize}
}

func lengthOr(v *platform.Length, def float64) float64 {
	if v == nil {
		return def
	}
	return float64(*v)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
