// Package layout positions rendered nodes with a layered graph drawing.
//
// Every call builds its layered graph from scratch, so nodes and edges
// removed since the previous call can never influence the new drawing.
package layout

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/metrics"
	"github.com/commongraph/graphview/pkg/prefs"
)

// DirectionKey is the client-state key holding the last used direction.
const DirectionKey = "previousDirection"

// FallbackSize is used for nodes that have not been measured yet.
var FallbackSize = graph.Dimensions{Width: 200, Height: 60}

// Measurer reports a node's rendered size, or false when it is unknown.
type Measurer func(n graph.RenderableNode) (graph.Dimensions, bool)

// MeasuredDimensions reads the size recorded on the node itself.
func MeasuredDimensions(n graph.RenderableNode) (graph.Dimensions, bool) {
	if n.Dimensions == nil || !usableSize(*n.Dimensions) {
		return graph.Dimensions{}, false
	}
	return *n.Dimensions, true
}

// usableSize rejects zero, negative, NaN and infinite extents.
func usableSize(d graph.Dimensions) bool {
	return d.Width > 0 && d.Height > 0 && !math.IsInf(d.Width, 0) && !math.IsInf(d.Height, 0)
}

// Options configure an Engine. Zero values select defaults.
type Options struct {
	Spacing  Spacing
	Fallback graph.Dimensions
	Measure  Measurer
	// State persists the chosen direction; nil keeps it in memory only.
	State  prefs.Store
	Logger *slog.Logger
}

// Engine lays out nodes and remembers the chosen direction.
type Engine struct {
	spacing  Spacing
	fallback graph.Dimensions
	measure  Measurer
	state    prefs.Store
	logger   *slog.Logger
}

func NewEngine(opts Options) *Engine {
	if opts.Spacing == (Spacing{}) {
		opts.Spacing = DefaultSpacing
	}
	if opts.Fallback.Width <= 0 || opts.Fallback.Height <= 0 {
		opts.Fallback = FallbackSize
	}
	if opts.Measure == nil {
		opts.Measure = MeasuredDimensions
	}
	if opts.State == nil {
		opts.State = prefs.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		spacing:  opts.Spacing,
		fallback: opts.Fallback,
		measure:  opts.Measure,
		state:    opts.State,
		logger:   opts.Logger.With("component", "layout"),
	}
}

// Layout returns copies of nodes with positions and anchors set for dir.
// Inputs are not modified and edges are not repositioned. An invalid dir
// falls back to LR. Layout never fails: unmeasured nodes get the fallback
// size and state store errors are only logged.
func (e *Engine) Layout(ctx context.Context, nodes []graph.RenderableNode, edges []graph.RenderableEdge, dir Direction) []graph.RenderableNode {
	start := time.Now()
	dir = e.normalize(dir)
	e.saveDirection(ctx, dir)

	res := e.Compute(nodes, edges, dir)

	out := make([]graph.RenderableNode, len(nodes))
	for i, n := range nodes {
		p := res[n.ID]
		n.Position = p.TopLeft()
		n.SourcePosition = p.SourcePosition
		n.TargetPosition = p.TargetPosition
		out[i] = n
	}

	metrics.LayoutDuration.Observe(time.Since(start).Seconds())
	return out
}

// Compute runs the layered pass without persisting the direction.
func (e *Engine) Compute(nodes []graph.RenderableNode, edges []graph.RenderableEdge, dir Direction) Result {
	boxes := make([]Box, 0, len(nodes))
	for _, n := range nodes {
		size, ok := e.measure(n)
		if !ok || !usableSize(size) {
			size = e.fallback
			metrics.LayoutFallbackSize.Inc()
			e.logger.Warn("node missing dimensions, using fallback size",
				"node_id", n.ID, "width", size.Width, "height", size.Height)
		}
		boxes = append(boxes, Box{ID: n.ID, Width: size.Width, Height: size.Height})
	}

	links := make([]Link, 0, len(edges))
	for _, ed := range edges {
		links = append(links, Link{Source: ed.Source, Target: ed.Target})
	}

	return Compute(boxes, links, dir, e.spacing)
}

// AffectDirection re-anchors nodes for dir without moving them and
// persists dir.
func (e *Engine) AffectDirection(ctx context.Context, nodes []graph.RenderableNode, dir Direction) []graph.RenderableNode {
	dir = e.normalize(dir)
	e.saveDirection(ctx, dir)

	source, target := dir.Anchors()
	out := make([]graph.RenderableNode, len(nodes))
	for i, n := range nodes {
		n.SourcePosition = source
		n.TargetPosition = target
		out[i] = n
	}
	return out
}

// PreviousDirection returns the persisted direction, or LR when none is
// stored or it cannot be read.
func (e *Engine) PreviousDirection(ctx context.Context) Direction {
	v, ok, err := e.state.Get(ctx, DirectionKey)
	if err != nil {
		metrics.PrefsErrorsTotal.WithLabelValues("get").Inc()
		e.logger.Warn("failed to read previous direction", "error", err)
		return DefaultDirection
	}
	if !ok {
		return DefaultDirection
	}
	d, valid := ParseDirection(v)
	if !valid {
		e.logger.Warn("ignoring invalid stored direction", "value", v)
		return DefaultDirection
	}
	return d
}

// ResetState forgets every persisted preference, so the next render without
// an explicit direction uses LR again.
func (e *Engine) ResetState(ctx context.Context) error {
	if err := e.state.Clear(ctx); err != nil {
		metrics.PrefsErrorsTotal.WithLabelValues("clear").Inc()
		return fmt.Errorf("failed to reset layout state: %w", err)
	}
	return nil
}

func (e *Engine) normalize(dir Direction) Direction {
	if d, ok := ParseDirection(string(dir)); ok {
		return d
	}
	e.logger.Warn("invalid layout direction, using default", "direction", dir, "default", DefaultDirection)
	return DefaultDirection
}

func (e *Engine) saveDirection(ctx context.Context, dir Direction) {
	if err := e.state.Set(ctx, DirectionKey, string(dir)); err != nil {
		metrics.PrefsErrorsTotal.WithLabelValues("set").Inc()
		e.logger.Error("failed to persist layout direction", "direction", dir, "error", err)
	}
}
