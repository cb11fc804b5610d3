// Package render ties the configuration and schema caches, the style
// resolver and the layout engine into one session object.
package render

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/layout"
	"github.com/commongraph/graphview/pkg/metrics"
	"github.com/commongraph/graphview/pkg/platform"
	"github.com/commongraph/graphview/pkg/prefs"
	"github.com/commongraph/graphview/pkg/schema"
	"github.com/commongraph/graphview/pkg/style"
)

var (
	ErrConfigUnavailable = errors.New("platform config not loaded")
	ErrSchemaUnavailable = errors.New("graph schema not loaded")
)

// Fetcher retrieves both the platform config and the graph schema.
// *client.Client satisfies it.
type Fetcher interface {
	platform.Fetcher
	schema.Fetcher
}

// Options configure a Session.
type Options struct {
	Theme          style.Theme
	DimmedStatuses []string
	State          prefs.Store
	Spacing        layout.Spacing
	Measure        layout.Measurer
	Logger         *slog.Logger
}

// Session is created once per process and shared by every consumer.
type Session struct {
	Config *platform.Store
	Schema *schema.Store
	Styles *style.Resolver
	Layout *layout.Engine

	logger *slog.Logger
}

func NewSession(fetcher Fetcher, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := platform.NewStore(fetcher, logger)
	return &Session{
		Config: cfg,
		Schema: schema.NewStore(fetcher, logger),
		Styles: style.NewResolver(cfg, style.Options{
			Theme:          opts.Theme,
			DimmedStatuses: opts.DimmedStatuses,
			Logger:         logger,
		}),
		Layout: layout.NewEngine(layout.Options{
			Spacing: opts.Spacing,
			Measure: opts.Measure,
			State:   opts.State,
			Logger:  logger,
		}),
		logger: logger.With("component", "render_session"),
	}
}

// Load loads config and schema in parallel. With force both are fetched
// again even if already loaded. The error only reports which cache is
// still empty; rendering works regardless.
func (s *Session) Load(ctx context.Context, force bool) error {
	var g errgroup.Group
	g.Go(func() error {
		s.Config.Load(ctx, force)
		return nil
	})
	g.Go(func() error {
		s.Schema.Load(ctx, force)
		return nil
	})
	_ = g.Wait()

	var errs []error
	if !s.Config.Loaded() {
		errs = append(errs, ErrConfigUnavailable)
	}
	if !s.Schema.Loaded() {
		errs = append(errs, ErrSchemaUnavailable)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	sc := s.Schema.Schema()
	if err := s.Config.Config().Validate(sc.NodeTypes, s.Schema.Labels()); err != nil {
		s.logger.Warn("platform config disagrees with graph schema", "error", err)
	}
	return nil
}

// Ready reports whether both caches hold data.
func (s *Session) Ready() bool {
	return s.Config.Loaded() && s.Schema.Loaded()
}

// Request is one render pass.
type Request struct {
	Nodes   []graph.NodeRecord `json:"nodes"`
	Edges   []graph.EdgeRecord `json:"edges"`
	ColorBy style.ColorBy      `json:"color_by"`
	// Direction empty means the persisted direction.
	Direction layout.Direction `json:"direction,omitempty"`
	// Dimensions are measured node sizes by node id.
	Dimensions map[string]graph.Dimensions `json:"dimensions,omitempty"`
}

// Result is the positioned output of a render pass.
type Result struct {
	Nodes     []graph.RenderableNode `json:"nodes"`
	Edges     []graph.RenderableEdge `json:"edges"`
	Direction layout.Direction       `json:"direction"`
}

// Render styles every record and lays the nodes out. Missing config or
// schema never blocks it; the session tries to load them first.
func (s *Session) Render(ctx context.Context, req Request) Result {
	if !s.Ready() {
		if err := s.Load(ctx, false); err != nil {
			s.logger.Warn("rendering with fallback styles", "error", err)
		}
	}

	colorBy := style.ParseColorBy(string(req.ColorBy))
	nodes := s.Styles.FormatNodes(req.Nodes, colorBy)
	for i := range nodes {
		if d, ok := req.Dimensions[nodes[i].ID]; ok {
			dims := d
			nodes[i].Dimensions = &dims
		}
	}
	edges := s.Styles.FormatEdges(req.Edges, colorBy)

	dir := req.Direction
	if dir == "" {
		dir = s.Layout.PreviousDirection(ctx)
	}
	if d, ok := layout.ParseDirection(string(dir)); ok {
		dir = d
	} else {
		s.logger.Warn("invalid layout direction, using default", "direction", dir)
		dir = layout.DefaultDirection
	}

	nodes = s.Layout.Layout(ctx, nodes, edges, dir)

	mode := string(colorBy)
	if mode == "" {
		mode = "none"
	}
	metrics.RenderTotal.WithLabelValues(string(dir), mode).Inc()

	return Result{Nodes: nodes, Edges: edges, Direction: dir}
}

// AffectDirection re-anchors already positioned nodes and persists dir.
func (s *Session) AffectDirection(ctx context.Context, nodes []graph.RenderableNode, dir layout.Direction) []graph.RenderableNode {
	return s.Layout.AffectDirection(ctx, nodes, dir)
}

// ClearCache marks config and schema unloaded. Their last values stay
// readable until the next successful load replaces them.
func (s *Session) ClearCache() {
	s.Config.ClearCache()
	s.Schema.ClearCache()
}

// ResetState clears persisted client state such as the last direction.
func (s *Session) ResetState(ctx context.Context) error {
	return s.Layout.ResetState(ctx)
}

// PreviousDirection returns the persisted direction, LR by default.
func (s *Session) PreviousDirection(ctx context.Context) layout.Direction {
	return s.Layout.PreviousDirection(ctx)
}
