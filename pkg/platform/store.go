package platform

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/commongraph/graphview/pkg/metrics"
)

// LoadTimeout bounds a shared fetch, which outlives any single caller's
// context.
const LoadTimeout = 30 * time.Second

// Fetcher retrieves the platform configuration from the backend.
type Fetcher interface {
	GetConfig(ctx context.Context) (*Config, error)
}

// Store caches the platform configuration for a session.
//
// Load fetches at most once unless forced. Concurrent loads share a single
// in-flight fetch. Fetch failures are logged and leave the previous state in
// place; callers check Loaded to learn whether a load succeeded.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger
	flight  singleflight.Group

	mu        sync.RWMutex
	cfg       *Config
	loaded    bool
	nodePolls map[string][]Poll
	edgePolls map[string][]Poll
}

// NewStore creates an empty, unloaded store.
func NewStore(fetcher Fetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetcher:   fetcher,
		logger:    logger.With("component", "config_store"),
		cfg:       &Config{},
		nodePolls: map[string][]Poll{},
		edgePolls: map[string][]Poll{},
	}
}

// Load fetches the configuration unless it is already loaded and force is
// false. It never returns an error.
func (s *Store) Load(ctx context.Context, force bool) {
	if !force && s.Loaded() {
		return
	}

	key := "load"
	if force {
		key = "reload"
	}

	// The fetch runs detached from the caller that started it, so a caller
	// that gives up does not fail the others waiting on the same flight.
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		if !force && s.Loaded() {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		cfg, err := s.fetcher.GetConfig(fetchCtx)
		if err != nil {
			metrics.StoreLoadTotal.WithLabelValues("config", "error").Inc()
			s.logger.Error("failed to load platform config", "error", err, "forced", force)
			return nil, err
		}
		if cfg == nil {
			cfg = &Config{}
		}
		s.apply(cfg)
		metrics.StoreLoadTotal.WithLabelValues("config", "ok").Inc()
		s.logger.Info("platform config loaded",
			"node_types", len(cfg.NodeTypes),
			"edge_types", len(cfg.EdgeTypes),
			"polls", len(cfg.Polls),
		)
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// apply installs a freshly fetched config and rebuilds the poll index.
func (s *Store) apply(cfg *Config) {
	nodePolls := make(map[string][]Poll)
	edgePolls := make(map[string][]Poll)
	for _, label := range sortedKeys(cfg.Polls) {
		p := cfg.Polls[label]
		p.Label = label
		for _, t := range p.NodeTypes {
			nodePolls[t] = append(nodePolls[t], p)
		}
		for _, t := range p.EdgeTypes {
			edgePolls[t] = append(edgePolls[t], p)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.nodePolls = nodePolls
	s.edgePolls = edgePolls
	s.loaded = true
}

// Loaded reports whether a load has succeeded since the last ClearCache.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ClearCache marks the store as not loaded. Previous values stay readable
// until the next successful load replaces them.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Config returns the current configuration. Callers must treat it as read-only.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// NodeType returns the definition of a node type.
func (s *Store) NodeType(name string) (TypeDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.cfg.NodeTypes[name]
	return def, ok
}

// EdgeType returns the definition of an edge type.
func (s *Store) EdgeType(name string) (TypeDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.cfg.EdgeTypes[name]
	return def, ok
}

// NodeTypePolls returns the polls applicable to a node type.
func (s *Store) NodeTypePolls(nodeType string) []Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Poll(nil), s.nodePolls[nodeType]...)
}

// EdgeTypePolls returns the polls applicable to an edge type.
func (s *Store) EdgeTypePolls(edgeType string) []Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Poll(nil), s.edgePolls[edgeType]...)
}

// Permissions returns the platform permissions with defaults applied by the
// predicate methods.
func (s *Store) Permissions() Permissions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Permissions
}

// DimmedStatuses returns the configured dimmed status set, if any.
func (s *Store) DimmedStatuses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cfg.DimmedStatuses...)
}

// Metadata returns the descriptive platform fields.
func (s *Store) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Metadata{
		Name:        s.cfg.PlatformName,
		Tagline:     s.cfg.PlatformTagline,
		Description: s.cfg.PlatformDescription,
		AllowSignup: s.cfg.AllowSignup,
	}
}
