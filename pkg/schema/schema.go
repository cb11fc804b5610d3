// Package schema answers which connections the graph schema permits.
//
// The schema is advisory: it narrows the choices offered while editing, and
// the backend remains the authority on what it accepts. A missing rule is
// therefore read as "unconstrained", never as "forbidden".
package schema

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/commongraph/graphview/pkg/metrics"
)

// Rule is one permitted (source type, target type, label) triple.
type Rule struct {
	SourceType string `json:"source_type"`
	TargetType string `json:"target_type"`
	Label      string `json:"label"`
}

// Schema is the payload of GET /graph/schema.
type Schema struct {
	NodeTypes []string `json:"node_types"`
	EdgeTypes []Rule   `json:"edge_types"`
}

// LoadTimeout bounds a shared fetch, which outlives any single caller's
// context.
const LoadTimeout = 30 * time.Second

// Fetcher retrieves the schema from the backend.
type Fetcher interface {
	GetSchema(ctx context.Context) (*Schema, error)
}

// Store caches the schema and answers constraint queries. Rules are scanned
// linearly; schemas are small.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger
	flight  singleflight.Group

	mu     sync.RWMutex
	schema Schema
	loaded bool
}

// NewStore creates an unloaded store.
func NewStore(fetcher Fetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetcher: fetcher,
		logger:  logger.With("component", "schema_store"),
	}
}

// Load fetches the schema unless it is already loaded and force is false.
// Failures are logged and leave the current schema and loaded flag as they
// were, so a failed forced reload keeps serving the previous schema.
func (s *Store) Load(ctx context.Context, force bool) {
	if !force && s.Loaded() {
		return
	}

	key := "load"
	if force {
		key = "reload"
	}

	ch := s.flight.DoChan(key, func() (interface{}, error) {
		if !force && s.Loaded() {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()

		sc, err := s.fetcher.GetSchema(fetchCtx)
		if err != nil {
			metrics.StoreLoadTotal.WithLabelValues("schema", "error").Inc()
			s.logger.Error("failed to load graph schema", "error", err, "forced", force)
			return nil, err
		}
		if sc == nil {
			sc = &Schema{}
		}
		s.Set(*sc)
		metrics.StoreLoadTotal.WithLabelValues("schema", "ok").Inc()
		s.logger.Info("graph schema loaded", "node_types", len(sc.NodeTypes), "rules", len(sc.EdgeTypes))
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// Set installs a schema directly and marks the store loaded.
func (s *Store) Set(sc Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = Schema{
		NodeTypes: append([]string(nil), sc.NodeTypes...),
		EdgeTypes: append([]Rule(nil), sc.EdgeTypes...),
	}
	s.loaded = true
}

// Loaded reports whether a schema is available.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ClearCache marks the store unloaded so the next Load fetches again.
// The current schema keeps answering queries until then.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Schema returns a copy of the current schema.
func (s *Store) Schema() Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Schema{
		NodeTypes: append([]string(nil), s.schema.NodeTypes...),
		EdgeTypes: append([]Rule(nil), s.schema.EdgeTypes...),
	}
}

// NodeTypes returns every declared node type.
func (s *Store) NodeTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dedupe(s.schema.NodeTypes)
}

// Labels returns every distinct edge label.
func (s *Store) Labels() []string {
	return s.AllowedEdgeTypes("", "")
}

// AllowedEdgeTypes returns the labels usable between the given endpoint
// types. An empty argument means that endpoint is not chosen yet.
func (s *Store) AllowedEdgeTypes(source, target string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var labels []string
	for _, r := range s.schema.EdgeTypes {
		switch {
		case source != "" && target != "":
			if r.SourceType != source || r.TargetType != target {
				continue
			}
		case source != "":
			if r.SourceType != source {
				continue
			}
		case target != "":
			if r.TargetType != target {
				continue
			}
		}
		labels = append(labels, r.Label)
	}
	return dedupe(labels)
}

// AllowedTargetTypes returns the node types a new edge from source may point
// to. It falls back to every node type when source is empty, when there are
// no rules, or when no rule mentions source.
func (s *Store) AllowedTargetTypes(source string) []string {
	return s.allowed(source, func(r Rule) (string, string) { return r.SourceType, r.TargetType })
}

// AllowedSourceTypes mirrors AllowedTargetTypes for the other endpoint.
func (s *Store) AllowedSourceTypes(target string) []string {
	return s.allowed(target, func(r Rule) (string, string) { return r.TargetType, r.SourceType })
}

// allowed picks, for rules whose "from" end equals known, their "to" end.
func (s *Store) allowed(known string, ends func(Rule) (from, to string)) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := dedupe(s.schema.NodeTypes)
	if known == "" || len(s.schema.EdgeTypes) == 0 {
		return all
	}

	var out []string
	for _, r := range s.schema.EdgeTypes {
		if from, to := ends(r); from == known {
			out = append(out, to)
		}
	}
	if len(out) == 0 {
		return all
	}
	return dedupe(out)
}

// dedupe keeps the first occurrence of every value and never returns nil.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
