package platform

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	mu    sync.Mutex
	cfg   *Config
	err   error

	// started is signalled when a fetch begins; gate, when set, holds the
	// fetch until closed or until its context ends.
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeFetcher) GetConfig(ctx context.Context) (*Config, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.err
}

func (f *fakeFetcher) set(cfg *Config, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg, f.err = cfg, err
}

const sampleConfig = `{
	"platform_name": "CommonGraph",
	"platform_tagline": "map causes",
	"allow_signup": true,
	"node_types": {
		"objective": {"style": {"color": "#ff0000", "border_width": "4px"}},
		"action": {"style": {"border_width": 2}, "polls": ["feasibility"]}
	},
	"edge_types": {
		"imply": {"style": {"marker_end": "arrowclosed"}},
		"require": {"style": {}, "direction": "inverted"}
	},
	"polls": {
		"feasibility": {"node_types": ["action", "objective"], "edge_types": []},
		"strength": {"node_types": [], "edge_types": ["imply"]},
		"support": {"node_types": ["objective"], "edge_types": ["imply", "require"]}
	},
	"permissions": {"create": true}
}`

func decodeSample(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(sampleConfig), &cfg))
	return &cfg
}

func TestStore_LoadOnce(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)

	s.Load(context.Background(), false)
	s.Load(context.Background(), false)

	assert.EqualValues(t, 1, f.calls.Load())
	assert.True(t, s.Loaded())
	assert.Equal(t, "CommonGraph", s.Metadata().Name)
	assert.True(t, s.Metadata().AllowSignup)
}

func TestStore_ForceAlwaysFetches(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)

	s.Load(context.Background(), true)
	s.Load(context.Background(), true)
	s.Load(context.Background(), false)

	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStore_ConcurrentFirstLoadsShareOneFetch(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t), delay: 50 * time.Millisecond}
	s := NewStore(f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Load(context.Background(), false)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	assert.True(t, s.Loaded())
}

func TestStore_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{
		cfg:     decodeSample(t),
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	s := NewStore(f, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		s.Load(ctxA, false)
	}()
	<-f.started

	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		s.Load(context.Background(), false)
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("cancelled caller should return without waiting for the fetch")
	}

	close(f.gate)
	<-doneB
	assert.True(t, s.Loaded(), "a live caller must see the shared fetch succeed")
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestStore_FailureKeepsPreviousState(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)
	s.Load(context.Background(), false)
	require.True(t, s.Loaded())

	f.set(nil, errors.New("connection refused"))
	s.Load(context.Background(), true)

	assert.True(t, s.Loaded())
	_, ok := s.NodeType("objective")
	assert.True(t, ok, "previous config must survive a failed reload")
}

func TestStore_FailureOnFirstLoad(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	s := NewStore(f, nil)

	s.Load(context.Background(), false)

	assert.False(t, s.Loaded())
	assert.True(t, s.Permissions().CanRead())
	assert.False(t, s.Permissions().CanCreate())
}

func TestStore_ClearCacheKeepsStaleValues(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)
	s.Load(context.Background(), false)

	s.ClearCache()

	assert.False(t, s.Loaded())
	def, ok := s.NodeType("objective")
	require.True(t, ok)
	assert.Equal(t, "#ff0000", def.Style.Color)

	s.Load(context.Background(), false)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestStore_PollIndex(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)
	s.Load(context.Background(), false)

	labels := func(polls []Poll) []string {
		out := make([]string, 0, len(polls))
		for _, p := range polls {
			out = append(out, p.Label)
		}
		return out
	}

	assert.Equal(t, []string{"feasibility", "support"}, labels(s.NodeTypePolls("objective")))
	assert.Equal(t, []string{"feasibility"}, labels(s.NodeTypePolls("action")))
	assert.Equal(t, []string{"strength", "support"}, labels(s.EdgeTypePolls("imply")))
	assert.Empty(t, s.NodeTypePolls("unknown"))
}

func TestStore_PermissionsDefaults(t *testing.T) {
	f := &fakeFetcher{cfg: decodeSample(t)}
	s := NewStore(f, nil)
	s.Load(context.Background(), false)

	p := s.Permissions()
	assert.True(t, p.CanRead())
	assert.True(t, p.CanCreate())
	assert.False(t, p.CanEdit())
	assert.False(t, p.CanDelete())
	assert.False(t, p.CanRate())
	assert.Equal(t, map[string]bool{"read": true, "create": true, "edit": false, "delete": false, "rate": false}, p.Summary())
}

func TestConfig_DecodeStyles(t *testing.T) {
	cfg := decodeSample(t)

	obj := cfg.NodeTypes["objective"]
	require.NotNil(t, obj.Style.BorderWidth)
	assert.EqualValues(t, 4, *obj.Style.BorderWidth)

	action := cfg.NodeTypes["action"]
	require.NotNil(t, action.Style.BorderWidth)
	assert.EqualValues(t, 2, *action.Style.BorderWidth)

	assert.True(t, cfg.EdgeTypes["require"].Direction.Inverted())
	assert.False(t, cfg.EdgeTypes["imply"].Direction.Inverted())
}

func TestConfig_Validate(t *testing.T) {
	cfg := decodeSample(t)

	assert.NoError(t, cfg.Validate(nil, nil))
	assert.NoError(t, cfg.Validate([]string{"objective", "action"}, []string{"imply", "require"}))

	err := cfg.Validate([]string{"objective"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node type "action"`)

	cfg.Polls["broken"] = Poll{NodeTypes: []string{"ghost"}}
	err = cfg.Validate(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown node type "ghost"`)
}
