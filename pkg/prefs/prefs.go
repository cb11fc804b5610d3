// Package prefs persists small pieces of client state, such as the last
// layout direction, across sessions.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	prefsredis "github.com/commongraph/graphview/pkg/prefs/redis"
)

// Store is a string key/value store. Get reports false for missing keys.
// Clear removes every key the store holds.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
	Close() error
}

var _ Store = (*prefsredis.Store)(nil)

// ErrInvalidKey is returned for keys a backend cannot hold.
var ErrInvalidKey = errors.New("invalid key")

// DefaultSQLitePath is used when a sqlite DSN names no file.
const DefaultSQLitePath = "graphview.db"

// Open builds a store from a DSN string:
//
//	memory | ""            in-process map
//	sqlite:<path>          SQLite file (default graphview.db)
//	file:<dir>             one file per key under dir
//	redis://host:port/db   Redis
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLiteStore(path)
	case strings.HasPrefix(dsn, "file:"):
		dir := strings.TrimPrefix(dsn, "file:")
		if dir == "" {
			return nil, fmt.Errorf("file state store needs a directory")
		}
		return NewFileStore(dir)
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := goredis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return prefsredis.NewStore(client), nil
	default:
		return nil, fmt.Errorf("unknown state store %q", dsn)
	}
}
