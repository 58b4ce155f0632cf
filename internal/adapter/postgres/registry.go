package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portcullisdb/portcullis/internal/config"
	"github.com/portcullisdb/portcullis/internal/core/domain"
)

// PoolSettings bound every target's connection pool.
type PoolSettings struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Registry owns one bounded connection pool per named backend target. It is
// built once at startup, passed explicitly to whoever needs it, and is the
// only component that hands out connections.
type Registry struct {
	pools map[string]*pgxpool.Pool
}

// NewRegistry connects and pings every configured target. A single failing
// target fails startup; pools opened so far are closed.
func NewRegistry(ctx context.Context, targets []config.Target, settings PoolSettings) (*Registry, error) {
	r := &Registry{pools: make(map[string]*pgxpool.Pool, len(targets))}
	for _, t := range targets {
		pool, err := newPool(ctx, t, settings)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.pools[t.Name] = pool
	}
	return r, nil
}

func newPool(ctx context.Context, t config.Target, s PoolSettings) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(t.DSN())
	if err != nil {
		return nil, domain.NewConfigError("target %q: malformed connection parameters: %v", t.Name, err)
	}
	if s.MaxConns > 0 {
		pc.MaxConns = s.MaxConns
	}
	pc.MinConns = s.MinConns
	if s.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = s.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, connectError(t.Name, pc, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, connectError(t.Name, pc, err)
	}

	return pool, nil
}

// connectError reports the target's non-secret identifying metadata (name,
// host, port, database) alongside the sanitized underlying error.
func connectError(target string, pc *pgxpool.Config, err error) error {
	ge := domain.NewBackendError(target, err)
	cc := pc.ConnConfig
	ge.Message = fmt.Sprintf("connecting to %s:%d/%s: %s", cc.Host, cc.Port, cc.Database, ge.Message)
	return ge
}

// Pool returns the named target's pool. Unknown names are a configuration
// error, never a silent fallback.
func (r *Registry) Pool(name string) (*pgxpool.Pool, error) {
	pool, ok := r.pools[name]
	if !ok {
		return nil, domain.NewConfigError("unknown target %q", name)
	}
	return pool, nil
}

// Names returns the configured target names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close drains and closes every pool; it blocks until in-flight
// acquisitions are released.
func (r *Registry) Close() {
	for _, pool := range r.pools {
		pool.Close()
	}
}
