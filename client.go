// Package groupdex is the embedded SDK for the federated issue-group search
// engine: relational triage state joined with analytical event rankings.
package groupdex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/db/clickhouse"
	eventrepo "github.com/kailas-cloud/groupdex/internal/repository/event"
	grouprepo "github.com/kailas-cloud/groupdex/internal/repository/group"
	"github.com/kailas-cloud/groupdex/internal/repository/hitcache"
	"github.com/kailas-cloud/groupdex/internal/usecase/search"
)

// Client is the groupdex SDK entry point.
type Client struct {
	relational *sql.DB
	events     db.Store
	cache      rueidis.Client
	svc        *search.Service
}

// New creates a groupdex Client and connects to both stores.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	if cfg.relDSN == "" {
		return nil, errors.New("groupdex: relational store required (use WithPostgres or WithSQLite)")
	}
	if len(cfg.chAddrs) == 0 {
		return nil, errors.New("groupdex: analytical store required (use WithClickHouse)")
	}

	// lib/pq registers as "postgres", modernc.org/sqlite as "sqlite"
	relational, err := sql.Open(cfg.relDriver, cfg.relDSN)
	if err != nil {
		return nil, fmt.Errorf("groupdex: open relational store: %w", err)
	}

	events, err := clickhouse.NewStore(clickhouse.Config{
		Addrs:       cfg.chAddrs,
		Database:    cfg.chDatabase,
		Username:    cfg.chUsername,
		Password:    cfg.chPassword,
		Table:       cfg.chTable,
		TimeColumn:  cfg.chTimeColumn,
		DialTimeout: cfg.chDialTimeout,
	})
	if err != nil {
		_ = relational.Close()
		return nil, fmt.Errorf("groupdex: open analytical store: %w", err)
	}

	dialect := search.EventsDialect
	if cfg.chDialect == "groups" {
		dialect = search.GroupsDialect
	}

	groups := grouprepo.New(relational, cfg.relDriver)
	svc := search.New(groups, eventrepo.New(events), dialect, cfg.searchOpts, cfg.logger).
		WithReleaseResolver(groups)

	c := &Client{relational: relational, events: events, svc: svc}

	if len(cfg.cacheAddrs) > 0 {
		rc, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: cfg.cacheAddrs,
			Password:    cfg.cachePassword,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("groupdex: connect cache: %w", err)
		}
		c.cache = rc
		svc.WithEstimateCache(hitcache.New(rc, int64(cfg.cacheTTL/time.Second)))
	}

	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
	if c.events != nil {
		_ = c.events.Close()
	}
	if c.relational != nil {
		_ = c.relational.Close()
	}
}

// Ping checks connectivity to both stores.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.relational.PingContext(ctx); err != nil {
		return fmt.Errorf("ping relational store: %w", err)
	}
	if err := c.events.Ping(ctx); err != nil {
		return fmt.Errorf("ping analytical store: %w", err)
	}
	return nil
}

// Search runs one federated search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	q, err := req.toInternal()
	if err != nil {
		return SearchResult{}, err
	}
	page, err := c.svc.Query(ctx, q)
	if err != nil {
		return SearchResult{}, fmt.Errorf("groupdex: %w", err)
	}
	return resultFromInternal(page), nil
}
