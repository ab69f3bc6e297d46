package groupdex

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/groupdex/internal/usecase/search"
)

// clientConfig accumulates functional options for New.
type clientConfig struct {
	relDriver string
	relDSN    string

	chAddrs       []string
	chDatabase    string
	chUsername    string
	chPassword    string
	chTable       string
	chTimeColumn  string
	chDialect     string
	chDialTimeout time.Duration

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	searchOpts search.Options
	logger     *zap.Logger
}

// Option configures the Client.
type Option func(*clientConfig)

// WithPostgres selects PostgreSQL as the relational group store.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.relDriver = "postgres"
		c.relDSN = dsn
	}
}

// WithSQLite selects SQLite as the relational group store. Intended for
// tests and single-node setups.
func WithSQLite(dsn string) Option {
	return func(c *clientConfig) {
		c.relDriver = "sqlite"
		c.relDSN = dsn
	}
}

// WithClickHouse points the client at the analytical event store.
func WithClickHouse(addrs []string, database, username, password string) Option {
	return func(c *clientConfig) {
		c.chAddrs = addrs
		c.chDatabase = database
		c.chUsername = username
		c.chPassword = password
	}
}

// WithEventsTable overrides the analytical table and its time column.
func WithEventsTable(table, timeColumn string) Option {
	return func(c *clientConfig) {
		c.chTable = table
		c.chTimeColumn = timeColumn
	}
}

// WithDialect selects the search dialect: "events" (default) or "groups".
func WithDialect(name string) Option {
	return func(c *clientConfig) { c.chDialect = name }
}

// WithRedisCache enables the hit-estimate cache.
func WithRedisCache(addrs []string, password string, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheAddrs = addrs
		c.cachePassword = password
		c.cacheTTL = ttl
	}
}

// WithSearchOptions overrides the executor tuning knobs.
func WithSearchOptions(opts search.Options) Option {
	return func(c *clientConfig) { c.searchOpts = opts }
}

// WithLogger sets the client logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
