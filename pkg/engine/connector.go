package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectorConfig holds PostgreSQL connection settings.
type ConnectorConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxConns    int32
	MinConns    int32
	MaxIdleTime time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() ConnectorConfig {
	return ConnectorConfig{
		Host:        "localhost",
		Port:        5432,
		Database:    "chameleon",
		User:        "postgres",
		Password:    "",
		MaxConns:    10,
		MinConns:    2,
		MaxIdleTime: 5 * time.Minute,
	}
}

// ConnectionString builds the pgx connection string.
func (c ConnectorConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, c.Port, c.Database, c.User, c.Password,
	)
}

// Connector manages the PostgreSQL connection pool and satisfies DBHandle,
// giving the unit-of-work engine transactional query/exec access through
// one concrete type, the way the teacher's Connector backed its mutation
// builders directly.
type Connector struct {
	pool   *pgxpool.Pool
	config ConnectorConfig

	tx pgx.Tx

	lastInsertID string
}

// NewConnector creates a new connector (does not connect yet).
func NewConnector(config ConnectorConfig) *Connector {
	return &Connector{config: config}
}

// Connect establishes the connection pool.
func (c *Connector) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(c.config.ConnectionString())
	if err != nil {
		return fmt.Errorf("invalid connection config: %w", err)
	}

	poolConfig.MaxConns = c.config.MaxConns
	poolConfig.MinConns = c.config.MinConns
	poolConfig.MaxConnIdleTime = c.config.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	c.pool = pool
	return nil
}

// Pool returns the underlying connection pool. Returns nil if not connected.
func (c *Connector) Pool() *pgxpool.Pool {
	return c.pool
}

// IsConnected returns true if the pool is active.
func (c *Connector) IsConnected() bool {
	return c.pool != nil
}

// Ping verifies the connection is alive.
func (c *Connector) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected")
	}
	return c.pool.Ping(ctx)
}

// Close closes the connection pool.
func (c *Connector) Close() {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}

// querier is whichever of the pool or the active transaction is currently
// live — a flush runs every statement against the open transaction once
// BeginTx has been called, and directly against the pool otherwise.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (c *Connector) querier() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

// Exec implements DBHandle.
func (c *Connector) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	if !c.IsConnected() {
		return 0, fmt.Errorf("not connected")
	}
	tag, err := c.querier().Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query implements DBHandle (used by the query builders and the hydrator
// through queryDB's forwarding wrapper).
func (c *Connector) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	rows, err := c.querier().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRowsAdapter{rows: rows}, nil
}

// Prepare returns a Statement bound to sql; pgx plans implicitly per
// Exec/Query call, so Prepare does no server round trip of its own — it
// exists so DBHandle matches the external database interface contract
// (spec §6) for targets whose driver needs an explicit prepare step.
func (c *Connector) Prepare(ctx context.Context, sql string) (Statement, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	return &statement{conn: c, sql: sql}, nil
}

// BeginTx starts a transaction; subsequent Exec/Query calls run inside it
// until Commit or Rollback.
func (c *Connector) BeginTx(ctx context.Context) error {
	if c.tx != nil {
		return fmt.Errorf("engine: transaction already in progress")
	}
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

// Commit commits the active transaction.
func (c *Connector) Commit(ctx context.Context) error {
	if c.tx == nil {
		return fmt.Errorf("engine: no transaction in progress")
	}
	err := c.tx.Commit(ctx)
	c.tx = nil
	return err
}

// Rollback rolls back the active transaction.
func (c *Connector) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback(ctx)
	c.tx = nil
	return err
}

// InTransaction reports whether a transaction is currently open.
func (c *Connector) InTransaction() bool {
	return c.tx != nil
}

// LastInsertID returns the id most recently stored by setLastInsertID.
// PostgreSQL has no server-assigned last-insert-id concept, so this is
// connector-tracked state rather than a driver feature. The flush protocol
// does not use it: it reads new ids from the INSERT's RETURNING row, and
// nothing in this package calls setLastInsertID.
func (c *Connector) LastInsertID() string {
	return c.lastInsertID
}

func (c *Connector) setLastInsertID(id string) {
	c.lastInsertID = id
}

// Quote double-quotes a PostgreSQL identifier.
func (c *Connector) Quote(s string) string {
	return `"` + s + `"`
}

// statement is a thin Statement wrapper; Exec/Query simply forward to the
// owning Connector against the sql captured at Prepare time.
type statement struct {
	conn *Connector
	sql  string
}

func (s *statement) Exec(ctx context.Context, args ...interface{}) (int64, error) {
	return s.conn.Exec(ctx, s.sql, args...)
}

func (s *statement) Query(ctx context.Context, args ...interface{}) (Rows, error) {
	return s.conn.Query(ctx, s.sql, args...)
}

func (s *statement) Close() error { return nil }

// pgxRowsAdapter adapts *pgx.Rows (whose FieldDescriptions returns
// []pgconn.FieldDescription) to this package's Rows interface (which
// returns plain column-name strings, the shape the query builders and
// hydrator consume without needing to import pgconn themselves).
type pgxRowsAdapter struct {
	rows pgx.Rows
}

func (a *pgxRowsAdapter) Next() bool                     { return a.rows.Next() }
func (a *pgxRowsAdapter) Scan(dest ...interface{}) error { return a.rows.Scan(dest...) }
func (a *pgxRowsAdapter) Values() ([]interface{}, error) { return a.rows.Values() }
func (a *pgxRowsAdapter) Err() error                     { return a.rows.Err() }
func (a *pgxRowsAdapter) Close()                         { a.rows.Close() }
func (a *pgxRowsAdapter) FieldDescriptions() []string {
	descs := a.rows.FieldDescriptions()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = string(d.Name)
	}
	return names
}
