package connectors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"
)

type DatabaseConnector interface {
	// Connection lifecycle
	Connect() error
	Ping() error
	Disconnect() error

	// Statement building and per operation connections.
	// Acquire returns a dedicated connection. The caller must Close it.
	Dialect() Dialect
	Acquire(ctx context.Context) (*sql.Conn, error)

	// DDL, both idempotent
	EnsureTable(ctx context.Context, table *domain.ReplicationTable) error
	DropTable(ctx context.Context, schema, table string) error

	// Discovery count of a shape
	GetCount(ctx context.Context, shape *domain.Shape, disabled bool) (domain.Count, error)

	// Post procedures, returns the affected rows
	ExecuteProcedure(ctx context.Context, procName string, args ...interface{}) (int, error)
}

// NewConnector builds the connector of a configured target without connecting it.
func NewConnector(cfg config.DatabaseConfig) (DatabaseConnector, error) {
	switch cfg.Type {
	case config.TypeMySQL, config.TypeMariaDB:
		return NewMariaDBConnector(cfg), nil
	case config.TypeOracle:
		return NewOracleConnector(cfg), nil
	case config.TypePostgres:
		return NewPostgresConnector(cfg), nil
	case config.TypeSQLite:
		return NewSQLiteConnector(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	lifetime    time.Duration
	pingTimeout time.Duration
}

// sqlConnector is the database/sql part shared by every engine. Engines
// embed it and only differ in DSN, pool settings and dialect.
type sqlConnector struct {
	name        string
	dialect     Dialect
	db          *sql.DB
	pingTimeout time.Duration
}

func (c *sqlConnector) open(driver, dsn string, configure func(*poolSettings)) error {
	settings := poolSettings{pingTimeout: 3 * time.Second}
	configure(&settings)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	db.SetMaxOpenConns(settings.maxOpen)
	db.SetMaxIdleConns(settings.maxIdle)
	db.SetConnMaxLifetime(settings.lifetime)

	c.db = db
	c.pingTimeout = settings.pingTimeout
	if err := c.Ping(); err != nil {
		db.Close()
		c.db = nil
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (c *sqlConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *sqlConnector) Ping() error {
	if c.db == nil {
		return fmt.Errorf("not connected to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.pingTimeout)
	defer cancel()

	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Dialect() Dialect { return c.dialect }

func (c *sqlConnector) Acquire(ctx context.Context) (*sql.Conn, error) {
	if c.db == nil {
		return nil, fmt.Errorf("%s: not connected to database", c.name)
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire connection: %w", c.name, err)
	}
	return conn, nil
}

func (c *sqlConnector) EnsureTable(ctx context.Context, table *domain.ReplicationTable) error {
	if table == nil || len(table.Columns) == 0 {
		return fmt.Errorf("table definition cannot be empty")
	}

	conn, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if stmt := c.dialect.CreateSchemaSQL(table.SchemaName); stmt != "" {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema %s failed: %w", table.SchemaName, err)
		}
	}
	if _, err := conn.ExecContext(ctx, c.dialect.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s failed: %w", table.ID(), err)
	}
	return nil
}

func (c *sqlConnector) DropTable(ctx context.Context, schema, table string) error {
	conn, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, c.dialect.DropTableSQL(schema, table)); err != nil {
		return fmt.Errorf("drop table %s failed: %w", c.dialect.QualifiedName(schema, table), err)
	}
	return nil
}

// GetCount counts the records a shape would read. The shape query wins over
// the shape id used as a table name.
func (c *sqlConnector) GetCount(ctx context.Context, shape *domain.Shape, disabled bool) (domain.Count, error) {
	unavailable := domain.Count{Kind: domain.CountUnavailable}
	if shape == nil {
		return unavailable, fmt.Errorf("shape cannot be nil")
	}
	if disabled {
		return unavailable, nil
	}

	source := shape.Query
	if source == "" {
		source = "SELECT * FROM " + c.dialect.QuoteIdentifier(shape.ID)
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM (%s) q", source)

	conn, err := c.Acquire(ctx)
	if err != nil {
		return unavailable, err
	}
	defer conn.Close()

	var count int64
	err = conn.QueryRowContext(ctx, query).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return unavailable, nil
	}
	if err != nil {
		return unavailable, fmt.Errorf("count query failed: %w", err)
	}
	return domain.Count{Kind: domain.CountExact, Value: count}, nil
}

func (c *sqlConnector) ExecuteProcedure(ctx context.Context, procName string, args ...interface{}) (int, error) {
	query, err := c.dialect.CallProcedureSQL(procName, len(args))
	if err != nil {
		return 0, err
	}

	conn, err := c.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute procedure %s: %w", procName, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for procedure %s: %w", procName, err)
	}

	return int(rowsAffected), nil
}
