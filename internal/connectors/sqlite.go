package connectors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct {
	baseDialect
}

func SQLiteDialect() Dialect {
	return sqliteDialect{baseDialect{
		identQuote:   '"',
		escaper:      strings.NewReplacer(`'`, `''`),
		trueLiteral:  "1",
		falseLiteral: "0",
	}}
}

func (sqliteDialect) Name() string { return "sqlite" }

// ColumnType is the identity: SQLite accepts any declared type and applies affinity.
func (sqliteDialect) ColumnType(dataType string) string { return dataType }

// QualifiedName folds schema and table into one identifier, SQLite has no schemas.
func (d sqliteDialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema + "." + table)
}

func (sqliteDialect) CreateSchemaSQL(string) string { return "" }

func (d sqliteDialect) CreateTableSQL(table *domain.ReplicationTable) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QualifiedName(table.SchemaName, table.TableName), columnDefinitions(d, table))
}

func (d sqliteDialect) DropTableSQL(schema, table string) string {
	return "DROP TABLE IF EXISTS " + d.QualifiedName(schema, table)
}

func (sqliteDialect) CallProcedureSQL(name string, _ int) (string, error) {
	return "", fmt.Errorf("sqlite does not support stored procedures: %s", name)
}

func (sqliteDialect) IsDuplicateKey(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// extended codes off
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

type SQLiteConnector struct {
	sqlConnector
	config config.DatabaseConfig
}

func NewSQLiteConnector(cfg config.DatabaseConfig) *SQLiteConnector {
	return &SQLiteConnector{
		sqlConnector: sqlConnector{name: cfg.Name, dialect: SQLiteDialect()},
		config:       cfg,
	}
}

func (s *SQLiteConnector) Connect() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", s.config.Path, s.config.Timeout*1000)
	// one connection: the file is locked per writer anyway
	return s.open("sqlite", dsn, func(p *poolSettings) {
		p.maxOpen = 1
		p.maxIdle = 1
		p.lifetime = 0
		p.pingTimeout = time.Duration(s.config.Timeout) * time.Second
	})
}
