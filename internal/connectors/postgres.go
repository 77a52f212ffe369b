package connectors

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueViolation = "23505"

type postgresDialect struct {
	baseDialect
}

func PostgresDialect() Dialect {
	return postgresDialect{baseDialect{
		identQuote:   '"',
		numbered:     '$',
		escaper:      strings.NewReplacer(`'`, `''`),
		trueLiteral:  "TRUE",
		falseLiteral: "FALSE",
	}}
}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) ColumnType(dataType string) string {
	base, size := sizedType(dataType)
	switch base {
	case "longtext":
		return "text"
	case domain.TypeDateTime:
		return "timestamp"
	case "double":
		return "double precision"
	case "decimal":
		return "numeric" + size
	case "longblob", "blob":
		return "bytea"
	default:
		return dataType
	}
}

func (d postgresDialect) CreateSchemaSQL(schema string) string {
	if schema == "" {
		return ""
	}
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdentifier(schema)
}

func (d postgresDialect) CreateTableSQL(table *domain.ReplicationTable) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QualifiedName(table.SchemaName, table.TableName), columnDefinitions(d, table))
}

func (d postgresDialect) CallProcedureSQL(name string, argc int) (string, error) {
	marks := make([]string, argc)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("CALL %s(%s)", name, strings.Join(marks, ", ")), nil
}

func (postgresDialect) IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type PostgresConnector struct {
	sqlConnector
	config config.DatabaseConfig
}

func NewPostgresConnector(cfg config.DatabaseConfig) *PostgresConnector {
	return &PostgresConnector{
		sqlConnector: sqlConnector{name: cfg.Name, dialect: PostgresDialect()},
		config:       cfg,
	}
}

func (p *PostgresConnector) Connect() error {
	q := url.Values{}
	q.Set("sslmode", p.config.SSLMode)
	q.Set("connect_timeout", fmt.Sprint(p.config.Timeout))
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.config.User, p.config.Password),
		Host:     fmt.Sprintf("%s:%d", p.config.Host, p.config.Port),
		Path:     "/" + p.config.DBName,
		RawQuery: q.Encode(),
	}

	return p.open("pgx", dsn.String(), func(ps *poolSettings) {
		ps.maxOpen = 10
		ps.maxIdle = 2
		ps.lifetime = 5 * time.Minute
		ps.pingTimeout = 5 * time.Second
	})
}
