package connectors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

type mysqlDialect struct {
	baseDialect
}

// MySQLDialect quotes identifiers with backticks and escapes backslash, quote
// and the '@' introducer inside literals.
func MySQLDialect() Dialect {
	return mysqlDialect{baseDialect{
		identQuote:   '`',
		escaper:      strings.NewReplacer(`\`, `\\`, `'`, `\'`, `@`, `\@`),
		trueLiteral:  "1",
		falseLiteral: "0",
	}}
}

func (mysqlDialect) Name() string { return "mysql" }

// ColumnType is the identity: column types are declared in MySQL terms.
func (mysqlDialect) ColumnType(dataType string) string { return dataType }

func (d mysqlDialect) CreateSchemaSQL(schema string) string {
	if schema == "" {
		return ""
	}
	return "CREATE DATABASE IF NOT EXISTS " + d.QuoteIdentifier(schema)
}

func (d mysqlDialect) CreateTableSQL(table *domain.ReplicationTable) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QualifiedName(table.SchemaName, table.TableName), columnDefinitions(d, table))
}

func (d mysqlDialect) CallProcedureSQL(name string, argc int) (string, error) {
	marks := make([]string, argc)
	for i := range marks {
		marks[i] = "?"
	}
	return fmt.Sprintf("CALL %s(%s)", name, strings.Join(marks, ", ")), nil
}

func (mysqlDialect) IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

type MariaDBConnector struct {
	sqlConnector
	config config.DatabaseConfig
}

func NewMariaDBConnector(cfg config.DatabaseConfig) *MariaDBConnector {
	return &MariaDBConnector{
		sqlConnector: sqlConnector{name: cfg.Name, dialect: MySQLDialect()},
		config:       cfg,
	}
}

func (m *MariaDBConnector) Connect() error {
	dsn := mysql.NewConfig()
	dsn.User = m.config.User
	dsn.Passwd = m.config.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	dsn.DBName = m.config.DBName
	dsn.ParseTime = true
	dsn.Timeout = time.Duration(m.config.Timeout) * time.Second

	return m.open("mysql", dsn.FormatDSN(), func(p *poolSettings) {
		p.maxOpen = 25
		p.maxIdle = 25
		p.lifetime = 5 * time.Minute
		p.pingTimeout = 3 * time.Second
	})
}
