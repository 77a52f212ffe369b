package connectors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"
)

const (
	oraUniqueViolated = 1
	oraNameInUse      = -955
	oraNoSuchTable    = -942
)

type oracleDialect struct {
	baseDialect
}

func OracleDialect() Dialect {
	return oracleDialect{baseDialect{
		identQuote:   '"',
		numbered:     ':',
		escaper:      strings.NewReplacer(`'`, `''`),
		trueLiteral:  "1",
		falseLiteral: "0",
	}}
}

func (oracleDialect) Name() string { return "oracle" }

func (oracleDialect) ColumnType(dataType string) string {
	base, size := sizedType(dataType)
	switch base {
	case "varchar":
		return "VARCHAR2" + size
	case "longtext", "text":
		return "CLOB"
	case domain.TypeDateTime:
		return "TIMESTAMP"
	case domain.TypeDate:
		return "DATE"
	case domain.TypeTime:
		// no TIME type; the canonical duration text is stored
		return "VARCHAR2(32)"
	case "bigint":
		return "NUMBER(19)"
	case "double":
		return "BINARY_DOUBLE"
	case "decimal":
		return "NUMBER" + size
	case "boolean":
		return "NUMBER(1)"
	case "longblob", "blob":
		return "BLOB"
	default:
		return dataType
	}
}

// BindExpr converts the canonical date and datetime strings server side.
func (oracleDialect) BindExpr(dataType, placeholder string) string {
	switch strings.ToLower(dataType) {
	case domain.TypeDate:
		return fmt.Sprintf("TO_DATE(%s, 'YYYY-MM-DD')", placeholder)
	case domain.TypeDateTime:
		return fmt.Sprintf("TO_TIMESTAMP(%s, 'YYYY-MM-DD HH24:MI:SS')", placeholder)
	default:
		return placeholder
	}
}

// Oracle schemas are users; they are never created here.
func (oracleDialect) CreateSchemaSQL(string) string { return "" }

func (d oracleDialect) CreateTableSQL(table *domain.ReplicationTable) string {
	create := fmt.Sprintf("CREATE TABLE %s (%s)",
		d.QualifiedName(table.SchemaName, table.TableName), columnDefinitions(d, table))
	return ignoreSQLCode(create, oraNameInUse)
}

func (d oracleDialect) DropTableSQL(schema, table string) string {
	return ignoreSQLCode("DROP TABLE "+d.QualifiedName(schema, table), oraNoSuchTable)
}

func (d oracleDialect) CallProcedureSQL(name string, argc int) (string, error) {
	marks := make([]string, argc)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("BEGIN %s(%s); END;", name, strings.Join(marks, ", ")), nil
}

func (oracleDialect) IsDuplicateKey(err error) bool {
	var oraErr *network.OracleError
	return errors.As(err, &oraErr) && oraErr.ErrCode == oraUniqueViolated
}

// ignoreSQLCode runs stmt through EXECUTE IMMEDIATE, swallowing one SQLCODE.
// Oracle has no IF [NOT] EXISTS syntax.
func ignoreSQLCode(stmt string, code int) string {
	return fmt.Sprintf(`BEGIN
   EXECUTE IMMEDIATE '%s';
 EXCEPTION
   WHEN OTHERS THEN
     IF SQLCODE != %d THEN
       RAISE;
     END IF;
 END;`, strings.ReplaceAll(stmt, "'", "''"), code)
}

type OracleConnector struct {
	sqlConnector
	config config.DatabaseConfig
}

func NewOracleConnector(cfg config.DatabaseConfig) *OracleConnector {
	return &OracleConnector{
		sqlConnector: sqlConnector{name: cfg.Name, dialect: OracleDialect()},
		config:       cfg,
	}
}

func (o *OracleConnector) Connect() error {
	options := map[string]string{
		"TIMEOUT": fmt.Sprint(o.config.Timeout),
	}
	connectionString := go_ora.BuildUrl(
		o.config.Host,
		o.config.Port,
		o.config.DBName,
		o.config.User,
		o.config.Password,
		options,
	)

	return o.open("oracle", connectionString, func(p *poolSettings) {
		p.maxOpen = 20
		p.maxIdle = 5
		p.lifetime = 5 * time.Minute
		p.pingTimeout = 10 * time.Second
	})
}
