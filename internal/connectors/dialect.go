package connectors

import (
	"fmt"
	"strconv"
	"strings"

	"db_replicator/internal/domain"
)

// Dialect holds everything that differs between SQL engines: identifier
// quoting, bind placeholders, literal escaping, type names and DDL.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	QualifiedName(schema, table string) string
	// Placeholder returns the bind marker of the i-th (1-based) argument.
	Placeholder(i int) string
	// BindExpr wraps a placeholder for columns that need an explicit conversion.
	BindExpr(dataType, placeholder string) string
	EscapeString(s string) string
	Literal(v any) string
	ColumnType(dataType string) string
	CreateSchemaSQL(schema string) string
	CreateTableSQL(table *domain.ReplicationTable) string
	DropTableSQL(schema, table string) string
	CallProcedureSQL(name string, argc int) (string, error)
	IsDuplicateKey(err error) bool
	// RenderSQL inlines args as escaped literals. Used for logging only.
	RenderSQL(query string, args []any) string
}

// baseDialect implements the parts shared by all engines.
type baseDialect struct {
	identQuote   byte
	numbered     byte // 0 for positional "?" markers
	escaper      *strings.Replacer
	trueLiteral  string
	falseLiteral string
}

func (b baseDialect) QuoteIdentifier(name string) string {
	q := string(b.identQuote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func (b baseDialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return b.QuoteIdentifier(table)
	}
	return b.QuoteIdentifier(schema) + "." + b.QuoteIdentifier(table)
}

func (b baseDialect) Placeholder(i int) string {
	if b.numbered == 0 {
		return "?"
	}
	return string(b.numbered) + strconv.Itoa(i)
}

func (b baseDialect) BindExpr(_ string, placeholder string) string {
	return placeholder
}

func (b baseDialect) EscapeString(s string) string {
	return b.escaper.Replace(s)
}

func (b baseDialect) Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return b.trueLiteral
		}
		return b.falseLiteral
	case int, int32, int64, float64:
		return fmt.Sprint(x)
	case string:
		return "'" + b.EscapeString(x) + "'"
	default:
		return "'" + b.EscapeString(fmt.Sprint(x)) + "'"
	}
}

func (b baseDialect) DropTableSQL(schema, table string) string {
	return "DROP TABLE IF EXISTS " + b.QualifiedName(schema, table)
}

// RenderSQL walks the query, skipping quoted identifiers and string literals,
// and replaces every bind marker with the literal of its argument.
func (b baseDialect) RenderSQL(query string, args []any) string {
	var sb strings.Builder
	next := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == b.identQuote || c == '\'':
			quote = c
			sb.WriteByte(c)
		case b.numbered == 0 && c == '?':
			if next < len(args) {
				sb.WriteString(b.Literal(args[next]))
			} else {
				sb.WriteByte(c)
			}
			next++
		case b.numbered != 0 && c == b.numbered && i+1 < len(query) && isDigit(query[i+1]):
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			if n >= 1 && n <= len(args) {
				sb.WriteString(b.Literal(args[n-1]))
			} else {
				sb.WriteString(query[i:j])
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// columnDefinitions builds "name type [NOT NULL], ..., PRIMARY KEY (...)".
func columnDefinitions(d Dialect, table *domain.ReplicationTable) string {
	var defs []string
	var keys []string
	for _, col := range table.Columns {
		def := fmt.Sprintf("%s %s", d.QuoteIdentifier(col.Name), d.ColumnType(col.DataType))
		if col.PrimaryKey {
			def += " NOT NULL"
			keys = append(keys, d.QuoteIdentifier(col.Name))
		}
		defs = append(defs, def)
	}
	if len(keys) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ",")))
	}
	return strings.Join(defs, ",")
}

// sizedType splits "varchar(255)" into "varchar" and "(255)".
func sizedType(dataType string) (string, string) {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(dt, '('); i > 0 {
		return dt[:i], dt[i:]
	}
	return dt, ""
}

// DialectFor returns the dialect of a target type.
func DialectFor(targetType string) (Dialect, error) {
	switch targetType {
	case "mysql", "mariadb":
		return MySQLDialect(), nil
	case "oracle":
		return OracleDialect(), nil
	case "postgres":
		return PostgresDialect(), nil
	case "sqlite":
		return SQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unknown target type: %s", targetType)
	}
}
