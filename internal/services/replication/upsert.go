package replication

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db_replicator/internal/config"
	"db_replicator/internal/connectors"
	"db_replicator/internal/domain"
	"db_replicator/internal/logger"

	"github.com/sirupsen/logrus"
)

// Store is the part of a connector the upsert engine needs.
type Store interface {
	Dialect() connectors.Dialect
	Acquire(ctx context.Context) (*sql.Conn, error)
}

// Upserter applies one record to a table, keeping at most one row per key.
type Upserter interface {
	UpsertRecord(ctx context.Context, table *domain.ReplicationTable, record domain.Record) error
	DeleteRecord(ctx context.Context, table *domain.ReplicationTable, record domain.Record) error
}

// NewUpserter returns the upserter of the configured strategy.
func NewUpserter(strategy string, store Store, log *logger.Log) (Upserter, error) {
	switch strategy {
	case "", config.StrategyExists:
		return NewExistsUpserter(store, log), nil
	case config.StrategyOptimistic:
		return NewOptimisticUpserter(store, log), nil
	default:
		return nil, domain.NewError(domain.KindConfiguration, "new upserter",
			fmt.Sprintf("unknown upsert strategy %q", strategy))
	}
}

// boundColumn is a column with the argument bound for it.
type boundColumn struct {
	column domain.ReplicationColumn
	arg    any
}

// row is a record resolved against a table: every declared column has a
// bound argument, NULL when the record has no value for it.
type row struct {
	table *domain.ReplicationTable
	keys  []boundColumn
	data  []boundColumn
}

func newRow(table *domain.ReplicationTable, record domain.Record, log *logger.Log) (*row, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, domain.NewError(domain.KindConfiguration, "resolve record", "table definition is empty")
	}
	r := &row{table: table}
	for _, col := range table.Columns {
		value, ok := record[col.Name]
		if col.PrimaryKey && (!ok || value.IsNull()) {
			return nil, domain.NewError(domain.KindConfiguration, "resolve record",
				fmt.Sprintf("record has no value for key column %s of %s", col.Name, table.ID()))
		}
		arg, err := coerceValue(col, value)
		if err != nil {
			if col.PrimaryKey {
				return nil, err
			}
			log.WithFields(logrus.Fields{
				"table":  table.ID(),
				"column": col.Name,
			}).Warnf("storing NULL: %v", err)
			arg = nil
		}
		bound := boundColumn{column: col, arg: arg}
		if col.PrimaryKey {
			r.keys = append(r.keys, bound)
		} else {
			r.data = append(r.data, bound)
		}
	}
	if len(r.keys) == 0 {
		return nil, domain.NewError(domain.KindConfiguration, "resolve record",
			fmt.Sprintf("table %s has no primary key", table.ID()))
	}
	return r, nil
}

// where appends "k1 = ? AND k2 = ?" for the key columns starting at argument n.
func (r *row) where(d connectors.Dialect, n int, args []any) (string, []any) {
	conds := make([]string, len(r.keys))
	for i, k := range r.keys {
		conds[i] = fmt.Sprintf("%s = %s", d.QuoteIdentifier(k.column.Name),
			d.BindExpr(k.column.DataType, d.Placeholder(n+i)))
		args = append(args, k.arg)
	}
	return strings.Join(conds, " AND "), args
}

func (r *row) existsSQL(d connectors.Dialect) (string, []any) {
	cond, args := r.where(d, 1, nil)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s",
		d.QualifiedName(r.table.SchemaName, r.table.TableName), cond), args
}

// insertSQL covers every declared column in declared order.
func (r *row) insertSQL(d connectors.Dialect) (string, []any) {
	names := make([]string, 0, len(r.table.Columns))
	marks := make([]string, 0, len(r.table.Columns))
	args := make([]any, 0, len(r.table.Columns))
	for _, b := range r.ordered() {
		names = append(names, d.QuoteIdentifier(b.column.Name))
		marks = append(marks, d.BindExpr(b.column.DataType, d.Placeholder(len(args)+1)))
		args = append(args, b.arg)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QualifiedName(r.table.SchemaName, r.table.TableName),
		strings.Join(names, ", "), strings.Join(marks, ", ")), args
}

// updateSQL sets every non-key column. ok is false when there is none.
func (r *row) updateSQL(d connectors.Dialect) (query string, args []any, ok bool) {
	if len(r.data) == 0 {
		return "", nil, false
	}
	sets := make([]string, len(r.data))
	args = make([]any, 0, len(r.table.Columns))
	for i, b := range r.data {
		sets[i] = fmt.Sprintf("%s = %s", d.QuoteIdentifier(b.column.Name),
			d.BindExpr(b.column.DataType, d.Placeholder(i+1)))
		args = append(args, b.arg)
	}
	cond, args := r.where(d, len(args)+1, args)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		d.QualifiedName(r.table.SchemaName, r.table.TableName),
		strings.Join(sets, ", "), cond), args, true
}

func (r *row) deleteSQL(d connectors.Dialect) (string, []any) {
	cond, args := r.where(d, 1, nil)
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		d.QualifiedName(r.table.SchemaName, r.table.TableName), cond), args
}

func (r *row) ordered() []boundColumn {
	byName := make(map[string]boundColumn, len(r.keys)+len(r.data))
	for _, b := range r.keys {
		byName[b.column.Name] = b
	}
	for _, b := range r.data {
		byName[b.column.Name] = b
	}
	out := make([]boundColumn, 0, len(r.table.Columns))
	for _, col := range r.table.Columns {
		out = append(out, byName[col.Name])
	}
	return out
}

// executor runs statements on one acquired connection and logs them.
type executor struct {
	store Store
	log   *logger.Log
}

func (e *executor) exec(ctx context.Context, conn *sql.Conn, table *domain.ReplicationTable, op, query string, args []any) error {
	e.debug(op, query, args)
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return domain.WrapError(domain.KindStorage, op, fmt.Sprintf("%s: %s", table.ID(), query), err)
	}
	return nil
}

func (e *executor) exists(ctx context.Context, conn *sql.Conn, r *row) (bool, error) {
	query, args := r.existsSQL(e.store.Dialect())
	e.debug("record exists", query, args)
	var count int64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, domain.WrapError(domain.KindStorage, "record exists",
			fmt.Sprintf("%s: %s", r.table.ID(), query), err)
	}
	return count > 0, nil
}

func (e *executor) update(ctx context.Context, conn *sql.Conn, r *row) error {
	query, args, ok := r.updateSQL(e.store.Dialect())
	if !ok {
		return nil
	}
	return e.exec(ctx, conn, r.table, "update record", query, args)
}

func (e *executor) insert(ctx context.Context, conn *sql.Conn, r *row) error {
	query, args := r.insertSQL(e.store.Dialect())
	return e.exec(ctx, conn, r.table, "insert record", query, args)
}

// debug logs the statement with its arguments inlined. The inlined text is
// never executed.
func (e *executor) debug(op, query string, args []any) {
	if !e.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	e.log.Debugf("%s query: %s", op, e.store.Dialect().RenderSQL(query, args))
}

func (e *executor) DeleteRecord(ctx context.Context, table *domain.ReplicationTable, record domain.Record) error {
	r, err := newRow(table, record, e.log)
	if err != nil {
		return err
	}
	conn, err := e.store.Acquire(ctx)
	if err != nil {
		return domain.WrapError(domain.KindStorage, "delete record", table.ID(), err)
	}
	defer conn.Close()

	query, args := r.deleteSQL(e.store.Dialect())
	return e.exec(ctx, conn, table, "delete record", query, args)
}

// ExistsUpserter checks for the key first, then inserts or updates.
type ExistsUpserter struct {
	executor
}

func NewExistsUpserter(store Store, log *logger.Log) *ExistsUpserter {
	return &ExistsUpserter{executor{store: store, log: log}}
}

func (u *ExistsUpserter) UpsertRecord(ctx context.Context, table *domain.ReplicationTable, record domain.Record) error {
	r, err := newRow(table, record, u.log)
	if err != nil {
		return err
	}
	conn, err := u.store.Acquire(ctx)
	if err != nil {
		return domain.WrapError(domain.KindStorage, "upsert record", table.ID(), err)
	}
	defer conn.Close()

	found, err := u.exists(ctx, conn, r)
	if err != nil {
		return err
	}
	if found {
		return u.update(ctx, conn, r)
	}
	return u.insert(ctx, conn, r)
}

// OptimisticUpserter inserts and falls back to an update when the store
// reports a duplicate key.
type OptimisticUpserter struct {
	executor
}

func NewOptimisticUpserter(store Store, log *logger.Log) *OptimisticUpserter {
	return &OptimisticUpserter{executor{store: store, log: log}}
}

func (u *OptimisticUpserter) UpsertRecord(ctx context.Context, table *domain.ReplicationTable, record domain.Record) error {
	r, err := newRow(table, record, u.log)
	if err != nil {
		return err
	}
	conn, err := u.store.Acquire(ctx)
	if err != nil {
		return domain.WrapError(domain.KindStorage, "upsert record", table.ID(), err)
	}
	defer conn.Close()

	err = u.insert(ctx, conn, r)
	if err == nil || !u.store.Dialect().IsDuplicateKey(err) {
		return err
	}
	u.log.WithField("table", table.ID()).Debug("duplicate key, updating")
	return u.update(ctx, conn, r)
}
