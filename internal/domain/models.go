package domain

import "strings"

// Column data types understood by the coercion rules. Anything else is
// passed through to the dialect as a native type.
const (
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeTime     = "time"
)

// ReplicationColumn describes one physical column of a replication table.
type ReplicationColumn struct {
	Name       string `json:"name"`
	DataType   string `json:"dataType"`
	PrimaryKey bool   `json:"primaryKey"`
	// Serialize marks columns holding structured values that are stored as JSON text.
	Serialize bool `json:"serialize"`
}

// GetColumnName returns the column name, or its normalized form used to
// match loosely named record keys when isMapping is set.
func (c *ReplicationColumn) GetColumnName(isMapping bool) string {
	if isMapping {
		return NormalizeName(c.Name)
	}
	return c.Name
}

// NormalizeName lowercases a name and strips underscores.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// ReplicationTable is a physical destination table: golden, version or metadata.
type ReplicationTable struct {
	SchemaName string              `json:"schemaName"`
	TableName  string              `json:"tableName"`
	Columns    []ReplicationColumn `json:"columns"`
}

// PrimaryKeys returns the primary key columns in declared order.
func (t *ReplicationTable) PrimaryKeys() []ReplicationColumn {
	keys := make([]ReplicationColumn, 0, 2)
	for _, col := range t.Columns {
		if col.PrimaryKey {
			keys = append(keys, col)
		}
	}
	return keys
}

// Column finds a column by exact name.
func (t *ReplicationTable) Column(name string) (ReplicationColumn, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ReplicationColumn{}, false
}

// ID returns schema.table, unquoted. Used for logging only.
func (t *ReplicationTable) ID() string {
	if t.SchemaName == "" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// CountKind tells whether a discovery count is exact.
type CountKind string

const (
	CountUnavailable CountKind = "unavailable"
	CountExact       CountKind = "exact"
)

// Count is the result of counting the records of a shape.
type Count struct {
	Kind  CountKind `json:"kind"`
	Value int64     `json:"value,omitempty"`
}
