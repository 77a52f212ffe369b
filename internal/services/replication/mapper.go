package replication

import (
	"sync"

	"db_replicator/internal/domain"
)

// RecordMapper turns loosely keyed record data into records keyed by the
// column names of a table.
type RecordMapper struct {
	mu            sync.Mutex
	table         *domain.ReplicationTable
	transform     func(map[string]any) map[string]any
	columnMapping map[string]string
}

type MapperOption func(*RecordMapper)

// WithTransform runs fn on the raw data before it is mapped.
func WithTransform(fn func(map[string]any) map[string]any) MapperOption {
	return func(m *RecordMapper) {
		m.transform = fn
	}
}

func NewRecordMapper(table *domain.ReplicationTable, opts ...MapperOption) *RecordMapper {
	m := &RecordMapper{
		table:         table,
		transform:     func(r map[string]any) map[string]any { return r },
		columnMapping: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map keys data by column name. Exact names win; otherwise keys are matched
// ignoring case and underscores. Keys matching no column are dropped.
func (m *RecordMapper) Map(data map[string]any) domain.Record {
	if m.transform != nil {
		data = m.transform(data)
	}

	record := make(domain.Record, len(m.table.Columns))
	for key, value := range data {
		if name, ok := m.columnFor(key); ok {
			if _, exact := record[name]; exact && name != key {
				continue
			}
			record[name] = domain.ValueOf(value)
		}
	}
	return record
}

func (m *RecordMapper) columnFor(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name, ok := m.columnMapping[key]; ok {
		return name, name != ""
	}
	name := ""
	if _, ok := m.table.Column(key); ok {
		name = key
	} else {
		for _, col := range m.table.Columns {
			if col.GetColumnName(true) == domain.NormalizeName(key) {
				name = col.Name
				break
			}
		}
	}
	// misses are cached as ""
	m.columnMapping[key] = name
	return name, name != ""
}
