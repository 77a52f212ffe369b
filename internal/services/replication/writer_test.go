package replication

import (
	"context"
	"strings"
	"testing"

	"db_replicator/internal/domain"
	"db_replicator/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMapper(t *testing.T) {
	table := GetGoldenReplicationTable(testShape(), "crm", "golden")

	tests := []struct {
		name string
		opts []MapperOption
		in   map[string]any
		want domain.Record
	}{
		{
			name: "exact names",
			in:   map[string]any{"name": "Ann", "score": 3},
			want: domain.Record{"name": domain.StringValue("Ann"), "score": domain.NumberValue("3")},
		},
		{
			name: "case and underscores are ignored",
			in:   map[string]any{"BirthDate": "2001-02-03", "UPDATED_AT": "x"},
			want: domain.Record{"birth_date": domain.StringValue("2001-02-03"), "updated_at": domain.StringValue("x")},
		},
		{
			name: "exact name wins over loose match",
			in:   map[string]any{"name": "exact", "NAME": "loose"},
			want: domain.Record{"name": domain.StringValue("exact")},
		},
		{
			name: "unknown keys are dropped",
			in:   map[string]any{"nickname": "A"},
			want: domain.Record{},
		},
		{
			name: "transform runs first",
			opts: []MapperOption{WithTransform(func(r map[string]any) map[string]any {
				out := make(map[string]any, len(r))
				for k, v := range r {
					out[strings.TrimPrefix(k, "src_")] = v
				}
				return out
			})},
			in:   map[string]any{"src_name": "Ann"},
			want: domain.Record{"name": domain.StringValue("Ann")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapper := NewRecordMapper(table, tt.opts...)
			assert.Equal(t, tt.want, mapper.Map(tt.in))
			// second call goes through the cached mapping
			assert.Equal(t, tt.want, mapper.Map(tt.in))
		})
	}
}

func newTestWriter(t *testing.T) (*Writer, *Reconciliation, func(table *domain.ReplicationTable) int) {
	t.Helper()
	ctx := context.Background()
	db := newSQLite(t)
	upserter := NewExistsUpserter(db, logger.Discard())
	reconciler := NewReconciler(db, NewMetaDataStore(db, db, upserter, logger.Discard()), logger.Discard())

	result, err := reconciler.Reconcile(ctx, testRequest("crm", "golden", "version", 1, 1))
	require.NoError(t, err)

	count := func(table *domain.ReplicationTable) int { return countRows(t, db, table) }
	return NewWriter(upserter, result, logger.Discard()), result, count
}

func TestWriterWriteRecord(t *testing.T) {
	ctx := context.Background()
	writer, result, count := newTestWriter(t)

	require.NoError(t, writer.WriteRecord(ctx, &domain.ReplicationRecord{
		RecordID:   "r1",
		VersionIDs: []string{"v1", "v2"},
		Data:       map[string]any{"Name": "Ann", "tags": []any{"a", "b"}},
	}))
	assert.Equal(t, 1, count(result.GoldenTable))
	assert.Equal(t, 2, count(result.VersionTable))

	// rewriting the same record and one of its versions adds nothing
	require.NoError(t, writer.WriteRecord(ctx, &domain.ReplicationRecord{
		RecordID:   "r1",
		VersionIDs: []string{"v2"},
		Action:     domain.ActionUpsert,
		Data:       map[string]any{"Name": "Ann B."},
	}))
	assert.Equal(t, 1, count(result.GoldenTable))
	assert.Equal(t, 2, count(result.VersionTable))
}

func TestWriterDeleteKeepsVersions(t *testing.T) {
	ctx := context.Background()
	writer, result, count := newTestWriter(t)

	require.NoError(t, writer.WriteRecord(ctx, &domain.ReplicationRecord{
		RecordID:   "r1",
		VersionIDs: []string{"v1"},
		Data:       map[string]any{"name": "Ann"},
	}))
	require.NoError(t, writer.WriteRecord(ctx, &domain.ReplicationRecord{
		RecordID: "r1",
		Action:   domain.ActionDelete,
	}))

	assert.Equal(t, 0, count(result.GoldenTable))
	assert.Equal(t, 1, count(result.VersionTable))
}

func TestWriterRejectsBadRecords(t *testing.T) {
	ctx := context.Background()
	writer, _, _ := newTestWriter(t)

	err := writer.WriteRecord(ctx, &domain.ReplicationRecord{Data: map[string]any{"name": "x"}})
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))

	err = writer.WriteRecord(ctx, &domain.ReplicationRecord{RecordID: "r1", Action: "merge"})
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}
