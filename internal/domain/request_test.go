package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(settings string) *PrepareWriteRequest {
	return &PrepareWriteRequest{
		Schema:       &Shape{ID: "s"},
		Replication:  &ReplicationWriteRequest{SettingsJSON: settings},
		DataVersions: &DataVersions{JobID: "J1"},
	}
}

func TestReplicationSettings(t *testing.T) {
	tests := []struct {
		name     string
		req      *PrepareWriteRequest
		want     *ConfigureReplicationFormData
		wantKind Kind
	}{
		{
			name: "valid",
			req:  request(`{"SchemaName":"crm","GoldenTableName":"g","VersionTableName":"v"}`),
			want: &ConfigureReplicationFormData{SchemaName: "crm", GoldenTableName: "g", VersionTableName: "v"},
		},
		{
			name:     "malformed",
			req:      request(`{"SchemaName":`),
			wantKind: KindConfiguration,
		},
		{
			name:     "missing table",
			req:      request(`{"SchemaName":"crm","GoldenTableName":"g"}`),
			wantKind: KindConfiguration,
		},
		{
			name:     "no replication block",
			req:      &PrepareWriteRequest{},
			wantKind: KindConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ReplicationSettings()
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.wantKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := `{"SchemaName":"crm","GoldenTableName":"g","VersionTableName":"v"}`

	noSchema := request(valid)
	noSchema.Schema = nil
	noJob := request(valid)
	noJob.DataVersions.JobID = ""
	var nilReq *PrepareWriteRequest

	assert.NoError(t, request(valid).Validate())
	for name, req := range map[string]*PrepareWriteRequest{
		"nil":         nilReq,
		"no schema":   noSchema,
		"no job":      noJob,
		"no settings": request(""),
	} {
		err := req.Validate()
		assert.True(t, IsKind(err, KindConfiguration), name)
	}

	assert.Equal(t, "J1", request(valid).JobID())
	assert.Equal(t, "", nilReq.JobID())
}

func TestIsKind(t *testing.T) {
	inner := NewError(KindCoercion, "coerce", "bad date")
	outer := WrapError(KindStorage, "upsert", "write failed", inner)
	wrapped := fmt.Errorf("run: %w", outer)

	assert.True(t, IsKind(wrapped, KindStorage))
	assert.True(t, IsKind(wrapped, KindCoercion))
	assert.False(t, IsKind(wrapped, KindConfiguration))
	assert.False(t, IsKind(errors.New("plain"), KindStorage))
	assert.False(t, IsKind(nil, KindStorage))

	assert.Equal(t, "storage_error: upsert: write failed: coercion_failure: coerce: bad date", outer.Error())
	assert.ErrorIs(t, wrapped, inner)
}

func TestTableHelpers(t *testing.T) {
	table := &ReplicationTable{
		SchemaName: "crm",
		TableName:  "t",
		Columns: []ReplicationColumn{
			{Name: "a_b"},
			{Name: "k1", PrimaryKey: true},
			{Name: "k2", PrimaryKey: true},
		},
	}
	keys := table.PrimaryKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "k1", keys[0].Name)
	assert.Equal(t, "crm.t", table.ID())

	col, ok := table.Column("a_b")
	require.True(t, ok)
	assert.Equal(t, "ab", col.GetColumnName(true))
	assert.Equal(t, "a_b", col.GetColumnName(false))
	_, ok = table.Column("AB")
	assert.False(t, ok)

	assert.Equal(t, "t", (&ReplicationTable{TableName: "t"}).ID())
}
