package replication

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"db_replicator/internal/config"
	"db_replicator/internal/connectors"
	"db_replicator/internal/domain"

	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *connectors.SQLiteConnector {
	t.Helper()
	c := connectors.NewSQLiteConnector(config.DatabaseConfig{
		Name:    "test",
		Type:    config.TypeSQLite,
		Path:    filepath.Join(t.TempDir(), "replication.db"),
		Timeout: 5,
	})
	require.NoError(t, c.Connect())
	t.Cleanup(func() { c.Disconnect() })
	return c
}

// queryRows returns every row of query as nullable strings.
func queryRows(t *testing.T, c *connectors.SQLiteConnector, query string, args ...any) [][]sql.NullString {
	t.Helper()
	ctx := context.Background()
	conn, err := c.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var out [][]sql.NullString
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		require.NoError(t, rows.Scan(ptrs...))
		out = append(out, values)
	}
	require.NoError(t, rows.Err())
	return out
}

func countRows(t *testing.T, c *connectors.SQLiteConnector, table *domain.ReplicationTable) int {
	t.Helper()
	rows := queryRows(t, c, fmt.Sprintf("SELECT COUNT(*) FROM %s",
		c.Dialect().QualifiedName(table.SchemaName, table.TableName)))
	require.Len(t, rows, 1)
	var n int
	_, err := fmt.Sscan(rows[0][0].String, &n)
	require.NoError(t, err)
	return n
}

func tableExists(t *testing.T, c *connectors.SQLiteConnector, table *domain.ReplicationTable) bool {
	t.Helper()
	rows := queryRows(t, c, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		table.SchemaName+"."+table.TableName)
	return len(rows) == 1
}

func testShape() *domain.Shape {
	return &domain.Shape{
		ID:   "customers",
		Name: "Customers",
		Properties: []*domain.Property{
			{ID: "id", Name: "Id", Type: domain.PropertyString, IsKey: true},
			{ID: "name", Name: "Name", Type: domain.PropertyString},
			{ID: "birth_date", Name: "Birth Date", Type: domain.PropertyDate},
			{ID: "updated_at", Name: "Updated At", Type: domain.PropertyDateTime},
			{ID: "open_time", Name: "Open Time", Type: domain.PropertyTime},
			{ID: "tags", Name: "Tags", Type: domain.PropertyJSON},
			{ID: "score", Name: "Score", Type: domain.PropertyInteger},
		},
	}
}

func testRequest(schema, golden, version string, jobVersion, shapeVersion int64) *domain.PrepareWriteRequest {
	return &domain.PrepareWriteRequest{
		Schema: testShape(),
		Replication: &domain.ReplicationWriteRequest{
			SettingsJSON: fmt.Sprintf(`{"SchemaName":%q,"GoldenTableName":%q,"VersionTableName":%q}`,
				schema, golden, version),
		},
		DataVersions: &domain.DataVersions{
			JobID:            "J1",
			JobDataVersion:   jobVersion,
			ShapeID:          "customers",
			ShapeDataVersion: shapeVersion,
		},
	}
}
