package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/connectors"
	"db_replicator/internal/domain"
	"db_replicator/internal/logger"
	"db_replicator/internal/services/replication"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestLine = `{"schema":{"id":"customers","name":"Customers","properties":[` +
	`{"id":"name","name":"Name","type":"string"},` +
	`{"id":"score","name":"Score","type":"integer"},` +
	`{"id":"tags","name":"Tags","type":"json"}]},` +
	`"replication":{"settingsJson":"{\"SchemaName\":\"crm\",\"GoldenTableName\":\"golden\",\"VersionTableName\":\"version\"}"},` +
	`"dataVersions":{"jobId":"J1","jobDataVersion":1,"shapeDataVersion":1}}`

func newWriteFixture(t *testing.T) (*connectors.SQLiteConnector, *replication.Reconciler, replication.Upserter) {
	t.Helper()
	conn := connectors.NewSQLiteConnector(config.DatabaseConfig{
		Name:    "local",
		Type:    config.TypeSQLite,
		Path:    filepath.Join(t.TempDir(), "write.db"),
		Timeout: 5,
	})
	require.NoError(t, conn.Connect())
	t.Cleanup(func() { conn.Disconnect() })

	log := logger.Discard()
	upserter := replication.NewExistsUpserter(conn, log)
	reconciler := replication.NewReconciler(conn, replication.NewMetaDataStore(conn, conn, upserter, log), log)
	return conn, reconciler, upserter
}

func countTable(t *testing.T, conn *connectors.SQLiteConnector, name string) int {
	t.Helper()
	ctx := context.Background()
	c, err := conn.Acquire(ctx)
	require.NoError(t, err)
	defer c.Close()

	var n int
	require.NoError(t, c.QueryRowContext(ctx, `SELECT COUNT(*) FROM "`+name+`"`).Scan(&n))
	return n
}

func TestRunWrite(t *testing.T) {
	conn, reconciler, upserter := newWriteFixture(t)

	input := strings.Join([]string{
		requestLine,
		`{"recordId":"r1","versionIds":["v1"],"data":{"name":"Ann","score":12345678901234,"tags":{"a":[1,2]}}}`,
		``,
		`{"recordId":"r2","versionIds":["v2","v3"],"data":{"NAME":"Bob"}}`,
		`{not json`,
		`{"recordId":"","data":{"name":"nobody"}}`,
		`{"recordId":"r1","action":"delete"}`,
	}, "\n")

	stats, err := runWrite(context.Background(), strings.NewReader(input), reconciler, upserter, logger.Discard(), writeOptions{
		workers:         1,
		shutdownTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.written)
	assert.Equal(t, int64(2), stats.failed)

	assert.Equal(t, 1, countTable(t, conn, "crm.golden"))
	assert.Equal(t, 3, countTable(t, conn, "crm.version"))
}

func TestRunWriteEmptyInput(t *testing.T) {
	_, reconciler, upserter := newWriteFixture(t)

	_, err := runWrite(context.Background(), strings.NewReader(""), reconciler, upserter, logger.Discard(), writeOptions{workers: 2})
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))

	_, err = runWrite(context.Background(), strings.NewReader("{broken\n"), reconciler, upserter, logger.Discard(), writeOptions{workers: 2})
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestTransforms(t *testing.T) {
	assert.Equal(t, map[string]any{"name": "Ann", "id": 1},
		lowercaseKeys(map[string]any{"Name": "Ann", "ID": 1}))
	assert.Equal(t, map[string]any{"name": "Ann", "n": 2},
		trimStrings(map[string]any{"name": "  Ann\t", "n": 2}))
}

func TestDecodeRecordKeepsNumberText(t *testing.T) {
	rec, err := decodeRecord([]byte(`{"recordId":"r1","data":{"big":12345678901234567890}}`))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", domain.ValueOf(rec.Data["big"]).String())
}
