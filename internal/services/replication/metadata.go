package replication

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"db_replicator/internal/domain"
	"db_replicator/internal/logger"

	"github.com/pkg/errors"
)

// TableManager creates and drops destination tables. Both calls are idempotent.
type TableManager interface {
	EnsureTable(ctx context.Context, table *domain.ReplicationTable) error
	DropTable(ctx context.Context, schema, table string) error
}

// MetaDataRepository reads and replaces the metadata row of a job.
type MetaDataRepository interface {
	GetPrevious(ctx context.Context, table *domain.ReplicationTable, jobID string) (*domain.ReplicationMetaData, error)
	Upsert(ctx context.Context, table *domain.ReplicationTable, jobID string, metaData *domain.ReplicationMetaData) error
}

// MetaDataStore keeps one metadata row per job in the metadata table.
type MetaDataStore struct {
	store    Store
	tables   TableManager
	upserter Upserter
	log      *logger.Log
}

func NewMetaDataStore(store Store, tables TableManager, upserter Upserter, log *logger.Log) *MetaDataStore {
	return &MetaDataStore{
		store:    store,
		tables:   tables,
		upserter: upserter,
		log:      log,
	}
}

// GetPrevious returns the metadata stored for jobID, or nil when the job has
// never been reconciled. The metadata table is created when missing.
func (m *MetaDataStore) GetPrevious(ctx context.Context, table *domain.ReplicationTable, jobID string) (*domain.ReplicationMetaData, error) {
	if err := m.tables.EnsureTable(ctx, table); err != nil {
		return nil, domain.WrapError(domain.KindStorage, "get previous metadata",
			fmt.Sprintf("ensure %s", table.ID()), err)
	}

	d := m.store.Dialect()
	query := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier(MetaDataRequest),
		d.QuoteIdentifier(MetaDataReplicatedShapeID),
		d.QuoteIdentifier(MetaDataReplicatedShapeName),
		d.QuoteIdentifier(MetaDataTimestamp),
		d.QualifiedName(table.SchemaName, table.TableName),
		d.QuoteIdentifier(MetaDataJobID),
		d.Placeholder(1),
	)

	conn, err := m.store.Acquire(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, "get previous metadata", table.ID(), err)
	}
	defer conn.Close()

	var (
		request   sql.NullString
		shapeID   sql.NullString
		shapeName sql.NullString
		timestamp any
	)
	err = conn.QueryRowContext(ctx, query, jobID).Scan(&request, &shapeID, &shapeName, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		m.log.WithField("job_id", jobID).Debug("no previous metadata")
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, "get previous metadata",
			fmt.Sprintf("%s: %s", table.ID(), query), err)
	}

	var req domain.PrepareWriteRequest
	if err := json.Unmarshal([]byte(request.String), &req); err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "get previous metadata",
			fmt.Sprintf("malformed request stored for job %s", jobID), err)
	}

	return &domain.ReplicationMetaData{
		ReplicatedShapeID:   shapeID.String,
		ReplicatedShapeName: shapeName.String,
		Timestamp:           scanTime(timestamp),
		Request:             &req,
	}, nil
}

// Upsert replaces the metadata row of jobID.
func (m *MetaDataStore) Upsert(ctx context.Context, table *domain.ReplicationTable, jobID string, metaData *domain.ReplicationMetaData) error {
	payload, err := json.Marshal(metaData.Request)
	if err != nil {
		return domain.WrapError(domain.KindConfiguration, "upsert metadata", "serialize request", err)
	}
	record := domain.Record{
		MetaDataJobID:               domain.StringValue(jobID),
		MetaDataRequest:             domain.StringValue(string(payload)),
		MetaDataReplicatedShapeID:   domain.StringValue(metaData.ReplicatedShapeID),
		MetaDataReplicatedShapeName: domain.StringValue(metaData.ReplicatedShapeName),
		MetaDataTimestamp:           domain.TemporalValue(metaData.Timestamp.UTC()),
	}
	return errors.Wrapf(m.upserter.UpsertRecord(ctx, table, record), "upsert metadata of job %s", jobID)
}

// scanTime reads a datetime column whatever representation the driver
// returns for it. Timestamps are stored in UTC. Unreadable values give the
// zero time.
func scanTime(v any) time.Time {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case []byte:
		s = string(x)
	case string:
		s = x
	default:
		return time.Time{}
	}
	t, err := parseTemporal(domain.StringValue(strings.TrimSpace(s)))
	if err != nil {
		return time.Time{}
	}
	return t
}
