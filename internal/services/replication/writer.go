package replication

import (
	"context"
	"fmt"

	"db_replicator/internal/domain"
	"db_replicator/internal/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Writer applies the records of a reconciled job to its golden and version tables.
type Writer struct {
	upserter      Upserter
	golden        *domain.ReplicationTable
	version       *domain.ReplicationTable
	goldenMapper  *RecordMapper
	versionMapper *RecordMapper
	log           *logger.Log
}

func NewWriter(upserter Upserter, reconciliation *Reconciliation, log *logger.Log, opts ...MapperOption) *Writer {
	return &Writer{
		upserter:      upserter,
		golden:        reconciliation.GoldenTable,
		version:       reconciliation.VersionTable,
		goldenMapper:  NewRecordMapper(reconciliation.GoldenTable, opts...),
		versionMapper: NewRecordMapper(reconciliation.VersionTable, opts...),
		log: log.With(logrus.Fields{
			"job_id": reconciliation.JobID,
			"run_id": reconciliation.RunID,
		}),
	}
}

// WriteRecord upserts the golden row of the record and one version row per
// version id. A delete removes the golden row only; versions are history.
func (w *Writer) WriteRecord(ctx context.Context, rec *domain.ReplicationRecord) error {
	if rec == nil || rec.RecordID == "" {
		return domain.NewError(domain.KindConfiguration, "write record", "record id is required")
	}
	log := w.log.WithField("record_id", rec.RecordID)

	golden := w.goldenMapper.Map(rec.Data)
	golden[ReplicationRecordID] = domain.StringValue(rec.RecordID)

	switch rec.Action {
	case domain.ActionDelete:
		log.Debug("deleting golden record")
		return errors.Wrapf(w.upserter.DeleteRecord(ctx, w.golden, golden), "delete record %s", rec.RecordID)
	case "", domain.ActionUpsert:
	default:
		return domain.NewError(domain.KindConfiguration, "write record",
			fmt.Sprintf("unknown action %q", rec.Action))
	}

	if err := w.upserter.UpsertRecord(ctx, w.golden, golden); err != nil {
		return errors.Wrapf(err, "write golden record %s", rec.RecordID)
	}

	for _, versionID := range rec.VersionIDs {
		version := w.versionMapper.Map(rec.Data)
		version[ReplicationRecordID] = domain.StringValue(rec.RecordID)
		version[ReplicationVersionRecordID] = domain.StringValue(versionID)
		if err := w.upserter.UpsertRecord(ctx, w.version, version); err != nil {
			return errors.Wrapf(err, "write version %s of record %s", versionID, rec.RecordID)
		}
	}
	log.WithField("versions", len(rec.VersionIDs)).Debug("record written")
	return nil
}
