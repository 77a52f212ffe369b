package replication

import (
	"context"
	"time"

	"db_replicator/internal/config"
	"db_replicator/internal/domain"
	"db_replicator/internal/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is one outcome of comparing a run against the previous one.
type State string

const (
	NoPriorRun         State = "No previous metadata"
	Unchanged          State = "Unchanged"
	SchemaRenamed      State = "Schema name changed"
	GoldenRenamed      State = "Golden record name changed"
	VersionRenamed     State = "Version name changed"
	JobVersionBumped   State = "Job data version changed"
	ShapeVersionBumped State = "Shape data version changed"
)

// Reconciliation is the outcome of one run.
type Reconciliation struct {
	JobID string
	RunID string
	// States lists the triggered causes in rule order, or NoPriorRun/Unchanged.
	States         []State
	GoldenReasons  []State
	VersionReasons []State
	GoldenTable    *domain.ReplicationTable
	VersionTable   *domain.ReplicationTable
	MetaDataTable  *domain.ReplicationTable
	Timestamp      time.Time
}

func (r *Reconciliation) DropGolden() bool  { return len(r.GoldenReasons) > 0 }
func (r *Reconciliation) DropVersion() bool { return len(r.VersionReasons) > 0 }

// ProcedureRunner executes a stored procedure and returns the affected rows.
type ProcedureRunner interface {
	ExecuteProcedure(ctx context.Context, procName string, args ...interface{}) (int, error)
}

type ReconcilerOption func(*Reconciler)

// WithClock replaces time.Now for metadata timestamps.
func WithClock(clock func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = clock
	}
}

// WithMetaDataSchema stores the metadata table in a fixed schema instead of
// the target schema of each run. Without it a schema rename finds no previous
// metadata, so SchemaRenamed only fires when this option is set.
func WithMetaDataSchema(schema string) ReconcilerOption {
	return func(r *Reconciler) {
		r.metaDataSchema = schema
	}
}

// WithPostProcedures runs procedures after every successful reconciliation.
func WithPostProcedures(runner ProcedureRunner, procedures []config.Procedure) ReconcilerOption {
	return func(r *Reconciler) {
		r.runner = runner
		r.procedures = procedures
	}
}

type Reconciler struct {
	tables         TableManager
	metaData       MetaDataRepository
	runner         ProcedureRunner
	procedures     []config.Procedure
	metaDataSchema string
	clock          func() time.Time
	log            *logger.Log
}

func NewReconciler(tables TableManager, metaData MetaDataRepository, log *logger.Log, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		tables:   tables,
		metaData: metaData,
		clock:    time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile decides whether the golden and version tables of the request
// must be rebuilt, rebuilds them, and stores the request as the job metadata.
// Concurrent runs for the same job are not supported.
func (r *Reconciler) Reconcile(ctx context.Context, req *domain.PrepareWriteRequest) (*Reconciliation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	settings, err := req.ReplicationSettings()
	if err != nil {
		return nil, err
	}
	jobID := req.JobID()

	result := &Reconciliation{
		JobID:        jobID,
		RunID:        uuid.NewString(),
		GoldenTable:  GetGoldenReplicationTable(req.Schema, settings.SchemaName, settings.GoldenTableName),
		VersionTable: GetVersionReplicationTable(req.Schema, settings.SchemaName, settings.VersionTableName),
	}
	metaSchema := r.metaDataSchema
	if metaSchema == "" {
		metaSchema = settings.SchemaName
	}
	result.MetaDataTable = MetaDataTable(metaSchema)

	log := r.log.With(logrus.Fields{
		"job_id":  jobID,
		"run_id":  result.RunID,
		"schema":  settings.SchemaName,
		"golden":  settings.GoldenTableName,
		"version": settings.VersionTableName,
	})

	// previous run of the job, nil on the first one
	log.Info("getting previous metadata")
	previous, err := r.metaData.GetPrevious(ctx, result.MetaDataTable, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "reconcile job %s", jobID)
	}

	result.Timestamp = r.clock()
	current := &domain.ReplicationMetaData{
		ReplicatedShapeID:   req.Schema.ID,
		ReplicatedShapeName: req.Schema.Name,
		Timestamp:           result.Timestamp,
		Request:             req,
	}

	// first run creates both tables, later runs rebuild what changed
	if previous == nil {
		result.States = []State{NoPriorRun}
		log.Info("no previous metadata, creating tables")
		if err := r.ensure(ctx, result.GoldenTable); err != nil {
			return nil, errors.Wrapf(err, "reconcile job %s: ensure golden table", jobID)
		}
		if err := r.ensure(ctx, result.VersionTable); err != nil {
			return nil, errors.Wrapf(err, "reconcile job %s: ensure version table", jobID)
		}
	} else if err := r.rebuild(ctx, log, req, settings, previous, result); err != nil {
		return nil, errors.Wrapf(err, "reconcile job %s", jobID)
	}

	// always stored, the next run diffs against it
	if err := r.metaData.Upsert(ctx, result.MetaDataTable, jobID, current); err != nil {
		return nil, errors.Wrapf(err, "reconcile job %s", jobID)
	}
	log.WithField("states", result.States).Info("reconciled")

	r.runPostProcedures(ctx, log)
	return result, nil
}

func (r *Reconciler) rebuild(
	ctx context.Context,
	log *logger.Log,
	req *domain.PrepareWriteRequest,
	settings *domain.ConfigureReplicationFormData,
	previous *domain.ReplicationMetaData,
	result *Reconciliation,
) error {
	prevSettings, err := previous.Request.ReplicationSettings()
	if err != nil {
		return errors.Wrap(err, "previous replication settings")
	}
	prevVersions := previous.Request.DataVersions
	if prevVersions == nil {
		prevVersions = &domain.DataVersions{}
	}
	versions := req.DataVersions

	rules := []struct {
		fired   bool
		state   State
		golden  bool
		version bool
	}{
		{prevSettings.SchemaName != settings.SchemaName, SchemaRenamed, true, true},
		{prevSettings.GoldenTableName != settings.GoldenTableName, GoldenRenamed, true, false},
		{prevSettings.VersionTableName != settings.VersionTableName, VersionRenamed, false, true},
		{versions.JobDataVersion > prevVersions.JobDataVersion, JobVersionBumped, true, true},
		{versions.ShapeDataVersion > prevVersions.ShapeDataVersion, ShapeVersionBumped, true, true},
	}
	for _, rule := range rules {
		if !rule.fired {
			continue
		}
		result.States = append(result.States, rule.state)
		if rule.golden {
			result.GoldenReasons = append(result.GoldenReasons, rule.state)
		}
		if rule.version {
			result.VersionReasons = append(result.VersionReasons, rule.state)
		}
	}
	if len(result.States) == 0 {
		result.States = []State{Unchanged}
		return nil
	}

	if result.DropGolden() {
		prevGolden := GetGoldenReplicationTable(previous.Request.Schema, prevSettings.SchemaName, prevSettings.GoldenTableName)
		log.WithField("reasons", result.GoldenReasons).Infof("dropping golden table %s", prevGolden.ID())
		if err := r.replace(ctx, prevGolden, result.GoldenTable); err != nil {
			return errors.Wrap(err, "rebuild golden table")
		}
	}
	if result.DropVersion() {
		prevVersion := GetVersionReplicationTable(previous.Request.Schema, prevSettings.SchemaName, prevSettings.VersionTableName)
		log.WithField("reasons", result.VersionReasons).Infof("dropping version table %s", prevVersion.ID())
		if err := r.replace(ctx, prevVersion, result.VersionTable); err != nil {
			return errors.Wrap(err, "rebuild version table")
		}
	}
	return nil
}

// replace drops the previous table and creates the current one. A failure
// between the two leaves the table absent until the next run ensures it.
func (r *Reconciler) replace(ctx context.Context, previous, current *domain.ReplicationTable) error {
	if err := r.tables.DropTable(ctx, previous.SchemaName, previous.TableName); err != nil {
		return domain.WrapError(domain.KindStorage, "drop table", previous.ID(), err)
	}
	return r.ensure(ctx, current)
}

func (r *Reconciler) ensure(ctx context.Context, table *domain.ReplicationTable) error {
	if err := r.tables.EnsureTable(ctx, table); err != nil {
		return domain.WrapError(domain.KindStorage, "ensure table", table.ID(), err)
	}
	return nil
}

func (r *Reconciler) runPostProcedures(ctx context.Context, log *logger.Log) {
	if r.runner == nil {
		return
	}
	for _, proc := range r.procedures {
		count, err := r.runner.ExecuteProcedure(ctx, proc.ProcedureName, proc.Params...)
		if err != nil {
			log.Errorf("failed to exec procedure %s: %v", proc.ProcedureName, err)
			continue
		}
		log.Infof("procedure %s processed: %d", proc.ProcedureName, count)
	}
}
