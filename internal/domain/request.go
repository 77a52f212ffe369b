package domain

import (
	"encoding/json"
	"time"
)

// PropertyType is the declared type of a shape property.
type PropertyType string

const (
	PropertyString   PropertyType = "string"
	PropertyText     PropertyType = "text"
	PropertyInteger  PropertyType = "integer"
	PropertyFloat    PropertyType = "float"
	PropertyDecimal  PropertyType = "decimal"
	PropertyBool     PropertyType = "bool"
	PropertyDate     PropertyType = "date"
	PropertyDateTime PropertyType = "datetime"
	PropertyTime     PropertyType = "time"
	PropertyJSON     PropertyType = "json"
	PropertyBlob     PropertyType = "blob"
)

// Property is one field of a shape.
type Property struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         PropertyType `json:"type"`
	IsKey        bool         `json:"isKey,omitempty"`
	TypeAtSource string       `json:"typeAtSource,omitempty"`
}

// Shape is the logical schema of the replicated records.
type Shape struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Query       string      `json:"query,omitempty"`
	Properties  []*Property `json:"properties"`
}

// DataVersions carries the monotonically increasing versions of a job.
type DataVersions struct {
	JobID            string `json:"jobId"`
	JobDataVersion   int64  `json:"jobDataVersion"`
	ShapeID          string `json:"shapeId,omitempty"`
	ShapeDataVersion int64  `json:"shapeDataVersion"`
}

// ReplicationWriteRequest holds the serialized replication settings.
type ReplicationWriteRequest struct {
	SettingsJSON string `json:"settingsJson"`
}

// PrepareWriteRequest is the request that starts a replication run.
type PrepareWriteRequest struct {
	Schema           *Shape                   `json:"schema"`
	CommitSLASeconds int32                    `json:"commitSlaSeconds,omitempty"`
	Replication      *ReplicationWriteRequest `json:"replication"`
	DataVersions     *DataVersions            `json:"dataVersions"`
}

// ConfigureReplicationFormData is the content of Replication.SettingsJSON.
type ConfigureReplicationFormData struct {
	SchemaName       string `json:"SchemaName"`
	GoldenTableName  string `json:"GoldenTableName"`
	VersionTableName string `json:"VersionTableName"`
}

// ReplicationSettings decodes the replication settings of the request.
func (r *PrepareWriteRequest) ReplicationSettings() (*ConfigureReplicationFormData, error) {
	if r == nil || r.Replication == nil {
		return nil, NewError(KindConfiguration, "replication settings", "request has no replication settings")
	}
	var settings ConfigureReplicationFormData
	if err := json.Unmarshal([]byte(r.Replication.SettingsJSON), &settings); err != nil {
		return nil, WrapError(KindConfiguration, "replication settings", "malformed settings json", err)
	}
	if settings.SchemaName == "" || settings.GoldenTableName == "" || settings.VersionTableName == "" {
		return nil, NewError(KindConfiguration, "replication settings",
			"schema, golden and version table names are required")
	}
	return &settings, nil
}

// JobID returns the job id or an empty string.
func (r *PrepareWriteRequest) JobID() string {
	if r == nil || r.DataVersions == nil {
		return ""
	}
	return r.DataVersions.JobID
}

// Validate checks the parts of the request the engine depends on.
func (r *PrepareWriteRequest) Validate() error {
	if r == nil {
		return NewError(KindConfiguration, "prepare write", "request is nil")
	}
	if r.Schema == nil {
		return NewError(KindConfiguration, "prepare write", "request has no schema")
	}
	if r.DataVersions == nil || r.DataVersions.JobID == "" {
		return NewError(KindConfiguration, "prepare write", "request has no job id")
	}
	_, err := r.ReplicationSettings()
	return err
}

// ReplicationMetaData is the single persisted row describing the last
// applied configuration of a job.
type ReplicationMetaData struct {
	ReplicatedShapeID   string               `json:"replicatedShapeId"`
	ReplicatedShapeName string               `json:"replicatedShapeName"`
	Timestamp           time.Time            `json:"timestamp"`
	Request             *PrepareWriteRequest `json:"request"`
}

// Record actions of the replication stream.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// ReplicationRecord is one record of the replication stream.
type ReplicationRecord struct {
	RecordID   string         `json:"recordId"`
	VersionIDs []string       `json:"versionIds,omitempty"`
	Action     string         `json:"action,omitempty"`
	Data       map[string]any `json:"data"`
}
