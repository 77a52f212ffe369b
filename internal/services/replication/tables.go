package replication

import (
	"db_replicator/internal/domain"
)

// Synthetic columns and system table names.
const (
	ReplicationRecordID        = "replication_record_id"
	ReplicationVersionRecordID = "replication_version_record_id"
	ReplicationMetaDataTable   = "replication_metadata"

	MetaDataJobID               = "job_id"
	MetaDataRequest             = "request"
	MetaDataReplicatedShapeID   = "replicated_shape_id"
	MetaDataReplicatedShapeName = "replicated_shape_name"
	MetaDataTimestamp           = "timestamp"
)

const (
	keyType  = "varchar(255)"
	textType = "longtext"
)

var propertyTypes = map[domain.PropertyType]string{
	domain.PropertyString:   textType,
	domain.PropertyText:     textType,
	domain.PropertyInteger:  "bigint",
	domain.PropertyFloat:    "double",
	domain.PropertyDecimal:  "decimal(38,18)",
	domain.PropertyBool:     "boolean",
	domain.PropertyDate:     domain.TypeDate,
	domain.PropertyDateTime: domain.TypeDateTime,
	domain.PropertyTime:     domain.TypeTime,
	domain.PropertyJSON:     textType,
	domain.PropertyBlob:     "longblob",
}

// ColumnForProperty maps a shape property to its physical column.
func ColumnForProperty(p *domain.Property) domain.ReplicationColumn {
	dataType, ok := propertyTypes[p.Type]
	if !ok {
		dataType = textType
	}
	if p.Type == domain.PropertyString && p.IsKey {
		dataType = keyType
	}
	return domain.ReplicationColumn{
		Name:      p.ID,
		DataType:  dataType,
		Serialize: p.Type == domain.PropertyJSON,
	}
}

// ConvertShapeToReplicationTable builds the table holding one column per
// shape property, in property order. No synthetic column is added.
func ConvertShapeToReplicationTable(shape *domain.Shape, schemaName, tableName string) *domain.ReplicationTable {
	table := &domain.ReplicationTable{
		SchemaName: schemaName,
		TableName:  tableName,
	}
	if shape == nil {
		return table
	}
	table.Columns = make([]domain.ReplicationColumn, 0, len(shape.Properties)+2)
	for _, p := range shape.Properties {
		if p == nil {
			continue
		}
		table.Columns = append(table.Columns, ColumnForProperty(p))
	}
	return table
}

// GetGoldenReplicationTable keys the shape table by the record id.
func GetGoldenReplicationTable(shape *domain.Shape, schemaName, tableName string) *domain.ReplicationTable {
	table := ConvertShapeToReplicationTable(shape, schemaName, tableName)
	table.Columns = append(table.Columns, domain.ReplicationColumn{
		Name:       ReplicationRecordID,
		DataType:   keyType,
		PrimaryKey: true,
	})
	return table
}

// GetVersionReplicationTable keys the shape table by record id and version id.
func GetVersionReplicationTable(shape *domain.Shape, schemaName, tableName string) *domain.ReplicationTable {
	table := ConvertShapeToReplicationTable(shape, schemaName, tableName)
	table.Columns = append(table.Columns,
		domain.ReplicationColumn{
			Name:       ReplicationRecordID,
			DataType:   keyType,
			PrimaryKey: true,
		},
		domain.ReplicationColumn{
			Name:       ReplicationVersionRecordID,
			DataType:   keyType,
			PrimaryKey: true,
		},
	)
	return table
}

// MetaDataTable is the system table holding one row per job.
func MetaDataTable(schemaName string) *domain.ReplicationTable {
	return &domain.ReplicationTable{
		SchemaName: schemaName,
		TableName:  ReplicationMetaDataTable,
		Columns: []domain.ReplicationColumn{
			{Name: MetaDataJobID, DataType: keyType, PrimaryKey: true},
			{Name: MetaDataRequest, DataType: textType},
			{Name: MetaDataReplicatedShapeID, DataType: keyType},
			{Name: MetaDataReplicatedShapeName, DataType: textType},
			{Name: MetaDataTimestamp, DataType: domain.TypeDateTime},
		},
	}
}

// TablesFor builds the golden and version tables of a request.
func TablesFor(req *domain.PrepareWriteRequest) (golden, version *domain.ReplicationTable, err error) {
	settings, err := req.ReplicationSettings()
	if err != nil {
		return nil, nil, err
	}
	golden = GetGoldenReplicationTable(req.Schema, settings.SchemaName, settings.GoldenTableName)
	version = GetVersionReplicationTable(req.Schema, settings.SchemaName, settings.VersionTableName)
	return golden, version, nil
}
