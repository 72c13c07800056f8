package constants

import (
	"time"
)

const (
	DefaultRetryCount   = 3
	DefaultRetryTimeout = 60 * time.Second
	DefaultBatchSize    = 10000
	// DefaultWriteParallelism is the per-operation shuffle parallelism stamped
	// into every resolved option map unless an overlay overrides it.
	DefaultWriteParallelism = 200
	EncryptionKey           = "LAKEPLAN_ENCRYPTION_KEY"
	ConfigFolder            = "CONFIG_FOLDER"
	PlanPath                = "PLAN_PATH"
	// TableConfigDir and TableConfigFile locate the stored table configuration
	// under a table's base path, e.g. s3://bucket/tbl/.lakeplan/config.json.
	TableConfigDir  = ".lakeplan"
	TableConfigFile = "config.json"
	ParquetFileExt  = "parquet"
)

// Meta columns injected by the write path. Producers may carry them (round-trip
// reads of lake files); the planner strips them before shape validation.
const (
	MetaCommitTime    = "_lake_commit_time"
	MetaCommitSeqNo   = "_lake_commit_seqno"
	MetaRecordKey     = "_lake_record_key"
	MetaPartitionPath = "_lake_partition_path"
	MetaFileName      = "_lake_file_name"
)

// MetaColumns lists every meta column in commit order.
var MetaColumns = []string{MetaCommitTime, MetaCommitSeqNo, MetaRecordKey, MetaPartitionPath, MetaFileName}

// Session option keys. These are SQL-session level switches, merged below
// per-request extra options when the resolved option map is assembled.
const (
	SessionInsertMode       = "sql.insert.mode"
	SessionBulkInsertEnable = "sql.bulk_insert.enable"
	SessionDropDuplicates   = "sql.insert.drop_duplicates"
	SessionPrecombineField  = "sql.write.precombine.field"
)

// Resolved option map keys consumed by writers.
const (
	OptionBasePath             = "table.base_path"
	OptionDatabaseName         = "table.database"
	OptionTableName            = "table.name"
	OptionTableType            = "table.type"
	OptionOperation            = "write.operation"
	OptionPayloadClass         = "write.payload.class"
	OptionKeyGeneratorClass    = "write.keygen.class"
	OptionRecordKeyFields      = "write.recordkey.fields"
	OptionPartitionFields      = "write.partition.fields"
	OptionPartitionSchema      = "write.partition.schema"
	OptionPrecombineField      = "write.precombine.field"
	OptionInstant              = "write.instant"
	OptionInsertParallelism    = "write.insert.parallelism"
	OptionUpsertParallelism    = "write.upsert.parallelism"
	OptionHiveStylePartition   = "write.hive_style_partitioning"
	OptionURLEncodePartition   = "write.urlencode_partitioning"
	OptionMetaSyncExtractor    = "meta_sync.partition_extractor.class"
	OptionMetaSyncViaJDBC      = "meta_sync.via_jdbc"
	DefaultPartitionExtractor  = "multi_part_keys_value_extractor"
	DefaultPartitionFieldDelim = ","
)
