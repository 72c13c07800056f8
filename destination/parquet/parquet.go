// Package parquet implements a file destination: planned batches land as
// Snappy-compressed parquet files under <path>/<database>/<table>, one file
// per touched partition, optionally uploaded to S3 on close. Upsert and the
// strict duplicate payload need stored-row lookups parquet files cannot
// serve, so those plans are rejected at setup.
package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/keygen"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/datazip-inc/lakeplan/utils/typeutils"
	"github.com/goccy/go-json"
	pqgo "github.com/parquet-go/parquet-go"
)

type Config struct {
	Path      string `json:"path"`          // local output directory; defaults to the OS temp dir for S3 staging
	Bucket    string `json:"s3_bucket"`
	Region    string `json:"s3_region"`
	AccessKey string `json:"s3_access_key"`
	SecretKey string `json:"s3_secret_key"`
	Endpoint  string `json:"s3_endpoint"`
	Prefix    string `json:"s3_prefix"`
}

func (c *Config) Validate() error {
	if c.Path == "" && c.Bucket == "" {
		return fmt.Errorf("either path or s3_bucket must be set")
	}
	if c.Bucket != "" && c.Region == "" && c.Endpoint == "" {
		return fmt.Errorf("s3_region is required when s3_bucket is set")
	}
	return nil
}

type fileMetadata struct {
	fileName string
	file     *os.File
	writer   *pqgo.GenericWriter[any]
	rows     int64
}

// Parquet writes planned batches into partitioned parquet files.
type Parquet struct {
	config           *Config
	table            *types.TableDescriptor
	plan             *types.WritePlan
	basePath         string // <database>/<table> under config.Path
	schema           *pqgo.Schema
	keys             keygen.Generator
	partitionedFiles map[string]*fileMetadata // partition path -> open file
	replaced         map[string]bool          // partitions already replaced in this request
	s3Client         *s3.S3
	seq              int64
}

// GetConfigRef returns the config reference for the parquet writer.
func (p *Parquet) GetConfigRef() destination.Config {
	p.config = &Config{}
	return p.config
}

// Spec returns a new Config instance.
func (p *Parquet) Spec() any {
	return Config{}
}

func (p *Parquet) Type() string {
	return string(types.Parquet)
}

// setup s3 client if credentials provided
func (p *Parquet) initS3Writer() error {
	if p.config.Bucket == "" {
		return nil
	}

	s3Config := aws.Config{
		Region: aws.String(p.config.Region),
	}
	if p.config.Endpoint != "" {
		s3Config.Endpoint = aws.String(p.config.Endpoint)
		// path-style URLs keep MinIO and other S3 lookalikes reachable
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}
	if p.config.AccessKey != "" && p.config.SecretKey != "" {
		s3Config.Credentials = credentials.NewStaticCredentials(p.config.AccessKey, p.config.SecretKey, "")
	}
	sess, err := session.NewSession(&s3Config)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %s", err)
	}
	p.s3Client = s3.New(sess)

	return nil
}

// Check validates the local path and S3 credentials if applicable.
func (p *Parquet) Check(_ context.Context) error {
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %s", err)
	}

	if err := p.initS3Writer(); err != nil {
		return err
	}
	if p.s3Client != nil {
		testKey := fmt.Sprintf("lakeplan_writer_test/%s", utils.TimestampedFileName("txt"))
		_, err := p.s3Client.PutObject(&s3.PutObjectInput{
			Bucket: aws.String(p.config.Bucket),
			Key:    aws.String(testKey),
			Body:   strings.NewReader("S3 write test"),
		})
		if err != nil {
			return fmt.Errorf("failed to write test file to S3: %s", err)
		}
		if p.config.Path == "" {
			p.config.Path = os.TempDir()
		}
		p.config.Prefix = strings.Trim(p.config.Prefix, "/")
		logger.Infof("s3 writer configuration found for bucket %s", p.config.Bucket)
	} else {
		logger.Infof("local writer configuration found, writing at location[%s]", p.config.Path)
	}

	if err := os.MkdirAll(p.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create path: %s", err)
	}

	tempFile, err := os.CreateTemp(p.config.Path, "temporary-*.txt")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s", err)
	}
	tempFile.Close()
	os.Remove(tempFile.Name())
	return nil
}

func (p *Parquet) Setup(ctx context.Context, table *types.TableDescriptor, plan *types.WritePlan) error {
	if plan.Operation == types.OperationUpsert || plan.PayloadStrategy == types.PayloadStrictReject {
		return fmt.Errorf("parquet destination cannot merge or reject on record keys, operation %s with payload %s is unsupported",
			plan.Operation, plan.PayloadStrategy)
	}

	p.table = table
	p.plan = plan
	p.basePath = filepath.Join(table.Database, table.Name)
	p.partitionedFiles = map[string]*fileMetadata{}
	p.replaced = map[string]bool{}
	p.seq = 0
	if p.config.Path == "" {
		p.config.Path = os.TempDir()
	}

	if err := p.initS3Writer(); err != nil {
		return err
	}

	keys, err := keygen.FromOptions(plan.Options)
	if err != nil {
		return fmt.Errorf("failed to build key generator: %s", err)
	}
	p.keys = keys

	p.schema = projectionSchema(table.Name, plan.Projection)

	if plan.WriteMode == types.WriteModeOverwrite {
		if err := p.clearPath(ctx, ""); err != nil {
			return fmt.Errorf("failed to clear table for overwrite: %s", err)
		}
		logger.Infof("cleared table %s for overwrite", table.ID())
	}
	return nil
}

func (p *Parquet) Write(ctx context.Context, batch []types.Record) (bool, error) {
	for _, record := range batch {
		key, err := p.keys.RecordKey(record)
		if err != nil {
			return false, fmt.Errorf("failed to derive record key: %s", err)
		}
		partition, err := p.keys.PartitionPath(record)
		if err != nil {
			return false, fmt.Errorf("failed to derive partition path: %s", err)
		}

		// partition overwrite drops each partition once, the first time an
		// incoming row touches it
		if p.plan.Operation == types.OperationOverwritePartition && !p.replaced[partition] {
			if err := p.clearPath(ctx, partition); err != nil {
				return false, fmt.Errorf("failed to replace partition %s: %s", partition, err)
			}
			p.replaced[partition] = true
			logger.Debugf("replaced partition %s of table %s", partition, p.table.ID())
		}

		partitionFile, err := p.fileFor(partition)
		if err != nil {
			return false, err
		}

		row, err := p.parquetRow(record, key, partition, partitionFile.fileName)
		if err != nil {
			return false, err
		}
		if _, err := partitionFile.writer.Write([]any{row}); err != nil {
			return false, fmt.Errorf("failed to write in parquet file: %s", err)
		}
		partitionFile.rows++
	}
	return true, nil
}

func (p *Parquet) Close(_ context.Context) error {
	for partition, parquetFile := range p.partitionedFiles {
		filePath := filepath.Join(p.config.Path, p.basePath, partition, parquetFile.fileName)

		if err := parquetFile.writer.Close(); err != nil {
			return fmt.Errorf("failed to close writer: %s", err)
		}
		if err := parquetFile.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %s", err)
		}
		logger.Infof("finished writing file [%s] (%d rows)", filePath, parquetFile.rows)

		if p.s3Client != nil {
			if err := p.uploadToS3(filePath, partition, parquetFile.fileName); err != nil {
				return err
			}
		}
	}
	p.partitionedFiles = map[string]*fileMetadata{}
	return nil
}

// fileFor returns the open file for a partition, creating it on first touch.
func (p *Parquet) fileFor(partition string) (*fileMetadata, error) {
	if partitionFile, exists := p.partitionedFiles[partition]; exists {
		return partitionFile, nil
	}

	directoryPath := filepath.Join(p.config.Path, p.basePath, partition)
	if err := os.MkdirAll(directoryPath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directories[%s]: %s", directoryPath, err)
	}

	fileName := utils.TimestampedFileName(constants.ParquetFileExt)
	filePath := filepath.Join(directoryPath, fileName)
	pqFile, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %s", err)
	}

	partitionFile := &fileMetadata{
		fileName: fileName,
		file:     pqFile,
		writer:   pqgo.NewGenericWriter[any](pqFile, p.schema, pqgo.Compression(&pqgo.Snappy)),
	}
	p.partitionedFiles[partition] = partitionFile

	logger.Infof("created new partition file[%s]", filePath)
	return partitionFile, nil
}

func (p *Parquet) uploadToS3(filePath, partition, fileName string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %s", err)
	}
	defer file.Close()

	s3KeyPath := filepath.Join(p.basePath, partition, fileName)
	if p.config.Prefix != "" {
		s3KeyPath = filepath.Join(p.config.Prefix, s3KeyPath)
	}

	if _, err := p.s3Client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(s3KeyPath),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("failed to put object into s3: %s", err)
	}

	if err := os.Remove(filePath); err != nil {
		logger.Warnf("failed to delete local file [%s] after upload: %s", filePath, err)
	}
	logger.Infof("successfully uploaded file to S3: s3://%s/%s", p.config.Bucket, s3KeyPath)
	return nil
}

// clearPath removes everything stored under a relative path of the table,
// locally or in S3; an empty relative path clears the whole table.
func (p *Parquet) clearPath(ctx context.Context, relative string) error {
	if p.s3Client != nil {
		prefix := filepath.Join(strings.TrimLeft(p.config.Prefix, "/"), p.basePath, relative) + "/"
		iter := s3manager.NewDeleteListIterator(p.s3Client, &s3.ListObjectsInput{
			Bucket: aws.String(p.config.Bucket),
			Prefix: aws.String(prefix),
		})
		if err := s3manager.NewBatchDeleteWithClient(p.s3Client).Delete(ctx, iter); err != nil {
			return fmt.Errorf("batch delete failed for prefix %s: %s", prefix, err)
		}
		logger.Debugf("cleared S3 prefix: s3://%s/%s", p.config.Bucket, prefix)
		return nil
	}

	localPath := filepath.Join(p.config.Path, p.basePath, relative)
	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(localPath); err != nil {
		return fmt.Errorf("failed to remove local path %s: %s", localPath, err)
	}
	logger.Debugf("cleared local path: %s", localPath)
	return nil
}

// parquetRow renders one projected record into the physical row shape,
// meta columns included.
func (p *Parquet) parquetRow(record types.Record, key, partition, fileName string) (map[string]any, error) {
	row := make(map[string]any, len(p.plan.Projection)+len(constants.MetaColumns))
	for _, field := range p.plan.Projection {
		value, err := parquetValueFor(field.TargetType, record[field.TargetName])
		if err != nil {
			return nil, fmt.Errorf("failed to render column %s: %s", field.TargetName, err)
		}
		row[field.TargetName] = value
	}

	p.seq++
	row[constants.MetaCommitTime] = p.plan.Instant
	row[constants.MetaCommitSeqNo] = fmt.Sprintf("%s_0_%d", p.plan.Instant, p.seq)
	row[constants.MetaRecordKey] = key
	row[constants.MetaPartitionPath] = partition
	row[constants.MetaFileName] = fileName
	return row, nil
}

// parquetValueFor coerces a projected value into the physical type its
// column is declared with: timestamps become epoch integers in the column's
// unit, containers serialize as JSON.
func parquetValueFor(dataType types.DataType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	reformatted, err := typeutils.ReformatValue(dataType, value)
	if err != nil {
		return nil, err
	}

	switch dataType {
	case types.Timestamp, types.TimestampMilli:
		return reformatted.(time.Time).UnixMilli(), nil
	case types.TimestampMicro:
		return reformatted.(time.Time).UnixMicro(), nil
	case types.TimestampNano:
		return reformatted.(time.Time).UnixNano(), nil
	case types.Object, types.Array:
		serialized, err := json.Marshal(reformatted)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize container value: %s", err)
		}
		return string(serialized), nil
	default:
		return reformatted, nil
	}
}

// projectionSchema builds the parquet schema for the plan's projection plus
// the meta columns stamped on every row.
func projectionSchema(name string, projection []types.FieldProjection) *pqgo.Schema {
	group := pqgo.Group{}
	for _, field := range projection {
		node := parquetNode(field.TargetType)
		if field.TargetNullable {
			node = pqgo.Optional(node)
		}
		group[field.TargetName] = node
	}
	for _, meta := range constants.MetaColumns {
		group[meta] = pqgo.String()
	}
	return pqgo.NewSchema(name, group)
}

func parquetNode(dataType types.DataType) pqgo.Node {
	switch dataType {
	case types.Bool:
		return pqgo.Leaf(pqgo.BooleanType)
	case types.Int32:
		return pqgo.Int(32)
	case types.Int64:
		return pqgo.Int(64)
	case types.Float32:
		return pqgo.Leaf(pqgo.FloatType)
	case types.Float64:
		return pqgo.Leaf(pqgo.DoubleType)
	case types.Timestamp, types.TimestampMilli:
		return pqgo.Timestamp(pqgo.Millisecond)
	case types.TimestampMicro:
		return pqgo.Timestamp(pqgo.Microsecond)
	case types.TimestampNano:
		return pqgo.Timestamp(pqgo.Nanosecond)
	case types.Object, types.Array:
		return pqgo.JSON()
	default:
		return pqgo.String()
	}
}

func init() {
	destination.RegisteredWriters[types.Parquet] = func() destination.Writer {
		return new(Parquet)
	}
}
