package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/goccy/go-json"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils/backoff"
)

type S3Config struct {
	Region    string `json:"region"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	// Endpoint overrides the AWS endpoint for S3-compatible stores
	Endpoint string `json:"endpoint,omitempty"`
}

// S3 stores the table config as an object under the table's base path.
type S3 struct {
	client *s3.S3
}

func NewS3(config *S3Config) (*S3, error) {
	s3Config := aws.Config{
		Region: aws.String(config.Region),
	}
	if config.Endpoint != "" {
		s3Config.Endpoint = aws.String(config.Endpoint)
		// Force path-style URLs (e.g., http://minio:9000/bucket/key) to support MinIO and avoid bucket-based DNS resolution
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}
	if config.AccessKey != "" && config.SecretKey != "" {
		s3Config.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(&s3Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %s", err)
	}
	return &S3{client: s3.New(sess)}, nil
}

func s3ConfigKey(prefix string) string {
	return path.Join(prefix, constants.TableConfigDir, constants.TableConfigFile)
}

func (s *S3) Load(ctx context.Context, basePath string) (*types.TableConfig, error) {
	bucket, prefix, err := splitS3Path(basePath)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = backoff.Retry(ctx, constants.DefaultRetryCount, time.Second, func() error {
		output, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(s3ConfigKey(prefix)),
		})
		if err != nil {
			return err
		}
		defer output.Body.Close()
		data, err = io.ReadAll(output.Body)
		return err
	}, retryableS3Error)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read table config at %s: %s", basePath, err)
	}

	config := &types.TableConfig{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table config at %s: %s", basePath, err)
	}
	return config, nil
}

func (s *S3) Save(ctx context.Context, basePath string, config *types.TableConfig) error {
	bucket, prefix, err := splitS3Path(basePath)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal table config: %s", err)
	}

	err = backoff.Retry(ctx, constants.DefaultRetryCount, time.Second, func() error {
		_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(s3ConfigKey(prefix)),
			Body:   bytes.NewReader(data),
		})
		return err
	}, retryableS3Error)
	if err != nil {
		return fmt.Errorf("failed to write table config at %s: %s", basePath, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

// retryableS3Error retries everything except definitive answers
func retryableS3Error(err error) bool {
	return !isNotFound(err)
}
