// Package storage loads and persists the table configuration stored next to
// the data under <base_path>/.lakeplan/config.json.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/datazip-inc/lakeplan/types"
)

// ConfigStore reads and writes the stored table config for a base path.
// Load returns (nil, nil) when no config exists; a missing config is an
// answer, not a failure.
type ConfigStore interface {
	Load(ctx context.Context, basePath string) (*types.TableConfig, error)
	Save(ctx context.Context, basePath string, config *types.TableConfig) error
}

// ForPath picks the store implied by the base path scheme. s3Config may be
// nil for local paths; S3 paths fall back to ambient AWS credentials when it
// is nil.
func ForPath(basePath string, s3Config *S3Config) (ConfigStore, error) {
	if strings.HasPrefix(basePath, "s3://") {
		if s3Config == nil {
			s3Config = &S3Config{}
		}
		return NewS3(s3Config)
	}
	return &Local{}, nil
}

// splitS3Path splits s3://bucket/prefix into bucket and prefix.
func splitS3Path(basePath string) (string, string, error) {
	trimmed := strings.TrimPrefix(basePath, "s3://")
	if trimmed == basePath || trimmed == "" {
		return "", "", fmt.Errorf("invalid s3 path: %s", basePath)
	}

	parts := strings.SplitN(trimmed, "/", 2)
	bucket := parts[0]
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 path: %s", basePath)
	}

	prefix := ""
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix, nil
}
