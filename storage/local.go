package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
)

// Local stores the table config on the filesystem under the base path.
type Local struct{}

func localConfigPath(basePath string) string {
	return filepath.Join(basePath, constants.TableConfigDir, constants.TableConfigFile)
}

func (l *Local) Load(_ context.Context, basePath string) (*types.TableConfig, error) {
	data, err := os.ReadFile(localConfigPath(basePath))
	if err != nil {
		if os.IsNotExist(err) {
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

func (l *Local) Save(_ context.Context, basePath string, config *types.TableConfig) error {
	path := localConfigPath(basePath)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create config directory for %s: %s", basePath, err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal table config: %s", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write table config at %s: %s", basePath, err)
	}
	return nil
}
