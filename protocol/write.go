package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/pkg/parser"
	"github.com/datazip-inc/lakeplan/planner"
	"github.com/datazip-inc/lakeplan/storage"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// writeCmd plans one insert request and executes it against the configured
// destination, streaming rows from the data file.
var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "write command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if tablePath == "not-set" {
			return fmt.Errorf("--table not passed")
		} else if destinationConfigPath == "not-set" {
			return fmt.Errorf("--destination not passed")
		} else if dataPath == "" {
			return fmt.Errorf("--file not passed")
		}

		table = &types.TableDescriptor{}
		if err := utils.UnmarshalFile(tablePath, table, false); err != nil {
			return err
		}

		// the request is optional; a bare write streams the file as-is
		request = &types.InsertRequest{}
		if requestPath != "not-set" {
			if err := utils.UnmarshalFile(requestPath, request, false); err != nil {
				return err
			}
		}

		destinationConfig = &types.WriterConfig{}
		if err := utils.UnmarshalFile(destinationConfigPath, destinationConfig, true); err != nil {
			return err
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		writeCtx := cmd.Context()
		if timeout != -1 {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(writeCtx, time.Duration(timeout)*time.Second)
			defer cancel()
		}

		producer, err := newFileProducer(writeCtx)
		if err != nil {
			return err
		}
		if len(request.ProducerSchema) == 0 {
			request.ProducerSchema = producer.Schema()
		}

		store, err := storage.ForPath(table.BasePath, nil)
		if err != nil {
			return err
		}

		plan, err := planner.New(store).Plan(writeCtx, table, request)
		if err != nil {
			return err
		}

		executor, err := destination.NewExecutor(writeCtx, destinationConfig, catalogLogger{}, batchSize)
		if err != nil {
			return err
		}

		if err := executor.Execute(writeCtx, table, plan, producer); err != nil {
			return err
		}

		if err := logger.FileLoggerWithPath(plan, viper.GetString(constants.PlanPath)); err != nil {
			return fmt.Errorf("failed to write plan file: %s", err)
		}
		return nil
	},
}

func newFileProducer(ctx context.Context) (*parser.FileProducer, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("--file not passed")
	}
	return parser.NewFileProducer(ctx, dataPath, &parser.FileConfig{Format: parser.Format(dataFormat)})
}

// catalogLogger records the post-write catalog refresh in the log stream.
type catalogLogger struct{}

func (catalogLogger) Refresh(_ context.Context, database, tableName string) error {
	logger.Infof("refreshing catalog entry for %s.%s", database, tableName)
	return nil
}
