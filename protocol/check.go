package protocol

import (
	"fmt"

	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/storage"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "check command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if tablePath == "not-set" {
			return fmt.Errorf("--table not passed")
		}

		table = &types.TableDescriptor{}
		if err := utils.UnmarshalFile(tablePath, table, false); err != nil {
			return err
		}

		if requestPath != "not-set" {
			request = &types.InsertRequest{}
			if err := utils.UnmarshalFile(requestPath, request, false); err != nil {
				return err
			}
		}

		if destinationConfigPath != "not-set" {
			destinationConfig = &types.WriterConfig{}
			if err := utils.UnmarshalFile(destinationConfigPath, destinationConfig, true); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := utils.ValidateStruct(table); err != nil {
			return fmt.Errorf("failed to validate table descriptor: %s", err)
		}
		if err := table.Validate(); err != nil {
			return fmt.Errorf("failed to validate table descriptor: %s", err)
		}

		if request != nil {
			if err := utils.ValidateStruct(request); err != nil {
				return fmt.Errorf("failed to validate insert request: %s", err)
			}
			if err := request.Validate(); err != nil {
				return fmt.Errorf("failed to validate insert request: %s", err)
			}
		}

		store, err := storage.ForPath(table.BasePath, nil)
		if err != nil {
			return err
		}
		stored, err := store.Load(cmd.Context(), table.BasePath)
		if err != nil {
			return fmt.Errorf("failed to probe stored table config: %s", err)
		}
		logger.Infof("stored table config %s for table %s",
			utils.Ternary(stored == nil, "not found (fresh table)", "found").(string), table.ID())

		if destinationConfig != nil {
			if err := utils.ValidateStruct(destinationConfig); err != nil {
				return fmt.Errorf("failed to validate destination config: %s", err)
			}
			if _, err := destination.NewExecutor(cmd.Context(), destinationConfig, nil, batchSize); err != nil {
				return err
			}
		}

		logger.Infof("check passed for table %s", table.ID())
		return nil
	},
}
