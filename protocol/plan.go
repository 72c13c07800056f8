package protocol

import (
	"fmt"
	"os"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/planner"
	"github.com/datazip-inc/lakeplan/storage"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "plan command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if tablePath == "not-set" {
			return fmt.Errorf("--table not passed")
		} else if requestPath == "not-set" && dataPath == "" {
			return fmt.Errorf("--request or --file not passed")
		}

		table = &types.TableDescriptor{}
		if err := utils.UnmarshalFile(tablePath, table, false); err != nil {
			return err
		}

		request = &types.InsertRequest{}
		if requestPath != "not-set" {
			if err := utils.UnmarshalFile(requestPath, request, false); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		plan, err := resolvePlan(cmd)
		if err != nil {
			return err
		}

		fingerprint, err := plan.Fingerprint()
		if err != nil {
			return err
		}

		renderProjection(plan)
		logger.Infof("resolved %s plan for table %s with fingerprint %s", plan.Operation, table.ID(), fingerprint)
		if err := logger.FileLoggerWithPath(plan, viper.GetString(constants.PlanPath)); err != nil {
			return fmt.Errorf("failed to write plan file: %s", err)
		}
		return nil
	},
}

// resolvePlan fills the producer schema from the data file when the request
// does not carry one, then plans against the stored table config.
func resolvePlan(cmd *cobra.Command) (*types.WritePlan, error) {
	if len(request.ProducerSchema) == 0 && dataPath != "" {
		producer, err := newFileProducer(cmd.Context())
		if err != nil {
			return nil, err
		}
		request.ProducerSchema = producer.Schema()
	}

	store, err := storage.ForPath(table.BasePath, nil)
	if err != nil {
		return nil, err
	}

	return planner.New(store).Plan(cmd.Context(), table, request)
}

// renderProjection prints the plan's column projection, data columns first,
// partition columns last.
func renderProjection(plan *types.WritePlan) {
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"TARGET", "TYPE", "SOURCE", "CAST"})
	for _, field := range plan.Projection {
		source := field.SourceField
		if field.Literal != nil {
			source = fmt.Sprintf("%q (static)", *field.Literal)
		}
		targetType := string(field.TargetType)
		if field.TargetNullable {
			targetType += " (nullable)"
		}
		writer.Append([]string{field.TargetName, targetType, source, fmt.Sprintf("%t", field.Cast)})
	}
	writer.Render()
}
