package protocol

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/datazip-inc/lakeplan/constants"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tablePath             string
	requestPath           string
	destinationConfigPath string
	dataPath              string
	dataFormat            string
	planPath              string
	batchSize             int64
	noSave                bool
	encryptionKey         string
	destinationType       string
	timeout               int64 // timeout in seconds
	table                 *types.TableDescriptor
	request               *types.InsertRequest
	destinationConfig     *types.WriterConfig

	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "lakeplan",
	Short: "root command",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// set global variables

		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		viper.SetDefault(constants.PlanPath, filepath.Join(os.TempDir(), "plan.json"))
		if !noSave && tablePath != "not-set" {
			configFolder := filepath.Dir(tablePath)
			planPathEnv := utils.Ternary(planPath == "", filepath.Join(configFolder, "plan.json"), planPath).(string)
			viper.Set(constants.ConfigFolder, configFolder)
			viper.Set(constants.PlanPath, planPathEnv)
		}

		if encryptionKey != "" {
			viper.Set(constants.EncryptionKey, encryptionKey)
		}

		// logger uses CONFIG_FOLDER
		logger.Init()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
			return fmt.Errorf("'%s' is an invalid command. Use 'lakeplan --help' to display usage guide", args[0])
		}

		return nil
	},
}

// Execute mounts the subcommands and runs the CLI once.
func Execute() {
	RootCmd.AddCommand(commands...)
	if err := RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}

func init() {
	commands = append(commands, specCmd, checkCmd, planCmd, writeCmd)
	RootCmd.PersistentFlags().StringVarP(&tablePath, "table", "", "not-set", "(Required) Table descriptor for the target table")
	RootCmd.PersistentFlags().StringVarP(&requestPath, "request", "", "not-set", "(Required) Insert request resolved by the planner")
	RootCmd.PersistentFlags().StringVarP(&destinationConfigPath, "destination", "", "not-set", "(Required) Destination config for the writer")
	RootCmd.PersistentFlags().StringVarP(&destinationType, "destination-type", "", "not-set", "Destination type for spec")
	RootCmd.PersistentFlags().StringVarP(&dataPath, "file", "", "", "Path to the data file streamed by the write command")
	RootCmd.PersistentFlags().StringVarP(&dataFormat, "file-format", "", "", "(Optional) Data file format; detected from the extension when omitted")
	RootCmd.PersistentFlags().StringVarP(&planPath, "plan", "", "", "Path the resolved write plan is saved to")
	RootCmd.PersistentFlags().Int64VarP(&batchSize, "destination-buffer-size", "", 10000, "(Optional) Batch size for destination")
	RootCmd.PersistentFlags().BoolVarP(&noSave, "no-save", "", false, "(Optional) Flag to skip logging artifacts in file")
	RootCmd.PersistentFlags().StringVarP(&encryptionKey, "encryption-key", "", "", "(Optional) Decryption key. Provide the ARN of a KMS key, a UUID, or a custom string based on your encryption configuration.")
	RootCmd.PersistentFlags().Int64VarP(&timeout, "timeout", "", -1, "(Optional) Timeout to override default timeouts (in seconds)")
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}
