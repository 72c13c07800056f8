package protocol

import (
	"fmt"
	"strings"

	"github.com/datazip-inc/lakeplan/destination"
	"github.com/datazip-inc/lakeplan/pkg/parser"
	"github.com/datazip-inc/lakeplan/types"
	"github.com/datazip-inc/lakeplan/utils"
	"github.com/datazip-inc/lakeplan/utils/logger"
	"github.com/datazip-inc/lakeplan/utils/spec"
	"github.com/spf13/cobra"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "spec command",
	RunE: func(_ *cobra.Command, _ []string) error {
		schemaType := strings.ToLower(utils.Ternary(destinationType == "not-set", string(types.Memory), destinationType).(string))

		jsonSchema, err := resolveSpecSchema(schemaType)
		if err != nil {
			return err
		}

		uiSchema, err := spec.LoadUISchema(schemaType)
		if err != nil {
			return fmt.Errorf("failed to get ui schema: %v", err)
		}

		specSchema := map[string]interface{}{
			"jsonschema": jsonSchema,
			"uischema":   uiSchema,
		}

		logger.Info(specSchema)
		return nil
	},
}

// resolveSpecSchema returns the config shape advertised for a schema type.
// "file" is the producer side and reports the parser config; everything else
// resolves through the destination registry.
func resolveSpecSchema(schemaType string) (any, error) {
	if schemaType == "file" {
		return parser.FileConfig{}, nil
	}

	newFunc, found := destination.RegisteredWriters[types.DestinationType(strings.ToUpper(schemaType))]
	if !found {
		return nil, fmt.Errorf("invalid destination type has been passed [%s]", schemaType)
	}
	return newFunc().Spec(), nil
}
