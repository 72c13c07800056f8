// uischema serves the UI specifications of the jsonschema of all the file
// sources and destinations
package spec

import (
	"fmt"
)

var uiSchemaMap = map[string]string{
	"memory":  MemoryUISchema,
	"parquet": ParquetUISchema,
	"file":    FileUISchema,
}

const MemoryUISchema = `{
    "ui:grid": [
        { "max_rows": 12 }
    ]
}`

const ParquetUISchema = `{
    "ui:grid": [
        { "path": 12, "s3_bucket": 12 },
        { "s3_region": 12, "s3_prefix": 12 },
        { "s3_access_key": 12, "s3_secret_key": 12 }
    ],
    "s3_secret_key": {
        "ui:widget": "password"
    }
}`

const FileUISchema = `{
    "ui:grid": [
        { "format": 12 },
        { "csv": 12, "json": 12, "parquet": 12 }
    ],
    "format": {
        "ui:enumNames": [
            "CSV",
            "JSON",
            "Parquet"
        ]
    },
    "csv": {
        "ui:grid": [
            { "delimiter": 12, "quote_character": 12 },
            { "has_header": 12, "skip_rows": 12 }
        ],
        "has_header": {
            "ui:widget": "boolean"
        },
        "ui:options": {
            "label": false
        }
    },
    "json": {
        "ui:grid": [
            { "line_delimited": 12 }
        ],
        "line_delimited": {
            "ui:widget": "boolean"
        },
        "ui:options": {
            "label": false
        }
    },
    "parquet": {
        "ui:grid": [
            { "streaming_enabled": 12 }
        ],
        "streaming_enabled": {
            "ui:widget": "boolean"
        },
        "ui:options": {
            "label": false
        }
    }
}`

func LoadUISchema(schemaType string) (string, error) {
	jsonStr, ok := uiSchemaMap[schemaType]
	if !ok {
		return "", fmt.Errorf("schema not found")
	}
	return jsonStr, nil
}
