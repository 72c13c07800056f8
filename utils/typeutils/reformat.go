package typeutils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/datazip-inc/lakeplan/types"
)

// layouts tried in order when parsing timestamps out of strings
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TypeFromValue maps a runtime value onto the lake type system.
func TypeFromValue(v any) types.DataType {
	switch v.(type) {
	case nil:
		return types.Null
	case bool:
		return types.Bool
	case int8, int16, int32:
		return types.Int32
	case int, int64, uint, uint8, uint16, uint32, uint64:
		return types.Int64
	case float32:
		return types.Float32
	case float64:
		return types.Float64
	case time.Time, *time.Time:
		return types.Timestamp
	case string, []byte:
		return types.String
	case map[string]any, types.Record:
		return types.Object
	case []any:
		return types.Array
	default:
		return types.Unknown
	}
}

// ReformatValue coerces value into the shape the given data type expects.
// nil passes through untouched for every type.
func ReformatValue(dataType types.DataType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch dataType {
	case types.Null:
		return nil, nil
	case types.Bool:
		return ReformatBoolValue(value)
	case types.Int32:
		reformatted, err := ReformatInt64Value(value)
		if err != nil {
			return nil, err
		}
		return int32(reformatted), nil
	case types.Int64:
		return ReformatInt64Value(value)
	case types.Float32:
		reformatted, err := ReformatFloat64Value(value)
		if err != nil {
			return nil, err
		}
		return float32(reformatted), nil
	case types.Float64:
		return ReformatFloat64Value(value)
	case types.String:
		return ReformatStringValue(value), nil
	case types.Timestamp, types.TimestampMilli, types.TimestampMicro, types.TimestampNano:
		return ReformatDate(value)
	case types.Object, types.Array:
		return value, nil
	default:
		return value, nil
	}
}

func ReformatBoolValue(value any) (bool, error) {
	switch booleanValue := value.(type) {
	case bool:
		return booleanValue, nil
	case int, int8, int16, int32, int64:
		reformatted, err := ReformatInt64Value(value)
		if err != nil {
			return false, err
		}
		return reformatted != 0, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(booleanValue))
		if err != nil {
			return false, fmt.Errorf("failed to change %v of type %T to boolean: %s", value, value, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("failed to change %v of type %T to boolean", value, value)
	}
}

func ReformatInt64Value(value any) (int64, error) {
	switch intValue := value.(type) {
	case int:
		return int64(intValue), nil
	case int8:
		return int64(intValue), nil
	case int16:
		return int64(intValue), nil
	case int32:
		return int64(intValue), nil
	case int64:
		return intValue, nil
	case uint:
		return int64(intValue), nil
	case uint8:
		return int64(intValue), nil
	case uint16:
		return int64(intValue), nil
	case uint32:
		return int64(intValue), nil
	case uint64:
		return int64(intValue), nil
	case float32:
		return int64(intValue), nil
	case float64:
		return int64(intValue), nil
	case bool:
		if intValue {
			return 1, nil
		}
		return 0, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(intValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to change %v of type %T to int64: %s", value, value, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("failed to change %v of type %T to int64", value, value)
	}
}

func ReformatFloat64Value(value any) (float64, error) {
	switch floatValue := value.(type) {
	case int, int8, int16, int32, int64:
		reformatted, err := ReformatInt64Value(value)
		if err != nil {
			return 0, err
		}
		return float64(reformatted), nil
	case float32:
		return float64(floatValue), nil
	case float64:
		return floatValue, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(floatValue), 64)
		if err != nil {
			return 0, fmt.Errorf("failed to change %v of type %T to float64: %s", value, value, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("failed to change %v of type %T to float64", value, value)
	}
}

func ReformatStringValue(value any) string {
	switch stringValue := value.(type) {
	case string:
		return stringValue
	case []byte:
		return string(stringValue)
	case time.Time:
		return stringValue.UTC().Format(time.RFC3339Nano)
	case map[string]any, types.Record, []any:
		encoded, err := json.Marshal(stringValue)
		if err != nil {
			return fmt.Sprint(stringValue)
		}
		return string(encoded)
	default:
		return fmt.Sprint(stringValue)
	}
}

// ReformatDate normalizes every supported timestamp shape into UTC time.Time.
// Numeric values are treated as epoch seconds or milliseconds depending on
// magnitude.
func ReformatDate(value any) (time.Time, error) {
	switch dateValue := value.(type) {
	case time.Time:
		return dateValue.UTC(), nil
	case *time.Time:
		if dateValue == nil {
			return time.Time{}, fmt.Errorf("failed to change nil *time.Time to timestamp")
		}
		return dateValue.UTC(), nil
	case int, int32, int64, float32, float64:
		epoch, err := ReformatInt64Value(value)
		if err != nil {
			return time.Time{}, err
		}
		// values past the year 33658 as seconds are taken as milliseconds
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	case string:
		trimmed := strings.TrimSpace(dateValue)
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("failed to change %v of type %T to timestamp", value, value)
	default:
		return time.Time{}, fmt.Errorf("failed to change %v of type %T to timestamp", value, value)
	}
}
