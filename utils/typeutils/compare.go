package typeutils

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// return 0 for equal, -1 if a < b else 1 if a>b
func Compare(a, b any) int {
	// Handle nil cases first
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch aVal := a.(type) {
	case uint, uint8, uint16, uint32, uint64:
		if !convertible(b, reflect.Uint64) {
			break
		}
		aUint := reflect.ValueOf(a).Convert(reflect.TypeOf(uint64(0))).Uint()
		bUint := reflect.ValueOf(b).Convert(reflect.TypeOf(uint64(0))).Uint()
		if aUint < bUint {
			return -1
		} else if aUint > bUint {
			return 1
		}
		return 0
	case int, int8, int16, int32, int64:
		if !convertible(b, reflect.Int64) {
			break
		}
		aInt := reflect.ValueOf(a).Convert(reflect.TypeOf(int64(0))).Int()
		bInt := reflect.ValueOf(b).Convert(reflect.TypeOf(int64(0))).Int()
		if aInt < bInt {
			return -1
		} else if aInt > bInt {
			return 1
		}
		return 0
	case float32, float64:
		if !convertible(b, reflect.Float64) {
			break
		}
		aFloat := reflect.ValueOf(a).Convert(reflect.TypeOf(float64(0))).Float()
		bFloat := reflect.ValueOf(b).Convert(reflect.TypeOf(float64(0))).Float()
		if aFloat < bFloat {
			return -1
		} else if aFloat > bFloat {
			return 1
		}
		return 0
	case time.Time:
		bTime, ok := b.(time.Time)
		if !ok {
			break
		}
		if aVal.Before(bTime) {
			return -1
		} else if aVal.After(bTime) {
			return 1
		}
		return 0
	case bool:
		bBool, ok := b.(bool)
		if !ok {
			break
		}
		// false < true
		if !aVal && bBool {
			return -1
		} else if aVal && !bBool {
			return 1
		}
		return 0
	}

	// For mismatched or other types, convert to string for comparison
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func convertible(v any, kind reflect.Kind) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kind == reflect.Int64 || kind == reflect.Uint64 || kind == reflect.Float64
	default:
		return false
	}
}
