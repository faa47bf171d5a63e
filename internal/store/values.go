package store

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/dataset"
	"github.com/roach88/datamock/internal/ir"
)

// sqlType maps an inferred column type to a SQLite declared type.
// TIMESTAMP and DATE are TEXT: the driver would otherwise parse them into
// time.Time and change their text form.
func sqlType(t dataset.ColumnType) string {
	switch t {
	case dataset.TypeInteger, dataset.TypeBoolean:
		return "INTEGER"
	case dataset.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// toSQL converts a record value into a driver argument.
func toSQL(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.List, ir.Object:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, errors.Wrap(err, "marshal nested value")
		}
		return string(data), nil
	}
	return nil, errors.Newf("unsupported value %T", v)
}

// fromSQL converts a scanned column into a record value.
func fromSQL(v any) ir.Value {
	switch val := v.(type) {
	case nil:
		return ir.Null{}
	case int64:
		return ir.Int(val)
	case float64:
		return ir.Float(val)
	case bool:
		return ir.Bool(val)
	case []byte:
		return textValue(string(val))
	case string:
		return textValue(val)
	case time.Time:
		return ir.String(val.UTC().Format(ir.TimestampLayout))
	}
	if converted, err := ir.FromAny(v); err == nil {
		return converted
	}
	return ir.Null{}
}

// textValue decodes JSON arrays and objects written by toSQL.
func textValue(s string) ir.Value {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if decoded, err := ir.ParseJSON([]byte(trimmed)); err == nil {
			return decoded
		}
	}
	return ir.String(s)
}
