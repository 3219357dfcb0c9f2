package warehouse

import (
	"math"
	"sort"
	"time"

	"github.com/desksync/backend/internal/models"
)

type FieldType string

const (
	TypeText      FieldType = "TEXT"
	TypeBigint    FieldType = "BIGINT"
	TypeDouble    FieldType = "DOUBLE PRECISION"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeRecord    FieldType = "JSONB"
)

type Field struct {
	Name     string
	Type     FieldType
	Repeated bool
}

type Schema []Field

// forceNullable lists fields whose remote shape flips between a one-element
// list and absent. They always land as plain nullable JSONB.
var forceNullable = map[string]struct{}{
	"custom_fields": {},
}

// InferSchema derives a column per field from the first non-nil value
// observed across the batch. Maps and lists of maps become JSONB, lists of
// scalars become repeated text, timestamps keep their type, whole-valued
// numbers become integers, fractional ones doubles, and everything else
// defaults to text.
func InferSchema(records []models.Record) Schema {
	if len(records) == 0 {
		return nil
	}

	names := make([]string, 0, len(records[0]))
	seen := make(map[string]struct{}, len(records[0]))
	for _, rec := range records {
		for name := range rec {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	schema := make(Schema, 0, len(names))
	for _, name := range names {
		if _, ok := forceNullable[name]; ok {
			schema = append(schema, Field{Name: name, Type: TypeRecord})
			continue
		}
		schema = append(schema, inferField(name, firstValue(records, name)))
	}
	return schema
}

func firstValue(records []models.Record, name string) any {
	for _, rec := range records {
		if v, ok := rec[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

func inferField(name string, value any) Field {
	switch v := value.(type) {
	case time.Time, *time.Time:
		return Field{Name: name, Type: TypeTimestamp}
	case bool:
		return Field{Name: name, Type: TypeBoolean}
	case int, int32, int64:
		return Field{Name: name, Type: TypeBigint}
	case float64:
		// JSON decoding hands every number over as float64; whole values
		// are really integers upstream.
		if v == math.Trunc(v) {
			return Field{Name: name, Type: TypeBigint}
		}
		return Field{Name: name, Type: TypeDouble}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return Field{Name: name, Type: TypeBigint}
		}
		return Field{Name: name, Type: TypeDouble}
	case map[string]any:
		return Field{Name: name, Type: TypeRecord}
	case []any:
		if len(v) > 0 {
			if _, ok := v[0].(map[string]any); ok {
				return Field{Name: name, Type: TypeRecord}
			}
		}
		return Field{Name: name, Type: TypeText, Repeated: true}
	case []string:
		return Field{Name: name, Type: TypeText, Repeated: true}
	default:
		return Field{Name: name, Type: TypeText}
	}
}

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

func (f Field) columnType() string {
	if f.Repeated {
		return string(f.Type) + "[]"
	}
	return string(f.Type)
}
