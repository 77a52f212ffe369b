package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueTemporal
	ValueNested
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueTemporal:
		return "temporal"
	case ValueNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Value is a loosely typed record value: string, number, bool, temporal or
// a nested structure. The zero Value is null.
type Value struct {
	kind   ValueKind
	text   string
	flag   bool
	at     time.Time
	nested any
}

func NullValue() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: ValueString, text: s} }
func BoolValue(b bool) Value { return Value{kind: ValueBool, flag: b} }
func TemporalValue(t time.Time) Value { return Value{kind: ValueTemporal, at: t} }

// NumberValue keeps the decimal text of a number as given.
func NumberValue(text string) Value { return Value{kind: ValueNumber, text: text} }

// NestedValue holds a structure that is serialized before storage.
func NestedValue(v any) Value {
	if v == nil {
		return NullValue()
	}
	return Value{kind: ValueNested, nested: v}
}

// ValueOf tags a loosely typed value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case string:
		return StringValue(x)
	case []byte:
		return StringValue(string(x))
	case bool:
		return BoolValue(x)
	case json.Number:
		return NumberValue(x.String())
	case int:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int8:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int16:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int32:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int64:
		return NumberValue(strconv.FormatInt(x, 10))
	case uint:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return NumberValue(strconv.FormatUint(x, 10))
	case float32:
		return NumberValue(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case float64:
		return NumberValue(strconv.FormatFloat(x, 'f', -1, 64))
	case time.Time:
		return TemporalValue(x)
	case *time.Time:
		if x == nil {
			return NullValue()
		}
		return TemporalValue(*x)
	default:
		return NestedValue(x)
	}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == ValueNull }

// Time returns the instant of a temporal value.
func (v Value) Time() (time.Time, bool) {
	return v.at, v.kind == ValueTemporal
}

// Bool returns the flag of a bool value.
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == ValueBool
}

// String returns the string form used when the value is stored as text.
// Nested values render as JSON.
func (v Value) String() string {
	switch v.kind {
	case ValueString, ValueNumber:
		return v.text
	case ValueBool:
		return strconv.FormatBool(v.flag)
	case ValueTemporal:
		return v.at.Format(time.RFC3339Nano)
	case ValueNested:
		b, err := json.Marshal(v.nested)
		if err != nil {
			return fmt.Sprintf("%v", v.nested)
		}
		return string(b)
	default:
		return ""
	}
}

// JSON serializes the value to its canonical JSON text.
func (v Value) JSON() (string, error) {
	var b []byte
	var err error
	switch v.kind {
	case ValueNull:
		return "null", nil
	case ValueNumber:
		return v.text, nil
	case ValueString:
		b, err = json.Marshal(v.text)
	case ValueBool:
		b, err = json.Marshal(v.flag)
	case ValueTemporal:
		b, err = json.Marshal(v.at)
	case ValueNested:
		b, err = json.Marshal(v.nested)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Interface returns the untagged value.
func (v Value) Interface() any {
	switch v.kind {
	case ValueString, ValueNumber:
		return v.text
	case ValueBool:
		return v.flag
	case ValueTemporal:
		return v.at
	case ValueNested:
		return v.nested
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	s, err := v.JSON()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Record is one record keyed by column name.
type Record map[string]Value

// NewRecord tags every value of a loosely typed map.
func NewRecord(m map[string]any) Record {
	r := make(Record, len(m))
	for k, v := range m {
		r[k] = ValueOf(v)
	}
	return r
}
