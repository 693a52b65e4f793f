package api

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind tags the scalar type of a record field.
type ValueKind int

const (
	StringValue ValueKind = iota
	IntValue
	FloatValue
)

// Value is a validated scalar field value.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Fl   float64
}

// String renders the canonical string form used for exact matching and
// path segment rendering. Integers render without a decimal point.
func (v Value) String() string {
	switch v.Kind {
	case IntValue:
		return strconv.FormatInt(v.Int, 10)
	case FloatValue:
		return strconv.FormatFloat(v.Fl, 'g', -1, 64)
	default:
		return v.Str
	}
}

// Float returns the numeric form of the value. Strings coerce when they
// parse as a float; the second return reports whether coercion succeeded.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case IntValue:
		return float64(v.Int), true
	case FloatValue:
		return v.Fl, true
	default:
		f, err := strconv.ParseFloat(v.Str, 64)
		return f, err == nil
	}
}

// Record is a flat mapping of field name to scalar value.
type Record map[string]Value

// NewRecord validates a raw key-value map into a Record. Only string,
// integer, and float scalars are accepted; anything else (nested maps,
// slices, nil) is rejected before it can reach the router.
func NewRecord(raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for field, val := range raw {
		v, err := NewValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		rec[field] = v
	}
	return rec, nil
}

// NewValue converts one language-native scalar into a tagged Value.
func NewValue(val any) (Value, error) {
	switch x := val.(type) {
	case string:
		return Value{Kind: StringValue, Str: x}, nil
	case int:
		return Value{Kind: IntValue, Int: int64(x)}, nil
	case int64:
		return Value{Kind: IntValue, Int: x}, nil
	case float64:
		// JSON decoders hand over whole numbers as float64.
		if x == float64(int64(x)) {
			return Value{Kind: IntValue, Int: int64(x)}, nil
		}
		return Value{Kind: FloatValue, Fl: x}, nil
	case float32:
		return NewValue(float64(x))
	default:
		return Value{}, fmt.Errorf("unsupported scalar type %T", val)
	}
}

// Str is shorthand for a string Value.
func Str(s string) Value { return Value{Kind: StringValue, Str: s} }

// Int is shorthand for an integer Value.
func Int(i int64) Value { return Value{Kind: IntValue, Int: i} }

// Float is shorthand for a float Value.
func Float(f float64) Value { return Value{Kind: FloatValue, Fl: f} }

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Clone returns a shallow copy. The router substitutes default values into
// a clone so the caller's record is never mutated.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Plain converts the record back to a language-native map, for JSON
// serialization of stored documents.
func (r Record) Plain() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch v.Kind {
		case IntValue:
			out[k] = v.Int
		case FloatValue:
			out[k] = v.Fl
		default:
			out[k] = v.Str
		}
	}
	return out
}
