package store

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Encode converts a tagged struct (or map) into Data using its bson tags.
// Values come back in the same shapes the Mongo driver produces on read.
func Encode(v any) (Data, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return Data(m), nil
}

// Decode fills v from d using v's bson tags.
func Decode(d Data, v any) error {
	if d == nil {
		d = Data{}
	}
	raw, err := bson.Marshal(map[string]any(d))
	if err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	if err := bson.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decode: %w", err)
	}
	return nil
}

// clone deep-copies d through the codec so stored values never alias caller memory.
func clone(d Data) (Data, error) {
	if d == nil {
		return Data{}, nil
	}
	return Encode(map[string]any(d))
}

// normalizeValue passes a single value through the codec.
func normalizeValue(v any) (any, error) {
	d, err := Encode(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return d["v"], nil
}

// Field reads a dotted path from d.
func Field(d Data, path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, key := range splitField(path) {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Data:
		return m, true
	case bson.M:
		return m, true
	case bson.D:
		return m.Map(), true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case bson.A:
		return s, true
	case nil:
		return nil, true
	}
	return nil, false
}

// AsInt64 reads numeric values in whatever width they were stored.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

func AsFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// sameValue compares two stored values, treating numbers by value.
func sameValue(a, b any) bool {
	if fa, ok := AsFloat64(a); ok {
		fb, ok := AsFloat64(b)
		return ok && fa == fb
	}
	if da, ok := a.(primitive.DateTime); ok {
		db, ok := b.(primitive.DateTime)
		return ok && da == db
	}
	return reflect.DeepEqual(a, b)
}
