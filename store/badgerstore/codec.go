package badgerstore

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// floatTag marks a non-finite float in an encoded value. JSON has no
// spelling for ±Inf or NaN, and the division nodes produce them.
const floatTag = "$float"

func encode(v any) ([]byte, error) {
	return json.Marshal(tagFloats(reflect.ValueOf(v)))
}

func decode(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return untagFloats(v), nil
}

// tagFloats rewrites slices and string-keyed maps into their JSON shape so
// non-finite floats at any depth can be tagged. Other values are left to
// encoding/json.
func tagFloats(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return tagFloats(rv.Elem())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return map[string]any{floatTag: strconv.FormatFloat(f, 'g', -1, 64)}
		}
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = tagFloats(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = tagFloats(iter.Value())
		}
		return out
	}
	return rv.Interface()
}

func untagFloats(v any) any {
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = untagFloats(t[i])
		}
	case map[string]any:
		if s, ok := t[floatTag].(string); ok && len(t) == 1 {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
		for k := range t {
			t[k] = untagFloats(t[k])
		}
	}
	return v
}
