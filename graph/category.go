package graph

import "reflect"

// Category is the logical type tag of a data port.
type Category string

const (
	Number  Category = "number"
	String  Category = "string"
	Boolean Category = "boolean"
	Object  Category = "object"
	Array   Category = "array"
	Any     Category = "any"
)

// Valid reports whether c is one of the closed set of categories. The
// empty category is treated as Any.
func (c Category) Valid() bool {
	switch c {
	case Number, String, Boolean, Object, Array, Any, "":
		return true
	}
	return false
}

func (c Category) normalize() Category {
	if c == "" {
		return Any
	}
	return c
}

// Compatible reports whether a value of category a may flow into a port of
// category b.
func Compatible(a, b Category) bool {
	a, b = a.normalize(), b.normalize()
	return a == b || a == Any || b == Any
}

// CategoryOf classifies a runtime value. Nil classifies as Any.
func CategoryOf(v any) Category {
	switch v.(type) {
	case nil:
		return Any
	case bool:
		return Boolean
	case string:
		return String
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Number
	case []any:
		return Array
	case map[string]any:
		return Object
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return Array
	case reflect.Map, reflect.Struct:
		return Object
	}
	return Any
}

// Accepts reports whether v conforms to c at runtime.
func (c Category) Accepts(v any) bool {
	c = c.normalize()
	if c == Any || v == nil {
		return true
	}
	return CategoryOf(v) == c
}
