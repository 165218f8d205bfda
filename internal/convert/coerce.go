package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// JSONable lets a type supply its own JSON-compatible representation during
// coercion, the Go analogue of the source implementation's duck-typed
// to_dict/model_dump detection ("Heterogeneous tool-response
// coercion").
type JSONable interface {
	ToJSON() (any, error)
}

// CoerceJSON defensively converts an arbitrary Go value into a JSON string
// suitable for a TOOL_CALL_RESULT payload ("Serialization of
// tool responses"). It never panics and never returns an error: cycles are
// broken, unrepresentable values fall back to their string form, and total
// marshal failure yields "".
func CoerceJSON(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	coerced := coerce(v, make(map[uintptr]bool))
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(coerced); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func coerce(v any, seen map[uintptr]bool) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		out := make([]int, len(t))
		for i, b := range t {
			out[i] = int(b)
		}
		return out
	case JSONable:
		j, err := t.ToJSON()
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return coerce(j, seen)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return coerce(rv.Elem().Interface(), seen)
	case reflect.Map:
		ptr := rv.Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return "<cycle>"
			}
			seen[ptr] = true
		}
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprintf("%v", key.Interface())] = coerce(rv.MapIndex(key).Interface(), seen)
		}
		return out
	case reflect.Slice:
		ptr := rv.Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return "<cycle>"
			}
			seen[ptr] = true
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = coerce(rv.Index(i).Interface(), seen)
		}
		return out
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := rt.Field(i)
			if f.PkgPath != "" {
				continue // unexported
			}
			out[f.Name] = coerce(rv.Field(i).Interface(), seen)
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}
