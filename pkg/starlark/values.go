package starlark

import (
	"fmt"
	"maps"
	"slices"

	"go.starlark.net/starlark"
)

// ConvertToStarlark converts a Go value built from strings, numbers, bools,
// slices and string-keyed maps to a Starlark value.
func ConvertToStarlark(val any) starlark.Value {
	switch v := val.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return v
	case string:
		return starlark.String(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case float64:
		return starlark.Float(v)
	case bool:
		return starlark.Bool(v)
	case []string:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = starlark.String(item)
		}
		return starlark.NewList(items)
	case []any:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = ConvertToStarlark(item)
		}
		return starlark.NewList(items)
	case map[string]any:
		dict := starlark.NewDict(len(v))
		for _, key := range slices.Sorted(maps.Keys(v)) {
			_ = dict.SetKey(starlark.String(key), ConvertToStarlark(v[key]))
		}
		return dict
	default:
		return starlark.String(fmt.Sprint(val))
	}
}

// ConvertFromStarlark converts a Starlark value to plain Go values.
func ConvertFromStarlark(val starlark.Value) any {
	switch v := val.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.String:
		return string(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case starlark.Bool:
		return bool(v)
	case *starlark.List:
		items := make([]any, v.Len())
		for i := range v.Len() {
			items[i] = ConvertFromStarlark(v.Index(i))
		}
		return items
	case starlark.Tuple:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = ConvertFromStarlark(item)
		}
		return items
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				out[item[0].String()] = ConvertFromStarlark(item[1])
				continue
			}
			out[string(key)] = ConvertFromStarlark(item[1])
		}
		return out
	default:
		return val.String()
	}
}
