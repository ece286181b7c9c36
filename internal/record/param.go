package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Param.
type Kind uint8

// Supported hyperparameter kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Param is a hyperparameter value: null, bool, int, float, string, or a
// nested list or map of Params. The zero value is null.
type Param struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Param
	m    map[string]Param
}

// NullParam returns the null Param.
func NullParam() Param { return Param{} }

// BoolParam wraps a bool.
func BoolParam(v bool) Param { return Param{kind: KindBool, b: v} }

// IntParam wraps an integer.
func IntParam(v int64) Param { return Param{kind: KindInt, i: v} }

// FloatParam wraps a float.
func FloatParam(v float64) Param { return Param{kind: KindFloat, f: v} }

// StringParam wraps a string.
func StringParam(v string) Param { return Param{kind: KindString, s: v} }

// ListParam wraps an ordered sequence. The items are copied.
func ListParam(items ...Param) Param {
	out := make([]Param, len(items))
	copy(out, items)
	return Param{kind: KindList, list: out}
}

// MapParam wraps a string-keyed mapping. The map is copied.
func MapParam(m map[string]Param) Param {
	out := make(map[string]Param, len(m))
	for k, v := range m {
		out[k] = v
	}
	return Param{kind: KindMap, m: out}
}

// Kind reports the variant held by p.
func (p Param) Kind() Kind { return p.kind }

// IsNull reports whether p is null.
func (p Param) IsNull() bool { return p.kind == KindNull }

// Bool returns the bool value and whether p holds one.
func (p Param) Bool() (bool, bool) { return p.b, p.kind == KindBool }

// Int returns the integer value and whether p holds one.
func (p Param) Int() (int64, bool) { return p.i, p.kind == KindInt }

// Float returns the numeric value of an int or float Param.
func (p Param) Float() (float64, bool) {
	switch p.kind {
	case KindFloat:
		return p.f, true
	case KindInt:
		return float64(p.i), true
	default:
		return 0, false
	}
}

// Str returns the string value and whether p holds one.
func (p Param) Str() (string, bool) { return p.s, p.kind == KindString }

// List returns a copy of the items of a list Param.
func (p Param) List() ([]Param, bool) {
	if p.kind != KindList {
		return nil, false
	}
	out := make([]Param, len(p.list))
	copy(out, p.list)
	return out, true
}

// Map returns a copy of the entries of a map Param.
func (p Param) Map() (map[string]Param, bool) {
	if p.kind != KindMap {
		return nil, false
	}
	out := make(map[string]Param, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out, true
}

// Any converts p into plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any.
func (p Param) Any() any {
	switch p.kind {
	case KindBool:
		return p.b
	case KindInt:
		return p.i
	case KindFloat:
		return p.f
	case KindString:
		return p.s
	case KindList:
		out := make([]any, len(p.list))
		for i, item := range p.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(p.m))
		for k, v := range p.m {
			out[k] = v.Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalYAML renders p as its natural YAML value.
func (p Param) MarshalYAML() (any, error) { return p.Any(), nil }

// Equal compares two Params structurally. NaN floats compare equal to NaN.
func (p Param) Equal(o Param) bool {
	if p.kind != o.kind {
		return false
	}
	switch p.kind {
	case KindNull:
		return true
	case KindBool:
		return p.b == o.b
	case KindInt:
		return p.i == o.i
	case KindFloat:
		return p.f == o.f || (math.IsNaN(p.f) && math.IsNaN(o.f))
	case KindString:
		return p.s == o.s
	case KindList:
		if len(p.list) != len(o.list) {
			return false
		}
		for i := range p.list {
			if !p.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(p.m) != len(o.m) {
			return false
		}
		for k, v := range p.m {
			ov, ok := o.m[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders p in a compact, human readable form used by tables.
func (p Param) String() string {
	switch p.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(p.b)
	case KindInt:
		return strconv.FormatInt(p.i, 10)
	case KindFloat:
		return formatFloat(p.f)
	case KindString:
		return p.s
	case KindList:
		parts := make([]string, len(p.list))
		for i, item := range p.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(p.m))
		for k := range p.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + p.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// uintParam keeps v as an int when it fits in int64 and as a float otherwise.
func uintParam(v uint64) Param {
	if v <= math.MaxInt64 {
		return IntParam(int64(v))
	}
	return FloatParam(float64(v))
}

// ErrUnsupportedParam is returned by ParamFromAny for values that have no
// Param representation.
var ErrUnsupportedParam = errors.New("unsupported hyperparameter type")

// ParamFromAny converts plain Go values (as produced by YAML, TOML or JSON
// decoders) into a Param. Arrays and slices become lists; maps must have
// string keys.
func ParamFromAny(v any) (Param, error) {
	switch x := v.(type) {
	case nil:
		return NullParam(), nil
	case Param:
		return x, nil
	case bool:
		return BoolParam(x), nil
	case string:
		return StringParam(x), nil
	case int:
		return IntParam(int64(x)), nil
	case int8:
		return IntParam(int64(x)), nil
	case int16:
		return IntParam(int64(x)), nil
	case int32:
		return IntParam(int64(x)), nil
	case int64:
		return IntParam(x), nil
	case uint8:
		return IntParam(int64(x)), nil
	case uint16:
		return IntParam(int64(x)), nil
	case uint32:
		return IntParam(int64(x)), nil
	case uint:
		return uintParam(uint64(x)), nil
	case uint64:
		return uintParam(x), nil
	case uintptr:
		return uintParam(uint64(x)), nil
	case float32:
		return FloatParam(float64(x)), nil
	case float64:
		return FloatParam(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntParam(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Param{}, fmt.Errorf("%w: number %q", ErrUnsupportedParam, x.String())
		}
		return FloatParam(f), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Param, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := ParamFromAny(rv.Index(i).Interface())
			if err != nil {
				return Param{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return ListParam(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Param{}, fmt.Errorf("%w: map key %s", ErrUnsupportedParam, rv.Type().Key())
		}
		m := make(map[string]Param, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			item, err := ParamFromAny(iter.Value().Interface())
			if err != nil {
				return Param{}, fmt.Errorf("key %q: %w", key, err)
			}
			m[key] = item
		}
		return MapParam(m), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return NullParam(), nil
		}
		return ParamFromAny(rv.Elem().Interface())
	}
	return Param{}, fmt.Errorf("%w: %T", ErrUnsupportedParam, v)
}

// ParamsFromMap converts a decoded document into a hyperparameter map.
func ParamsFromMap(in map[string]any) (map[string]Param, error) {
	out := make(map[string]Param, len(in))
	for k, v := range in {
		p, err := ParamFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("hyperparameter %q: %w", k, err)
		}
		out[k] = p
	}
	return out, nil
}

// MarshalJSON encodes p as a single-key object naming its kind, so that ints
// and floats keep their identity across a round trip.
func (p Param) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(map[string]bool{"bool": p.b})
	case KindInt:
		return json.Marshal(map[string]int64{"int": p.i})
	case KindFloat:
		return json.Marshal(map[string]jsonFloat{"float": jsonFloat(p.f)})
	case KindString:
		return json.Marshal(map[string]string{"str": p.s})
	case KindList:
		return json.Marshal(map[string][]Param{"list": p.list})
	case KindMap:
		return json.Marshal(map[string]map[string]Param{"map": p.m})
	}
	return nil, fmt.Errorf("marshal param: unknown kind %d", p.kind)
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (p *Param) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = NullParam()
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode param: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("decode param: expected one kind tag, got %d", len(obj))
	}
	for tag, raw := range obj {
		switch tag {
		case "bool":
			var v bool
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode bool param: %w", err)
			}
			*p = BoolParam(v)
		case "int":
			var v int64
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode int param: %w", err)
			}
			*p = IntParam(v)
		case "float":
			var v jsonFloat
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode float param: %w", err)
			}
			*p = FloatParam(float64(v))
		case "str":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode str param: %w", err)
			}
			*p = StringParam(v)
		case "list":
			var v []Param
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode list param: %w", err)
			}
			*p = ListParam(v...)
		case "map":
			var v map[string]Param
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode map param: %w", err)
			}
			*p = MapParam(v)
		default:
			return fmt.Errorf("decode param: unknown kind tag %q", tag)
		}
	}
	return nil
}
