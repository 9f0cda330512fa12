// internal/models/entity.go
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// EntityKind tags the variant held by an EntityValue.
type EntityKind uint8

const (
	KindNull EntityKind = iota
	KindString
	KindInt
	KindStringList
	KindBool
)

func (k EntityKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindStringList:
		return "list"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// EntityValue is one of: string, integer, list-of-string, boolean or null.
// The zero value is null.
type EntityValue struct {
	kind EntityKind
	str  string
	num  int64
	list []string
	flag bool
}

func NullValue() EntityValue { return EntityValue{} }

func NewString(s string) EntityValue { return EntityValue{kind: KindString, str: s} }

func NewInt(n int64) EntityValue { return EntityValue{kind: KindInt, num: n} }

func NewBool(b bool) EntityValue { return EntityValue{kind: KindBool, flag: b} }

// NewStringList copies items.
func NewStringList(items ...string) EntityValue {
	list := make([]string, len(items))
	copy(list, items)
	return EntityValue{kind: KindStringList, list: list}
}

func (v EntityValue) Kind() EntityKind { return v.kind }

func (v EntityValue) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v EntityValue) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

func (v EntityValue) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsStringList returns a copy of the list.
func (v EntityValue) AsStringList() ([]string, bool) {
	if v.kind != KindStringList {
		return nil, false
	}
	out := make([]string, len(v.list))
	copy(out, v.list)
	return out, true
}

// IsMissing reports whether the value counts as absent for a contract:
// null, empty string or empty list.
func (v EntityValue) IsMissing() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == ""
	case KindStringList:
		return len(v.list) == 0
	default:
		return false
	}
}

// Interface returns the plain Go value (nil, string, int64, []string, bool).
func (v EntityValue) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindStringList:
		list, _ := v.AsStringList()
		return list
	case KindBool:
		return v.flag
	default:
		return nil
	}
}

func (v EntityValue) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindStringList:
		return "[" + strings.Join(v.list, ",") + "]"
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return "null"
	}
}

func (v EntityValue) Equal(other EntityValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.num == other.num
	case KindBool:
		return v.flag == other.flag
	case KindStringList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v EntityValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *EntityValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseEntityValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseEntityValue maps a decoded JSON value onto the variant. Numbers must
// be integral; lists must hold only strings; objects are rejected.
func ParseEntityValue(raw interface{}) (EntityValue, error) {
	switch val := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return NewString(val), nil
	case bool:
		return NewBool(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return NewInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return EntityValue{}, fmt.Errorf("number %q is not representable", val.String())
		}
		return integralFloat(f)
	case float64:
		return integralFloat(val)
	case int:
		return NewInt(int64(val)), nil
	case int64:
		return NewInt(val), nil
	case []string:
		return NewStringList(val...), nil
	case []interface{}:
		items := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return EntityValue{}, fmt.Errorf("list item %d is %T, want string", i, item)
			}
			items = append(items, s)
		}
		return EntityValue{kind: KindStringList, list: items}, nil
	default:
		return EntityValue{}, fmt.Errorf("unsupported entity value type %T", raw)
	}
}

func integralFloat(f float64) (EntityValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return EntityValue{}, fmt.Errorf("number %v is not an integer", f)
	}
	return NewInt(int64(f)), nil
}

// EntityMap holds the entities extracted for one utterance. Absent keys and
// explicit nulls are both missing.
type EntityMap map[string]EntityValue

// Missing reports whether key is absent or holds a missing value.
func (m EntityMap) Missing(key string) bool {
	v, ok := m[key]
	return !ok || v.IsMissing()
}

// Keys returns the keys in sorted order.
func (m EntityMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m EntityMap) Clone() EntityMap {
	out := make(EntityMap, len(m))
	for k, v := range m {
		if v.kind == KindStringList {
			v = NewStringList(v.list...)
		}
		out[k] = v
	}
	return out
}

// Plain converts the map to plain Go values, e.g. for job variables.
func (m EntityMap) Plain() map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}
