// Package datatree models structured player-data payloads as a typed tree.
//
// A Value is a tagged union of nil, bool, number, string, map, and list. The
// engine stores and merges Values instead of untyped nested maps so traversal
// is exhaustive by construction.
package datatree

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindMap
	KindList
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable-by-convention tree node. The zero Value is nil-kind.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	m    map[string]Value
	list []Value
}

// Nil returns the nil-kind Value.
func Nil() Value {
	return Value{}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a float64.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// String wraps a string.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Map wraps a record of named children. The map is copied.
func Map(fields map[string]Value) Value {
	copied := make(map[string]Value, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Value{kind: KindMap, m: copied}
}

// List wraps a sequence of children. The slice is copied.
func List(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindList, list: copied}
}

// Kind reports the variant held by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil reports whether the value is the nil variant.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// AsBool returns the boolean payload when the value is bool-kind.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload when the value is number-kind.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsString returns the string payload when the value is string-kind.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Field returns the named child of a map value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.m[name]
	return child, ok
}

// FieldNames returns the sorted child names of a map value.
func (v Value) FieldNames() []string {
	if v.kind != KindMap {
		return nil
	}
	names := make([]string, 0, len(v.m))
	for name := range v.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Item returns the list child at index i.
func (v Value) Item(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Len returns the child count of a map or list value, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		return len(v.m)
	case KindList:
		return len(v.list)
	default:
		return 0
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		copied := make(map[string]Value, len(v.m))
		for k, child := range v.m {
			copied[k] = child.Clone()
		}
		return Value{kind: KindMap, m: copied}
	case KindList:
		copied := make([]Value, len(v.list))
		for i, child := range v.list {
			copied[i] = child.Clone()
		}
		return Value{kind: KindList, list: copied}
	default:
		return v
	}
}

// Equal reports deep equality between two values.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Merge fills keys present in defaults but absent in value, recursively for
// nested maps. Keys already present in value are never overwritten. When
// either side is not a map, value wins unchanged.
func Merge(value, defaults Value) Value {
	if value.kind != KindMap || defaults.kind != KindMap {
		return value
	}
	merged := make(map[string]Value, len(value.m))
	for k, child := range value.m {
		if defChild, ok := defaults.m[k]; ok {
			merged[k] = Merge(child, defChild)
		} else {
			merged[k] = child
		}
	}
	for k, defChild := range defaults.m {
		if _, ok := value.m[k]; !ok {
			merged[k] = defChild.Clone()
		}
	}
	return Value{kind: KindMap, m: merged}
}

// MarshalJSON encodes the value using its natural JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNil:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindMap:
		return json.Marshal(v.m)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("marshal datatree value: unknown kind %v", v.kind)
	}
}

// UnmarshalJSON decodes any JSON document into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal datatree value: %w", err)
	}
	decoded, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Nil(), nil
	case bool:
		return Bool(typed), nil
	case float64:
		return Number(typed), nil
	case string:
		return String(typed), nil
	case map[string]any:
		fields := make(map[string]Value, len(typed))
		for k, child := range typed {
			decoded, err := fromAny(child)
			if err != nil {
				return Value{}, err
			}
			fields[k] = decoded
		}
		return Value{kind: KindMap, m: fields}, nil
	case []any:
		items := make([]Value, len(typed))
		for i, child := range typed {
			decoded, err := fromAny(child)
			if err != nil {
				return Value{}, err
			}
			items[i] = decoded
		}
		return Value{kind: KindList, list: items}, nil
	default:
		return Value{}, fmt.Errorf("unmarshal datatree value: unsupported type %T", raw)
	}
}
