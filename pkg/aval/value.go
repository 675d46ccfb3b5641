// Package aval defines the small tagged-union value type passed across the
// boundary between the transaction service and the scripting runtime: UDF
// call arguments and aggregation stream values.
package aval

import "fmt"

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindStr
	KindBytes
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a logical argument or stream element exchanged with the
// scripting runtime. Only one of the typed fields is meaningful, selected
// by Kind.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	List  []Value
	Map   map[string]Value
}

func Nil() Value                 { return Value{Kind: KindNil} }
func Int(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value      { return Value{Kind: KindFloat, Float: v} }
func Str(v string) Value         { return Value{Kind: KindStr, Str: v} }
func Bytes(v []byte) Value       { return Value{Kind: KindBytes, Bytes: v} }
func List(v []Value) Value       { return Value{Kind: KindList, List: v} }
func Map(v map[string]Value) Value { return Value{Kind: KindMap, Map: v} }

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindStr:
		return v.Str
	case KindBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case KindList:
		return fmt.Sprintf("%v", v.List)
	case KindMap:
		return fmt.Sprintf("%v", v.Map)
	default:
		return "<invalid value>"
	}
}
