// Package object is the heart of the data model described in spec §3:
// it defines the tagged Value union (§4.A), the heap object header and
// its concrete kinds (the five of §4.B plus class, instance and bound
// method), and the Chunk bytecode container
// (§4.D). The three live in one package, deliberately, for the same
// reason clox keeps them in one translation unit: a Chunk's constant
// pool holds Values, a Value can hold an object reference, and an
// ObjFunction object holds a Chunk. Splitting that triangle across Go
// packages forces either an import cycle or an interface{} escape
// hatch — neither is worth it for three data types this small and this
// tightly coupled. See DESIGN.md for the grounding note.
package object

import (
	"strconv"
)

// ValueType discriminates the case a Value currently holds.
type ValueType byte

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
	ValError
)

// ErrorKind distinguishes the two ways an interpretation can fail.
type ErrorKind byte

const (
	NoError ErrorKind = iota
	CompileError
	RuntimeError
)

func (k ErrorKind) String() string {
	switch k {
	case CompileError:
		return "CompileError"
	case RuntimeError:
		return "RuntimeError"
	default:
		return "NoError"
	}
}

// Value is the tagged union described in spec §3/§4.A. Only the field
// matching Type carries meaning; it is a plain struct (not an
// interface{}) so every stack slot is a fixed, cheap-to-copy size.
type Value struct {
	Type    ValueType
	Bool    bool
	Number  float64
	Obj     *Obj
	ErrKind ErrorKind
}

var Nil = Value{Type: ValNil}

func BoolVal(b bool) Value         { return Value{Type: ValBool, Bool: b} }
func NumberVal(n float64) Value    { return Value{Type: ValNumber, Number: n} }
func ObjVal(o *Obj) Value          { return Value{Type: ValObj, Obj: o} }
func ErrorVal(kind ErrorKind) Value { return Value{Type: ValError, ErrKind: kind} }

func (v Value) IsNil() bool { return v.Type == ValNil }

func (v Value) AsBool() (bool, bool) {
	if v.Type != ValBool {
		return false, false
	}
	return v.Bool, true
}

func (v Value) AsNumber() (float64, bool) {
	if v.Type != ValNumber {
		return 0, false
	}
	return v.Number, true
}

func (v Value) AsObj() (*Obj, bool) {
	if v.Type != ValObj {
		return nil, false
	}
	return v.Obj, true
}

func (v Value) AsError() (ErrorKind, bool) {
	if v.Type != ValError {
		return NoError, false
	}
	return v.ErrKind, true
}

// AsString reports whether v holds a string object.
func (v Value) AsString() (*ObjString, bool) {
	if v.Type != ValObj || v.Obj == nil || v.Obj.Kind != KindString {
		return nil, false
	}
	return v.Obj.AsString(), true
}

// IsFalsey implements the spec's truthiness rule: nil and false are
// falsey, everything else (including 0 and "") is truthy.
func IsFalsey(v Value) bool {
	switch v.Type {
	case ValNil:
		return true
	case ValBool:
		return !v.Bool
	default:
		return false
	}
}

// ValuesEqual implements spec §4.A equality: distinct tags are never
// equal; numbers use IEEE-754 equality (NaN != NaN); object references
// (including interned strings) compare by pointer identity; errors
// compare by kind.
func ValuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValBool:
		return a.Bool == b.Bool
	case ValNumber:
		return a.Number == b.Number
	case ValObj:
		return a.Obj == b.Obj
	case ValError:
		return a.ErrKind == b.ErrKind
	default:
		return false
	}
}

// PrintValue renders v per the spec's printing rule: numbers without
// unnecessary trailing zeros, strings as raw bytes, functions as
// "<fn name>", nil as "nil".
func PrintValue(v Value) string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case ValError:
		return "<error " + v.ErrKind.String() + ">"
	case ValObj:
		return PrintObject(v.Obj)
	default:
		return "<invalid value>"
	}
}
