package object

// Kind discriminates the concrete type of a heap object.
type Kind byte

const (
	KindString Kind = iota
	KindFunction
	KindNative
	KindClosure
	KindUpvalue
	KindClass
	KindInstance
	KindBoundMethod
)

// Obj is the header embedded as the first field of every heap object
// kind, per spec §3. Next threads every allocated object into the
// heap's all-objects list; Marked is the GC stub's mark bit.
type Obj struct {
	Kind   Kind
	Marked bool
	Next   *Obj

	str      *ObjString
	fn       *ObjFunction
	native   *ObjNative
	closure  *ObjClosure
	upvalue  *ObjUpvalue
	class    *ObjClass
	instance *ObjInstance
	bound    *ObjBoundMethod
}

func (o *Obj) AsString() *ObjString           { return o.str }
func (o *Obj) AsFunction() *ObjFunction       { return o.fn }
func (o *Obj) AsNative() *ObjNative           { return o.native }
func (o *Obj) AsClosure() *ObjClosure         { return o.closure }
func (o *Obj) AsUpvalue() *ObjUpvalue         { return o.upvalue }
func (o *Obj) AsClass() *ObjClass             { return o.class }
func (o *Obj) AsInstance() *ObjInstance       { return o.instance }
func (o *Obj) AsBoundMethod() *ObjBoundMethod { return o.bound }

// ObjString is an immutable, interned byte string. Equal-content
// strings are allocated exactly once; see pkg/table.MakeString.
type ObjString struct {
	Obj   Obj
	Bytes []byte
	Hash  uint32
}

// ObjFunction is a compiled function: its arity, how many upvalues it
// captures, the chunk of bytecode implementing it, and its name (nil
// for the implicit top-level script function).
type ObjFunction struct {
	Obj           Obj
	Arity         int
	UpvalueCount  int
	Chunk         *Chunk
	Name          *ObjString
}

// NativeFn is a host callable: given argc and the arguments (top of
// stack last), it returns a result value or an error message.
type NativeFn func(argCount int, args []Value) (Value, error)

// ObjNative wraps a host function registered via RegisterNative.
type ObjNative struct {
	Obj   Obj
	Fn    NativeFn
	Arity int
	Name  string
}

// ObjUpvalue is an indirection a closure uses to read/write a variable
// owned by an enclosing frame. Open: Location points into a live stack
// slot. Closed: Location points at Closed itself.
type ObjUpvalue struct {
	Obj      Obj
	Location *Value
	Slot     int
	Closed   Value
	NextOpen *ObjUpvalue
}

// ObjClosure pairs a function with the upvalues it captured at the
// point its OP_CLOSURE instruction ran.
type ObjClosure struct {
	Obj       Obj
	Function  *ObjFunction
	Upvalues  []*ObjUpvalue
}

// ObjClass is a class object: its name and its method table (selector
// name -> ObjClosure), including inherited methods copied in at
// OP_INHERIT time (spec §4.F class-support expansion).
type ObjClass struct {
	Obj     Obj
	Name    *ObjString
	Methods map[string]*ObjClosure
}

// ObjInstance is an instance of an ObjClass with dynamically-typed
// fields (a plain Go map keyed by field name; the language has no
// field declarations, so a fixed-offset layout does not apply here).
type ObjInstance struct {
	Obj    Obj
	Class  *ObjClass
	Fields map[string]Value
}

// ObjBoundMethod pairs a receiver instance with one of its class's
// methods, produced by property lookup so the method closes over the
// correct `this` when later called.
type ObjBoundMethod struct {
	Obj      Obj
	Receiver Value
	Method   *ObjClosure
}

// PrintObject renders the object-kind half of PrintValue.
func PrintObject(o *Obj) string {
	if o == nil {
		return "nil"
	}
	switch o.Kind {
	case KindString:
		return string(o.str.Bytes)
	case KindFunction:
		if o.fn.Name == nil {
			return "<script>"
		}
		return "<fn " + string(o.fn.Name.Bytes) + ">"
	case KindNative:
		return "<native fn " + o.native.Name + ">"
	case KindClosure:
		if o.closure.Function.Name == nil {
			return "<script>"
		}
		return "<fn " + string(o.closure.Function.Name.Bytes) + ">"
	case KindUpvalue:
		return "<upvalue>"
	case KindClass:
		return string(o.class.Name.Bytes)
	case KindInstance:
		return string(o.instance.Class.Name.Bytes) + " instance"
	case KindBoundMethod:
		if o.bound.Method.Function.Name == nil {
			return "<fn>"
		}
		return "<fn " + string(o.bound.Method.Function.Name.Bytes) + ">"
	default:
		return "<object>"
	}
}
