package object

// Heap owns every object allocated during one interpretation: it is the
// "objects" list of spec §3 (VM state) and implements component B,
// the object heap, from spec §4.B. The compiler borrows a Heap to
// intern string and function constants; the VM owns the Heap for the
// lifetime of InitVM/FreeVM.
//
// Grounded on the teacher's vm.New()/vm.objects-equivalent allocation
// sites in pkg/vm/vm.go (NewObject, Array, Instance construction),
// generalized into the intrusive linked list spec §4.B specifies
// instead of leaving allocation inline in the VM dispatch loop.
type Heap struct {
	head *Obj
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// link prepends o to the heap's object list and returns it, implementing
// AllocateObject's "prepend to the VM object list" step.
func (h *Heap) link(o *Obj) *Obj {
	o.Next = h.head
	h.head = o
	return o
}

// Head returns the first object in the all-objects list, the root the
// GC stub's sweep phase (or a future real collector) walks.
func (h *Heap) Head() *Obj { return h.head }

// NewString allocates a fresh, un-interned ObjString. Callers that want
// the intern-first protocol must go through pkg/table.MakeString, which
// calls this only on a genuine cache miss.
func (h *Heap) NewString(bytes []byte, hash uint32) *ObjString {
	s := &ObjString{Bytes: bytes, Hash: hash}
	s.Obj = Obj{Kind: KindString, str: s}
	h.link(&s.Obj)
	return s
}

// NewFunction allocates a function shell; the compiler fills in Arity,
// UpvalueCount, Chunk, and Name as compilation of its body completes.
func (h *Heap) NewFunction() *ObjFunction {
	f := &ObjFunction{Chunk: NewChunk()}
	f.Obj = Obj{Kind: KindFunction, fn: f}
	h.link(&f.Obj)
	return f
}

// NewNative allocates a native (host) function object.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	n := &ObjNative{Fn: fn, Arity: arity, Name: name}
	n.Obj = Obj{Kind: KindNative, native: n}
	h.link(&n.Obj)
	return n
}

// NewClosure allocates a closure over fn with upvalueCount upvalue slots.
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	c.Obj = Obj{Kind: KindClosure, closure: c}
	h.link(&c.Obj)
	return c
}

// NewUpvalue allocates an open upvalue pointing at a live stack slot.
// index records that slot's position in the VM's value stack so open
// upvalues can be kept in slot order without comparing *Value pointers
// (Go defines no ordering on pointers).
func (h *Heap) NewUpvalue(slot *Value, index int) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot, Slot: index}
	u.Obj = Obj{Kind: KindUpvalue, upvalue: u}
	h.link(&u.Obj)
	return u
}

// NewClass allocates a class object with an empty method table.
func (h *Heap) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
	c.Obj = Obj{Kind: KindClass, class: c}
	h.link(&c.Obj)
	return c
}

// NewInstance allocates an instance of class with no fields set.
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: make(map[string]Value)}
	i.Obj = Obj{Kind: KindInstance, instance: i}
	h.link(&i.Obj)
	return i
}

// NewBoundMethod allocates a method bound to a receiver.
func (h *Heap) NewBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Method: method}
	b.Obj = Obj{Kind: KindBoundMethod, bound: b}
	h.link(&b.Obj)
	return b
}

// FreeObjects walks the all-objects list and drops every reference,
// implementing spec §4.B's free_objects() for shutdown (InitVM/FreeVM,
// spec §5). Go's garbage collector reclaims the underlying memory once
// nothing references it; this call is what actually makes that true by
// severing the Heap's own head pointer (and, transitively, Next links)
// rather than performing manual deallocation clox's allocator needs.
func (h *Heap) FreeObjects() {
	h.head = nil
}

// Count returns the number of live objects linked into the heap. Used
// by tests; walks the list, so it is O(n) and not meant for hot paths.
func (h *Heap) Count() int {
	n := 0
	for o := h.head; o != nil; o = o.Next {
		n++
	}
	return n
}
