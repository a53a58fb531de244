// Package gc implements the tracing-GC stub spec §4.H calls for: a
// root walker and mark skeleton (there is no allocation hook), wired to
// the VM's actual roots but performing no reclamation, since Go's own
// collector already owns the memory. The point of this package is the
// *interface* — correct root enumeration so a real collector could be
// dropped in later — not the reclaiming.
//
// The teacher's VM has no GC of any kind to adapt (its objects are
// plain Go values collected by the host runtime with no heap list to
// walk), so this package is grounded directly on clox's gc design
// (original_source/clox, mark-and-sweep over vm.objects) translated
// into a root-provider interface rather than copied C.
package gc

import (
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
)

// Roots is implemented by the VM so this package can enumerate its
// mark roots without importing pkg/vm (which imports pkg/gc, not the
// other way around).
type Roots interface {
	// StackValues returns the live portion of the value stack.
	StackValues() []object.Value
	// FrameClosures returns the closure of every active call frame.
	FrameClosures() []*object.ObjClosure
	// OpenUpvalues returns the head of the open-upvalue list.
	OpenUpvalues() *object.ObjUpvalue
	// Globals returns the globals table.
	Globals() *table.Table
	// CompilerChain returns the in-progress function chain of any
	// compiler currently borrowing the VM's heap (spec §4.H); empty
	// outside of Compile.
	CompilerChain() []*object.ObjFunction
}

// Stats summarizes one CollectGarbage pass: how many objects were
// reached from the roots, and how many were seen in the heap's
// all-objects list but never marked (what a real collector would
// free).
type Stats struct {
	Marked   int
	Unmarked int
}

// Collector walks roots and marks reachable heap objects. It never
// frees anything; Go's runtime reclaims memory on its own schedule.
// The mark bit and full traversal exist so a future collector's sweep
// phase is a straightforward addition rather than a redesign.
type Collector struct {
	// StressMode is a debug-stress flag for callers to consult. Nothing
	// in this package or in the heap allocators reads it: allocation
	// never triggers CollectGarbage, with or without StressMode set.
	StressMode bool
}

// New returns a Collector in normal (non-stress) mode.
func New() *Collector {
	return &Collector{}
}

// CollectGarbage walks every root in roots, marking every heap object
// transitively reachable from it, then scans heap's all-objects list
// to report how many objects were unreached. The strings table is
// skipped during marking per spec §4.H: interned strings are kept
// alive by whatever object references them, not by the intern table
// itself, so a live ObjString here without a marking reference is
// exactly the "weakly sweepable dead intern" case the spec allows
// either tracing through or skipping.
func (c *Collector) CollectGarbage(heap *object.Heap, roots Roots) Stats {
	for o := heap.Head(); o != nil; o = o.Next {
		o.Marked = false
	}

	for _, v := range roots.StackValues() {
		markValue(v)
	}
	for _, closure := range roots.FrameClosures() {
		markClosure(closure)
	}
	for up := roots.OpenUpvalues(); up != nil; up = up.NextOpen {
		markObj(&up.Obj)
	}
	roots.Globals().Each(func(key *object.ObjString, value object.Value) {
		markObj(&key.Obj)
		markValue(value)
	})
	for _, fn := range roots.CompilerChain() {
		markObj(&fn.Obj)
	}

	var stats Stats
	for o := heap.Head(); o != nil; o = o.Next {
		if o.Marked {
			stats.Marked++
		} else {
			stats.Unmarked++
		}
	}
	return stats
}

func markValue(v object.Value) {
	if o, ok := v.AsObj(); ok {
		markObj(o)
	}
}

func markObj(o *object.Obj) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true

	switch o.Kind {
	case object.KindFunction:
		fn := o.AsFunction()
		if fn.Name != nil {
			markObj(&fn.Name.Obj)
		}
		for _, constant := range fn.Chunk.Constants {
			markValue(constant)
		}
	case object.KindClosure:
		markClosure(o.AsClosure())
	case object.KindUpvalue:
		up := o.AsUpvalue()
		if up.Location != nil {
			markValue(*up.Location)
		} else {
			markValue(up.Closed)
		}
	case object.KindClass:
		class := o.AsClass()
		markObj(&class.Name.Obj)
		for _, method := range class.Methods {
			markClosure(method)
		}
	case object.KindInstance:
		inst := o.AsInstance()
		markObj(&inst.Class.Obj)
		for _, field := range inst.Fields {
			markValue(field)
		}
	case object.KindBoundMethod:
		bound := o.AsBoundMethod()
		markValue(bound.Receiver)
		markClosure(bound.Method)
	case object.KindNative, object.KindString:
		// leaves: no further references to trace
	}
}

func markClosure(closure *object.ObjClosure) {
	if closure == nil {
		return
	}
	markObj(&closure.Obj)
	markObj(&closure.Function.Obj)
	for _, up := range closure.Upvalues {
		markObj(&up.Obj)
	}
}
