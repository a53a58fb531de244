package gc

import (
	"testing"

	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
	"github.com/stretchr/testify/assert"
)

// fakeRoots is a minimal Roots implementation for exercising
// CollectGarbage without spinning up a full VM.
type fakeRoots struct {
	stack     []object.Value
	closures  []*object.ObjClosure
	openUps   *object.ObjUpvalue
	globals   *table.Table
	compiling []*object.ObjFunction
}

func (r fakeRoots) StackValues() []object.Value            { return r.stack }
func (r fakeRoots) FrameClosures() []*object.ObjClosure    { return r.closures }
func (r fakeRoots) OpenUpvalues() *object.ObjUpvalue       { return r.openUps }
func (r fakeRoots) Globals() *table.Table                  { return r.globals }
func (r fakeRoots) CompilerChain() []*object.ObjFunction   { return r.compiling }

func TestCollectGarbageMarksReachableFromStack(t *testing.T) {
	heap := object.NewHeap()
	intern := table.NewTable()

	reachable := table.MakeString(heap, intern, []byte("reachable"))
	unreachable := table.MakeString(heap, intern, []byte("unreachable"))
	_ = unreachable

	roots := fakeRoots{
		stack:   []object.Value{object.ObjVal(&reachable.Obj)},
		globals: table.NewTable(),
	}

	stats := New().CollectGarbage(heap, roots)
	assert.Equal(t, 1, stats.Marked)
	assert.Equal(t, 1, stats.Unmarked)
}

func TestCollectGarbageTracesThroughClosureAndGlobals(t *testing.T) {
	heap := object.NewHeap()
	intern := table.NewTable()

	fn := heap.NewFunction()
	fn.Name = table.MakeString(heap, intern, []byte("f"))
	closure := heap.NewClosure(fn)

	globalName := table.MakeString(heap, intern, []byte("g"))
	globalVal := table.MakeString(heap, intern, []byte("value"))
	globals := table.NewTable()
	globals.Set(globalName, object.ObjVal(&globalVal.Obj))

	roots := fakeRoots{
		closures: []*object.ObjClosure{closure},
		globals:  globals,
	}

	stats := New().CollectGarbage(heap, roots)
	// fn, fn.Name, closure, globalName, globalVal: 5 reachable objects.
	assert.Equal(t, 5, stats.Marked)
	assert.Equal(t, 0, stats.Unmarked)
}

func TestCollectGarbageTracesOpenUpvalueChain(t *testing.T) {
	heap := object.NewHeap()
	slot := object.NumberVal(1)
	up1 := heap.NewUpvalue(&slot, 0)
	up2 := heap.NewUpvalue(&slot, 1)
	up1.NextOpen = up2

	roots := fakeRoots{
		openUps: up1,
		globals: table.NewTable(),
	}

	stats := New().CollectGarbage(heap, roots)
	assert.Equal(t, 2, stats.Marked)
	assert.Equal(t, 0, stats.Unmarked)
}
