package vm

import (
	"github.com/loxvm/loxvm/pkg/gc"
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
)

// StackValues, FrameClosures, OpenUpvalues, Globals, and CompilerChain
// implement gc.Roots so pkg/gc can enumerate the VM's mark roots (spec
// §4.H) without pkg/gc importing pkg/vm.
var _ gc.Roots = (*VM)(nil)

func (vm *VM) StackValues() []object.Value { return vm.stack[:vm.stackTop] }

func (vm *VM) FrameClosures() []*object.ObjClosure {
	closures := make([]*object.ObjClosure, len(vm.frames))
	for i, f := range vm.frames {
		closures[i] = f.closure
	}
	return closures
}

func (vm *VM) OpenUpvalues() *object.ObjUpvalue { return vm.openUps }

func (vm *VM) Globals() *table.Table { return vm.globals }

func (vm *VM) CompilerChain() []*object.ObjFunction {
	if vm.activeCompiler == nil {
		return nil
	}
	return vm.activeCompiler.FunctionChain()
}

// CollectGarbage runs one tracing pass over the VM's current roots
// (spec §4.H). It never frees anything; see pkg/gc's doc comment.
func (vm *VM) CollectGarbage() gc.Stats {
	return vm.gcStub.CollectGarbage(vm.heap, vm)
}
