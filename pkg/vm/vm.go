// Package vm implements the bytecode virtual machine described in
// spec §4.G. It is a stack-based interpreter executing the pipeline:
//
//	Source -> Lexer -> Compiler (single pass, no AST) -> Chunk -> VM
//
// Virtual Machine Architecture:
//
// The VM is stack-based rather than register-based:
//
//  1. Value stack: intermediate results and local variable slots, a
//     single contiguous []object.Value shared by every call frame.
//  2. Frame stack: one CallFrame per active closure invocation,
//     holding its ip and the base offset into the value stack where
//     its locals begin.
//  3. Globals table: a pkg/table.Table keyed by variable name.
//  4. Intern table: the shared string table; every ObjString the VM
//     or compiler creates is interned through it.
//  5. Open upvalues: a singly-linked list of ObjUpvalue, kept sorted
//     by stack slot so closing a range on scope/frame exit is a single
//     linear pass (spec §4.G, closures and upvalues).
//
// Execution Model:
//
// run() is the bytecode dispatch loop: read one opcode byte at the
// current frame's ip, switch on it, repeat. Binary operators pop their
// operands and push the result; control-flow opcodes patch ip directly
// instead of pushing/popping a value.
//
// Grounded on the teacher's pkg/vm/vm.go for the overall VM-struct/
// dispatch-loop shape (stack + sp + locals + globals + constants),
// generalized from its interface{}-valued, message-send execution
// model to the tagged object.Value / opcode-switch model spec §3/§4.G
// mandates, since the teacher's own VM has no opcode dispatch loop in
// this sense to adapt line for line.
package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loxvm/loxvm/pkg/compiler"
	"github.com/loxvm/loxvm/pkg/gc"
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
	"go.uber.org/zap"
)

const maxFrames = 64
const stackMax = maxFrames * 256

// CallFrame is one active closure invocation: its ip into the
// closure's chunk and the base offset of its locals within the shared
// value stack.
type CallFrame struct {
	closure *object.ObjClosure
	ip      int
	slots   int
}

// VM is the interpreter's persistent process state (spec §3): the
// value stack, the frame stack, the object heap, globals, the string
// intern table, and the open-upvalues list.
// VM's value stack is a fixed-size array, not a growable slice, the
// same choice the teacher's VM makes ("Fixed size (1024 entries)" in
// its own doc comment). Open upvalues hold a raw *Value into a live
// stack slot (spec §4.G); a slice that reallocates on append would
// invalidate every such pointer the moment the backing array moved.
type VM struct {
	stack    [stackMax]object.Value
	stackTop int
	frames   []CallFrame
	heap     *object.Heap
	globals  *table.Table
	intern   *table.Table
	openUps  *object.ObjUpvalue
	log      *zap.SugaredLogger
	out      io.Writer

	gcStub         *gc.Collector
	activeCompiler *compiler.Compiler
}

// New creates a VM with an empty heap, globals table, and a fresh
// intern table, registering the standard native functions. print
// statements write to os.Stdout by default; use SetOutput to redirect
// them, which the CLI subcommands leave alone.
func New(log *zap.SugaredLogger) *VM {
	vm := &VM{
		heap:    object.NewHeap(),
		globals: table.NewTable(),
		intern:  table.NewTable(),
		log:     log,
		out:     os.Stdout,
		gcStub:  gc.New(),
	}
	vm.defineNatives()
	return vm
}

// SetOutput redirects where `print` statements write.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// Free releases every heap object the VM owns (spec §5: FreeVM). Go's
// own collector reclaims the memory; this just severs the VM's last
// reference to the all-objects list and clears process state so a
// freed VM cannot be reused by mistake.
func (vm *VM) Free() {
	vm.heap.FreeObjects()
	vm.stackTop = 0
	vm.frames = nil
	vm.openUps = nil
}

func (vm *VM) push(v object.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() object.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) object.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs source, returning its last returned
// value. On failure it returns an error Value of the matching kind
// (CompileError or RuntimeError) together with the compile error or
// *RuntimeError.
func (vm *VM) Interpret(source string) (object.Value, error) {
	comp := compiler.New(vm.heap, vm.intern)
	vm.activeCompiler = comp
	fn, err := comp.Compile(source)
	vm.activeCompiler = nil
	if err != nil {
		return object.ErrorVal(object.CompileError), err
	}
	return vm.InterpretFunction(fn)
}

// CompileOnly compiles source against this VM's heap and intern table
// without running it, for the `t` subcommand's --trace disassembly and
// any other tooling that wants a Chunk without executing it.
func (vm *VM) CompileOnly(source string) (*object.ObjFunction, error) {
	return compiler.New(vm.heap, vm.intern).Compile(source)
}

// InterpretFunction runs a precompiled top-level function directly;
// Interpret calls it after a successful compile. A runtime error is
// returned as an error Value of kind RuntimeError plus the
// *RuntimeError.
func (vm *VM) InterpretFunction(fn *object.ObjFunction) (object.Value, error) {
	closure := vm.heap.NewClosure(fn)
	vm.push(object.ObjVal(&closure.Obj))
	if err := vm.callClosure(closure, 0); err != nil {
		return object.ErrorVal(object.RuntimeError), err
	}
	v, err := vm.run()
	if err != nil {
		return object.ErrorVal(object.RuntimeError), err
	}
	return v, nil
}

func (vm *VM) runtimeError(format string, a ...interface{}) *RuntimeError {
	message := fmt.Sprintf(format, a...)
	trace := make([]StackFrame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := f.closure.Function
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[f.ip-1]
		}
		name := "script"
		if fn.Name != nil {
			name = string(fn.Name.Bytes)
		}
		trace = append(trace, StackFrame{FunctionName: name, Line: line})
	}
	if vm.log != nil {
		vm.log.Errorw("runtime error", "message", message, "frames", len(trace))
	}
	vm.stackTop = 0
	vm.frames = nil
	return newRuntimeError(message, trace)
}

// run is the dispatch loop (spec §4.G): decode one opcode at a time
// from the current frame's chunk and execute it.
func (vm *VM) run() (object.Value, error) {
	for {
		frame := &vm.frames[len(vm.frames)-1]
		chunk := frame.closure.Function.Chunk

		op := object.OpCode(chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case object.OpConstant:
			idx := chunk.Code[frame.ip]
			frame.ip++
			vm.push(chunk.Constants[idx])

		case object.OpNil:
			vm.push(object.Nil)
		case object.OpTrue:
			vm.push(object.BoolVal(true))
		case object.OpFalse:
			vm.push(object.BoolVal(false))
		case object.OpPop:
			vm.pop()

		case object.OpGetLocal:
			slot := chunk.Code[frame.ip]
			frame.ip++
			vm.push(vm.stack[frame.slots+int(slot)])
		case object.OpSetLocal:
			slot := chunk.Code[frame.ip]
			frame.ip++
			vm.stack[frame.slots+int(slot)] = vm.peek(0)

		case object.OpGetGlobal:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return object.Nil, vm.runtimeError("Undefined variable '%s'.", string(name.Bytes))
			}
			vm.push(v)
		case object.OpDefineGlobal:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case object.OpSetGlobal:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return object.Nil, vm.runtimeError("Undefined variable '%s'.", string(name.Bytes))
			}

		case object.OpGetUpvalue:
			slot := chunk.Code[frame.ip]
			frame.ip++
			vm.push(*frame.closure.Upvalues[slot].Location)
		case object.OpSetUpvalue:
			slot := chunk.Code[frame.ip]
			frame.ip++
			*frame.closure.Upvalues[slot].Location = vm.peek(0)

		case object.OpGetProperty:
			idx := chunk.Code[frame.ip]
			frame.ip++
			obj, ok := vm.peek(0).AsObj()
			if !ok || obj.Kind != object.KindInstance {
				return object.Nil, vm.runtimeError("Only instances have properties.")
			}
			inst := obj.AsInstance()
			name := chunk.Constants[idx].Obj.AsString()
			if v, ok := inst.Fields[string(name.Bytes)]; ok {
				vm.pop()
				vm.push(v)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return object.Nil, vm.runtimeError("Undefined property '%s'.", string(name.Bytes))
			}
		case object.OpSetProperty:
			idx := chunk.Code[frame.ip]
			frame.ip++
			obj, ok := vm.peek(1).AsObj()
			if !ok || obj.Kind != object.KindInstance {
				return object.Nil, vm.runtimeError("Only instances have fields.")
			}
			inst := obj.AsInstance()
			name := chunk.Constants[idx].Obj.AsString()
			inst.Fields[string(name.Bytes)] = vm.peek(0)
			v := vm.pop()
			vm.pop()
			vm.push(v)
		case object.OpGetSuper:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			superObj, _ := vm.pop().AsObj()
			super := superObj.AsClass()
			if !vm.bindMethod(super, name) {
				return object.Nil, vm.runtimeError("Undefined property '%s'.", string(name.Bytes))
			}

		case object.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(object.BoolVal(object.ValuesEqual(a, b)))
		case object.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) object.Value { return object.BoolVal(a > b) }); err != nil {
				return object.Nil, err
			}
		case object.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) object.Value { return object.BoolVal(a < b) }); err != nil {
				return object.Nil, err
			}

		case object.OpAdd:
			if err := vm.add(); err != nil {
				return object.Nil, err
			}
		case object.OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) object.Value { return object.NumberVal(a - b) }); err != nil {
				return object.Nil, err
			}
		case object.OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) object.Value { return object.NumberVal(a * b) }); err != nil {
				return object.Nil, err
			}
		case object.OpDivide:
			if err := vm.binaryNumberOp(func(a, b float64) object.Value { return object.NumberVal(a / b) }); err != nil {
				return object.Nil, err
			}

		case object.OpNot:
			vm.push(object.BoolVal(object.IsFalsey(vm.pop())))
		case object.OpNegate:
			n, ok := vm.peek(0).AsNumber()
			if !ok {
				return object.Nil, vm.runtimeError("Operand must be a number.")
			}
			vm.pop()
			vm.push(object.NumberVal(-n))

		case object.OpPrint:
			fmt.Fprintln(vm.out, object.PrintValue(vm.pop()))

		case object.OpJump:
			offset := readUint16(chunk, frame.ip)
			frame.ip += 2 + int(offset)
		case object.OpJumpIfFalse:
			offset := readUint16(chunk, frame.ip)
			frame.ip += 2
			if object.IsFalsey(vm.peek(0)) {
				frame.ip += int(offset)
			}
		case object.OpLoop:
			offset := readUint16(chunk, frame.ip)
			frame.ip += 2 - int(offset)

		case object.OpCall:
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return object.Nil, err
			}
		case object.OpInvoke:
			idx := chunk.Code[frame.ip]
			frame.ip++
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			if err := vm.invoke(name, argCount); err != nil {
				return object.Nil, err
			}
		case object.OpSuperInvoke:
			idx := chunk.Code[frame.ip]
			frame.ip++
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			superObj, _ := vm.pop().AsObj()
			super := superObj.AsClass()
			if err := vm.invokeFromClass(super, name, argCount); err != nil {
				return object.Nil, err
			}

		case object.OpClosure:
			idx := chunk.Code[frame.ip]
			frame.ip++
			fnObj, _ := chunk.Constants[idx].AsObj()
			fn := fnObj.AsFunction()
			closure := vm.heap.NewClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := chunk.Code[frame.ip]
				frame.ip++
				index := chunk.Code[frame.ip]
				frame.ip++
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			vm.push(object.ObjVal(&closure.Obj))

		case object.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case object.OpReturn:
			retVal := vm.pop()
			vm.closeUpvalues(frame.slots)
			returningFrame := vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop()
				return retVal, nil
			}
			vm.stackTop = returningFrame.slots
			vm.push(retVal)

		case object.OpClass:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			vm.push(object.ObjVal(&vm.heap.NewClass(name).Obj))

		case object.OpInherit:
			superVal := vm.peek(1)
			superObj, ok := superVal.AsObj()
			if !ok || superObj.Kind != object.KindClass {
				return object.Nil, vm.runtimeError("Superclass must be a class.")
			}
			subObj, _ := vm.peek(0).AsObj()
			subObj.AsClass().Methods = cloneMethodTable(superObj.AsClass().Methods)
			vm.pop()

		case object.OpMethod:
			idx := chunk.Code[frame.ip]
			frame.ip++
			name := chunk.Constants[idx].Obj.AsString()
			vm.defineMethod(name)

		default:
			return object.Nil, vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func cloneMethodTable(src map[string]*object.ObjClosure) map[string]*object.ObjClosure {
	dst := make(map[string]*object.ObjClosure, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func readUint16(chunk *object.Chunk, at int) uint16 {
	return uint16(chunk.Code[at])<<8 | uint16(chunk.Code[at+1])
}

func (vm *VM) binaryNumberOp(op func(a, b float64) object.Value) error {
	b, bOk := vm.peek(0).AsNumber()
	a, aOk := vm.peek(1).AsNumber()
	if !aOk || !bOk {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	vm.push(op(a, b))
	return nil
}

func (vm *VM) add() error {
	bVal := vm.peek(0)
	aVal := vm.peek(1)

	if aStr, ok := aVal.AsString(); ok {
		if bStr, ok := bVal.AsString(); ok {
			vm.pop()
			vm.pop()
			vm.push(object.ObjVal(&table.ConcatStrings(vm.heap, vm.intern, aStr, bStr).Obj))
			return nil
		}
	}
	an, aOk := aVal.AsNumber()
	bn, bOk := bVal.AsNumber()
	if aOk && bOk {
		vm.pop()
		vm.pop()
		vm.push(object.NumberVal(an + bn))
		return nil
	}
	return vm.runtimeError("Operands must be two numbers or two strings.")
}

func (vm *VM) bindMethod(class *object.ObjClass, name *object.ObjString) bool {
	method, ok := class.Methods[string(name.Bytes)]
	if !ok {
		return false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method)
	vm.pop()
	vm.push(object.ObjVal(&bound.Obj))
	return true
}

func (vm *VM) defineMethod(name *object.ObjString) {
	methodVal := vm.peek(0)
	methodObj, _ := methodVal.AsObj()
	classVal := vm.peek(1)
	classObj, _ := classVal.AsObj()
	classObj.AsClass().Methods[string(name.Bytes)] = methodObj.AsClosure()
	vm.pop()
}

func (vm *VM) callValue(callee object.Value, argCount int) error {
	obj, ok := callee.AsObj()
	if !ok {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch obj.Kind {
	case object.KindClosure:
		return vm.callClosure(obj.AsClosure(), argCount)
	case object.KindNative:
		return vm.callNative(obj.AsNative(), argCount)
	case object.KindClass:
		class := obj.AsClass()
		inst := vm.heap.NewInstance(class)
		vm.stack[vm.stackTop-argCount-1] = object.ObjVal(&inst.Obj)
		if initializer, ok := class.Methods["init"]; ok {
			return vm.callClosure(initializer, argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case object.KindBoundMethod:
		bound := obj.AsBoundMethod()
		vm.stack[vm.stackTop-argCount-1] = bound.Receiver
		return vm.callClosure(bound.Method, argCount)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

func (vm *VM) callClosure(closure *object.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= maxFrames {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames = append(vm.frames, CallFrame{
		closure: closure,
		ip:      0,
		slots:   vm.stackTop - argCount - 1,
	})
	return nil
}

func (vm *VM) callNative(native *object.ObjNative, argCount int) error {
	if native.Arity >= 0 && argCount != native.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", native.Arity, argCount)
	}
	args := vm.stack[vm.stackTop-argCount : vm.stackTop]
	result, err := native.Fn(argCount, args)
	vm.stackTop -= argCount + 1
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.push(result)
	return nil
}

func (vm *VM) invoke(name *object.ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	obj, ok := receiver.AsObj()
	if !ok || obj.Kind != object.KindInstance {
		return vm.runtimeError("Only instances have methods.")
	}
	inst := obj.AsInstance()
	if field, ok := inst.Fields[string(name.Bytes)]; ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.ObjClass, name *object.ObjString, argCount int) error {
	method, ok := class.Methods[string(name.Bytes)]
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", string(name.Bytes))
	}
	return vm.callClosure(method, argCount)
}

// captureUpvalue returns the open upvalue for stack slot `local`,
// reusing an existing one if the sorted open-upvalues list already has
// it, per spec §4.G closures and upvalues.
func (vm *VM) captureUpvalue(local int) *object.ObjUpvalue {
	var prev *object.ObjUpvalue
	up := vm.openUps
	for up != nil && up.Slot > local {
		prev = up
		up = up.NextOpen
	}
	if up != nil && up.Slot == local {
		return up
	}

	created := vm.heap.NewUpvalue(&vm.stack[local], local)
	created.NextOpen = up
	if prev == nil {
		vm.openUps = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue pointing at or above
// stack slot `fromSlot`, copying the live value into the upvalue's own
// storage so it survives the frame/scope going away.
func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUps != nil && vm.openUps.Slot >= fromSlot {
		up := vm.openUps
		up.Closed = *up.Location
		up.Location = &up.Closed
		vm.openUps = up.NextOpen
	}
}

// defineNatives registers the host functions spec §4.G's native set
// calls for: clock plus the str/len/type trio the class-support
// expansion needs for printable, introspectable values.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, func(argCount int, args []object.Value) (object.Value, error) {
		return object.NumberVal(float64(time.Now().UnixNano()) / 1e9), nil
	})
	vm.defineNative("str", 1, func(argCount int, args []object.Value) (object.Value, error) {
		s := table.MakeString(vm.heap, vm.intern, []byte(object.PrintValue(args[0])))
		return object.ObjVal(&s.Obj), nil
	})
	vm.defineNative("len", 1, func(argCount int, args []object.Value) (object.Value, error) {
		s, ok := args[0].AsString()
		if !ok {
			return object.Nil, fmt.Errorf("len() expects a string")
		}
		return object.NumberVal(float64(len(s.Bytes))), nil
	})
	vm.defineNative("type", 1, func(argCount int, args []object.Value) (object.Value, error) {
		s := table.MakeString(vm.heap, vm.intern, []byte(typeName(args[0])))
		return object.ObjVal(&s.Obj), nil
	})
}

func (vm *VM) defineNative(name string, arity int, fn object.NativeFn) {
	native := vm.heap.NewNative(name, arity, fn)
	key := table.MakeString(vm.heap, vm.intern, []byte(name))
	vm.globals.Set(key, object.ObjVal(&native.Obj))
}

func typeName(v object.Value) string {
	switch v.Type {
	case object.ValNil:
		return "nil"
	case object.ValBool:
		return "bool"
	case object.ValNumber:
		return "number"
	case object.ValError:
		return "error"
	case object.ValObj:
		switch v.Obj.Kind {
		case object.KindString:
			return "string"
		case object.KindFunction, object.KindClosure, object.KindNative, object.KindBoundMethod:
			return "function"
		case object.KindClass:
			return "class"
		case object.KindInstance:
			return "instance"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}
