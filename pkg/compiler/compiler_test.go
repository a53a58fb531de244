package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
)

func compile(t *testing.T, source string) *object.ObjFunction {
	t.Helper()
	heap := object.NewHeap()
	intern := table.NewTable()
	fn, err := New(heap, intern).Compile(source)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", source, err)
	}
	return fn
}

func compileExpectError(t *testing.T, source string) error {
	t.Helper()
	heap := object.NewHeap()
	intern := table.NewTable()
	_, err := New(heap, intern).Compile(source)
	return err
}

func TestCompileNumberLiteralEmitsConstantAndPop(t *testing.T) {
	fn := compile(t, "42;")
	code := fn.Chunk.Code

	if len(code) < 4 {
		t.Fatalf("expected at least 4 bytes, got % x", code)
	}
	if object.OpCode(code[0]) != object.OpConstant {
		t.Fatalf("code[0] = %v, want OP_CONSTANT", object.OpCode(code[0]))
	}
	idx := code[1]
	if fn.Chunk.Constants[idx].Number != 42 {
		t.Fatalf("constant = %v, want 42", fn.Chunk.Constants[idx])
	}
	if object.OpCode(code[2]) != object.OpPop {
		t.Fatalf("code[2] = %v, want OP_POP", object.OpCode(code[2]))
	}
}

func TestCompileGlobalVarRoundTrip(t *testing.T) {
	fn := compile(t, `var x = 1; print x;`)
	var ops []object.OpCode
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		ops = append(ops, op)
		i += instructionLen(op)
	}
	want := []object.OpCode{
		object.OpConstant, object.OpDefineGlobal,
		object.OpGetGlobal, object.OpPrint,
		object.OpNil, object.OpReturn,
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops[%d] = %v, want %v (full: %v)", i, ops[i], want[i], ops)
		}
	}
}

func TestCompileLocalScopeUsesGetSetLocal(t *testing.T) {
	fn := compile(t, `{ var x = 1; x = 2; }`)
	found := false
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		if op == object.OpSetLocal {
			found = true
		}
		i += instructionLen(op)
	}
	if !found {
		t.Fatal("expected an OP_SET_LOCAL for assignment to a block-scoped local")
	}
}

func TestCompileErrorOnSelfReferentialInitializer(t *testing.T) {
	err := compileExpectError(t, `{ var a = a; }`)
	if err == nil {
		t.Fatal("expected a compile error reading a local in its own initializer")
	}
}

func TestCompileErrorOnDuplicateLocal(t *testing.T) {
	err := compileExpectError(t, `{ var a = 1; var a = 2; }`)
	if err == nil {
		t.Fatal("expected a compile error redeclaring a local in the same scope")
	}
}

func TestCompileErrorOnInvalidAssignmentTarget(t *testing.T) {
	err := compileExpectError(t, `1 + 2 = 3;`)
	if err == nil {
		t.Fatal("expected a compile error for an invalid assignment target")
	}
}

func TestCompileTopLevelReturnIsAllowed(t *testing.T) {
	// The top-level script compiles as a function like any other (spec
	// §4.G treats its frame the same as a call frame), so `return` at
	// the outermost scope is not a "return outside a function" error;
	// it sets interpret's result, per the §8 scenario
	// `return -((1.2 + 3.4) / 2);`.
	fn := compile(t, `return 1;`)
	found := false
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		if op == object.OpReturn {
			found = true
		}
		i += instructionLen(op)
	}
	if !found {
		t.Fatal("expected OP_RETURN for a top-level return statement")
	}
}

func TestCompileFunctionEmitsClosure(t *testing.T) {
	fn := compile(t, `fun add(a, b) { return a + b; } add(1, 2);`)
	foundClosure := false
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		if op == object.OpClosure {
			foundClosure = true
			idx := fn.Chunk.Code[i+1]
			inner, ok := fn.Chunk.Constants[idx].AsObj()
			if !ok || inner.Kind != object.KindFunction {
				t.Fatalf("OP_CLOSURE constant is not a function")
			}
			if inner.AsFunction().Arity != 2 {
				t.Fatalf("arity = %d, want 2", inner.AsFunction().Arity)
			}
			break
		}
		i += instructionLen(op)
	}
	if !foundClosure {
		t.Fatal("expected OP_CLOSURE for a function declaration")
	}
}

func TestCompileClassEmitsClassAndMethod(t *testing.T) {
	fn := compile(t, `class Greeter { greet() { return 1; } }`)
	var ops []object.OpCode
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		ops = append(ops, op)
		i += instructionLen(op)
	}
	hasClass, hasMethod := false, false
	for _, op := range ops {
		if op == object.OpClass {
			hasClass = true
		}
		if op == object.OpMethod {
			hasMethod = true
		}
	}
	if !hasClass || !hasMethod {
		t.Fatalf("expected OP_CLASS and OP_METHOD, got %v", ops)
	}
}

func TestCompileWhileLoopOpSequence(t *testing.T) {
	fn := compile(t, `while (true) { print 1; }`)
	var ops []object.OpCode
	for i := 0; i < len(fn.Chunk.Code); {
		op := object.OpCode(fn.Chunk.Code[i])
		ops = append(ops, op)
		i += instructionLen(op)
	}
	want := []object.OpCode{
		object.OpTrue, object.OpJumpIfFalse, object.OpPop,
		object.OpConstant, object.OpPrint, object.OpLoop,
		object.OpPop, object.OpNil, object.OpReturn,
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("while-loop opcode sequence mismatch (-want +got):\n%s", diff)
	}
}

// instructionLen returns how many bytes (including the opcode itself)
// a single instruction occupies, for tests that want to walk a chunk
// without a full disassembler.
func instructionLen(op object.OpCode) int {
	switch op {
	case object.OpNil, object.OpTrue, object.OpFalse, object.OpPop,
		object.OpEqual, object.OpGreater, object.OpLess, object.OpAdd,
		object.OpSubtract, object.OpMultiply, object.OpDivide, object.OpNot,
		object.OpNegate, object.OpPrint, object.OpCloseUpvalue, object.OpReturn,
		object.OpInherit:
		return 1
	case object.OpJump, object.OpJumpIfFalse, object.OpLoop:
		return 3
	case object.OpInvoke, object.OpSuperInvoke:
		return 3
	case object.OpClosure:
		return 2 // plus a variable upvalue tail; callers that care walk it themselves
	default:
		return 2
	}
}
