// Package debug implements the disassembler spec §4.I describes: for
// every byte offset in a chunk, a plain `offset | line | mnemonic
// [operands]` row. It returns structured rows rather than printing
// directly so it stays usable from tests without a rendering
// dependency; cmd/loxvm's `t` subcommand renders these rows through
// github.com/olekukonko/tablewriter.
//
// Grounded on clox's debug.c (original_source/clox): one case per
// operand shape (simple / byte / jump / invoke / closure's
// variable-length upvalue tail), translated from printf calls into Row
// values. The teacher has no disassembler to adapt from.
package debug

import (
	"fmt"

	"github.com/loxvm/loxvm/pkg/object"
)

// Row is one disassembled instruction.
type Row struct {
	Offset   int
	Line     int
	Mnemonic string
	Operands string
}

// String renders a Row as "offset | line | mnemonic [operands]".
func (r Row) String() string {
	if r.Operands == "" {
		return fmt.Sprintf("%04d | %4d | %s", r.Offset, r.Line, r.Mnemonic)
	}
	return fmt.Sprintf("%04d | %4d | %-16s %s", r.Offset, r.Line, r.Mnemonic, r.Operands)
}

// DisassembleChunk returns one Row per instruction in chunk, in
// order.
func DisassembleChunk(chunk *object.Chunk) []Row {
	var rows []Row
	offset := 0
	for offset < len(chunk.Code) {
		row, next := DisassembleInstruction(chunk, offset)
		rows = append(rows, row)
		offset = next
	}
	return rows
}

// DisassembleInstruction disassembles the single instruction at
// offset, returning its Row and the offset of the next instruction.
func DisassembleInstruction(chunk *object.Chunk, offset int) (Row, int) {
	line := chunk.Lines[offset]
	op := object.OpCode(chunk.Code[offset])

	switch op {
	case object.OpNil, object.OpTrue, object.OpFalse, object.OpPop,
		object.OpEqual, object.OpGreater, object.OpLess, object.OpAdd,
		object.OpSubtract, object.OpMultiply, object.OpDivide, object.OpNot,
		object.OpNegate, object.OpPrint, object.OpCloseUpvalue, object.OpReturn,
		object.OpInherit:
		return Row{Offset: offset, Line: line, Mnemonic: op.String()}, offset + 1

	case object.OpConstant, object.OpGetLocal, object.OpSetLocal,
		object.OpGetGlobal, object.OpDefineGlobal, object.OpSetGlobal,
		object.OpGetUpvalue, object.OpSetUpvalue, object.OpGetProperty,
		object.OpSetProperty, object.OpGetSuper, object.OpCall,
		object.OpClass, object.OpMethod:
		return byteOperandRow(chunk, op, offset, line)

	case object.OpJump, object.OpJumpIfFalse:
		return jumpRow(op, offset, line, chunk.Code, 1)

	case object.OpLoop:
		return jumpRow(op, offset, line, chunk.Code, -1)

	case object.OpInvoke, object.OpSuperInvoke:
		return invokeRow(chunk, op, offset, line)

	case object.OpClosure:
		return closureRow(chunk, offset, line)

	default:
		return Row{Offset: offset, Line: line, Mnemonic: fmt.Sprintf("unknown opcode %d", op)}, offset + 1
	}
}

func byteOperandRow(chunk *object.Chunk, op object.OpCode, offset, line int) (Row, int) {
	index := chunk.Code[offset+1]
	operands := fmt.Sprintf("%d", index)
	if isConstantIndexed(op) && int(index) < len(chunk.Constants) {
		operands = fmt.Sprintf("%d '%s'", index, object.PrintValue(chunk.Constants[index]))
	}
	return Row{Offset: offset, Line: line, Mnemonic: op.String(), Operands: operands}, offset + 2
}

func isConstantIndexed(op object.OpCode) bool {
	switch op {
	case object.OpConstant, object.OpGetGlobal, object.OpDefineGlobal,
		object.OpSetGlobal, object.OpGetProperty, object.OpSetProperty,
		object.OpGetSuper, object.OpClass, object.OpMethod:
		return true
	default:
		return false
	}
}

func jumpRow(op object.OpCode, offset, line int, code []byte, sign int) (Row, int) {
	jump := int(code[offset+1])<<8 | int(code[offset+2])
	target := offset + 3 + sign*jump
	return Row{Offset: offset, Line: line, Mnemonic: op.String(), Operands: fmt.Sprintf("-> %04d", target)}, offset + 3
}

func invokeRow(chunk *object.Chunk, op object.OpCode, offset, line int) (Row, int) {
	nameIdx := chunk.Code[offset+1]
	argCount := chunk.Code[offset+2]
	name := "?"
	if int(nameIdx) < len(chunk.Constants) {
		name = object.PrintValue(chunk.Constants[nameIdx])
	}
	operands := fmt.Sprintf("(%d args) %d '%s'", argCount, nameIdx, name)
	return Row{Offset: offset, Line: line, Mnemonic: op.String(), Operands: operands}, offset + 3
}

// closureRow disassembles OP_CLOSURE's variable-length tail: a
// function constant index, followed by 2 bytes per captured upvalue
// (isLocal flag, index), per the bytecode format in spec §6.
func closureRow(chunk *object.Chunk, offset, line int) (Row, int) {
	fnIdx := chunk.Code[offset+1]
	next := offset + 2
	operands := fmt.Sprintf("%d '%s'", fnIdx, object.PrintValue(chunk.Constants[fnIdx]))

	fn, ok := chunk.Constants[fnIdx].AsObj()
	upvalueCount := 0
	if ok && fn.Kind == object.KindFunction {
		upvalueCount = fn.AsFunction().UpvalueCount
	}
	for i := 0; i < upvalueCount; i++ {
		isLocal := chunk.Code[next]
		index := chunk.Code[next+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		operands += fmt.Sprintf(" [%s %d]", kind, index)
		next += 2
	}
	return Row{Offset: offset, Line: line, Mnemonic: object.OpClosure.String(), Operands: operands}, next
}
