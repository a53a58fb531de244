package debug

import (
	"testing"

	"github.com/loxvm/loxvm/pkg/compiler"
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, source string) *object.ObjFunction {
	t.Helper()
	heap := object.NewHeap()
	intern := table.NewTable()
	fn, err := compiler.New(heap, intern).Compile(source)
	require.NoError(t, err)
	return fn
}

func TestDisassembleChunkCoversEveryByte(t *testing.T) {
	fn := compile(t, `var x = 1; print x + 2;`)
	rows := DisassembleChunk(fn.Chunk)
	require.NotEmpty(t, rows)

	last := rows[len(rows)-1]
	lastLen := len(fn.Chunk.Code) - last.Offset
	assert.True(t, lastLen == 1 || lastLen == 2 || lastLen == 3, "last row should end at chunk end, got len %d", lastLen)
}

func TestDisassembleInstructionConstant(t *testing.T) {
	fn := compile(t, `42;`)
	row, next := DisassembleInstruction(fn.Chunk, 0)
	assert.Equal(t, "OP_CONSTANT", row.Mnemonic)
	assert.Contains(t, row.Operands, "42")
	assert.Equal(t, 2, next)
}

func TestDisassembleInstructionJumpShowsTarget(t *testing.T) {
	fn := compile(t, `if (true) { print 1; } else { print 2; }`)
	var sawJump bool
	for _, row := range DisassembleChunk(fn.Chunk) {
		if row.Mnemonic == "OP_JUMP_IF_FALSE" || row.Mnemonic == "OP_JUMP" {
			sawJump = true
			assert.Contains(t, row.Operands, "->")
		}
	}
	assert.True(t, sawJump)
}

func TestRowStringFormat(t *testing.T) {
	row := Row{Offset: 4, Line: 2, Mnemonic: "OP_RETURN"}
	assert.Equal(t, "0004 |    2 | OP_RETURN", row.String())
}
