package vm

import (
	"testing"

	"github.com/loxvm/loxvm/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run interprets source and returns whatever the script's outermost
// return produced (object.Nil if it never returns), matching spec
// §4.G/§8: the top-level script is a function like any other, and
// `interpret` surfaces its return value to the caller.
func run(t *testing.T, source string) (object.Value, error) {
	t.Helper()
	m := New(nil)
	defer m.Free()
	return m.Interpret(source)
}

func TestArithmeticPrecedence(t *testing.T) {
	v, err := run(t, `return -((1.2 + 3.4) / 2);`)
	require.NoError(t, err)
	assert.InDelta(t, -2.3, v.Number, 1e-9)
}

func TestStringConcatenation(t *testing.T) {
	v, err := run(t, `return "hi" + "hi";`)
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "hihi", string(s.Bytes))
}

func TestLogicalAndComparisonScenario(t *testing.T) {
	v, err := run(t, `return !(5 - 4 > 3 * 2 == !nil);`)
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestAssignmentIsAnExpression(t *testing.T) {
	v, err := run(t, `var x = 1; return x = 3 + 4;`)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v.Number)
}

func TestInvalidAssignmentTargetIsCompileError(t *testing.T) {
	_, err := run(t, `var x = 1; return 2 * x = 3 + 4;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target.")
}

func TestGlobalVariables(t *testing.T) {
	v, err := run(t, `var x = 10; x = x + 5; return x;`)
	require.NoError(t, err)
	assert.Equal(t, 15.0, v.Number)
}

func TestIfElseBranches(t *testing.T) {
	v, err := run(t, `var x; if (1 < 2) { x = "yes"; } else { x = "no"; } return x;`)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "yes", string(s.Bytes))
}

func TestWhileLoopAccumulates(t *testing.T) {
	v, err := run(t, `var i = 0; var sum = 0; while (i < 5) { sum = sum + i; i = i + 1; } return sum;`)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Number)
}

func TestForLoopAccumulates(t *testing.T) {
	v, err := run(t, `var sum = 0; for (var i = 0; i < 5; i = i + 1) { sum = sum + i; } return sum;`)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Number)
}

func TestFunctionCallAndReturn(t *testing.T) {
	v, err := run(t, `fun add1(x) { return x + 1; } return add1(2);`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Number)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	v, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun inc() {
				count = count + 1;
				return count;
			}
			return inc;
		}
		var counter = makeCounter();
		counter();
		counter();
		return counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Number)
}

func TestClassInstanceFieldsAndMethods(t *testing.T) {
	v, err := run(t, `
		class Counter {
			init() {
				this.count = 0;
			}
			increment() {
				this.count = this.count + 1;
				return this.count;
			}
		}
		var c = Counter();
		c.increment();
		return c.increment();
	`)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Number)
}

func TestClassInheritanceAndSuper(t *testing.T) {
	v, err := run(t, `
		class Animal {
			speak() {
				return "...";
			}
		}
		class Dog < Animal {
			speak() {
				return super.speak();
			}
		}
		return Dog().speak();
	`)
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "...", string(s.Bytes))
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, err := run(t, `print undeclared;`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "Undefined variable")
}

func TestStackTraceNamesFramesInnermostFirst(t *testing.T) {
	_, err := run(t, `
		fun a() { b(); }
		fun b() { c(); }
		fun c() { c("too", "many"); }
		a();
	`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Len(t, rerr.StackTrace, 4)
	names := make([]string, len(rerr.StackTrace))
	for i, f := range rerr.StackTrace {
		name := f.FunctionName
		if name == "" {
			name = "script"
		}
		names[i] = name
	}
	assert.Equal(t, []string{"c", "b", "a", "script"}, names)
}

func TestNativeClockReturnsNumber(t *testing.T) {
	v, err := run(t, `return clock();`)
	require.NoError(t, err)
	assert.Equal(t, object.ValNumber, v.Type)
}

func TestNativeLenAndType(t *testing.T) {
	v, err := run(t, `return len("hello");`)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v.Number)

	v, err = run(t, `return type(1);`)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "number", string(s.Bytes))
}
