// Package vm implements component G from spec §4.G: the stack-based
// bytecode interpreter. This file covers runtime error construction
// with a frame-by-frame stack trace, grounded on the teacher's
// pkg/vm/errors.go StackFrame/RuntimeError shape, generalized from its
// message-send-oriented fields to the call-frame model spec §4.G/§7
// describes, and wrapped internally with github.com/pkg/errors and
// github.com/go-stack/stack so a host stack trace accompanies the
// interpreted one without changing the external Value-returning
// contract.
package vm

import (
	"fmt"
	"strings"

	"github.com/go-stack/stack"
	"github.com/pkg/errors"
)

// StackFrame is one entry of the Lox call stack captured at the point
// a runtime error was raised.
type StackFrame struct {
	FunctionName string
	Line         int
}

// RuntimeError is the error spec §4.G/§7 describes: a one-line message
// plus the interpreted call stack, frame by frame, innermost first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
	cause      error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.StackTrace {
		name := f.FunctionName
		if name == "" {
			name = "script"
		}
		fmt.Fprintf(&b, "\n[line %d] in %s", f.Line, name)
	}
	return b.String()
}

// Unwrap exposes the pkg/errors-wrapped host cause so callers using
// errors.Is/As can still see through to it.
func (e *RuntimeError) Unwrap() error { return e.cause }

// newRuntimeError builds a RuntimeError, capturing a host stack trace
// (via go-stack/stack) as the wrapped cause for diagnostics, without
// exposing it as part of the printed Lox-facing message.
func newRuntimeError(message string, trace []StackFrame) *RuntimeError {
	cause := errors.Wrapf(fmt.Errorf("%s", message), "at %v", stack.Caller(1))
	return &RuntimeError{Message: message, StackTrace: trace, cause: cause}
}
