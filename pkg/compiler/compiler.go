// Package compiler implements component F from spec §4.F: a
// single-pass Pratt parser that emits bytecode directly into a Chunk
// as it recognizes each expression and statement, with no intermediate
// AST. Grounded on the teacher's pkg/compiler/compiler.go for the
// overall Compiler-struct/emit/addConstant shape, generalized from its
// minimal AST-walking compiler into clox's (original_source/clox,
// compiler.c) expression-parsing-table design, since the teacher's own
// compiler has no Pratt parser to adapt and the spec requires one.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/loxvm/loxvm/pkg/lexer"
	"github.com/loxvm/loxvm/pkg/object"
	"github.com/loxvm/loxvm/pkg/table"
)

const maxLocals = 256
const maxUpvalues = 256
const maxConstants = 256
const maxParams = 255
const maxArgs = 255

// FunctionType distinguishes the kind of function body currently being
// compiled, which changes what `return` and implicit returns mean.
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeScript
	TypeMethod
	TypeInitializer
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

// compilerState is one nested function's worth of compile-time state;
// functions form a stack via enclosing, mirroring how nested scopes in
// clox share one recursive-descent compiler with a Compiler* chain.
type compilerState struct {
	enclosing *compilerState
	function  *object.ObjFunction
	typ       FunctionType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

// Compiler compiles one top-level script (plus every function and
// method nested inside it) into a tree of ObjFunction/Chunk pairs.
type Compiler struct {
	heap   *object.Heap
	intern *table.Table

	lex     *lexer.Lexer
	current lexer.Token
	prev    lexer.Token

	hadError  bool
	panicMode bool
	errors    []string

	state *compilerState
	class *classState
}

// New creates a Compiler that allocates strings and functions on heap,
// interning identifiers and literals through intern.
func New(heap *object.Heap, intern *table.Table) *Compiler {
	return &Compiler{heap: heap, intern: intern}
}

// Compile parses source as a top-level script and returns the
// resulting implicit main function, or an error describing every
// compile error encountered (spec §4.F: compile errors are collected,
// not just the first one, and compilation still fails as a whole).
func (c *Compiler) Compile(source string) (*object.ObjFunction, error) {
	c.lex = lexer.New(source)
	c.hadError = false
	c.panicMode = false
	c.errors = nil

	c.pushCompiler(TypeScript, "")

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenEOF, "expect end of expression")

	fn := c.popCompiler()
	if c.hadError {
		return nil, fmt.Errorf("compile error: %s", joinErrors(c.errors))
	}
	return fn, nil
}

// FunctionChain returns the in-progress function nesting, innermost
// first: the partially-compiled ObjFunction of the current scope and
// every enclosing one still on the compiler's stack. A GC pass that
// runs while the VM is mid-Compile (spec §4.H) must mark these; a
// function only gets pushed onto the VM's constant pool, and so
// becomes reachable through the normal roots, once its enclosing
// function finishes compiling it via OP_CLOSURE.
func (c *Compiler) FunctionChain() []*object.ObjFunction {
	var chain []*object.ObjFunction
	for st := c.state; st != nil; st = st.enclosing {
		chain = append(chain, st.function)
	}
	return chain
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}

func (c *Compiler) pushCompiler(typ FunctionType, name string) {
	fn := c.heap.NewFunction()
	if name != "" {
		fn.Name = table.MakeString(c.heap, c.intern, []byte(name))
	}
	st := &compilerState{
		enclosing: c.state,
		function:  fn,
		typ:       typ,
	}
	// Slot 0 is reserved: `this` for methods, the callee itself otherwise.
	if typ == TypeMethod || typ == TypeInitializer {
		st.locals = append(st.locals, local{name: "this", depth: 0})
	} else {
		st.locals = append(st.locals, local{name: "", depth: 0})
	}
	c.state = st
}

func (c *Compiler) popCompiler() *object.ObjFunction {
	c.emitReturn()
	fn := c.state.function
	fn.UpvalueCount = len(c.state.upvalues)
	c.state = c.state.enclosing
	return fn
}

// --- token stream helpers -------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.current
	for {
		c.current = c.lex.NextToken()
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *Compiler) error(message string) {
	c.errorAt(c.prev, message)
}

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenError:
	default:
		where = " at '" + tok.Lexeme + "'"
	}
	c.errors = append(c.errors, fmt.Sprintf("[line %d]%s: %s", tok.Line, where, message))
	c.hadError = true
}

// synchronize discards tokens until a likely statement boundary, so
// one error report doesn't cascade into a flood of bogus follow-ons.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Type != lexer.TokenEOF {
		if c.prev.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emitting bytecode -----------------------------------------------------

func (c *Compiler) chunk() *object.Chunk { return c.state.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.prev.Line)
}

func (c *Compiler) emitOp(op object.OpCode) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitOpByte(op object.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitReturn() {
	if c.state.typ == TypeInitializer {
		c.emitOpByte(object.OpGetLocal, 0)
	} else {
		c.emitOp(object.OpNil)
	}
	c.emitOp(object.OpReturn)
}

func (c *Compiler) makeConstant(v object.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > maxConstants-1 {
		c.error("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v object.Value) {
	c.emitOpByte(object.OpConstant, c.makeConstant(v))
}

// emitJump writes a two-byte placeholder after op and returns its
// offset for a later patchJump call.
func (c *Compiler) emitJump(op object.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("loop body too large")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(object.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.error("loop body too large")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// --- declarations and statements ------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenFun):
		c.funDeclaration()
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement()
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "expect ';' after value")
	c.emitOp(object.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "expect ';' after expression")
	c.emitOp(object.OpPop)
}

func (c *Compiler) returnStatement() {
	if c.match(lexer.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.state.typ == TypeInitializer {
		c.error("cannot return a value from an initializer")
	}
	c.expression()
	c.consume(lexer.TokenSemicolon, "expect ';' after return value")
	c.emitOp(object.OpReturn)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "expect '(' after 'if'")
	c.expression()
	c.consume(lexer.TokenRightParen, "expect ')' after condition")

	thenJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.statement()

	elseJump := c.emitJump(object.OpJump)
	c.patchJump(thenJump)
	c.emitOp(object.OpPop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(lexer.TokenLeftParen, "expect '(' after 'while'")
	c.expression()
	c.consume(lexer.TokenRightParen, "expect ')' after condition")

	exitJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(object.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLeftParen, "expect '(' after 'for'")

	switch {
	case c.match(lexer.TokenSemicolon):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(lexer.TokenSemicolon) {
		c.expression()
		c.consume(lexer.TokenSemicolon, "expect ';' after loop condition")
		exitJump = c.emitJump(object.OpJumpIfFalse)
		c.emitOp(object.OpPop)
	}

	if !c.match(lexer.TokenRightParen) {
		bodyJump := c.emitJump(object.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(object.OpPop)
		c.consume(lexer.TokenRightParen, "expect ')' after for clauses")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(object.OpPop)
	}
	c.endScope()
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "expect '}' after block")
}

func (c *Compiler) beginScope() { c.state.scopeDepth++ }

func (c *Compiler) endScope() {
	c.state.scopeDepth--
	for len(c.state.locals) > 0 && c.state.locals[len(c.state.locals)-1].depth > c.state.scopeDepth {
		last := c.state.locals[len(c.state.locals)-1]
		if last.isCaptured {
			c.emitOp(object.OpCloseUpvalue)
		} else {
			c.emitOp(object.OpPop)
		}
		c.state.locals = c.state.locals[:len(c.state.locals)-1]
	}
}

// --- variable declarations -------------------------------------------------

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("expect variable name")

	if c.match(lexer.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(object.OpNil)
	}
	c.consume(lexer.TokenSemicolon, "expect ';' after variable declaration")

	c.defineVariable(global)
}

func (c *Compiler) parseVariable(message string) byte {
	c.consume(lexer.TokenIdentifier, message)
	c.declareLocal()
	if c.state.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.prev.Lexeme)
}

func (c *Compiler) identifierConstant(name string) byte {
	s := table.MakeString(c.heap, c.intern, []byte(name))
	return c.makeConstant(object.ObjVal(&s.Obj))
}

func (c *Compiler) declareLocal() {
	if c.state.scopeDepth == 0 {
		return
	}
	name := c.prev.Lexeme
	for i := len(c.state.locals) - 1; i >= 0; i-- {
		l := c.state.locals[i]
		if l.depth != -1 && l.depth < c.state.scopeDepth {
			break
		}
		if l.name == name {
			c.error("already a variable with this name in this scope")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.state.locals) >= maxLocals {
		c.error("too many local variables in function")
		return
	}
	c.state.locals = append(c.state.locals, local{name: name, depth: -1})
}

func (c *Compiler) defineVariable(global byte) {
	if c.state.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(object.OpDefineGlobal, global)
}

func (c *Compiler) markInitialized() {
	if c.state.scopeDepth == 0 {
		return
	}
	c.state.locals[len(c.state.locals)-1].depth = c.state.scopeDepth
}

func (c *Compiler) resolveLocal(st *compilerState, name string) int {
	for i := len(st.locals) - 1; i >= 0; i-- {
		if st.locals[i].name == name {
			if st.locals[i].depth == -1 {
				c.error("can't read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) resolveUpvalue(st *compilerState, name string) int {
	if st.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(st.enclosing, name); local != -1 {
		st.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(st, byte(local), true)
	}
	if up := c.resolveUpvalue(st.enclosing, name); up != -1 {
		return c.addUpvalue(st, byte(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(st *compilerState, index byte, isLocal bool) int {
	for i, u := range st.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(st.upvalues) >= maxUpvalues {
		c.error("too many closure variables in function")
		return 0
	}
	st.upvalues = append(st.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(st.upvalues) - 1
}

// --- functions, classes, methods -------------------------------------------

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("expect function name")
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(typ FunctionType) {
	name := c.prev.Lexeme
	c.pushCompiler(typ, name)
	c.beginScope()

	c.consume(lexer.TokenLeftParen, "expect '(' after function name")
	if !c.check(lexer.TokenRightParen) {
		for {
			c.state.function.Arity++
			if c.state.function.Arity > maxParams {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := c.parseVariable("expect parameter name")
			c.defineVariable(constant)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "expect ')' after parameters")
	c.consume(lexer.TokenLeftBrace, "expect '{' before function body")
	c.block()

	upvalues := c.state.upvalues
	fn := c.popCompiler()

	c.emitOpByte(object.OpClosure, c.makeConstant(object.ObjVal(&fn.Obj)))
	for _, u := range upvalues {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.index)
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "expect class name")
	className := c.prev.Lexeme
	nameConstant := c.identifierConstant(className)
	c.declareLocal()

	c.emitOpByte(object.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cs := &classState{enclosing: c.class}
	c.class = cs

	if c.match(lexer.TokenLess) {
		c.consume(lexer.TokenIdentifier, "expect superclass name")
		c.variable(false, c.prev.Lexeme)
		if c.prev.Lexeme == className {
			c.error("a class can't inherit from itself")
		}

		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(object.OpInherit)
		cs.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.TokenLeftBrace, "expect '{' before class body")
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRightBrace, "expect '}' after class body")
	c.emitOp(object.OpPop) // pop the class itself

	if cs.hasSuperclass {
		c.endScope()
	}
	c.class = cs.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "expect method name")
	name := c.prev.Lexeme
	constant := c.identifierConstant(name)

	typ := TypeMethod
	if name == "init" {
		typ = TypeInitializer
	}
	c.function(typ)
	c.emitOpByte(object.OpMethod, constant)
}

// --- expressions ------------------------------------------------------------

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {(*Compiler).grouping, (*Compiler).call, precCall},
		lexer.TokenDot:          {nil, (*Compiler).dot, precCall},
		lexer.TokenMinus:        {(*Compiler).unary, (*Compiler).binary, precTerm},
		lexer.TokenPlus:         {nil, (*Compiler).binary, precTerm},
		lexer.TokenSlash:        {nil, (*Compiler).binary, precFactor},
		lexer.TokenStar:         {nil, (*Compiler).binary, precFactor},
		lexer.TokenBang:         {(*Compiler).unary, nil, precNone},
		lexer.TokenBangEqual:    {nil, (*Compiler).binary, precEquality},
		lexer.TokenEqualEqual:   {nil, (*Compiler).binary, precEquality},
		lexer.TokenGreater:      {nil, (*Compiler).binary, precComparison},
		lexer.TokenGreaterEqual: {nil, (*Compiler).binary, precComparison},
		lexer.TokenLess:         {nil, (*Compiler).binary, precComparison},
		lexer.TokenLessEqual:    {nil, (*Compiler).binary, precComparison},
		lexer.TokenIdentifier:   {(*Compiler).variablePrefix, nil, precNone},
		lexer.TokenString:       {(*Compiler).stringLiteral, nil, precNone},
		lexer.TokenNumber:       {(*Compiler).number, nil, precNone},
		lexer.TokenAnd:          {nil, (*Compiler).and, precAnd},
		lexer.TokenOr:           {nil, (*Compiler).or, precOr},
		lexer.TokenFalse:        {(*Compiler).literal, nil, precNone},
		lexer.TokenTrue:         {(*Compiler).literal, nil, precNone},
		lexer.TokenNil:          {(*Compiler).literal, nil, precNone},
		lexer.TokenThis:         {(*Compiler).this, nil, precNone},
		lexer.TokenSuper:        {(*Compiler).super, nil, precNone},
	}
}

func (c *Compiler) getRule(t lexer.TokenType) parseRule {
	return rules[t]
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := c.getRule(c.prev.Type)
	if rule.prefix == nil {
		c.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= c.getRule(c.current.Type).precedence {
		c.advance()
		infix := c.getRule(c.prev.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	v, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(object.NumberVal(v))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	s := table.MakeString(c.heap, c.intern, []byte(c.prev.Lexeme))
	c.emitConstant(object.ObjVal(&s.Obj))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Type {
	case lexer.TokenFalse:
		c.emitOp(object.OpFalse)
	case lexer.TokenTrue:
		c.emitOp(object.OpTrue)
	case lexer.TokenNil:
		c.emitOp(object.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.prev.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenMinus:
		c.emitOp(object.OpNegate)
	case lexer.TokenBang:
		c.emitOp(object.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.prev.Type
	rule := c.getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		c.emitOp(object.OpEqual)
		c.emitOp(object.OpNot)
	case lexer.TokenEqualEqual:
		c.emitOp(object.OpEqual)
	case lexer.TokenGreater:
		c.emitOp(object.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(object.OpLess)
		c.emitOp(object.OpNot)
	case lexer.TokenLess:
		c.emitOp(object.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(object.OpGreater)
		c.emitOp(object.OpNot)
	case lexer.TokenPlus:
		c.emitOp(object.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(object.OpSubtract)
	case lexer.TokenStar:
		c.emitOp(object.OpMultiply)
	case lexer.TokenSlash:
		c.emitOp(object.OpDivide)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(object.OpJumpIfFalse)
	c.emitOp(object.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(object.OpJumpIfFalse)
	endJump := c.emitJump(object.OpJump)

	c.patchJump(elseJump)
	c.emitOp(object.OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(object.OpCall, argCount)
}

func (c *Compiler) argumentList() byte {
	count := 0
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			if count == maxArgs {
				c.error("can't have more than 255 arguments")
			}
			count++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "expect ')' after arguments")
	return byte(count)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "expect property name after '.'")
	name := c.identifierConstant(c.prev.Lexeme)

	switch {
	case canAssign && c.match(lexer.TokenEqual):
		c.expression()
		c.emitOpByte(object.OpSetProperty, name)
	case c.match(lexer.TokenLeftParen):
		argCount := c.argumentList()
		c.emitOpByte(object.OpInvoke, name)
		c.emitByte(argCount)
	default:
		c.emitOpByte(object.OpGetProperty, name)
	}
}

func (c *Compiler) variablePrefix(canAssign bool) {
	c.variable(canAssign, c.prev.Lexeme)
}

func (c *Compiler) variable(canAssign bool, name string) {
	c.namedVariable(name, canAssign)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp object.OpCode
	arg := c.resolveLocal(c.state, name)
	if arg != -1 {
		getOp, setOp = object.OpGetLocal, object.OpSetLocal
	} else if up := c.resolveUpvalue(c.state, name); up != -1 {
		arg = up
		getOp, setOp = object.OpGetUpvalue, object.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = object.OpGetGlobal, object.OpSetGlobal
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'this' outside of a class")
		return
	}
	c.variable(false, "this")
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("can't use 'super' outside of a class")
	} else if !c.class.hasSuperclass {
		c.error("can't use 'super' in a class with no superclass")
	}

	c.consume(lexer.TokenDot, "expect '.' after 'super'")
	c.consume(lexer.TokenIdentifier, "expect superclass method name")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariable("this", false)
	if c.match(lexer.TokenLeftParen) {
		argCount := c.argumentList()
		c.namedVariable("super", false)
		c.emitOpByte(object.OpSuperInvoke, name)
		c.emitByte(argCount)
	} else {
		c.namedVariable("super", false)
		c.emitOpByte(object.OpGetSuper, name)
	}
}
