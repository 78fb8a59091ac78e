// Package codegen is subc's code generator: it walks the annotated AST
// and emits the assembly IR, performing on-the-fly scratch-register
// allocation during expression evaluation and managing the labels
// needed for conditionals and loops.
//
// It enforces the System-V calling convention, including the quirks of
// integer division and variadic calls, emits correctly aligned stack
// frames, and threads control flow via unique labels.
package codegen

import (
	"fmt"

	"github.com/skx/subc/asmir"
	"github.com/skx/subc/ast"
	"github.com/skx/subc/symbols"
)

// Error reports a fatal code-generation failure. These are narrow and
// indicate either a program that exceeds this compiler's register
// budget or an internal invariant violation.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Error: %s", e.Msg)
}

// scratchPool is the ordered pool of caller-saved scratch registers,
// ordered so that registers least likely to be needed for argument
// passing are allocated first. RAX is reserved for return values and
// division; RBX/RBP/RSP/R12..R15 are never used as scratch.
var scratchPool = []asmir.Register{
	asmir.R10, asmir.R11, asmir.R9, asmir.R8,
	asmir.RCX, asmir.RDX, asmir.RSI, asmir.RDI,
}

// argRegs is the System-V integer argument-register order.
var argRegs = []asmir.Register{
	asmir.RDI, asmir.RSI, asmir.RDX, asmir.RCX, asmir.R8, asmir.R9,
}

// context is the per-statement scratch-register allocator. It is
// re-initialized before every top-level statement: because all
// variables live on the stack, nothing in a scratch register needs to
// survive a statement boundary.
type context struct {
	used map[asmir.Register]bool
}

func newContext() *context {
	return &context{used: make(map[asmir.Register]bool)}
}

// allocate returns the first free register in pool order and marks it
// used. Exhaustion is a fatal "ran out of registers for expression".
func (c *context) allocate() (asmir.Register, error) {
	for _, r := range scratchPool {
		if !c.used[r] {
			c.used[r] = true
			return r, nil
		}
	}
	return 0, &Error{Msg: "ran out of registers for expression"}
}

func (c *context) free(r asmir.Register) {
	delete(c.used, r)
}

func (c *context) mark(r asmir.Register) {
	c.used[r] = true
}

func (c *context) isUsed(r asmir.Register) bool {
	return c.used[r]
}

// liveCount returns the number of live scratch registers, used to verify
// the register-discipline invariant in tests.
func (c *context) liveCount() int {
	return len(c.used)
}

// generator holds state shared across the whole compilation: the
// monotonic label/string counters (kept at this scope so labels stay
// unique across functions, not just within one) and the assembly being
// built.
type generator struct {
	asm          *asmir.Assembly
	text         *asmir.Section
	global       *symbols.Table
	debug        bool
	ifCounter    int
	whileCounter int
}

// Generate walks the annotated program and produces the assembly IR.
// When debug is set, a breakpoint (int3) is emitted immediately after
// main's prologue.
func Generate(program []*ast.FunctionDecl, global *symbols.Table, debug bool) (*asmir.Assembly, error) {
	g := &generator{asm: asmir.NewAssembly(), global: global, debug: debug}
	g.asm.AddExtern("printf")
	g.text = g.asm.NewSection(".text")

	for _, fn := range program {
		if err := g.generateFunction(fn); err != nil {
			return nil, err
		}
	}

	return g.asm, nil
}

func (g *generator) generateFunction(fn *ast.FunctionDecl) error {
	g.text.Label(fn.Name)
	g.emitPrologue(fn.FrameSize)

	if g.debug && fn.Name == "main" {
		g.text.Add(asmir.INT3, asmir.Operand{}, asmir.Operand{})
	}

	for i, p := range fn.Params {
		if i >= len(argRegs) {
			break
		}
		g.text.Add(asmir.MOV, asmir.Mem(asmir.RBP, p.Offset), asmir.Reg(argRegs[i]))
	}

	terminated, err := g.generateBlock(fn.Body)
	if err != nil {
		return err
	}
	if !terminated {
		g.emitEpilogue()
	}
	return nil
}

func (g *generator) emitPrologue(frameSize int) {
	g.text.Add(asmir.PUSH, asmir.Reg(asmir.RBP), asmir.Operand{})
	g.text.Add(asmir.MOV, asmir.Reg(asmir.RBP), asmir.Reg(asmir.RSP))
	if frameSize > 0 {
		g.text.Add(asmir.SUB, asmir.Reg(asmir.RSP), asmir.Imm(int64(frameSize)))
	}
}

func (g *generator) emitEpilogue() {
	g.text.Add(asmir.MOV, asmir.Reg(asmir.RSP), asmir.Reg(asmir.RBP))
	g.text.Add(asmir.POP, asmir.Reg(asmir.RBP), asmir.Operand{})
	g.text.Add(asmir.RET, asmir.Operand{}, asmir.Operand{})
}

// generateBlock lowers a statement list, returning whether every
// control-flow path through it executed a RET.
func (g *generator) generateBlock(body []ast.Stmt) (bool, error) {
	for _, stmt := range body {
		terminated, err := g.generateStmt(stmt)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	return false, nil
}

func (g *generator) generateStmt(stmt ast.Stmt) (bool, error) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Init != nil {
			ctx := newContext()
			r, err := g.generateExpr(ctx, s.Init)
			if err != nil {
				return false, err
			}
			g.text.Add(asmir.MOV, asmir.Mem(asmir.RBP, s.Offset), asmir.Reg(r))
			ctx.free(r)
		}
		return false, nil

	case *ast.Assignment:
		ctx := newContext()
		if err := g.generateAssignment(ctx, s); err != nil {
			return false, err
		}
		return false, nil

	case *ast.Return:
		ctx := newContext()
		r, err := g.generateExpr(ctx, s.Value)
		if err != nil {
			return false, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(asmir.RAX), asmir.Reg(r))
		g.emitEpilogue()
		return true, nil

	case *ast.If:
		return g.generateIf(s)

	case *ast.While:
		return g.generateWhile(s)

	case *ast.ExprStmt:
		ctx := newContext()
		if _, err := g.generateExpr(ctx, s.Value); err != nil {
			return false, err
		}
		return false, nil
	}

	return false, &Error{Msg: fmt.Sprintf("unhandled node type %T", stmt)}
}

func (g *generator) generateIf(s *ast.If) (bool, error) {
	n := g.ifCounter
	g.ifCounter++
	elseLabel := fmt.Sprintf(".Lelse%d", n)
	endLabel := fmt.Sprintf(".Lif_end%d", n)

	ctx := newContext()
	c, err := g.generateExpr(ctx, s.Cond)
	if err != nil {
		return false, err
	}
	g.text.Add(asmir.CMP, asmir.Reg(c), asmir.Imm(0))
	ctx.free(c)
	g.text.Add(asmir.JE, asmir.Lbl(elseLabel), asmir.Operand{})

	thenReturns, err := g.generateBlock(s.Then)
	if err != nil {
		return false, err
	}
	g.text.Add(asmir.JMP, asmir.Lbl(endLabel), asmir.Operand{})

	g.text.Label(elseLabel)
	elseReturns := false
	if s.Else != nil {
		elseReturns, err = g.generateBlock(s.Else)
		if err != nil {
			return false, err
		}
	}
	g.text.Label(endLabel)

	return thenReturns && elseReturns, nil
}

func (g *generator) generateWhile(s *ast.While) (bool, error) {
	n := g.whileCounter
	g.whileCounter++
	startLabel := fmt.Sprintf(".Lwhile_start%d", n)
	endLabel := fmt.Sprintf(".Lwhile_end%d", n)

	g.text.Label(startLabel)

	ctx := newContext()
	c, err := g.generateExpr(ctx, s.Cond)
	if err != nil {
		return false, err
	}
	g.text.Add(asmir.CMP, asmir.Reg(c), asmir.Imm(0))
	ctx.free(c)
	g.text.Add(asmir.JE, asmir.Lbl(endLabel), asmir.Operand{})

	if _, err := g.generateBlock(s.Body); err != nil {
		return false, err
	}
	g.text.Add(asmir.JMP, asmir.Lbl(startLabel), asmir.Operand{})
	g.text.Label(endLabel)

	// A loop is conservatively assumed not to terminate the enclosing
	// block, regardless of what its body does.
	return false, nil
}

func (g *generator) generateAssignment(ctx *context, s *ast.Assignment) error {
	r, err := g.generateExpr(ctx, s.Value)
	if err != nil {
		return err
	}
	g.text.Add(asmir.MOV, asmir.Mem(asmir.RBP, s.Target.Offset), asmir.Reg(r))
	ctx.free(r)
	return nil
}

// generateExpr recursively lowers an expression, returning the scratch
// register holding its value.
func (g *generator) generateExpr(ctx *context, expr ast.Expr) (asmir.Register, error) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		r, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(r), asmir.Imm(e.Value))
		return r, nil

	case *ast.Identifier:
		r, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(r), asmir.Mem(asmir.RBP, e.Offset))
		return r, nil

	case *ast.StringLiteral:
		label := g.asm.Intern(e.Value)
		r, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.LEA, asmir.Reg(r), asmir.RIPLbl(label))
		return r, nil

	case *ast.BinaryOp:
		return g.generateBinaryOp(ctx, e)

	case *ast.Call:
		return g.generateCall(ctx, e)

	case *ast.Assignment:
		if err := g.generateAssignment(ctx, e); err != nil {
			return 0, err
		}
		r, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(r), asmir.Mem(asmir.RBP, e.Target.Offset))
		return r, nil
	}

	return 0, &Error{Msg: fmt.Sprintf("unhandled node type %T", expr)}
}

func (g *generator) generateBinaryOp(ctx *context, e *ast.BinaryOp) (asmir.Register, error) {
	left, err := g.generateExpr(ctx, e.Left)
	if err != nil {
		return 0, err
	}
	right, err := g.generateExpr(ctx, e.Right)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case "+":
		g.text.Add(asmir.ADD, asmir.Reg(left), asmir.Reg(right))
		ctx.free(right)
		return left, nil

	case "-":
		g.text.Add(asmir.SUB, asmir.Reg(left), asmir.Reg(right))
		ctx.free(right)
		return left, nil

	case "*":
		g.text.Add(asmir.MUL, asmir.Reg(left), asmir.Reg(right))
		ctx.free(right)
		return left, nil

	case "==", "!=":
		g.text.Add(asmir.CMP, asmir.Reg(right), asmir.Reg(left))
		result, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		op := asmir.SET_EQ
		if e.Op == "!=" {
			op = asmir.SET_NE
		}
		g.text.Add(op, asmir.Reg(asmir.AL), asmir.Operand{})
		g.text.Add(asmir.MOVZX, asmir.Reg(result), asmir.Reg(asmir.AL))
		ctx.free(left)
		ctx.free(right)
		return result, nil

	case "/":
		return g.generateDivide(ctx, left, right)
	}

	return 0, &Error{Msg: fmt.Sprintf("unhandled node type binary-op %q", e.Op)}
}

// generateDivide implements the IDIV protocol: the dividend must be in
// RDX:RAX, the quotient comes back in RAX. RDX doubles as a scratch
// register, so any temporary currently parked there has to be relocated
// before the division sequence can proceed.
func (g *generator) generateDivide(ctx *context, left, right asmir.Register) (asmir.Register, error) {
	// rescuedForeign is set when RDX held some other live value - an
	// already-placed call argument, say - that has nothing to do with
	// this division and must still be there once it's over; foreignRDX
	// is the spare register it was relocated to.
	var foreignRDX asmir.Register
	rescuedForeign := false
	if ctx.isUsed(asmir.RDX) && left != asmir.RDX && right != asmir.RDX {
		spare, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(spare), asmir.Reg(asmir.RDX))
		ctx.free(asmir.RDX)
		foreignRDX = spare
		rescuedForeign = true
	}

	if left == asmir.RDX {
		g.text.Add(asmir.MOV, asmir.Reg(asmir.RAX), asmir.Reg(asmir.RDX))
		ctx.free(asmir.RDX)
		left = asmir.RAX
	}

	if right == asmir.RDX {
		t, err := ctx.allocate()
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(t), asmir.Reg(asmir.RDX))
		ctx.free(asmir.RDX)
		right = t
	}

	if left != asmir.RAX {
		g.text.Add(asmir.MOV, asmir.Reg(asmir.RAX), asmir.Reg(left))
		ctx.free(left)
	} else {
		ctx.free(left)
	}

	g.text.Add(asmir.MOV, asmir.Reg(asmir.RDX), asmir.Imm(0))
	g.text.Add(asmir.DIV, asmir.Reg(right), asmir.Operand{})
	ctx.free(right)

	// RDX now holds the remainder, which this operator discards - the
	// moment to hand it back to whatever was rescued out of it above,
	// before anything else can claim it.
	if rescuedForeign {
		g.text.Add(asmir.MOV, asmir.Reg(asmir.RDX), asmir.Reg(foreignRDX))
		ctx.free(foreignRDX)
		ctx.mark(asmir.RDX)
	}

	q, err := ctx.allocate()
	if err != nil {
		return 0, err
	}
	g.text.Add(asmir.MOV, asmir.Reg(q), asmir.Reg(asmir.RAX))
	return q, nil
}

// generateCall lowers a function call using a save-and-restore strategy:
// every live scratch is pushed before the call and popped, in reverse
// order, afterward.
func (g *generator) generateCall(ctx *context, e *ast.Call) (asmir.Register, error) {
	if len(e.Args) > len(argRegs) {
		return 0, &Error{Msg: fmt.Sprintf("call to %q has more than %d arguments", e.Name, len(argRegs))}
	}

	var saved []asmir.Register
	for _, r := range scratchPool {
		if ctx.isUsed(r) {
			saved = append(saved, r)
		}
	}
	for _, r := range saved {
		g.text.Add(asmir.PUSH, asmir.Reg(r), asmir.Operand{})
		ctx.free(r)
	}

	// Argument registers are marked used as soon as they receive their
	// value, and stay that way until the call executes, so that
	// generating arg i+1 can never clobber an already-placed arg i.
	for i, arg := range e.Args {
		r, err := g.generateExpr(ctx, arg)
		if err != nil {
			return 0, err
		}
		g.text.Add(asmir.MOV, asmir.Reg(argRegs[i]), asmir.Reg(r))
		ctx.free(r)
		ctx.mark(argRegs[i])
	}

	g.text.Add(asmir.MOV, asmir.Reg(asmir.RAX), asmir.Imm(0))
	g.text.Add(asmir.CALL, asmir.Lbl(e.Name), asmir.Operand{})

	for _, r := range argRegs[:len(e.Args)] {
		ctx.free(r)
	}

	for i := len(saved) - 1; i >= 0; i-- {
		g.text.Add(asmir.POP, asmir.Reg(saved[i]), asmir.Operand{})
		ctx.mark(saved[i])
	}

	r, err := ctx.allocate()
	if err != nil {
		return 0, err
	}
	g.text.Add(asmir.MOV, asmir.Reg(r), asmir.Reg(asmir.RAX))
	return r, nil
}
