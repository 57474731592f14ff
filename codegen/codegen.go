// Package codegen lowers syntax trees to SSA functions.
//
// Mutable variables never touch memory. Every name maps to its current SSA
// value, and at control-flow joins the code generator inserts a phi for
// each variable whose value differs between the incoming edges.
package codegen

import (
	"fmt"

	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/ir"
	"github.com/strager/kaleido/logutil"
)

var logger = logutil.GetLogger("[codegen] ")

// Generator lowers top-level units against the functions already in a
// module. It never modifies the module; callers install the functions it
// returns.
type Generator struct {
	mod *ir.Module

	// Per-function state.
	pending *ast.Prototype
	b       *ir.Builder
	scope   *scope
}

// New returns a generator that resolves calls against mod.
func New(mod *ir.Module) *Generator {
	return &Generator{mod: mod}
}

// Generate lowers a function definition or an extern prototype. The
// returned function is detached: it is not yet in the module.
//
// An extern whose signature matches an existing function returns that
// function unchanged, so a later extern does not discard a body.
func (g *Generator) Generate(node ast.TopLevel) (*ir.Function, error) {
	switch n := node.(type) {
	case *ast.Prototype:
		return g.declare(n)
	case *ast.Function:
		return g.define(n)
	default:
		return nil, fmt.Errorf("codegen: unexpected node %T", node)
	}
}

func (g *Generator) checkSignature(proto *ast.Prototype) error {
	existing := g.mod.Lookup(proto.Name)
	if existing != nil && existing.Arity() != len(proto.Params) {
		return newError(SignatureConflict, proto.Name,
			"%s already declared with %d parameters, not %d", proto.Name, existing.Arity(), len(proto.Params))
	}
	return nil
}

func (g *Generator) declare(proto *ast.Prototype) (*ir.Function, error) {
	if err := g.checkSignature(proto); err != nil {
		return nil, err
	}
	if existing := g.mod.Lookup(proto.Name); existing != nil {
		return existing, nil
	}
	return ir.NewFunction(proto.Name, proto.Params), nil
}

func (g *Generator) define(fn *ast.Function) (*ir.Function, error) {
	proto := fn.Proto
	if err := g.checkSignature(proto); err != nil {
		return nil, err
	}

	f := ir.NewFunction(proto.Name, proto.Params)
	g.pending = proto
	g.b = ir.NewBuilder(f)
	g.scope = &scope{}
	defer func() { g.pending, g.b, g.scope = nil, nil, nil }()

	g.scope.push()
	for i, p := range proto.Params {
		g.scope.bind(p, f.Params[i])
	}
	g.b.SetInsertPoint(f.NewBlock("entry"))
	ret, err := g.expr(fn.Body)
	if err != nil {
		return nil, err
	}
	g.b.Ret(ret)

	if err := ir.Verify(f); err != nil {
		return nil, fmt.Errorf("codegen produced bad IR: %w", err)
	}
	logger.Printf("generated @%s with %d blocks", f.Name, len(f.Blocks))
	return f, nil
}

// arity returns the parameter count of a callable function, including the
// one being defined.
func (g *Generator) arity(name string) (int, bool) {
	if g.pending != nil && g.pending.Name == name {
		return len(g.pending.Params), true
	}
	if f := g.mod.Lookup(name); f != nil {
		return f.Arity(), true
	}
	return 0, false
}

func (g *Generator) expr(e ast.Expr) (ir.Value, error) {
	switch e := e.(type) {
	case *ast.Number:
		return &ir.Const{V: e.Value}, nil
	case *ast.Variable:
		v, ok := g.scope.lookup(e.Name)
		if !ok {
			return nil, newError(UndefinedVariable, e.Name, "unknown variable name %q", e.Name)
		}
		return v, nil
	case *ast.Unary:
		return g.unary(e)
	case *ast.Binary:
		return g.binary(e)
	case *ast.Call:
		return g.call(e)
	case *ast.If:
		return g.ifExpr(e)
	case *ast.For:
		return g.forExpr(e)
	case *ast.VarBinding:
		return g.varExpr(e)
	default:
		return nil, fmt.Errorf("codegen: unexpected expression %T", e)
	}
}

var primitives = map[string]struct {
	op   ir.Op
	name string
}{
	"+": {ir.OpAdd, "addtmp"},
	"-": {ir.OpSub, "subtmp"},
	"*": {ir.OpMul, "multmp"},
	"/": {ir.OpDiv, "divtmp"},
	"<": {ir.OpLt, "cmptmp"},
}

func (g *Generator) binary(e *ast.Binary) (ir.Value, error) {
	if e.Op == "=" {
		return g.assign(e)
	}

	lhs, err := g.expr(e.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := g.expr(e.RHS)
	if err != nil {
		return nil, err
	}

	// Built-in symbols always lower to primitives, even if a function for
	// them has been defined.
	if p, ok := primitives[e.Op]; ok {
		return g.b.Binary(p.op, p.name, lhs, rhs), nil
	}
	name := ast.BinaryName(e.Op)
	if n, ok := g.arity(name); !ok || n != 2 {
		return nil, newError(UnknownOperator, e.Op, "binary operator %q has no definition", e.Op)
	}
	return g.b.Call("binop", name, []ir.Value{lhs, rhs}), nil
}

func (g *Generator) assign(e *ast.Binary) (ir.Value, error) {
	v, ok := e.LHS.(*ast.Variable)
	if !ok {
		return nil, newError(InvalidAssignment, "=", "destination of '=' must be a variable")
	}
	val, err := g.expr(e.RHS)
	if err != nil {
		return nil, err
	}
	if !g.scope.set(v.Name, val) {
		return nil, newError(UndefinedVariable, v.Name, "unknown variable name %q", v.Name)
	}
	return val, nil
}

func (g *Generator) unary(e *ast.Unary) (ir.Value, error) {
	operand, err := g.expr(e.Operand)
	if err != nil {
		return nil, err
	}
	name := ast.UnaryName(e.Op)
	if n, ok := g.arity(name); !ok || n != 1 {
		return nil, newError(UnknownOperator, e.Op, "unary operator %q has no definition", e.Op)
	}
	return g.b.Call("unop", name, []ir.Value{operand}), nil
}

func (g *Generator) call(e *ast.Call) (ir.Value, error) {
	n, ok := g.arity(e.Callee)
	if !ok {
		return nil, newError(UnknownFunction, e.Callee, "unknown function %q", e.Callee)
	}
	if n != len(e.Args) {
		return nil, newError(ArityMismatch, e.Callee,
			"incorrect number of arguments passed to %s: want %d, got %d", e.Callee, n, len(e.Args))
	}
	args := make([]ir.Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := g.expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return g.b.Call("calltmp", e.Callee, args), nil
}

// ifExpr branches to a then and an else block that both jump to ifcont.
// ifcont starts with a phi for the result, followed by one phi for each
// variable the two arms leave with different values.
func (g *Generator) ifExpr(e *ast.If) (ir.Value, error) {
	cond, err := g.expr(e.Cond)
	if err != nil {
		return nil, err
	}
	f := g.b.Func()
	thenB := f.NewBlock("then")
	elseB := f.NewBlock("else")
	mergeB := f.NewBlock("ifcont")
	g.b.Br(cond, thenB, elseB)
	before := g.scope.snapshot()

	g.b.SetInsertPoint(thenB)
	thenV, err := g.expr(e.Then)
	if err != nil {
		return nil, err
	}
	thenEnd := g.b.Block()
	thenSnap := g.scope.snapshot()
	g.b.Jmp(mergeB)

	g.scope.restore(before)
	g.b.SetInsertPoint(elseB)
	elseV, err := g.expr(e.Else)
	if err != nil {
		return nil, err
	}
	elseEnd := g.b.Block()
	elseSnap := g.scope.snapshot()
	g.b.Jmp(mergeB)

	g.b.SetInsertPoint(mergeB)
	phi := g.b.Phi("iftmp")
	phi.AddIncoming(thenV, thenEnd)
	phi.AddIncoming(elseV, elseEnd)

	for _, bnd := range g.scope.bindings() {
		tv, ev := thenSnap.get(g.scope, bnd), elseSnap.get(g.scope, bnd)
		if tv == ev {
			g.scope.put(bnd, tv)
			continue
		}
		merged := g.b.Phi(bnd.name)
		merged.AddIncoming(tv, thenEnd)
		merged.AddIncoming(ev, elseEnd)
		g.scope.put(bnd, merged)
	}
	return phi, nil
}

// forExpr lowers a loop as
//
//	preheader: jmp loop
//	loop:      phis; cond; br cond, body, afterloop
//	body:      body; step; nextvar = var + step; jmp loop
//	afterloop:
//
// The header has a phi for the loop variable and one for every enclosing
// variable assigned inside the loop. The loop evaluates to 0.
func (g *Generator) forExpr(e *ast.For) (ir.Value, error) {
	start, err := g.expr(e.Start)
	if err != nil {
		return nil, err
	}
	step := e.Step
	if step == nil {
		step = &ast.Number{Value: 1}
	}

	assigned := assignedNames([]string{e.Var}, e.Cond, step, e.Body)
	var carried []binding
	for _, bnd := range g.scope.bindings() {
		if assigned[bnd.name] && g.scope.find(bnd.name) == bnd.frame {
			carried = append(carried, bnd)
		}
	}

	f := g.b.Func()
	preheader := g.b.Block()
	loopB := f.NewBlock("loop")
	bodyB := f.NewBlock("body")
	afterB := f.NewBlock("afterloop")
	g.b.Jmp(loopB)

	g.b.SetInsertPoint(loopB)
	varPhi := g.b.Phi(e.Var)
	varPhi.AddIncoming(start, preheader)
	phis := make([]*ir.Instr, len(carried))
	for i, bnd := range carried {
		phis[i] = g.b.Phi(bnd.name)
		phis[i].AddIncoming(g.scope.get(bnd), preheader)
		g.scope.put(bnd, phis[i])
	}

	g.scope.push()
	defer g.scope.pop()
	g.scope.bind(e.Var, varPhi)

	cond, err := g.expr(e.Cond)
	if err != nil {
		return nil, err
	}
	exitSnap := g.scope.snapshot()
	g.b.Br(cond, bodyB, afterB)

	g.b.SetInsertPoint(bodyB)
	if _, err := g.expr(e.Body); err != nil {
		return nil, err
	}
	stepV, err := g.expr(step)
	if err != nil {
		return nil, err
	}
	cur, _ := g.scope.lookup(e.Var)
	next := g.b.Binary(ir.OpAdd, "nextvar", cur, stepV)
	latch := g.b.Block()
	g.b.Jmp(loopB)

	varPhi.AddIncoming(next, latch)
	for i, bnd := range carried {
		phis[i].AddIncoming(g.scope.get(bnd), latch)
	}

	g.scope.restore(exitSnap)
	g.b.SetInsertPoint(afterB)
	return &ir.Const{V: 0}, nil
}

// varExpr binds each name in a new frame. An initializer sees the names
// bound before it in the same var, but not its own.
func (g *Generator) varExpr(e *ast.VarBinding) (ir.Value, error) {
	g.scope.push()
	defer g.scope.pop()
	for _, bnd := range e.Vars {
		init := bnd.Init
		if init == nil {
			init = &ast.Number{Value: 0}
		}
		v, err := g.expr(init)
		if err != nil {
			return nil, err
		}
		g.scope.bind(bnd.Name, v)
	}
	return g.expr(e.Body)
}
