// Package compiler runs source text through the whole pipeline: parsing,
// code generation and execution.
//
// A Session keeps the state that persists between inputs: the operator
// table, the module of defined functions and the engine. Every top-level
// unit is applied atomically. If any stage fails, the operator table is
// restored and the module is left as it was before the unit.
package compiler

import (
	"context"
	"io"

	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/codegen"
	"github.com/strager/kaleido/engine"
	"github.com/strager/kaleido/ir"
	"github.com/strager/kaleido/logutil"
	"github.com/strager/kaleido/optable"
	"github.com/strager/kaleido/parser"
)

var logger = logutil.GetLogger("[compiler] ")

// Kind says what a unit was.
type Kind int

const (
	// Invalid is a unit that failed to parse.
	Invalid Kind = iota
	Definition
	Extern
	Expression
)

func (k Kind) String() string {
	switch k {
	case Definition:
		return "definition"
	case Extern:
		return "extern"
	case Expression:
		return "expression"
	default:
		return "invalid"
	}
}

// Outcome is the result of one top-level unit.
type Outcome struct {
	Kind Kind
	// Name is the function defined or declared; expressions use the
	// anonymous function name.
	Name string
	// Value is the result of an executed expression.
	Value float64
	// AST is the unit's syntax tree as an s-expression.
	AST string
	// IR is the printed function generated for the unit.
	IR  string
	Err error
	// From and To are the byte range of the unit in the source.
	From, To int
}

// Session holds the state shared by successive inputs.
type Session struct {
	ops *optable.Table
	mod *ir.Module
	eng *engine.Engine
}

// New returns a session whose host functions print to out.
func New(out io.Writer) *Session {
	return &Session{
		ops: optable.New(),
		mod: ir.NewModule(),
		eng: engine.New(out),
	}
}

// Ops returns the live operator table.
func (s *Session) Ops() *optable.Table { return s.ops }

// Module returns the live module.
func (s *Session) Module() *ir.Module { return s.mod }

// Engine returns the engine that runs expressions.
func (s *Session) Engine() *engine.Engine { return s.eng }

// Eval compiles every unit in src in order, running each expression as soon
// as it is compiled. A failed unit does not stop later ones.
func (s *Session) Eval(ctx context.Context, src string) []Outcome {
	return s.process(ctx, src, true)
}

// Check compiles every unit in src like Eval but runs nothing.
// Definitions and externs are still installed so later units can refer to
// them.
func (s *Session) Check(src string) []Outcome {
	return s.process(context.Background(), src, false)
}

func (s *Session) process(ctx context.Context, src string, execute bool) []Outcome {
	var outcomes []Outcome
	p := parser.New(src, s.ops)
	for {
		snap := s.ops.Snapshot()
		node, err := p.ParseTopLevel()
		if err == io.EOF {
			return outcomes
		}
		out := Outcome{}
		out.From, out.To = p.Span()
		if err != nil {
			out.Err = err
			outcomes = append(outcomes, out)
			continue
		}
		s.unit(ctx, node, execute, &out)
		if out.Err != nil {
			logger.Printf("rolling back %s at %d-%d: %v", out.Kind, out.From, out.To, out.Err)
			s.ops.Restore(snap)
		}
		outcomes = append(outcomes, out)
	}
}

func (s *Session) unit(ctx context.Context, node ast.TopLevel, execute bool, out *Outcome) {
	out.AST = ast.ToSExpr(node)
	switch n := node.(type) {
	case *ast.Prototype:
		out.Kind, out.Name = Extern, n.Name
	case *ast.Function:
		out.Name = n.Proto.Name
		out.Kind = Definition
		if n.IsAnon() {
			out.Kind = Expression
		}
	}

	f, err := codegen.New(s.mod).Generate(node)
	if err != nil {
		out.Err = err
		return
	}
	out.IR = f.String()

	if out.Kind != Expression {
		if s.mod.Lookup(f.Name) != nil {
			logger.Printf("replacing @%s", f.Name)
		}
		s.mod.Define(f)
		return
	}
	if !execute {
		return
	}

	// The anonymous function runs against a snapshot, so it never enters
	// the live module.
	snap := s.mod.Clone()
	snap.Define(f)
	out.Value, out.Err = s.eng.Run(ctx, snap, f.Name)
}
