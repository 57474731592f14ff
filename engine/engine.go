// Package engine executes IR modules.
//
// Functions run on an interpreter over the SSA form: each instruction
// result lives in a register indexed by the instruction's ID, and a
// block's phis are resolved together from the block control arrived from.
// Calls are resolved by name when they execute, so a function picks up
// the definitions present in the module it is run against.
package engine

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/strager/kaleido/ir"
	"github.com/strager/kaleido/logutil"
)

var logger = logutil.GetLogger("[engine] ")

// DefaultMaxDepth bounds recursion when no limit is configured.
const DefaultMaxDepth = 10000

// checkEvery is how many instructions run between context checks.
const checkEvery = 1024

// Error is a runtime error.
type Error struct {
	Func string
	Msg  string
	// Err is set when execution was cancelled.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("runtime error in @%s: %s: %v", e.Func, e.Msg, e.Err)
	}
	return fmt.Sprintf("runtime error in @%s: %s", e.Func, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Engine runs functions, supplying host functions for externs.
type Engine struct {
	out      io.Writer
	maxDepth int
	host     map[string]HostFunc
}

// New returns an engine whose host functions print to out.
func New(out io.Writer) *Engine {
	if out == nil {
		out = io.Discard
	}
	e := &Engine{out: out, maxDepth: DefaultMaxDepth, host: map[string]HostFunc{}}
	for name, h := range builtinHost {
		e.host[name] = h
	}
	return e
}

// SetMaxDepth sets the call depth at which execution fails. Zero or less
// restores the default.
func (e *Engine) SetMaxDepth(n int) {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	e.maxDepth = n
}

// Register adds or replaces a host function.
func (e *Engine) Register(name string, h HostFunc) {
	e.host[name] = h
}

// HostFunctions returns the names of the host functions, sorted.
func (e *Engine) HostFunctions() []string {
	names := make([]string, 0, len(e.host))
	for n := range e.host {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Host returns the named host function.
func (e *Engine) Host(name string) (HostFunc, bool) {
	h, ok := e.host[name]
	return h, ok
}

// Run calls the named function in mod and returns its result.
func (e *Engine) Run(ctx context.Context, mod *ir.Module, name string, args ...float64) (float64, error) {
	logger.Printf("running @%s", name)
	m := &machine{ctx: ctx, mod: mod, eng: e}
	v, err := m.call(name, args)
	logger.Printf("@%s finished after %d steps", name, m.steps)
	return v, err
}

type machine struct {
	ctx   context.Context
	mod   *ir.Module
	eng   *Engine
	depth int
	steps int
}

func (m *machine) call(name string, args []float64) (float64, error) {
	f := m.mod.Lookup(name)
	if f == nil || f.IsDeclaration() {
		h, ok := m.eng.host[name]
		if !ok {
			if f == nil {
				return 0, &Error{Func: name, Msg: "function is not defined"}
			}
			return 0, &Error{Func: name, Msg: "extern has no host implementation"}
		}
		if h.Arity != len(args) {
			return 0, &Error{Func: name, Msg: fmt.Sprintf("host function takes %d arguments, got %d", h.Arity, len(args))}
		}
		return h.Fn(m.eng.out, args), nil
	}
	if f.Arity() != len(args) {
		return 0, &Error{Func: name, Msg: fmt.Sprintf("takes %d arguments, got %d", f.Arity(), len(args))}
	}

	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.eng.maxDepth {
		return 0, &Error{Func: name, Msg: fmt.Sprintf("maximum call depth %d exceeded", m.eng.maxDepth)}
	}
	return m.exec(f, args)
}

func (m *machine) exec(f *ir.Function, args []float64) (float64, error) {
	regs := make([]float64, f.NumInstrs())
	val := func(v ir.Value) float64 {
		switch v := v.(type) {
		case *ir.Const:
			return v.V
		case *ir.Param:
			return args[v.Index]
		case *ir.Instr:
			return regs[v.ID]
		}
		return 0
	}

	prev, cur := -1, f.Layout[0]
	var phiVals []float64
	for {
		blk := f.Blocks[cur]
		phis := blk.Phis()
		phiVals = phiVals[:0]
		for _, phi := range phis {
			found := false
			for _, inc := range phi.Incoming {
				if inc.Block == prev {
					phiVals = append(phiVals, val(inc.Value))
					found = true
					break
				}
			}
			if !found {
				return 0, &Error{Func: f.Name, Msg: fmt.Sprintf("phi %s has no entry for the incoming edge", phi.Operand())}
			}
		}
		for i, phi := range phis {
			regs[phi.ID] = phiVals[i]
		}

		next := -1
		for _, in := range blk.Instrs[len(phis):] {
			m.steps++
			if m.steps%checkEvery == 0 {
				if err := m.ctx.Err(); err != nil {
					return 0, &Error{Func: f.Name, Msg: "interrupted", Err: err}
				}
			}

			switch in.Op {
			case ir.OpAdd:
				regs[in.ID] = val(in.Args[0]) + val(in.Args[1])
			case ir.OpSub:
				regs[in.ID] = val(in.Args[0]) - val(in.Args[1])
			case ir.OpMul:
				regs[in.ID] = val(in.Args[0]) * val(in.Args[1])
			case ir.OpDiv:
				regs[in.ID] = val(in.Args[0]) / val(in.Args[1])
			case ir.OpLt:
				regs[in.ID] = boolToFloat(val(in.Args[0]) < val(in.Args[1]))
			case ir.OpCall:
				callArgs := make([]float64, len(in.Args))
				for i, a := range in.Args {
					callArgs[i] = val(a)
				}
				r, err := m.call(in.Callee, callArgs)
				if err != nil {
					return 0, err
				}
				regs[in.ID] = r
			case ir.OpBr:
				if val(in.Args[0]) != 0 {
					next = in.Targets[0]
				} else {
					next = in.Targets[1]
				}
			case ir.OpJmp:
				next = in.Targets[0]
			case ir.OpRet:
				return val(in.Args[0]), nil
			default:
				return 0, &Error{Func: f.Name, Msg: fmt.Sprintf("unexpected instruction %s", in.Op)}
			}
		}
		if next < 0 {
			return 0, &Error{Func: f.Name, Msg: fmt.Sprintf("block %%%s has no terminator", blk.Name)}
		}
		prev, cur = cur, next
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
