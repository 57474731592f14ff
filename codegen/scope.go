package codegen

import (
	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/ir"
)

// frame is one level of nesting: function parameters, a var binding or a
// loop variable.
type frame struct {
	names []string
	vals  map[string]ir.Value
}

// scope maps names to their current SSA value. Assignment replaces the
// value in the innermost frame holding the name.
type scope struct {
	frames []*frame
}

func (s *scope) push() {
	s.frames = append(s.frames, &frame{vals: map[string]ir.Value{}})
}

func (s *scope) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

// bind introduces name in the innermost frame.
func (s *scope) bind(name string, v ir.Value) {
	top := s.frames[len(s.frames)-1]
	if _, ok := top.vals[name]; !ok {
		top.names = append(top.names, name)
	}
	top.vals[name] = v
}

// find returns the index of the innermost frame holding name, or -1.
func (s *scope) find(name string) int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vals[name]; ok {
			return i
		}
	}
	return -1
}

func (s *scope) lookup(name string) (ir.Value, bool) {
	i := s.find(name)
	if i < 0 {
		return nil, false
	}
	return s.frames[i].vals[name], true
}

// set assigns to an existing binding.
func (s *scope) set(name string, v ir.Value) bool {
	i := s.find(name)
	if i < 0 {
		return false
	}
	s.frames[i].vals[name] = v
	return true
}

// binding identifies one variable: a frame and a name in it.
type binding struct {
	frame int
	name  string
}

// bindings lists every binding, outer frames first and names in the order
// they were bound.
func (s *scope) bindings() []binding {
	var out []binding
	for i, f := range s.frames {
		for _, n := range f.names {
			out = append(out, binding{i, n})
		}
	}
	return out
}

func (s *scope) get(b binding) ir.Value { return s.frames[b.frame].vals[b.name] }

func (s *scope) put(b binding, v ir.Value) { s.frames[b.frame].vals[b.name] = v }

// snapshot records the values of every binding.
type snapshot [][]ir.Value

func (s *scope) snapshot() snapshot {
	snap := make(snapshot, len(s.frames))
	for i, f := range s.frames {
		vals := make([]ir.Value, len(f.names))
		for j, n := range f.names {
			vals[j] = f.vals[n]
		}
		snap[i] = vals
	}
	return snap
}

// restore resets bindings to snap. Frames pushed since the snapshot must
// have been popped.
func (s *scope) restore(snap snapshot) {
	for i, vals := range snap {
		f := s.frames[i]
		for j, v := range vals {
			f.vals[f.names[j]] = v
		}
	}
}

func (snap snapshot) get(s *scope, b binding) ir.Value {
	f := s.frames[b.frame]
	for j, n := range f.names {
		if n == b.name {
			return snap[b.frame][j]
		}
	}
	return nil
}

// assignedNames collects the names assigned with '=' anywhere in exprs
// that are not bound by a var or for inside exprs. shadowed names are
// treated as already bound.
func assignedNames(shadowed []string, exprs ...ast.Expr) map[string]bool {
	out := map[string]bool{}
	inner := map[string]int{}
	for _, n := range shadowed {
		inner[n]++
	}
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Unary:
			walk(e.Operand)
		case *ast.Binary:
			if v, ok := e.LHS.(*ast.Variable); ok && e.Op == "=" && inner[v.Name] == 0 {
				out[v.Name] = true
			}
			walk(e.LHS)
			walk(e.RHS)
		case *ast.Call:
			for _, a := range e.Args {
				walk(a)
			}
		case *ast.If:
			walk(e.Cond)
			walk(e.Then)
			walk(e.Else)
		case *ast.For:
			walk(e.Start)
			inner[e.Var]++
			walk(e.Cond)
			if e.Step != nil {
				walk(e.Step)
			}
			walk(e.Body)
			inner[e.Var]--
		case *ast.VarBinding:
			for _, b := range e.Vars {
				if b.Init != nil {
					walk(b.Init)
				}
				// Later initializers see earlier names.
				inner[b.Name]++
			}
			walk(e.Body)
			for _, b := range e.Vars {
				inner[b.Name]--
			}
		}
	}
	for _, e := range exprs {
		walk(e)
	}
	return out
}
