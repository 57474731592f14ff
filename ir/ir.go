// Package ir is the intermediate representation produced by the code
// generator: a module of functions, each a set of basic blocks in SSA form.
//
// Blocks live in an arena owned by their function and refer to each other
// by ID. Each block records its predecessors in the order the edges were
// created, and every phi lists exactly one incoming value per predecessor
// in that same order.
package ir

import (
	"strconv"
)

// Op is an instruction opcode.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	// OpLt yields 1 if the first operand is less than the second, else 0.
	OpLt
	OpCall
	OpPhi
	// OpBr branches to Targets[0] if its operand is nonzero, else to
	// Targets[1].
	OpBr
	OpJmp
	OpRet
)

var opNames = [...]string{
	OpAdd:  "add",
	OpSub:  "sub",
	OpMul:  "mul",
	OpDiv:  "div",
	OpLt:   "lt",
	OpCall: "call",
	OpPhi:  "phi",
	OpBr:   "br",
	OpJmp:  "jmp",
	OpRet:  "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op" + strconv.Itoa(int(op))
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op == OpBr || op == OpJmp || op == OpRet
}

// IsBinary reports whether op is a two-operand arithmetic or comparison
// instruction.
func (op Op) IsBinary() bool {
	return op <= OpLt
}

// Value is an instruction operand: a *Const, a *Param or an *Instr.
type Value interface {
	// Operand is the value as it is spelled when used.
	Operand() string
	value()
}

// Const is a float64 constant.
type Const struct {
	V float64
}

// Param is a function parameter.
type Param struct {
	Index int
	Name  string
}

// Incoming is one entry of a phi: the value flowing in from block Block.
type Incoming struct {
	Value Value
	Block int
}

// Instr is an instruction. Instructions other than terminators produce a
// value.
type Instr struct {
	// ID numbers the instruction within its function.
	ID    int
	Op    Op
	Name  string
	Block int

	Args []Value
	// Callee names the function called by OpCall.
	Callee string
	// Incoming holds a phi's entries.
	Incoming []Incoming
	// Targets holds the destination block IDs of OpBr and OpJmp.
	Targets []int
}

func (*Const) value() {}
func (*Param) value() {}
func (*Instr) value() {}

func (c *Const) Operand() string { return FormatConst(c.V) }
func (p *Param) Operand() string { return "%" + p.Name }
func (i *Instr) Operand() string { return "%" + i.Name }

// FormatConst spells a constant the way the printer does.
func FormatConst(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Block is a basic block.
type Block struct {
	ID     int
	Name   string
	Instrs []*Instr
	// Preds are predecessor block IDs in edge-creation order.
	Preds []int
	// placed is set once the block has a position in the function layout.
	placed bool
}

// Terminator returns the block's final instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Phis returns the phis leading the block.
func (b *Block) Phis() []*Instr {
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Op == OpPhi {
		n++
	}
	return b.Instrs[:n]
}

// Function is a function definition, or a declaration if it has no blocks.
type Function struct {
	Name   string
	Params []*Param
	// Blocks is the block arena, indexed by Block.ID.
	Blocks []*Block
	// Layout is the order in which blocks are printed and laid out.
	Layout []int

	numInstrs  int
	valueNames map[string]int
	blockNames map[string]int
}

// NewFunction returns a function with no blocks. Parameter names are
// uniqued so every %name in the function is distinct.
func NewFunction(name string, params []string) *Function {
	f := &Function{
		Name:       name,
		valueNames: map[string]int{},
		blockNames: map[string]int{},
	}
	for i, p := range params {
		f.Params = append(f.Params, &Param{Index: i, Name: f.uniqueValueName(p)})
	}
	return f
}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// Arity is the number of parameters.
func (f *Function) Arity() int { return len(f.Params) }

// ParamNames returns the parameter names.
func (f *Function) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// NewBlock adds a block to the arena without placing it in the layout.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{ID: len(f.Blocks), Name: uniqueName(f.blockNames, name)}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Place appends b to the layout. Placing a block twice has no effect.
func (f *Function) Place(b *Block) {
	if b.placed {
		return
	}
	b.placed = true
	f.Layout = append(f.Layout, b.ID)
}

// Block returns the block with the given ID.
func (f *Function) Block(id int) *Block { return f.Blocks[id] }

// Instrs calls fn for every instruction in layout order.
func (f *Function) Instrs(fn func(*Instr)) {
	for _, id := range f.Layout {
		for _, in := range f.Blocks[id].Instrs {
			fn(in)
		}
	}
}

// NumInstrs is one more than the largest instruction ID.
func (f *Function) NumInstrs() int { return f.numInstrs }

func (f *Function) uniqueValueName(name string) string {
	return uniqueName(f.valueNames, name)
}

// uniqueName returns name the first time it is seen in used and name
// followed by a counter afterwards.
func uniqueName(used map[string]int, name string) string {
	if name == "" {
		name = "tmp"
	}
	n, ok := used[name]
	if !ok {
		used[name] = 1
		return name
	}
	for {
		cand := name + strconv.Itoa(n)
		n++
		if _, taken := used[cand]; !taken {
			used[name] = n
			used[cand] = 1
			return cand
		}
	}
}

// Module is an ordered collection of functions keyed by name.
type Module struct {
	funcs map[string]*Function
	order []string
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{funcs: map[string]*Function{}}
}

// Define installs f, replacing any function with the same name. A
// replaced function keeps its position.
func (m *Module) Define(f *Function) {
	if _, ok := m.funcs[f.Name]; !ok {
		m.order = append(m.order, f.Name)
	}
	m.funcs[f.Name] = f
}

// Remove deletes the named function if present.
func (m *Module) Remove(name string) {
	if _, ok := m.funcs[name]; !ok {
		return
	}
	delete(m.funcs, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the named function or nil.
func (m *Module) Lookup(name string) *Function { return m.funcs[name] }

// Functions returns the functions in definition order.
func (m *Module) Functions() []*Function {
	fns := make([]*Function, len(m.order))
	for i, n := range m.order {
		fns[i] = m.funcs[n]
	}
	return fns
}

// Len is the number of functions.
func (m *Module) Len() int { return len(m.order) }

// Clone returns a snapshot of m. Installed functions are never mutated, so
// they are shared rather than copied; later Define and Remove calls on
// either module do not affect the other.
func (m *Module) Clone() *Module {
	c := &Module{
		funcs: make(map[string]*Function, len(m.funcs)),
		order: append([]string(nil), m.order...),
	}
	for k, v := range m.funcs {
		c.funcs[k] = v
	}
	return c
}
