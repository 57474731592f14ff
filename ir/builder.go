package ir

// Builder appends instructions to the end of a current block and keeps
// predecessor lists in step with the branches it emits.
type Builder struct {
	fn  *Function
	cur *Block
}

// NewBuilder returns a builder for f with no insertion point.
func NewBuilder(f *Function) *Builder {
	return &Builder{fn: f}
}

// Func returns the function being built.
func (b *Builder) Func() *Function { return b.fn }

// SetInsertPoint places blk in the layout if needed and makes it the
// current block.
func (b *Builder) SetInsertPoint(blk *Block) {
	b.fn.Place(blk)
	b.cur = blk
}

// Block returns the current block.
func (b *Builder) Block() *Block { return b.cur }

func (b *Builder) emit(in *Instr) *Instr {
	in.ID = b.fn.numInstrs
	b.fn.numInstrs++
	in.Block = b.cur.ID
	b.cur.Instrs = append(b.cur.Instrs, in)
	return in
}

func (b *Builder) named(op Op, name string) *Instr {
	return &Instr{Op: op, Name: b.fn.uniqueValueName(name)}
}

// Binary emits a two-operand instruction.
func (b *Builder) Binary(op Op, name string, x, y Value) *Instr {
	in := b.named(op, name)
	in.Args = []Value{x, y}
	return b.emit(in)
}

// Call emits a call to the named function.
func (b *Builder) Call(name, callee string, args []Value) *Instr {
	in := b.named(OpCall, name)
	in.Callee = callee
	in.Args = append([]Value{}, args...)
	return b.emit(in)
}

// Phi inserts an empty phi after the phis already leading the current
// block. Entries are added with AddIncoming.
func (b *Builder) Phi(name string) *Instr {
	in := b.named(OpPhi, name)
	in.ID = b.fn.numInstrs
	b.fn.numInstrs++
	in.Block = b.cur.ID
	n := len(b.cur.Phis())
	b.cur.Instrs = append(b.cur.Instrs, nil)
	copy(b.cur.Instrs[n+1:], b.cur.Instrs[n:])
	b.cur.Instrs[n] = in
	return in
}

// AddIncoming appends an entry to phi.
func (phi *Instr) AddIncoming(v Value, from *Block) {
	phi.Incoming = append(phi.Incoming, Incoming{Value: v, Block: from.ID})
}

// Br emits a conditional branch and records both edges.
func (b *Builder) Br(cond Value, then, els *Block) {
	b.emit(&Instr{Op: OpBr, Args: []Value{cond}, Targets: []int{then.ID, els.ID}})
	then.Preds = append(then.Preds, b.cur.ID)
	els.Preds = append(els.Preds, b.cur.ID)
}

// Jmp emits an unconditional branch and records the edge.
func (b *Builder) Jmp(dest *Block) {
	b.emit(&Instr{Op: OpJmp, Targets: []int{dest.ID}})
	dest.Preds = append(dest.Preds, b.cur.ID)
}

// Ret emits a return.
func (b *Builder) Ret(v Value) {
	b.emit(&Instr{Op: OpRet, Args: []Value{v}})
}
