package ir

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"gopkg.in/yaml.v3"
)

// buildMax builds
//
//	def max(a b) if a < b then b else a
func buildMax() *Function {
	f := NewFunction("max", []string{"a", "b"})
	b := NewBuilder(f)
	entry := f.NewBlock("entry")
	b.SetInsertPoint(entry)
	a, bb := f.Params[0], f.Params[1]
	cond := b.Binary(OpLt, "cmptmp", a, bb)

	then := f.NewBlock("then")
	els := f.NewBlock("else")
	merge := f.NewBlock("ifcont")
	b.Br(cond, then, els)

	b.SetInsertPoint(then)
	b.Jmp(merge)
	b.SetInsertPoint(els)
	b.Jmp(merge)

	b.SetInsertPoint(merge)
	phi := b.Phi("iftmp")
	phi.AddIncoming(bb, then)
	phi.AddIncoming(a, els)
	b.Ret(phi)
	return f
}

func TestPrintFunction(t *testing.T) {
	want := `define @max(%a, %b) {
entry:
  %cmptmp = lt %a, %b
  br %cmptmp, %then, %else
then: ; preds = %entry
  jmp %ifcont
else: ; preds = %entry
  jmp %ifcont
ifcont: ; preds = %then, %else
  %iftmp = phi [%b, %then], [%a, %else]
  ret %iftmp
}
`
	f := buildMax()
	if diff := cmp.Diff(want, f.String()); diff != "" {
		t.Errorf("IR (-want +got):\n%s", diff)
	}
	be.Err(t, Verify(f), nil)
}

func TestPrintDeclaration(t *testing.T) {
	f := NewFunction("atan2", []string{"y", "x"})
	be.True(t, f.IsDeclaration())
	be.Equal(t, f.String(), "declare @atan2(%y, %x)\n")
	be.Err(t, Verify(f), nil)
}

func TestConstantSpelling(t *testing.T) {
	be.Equal(t, (&Const{V: 1}).Operand(), "1")
	be.Equal(t, (&Const{V: 0.5}).Operand(), "0.5")
	be.Equal(t, (&Const{V: -3.25}).Operand(), "-3.25")
	be.Equal(t, (&Const{V: 1e21}).Operand(), "1e+21")
}

func TestNamesAreUniqued(t *testing.T) {
	f := NewFunction("f", []string{"x", "x"})
	be.Equal(t, f.ParamNames(), []string{"x", "x1"})

	b := NewBuilder(f)
	b.SetInsertPoint(f.NewBlock("entry"))
	one := &Const{V: 1}
	i1 := b.Binary(OpAdd, "addtmp", one, one)
	i2 := b.Binary(OpAdd, "addtmp", i1, one)
	i3 := b.Binary(OpAdd, "addtmp", i2, one)
	i4 := b.Binary(OpAdd, "x", i3, one)
	be.Equal(t, i1.Name, "addtmp")
	be.Equal(t, i2.Name, "addtmp1")
	be.Equal(t, i3.Name, "addtmp2")
	be.Equal(t, i4.Name, "x2")

	// Blocks have their own namespace.
	be.Equal(t, f.NewBlock("addtmp").Name, "addtmp")
	be.Equal(t, f.NewBlock("entry").Name, "entry1")
}

func TestPhisStayInFront(t *testing.T) {
	f := NewFunction("f", nil)
	b := NewBuilder(f)
	blk := f.NewBlock("entry")
	b.SetInsertPoint(blk)
	p1 := b.Phi("a")
	sum := b.Binary(OpAdd, "s", p1, p1)
	p2 := b.Phi("b")

	be.Equal(t, len(blk.Phis()), 2)
	be.True(t, blk.Instrs[0] == p1)
	be.True(t, blk.Instrs[1] == p2)
	be.True(t, blk.Instrs[2] == sum)
}

func TestDetachedBlocksArePlacedInOrder(t *testing.T) {
	f := NewFunction("f", nil)
	a := f.NewBlock("a")
	bb := f.NewBlock("b")
	c := f.NewBlock("c")
	f.Place(c)
	f.Place(a)
	f.Place(c)
	f.Place(bb)
	be.Equal(t, f.Layout, []int{c.ID, a.ID, bb.ID})
}

func TestVerifyMissingTerminator(t *testing.T) {
	f := NewFunction("f", nil)
	b := NewBuilder(f)
	b.SetInsertPoint(f.NewBlock("entry"))
	b.Binary(OpAdd, "x", &Const{V: 1}, &Const{V: 2})
	be.Err(t, Verify(f), "does not end in a terminator")
}

func TestVerifyUnplacedBlock(t *testing.T) {
	f := NewFunction("f", nil)
	b := NewBuilder(f)
	b.SetInsertPoint(f.NewBlock("entry"))
	b.Ret(&Const{V: 0})
	f.NewBlock("orphan")
	be.Err(t, Verify(f), "laid out")
}

func TestVerifyPhiOrder(t *testing.T) {
	f := buildMax()
	merge := f.Blocks[3]
	phi := merge.Phis()[0]
	phi.Incoming[0], phi.Incoming[1] = phi.Incoming[1], phi.Incoming[0]
	var verr *VerifyError
	be.True(t, errors.As(Verify(f), &verr))
	be.Equal(t, verr.Block, "ifcont")
}

func TestVerifyPhiArity(t *testing.T) {
	f := buildMax()
	phi := f.Blocks[3].Phis()[0]
	phi.Incoming = phi.Incoming[:1]
	be.Err(t, Verify(f), "1 entries for 2 predecessors")
}

func TestVerifyForeignOperand(t *testing.T) {
	other := NewFunction("g", []string{"y"})
	f := NewFunction("f", nil)
	b := NewBuilder(f)
	b.SetInsertPoint(f.NewBlock("entry"))
	b.Ret(other.Params[0])
	be.Err(t, Verify(f), "another function")
}

func TestModule(t *testing.T) {
	m := NewModule()
	m.Define(NewFunction("sin", []string{"x"}))
	m.Define(buildMax())
	m.Define(NewFunction("cos", []string{"x"}))
	be.Equal(t, m.Len(), 3)

	// Replacing keeps the position.
	m.Define(NewFunction("max", []string{"p", "q"}))
	var names []string
	for _, f := range m.Functions() {
		names = append(names, f.Name)
	}
	be.Equal(t, names, []string{"sin", "max", "cos"})
	be.Equal(t, m.Lookup("max").ParamNames(), []string{"p", "q"})

	m.Remove("sin")
	m.Remove("nothing")
	be.True(t, m.Lookup("sin") == nil)
	be.Equal(t, m.String(), "declare @max(%p, %q)\n\ndeclare @cos(%x)\n")
}

func TestModuleClone(t *testing.T) {
	m := NewModule()
	orig := buildMax()
	m.Define(orig)
	snap := m.Clone()

	m.Define(NewFunction("max", []string{"a", "b"}))
	m.Define(NewFunction("extra", nil))
	snap.Remove("nothing")

	be.True(t, snap.Lookup("max") == orig)
	be.True(t, snap.Lookup("extra") == nil)
	be.Equal(t, snap.Len(), 1)
	be.True(t, m.Lookup("max") != orig)
}

func TestWriteYAML(t *testing.T) {
	m := NewModule()
	m.Define(NewFunction("sin", []string{"x"}))
	m.Define(buildMax())

	var buf bytes.Buffer
	be.Err(t, WriteYAML(&buf, m), nil)

	var got yamlModule
	be.Err(t, yaml.Unmarshal(buf.Bytes(), &got), nil)
	want := yamlModule{Functions: []yamlFunction{
		{Name: "sin", Params: []string{"x"}, Extern: true},
		{Name: "max", Params: []string{"a", "b"}, Blocks: []yamlBlock{
			{Label: "entry", Instrs: []string{"%cmptmp = lt %a, %b", "br %cmptmp, %then, %else"}},
			{Label: "then", Preds: []string{"entry"}, Instrs: []string{"jmp %ifcont"}},
			{Label: "else", Preds: []string{"entry"}, Instrs: []string{"jmp %ifcont"}},
			{Label: "ifcont", Preds: []string{"then", "else"}, Instrs: []string{"%iftmp = phi [%b, %then], [%a, %else]", "ret %iftmp"}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("YAML (-want +got):\n%s", diff)
	}
}
