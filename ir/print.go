package ir

import (
	"strings"
)

// String prints the function in the textual IR form.
func (f *Function) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

// String prints every function in definition order, separated by blank
// lines.
func (m *Module) String() string {
	var sb strings.Builder
	for i, f := range m.Functions() {
		if i > 0 {
			sb.WriteString("\n")
		}
		f.write(&sb)
	}
	return sb.String()
}

func (f *Function) write(sb *strings.Builder) {
	if f.IsDeclaration() {
		sb.WriteString("declare " + f.signature() + "\n")
		return
	}
	sb.WriteString("define " + f.signature() + " {\n")
	for _, id := range f.Layout {
		blk := f.Blocks[id]
		sb.WriteString(blk.Name + ":")
		if len(blk.Preds) > 0 {
			sb.WriteString(" ; preds = ")
			for i, p := range blk.Preds {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString("%" + f.Blocks[p].Name)
			}
		}
		sb.WriteString("\n")
		for _, in := range blk.Instrs {
			sb.WriteString("  " + f.FormatInstr(in) + "\n")
		}
	}
	sb.WriteString("}\n")
}

func (f *Function) signature() string {
	var sb strings.Builder
	sb.WriteString("@" + f.Name + "(")
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Operand())
	}
	sb.WriteString(")")
	return sb.String()
}

// FormatInstr prints one instruction without indentation.
func (f *Function) FormatInstr(in *Instr) string {
	var sb strings.Builder
	if !in.Op.IsTerminator() {
		sb.WriteString(in.Operand() + " = ")
	}
	sb.WriteString(in.Op.String())
	switch in.Op {
	case OpCall:
		sb.WriteString(" @" + in.Callee + "(")
		writeOperands(&sb, in.Args)
		sb.WriteString(")")
	case OpPhi:
		for i, inc := range in.Incoming {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" [" + inc.Value.Operand() + ", %" + f.Blocks[inc.Block].Name + "]")
		}
	case OpBr:
		sb.WriteString(" " + in.Args[0].Operand())
		for _, t := range in.Targets {
			sb.WriteString(", %" + f.Blocks[t].Name)
		}
	case OpJmp:
		sb.WriteString(" %" + f.Blocks[in.Targets[0]].Name)
	default:
		sb.WriteString(" ")
		writeOperands(&sb, in.Args)
	}
	return sb.String()
}

func writeOperands(sb *strings.Builder, args []Value) {
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Operand())
	}
}
