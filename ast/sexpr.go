package ast

import (
	"strconv"
	"strings"
)

// ToSExpr renders a node as an s-expression. The output is what golden
// tests compare against.
func ToSExpr(node any) string {
	var sb strings.Builder
	writeSExpr(&sb, node)
	return sb.String()
}

func writeSExpr(sb *strings.Builder, node any) {
	switch n := node.(type) {
	case *Number:
		sb.WriteString(FormatNumber(n.Value))
	case *Variable:
		sb.WriteString("(var " + strconv.Quote(n.Name) + ")")
	case *Unary:
		sb.WriteString("(unary " + strconv.Quote(n.Op) + " ")
		writeSExpr(sb, n.Operand)
		sb.WriteString(")")
	case *Binary:
		sb.WriteString("(binary " + strconv.Quote(n.Op) + " ")
		writeSExpr(sb, n.LHS)
		sb.WriteString(" ")
		writeSExpr(sb, n.RHS)
		sb.WriteString(")")
	case *Call:
		sb.WriteString("(call " + strconv.Quote(n.Callee) + " [")
		for i, arg := range n.Args {
			if i > 0 {
				sb.WriteString(" ")
			}
			writeSExpr(sb, arg)
		}
		sb.WriteString("])")
	case *If:
		sb.WriteString("(if ")
		writeSExpr(sb, n.Cond)
		sb.WriteString(" ")
		writeSExpr(sb, n.Then)
		sb.WriteString(" ")
		writeSExpr(sb, n.Else)
		sb.WriteString(")")
	case *For:
		sb.WriteString("(for " + strconv.Quote(n.Var) + " ")
		writeSExpr(sb, n.Start)
		sb.WriteString(" ")
		writeSExpr(sb, n.Cond)
		sb.WriteString(" ")
		if n.Step == nil {
			sb.WriteString("1")
		} else {
			writeSExpr(sb, n.Step)
		}
		sb.WriteString(" ")
		writeSExpr(sb, n.Body)
		sb.WriteString(")")
	case *VarBinding:
		sb.WriteString("(var-in [")
		for i, b := range n.Vars {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("(" + strconv.Quote(b.Name) + " ")
			writeSExpr(sb, b.Init)
			sb.WriteString(")")
		}
		sb.WriteString("] ")
		writeSExpr(sb, n.Body)
		sb.WriteString(")")
	case *Prototype:
		switch n.Kind {
		case UnaryProto:
			sb.WriteString("(unary-proto " + strconv.Quote(n.Op) + " ")
		case BinaryProto:
			sb.WriteString("(binary-proto " + strconv.Quote(n.Op) + " " + strconv.Itoa(n.Precedence) + " ")
		default:
			sb.WriteString("(proto " + strconv.Quote(n.Name) + " ")
		}
		sb.WriteString("[")
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(strconv.Quote(p))
		}
		sb.WriteString("])")
	case *Function:
		sb.WriteString("(def ")
		writeSExpr(sb, n.Proto)
		sb.WriteString(" ")
		writeSExpr(sb, n.Body)
		sb.WriteString(")")
	default:
		sb.WriteString("(unknown)")
	}
}

// FormatNumber formats a float the way the IR printer and the s-expression
// renderer both spell numbers.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
