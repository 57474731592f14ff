// Package ast defines the syntax tree produced by the parser.
//
// The node set is closed: Expr and TopLevel are sealed interfaces and every
// consumer switches over the concrete types below.
package ast

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// TopLevel is a unit the parser returns: a *Function or an extern
// *Prototype.
type TopLevel interface {
	topLevelNode()
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

// Variable is a reference to a named value.
type Variable struct {
	Name string
}

// Unary applies a user-defined prefix operator.
type Unary struct {
	Op      string
	Operand Expr
}

// Binary applies a built-in or user-defined infix operator. Op "=" is
// assignment.
type Binary struct {
	Op  string
	LHS Expr
	RHS Expr
}

// Call invokes a function by name.
type Call struct {
	Callee string
	Args   []Expr
}

// If is a conditional expression. Both branches are required.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// For is a counted loop. It evaluates to 0. A nil Step means 1.
type For struct {
	Var   string
	Start Expr
	Cond  Expr
	Step  Expr
	Body  Expr
}

// Binding is one name introduced by a var expression.
type Binding struct {
	Name string
	Init Expr
}

// VarBinding introduces mutable locals scoped to Body.
type VarBinding struct {
	Vars []Binding
	Body Expr
}

func (*Number) exprNode()     {}
func (*Variable) exprNode()   {}
func (*Unary) exprNode()      {}
func (*Binary) exprNode()     {}
func (*Call) exprNode()       {}
func (*If) exprNode()         {}
func (*For) exprNode()        {}
func (*VarBinding) exprNode() {}

// ProtoKind distinguishes plain functions from operator definitions.
type ProtoKind int

const (
	PlainProto ProtoKind = iota
	UnaryProto
	BinaryProto
)

// Prototype is a function signature. For operators, Name is the mangled
// function name ("binary:" or "unary!") and Op is the bare symbol.
type Prototype struct {
	Name       string
	Params     []string
	Kind       ProtoKind
	Op         string
	Precedence int
}

// IsOperator reports whether p defines a unary or binary operator.
func (p *Prototype) IsOperator() bool { return p.Kind != PlainProto }

// Function is a definition: a prototype and its body.
type Function struct {
	Proto *Prototype
	Body  Expr
}

func (*Prototype) topLevelNode() {}
func (*Function) topLevelNode()  {}

// AnonName is the name given to the implicit function wrapping a top-level
// expression.
const AnonName = "__anon_expr"

// IsAnon reports whether f wraps a bare top-level expression.
func (f *Function) IsAnon() bool { return f.Proto.Name == AnonName }

// UnaryName returns the function name a unary operator is lowered to.
func UnaryName(op string) string { return "unary" + op }

// BinaryName returns the function name a binary operator is lowered to.
func BinaryName(op string) string { return "binary" + op }
