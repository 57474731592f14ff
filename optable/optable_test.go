package optable

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"
)

func TestBuiltins(t *testing.T) {
	tab := New()
	tests := []struct {
		sym  string
		prec int
	}{
		{"=", 2},
		{"<", 10},
		{"+", 20},
		{"-", 20},
		{"*", 40},
		{"/", 40},
	}

	for _, tt := range tests {
		be.Equal(t, tab.PrecedenceOf(tt.sym), tt.prec)
		be.True(t, tab.IsBinaryOperator(tt.sym))
		be.True(t, !tab.IsUnaryOperator(tt.sym))
		be.True(t, IsBuiltin(tt.sym))
	}
	be.Equal(t, tab.PrecedenceOf(":"), -1)
}

func TestDeclareLastWins(t *testing.T) {
	tab := New()
	be.Err(t, tab.Declare(":", Binary, 5), nil)
	be.Equal(t, tab.PrecedenceOf(":"), 5)

	be.Err(t, tab.Declare(":", Binary, 50), nil)
	be.Equal(t, tab.PrecedenceOf(":"), 50)

	be.Err(t, tab.Declare(":", Unary, 0), nil)
	be.True(t, tab.IsUnaryOperator(":"))
	be.True(t, !tab.IsBinaryOperator(":"))
	be.Equal(t, tab.PrecedenceOf(":"), -1)
}

func TestBuiltinArityCannotChange(t *testing.T) {
	tab := New()
	err := tab.Declare("-", Unary, 0)
	var arityErr *ArityError
	be.True(t, errors.As(err, &arityErr))
	be.Equal(t, arityErr.Symbol, "-")
	be.True(t, tab.IsBinaryOperator("-"))
}

// Redeclaring a built-in with the same arity but a new precedence is
// allowed; the last declaration wins.
func TestBuiltinPrecedenceCanChange(t *testing.T) {
	tab := New()
	be.Err(t, tab.Declare("+", Binary, 60), nil)
	be.Equal(t, tab.PrecedenceOf("+"), 60)
	e, _ := tab.Lookup("+")
	be.True(t, e.Builtin)
}

func TestSnapshotRestore(t *testing.T) {
	tab := New()
	before := tab.Snapshot()
	be.Err(t, tab.Declare("|>", Binary, 7), nil)
	be.Equal(t, tab.MaxLen(), 2)

	tab.Restore(before)
	be.True(t, !tab.IsBinaryOperator("|>"))
	be.Equal(t, tab.MaxLen(), 1)
	be.True(t, tab.Equal(New()))
}

func TestReserved(t *testing.T) {
	for _, c := range []string{"(", ")", ",", ";"} {
		be.True(t, Reserved(c))
	}
	be.True(t, !Reserved(":"))
}
