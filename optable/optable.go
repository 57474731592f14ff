// Package optable holds the operator table: which symbols are operators,
// their arity, and their precedence.
//
// The table is mutable state shared across a whole session. It is passed
// explicitly to the parser and code generator; there is no global table.
package optable

import (
	"fmt"
	"sort"
)

// Arity of an operator.
type Arity int

const (
	Unary Arity = iota + 1
	Binary
)

func (a Arity) String() string {
	switch a {
	case Unary:
		return "unary"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("Arity(%d)", int(a))
	}
}

// Precedence limits for user-declared binary operators.
const (
	MinPrecedence     = 1
	MaxPrecedence     = 100
	DefaultPrecedence = 30
)

// Entry describes one operator. Higher precedence binds tighter. All binary
// operators are left-associative.
type Entry struct {
	Symbol     string
	Arity      Arity
	Precedence int
	Builtin    bool
}

// Built-in operators. '=' is assignment.
var builtins = []Entry{
	{Symbol: "=", Arity: Binary, Precedence: 2, Builtin: true},
	{Symbol: "<", Arity: Binary, Precedence: 10, Builtin: true},
	{Symbol: "+", Arity: Binary, Precedence: 20, Builtin: true},
	{Symbol: "-", Arity: Binary, Precedence: 20, Builtin: true},
	{Symbol: "*", Arity: Binary, Precedence: 40, Builtin: true},
	{Symbol: "/", Arity: Binary, Precedence: 40, Builtin: true},
}

// IsBuiltin reports whether sym is one of the operators the code generator
// lowers to a primitive instruction.
func IsBuiltin(sym string) bool {
	for _, e := range builtins {
		if e.Symbol == sym {
			return true
		}
	}
	return false
}

// Reserved reports whether c is punctuation that can never be part of an
// operator symbol.
func Reserved(c string) bool {
	switch c {
	case "(", ")", ",", ";":
		return true
	}
	return false
}

// ArityError is returned when a declaration would change a built-in
// operator's arity.
type ArityError struct {
	Symbol string
	Have   Arity
	Want   Arity
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("cannot redeclare built-in %s operator %q as %s", e.Have, e.Symbol, e.Want)
}

// Table maps operator symbols to their entries.
type Table struct {
	entries map[string]Entry
	maxLen  int
}

// New returns a table seeded with the built-in operators.
func New() *Table {
	t := &Table{entries: make(map[string]Entry)}
	for _, e := range builtins {
		t.put(e)
	}
	return t
}

func (t *Table) put(e Entry) {
	t.entries[e.Symbol] = e
	if len(e.Symbol) > t.maxLen {
		t.maxLen = len(e.Symbol)
	}
}

// Declare inserts or replaces the entry for sym. The last declaration
// wins. Built-ins keep their arity but may be given a new precedence.
func (t *Table) Declare(sym string, arity Arity, prec int) error {
	old, ok := t.entries[sym]
	if ok && old.Builtin && old.Arity != arity {
		return &ArityError{Symbol: sym, Have: old.Arity, Want: arity}
	}
	t.put(Entry{Symbol: sym, Arity: arity, Precedence: prec, Builtin: ok && old.Builtin})
	return nil
}

// Lookup returns the entry for sym.
func (t *Table) Lookup(sym string) (Entry, bool) {
	e, ok := t.entries[sym]
	return e, ok
}

// PrecedenceOf returns the precedence of the binary operator sym, or -1 if
// sym is not a binary operator.
func (t *Table) PrecedenceOf(sym string) int {
	e, ok := t.entries[sym]
	if !ok || e.Arity != Binary {
		return -1
	}
	return e.Precedence
}

// IsBinaryOperator reports whether sym is declared as a binary operator.
func (t *Table) IsBinaryOperator(sym string) bool {
	e, ok := t.entries[sym]
	return ok && e.Arity == Binary
}

// IsUnaryOperator reports whether sym is declared as a unary operator.
func (t *Table) IsUnaryOperator(sym string) bool {
	e, ok := t.entries[sym]
	return ok && e.Arity == Unary
}

// MaxLen is the length of the longest declared symbol.
func (t *Table) MaxLen() int { return t.maxLen }

// Entries returns all entries sorted by symbol.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Snapshot is a saved copy of a table's contents.
type Snapshot struct {
	entries map[string]Entry
	maxLen  int
}

// Snapshot copies the table so a failed unit can be undone with Restore.
func (t *Table) Snapshot() Snapshot {
	entries := make(map[string]Entry, len(t.entries))
	for k, v := range t.entries {
		entries[k] = v
	}
	return Snapshot{entries: entries, maxLen: t.maxLen}
}

// Restore replaces the table's contents with s.
func (t *Table) Restore(s Snapshot) {
	entries := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		entries[k] = v
	}
	t.entries = entries
	t.maxLen = s.maxLen
}

// Equal reports whether two tables hold the same entries.
func (t *Table) Equal(u *Table) bool {
	if len(t.entries) != len(u.entries) {
		return false
	}
	for k, v := range t.entries {
		if w, ok := u.entries[k]; !ok || w != v {
			return false
		}
	}
	return true
}
