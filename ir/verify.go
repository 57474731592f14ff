package ir

import (
	"fmt"
)

// VerifyError describes a malformed function.
type VerifyError struct {
	Func  string
	Block string
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("invalid function @%s: %s", e.Func, e.Msg)
	}
	return fmt.Sprintf("invalid function @%s, block %%%s: %s", e.Func, e.Block, e.Msg)
}

// Verify checks the structural rules of f:
//
//   - every block in the arena is laid out exactly once
//   - every block ends in exactly one terminator
//   - phis lead their block
//   - a phi has one entry per predecessor, in predecessor order
//   - branch targets and predecessor lists agree
//   - operands are parameters or instructions of f
//
// Declarations are always valid.
func Verify(f *Function) error {
	if f.IsDeclaration() {
		return nil
	}
	errorf := func(b *Block, format string, args ...any) error {
		e := &VerifyError{Func: f.Name, Msg: fmt.Sprintf(format, args...)}
		if b != nil {
			e.Block = b.Name
		}
		return e
	}

	if len(f.Layout) != len(f.Blocks) {
		return errorf(nil, "%d blocks but %d laid out", len(f.Blocks), len(f.Layout))
	}
	seen := make([]bool, len(f.Blocks))
	for _, id := range f.Layout {
		if id < 0 || id >= len(f.Blocks) || seen[id] {
			return errorf(nil, "bad layout entry %d", id)
		}
		seen[id] = true
	}

	defined := map[*Instr]bool{}
	f.Instrs(func(in *Instr) { defined[in] = true })
	params := map[*Param]bool{}
	for _, p := range f.Params {
		params[p] = true
	}
	checkOperand := func(b *Block, v Value) error {
		switch v := v.(type) {
		case *Const:
			return nil
		case *Param:
			if !params[v] {
				return errorf(b, "parameter %s belongs to another function", v.Operand())
			}
		case *Instr:
			if !defined[v] {
				return errorf(b, "operand %s is not defined in this function", v.Operand())
			}
			if v.Op.IsTerminator() {
				return errorf(b, "terminator used as a value")
			}
		default:
			return errorf(b, "unknown operand %T", v)
		}
		return nil
	}

	// Successor edges, counted from terminators, must match the recorded
	// predecessors.
	edges := make([][]int, len(f.Blocks))
	for _, id := range f.Layout {
		b := f.Blocks[id]
		if len(b.Instrs) == 0 {
			return errorf(b, "empty block")
		}
		inPhis := true
		for i, in := range b.Instrs {
			last := i == len(b.Instrs)-1
			if in.Op.IsTerminator() != last {
				if last {
					return errorf(b, "block does not end in a terminator")
				}
				return errorf(b, "terminator %s in the middle of the block", in.Op)
			}
			if in.Op == OpPhi {
				if !inPhis {
					return errorf(b, "phi %s after a non-phi instruction", in.Operand())
				}
			} else {
				inPhis = false
			}
			for _, a := range in.Args {
				if err := checkOperand(b, a); err != nil {
					return err
				}
			}
			for _, t := range in.Targets {
				if t < 0 || t >= len(f.Blocks) {
					return errorf(b, "branch to unknown block %d", t)
				}
				edges[t] = append(edges[t], b.ID)
			}
		}
	}

	for _, id := range f.Layout {
		b := f.Blocks[id]
		if !sameInts(edges[id], b.Preds) {
			return errorf(b, "predecessor list does not match branches")
		}
		for _, phi := range b.Phis() {
			if len(phi.Incoming) != len(b.Preds) {
				return errorf(b, "phi %s has %d entries for %d predecessors", phi.Operand(), len(phi.Incoming), len(b.Preds))
			}
			for i, inc := range phi.Incoming {
				if inc.Block != b.Preds[i] {
					return errorf(b, "phi %s entry %d comes from %%%s, not predecessor %%%s",
						phi.Operand(), i, f.Blocks[inc.Block].Name, f.Blocks[b.Preds[i]].Name)
				}
				if err := checkOperand(b, inc.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// sameInts compares as multisets; Preds order is checked against phis
// separately.
func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	count := map[int]int{}
	for _, x := range a {
		count[x]++
	}
	for _, x := range b {
		count[x]--
		if count[x] < 0 {
			return false
		}
	}
	return true
}
