package sexy

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/compiler"
)

// Result is what a test case's program produced.
type Result struct {
	AST    string   // syntax tree of the last unit that parsed
	IR     []string // printed function of every unit that compiled
	Values []string // one entry per executed expression
	Output string   // bytes written by host functions
	Errors []error
}

// Run evaluates the input of tc in a fresh session.
func Run(ctx context.Context, tc TestCase) Result {
	var out bytes.Buffer
	s := compiler.New(&out)

	var r Result
	for _, o := range s.Eval(ctx, tc.Input) {
		if o.AST != "" {
			r.AST = o.AST
		}
		if o.IR != "" {
			r.IR = append(r.IR, o.IR)
		}
		if o.Err != nil {
			r.Errors = append(r.Errors, o.Err)
			continue
		}
		if o.Kind == compiler.Expression {
			r.Values = append(r.Values, ast.FormatNumber(o.Value))
		}
	}
	r.Output = out.String()
	return r
}

// Actual returns the text an assertion of type typ should hold for r. Only
// ir, execute and output assertions have exact text.
func (r Result) Actual(typ AssertionType) (string, bool) {
	switch typ {
	case AssertionTypeIR:
		return strings.TrimRight(strings.Join(r.IR, "\n"), "\n"), true
	case AssertionTypeExecute:
		return strings.Join(r.Values, "\n"), true
	case AssertionTypeOutput:
		return strings.TrimRight(r.Output, "\n"), true
	}
	return "", false
}

// Check compares r against every assertion of tc and returns one error per
// failed assertion. Errors from the program fail the test unless a
// compile-error assertion expects them.
func Check(tc TestCase, r Result) []error {
	var failures []error
	expectsError := false
	for _, a := range tc.Assertions {
		if err := checkAssertion(a, r); err != nil {
			failures = append(failures, fmt.Errorf("line %d: %s assertion: %w", a.Line, a.Type, err))
		}
		if a.Type == AssertionTypeCompileError {
			expectsError = true
		}
	}
	if !expectsError {
		for _, err := range r.Errors {
			failures = append(failures, fmt.Errorf("unexpected error: %w", err))
		}
	}
	return failures
}

func checkAssertion(a Assertion, r Result) error {
	switch a.Type {
	case AssertionTypeAST:
		if r.AST == "" {
			return fmt.Errorf("no unit parsed")
		}
		actual, err := Parse(r.AST)
		if err != nil {
			return fmt.Errorf("cannot read syntax tree %s: %w", r.AST, err)
		}
		return Match(a.ParsedSexy, actual)

	case AssertionTypeCompileError:
		for _, err := range r.Errors {
			if strings.Contains(err.Error(), a.Content) {
				return nil
			}
		}
		if len(r.Errors) == 0 {
			return fmt.Errorf("expected an error containing %q, got none", a.Content)
		}
		return fmt.Errorf("expected an error containing %q, got %v", a.Content, r.Errors)

	default:
		actual, _ := r.Actual(a.Type)
		if actual != a.Content {
			return fmt.Errorf("expected:\n%s\ngot:\n%s", a.Content, actual)
		}
		return nil
	}
}
