package sexy

import (
	"context"
	"testing"

	"github.com/nalgeon/be"
)

func runMarkdown(t *testing.T, markdown string) (TestCase, Result) {
	t.Helper()
	testCases, err := ExtractTestCases(markdown)
	be.Err(t, err, nil)
	be.Equal(t, len(testCases), 1)
	return testCases[0], Run(context.Background(), testCases[0])
}

func TestRunCollectsResults(t *testing.T) {
	tc, r := runMarkdown(t, "## Test: t\n"+fence+"kal\nextern putchard(c);\ndef f(x) x + 1;\nputchard(f(64));\nf(1);\n"+fence+"\n"+fence+"execute\n0\n2\n"+fence+"\n")
	be.Equal(t, len(r.IR), 4)
	be.Equal(t, r.Values, []string{"0", "2"})
	be.Equal(t, r.Output, "A")
	be.Equal(t, r.AST, `(def (proto "__anon_expr" []) (call "f" [1]))`)
	be.Equal(t, len(Check(tc, r)), 0)
}

func TestCheckReportsMismatches(t *testing.T) {
	tc, r := runMarkdown(t, "## Test: t\n"+fence+"kal\n1 + 1;\n"+fence+"\n"+fence+"execute\n3\n"+fence+"\n"+fence+"ast\n(def ... (binary \"-\" ...))\n"+fence+"\n")
	failures := Check(tc, r)
	be.Equal(t, len(failures), 2)
	be.Err(t, failures[0], "line 6: execute assertion: expected:\n3\ngot:\n2")
	be.Err(t, failures[1], `expected "-", got "+"`)
}

func TestCheckUnexpectedErrors(t *testing.T) {
	tc, r := runMarkdown(t, "## Test: t\n"+fence+"kal\nfoo();\n1;\n"+fence+"\n"+fence+"execute\n1\n"+fence+"\n")
	failures := Check(tc, r)
	be.Equal(t, len(failures), 1)
	be.Err(t, failures[0], `unexpected error: unknown function: unknown function "foo"`)
}

func TestCheckCompileError(t *testing.T) {
	tc, r := runMarkdown(t, "## Test: t\n"+fence+"kal\nfoo();\n"+fence+"\n"+fence+"compile-error\nunknown function\n"+fence+"\n")
	be.Equal(t, len(Check(tc, r)), 0)

	tc, r = runMarkdown(t, "## Test: t\n"+fence+"kal\n1;\n"+fence+"\n"+fence+"compile-error\nunknown function\n"+fence+"\n")
	failures := Check(tc, r)
	be.Equal(t, len(failures), 1)
	be.Err(t, failures[0], "got none")
}

func TestResultActual(t *testing.T) {
	r := Result{
		IR:     []string{"declare @f(%x)\n", "define @g() {\nentry:\n  ret 1\n}\n"},
		Values: []string{"1", "2.5"},
		Output: "hi\n",
	}
	ir, ok := r.Actual(AssertionTypeIR)
	be.True(t, ok)
	be.Equal(t, ir, "declare @f(%x)\n\ndefine @g() {\nentry:\n  ret 1\n}")
	values, _ := r.Actual(AssertionTypeExecute)
	be.Equal(t, values, "1\n2.5")
	output, _ := r.Actual(AssertionTypeOutput)
	be.Equal(t, output, "hi")
	_, ok = r.Actual(AssertionTypeAST)
	be.True(t, !ok)
}
