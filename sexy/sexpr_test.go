package sexy

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"binary", "binary"},
		{"var-in", "var-in"},
		{"unary-proto", "unary-proto"},
		{"x_1", "x_1"},
	}

	for _, test := range tests {
		node, err := Parse(test.input)
		be.Err(t, err, nil)
		be.Equal(t, node.Type, NodeSymbol)
		be.Equal(t, node.Text, test.expected)
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"+"`, "+"},
		{`"|>"`, "|>"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"__anon_expr"`, "__anon_expr"},
		{`"héllo"`, "héllo"},
	}

	for _, test := range tests {
		node, err := Parse(test.input)
		be.Err(t, err, nil)
		be.Equal(t, node.Type, NodeString)
		be.Equal(t, node.Text, test.expected)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []string{"0", "42", "-3", "+7", "0.25", "1.5", "1e+21", "-2.5e-07"}

	for _, input := range tests {
		node, err := Parse(input)
		be.Err(t, err, nil)
		be.Equal(t, node.Type, NodeNumber)
		be.Equal(t, node.Text, input)
	}
}

func TestParseListsAndArrays(t *testing.T) {
	node, err := Parse(`(call "f" [1 (var "x")])`)
	be.Err(t, err, nil)
	be.Equal(t, node.Type, NodeList)
	be.Equal(t, len(node.Items), 3)
	be.Equal(t, node.Items[0].Text, "call")
	be.Equal(t, node.Items[1].Type, NodeString)
	be.Equal(t, node.Items[2].Type, NodeArray)
	be.Equal(t, len(node.Items[2].Items), 2)
	be.Equal(t, node.Items[2].Items[1].Type, NodeList)

	empty, err := Parse("[]")
	be.Err(t, err, nil)
	be.Equal(t, empty.Type, NodeArray)
	be.Equal(t, len(empty.Items), 0)
}

func TestRoundTripParsing(t *testing.T) {
	tests := []string{
		`(binary "+" 1 (binary "*" 2 3))`,
		`(def (proto "fib" ["x"]) (if (binary "<" (var "x") 3) 1 ...))`,
		`(for "i" 0 (binary "<" (var "i") 10) 1 (call "f" []))`,
		`(var-in [("a" 1) ("b" 0)] (var "a"))`,
		`(binary-proto ":" 1 ["x" "y"])`,
		`"with \"quotes\""`,
	}

	for _, input := range tests {
		node, err := Parse(input)
		be.Err(t, err, nil)
		be.Equal(t, node.String(), input)
	}
}

func TestParseComments(t *testing.T) {
	node, err := Parse(`
		; the call
		(call "f" ; callee
		  [1])`)
	be.Err(t, err, nil)
	be.Equal(t, node.String(), `(call "f" [1])`)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{`"unterminated`, "unterminated string"},
		{`"bad \n escape"`, "invalid escape sequence"},
		{"(a . b)", "unexpected character '.'"},
		{"{}", "unexpected character '{'"},
	}

	for _, test := range tests {
		_, err := Parse(test.input)
		be.Err(t, err, test.err)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{"(a b", "expected ')' but got EOF"},
		{"[1 2", "expected ']' but got EOF"},
		{")", "unexpected token: ')'"},
		{"a b", "expected EOF but got symbol"},
		{"", "unexpected token: EOF"},
	}

	for _, test := range tests {
		_, err := Parse(test.input)
		be.Err(t, err, test.err)
	}
}

func TestMatch(t *testing.T) {
	actual, err := Parse(`(def (proto "fib" ["x"]) (if (binary "<" (var "x") 3) 1 (binary "+" (call "fib" [1]) 2)))`)
	be.Err(t, err, nil)

	matching := []string{
		`(def (proto "fib" ["x"]) (if (binary "<" (var "x") 3) 1 (binary "+" (call "fib" [1]) 2)))`,
		`(def (proto "fib" ["x"]) ...)`,
		`(def ... (if ... 1 ...))`,
		`(def (proto "fib" [...]) (if ...))`,
	}
	for _, input := range matching {
		pattern, err := Parse(input)
		be.Err(t, err, nil)
		be.Err(t, Match(pattern, actual), nil)
	}

	mismatching := []struct {
		pattern string
		err     string
	}{
		{`(def (proto "fact" ["x"]) ...)`, `at root[1][1]: expected "fact", got "fib"`},
		{`(def (proto "fib" []) ...)`, `at root[1][2]: expected 0 items`},
		{`(def (proto "fib" ["x"]) (if ... 2 ...))`, `at root[2][2]: expected 2, got 1`},
		{`(def (proto "fib" ["x"]))`, `at root: expected 2 items`},
		{`(def (proto "fib" ["x"]) (var "x" ...))`, `at root[2][0]: expected var, got if`},
		{`(def (proto "fib" ["x"]) [...])`, `at root[2]: expected [...]`},
	}
	for _, test := range mismatching {
		pattern, err := Parse(test.pattern)
		be.Err(t, err, nil)
		be.Err(t, Match(pattern, actual), test.err)
	}
}

func TestNodeTypeHelpers(t *testing.T) {
	be.True(t, NewSymbol("a").IsAtom())
	be.True(t, NewString("a").IsAtom())
	be.True(t, NewNumber("1").IsAtom())
	be.True(t, NewEllipsis().IsAtom())
	be.True(t, !NewList(nil).IsAtom())
	be.True(t, !NewArray(nil).IsAtom())
	be.Equal(t, NewList([]*Node{NewSymbol("var"), NewString("x")}).String(), `(var "x")`)
}
