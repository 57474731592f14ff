package lsp

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/nalgeon/be"
)

func TestDiagnostics(t *testing.T) {
	content := "def f(x) y;\ndef g(x) x;\n1 + ;"
	diags := diagnostics(content)
	be.Equal(t, len(diags), 2)

	be.Equal(t, diags[0].Source, "codegen")
	be.Equal(t, diags[0].Range.Start, lsp.Position{Line: 0, Character: 0})
	be.Equal(t, diags[0].Range.End, lsp.Position{Line: 0, Character: 11})
	be.True(t, strings.Contains(diags[0].Message, `unknown variable name "y"`))

	be.Equal(t, diags[1].Source, "parse")
	be.Equal(t, diags[1].Range.Start, lsp.Position{Line: 2, Character: 0})
	be.Equal(t, diags[1].Severity, lsp.Error)
}

func TestDiagnostics_Clean(t *testing.T) {
	diags := diagnostics("def f(x) x + 1;\nf(2);")
	be.Equal(t, len(diags), 0)
	// Clients expect an empty array rather than null.
	data, err := json.Marshal(diags)
	be.Err(t, err, nil)
	be.Equal(t, string(data), "[]")
}

func TestDiagnostics_LexError(t *testing.T) {
	diags := diagnostics("1 + €;")
	be.Equal(t, len(diags), 1)
	be.Equal(t, diags[0].Source, "lex")
}

func TestHoverText(t *testing.T) {
	content := "def binary : 1 (x y) y;\ndef f(a b) a : b;\nextern sin(x);\n"
	tests := []struct {
		name string
		idx  int
		want string
		ok   bool
	}{
		{"function", strings.Index(content, "f(a"), "def f(a b)", true},
		{"after function name", strings.Index(content, "(a b)"), "def f(a b)", true},
		{"user operator", strings.Index(content, ": b"), `user-defined binary operator ":", precedence 1`, true},
		{"extern", strings.Index(content, "sin"), "extern sin(x)", true},
		{"keyword", 1, "", false},
		{"number", strings.Index(content, "1 ("), "", false},
		{"parameter", strings.Index(content, "a b)"), "", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := hoverText(content, test.idx)
			be.Equal(t, ok, test.ok)
			be.Equal(t, got, test.want)
		})
	}
}

func TestHoverText_BuiltinsAndHostFunctions(t *testing.T) {
	content := "1 + 2;\nputchard"
	got, ok := hoverText(content, 2)
	be.True(t, ok)
	be.Equal(t, got, `built-in binary operator "+", precedence 20`)

	got, ok = hoverText(content, len(content))
	be.True(t, ok)
	be.Equal(t, got, "extern putchard  # host function")
}

func TestHoverText_MultiCharacterOperator(t *testing.T) {
	content := "def binary |> 5 (x f) f;\n1 |> 2;"
	got, ok := hoverText(content, strings.LastIndex(content, ">"))
	be.True(t, ok)
	be.Equal(t, got, `user-defined binary operator "|>", precedence 5`)
}

func labels(items []lsp.CompletionItem) []string {
	var out []string
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestCompletionItems(t *testing.T) {
	content := "def fib(x) x;\nfi"
	items := completionItems(content, len(content))
	be.Equal(t, labels(items), []string{"fib"})
	be.Equal(t, items[0].Kind, lsp.CIKFunction)
	be.Equal(t, items[0].Detail, "(x)")
	be.Equal(t, items[0].TextEdit.Range, lsp.Range{
		Start: lsp.Position{Line: 1, Character: 0},
		End:   lsp.Position{Line: 1, Character: 2},
	})
}

func TestCompletionItems_KeywordsAndHostFunctions(t *testing.T) {
	content := "def binary : 1 (x y) y;\ne"
	got := labels(completionItems(content, len(content)))
	be.Equal(t, got, []string{"extern", "else", "exp"})

	all := labels(completionItems(content, len(content)-1))
	for _, label := range all {
		be.True(t, label != "binary:")
	}
	be.True(t, len(all) > 10)
}

func TestWordAt(t *testing.T) {
	s := "foo(a1) |> 12;"
	tests := []struct {
		idx      int
		from, to int
	}{
		{0, 0, 3},
		{2, 0, 3},
		{3, 0, 3},
		{4, 4, 6},
		{8, 8, 10},
		{10, 8, 10},
		{11, 11, 11},
		{12, 12, 12},
	}
	for _, test := range tests {
		from, to := wordAt(s, test.idx)
		be.Equal(t, [2]int{from, to}, [2]int{test.from, test.to})
	}
}

func TestPositions(t *testing.T) {
	s := "a\nbc\r\nd€e"
	be.Equal(t, lspPositionFromIdx(s, 3), lsp.Position{Line: 1, Character: 1})
	be.Equal(t, lspPositionFromIdx(s, 6), lsp.Position{Line: 2, Character: 0})
	be.Equal(t, lspPositionFromIdx(s, len(s)), lsp.Position{Line: 2, Character: 3})
	be.Equal(t, lspPositionToIdx(s, lsp.Position{Line: 1, Character: 1}), 3)
	be.Equal(t, lspPositionToIdx(s, lsp.Position{Line: 2, Character: 2}), 10)
}

func TestServerOverJSONRPC(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverSide, clientSide := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, serverSide, serverSide) }()

	published := make(chan lsp.PublishDiagnosticsParams, 4)
	client := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
			if req.Method == "textDocument/publishDiagnostics" && req.Params != nil {
				var params lsp.PublishDiagnosticsParams
				if json.Unmarshal(*req.Params, &params) == nil {
					published <- params
				}
			}
			return nil, nil
		}))

	var init json.RawMessage
	be.Err(t, client.Call(ctx, "initialize", lsp.InitializeParams{}, &init), nil)
	be.True(t, strings.Contains(string(init), `"hoverProvider":true`))

	uri := lsp.DocumentURI("file:///test.kal")
	be.Err(t, client.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{URI: uri, Text: "def f(x) y;"},
	}), nil)
	params := waitForDiagnostics(t, published)
	be.Equal(t, params.URI, uri)
	be.Equal(t, len(params.Diagnostics), 1)

	be.Err(t, client.Notify(ctx, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument:   lsp.VersionedTextDocumentIdentifier{TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: "def f(x) x;\nf(1);"}},
	}), nil)
	params = waitForDiagnostics(t, published)
	be.Equal(t, len(params.Diagnostics), 0)

	var hover json.RawMessage
	be.Err(t, client.Call(ctx, "textDocument/hover", lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		Position:     lsp.Position{Line: 1, Character: 0},
	}, &hover), nil)
	be.True(t, strings.Contains(string(hover), "def f(x)"))

	var items []lsp.CompletionItem
	be.Err(t, client.Call(ctx, "textDocument/completion", lsp.CompletionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			Position:     lsp.Position{Line: 0, Character: 2},
		},
	}, &items), nil)
	be.Equal(t, labels(items), []string{"def"})

	err := client.Call(ctx, "textDocument/rename", nil, nil)
	be.Err(t, err, "method not found")

	client.Close()
	select {
	case err := <-done:
		be.Err(t, err, nil)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after the client disconnected")
	}
}

func waitForDiagnostics(t *testing.T, ch <-chan lsp.PublishDiagnosticsParams) lsp.PublishDiagnosticsParams {
	t.Helper()
	select {
	case params := <-ch:
		return params
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostics published")
		return lsp.PublishDiagnosticsParams{}
	}
}
