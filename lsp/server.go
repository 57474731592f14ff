package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/strager/kaleido/codegen"
	"github.com/strager/kaleido/compiler"
	"github.com/strager/kaleido/engine"
	"github.com/strager/kaleido/lexer"
	"github.com/strager/kaleido/optable"
	"github.com/strager/kaleido/parser"
)

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

type server struct {
	mu      sync.Mutex
	content map[lsp.DocumentURI]string
}

func newServer() *server {
	return &server{content: make(map[lsp.DocumentURI]string)}
}

func handler(s *server) jsonrpc2.Handler {
	return routingHandler(map[string]method{
		"initialize":              s.initialize,
		"textDocument/didOpen":    s.didOpen,
		"textDocument/didChange":  s.didChange,
		"textDocument/didClose":   s.didClose,
		"textDocument/hover":      s.hover,
		"textDocument/completion": s.completion,

		"initialized": noop,
		"shutdown":    noop,
		"exit":        noop,
		// Sent by clients even when the server doesn't advertise support.
		"workspace/didChangeWatchedFiles": noop,
	})
}

type method func(context.Context, jsonrpc2.JSONRPC2, json.RawMessage) (any, error)

func noop(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	return nil, nil
}

func routingHandler(methods map[string]method) jsonrpc2.Handler {
	return jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		fn, ok := methods[req.Method]
		if !ok {
			logger.Printf("unhandled method %s", req.Method)
			return nil, errMethodNotFound
		}
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		return fn(ctx, conn, params)
	})
}

func (s *server) text(uri lsp.DocumentURI) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[uri]
}

func (s *server) setText(uri lsp.DocumentURI, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[uri] = content
}

func (s *server) initialize(_ context.Context, _ jsonrpc2.JSONRPC2, _ json.RawMessage) (any, error) {
	return &lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
				Options: &lsp.TextDocumentSyncOptions{
					OpenClose: true,
					Change:    lsp.TDSKFull,
				},
			},
			HoverProvider:      true,
			CompletionProvider: &lsp.CompletionOptions{},
		},
	}, nil
}

func (s *server) didOpen(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidOpenTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}

	uri, content := params.TextDocument.URI, params.TextDocument.Text
	s.setText(uri, content)
	go publishDiagnostics(ctx, conn, uri, content)
	return nil, nil
}

func (s *server) didChange(ctx context.Context, conn jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidChangeTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil || len(params.ContentChanges) == 0 {
		return nil, errInvalidParams
	}

	// Only full syncs are advertised, so the last change holds the whole
	// document.
	uri, content := params.TextDocument.URI, params.ContentChanges[len(params.ContentChanges)-1].Text
	s.setText(uri, content)
	go publishDiagnostics(ctx, conn, uri, content)
	return nil, nil
}

func (s *server) didClose(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.DidCloseTextDocumentParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	s.mu.Lock()
	delete(s.content, params.TextDocument.URI)
	s.mu.Unlock()
	return nil, nil
}

func (s *server) hover(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.TextDocumentPositionParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	content := s.text(params.TextDocument.URI)
	text, ok := hoverText(content, lspPositionToIdx(content, params.Position))
	if !ok {
		return lsp.Hover{}, nil
	}
	return lsp.Hover{Contents: []lsp.MarkedString{{Language: "kaleido", Value: text}}}, nil
}

func (s *server) completion(_ context.Context, _ jsonrpc2.JSONRPC2, rawParams json.RawMessage) (any, error) {
	var params lsp.CompletionParams
	if json.Unmarshal(rawParams, &params) != nil {
		return nil, errInvalidParams
	}
	content := s.text(params.TextDocument.URI)
	return completionItems(content, lspPositionToIdx(content, params.Position)), nil
}

func publishDiagnostics(ctx context.Context, conn jsonrpc2.JSONRPC2, uri lsp.DocumentURI, content string) {
	conn.Notify(ctx, "textDocument/publishDiagnostics",
		lsp.PublishDiagnosticsParams{URI: uri, Diagnostics: diagnostics(content)})
}

// diagnostics compiles content without running it and reports one
// diagnostic per failed unit.
func diagnostics(content string) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	for _, out := range compiler.New(nil).Check(content) {
		if out.Err == nil {
			continue
		}
		diags = append(diags, lsp.Diagnostic{
			Range: lsp.Range{
				Start: lspPositionFromIdx(content, out.From),
				End:   lspPositionFromIdx(content, out.To),
			},
			Severity: lsp.Error,
			Source:   errorSource(out.Err),
			Message:  out.Err.Error(),
		})
	}
	return diags
}

func errorSource(err error) string {
	var (
		lexErr     *lexer.Error
		parseErr   *parser.Error
		codegenErr *codegen.Error
		runtimeErr *engine.Error
	)
	switch {
	case errors.As(err, &lexErr):
		return "lex"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &codegenErr):
		return "codegen"
	case errors.As(err, &runtimeErr):
		return "runtime"
	}
	return "kaleido"
}

// hoverText describes the function or operator at idx, as defined by the
// whole document.
func hoverText(content string, idx int) (string, bool) {
	from, to := wordAt(content, idx)
	if from == to {
		return "", false
	}
	word := content[from:to]
	if idx >= to {
		idx = to - 1
	}
	s := compiler.New(nil)
	s.Check(content)

	if isIdentStart(rune(word[0])) {
		if lexer.IsKeyword(word) {
			return "", false
		}
		f := s.Module().Lookup(word)
		if f == nil {
			if _, ok := s.Engine().Host(word); ok {
				return fmt.Sprintf("extern %s  # host function", word), true
			}
			return "", false
		}
		kw := lexer.KwDef
		if f.IsDeclaration() {
			kw = lexer.KwExtern
		}
		return fmt.Sprintf("%s %s(%s)", kw, f.Name, strings.Join(f.ParamNames(), " ")), true
	}

	// Prefer the longest declared operator around idx.
	for l := to - from; l > 0; l-- {
		for start := from; start+l <= to; start++ {
			if idx < start || idx >= start+l {
				continue
			}
			if e, ok := s.Ops().Lookup(content[start : start+l]); ok {
				return describeOperator(e), true
			}
		}
	}
	return "", false
}

func describeOperator(e optable.Entry) string {
	kind := "user-defined"
	if e.Builtin {
		kind = "built-in"
	}
	if e.Arity == optable.Unary {
		return fmt.Sprintf("%s unary operator %q", kind, e.Symbol)
	}
	return fmt.Sprintf("%s binary operator %q, precedence %d", kind, e.Symbol, e.Precedence)
}

// wordAt returns the identifier or run of operator characters around idx.
func wordAt(s string, idx int) (from, to int) {
	if idx > len(s) {
		idx = len(s)
	}
	class := func(i int) int {
		if i < 0 || i >= len(s) {
			return 0
		}
		c := rune(s[i])
		switch {
		case isIdentStart(c) || unicode.IsDigit(c):
			return 1
		case c < unicode.MaxASCII && (unicode.IsPunct(c) || unicode.IsSymbol(c)) && !optable.Reserved(string(c)):
			return 2
		}
		return 0
	}
	cls := class(idx)
	if cls == 0 {
		// The cursor may sit just after a word.
		idx--
		cls = class(idx)
		if cls == 0 {
			return idx + 1, idx + 1
		}
	}
	from, to = idx, idx+1
	for class(from-1) == cls {
		from--
	}
	for class(to) == cls {
		to++
	}
	if cls == 1 && unicode.IsDigit(rune(s[from])) {
		return idx, idx
	}
	return from, to
}

func isIdentStart(c rune) bool { return unicode.IsLetter(c) }

// completionItems offers keywords, functions defined in the document and
// host functions that start with the identifier before idx.
func completionItems(content string, idx int) []lsp.CompletionItem {
	if idx > len(content) {
		idx = len(content)
	}
	from := idx
	for from > 0 && (isIdentStart(rune(content[from-1])) || unicode.IsDigit(rune(content[from-1]))) {
		from--
	}
	prefix := content[from:idx]
	replace := lsp.Range{
		Start: lspPositionFromIdx(content, from),
		End:   lspPositionFromIdx(content, idx),
	}

	s := compiler.New(nil)
	s.Check(content)

	items := []lsp.CompletionItem{}
	seen := map[string]bool{}
	add := func(label string, kind lsp.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		items = append(items, lsp.CompletionItem{
			Label:  label,
			Kind:   kind,
			Detail: detail,
			TextEdit: &lsp.TextEdit{
				Range:   replace,
				NewText: label,
			},
		})
	}
	for _, kw := range lexer.Keywords() {
		add(kw, lsp.CIKKeyword, "keyword")
	}
	funcs := s.Module().Functions()
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })
	for _, f := range funcs {
		// Operator functions are reached through their symbols.
		if isOperatorFunc(f.Name) {
			continue
		}
		add(f.Name, lsp.CIKFunction, fmt.Sprintf("(%s)", strings.Join(f.ParamNames(), " ")))
	}
	for _, name := range s.Engine().HostFunctions() {
		h, _ := s.Engine().Host(name)
		add(name, lsp.CIKFunction, fmt.Sprintf("host function, %d arguments", h.Arity))
	}
	return items
}

func isOperatorFunc(name string) bool {
	for _, kw := range []string{lexer.KwUnary, lexer.KwBinary} {
		rest := strings.TrimPrefix(name, kw)
		if rest != name && rest != "" && !isIdentStart(rune(rest[0])) && !unicode.IsDigit(rune(rest[0])) {
			return true
		}
	}
	return false
}

func lspPositionToIdx(s string, pos lsp.Position) int {
	var idx int
	walkString(s, func(i int, p lsp.Position) bool {
		idx = i
		return p.Line < pos.Line || (p.Line == pos.Line && p.Character < pos.Character)
	})
	return idx
}

func lspPositionFromIdx(s string, idx int) lsp.Position {
	var pos lsp.Position
	walkString(s, func(i int, p lsp.Position) bool {
		pos = p
		return i < idx
	})
	return pos
}

// Generates (index, lspPosition) pairs in s, stopping if f returns false.
func walkString(s string, f func(i int, p lsp.Position) bool) {
	var p lsp.Position
	lastCR := false

	for i, r := range s {
		if !f(i, p) {
			return
		}
		switch {
		case r == '\r':
			p.Line++
			p.Character = 0
		case r == '\n':
			if !lastCR {
				p.Line++
				p.Character = 0
			}
		case r <= 0xFFFF:
			// Encoded in UTF-16 with one unit
			p.Character++
		default:
			// Encoded in UTF-16 with two units
			p.Character += 2
		}
		lastCR = r == '\r'
	}
	f(len(s), p)
}
