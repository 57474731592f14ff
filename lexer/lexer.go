// Package lexer turns Kaleidoscope source text into tokens.
//
// The lexer is lazy: it scans one token per call to Next. It only ever
// emits single-character symbols; combining adjacent symbols into longer
// operators is left to the parser, which knows which operators exist.
package lexer

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Kind is the type of token.
type Kind int

const (
	EOF Kind = iota
	Number
	Identifier
	Symbol
	Keyword
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Number:
		return "number"
	case Identifier:
		return "identifier"
	case Symbol:
		return "symbol"
	case Keyword:
		return "keyword"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Keywords of the language.
const (
	KwDef    = "def"
	KwExtern = "extern"
	KwIf     = "if"
	KwThen   = "then"
	KwElse   = "else"
	KwFor    = "for"
	KwIn     = "in"
	KwVar    = "var"
	KwUnary  = "unary"
	KwBinary = "binary"
)

var keywords = map[string]bool{
	KwDef: true, KwExtern: true,
	KwIf: true, KwThen: true, KwElse: true,
	KwFor: true, KwIn: true, KwVar: true,
	KwUnary: true, KwBinary: true,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool { return keywords[s] }

// Keywords returns the reserved words in a stable order.
func Keywords() []string {
	return []string{KwDef, KwExtern, KwIf, KwThen, KwElse, KwFor, KwIn, KwVar, KwUnary, KwBinary}
}

// Pos is a position in the source. Line and Col are 1-based; Offset is a
// byte index.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Token is a single lexical token.
type Token struct {
	Kind Kind
	// Text is the identifier name, keyword, symbol character, or the
	// literal spelling of a number.
	Text string
	// Num is only meaningful when Kind == Number.
	Num float64
	Pos Pos
	// End is the offset just past the token.
	End int
}

// Is reports whether t is the given symbol or keyword.
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case Number:
		return "number " + t.Text
	case Identifier:
		return "identifier " + strconv.Quote(t.Text)
	case Keyword:
		return "keyword '" + t.Text + "'"
	default:
		return "'" + t.Text + "'"
	}
}

// Error is a lexical error: an unrecognized character or a malformed
// number.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Msg)
}

// Lexer scans tokens from a source string.
type Lexer struct {
	src  string
	pos  int
	line int
	col  int
}

// New returns a lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// Source returns the text being scanned.
func (l *Lexer) Source() string { return l.src }

// Offset returns the byte offset of the next unread character.
func (l *Lexer) Offset() int { return l.pos }

func (l *Lexer) here() Pos {
	return Pos{Offset: l.pos, Line: l.line, Col: l.col}
}

func (l *Lexer) peek() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *Lexer) advance() rune {
	r, size := l.peek()
	if size == 0 {
		return 0
	}
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// skipSpace skips whitespace and '#' line comments.
func (l *Lexer) skipSpace() {
	for {
		r, size := l.peek()
		switch {
		case size == 0:
			return
		case unicode.IsSpace(r):
			l.advance()
		case r == '#':
			for {
				r, size := l.peek()
				if size == 0 || r == '\n' || r == '\r' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

// Next scans the next token. At the end of the source it keeps returning
// an EOF token.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	start := l.here()
	r, size := l.peek()

	switch {
	case size == 0:
		return Token{Kind: EOF, Pos: start, End: l.pos}, nil

	case unicode.IsLetter(r):
		for {
			r, size := l.peek()
			if size == 0 || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				break
			}
			l.advance()
		}
		text := l.src[start.Offset:l.pos]
		kind := Identifier
		if keywords[text] {
			kind = Keyword
		}
		return Token{Kind: kind, Text: text, Pos: start, End: l.pos}, nil

	case isDigit(r) || (r == '.' && isDigit(l.runeAfter())):
		return l.readNumber(start)

	case r < utf8.RuneSelf && (unicode.IsPunct(r) || unicode.IsSymbol(r)):
		l.advance()
		return Token{Kind: Symbol, Text: string(r), Pos: start, End: l.pos}, nil

	default:
		l.advance()
		return Token{}, &Error{Pos: start, Msg: fmt.Sprintf("unrecognized character %q", r)}
	}
}

func (l *Lexer) runeAfter() rune {
	_, size := l.peek()
	if l.pos+size >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+size:])
	return r
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func (l *Lexer) readNumber(start Pos) (Token, error) {
	dots := 0
	for {
		r, size := l.peek()
		if size == 0 || !(isDigit(r) || r == '.') {
			break
		}
		if r == '.' {
			dots++
		}
		l.advance()
	}
	text := l.src[start.Offset:l.pos]
	if dots > 1 {
		return Token{}, &Error{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, &Error{Pos: start, Msg: fmt.Sprintf("malformed number %q", text)}
	}
	return Token{Kind: Number, Text: text, Num: val, Pos: start, End: l.pos}, nil
}

// SkipPast discards raw input up to and including the next occurrence of
// the terminator character, ignoring anything inside comments. It is used
// to resynchronize after an error. It reports whether the terminator was
// found.
func (l *Lexer) SkipPast(term rune) bool {
	for {
		l.skipSpace()
		r, size := l.peek()
		if size == 0 {
			return false
		}
		l.advance()
		if r == term {
			return true
		}
	}
}

// All scans every remaining token. It stops at the first error.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}
