package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/strager/kaleido/ast"
	"github.com/strager/kaleido/compiler"
	"github.com/strager/kaleido/config"
	"github.com/strager/kaleido/ir"
	"github.com/strager/kaleido/logutil"
	"github.com/strager/kaleido/lsp"
)

const usage = `Kaleido - an incremental compiler for a small expression language

Usage:
    kaleido [-config path] [-log file] <command> [arguments]

Commands:
    repl            Read, compile and run units interactively (default)
    run <file>      Compile and run every unit of a file
    eval <code>     Compile and run inline code
    ir <file>       Print the intermediate representation of a file
    check <file>    Compile a file without running it
    lsp             Run the language server over stdin and stdout
    help            Show this help message

Examples:
    kaleido run mandel.kal
    kaleido eval 'def fib(x) if x < 3 then 1 else fib(x-1)+fib(x-2); fib(20);'
    kaleido ir -format yaml prog.kal

Use "kaleido <command> -h" for more information about a command.
`

// cli holds what every subcommand needs.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
}

func (c *cli) showUsage() {
	fmt.Fprint(c.stderr, usage)
}

func (c *cli) newSession() *compiler.Session {
	s := compiler.New(c.stdout)
	s.Engine().SetMaxDepth(c.cfg.MaxCallDepth)
	return s
}

// newFlagSet returns a flag set whose usage text names the command.
func (c *cli) newFlagSet(name, args, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: kaleido %s %s\n", name, args)
		fmt.Fprintf(c.stderr, "%s\n\n", summary)
		fmt.Fprintf(c.stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	return fs
}

// oneArg parses args and returns the single positional argument.
func (c *cli) oneArg(fs *flag.FlagSet, args []string, what string) (string, bool) {
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(c.stderr, "Error: expected exactly one %s argument\n", what)
		fs.Usage()
		return "", false
	}
	return fs.Arg(0), true
}

func (c *cli) readSource(filename string) (string, bool) {
	src, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error reading file %s: %v\n", filename, err)
		return "", false
	}
	return string(src), true
}

func (c *cli) runCommand(args []string) int {
	fs := c.newFlagSet("run", "[-ir] <file>", "Compile and run every unit of a file")
	showIR := fs.Bool("ir", c.cfg.ShowIR, "Print the IR of each unit")
	filename, ok := c.oneArg(fs, args, "file")
	if !ok {
		return 2
	}
	src, ok := c.readSource(filename)
	if !ok {
		return 1
	}
	return c.evalSource(filename, src, *showIR)
}

func (c *cli) evalCommand(args []string) int {
	fs := c.newFlagSet("eval", "[-ir] <code>", "Compile and run inline code")
	showIR := fs.Bool("ir", c.cfg.ShowIR, "Print the IR of each unit")
	code, ok := c.oneArg(fs, args, "code")
	if !ok {
		return 2
	}
	return c.evalSource("<eval>", code, *showIR)
}

func (c *cli) evalSource(name, src string, showIR bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	outs := c.newSession().Eval(ctx, src)
	if c.report(name, src, outs, showIR) {
		return 1
	}
	return 0
}

func (c *cli) irCommand(args []string) int {
	fs := c.newFlagSet("ir", "[-format text|yaml] <file>", "Print the intermediate representation of a file")
	format := fs.String("format", "text", "Output format: text (every unit) or yaml (defined functions)")
	filename, ok := c.oneArg(fs, args, "file")
	if !ok {
		return 2
	}
	if *format != "text" && *format != "yaml" {
		fmt.Fprintf(c.stderr, "Error: unknown format %q\n", *format)
		return 2
	}
	src, ok := c.readSource(filename)
	if !ok {
		return 1
	}

	s := c.newSession()
	outs := s.Check(src)
	if c.reportErrors(filename, src, outs) {
		return 1
	}
	if *format == "yaml" {
		if err := ir.WriteYAML(c.stdout, s.Module()); err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	var texts []string
	for _, o := range outs {
		texts = append(texts, o.IR)
	}
	fmt.Fprint(c.stdout, strings.Join(texts, "\n"))
	return 0
}

func (c *cli) checkCommand(args []string) int {
	fs := c.newFlagSet("check", "[-v] <file>", "Compile a file without running it")
	verbose := fs.Bool("v", false, "Print the syntax tree of each unit")
	filename, ok := c.oneArg(fs, args, "file")
	if !ok {
		return 2
	}
	src, ok := c.readSource(filename)
	if !ok {
		return 1
	}

	outs := c.newSession().Check(src)
	if *verbose {
		for _, o := range outs {
			if o.AST != "" {
				fmt.Fprintf(c.stdout, "AST: %s\n", o.AST)
			}
		}
	}
	if c.reportErrors(filename, src, outs) {
		return 1
	}
	fmt.Fprintf(c.stdout, "%s: no errors found\n", filename)
	return 0
}

func (c *cli) lspCommand(args []string) int {
	fs := c.newFlagSet("lsp", "", "Run the language server over stdin and stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := lsp.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// report prints the value of each expression and, if showIR is set, the IR
// of each unit, then reports errors. It reports whether any unit failed.
func (c *cli) report(name, src string, outs []compiler.Outcome, showIR bool) (failed bool) {
	for _, o := range outs {
		if o.Err != nil {
			continue
		}
		if showIR {
			fmt.Fprint(c.stdout, o.IR)
		}
		if o.Kind == compiler.Expression {
			fmt.Fprintln(c.stdout, ast.FormatNumber(o.Value))
		}
	}
	return c.reportErrors(name, src, outs)
}

// reportErrors prints each failed unit's error to stderr prefixed with its
// position.
func (c *cli) reportErrors(name, src string, outs []compiler.Outcome) (failed bool) {
	for _, o := range outs {
		if o.Err == nil {
			continue
		}
		line, col := lineCol(src, o.From)
		fmt.Fprintf(c.stderr, "%s:%d:%d: %v\n", name, line, col, o.Err)
		failed = true
	}
	return failed
}

// lineCol converts a byte offset to a 1-based line and column.
func lineCol(src string, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	line = 1 + strings.Count(src[:offset], "\n")
	col = offset - strings.LastIndex(src[:offset], "\n")
	return line, col
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	global := flag.NewFlagSet("kaleido", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = c.showUsage
	configPath := global.String("config", "", "Configuration file (default $XDG_CONFIG_HOME/kaleido/config.toml)")
	logFile := global.String("log", "", "Append debug logs to this file")
	if err := global.Parse(args); err != nil {
		return 2
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			path = ""
		}
	}
	c.cfg = config.Default()
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		c.cfg = cfg
	}
	if *logFile != "" {
		c.cfg.LogFile = *logFile
	}
	if err := logutil.SetOutputFile(c.cfg.LogFile); err != nil {
		fmt.Fprintf(stderr, "Error opening log file: %v\n", err)
		return 1
	}
	defer logutil.SetOutput(io.Discard)

	command, rest := "repl", []string(nil)
	if global.NArg() > 0 {
		command, rest = global.Arg(0), global.Args()[1:]
	}

	switch command {
	case "repl":
		return c.replCommand(rest)
	case "run":
		return c.runCommand(rest)
	case "eval":
		return c.evalCommand(rest)
	case "ir":
		return c.irCommand(rest)
	case "check":
		return c.checkCommand(rest)
	case "lsp":
		return c.lspCommand(rest)
	case "help", "-h", "--help":
		c.showUsage()
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		c.showUsage()
		return 2
	}
}

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
