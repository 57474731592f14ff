package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/strager/kaleido/compiler"
	"github.com/strager/kaleido/optable"
	"github.com/strager/kaleido/parser"
)

// prompter reads one line of input. *liner.State is one.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// scanPrompter reads lines from a pipe without printing prompts.
type scanPrompter struct{ sc *bufio.Scanner }

func (p scanPrompter) Prompt(string) (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}
	if err := p.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (c *cli) replCommand(args []string) int {
	fs := c.newFlagSet("repl", "[-ir]", "Read, compile and run units interactively")
	showIR := fs.Bool("ir", c.cfg.ShowIR, "Print the IR of each unit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s := c.newSession()
	if !isTerminal(c.stdin) {
		r := &repl{cli: c, session: s, showIR: *showIR}
		r.loop(scanPrompter{bufio.NewScanner(c.stdin)})
		return r.status
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if c.cfg.HistoryFile != "" {
		if f, err := os.Open(c.cfg.HistoryFile); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
	}

	r := &repl{cli: c, session: s, showIR: *showIR, history: ln.AppendHistory}
	r.loop(ln)
	fmt.Fprintln(c.stdout)

	if c.cfg.HistoryFile != "" {
		if f, err := os.Create(c.cfg.HistoryFile); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}
	return 0
}

type repl struct {
	*cli
	session *compiler.Session
	showIR  bool
	history func(string)
	// status is 1 once any unit has failed.
	status int
}

func (r *repl) loop(p prompter) {
	for {
		src, ok := readUnits(p, r.session.Ops(), r.cfg.Prompt, r.cfg.ContinuationPrompt)
		if !ok {
			return
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "exit" || trimmed == "exit;" {
			return
		}
		if trimmed == "" {
			continue
		}
		if r.history != nil {
			r.history(strings.ReplaceAll(src, "\n", " "))
		}

		// Ctrl-C stops a running expression but not the REPL.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		outs := r.session.Eval(ctx, src)
		stop()
		if r.report("<stdin>", src, outs, r.showIR) {
			r.status = 1
		}
	}
}

// readUnits reads lines until they hold only complete units. It returns
// false at end of input.
func readUnits(p prompter, ops *optable.Table, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		pr := prompt
		if b.Len() > 0 {
			pr = cont
		}
		line, err := p.Prompt(pr)
		if errors.Is(err, liner.ErrPromptAborted) {
			// Ctrl-C discards the pending input.
			return "", true
		}
		if err != nil {
			// Whatever was typed before end of input still runs, so its
			// error is reported.
			return b.String(), b.Len() > 0
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !needsMore(b.String(), ops) {
			return b.String(), true
		}
	}
}

// needsMore reports whether src ends in the middle of a unit. It parses
// against a copy of ops so operator declarations in src do not leak.
func needsMore(src string, ops *optable.Table) bool {
	probe := optable.New()
	probe.Restore(ops.Snapshot())
	p := parser.New(src, probe)
	for {
		_, err := p.ParseTopLevel()
		if err == io.EOF {
			return false
		}
		if parser.IsIncomplete(err) {
			return true
		}
	}
}
