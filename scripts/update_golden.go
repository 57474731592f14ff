// update_golden rewrites the ir, execute and output fences of golden test
// files with what the compiler currently produces.
//
// Usage: go run ./scripts [files...]
//
// With no arguments every test/*_test.md file is updated. Other assertion
// types are left alone, and so are empty fences.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/strager/kaleido/sexy"
)

type edit struct {
	start, end int
	text       string
}

type Updater struct {
	changed int
	skipped int
}

func (u *Updater) updateFile(filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	testCases, err := sexy.ExtractTestCases(string(src))
	if err != nil {
		return err
	}

	var edits []edit
	for _, tc := range testCases {
		r := sexy.Run(context.Background(), tc)
		for _, a := range tc.Assertions {
			actual, ok := r.Actual(a.Type)
			if !ok || actual == a.Content {
				continue
			}
			if a.Start < 0 {
				// An empty fence has no content range to replace.
				fmt.Fprintf(os.Stderr, "%s:%d: skipping empty %s fence in test '%s'\n", filename, a.Line, a.Type, tc.Name)
				u.skipped++
				continue
			}
			edits = append(edits, edit{start: a.Start, end: a.End, text: actual + "\n"})
		}
	}
	if len(edits) == 0 {
		return nil
	}

	// Apply from the end so earlier offsets stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := string(src)
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	u.changed += len(edits)
	return os.WriteFile(filename, []byte(out), 0644)
}

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob("test/*_test.md")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	u := &Updater{}
	for _, file := range files {
		if !strings.HasSuffix(file, ".md") {
			fmt.Fprintf(os.Stderr, "Warning: ignoring %s\n", file)
			continue
		}
		if err := u.updateFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating %s: %v\n", file, err)
			os.Exit(1)
		}
	}
	fmt.Printf("updated %d fences, skipped %d\n", u.changed, u.skipped)
}
