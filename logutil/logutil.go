// Package logutil provides loggers that share one output.
//
// Packages create their logger once with GetLogger. Output is discarded
// until SetOutput or SetOutputFile is called.
package logutil

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu   sync.Mutex
	out  io.Writer = io.Discard
	file *os.File
)

type sink struct{}

func (sink) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	return out.Write(p)
}

// GetLogger returns a logger with the given prefix that writes to the
// shared output.
func GetLogger(prefix string) *log.Logger {
	return log.New(sink{}, prefix, log.Lmicroseconds)
}

// SetOutput redirects every logger created by GetLogger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	setOutput(w, nil)
}

func setOutput(w io.Writer, f *os.File) {
	if file != nil {
		file.Close()
	}
	out, file = w, f
}

// SetOutputFile redirects loggers to the named file, appending to it. An
// empty name discards output again.
func SetOutputFile(fname string) error {
	if fname == "" {
		SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	setOutput(f, f)
	return nil
}
