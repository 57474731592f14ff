// Package lsp implements a language server for Kaleido.
package lsp

import (
	"context"
	"io"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/strager/kaleido/logutil"
)

var logger = logutil.GetLogger("[lsp] ")

// Serve runs the language server over in and out until the client
// disconnects or ctx is done.
func Serve(ctx context.Context, in io.ReadCloser, out io.WriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := newServer()
	conn := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(transport{in, out}, jsonrpc2.VSCodeObjectCodec{}),
		handler(s))
	logger.Println("serving")
	select {
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
		conn.Close()
	}
	return nil
}

type transport struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (c transport) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c transport) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c transport) Close() error {
	if err := c.in.Close(); err != nil {
		c.out.Close()
		return err
	}
	return c.out.Close()
}
