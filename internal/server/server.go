// Package server provides the TCP endpoint shared by every RPC interface
// in the system. An Endpoint binds one listener to one handler; the
// naming server runs two endpoints (Service and Registration) and every
// storage server runs two more (Storage and Command).
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/harshini-shah/dfs/internal/logger"
)

// Handler processes one procedure call. It returns the procedure result
// to marshal into the reply, or an error that travels back to the caller
// as a status reply.
type Handler func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error)

// Endpoint is a TCP RPC listener serving a single program.
type Endpoint struct {
	name     string
	addr     string
	program  uint32
	handler  Handler
	listener net.Listener
}

// New creates an endpoint bound to addr (host:port; port 0 lets the
// system pick) serving the given program with handler.
func New(name, addr string, program uint32, handler Handler) *Endpoint {
	return &Endpoint{
		name:    name,
		addr:    addr,
		program: program,
		handler: handler,
	}
}

// Listen binds the listener. Serve calls it when it has not been called
// yet; calling it first lets callers learn the bound address.
func (e *Endpoint) Listen() error {
	listener, err := net.Listen("tcp", e.addr)
	if err != nil {
		return fmt.Errorf("start %s listener: %w", e.name, err)
	}
	e.listener = listener
	logger.Info("%s endpoint listening on %s", e.name, listener.Addr())
	return nil
}

// Addr returns the bound listener address. Only valid after Listen.
func (e *Endpoint) Addr() string {
	if e.listener == nil {
		return e.addr
	}
	return e.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Each connection is served by its own goroutine.
func (e *Endpoint) Serve(ctx context.Context) error {
	if e.listener == nil {
		if err := e.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		e.listener.Close()
	}()

	for {
		tcpConn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				logger.Debug("%s: error accepting connection: %v", e.name, err)
				continue
			}
		}

		c := &conn{endpoint: e, conn: tcpConn}
		go c.serve(ctx)
	}
}

// Stop closes the listener. In-flight connections finish on their own.
func (e *Endpoint) Stop() error {
	if e.listener != nil {
		return e.listener.Close()
	}
	return nil
}
