package server

import (
	"context"
	"io"
	"net"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/internal/protocol/dfsrpc"
)

type conn struct {
	endpoint *Endpoint
	conn     net.Conn
}

func (c *conn) serve(ctx context.Context) {
	defer c.conn.Close()
	logger.Debug("%s: new connection from %s", c.endpoint.name, c.conn.RemoteAddr())

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := c.handleRequest(ctx); err != nil {
				if err != io.EOF {
					logger.Debug("%s: error handling request: %v", c.endpoint.name, err)
				}
				return
			}
		}
	}
}

func (c *conn) handleRequest(ctx context.Context) error {
	message, err := dfsrpc.ReadMessage(c.conn)
	if err != nil {
		return err
	}

	header, args, err := dfsrpc.DecodeCall(message)
	if err != nil {
		logger.Debug("%s: malformed call: %v", c.endpoint.name, err)
		return err
	}

	logger.Debug("%s: call XID=0x%x program=%d procedure=%d",
		c.endpoint.name, header.XID, header.Program, header.Procedure)

	var reply []byte
	if header.Program != c.endpoint.program {
		reply, err = dfsrpc.EncodeErrorReply(header.XID, errUnknownProgram(header.Program))
	} else if result, handlerErr := c.endpoint.handler(ctx, header.Procedure, args); handlerErr != nil {
		reply, err = dfsrpc.EncodeErrorReply(header.XID, handlerErr)
	} else {
		reply, err = dfsrpc.EncodeReply(header.XID, result)
	}
	if err != nil {
		return err
	}

	return dfsrpc.WriteMessage(c.conn, reply)
}
