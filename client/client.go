// Package client is the daemon's IPC client library, replacing the
// teacher's client/exe (Forth-protocol SendCommand/ReadResponse pair in
// client/exe/client.go) with a JSON line-request/response round trip
// matching protocol.Request/Response, plus the connect/read timeouts
// spec.md §5 assigns to the client side of the daemon boundary.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dskidx/dskidx/protocol"
)

func decodeJSONLine(line []byte, v any) error {
	return json.Unmarshal(line, v)
}

// ConnectTimeout is how long Dial waits before concluding no daemon is
// listening, per spec.md §5.
const ConnectTimeout = 200 * time.Millisecond

// RequestTimeout is the per-request read deadline before a caller
// should fall back to local in-process execution, per spec.md §5.
const RequestTimeout = 5 * time.Second

// Client is a connection to the daemon socket.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the daemon's Unix socket at socketPath, failing fast
// if nothing answers within ConnectTimeout.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Do sends one request line and reads the single response line it
// yields, per spec.md §4.8's "one request line yields exactly one
// response line". Callers should treat any returned error as grounds to
// fall back to local execution.
func (c *Client) Do(req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(time.Now().Add(RequestTimeout)); err != nil {
		return protocol.Response{}, err
	}

	if err := protocol.WriteRequest(c.conn, req); err != nil {
		return protocol.Response{}, fmt.Errorf("writing request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return protocol.Response{}, fmt.Errorf("reading response: %w", err)
	}

	var resp protocol.Response
	if err := decodeJSONLine(line, &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// Status, Warmup, Search, List, Launch and Shutdown are thin,
// strongly-typed wrappers over Do for the six commands spec.md §4.8
// names.

func (c *Client) Status() (protocol.Response, error) {
	return c.Do(protocol.Request{Cmd: protocol.CmdStatus})
}

func (c *Client) Warmup(roots []string, respectTryExec bool) (protocol.Response, error) {
	return c.Do(protocol.Request{Cmd: protocol.CmdWarmup, Roots: roots, RespectTryExec: respectTryExec})
}

func (c *Client) Search(roots []string, query string, limit int, emptyMode string, respectTryExec bool) (protocol.Response, error) {
	req := protocol.Request{
		Cmd:            protocol.CmdSearch,
		Roots:          roots,
		Query:          query,
		EmptyMode:      emptyMode,
		RespectTryExec: respectTryExec,
	}
	if limit > 0 {
		req.Limit = &limit
	}
	return c.Do(req)
}

func (c *Client) List(roots []string, respectTryExec bool) (protocol.Response, error) {
	return c.Do(protocol.Request{Cmd: protocol.CmdList, Roots: roots, RespectTryExec: respectTryExec})
}

func (c *Client) Launch(roots []string, desktopID string, action *string, respectTryExec bool) (protocol.Response, error) {
	return c.Do(protocol.Request{
		Cmd:            protocol.CmdLaunch,
		Roots:          roots,
		DesktopID:      desktopID,
		Action:         action,
		RespectTryExec: respectTryExec,
	})
}

func (c *Client) Shutdown() (protocol.Response, error) {
	return c.Do(protocol.Request{Cmd: protocol.CmdShutdown})
}
