package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Client drives a tool server subprocess over stdio JSON-RPC. One client is
// opened per workflow step and must be closed when the step finishes.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	nextID atomic.Int64
	closed bool
}

// Gateway launches tool server subprocesses from a fixed command line.
type Gateway struct {
	Command []string
}

// NewGateway builds a gateway for the given server command, e.g.
// ["museflow", "tools"].
func NewGateway(command []string) *Gateway {
	return &Gateway{Command: command}
}

// Open starts a fresh tool server process and performs discovery.
func (g *Gateway) Open(ctx context.Context) (*Client, error) {
	if len(g.Command) == 0 {
		return nil, fmt.Errorf("tool server command not configured")
	}
	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tool server: %w", err)
	}
	c := &Client{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}
	return c, nil
}

// Tools lists the tools advertised by the server.
func (c *Client) Tools(ctx context.Context) ([]ToolDesc, error) {
	res, err := c.roundTrip(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(res["tools"])
	if err != nil {
		return nil, err
	}
	var tools []ToolDesc
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	return tools, nil
}

// Call invokes a named tool with arguments and returns its result object.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return c.roundTrip(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
}

// Close shuts the server down. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}

func (c *Client) roundTrip(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("tool session closed")
	}

	req := rpcReq{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	payload = append(payload, '\n')
	if _, err := c.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := c.stdout.ReadBytes('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rr := <-ch:
		if rr.err != nil {
			return nil, fmt.Errorf("read response: %w", rr.err)
		}
		var resp rpcResp
		if err := json.Unmarshal(rr.line, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("tool server: %s", resp.Error.Message)
		}
		return resp.Result, nil
	}
}
