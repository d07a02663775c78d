package mcp

import (
	"context"
	"encoding/json"

	core "github.com/museworks/museflow/internal/agent/core"
)

// AgentGateway adapts the subprocess tool client to the workflow engine's
// session contract.
type AgentGateway struct {
	G *Gateway
}

func (a AgentGateway) Open(ctx context.Context) (core.ToolSession, error) {
	cl, err := a.G.Open(ctx)
	if err != nil {
		return nil, err
	}
	return agentSession{cl: cl}, nil
}

type agentSession struct {
	cl *Client
}

func (s agentSession) Tools(ctx context.Context) ([]core.Tool, error) {
	descs, err := s.cl.Tools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]core.Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, core.Tool{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
	}
	return tools, nil
}

// Call returns the tool result serialized as JSON so it can be fed back to
// the model as a tool message.
func (s agentSession) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := s.cl.Call(ctx, name, args)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s agentSession) Close() error { return s.cl.Close() }
