package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestServeListAndUnknowns(t *testing.T) {
	srv := &Server{}
	srv.initTools()

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"nope"}` + "\n" +
			`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"no.such.tool","arguments":{}}}` + "\n",
	)
	var out bytes.Buffer
	if err := srv.Serve(in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	dec := json.NewDecoder(&out)

	var list rpcResp
	if err := dec.Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Error != nil {
		t.Fatalf("tools/list error: %v", list.Error)
	}
	tools, ok := list.Result["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatalf("tools/list returned %v", list.Result)
	}

	var unknownMethod rpcResp
	if err := dec.Decode(&unknownMethod); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unknownMethod.Error == nil || !strings.Contains(unknownMethod.Error.Message, "unknown method") {
		t.Fatalf("expected unknown method error, got %+v", unknownMethod)
	}

	var unknownTool rpcResp
	if err := dec.Decode(&unknownTool); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unknownTool.Error == nil || !strings.Contains(unknownTool.Error.Message, "unknown tool") {
		t.Fatalf("expected unknown tool error, got %+v", unknownTool)
	}
}

func TestArgHelpers(t *testing.T) {
	if got := str("x"); got != "x" {
		t.Fatalf("str = %q", got)
	}
	if got := str(42); got != "" {
		t.Fatalf("str on non-string = %q", got)
	}
	if got := asInt(float64(7)); got != 7 {
		t.Fatalf("asInt float = %d", got)
	}
	if got := asInt(nil); got != 0 {
		t.Fatalf("asInt nil = %d", got)
	}
	if got := asStrSlice([]any{"a", 1, "b"}); len(got) != 2 || got[1] != "b" {
		t.Fatalf("asStrSlice = %v", got)
	}
	if got := clampInt(100, 1, 25); got != 25 {
		t.Fatalf("clampInt high = %d", got)
	}
	if got := clampInt(0, 1, 25); got != 1 {
		t.Fatalf("clampInt low = %d", got)
	}
}
