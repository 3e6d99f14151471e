package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stevehiehn/orquestator/internal/action"
	"github.com/stevehiehn/orquestator/internal/engine"
	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/logging"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
	"github.com/stevehiehn/orquestator/internal/workflow"
)

type mapSource map[string]*workflow.Workflow

func (m mapSource) Load(name string) (*workflow.Workflow, error) {
	wf, ok := m[name]
	if !ok {
		return nil, runerrors.NewWorkflowNotFound(name)
	}
	return wf, nil
}

func (m mapSource) List() ([]string, error) {
	return []string{"deploy", "smoke"}, nil
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	reg := action.NewRegistry()
	reg.Logger = logging.NewForTest()
	reg.Register("noop", action.Noop{})
	src := mapSource{
		"deploy": {Steps: []workflow.Step{{"type": "noop", "name": "a"}}},
		"smoke":  {Steps: []workflow.Step{{"type": "noop", "name": "b", "code": 1}}},
	}
	e := engine.New(store.NewMemoryStore(), src, reg, engine.Options{Logger: logging.NewForTest()})
	return NewServer(e, logging.NewForTest(), "test"), e
}

func call(t *testing.T, s *Server, method string, params any) *JSONRPCResponse {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		raw = b
	}
	return s.dispatch(context.Background(), JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	resp := call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %s", resp.Error.Message)
	}
	m := resp.Result.(map[string]any)
	content := m["content"].([]map[string]any)
	isErr, _ := m["isError"].(bool)
	return content[0]["text"].(string), isErr
}

func TestInitializeResponse(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "initialize", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	m := resp.Result.(map[string]any)
	if m["protocolVersion"] != "2024-11-05" {
		t.Errorf("unexpected protocol version: %v", m["protocolVersion"])
	}
	info := m["serverInfo"].(map[string]any)
	if info["name"] != "orquestator" || info["version"] != "test" {
		t.Errorf("unexpected server info: %v", info)
	}
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "tools/list", nil)
	list := resp.Result.(map[string]any)["tools"].([]toolDef)
	want := map[string]bool{"workflow.start": false, "run.status": false, "run.list": false, "workflow.list": false}
	for _, tool := range list {
		want[tool.Name] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected tool %s in list", name)
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "resources/list", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", resp)
	}
}

func TestUnknownTool(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "tools/call", map[string]any{"name": "plan.run"})
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "plan.run") {
		t.Errorf("expected unknown tool error, got %+v", resp)
	}
}

func TestStartThenStatus(t *testing.T) {
	s, e := newTestServer(t)

	text, isErr := callTool(t, s, "workflow.start", map[string]any{"name": "deploy"})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var started map[string]string
	if err := json.Unmarshal([]byte(text), &started); err != nil {
		t.Fatal(err)
	}
	id := started["run_id"]
	if id == "" {
		t.Fatalf("expected run_id in %s", text)
	}
	e.Wait()

	text, isErr = callTool(t, s, "run.status", map[string]any{"run_id": id})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var run state.Run
	if err := json.Unmarshal([]byte(text), &run); err != nil {
		t.Fatal(err)
	}
	if run.ID != id || run.Status != state.StatusCompleted || len(run.Log) != 1 {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestToolErrors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"workflow.start", map[string]any{}, "name is required"},
		{"workflow.start", map[string]any{"name": "nope"}, "nope"},
		{"run.status", map[string]any{}, "run_id is required"},
		{"run.status", map[string]any{"run_id": "missing"}, "missing"},
		{"run.list", map[string]any{"status": "paused"}, "unknown status"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.want, func(t *testing.T) {
			text, isErr := callTool(t, s, tt.tool, tt.args)
			if !isErr || !strings.Contains(text, tt.want) {
				t.Errorf("expected error containing %q, got %q (isError=%v)", tt.want, text, isErr)
			}
		})
	}
}

func TestRunListFilter(t *testing.T) {
	s, e := newTestServer(t)
	callTool(t, s, "workflow.start", map[string]any{"name": "deploy"})
	callTool(t, s, "workflow.start", map[string]any{"name": "smoke"})
	e.Wait()

	text, _ := callTool(t, s, "run.list", map[string]any{"status": "failed"})
	var runs []state.Run
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Name != "smoke" {
		t.Errorf("expected only the failed smoke run, got %+v", runs)
	}

	text, _ = callTool(t, s, "run.list", nil)
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestWorkflowList(t *testing.T) {
	s, _ := newTestServer(t)
	text, _ := callTool(t, s, "workflow.list", nil)
	if text != "{\n  \"workflows\": [\n    \"deploy\",\n    \"smoke\"\n  ]\n}" {
		t.Errorf("unexpected workflow list %q", text)
	}
}

func TestServeLineProtocol(t *testing.T) {
	s, _ := newTestServer(t)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		``,
		`{"jsonrpc":"2.0","id":"two","method":"ping"}`,
	}, "\n")
	var out strings.Builder
	if err := s.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	var resps []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid response line %q: %v", sc.Text(), err)
		}
		resps = append(resps, m)
	}
	if len(resps) != 3 {
		t.Fatalf("expected 3 responses, got %d: %s", len(resps), out.String())
	}
	if resps[0]["id"] != float64(1) || resps[0]["result"] == nil {
		t.Errorf("unexpected initialize response %v", resps[0])
	}
	if errObj, _ := resps[1]["error"].(map[string]any); errObj["code"] != float64(codeParseError) {
		t.Errorf("expected parse error, got %v", resps[1])
	}
	if resps[2]["id"] != "two" {
		t.Errorf("expected id echoed, got %v", resps[2])
	}
}
