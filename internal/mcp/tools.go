package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
)

type toolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var tools = []toolDef{
	{
		Name:        "workflow.start",
		Description: "Start a run of the named workflow and return its run_id without waiting",
		InputSchema: objectSchema(map[string]any{"name": map[string]any{"type": "string"}}, "name"),
	},
	{
		Name:        "run.status",
		Description: "Return the stored record of a run",
		InputSchema: objectSchema(map[string]any{"run_id": map[string]any{"type": "string"}}, "run_id"),
	},
	{
		Name:        "run.list",
		Description: "List stored runs, optionally filtered by status",
		InputSchema: objectSchema(map[string]any{"status": map[string]any{
			"type": "string",
			"enum": []string{string(state.StatusPending), string(state.StatusRunning), string(state.StatusFailed), string(state.StatusCompleted)},
		}}),
	},
	{
		Name:        "workflow.list",
		Description: "List the workflows that can be started",
		InputSchema: objectSchema(map[string]any{}),
	},
}

func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return &JSONRPCResponse{Result: map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "orquestator", "version": s.Version},
		}}
	case "tools/list":
		return &JSONRPCResponse{Result: map[string]any{"tools": tools}}
	case "tools/call":
		return s.handleToolCall(ctx, req.Params)
	case "notifications/initialized", "ping":
		return &JSONRPCResponse{Result: map[string]any{}}
	default:
		return &JSONRPCResponse{Error: &RPCError{Code: codeMethodNotFound, Message: "Method not found"}}
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolArgs struct {
	Name   string `json:"name"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) *JSONRPCResponse {
	var tc toolCallParams
	if err := json.Unmarshal(params, &tc); err != nil {
		return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Invalid params"}}
	}
	var args toolArgs
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &args); err != nil {
			return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Invalid arguments: " + err.Error()}}
		}
	}

	logger := s.Logger.With("tool", tc.Name)
	var result any
	var err error
	switch tc.Name {
	case "workflow.start":
		result, err = s.toolStart(ctx, args)
	case "run.status":
		result, err = s.toolStatus(ctx, args)
	case "run.list":
		result, err = s.toolList(ctx, args)
	case "workflow.list":
		result, err = s.toolWorkflows()
	default:
		return &JSONRPCResponse{Error: &RPCError{Code: codeInvalidParams, Message: "Unknown tool: " + tc.Name}}
	}
	if err != nil {
		logger.DebugContext(ctx, "tool failed", "error", err)
		return &JSONRPCResponse{Result: toolError(err)}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &JSONRPCResponse{Result: toolError(err)}
	}
	return &JSONRPCResponse{Result: toolContent(string(data))}
}

func (s *Server) toolStart(ctx context.Context, args toolArgs) (any, error) {
	if args.Name == "" {
		return nil, runerrors.NewValidationError("name is required", "pass the workflow name")
	}
	id, err := s.Runs.Start(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	return map[string]string{"run_id": id}, nil
}

func (s *Server) toolStatus(ctx context.Context, args toolArgs) (any, error) {
	if args.RunID == "" {
		return nil, runerrors.NewValidationError("run_id is required", "use the id returned by workflow.start")
	}
	return s.Runs.Status(ctx, args.RunID)
}

func (s *Server) toolList(ctx context.Context, args toolArgs) (any, error) {
	var filter store.Filter
	if args.Status != "" {
		st := state.Status(args.Status)
		if !st.Valid() {
			return nil, runerrors.NewValidationError(fmt.Sprintf("unknown status %q", args.Status), "use pending, running, failed or completed")
		}
		filter.Status = []state.Status{st}
	}
	runs, err := s.Runs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*state.Run{}
	}
	return runs, nil
}

func (s *Server) toolWorkflows() (any, error) {
	names, err := s.Runs.Workflows()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return map[string][]string{"workflows": names}, nil
}

func toolContent(text string) map[string]any {
	return map[string]any{"content": []map[string]any{{"type": "text", "text": text}}}
}

func toolError(err error) map[string]any {
	res := toolContent(err.Error())
	res["isError"] = true
	return res
}
