// Package mcp exposes the run engine as JSON-RPC 2.0 tools over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stevehiehn/orquestator/internal/state"
	"github.com/stevehiehn/orquestator/internal/store"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Runs is the part of the engine the server drives.
type Runs interface {
	Start(ctx context.Context, name string) (string, error)
	Status(ctx context.Context, id string) (*state.Run, error)
	List(ctx context.Context, filter store.Filter) ([]*state.Run, error)
	Workflows() ([]string, error)
}

// Server answers one request per input line. Runs started through it keep
// executing in the server process after the response is written.
type Server struct {
	Runs    Runs
	Logger  *slog.Logger
	Version string

	mu sync.Mutex // serializes writes
}

// NewServer creates a stdio tool server.
func NewServer(runs Runs, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Runs: runs, Logger: logger, Version: version}
}

// Serve reads requests from r until EOF or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.Logger.Debug("unparseable request", "error", err)
			s.write(w, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: codeParseError, Message: "Parse error"},
			})
			continue
		}
		// notifications get no response
		if req.ID == nil && req.Method == "notifications/initialized" {
			continue
		}

		resp := s.dispatch(ctx, req)
		resp.JSONRPC = "2.0"
		resp.ID = req.ID
		s.write(w, resp)
	}
	return scanner.Err()
}

func (s *Server) write(w io.Writer, resp *JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.Logger.Error("encoding response", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(w, "%s\n", data)
}
