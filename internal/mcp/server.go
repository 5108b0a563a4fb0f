package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const protocolVersion = "2024-11-05"

// Server implements an MCP stdio server that delegates to the HTTP recall
// service.
type Server struct {
	serverURL string
	apiKey    string
	client    *http.Client
}

// NewServer creates a new MCP server. apiKey may be empty when the recall
// service runs without auth.
func NewServer(serverURL, apiKey string) *Server {
	return &Server{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run starts the stdio event loop. Blocks until stdin is closed.
func (s *Server) Run() error {
	scanner := bufio.NewScanner(os.Stdin)
	// Increase buffer for large messages
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, -32700, "parse error: "+err.Error())
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.writeResponse(resp)
		}
	}

	return scanner.Err()
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		// Notification, no response expected
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]string{}}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "method not found: " + req.Method},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools: &ToolCapabilities{},
			},
			ServerInfo: ServerInfo{
				Name:    "quantdesk-recall",
				Version: "1.0.0",
			},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolsListResult{Tools: ToolDefinitions()},
	}
}

func (s *Server) handleToolsCall(req *Request) *Response {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params")
	}

	var params CallToolParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "invalid params: "+err.Error())
	}

	result, isError := s.dispatchTool(params.Name, params.Arguments)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *Server) dispatchTool(name string, args map[string]any) (string, bool) {
	switch name {
	case "recall_memories":
		return s.toolRecall(args)
	case "format_context":
		return s.toolFormatContext(args)
	case "warm_cache":
		return s.toolWarmCache(args)
	case "cache_stats":
		return s.toolCacheStats()
	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

// --- Tool implementations (HTTP delegation) ---

func (s *Server) recallBody(args map[string]any) map[string]any {
	body := map[string]any{
		"query":     args["query"],
		"workspace": args["workspace"],
	}
	if v, ok := args["limit"]; ok {
		body["limit"] = v
	}
	if v, ok := args["minImportance"]; ok {
		body["minImportance"] = v
	}
	if v, ok := args["categories"]; ok {
		body["categories"] = v
	}
	if v, ok := args["symbols"]; ok {
		body["symbols"] = v
	}
	if v, ok := args["expandQuery"]; ok {
		body["expandQuery"] = v
	}
	return body
}

func (s *Server) toolRecall(args map[string]any) (string, bool) {
	return s.httpPost("/api/recall", s.recallBody(args))
}

func (s *Server) toolFormatContext(args map[string]any) (string, bool) {
	return s.httpPost("/api/recall/prompt", s.recallBody(args))
}

func (s *Server) toolWarmCache(args map[string]any) (string, bool) {
	body := map[string]any{
		"workspace": args["workspace"],
	}
	return s.httpPost("/api/warm", body)
}

func (s *Server) toolCacheStats() (string, bool) {
	return s.httpGet("/api/cache/stats")
}

// --- HTTP helpers ---

func (s *Server) httpPost(path string, body any) (string, bool) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("marshal error: %s", err), true
	}

	req, err := http.NewRequest("POST", s.serverURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *Server) httpGet(path string) (string, bool) {
	req, err := http.NewRequest("GET", s.serverURL+path, nil)
	if err != nil {
		return fmt.Sprintf("request error: %s", err), true
	}

	return s.do(req)
}

func (s *Server) do(req *http.Request) (string, bool) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("HTTP error: %s", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("read error: %s", err), true
	}

	if resp.StatusCode >= 400 {
		return string(respBody), true
	}

	return string(respBody), false
}

// --- Response helpers ---

func (s *Server) writeResponse(resp *Response) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(os.Stdout, "%s\n", data)
}

func (s *Server) writeError(id any, code int, message string) {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
	s.writeResponse(resp)
}

func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
