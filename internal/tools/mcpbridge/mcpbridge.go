// Package mcpbridge imports tools served by external MCP servers into the
// local tool registry.
//
// Servers are connected via stdio or streamable-HTTP transports using the
// official MCP Go SDK. Each discovered tool is wrapped in a handler that
// routes the call back to its server session, so the response pipeline treats
// bridged tools exactly like built-in ones.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/farevoice/farevoice/internal/tools"
	"github.com/farevoice/farevoice/pkg/provider/llm"
)

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes one external MCP server to bridge.
type ServerConfig struct {
	// Name identifies the server in logs and errors.
	Name string

	// Transport selects stdio or streamable-http.
	Transport Transport

	// Command is the subprocess command line for stdio transport, split on
	// spaces into executable and arguments.
	Command string

	// Env holds additional environment variables for stdio subprocesses.
	Env map[string]string

	// URL is the endpoint address for streamable-http transport.
	URL string
}

// Bridge maintains live MCP server sessions and registers their tools.
type Bridge struct {
	mu       sync.Mutex
	client   *mcpsdk.Client
	sessions map[string]*mcpsdk.ClientSession
}

// New returns a Bridge ready to connect servers.
func New() *Bridge {
	return &Bridge{
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "farevoice", Version: "1.0.0"},
			nil,
		),
		sessions: make(map[string]*mcpsdk.ClientSession),
	}
}

// Connect establishes a session to the server described by cfg, discovers its
// tool catalogue, and registers every tool with reg.
func (b *Bridge) Connect(ctx context.Context, cfg ServerConfig, reg *tools.Registry) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcpbridge: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcpbridge: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case TransportStdio:
		parts := strings.Fields(cfg.Command)
		if len(parts) == 0 {
			return fmt.Errorf("mcpbridge: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}
	case TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcpbridge: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := b.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcpbridge: failed to connect to server %q: %w", cfg.Name, err)
	}

	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcpbridge: failed to list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	for _, mcpTool := range discovered {
		t := tools.Tool{
			Definition: llm.ToolDefinition{
				Name:        mcpTool.Name,
				Description: mcpTool.Description,
				Parameters:  schemaToMap(mcpTool.InputSchema),
			},
			Handler: makeHandler(session, cfg.Name, mcpTool.Name),
		}
		if err := reg.Register(t); err != nil {
			_ = session.Close()
			return fmt.Errorf("mcpbridge: register tool from server %q: %w", cfg.Name, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.sessions[cfg.Name]; ok {
		_ = old.Close()
	}
	b.sessions[cfg.Name] = session
	return nil
}

// makeHandler wraps an MCP tool call in the registry handler signature. Text
// content blocks of the result are concatenated into the result string; a
// result marked as an application-level error surfaces as a Go error so the
// pipeline records it the same way as a built-in tool failure.
func makeHandler(session *mcpsdk.ClientSession, serverName, toolName string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var argsMap map[string]any
		if args != "" && args != "{}" {
			if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
				return "", fmt.Errorf("mcpbridge: %s: invalid args JSON: %w", toolName, err)
			}
		}

		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
			Name:      toolName,
			Arguments: argsMap,
		})
		if err != nil {
			return "", fmt.Errorf("mcpbridge: call to %s on server %q failed: %w", toolName, serverName, err)
		}

		var sb strings.Builder
		for _, c := range res.Content {
			if tc, ok := c.(*mcpsdk.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
		if res.IsError {
			return "", fmt.Errorf("mcpbridge: %s reported an error: %s", toolName, sb.String())
		}
		return sb.String(), nil
	}
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// Close shuts down all server sessions.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, session := range b.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcpbridge: error closing server %q: %w", name, err)
		}
		delete(b.sessions, name)
	}
	return firstErr
}
