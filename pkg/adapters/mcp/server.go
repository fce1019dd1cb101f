// Package mcp exposes the pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool and resource names.
const (
	ToolExtractReminders = "extract_reminders"
	ToolGetRun           = "get_run"
	ResourceRuns         = "tickler://runs"
)

// Engine runs one input through the pipeline.
type Engine interface {
	Run(ctx context.Context, input domain.RawInput) (*domain.RunResult, error)
}

// Option configures the Server.
type Option func(*Server)

// WithHistory enables the get_run tool and the runs resource.
func WithHistory(store ports.RunStore) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithMaxInputSize rejects raw_body values longer than n bytes. Zero disables the check.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	history   ports.RunStore
	maxInput  int
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		maxInput:  domain.DefaultMaxInputSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("tickler-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if s.history != nil {
		s.registerResources()
	}
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	extract := mcp.NewTool(ToolExtractReminders,
		mcp.WithDescription("Extract calendar reminders from free-form text and send an invitation for each one."),
		mcp.WithString("raw_body", mcp.Required(), mcp.Description("The text to process, e.g. an email or a note")),
		mcp.WithOutputSchema[domain.RunRecord](),
	)
	s.mcpServer.AddTool(extract, mcp.NewStructuredToolHandler(s.handleExtract))

	if s.history == nil {
		return
	}
	getRun := mcp.NewTool(ToolGetRun,
		mcp.WithDescription("Read a stored run by ID."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("The run ID returned by extract_reminders")),
		mcp.WithOutputSchema[domain.RunRecord](),
	)
	s.mcpServer.AddTool(getRun, mcp.NewStructuredToolHandler(s.handleGetRun))
}

// handleExtract returns the run record for completed and failed runs alike;
// the record's state and error fields carry the outcome.
func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.RunRecord, error) {
	raw, ok := args["raw_body"].(string)
	if !ok {
		return domain.RunRecord{}, errors.New("raw_body must be a string")
	}

	input := domain.RawInput{Text: raw}
	if err := input.Validate(s.maxInput); err != nil {
		return domain.RunRecord{}, err
	}
	result, err := s.engine.Run(ctx, input)
	if result == nil {
		return domain.RunRecord{}, fmt.Errorf("run failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("MCP run failed", "run_id", result.RunID, "error", err)
	}
	return *domain.NewRunRecord(input, result), nil
}

func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.RunRecord, error) {
	id, _ := args["run_id"].(string)
	rec, err := s.history.Load(ctx, id)
	if err != nil {
		return domain.RunRecord{}, err
	}
	return *rec, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ResourceRuns, "Stored run IDs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.history.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ResourceRuns,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
