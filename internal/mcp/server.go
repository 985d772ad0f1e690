package mcp

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "gamesearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	catalog *catalog.Catalog
	storage storage.Storage
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance. The caller owns cat's
// embedder and store and closes them after Serve returns.
func NewServer(cat *catalog.Catalog, store storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		catalog: cat,
		storage: store,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until ctx is done or the
// client disconnects
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO serves MCP over the given reader and writer
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(&zapWriter{logger: s.logger}, "", 0))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	for _, t := range searchTools {
		def, _ := catalog.Lookup(t.collection)
		s.mcp.AddTool(searchTool(t.name, def), s.logged(t.name, s.handleSearch(t.collection)))
	}

	events, _ := catalog.Lookup(catalog.Events)
	s.mcp.AddTool(getEventsTool(events), s.logged(ToolGetEvents, s.handleGetEvents))
	s.mcp.AddTool(getStatusTool(), s.logged(ToolGetStatus, s.handleGetStatus))
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// logged wraps a handler with a per-call log line
func (s *Server) logged(name string, next toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, request)

		fields := []zap.Field{
			zap.String("tool", name),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			s.logger.Warn("tool call failed", append(fields, zap.Error(err))...)
		} else {
			s.logger.Info("tool call", fields...)
		}
		return result, err
	}
}

// zapWriter adapts the stdio server's error logger to zap
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Write(p []byte) (int, error) {
	w.logger.Error("mcp transport", zap.ByteString("message", p))
	return len(p), nil
}
