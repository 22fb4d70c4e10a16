package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const (
	serverName    = "knowledge-assistant"
	serverVersion = "1.0.0"
)

// Server exposes the knowledge base and the answer router as MCP tools.
type Server struct {
	ingest    ports.KnowledgeIngestor
	knowledge ports.KnowledgeQueryService
	answers   ports.AnswerRouter
	chat      ports.ChatService
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func NewServer(
	ingest ports.KnowledgeIngestor,
	knowledge ports.KnowledgeQueryService,
	answers ports.AnswerRouter,
	chat ports.ChatService,
	logger *slog.Logger,
) (*Server, error) {
	if knowledge == nil || answers == nil {
		return nil, errors.New("mcp server requires knowledge and answer services")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ingest:    ingest,
		knowledge: knowledge,
		answers:   answers,
		chat:      chat,
		logger:    logger,
		mcp:       server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("knowledge_query",
		mcp.WithDescription("Answer a question from the ingested knowledge base only"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to look up")),
	), s.handleQuery)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question through the knowledge base, web search and generative fallback chain"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to answer")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("knowledge_stats",
		mcp.WithDescription("Report the number of indexed chunks and the retrieval method"),
	), s.handleStats)

	if s.ingest != nil {
		s.mcp.AddTool(mcp.NewTool("knowledge_ingest",
			mcp.WithDescription("Add a plain-text or markdown document to the knowledge base"),
			mcp.WithString("filename", mcp.Required(), mcp.Description("Document name, the extension selects the format")),
			mcp.WithString("text", mcp.Required(), mcp.Description("Document content")),
		), s.handleIngest)
	}

	if s.chat != nil {
		s.mcp.AddTool(mcp.NewTool("chat",
			mcp.WithDescription("Send a message in a conversation and record the exchange"),
			mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
			mcp.WithString("chat_id", mcp.Description("Conversation id, a new one is generated when empty")),
		), s.handleChat)

		s.mcp.AddTool(mcp.NewTool("chat_history_delete",
			mcp.WithDescription("Delete every recorded turn of a conversation"),
			mcp.WithString("chat_id", mcp.Required(), mcp.Description("Conversation id")),
		), s.handleHistoryDelete)

		s.mcp.AddTool(mcp.NewTool("chat_stats",
			mcp.WithDescription("Report the number of recorded messages and conversations"),
		), s.handleChatStats)
	}
}

// Serve speaks MCP over the given streams until ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	s.logger.Info("mcp_server_started", "transport", "stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.knowledge.Query(ctx, query)
	if err != nil {
		return s.toolError("knowledge_query", err), nil
	}
	return jsonResult(answer)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	decision, err := s.answers.Route(ctx, query)
	if err != nil {
		return s.toolError("ask", err), nil
	}
	return jsonResult(decision)
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.knowledge.Stats(ctx)
	if err != nil {
		return s.toolError("knowledge_stats", err), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.ingest.Ingest(ctx, []domain.SourceDocument{{Filename: filename, Content: []byte(text)}})
	if err != nil {
		return s.toolError("knowledge_ingest", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reply, err := s.chat.Chat(ctx, req.GetString("chat_id", ""), message)
	if err != nil {
		return s.toolError("chat", err), nil
	}
	return jsonResult(reply)
}

func (s *Server) handleHistoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := req.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deleted, err := s.chat.DeleteHistory(ctx, chatID)
	if err != nil {
		return s.toolError("chat_history_delete", err), nil
	}
	return jsonResult(map[string]any{"chat_id": chatID, "deleted": deleted})
}

func (s *Server) handleChatStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.chat.HistoryStats(ctx)
	if err != nil {
		return s.toolError("chat_stats", err), nil
	}
	return jsonResult(stats)
}

// toolError reports a failed call to the client as a tool result. Only
// unexpected failures are logged.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		s.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
