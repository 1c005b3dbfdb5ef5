package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sinahosseinzadeh97/clipqa/internal/vectorindex"
)

// NewMCPServer exposes the QA pipeline as MCP tools so agent clients can
// query the ingested video library directly.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"clipqa",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("clipqa — question answering over transcribed videos with timestamped citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_library",
			mcp.WithDescription("Ask a question about the ingested videos and get a grounded answer with timestamped references."),
			mcp.WithString("question", mcp.Description("Natural-language question"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("How many segments to retrieve (default 5)")),
		),
		mcpAskLibrary(deps),
	)

	s.AddTool(
		mcp.NewTool("list_videos",
			mcp.WithDescription("List the videos currently in the library."),
		),
		mcpListVideos(deps),
	)

	return s
}

func mcpAskLibrary(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit <= 0 {
			limit = deps.TopK
		}
		if limit > 50 {
			limit = 50
		}

		hits, err := deps.Retriever.Retrieve(ctx, question, limit)
		if err != nil {
			if errors.Is(err, vectorindex.ErrNotBuilt) {
				return mcpError("no videos have been ingested yet"), nil
			}
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}

		answer := deps.Answerer.GenerateAnswer(ctx, question, hits)
		b, err := json.Marshal(answer)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListVideos(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		videos, err := deps.Catalog.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing videos failed: %v", err)), nil
		}
		if len(videos) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(videos)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal videos: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
