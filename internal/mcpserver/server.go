// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/profileservice"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *profileservice.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *profileservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List recording profiles, most recently recorded first."),
		mcp.WithNumber("limit", mcp.Description("Max profiles to return")),
	), s.listProfiles)

	s.mcp.AddTool(mcp.NewTool("get_profile",
		mcp.WithDescription("Get a profile with its recordings and transcribed chunks."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Profile id")),
	), s.getProfile)

	s.mcp.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Full-text search through chunk titles and transcripts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchChunks)

	s.mcp.AddTool(mcp.NewTool("update_chunk_note",
		mcp.WithDescription("Attach or replace the user note on a chunk."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Chunk id")),
		mcp.WithString("note", mcp.Required(), mcp.Description("Note text (empty string clears)")),
	), s.updateChunkNote)

	s.mcp.AddTool(mcp.NewTool("set_chunk_bookmark",
		mcp.WithDescription("Bookmark or unbookmark a chunk."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Chunk id")),
		mcp.WithBoolean("bookmarked", mcp.Required(), mcp.Description("Bookmark state")),
	), s.setChunkBookmark)

	s.mcp.AddTool(mcp.NewTool("retry_recording",
		mcp.WithDescription("Rerun transcription and segmentation for a failed recording."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recording id")),
	), s.retryRecording)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)
	profiles, total, err := s.svc.ListProfiles(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"profiles": profiles, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile, err := s.svc.GetProfile(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("profile %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(profile, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) updateChunkNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunk, err := s.svc.UpdateChunk(ctx, int64(id), &note, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("chunk %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(chunk, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setChunkBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bookmarked, err := req.RequireBool("bookmarked")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunk, err := s.svc.UpdateChunk(ctx, int64(id), nil, &bookmarked)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("chunk %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(chunk, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) retryRecording(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Retry(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recording %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
