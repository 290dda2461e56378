package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

// mcpTiers is the sensitivity context for MCP searches. The MCP client
// is the memory owner's own agent, so private records are visible; secret
// ones stay excluded from retrieval surfaces.
var mcpTiers = store.SensitivityContext{AllowPrivate: true}

func (s *Server) registerSearchTools() {
	s.mcp.AddTool(mcp.NewTool("search_memories",
		mcp.WithDescription("Full-text search over memories with composite relevance scoring."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("category", mcp.Description("Filter by category")),
		mcp.WithString("type", mcp.Description("Filter by type")),
		mcp.WithString("project", mcp.Description("Filter by project")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 20")),
		mcp.WithNumber("min_score", mcp.Description("Score floor in [0,1], default 0.35")),
	), s.handleSearchMemories)

	s.mcp.AddTool(mcp.NewTool("search_by_file",
		mcp.WithDescription("Find memories that read or modified a file path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path or suffix")),
	), s.handleSearchByFile)

	s.mcp.AddTool(mcp.NewTool("search_by_concept",
		mcp.WithDescription("Find memories tagged with a concept."),
		mcp.WithString("concept", mcp.Required(), mcp.Description("Concept name")),
	), s.handleSearchByConcept)

	s.mcp.AddTool(mcp.NewTool("get_timeline",
		mcp.WithDescription("List memories in chronological order within an optional time range."),
		mcp.WithString("after", mcp.Description("RFC3339 lower bound")),
		mcp.WithString("before", mcp.Description("RFC3339 upper bound")),
		mcp.WithString("session_id", mcp.Description("Filter by session")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 100")),
	), s.handleTimeline)
}

func (s *Server) handleSearchMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.store.Search(ctx, store.Query{
		Text:        text,
		Category:    req.GetString("category", ""),
		Type:        record.Type(req.GetString("type", "")),
		Project:     req.GetString("project", ""),
		Limit:       req.GetInt("limit", 20),
		MinScore:    req.GetFloat("min_score", 0),
		Sensitivity: mcpTiers,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) handleSearchByFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.store.SearchByFile(ctx, path, mcpTiers)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records)
}

func (s *Server) handleSearchByConcept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	concept, err := req.RequireString("concept")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.store.SearchByConcept(ctx, concept, mcpTiers)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records)
}

func (s *Server) handleTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := store.Query{
		SessionID:   req.GetString("session_id", ""),
		Limit:       req.GetInt("limit", 100),
		Sensitivity: mcpTiers,
	}

	var err error
	if q.CreatedAfter, err = timeParam(req, "after"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.CreatedBefore, err = timeParam(req, "before"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := s.store.Timeline(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records)
}
