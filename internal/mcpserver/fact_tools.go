package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

func (s *Server) registerFactTools() {
	s.mcp.AddTool(mcp.NewTool("store_fact",
		mcp.WithDescription("Store a subject-predicate-object fact. Returns the fact id."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Fact subject")),
		mcp.WithString("predicate", mcp.Required(), mcp.Description("Fact predicate")),
		mcp.WithString("object", mcp.Description("Fact object")),
		mcp.WithString("provenance", mcp.Description("Where the fact came from")),
	), s.handleStoreFact)

	s.mcp.AddTool(mcp.NewTool("query_facts",
		mcp.WithDescription("Query facts by any combination of subject, predicate, object, and provenance."),
		mcp.WithString("subject", mcp.Description("Filter by subject")),
		mcp.WithString("predicate", mcp.Description("Filter by predicate")),
		mcp.WithString("object", mcp.Description("Filter by object")),
		mcp.WithString("provenance", mcp.Description("Filter by provenance")),
		mcp.WithString("since", mcp.Description("RFC3339 lower bound on creation time")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 50")),
	), s.handleQueryFacts)
}

func (s *Server) handleStoreFact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, err := req.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	predicate, err := req.RequireString("predicate")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.store.PutFact(ctx, record.Fact{
		Subject:    subject,
		Predicate:  predicate,
		Object:     req.GetString("object", ""),
		Provenance: req.GetString("provenance", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) handleQueryFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := store.FactQuery{
		Subject:    req.GetString("subject", ""),
		Predicate:  req.GetString("predicate", ""),
		Object:     req.GetString("object", ""),
		Provenance: req.GetString("provenance", ""),
		Limit:      req.GetInt("limit", 50),
	}

	var err error
	if q.Since, err = timeParam(req, "since"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	facts, err := s.store.QueryFacts(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(facts)
}

func timeParam(req mcp.CallToolRequest, name string) (time.Time, error) {
	raw := req.GetString(name, "")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return t, nil
}
