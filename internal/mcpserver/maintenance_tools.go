package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemod/mnemod/pkg/record"
)

func (s *Server) registerMaintenanceTools() {
	s.mcp.AddTool(mcp.NewTool("purge_expired",
		mcp.WithDescription("Delete every TTL-expired memory. Returns the count removed."),
	), s.handlePurgeExpired)

	s.mcp.AddTool(mcp.NewTool("summarize_old",
		mcp.WithDescription("Condense the old records of a category into one summary record. The originals are kept."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category to summarize")),
		mcp.WithString("older_than", mcp.Description("Minimum age, Go duration. Default 168h")),
	), s.handleSummarizeOld)
}

func (s *Server) handlePurgeExpired(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	purged, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("purged %d expired records", purged)), nil
}

func (s *Server) handleSummarizeOld(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var olderThan time.Duration
	if raw := req.GetString("older_than", ""); raw != "" {
		if olderThan, err = time.ParseDuration(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid older_than %q: %v", raw, err)), nil
		}
	}

	id, err := s.store.SummarizeOld(ctx, category, olderThan)
	if errors.Is(err, record.ErrNotFound) {
		return mcp.NewToolResultError("not enough old records in category " + category), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}
