package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

// directWriteTrust is the trust assigned to records stored explicitly
// through a tool call, above the automatic capture default.
const directWriteTrust = 0.7

func (s *Server) registerMemoryTools() {
	s.mcp.AddTool(mcp.NewTool("store_memory",
		mcp.WithDescription("Store a memory record. Returns the record id."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The memory content")),
		mcp.WithString("title", mcp.Description("Short title")),
		mcp.WithString("subtitle", mcp.Description("One-line elaboration of the title")),
		mcp.WithString("category", mcp.Description("Free-form grouping key")),
		mcp.WithString("type", mcp.Description("One of bugfix, feature, refactor, change, discovery, decision")),
		mcp.WithNumber("importance", mcp.Description("Importance in [0,1], default 0.5")),
		mcp.WithString("sensitivity", mcp.Description("One of public, private, secret. Default public")),
		mcp.WithArray("tags", mcp.Description("Tags"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("concepts", mcp.Description("Concept names"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("files_read", mcp.Description("Files read"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("files_modified", mcp.Description("Files modified"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("session_id", mcp.Description("Originating session")),
		mcp.WithString("project", mcp.Description("Project name")),
		mcp.WithString("ttl", mcp.Description("Time to live, Go duration such as 720h. Empty means no expiry")),
	), s.handleStoreMemory)

	s.mcp.AddTool(mcp.NewTool("get_memory",
		mcp.WithDescription("Fetch a memory by id. Counts as an access."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.handleGetMemory)

	s.mcp.AddTool(mcp.NewTool("update_memory",
		mcp.WithDescription("Partially update a memory. Only provided fields change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("type", mcp.Description("New type")),
		mcp.WithNumber("importance", mcp.Description("New importance in [0,1]")),
		mcp.WithString("sensitivity", mcp.Description("New sensitivity")),
		mcp.WithArray("tags", mcp.Description("Replacement tags"), mcp.Items(map[string]any{"type": "string"})),
	), s.handleUpdateMemory)

	s.mcp.AddTool(mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory by id. Deleting an absent id succeeds."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.handleDeleteMemory)

	s.mcp.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List recent memories, optionally filtered."),
		mcp.WithString("category", mcp.Description("Filter by category")),
		mcp.WithString("type", mcp.Description("Filter by type")),
		mcp.WithString("project", mcp.Description("Filter by project")),
		mcp.WithString("session_id", mcp.Description("Filter by session")),
		mcp.WithNumber("limit", mcp.Description("Maximum results, default 50")),
	), s.handleListMemories)
}

func (s *Server) handleStoreMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.secrets != nil {
		content = s.secrets.Scrub(content)
	}

	m := record.Memory{
		Content:     content,
		Title:       req.GetString("title", ""),
		Subtitle:    req.GetString("subtitle", ""),
		Category:    req.GetString("category", ""),
		Type:        record.Type(req.GetString("type", "")),
		Importance:  req.GetFloat("importance", 0.5),
		Trust:       directWriteTrust,
		Sensitivity: record.Sensitivity(req.GetString("sensitivity", "")),
		Tags:        req.GetStringSlice("tags", nil),
		Concepts:    req.GetStringSlice("concepts", nil),
		FilesRead:   req.GetStringSlice("files_read", nil),
		FilesMod:    req.GetStringSlice("files_modified", nil),
		SessionID:   req.GetString("session_id", ""),
		Project:     req.GetString("project", ""),
	}

	if ttl := req.GetString("ttl", ""); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid ttl %q: %v", ttl, err)), nil
		}
		m.ExpiresAt = time.Now().Add(d)
	}

	id, err := s.store.Put(ctx, m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) handleGetMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	m, err := s.store.Get(ctx, id)
	if errors.Is(err, record.ErrNotFound) {
		return mcp.NewToolResultError("memory not found: " + id), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) handleUpdateMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var u store.Update
	if v := req.GetString("content", ""); v != "" {
		if s.secrets != nil {
			v = s.secrets.Scrub(v)
		}
		u.Content = &v
	}
	if v := req.GetString("title", ""); v != "" {
		u.Title = &v
	}
	if v := req.GetString("category", ""); v != "" {
		u.Category = &v
	}
	if v := req.GetString("type", ""); v != "" {
		t := record.Type(v)
		u.Type = &t
	}
	if v := req.GetFloat("importance", -1); v >= 0 {
		u.Importance = &v
	}
	if v := req.GetString("sensitivity", ""); v != "" {
		sv := record.Sensitivity(v)
		u.Sensitivity = &sv
	}
	if v := req.GetStringSlice("tags", nil); v != nil {
		u.Tags = &v
	}

	err = s.store.Apply(ctx, id, u)
	if errors.Is(err, record.ErrNotFound) {
		return mcp.NewToolResultError("memory not found: " + id), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("updated " + id), nil
}

func (s *Server) handleDeleteMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

func (s *Server) handleListMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.store.List(ctx, store.Query{
		Category:    req.GetString("category", ""),
		Type:        record.Type(req.GetString("type", "")),
		Project:     req.GetString("project", ""),
		SessionID:   req.GetString("session_id", ""),
		Limit:       req.GetInt("limit", 50),
		Sensitivity: store.SensitivityContext{AllowPrivate: true},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
