// Package hook provides the lifecycle hook system the memory subsystem
// attaches to: hooks observe tool activity, session boundaries, and prompt
// submission. Hook failures are logged and never propagate to the host
// session.
package hook

import (
	"context"
	"log/slog"

	"github.com/mnemod/mnemod/pkg/record"
)

// Event identifies a lifecycle point hooks attach to.
type Event string

const (
	// EventToolPost fires after each tool invocation completes.
	EventToolPost Event = "tool:post"

	// EventSessionStart fires when a session opens.
	EventSessionStart Event = "session:start"

	// EventSessionEnd fires when a session closes.
	EventSessionEnd Event = "session:end"

	// EventPromptSubmit fires before a prompt is sent to the model.
	// Hooks here may contribute to the injected context block.
	EventPromptSubmit Event = "prompt:submit"
)

// Context carries data available to hooks during one pipeline execution.
type Context struct {
	SessionID string

	// Activity is non-nil for EventToolPost.
	Activity *record.ToolActivity

	// Prompt is set for EventPromptSubmit.
	Prompt string

	// ContextBlock receives the injected memory context. Written by the
	// governor hook during EventPromptSubmit.
	ContextBlock string

	// Metadata lets hooks communicate within a single execution.
	Metadata map[string]any

	Logger *slog.Logger
}

// Handler is the extension point interface for lifecycle interception.
type Handler interface {
	// Event returns the lifecycle point this handler attaches to.
	Event() Event

	// Priority determines execution order within an event.
	// Lower values run first.
	Priority() int

	// Name identifies the handler in logs.
	Name() string

	// Execute runs the handler logic.
	Execute(ctx context.Context, hctx *Context) error
}
