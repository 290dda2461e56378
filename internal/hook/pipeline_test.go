package hook

import (
	"context"
	"errors"
	"testing"
)

type recordingHandler struct {
	event    Event
	priority int
	name     string
	err      error
	calls    *[]string
}

func (h *recordingHandler) Event() Event  { return h.event }
func (h *recordingHandler) Priority() int { return h.priority }
func (h *recordingHandler) Name() string  { return h.name }

func (h *recordingHandler) Execute(_ context.Context, _ *Context) error {
	*h.calls = append(*h.calls, h.name)
	return h.err
}

func TestRunOrdersByPriority(t *testing.T) {
	var calls []string
	p := NewPipeline()
	p.Register(&recordingHandler{event: EventToolPost, priority: 150, name: "capture", calls: &calls})
	p.Register(&recordingHandler{event: EventToolPost, priority: 100, name: "boundary", calls: &calls})

	p.Run(context.Background(), EventToolPost, &Context{})

	if len(calls) != 2 || calls[0] != "boundary" || calls[1] != "capture" {
		t.Errorf("calls = %v, want [boundary capture]", calls)
	}
}

func TestRunRegistrationOrderBreaksTies(t *testing.T) {
	var calls []string
	p := NewPipeline()
	p.Register(&recordingHandler{event: EventSessionEnd, priority: 100, name: "first", calls: &calls})
	p.Register(&recordingHandler{event: EventSessionEnd, priority: 100, name: "second", calls: &calls})

	p.Run(context.Background(), EventSessionEnd, &Context{})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestRunFiltersByEvent(t *testing.T) {
	var calls []string
	p := NewPipeline()
	p.Register(&recordingHandler{event: EventToolPost, priority: 100, name: "tool", calls: &calls})
	p.Register(&recordingHandler{event: EventSessionStart, priority: 100, name: "start", calls: &calls})

	p.Run(context.Background(), EventSessionStart, &Context{})

	if len(calls) != 1 || calls[0] != "start" {
		t.Errorf("calls = %v, want [start]", calls)
	}
}

func TestRunContinuesAfterError(t *testing.T) {
	var calls []string
	p := NewPipeline()
	p.Register(&recordingHandler{
		event: EventPromptSubmit, priority: 10, name: "failing",
		err: errors.New("boom"), calls: &calls,
	})
	p.Register(&recordingHandler{event: EventPromptSubmit, priority: 20, name: "after", calls: &calls})

	p.Run(context.Background(), EventPromptSubmit, &Context{})

	if len(calls) != 2 || calls[1] != "after" {
		t.Errorf("calls = %v, handler after failure skipped", calls)
	}
}

func TestRunUnknownEventNoop(t *testing.T) {
	p := NewPipeline()
	// Must not panic with nothing registered.
	p.Run(context.Background(), EventSessionEnd, &Context{})
}

func TestContextCarriesMutations(t *testing.T) {
	p := NewPipeline()
	p.Register(&setterHandler{})
	p.Register(&readerHandler{t: t})

	p.Run(context.Background(), EventToolPost, &Context{Metadata: map[string]any{}})
}

type setterHandler struct{}

func (setterHandler) Event() Event  { return EventToolPost }
func (setterHandler) Priority() int { return 10 }
func (setterHandler) Name() string  { return "setter" }
func (setterHandler) Execute(_ context.Context, hctx *Context) error {
	hctx.Metadata["boundary"] = true
	return nil
}

type readerHandler struct{ t *testing.T }

func (readerHandler) Event() Event  { return EventToolPost }
func (readerHandler) Priority() int { return 20 }
func (readerHandler) Name() string  { return "reader" }
func (h readerHandler) Execute(_ context.Context, hctx *Context) error {
	if v, _ := hctx.Metadata["boundary"].(bool); !v {
		h.t.Error("metadata set by earlier handler not visible")
	}
	return nil
}
