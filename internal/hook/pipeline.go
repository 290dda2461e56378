package hook

import (
	"context"
	"slices"
	"sync"
)

// Pipeline manages handler registration and execution.
// Handlers are grouped by event and sorted by (priority, registration order).
// Thread-safe: registrations use a write lock, executions use a read lock.
type Pipeline struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
	// order tracks registration sequence for stable sorting.
	order map[Handler]int
	seq   int
}

// NewPipeline creates a new empty hook pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		handlers: make(map[Event][]Handler),
		order:    make(map[Handler]int),
	}
}

// Register adds a handler to the pipeline. Handlers within the same event
// are sorted by priority (ascending), with registration order as tiebreaker.
func (p *Pipeline) Register(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ev := h.Event()
	p.order[h] = p.seq
	p.seq++

	p.handlers[ev] = append(p.handlers[ev], h)
	slices.SortStableFunc(p.handlers[ev], func(a, b Handler) int {
		if a.Priority() != b.Priority() {
			return a.Priority() - b.Priority()
		}
		return p.order[a] - p.order[b]
	})
}

// Run executes all handlers registered for event in order. Errors are
// logged and never stop the remaining handlers.
func (p *Pipeline) Run(ctx context.Context, event Event, hctx *Context) {
	p.mu.RLock()
	handlers := p.handlers[event]
	p.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Execute(ctx, hctx); err != nil && hctx.Logger != nil {
			hctx.Logger.Warn("hook error",
				"event", string(event),
				"hook", h.Name(),
				"priority", h.Priority(),
				"error", err,
			)
		}
	}
}
