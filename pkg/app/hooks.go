package app

import (
	"context"

	"github.com/mnemod/mnemod/internal/hook"
)

// Hook priorities within each lifecycle event. Boundary detection runs
// before capture so the classifier can tag boundary-adjacent records; the
// session summary is written before the maintenance engines run.
const (
	prioBoundary       = 100
	prioCapture        = 150
	prioCaptureInit    = 50
	prioCaptureSummary = 100
	prioConsolidation  = 200
	prioCompression    = 300
	prioGovernor       = 50
)

const metaBoundary = "boundary"

func (a *App) buildPipeline() {
	a.pipeline = hook.NewPipeline()
	a.pipeline.Register(&boundaryHook{app: a})
	a.pipeline.Register(&captureHook{app: a})
	a.pipeline.Register(&captureInitHook{app: a})
	a.pipeline.Register(&captureSummaryHook{app: a})
	a.pipeline.Register(&consolidationHook{app: a})
	a.pipeline.Register(&compressionHook{app: a})
	a.pipeline.Register(&governorHook{app: a})
}

// boundaryHook feeds each activity to the boundary detector and marks the
// hook context for downstream capture.
type boundaryHook struct{ app *App }

func (h *boundaryHook) Event() hook.Event { return hook.EventToolPost }
func (h *boundaryHook) Priority() int     { return prioBoundary }
func (h *boundaryHook) Name() string      { return "boundary" }

func (h *boundaryHook) Execute(ctx context.Context, hctx *hook.Context) error {
	if hctx.Activity == nil {
		return nil
	}
	if h.app.detector.Observe(ctx, *hctx.Activity) {
		hctx.Metadata[metaBoundary] = true
	}
	return nil
}

// captureHook classifies and stores the activity.
type captureHook struct{ app *App }

func (h *captureHook) Event() hook.Event { return hook.EventToolPost }
func (h *captureHook) Priority() int     { return prioCapture }
func (h *captureHook) Name() string      { return "capture" }

func (h *captureHook) Execute(ctx context.Context, hctx *hook.Context) error {
	if hctx.Activity == nil {
		return nil
	}
	crossed, _ := hctx.Metadata[metaBoundary].(bool)
	h.app.classifier.OnActivity(ctx, *hctx.Activity, crossed)
	return nil
}

// captureInitHook opens classifier state for a fresh session.
type captureInitHook struct{ app *App }

func (h *captureInitHook) Event() hook.Event { return hook.EventSessionStart }
func (h *captureInitHook) Priority() int     { return prioCaptureInit }
func (h *captureInitHook) Name() string      { return "capture-init" }

func (h *captureInitHook) Execute(_ context.Context, hctx *hook.Context) error {
	h.app.classifier.StartSession(hctx.SessionID)
	return nil
}

// captureSummaryHook writes the session summary and drops per-session
// detector state.
type captureSummaryHook struct{ app *App }

func (h *captureSummaryHook) Event() hook.Event { return hook.EventSessionEnd }
func (h *captureSummaryHook) Priority() int     { return prioCaptureSummary }
func (h *captureSummaryHook) Name() string      { return "capture-summary" }

func (h *captureSummaryHook) Execute(ctx context.Context, hctx *hook.Context) error {
	h.app.classifier.EndSession(ctx, hctx.SessionID)
	h.app.detector.EndSession(hctx.SessionID)
	return nil
}

// consolidationHook runs an importance consolidation pass at session end.
type consolidationHook struct{ app *App }

func (h *consolidationHook) Event() hook.Event { return hook.EventSessionEnd }
func (h *consolidationHook) Priority() int     { return prioConsolidation }
func (h *consolidationHook) Name() string      { return "consolidation" }

func (h *consolidationHook) Execute(ctx context.Context, _ *hook.Context) error {
	_, err := h.app.consolidator.Run(ctx)
	return err
}

// compressionHook runs a compression pass after consolidation.
type compressionHook struct{ app *App }

func (h *compressionHook) Event() hook.Event { return hook.EventSessionEnd }
func (h *compressionHook) Priority() int     { return prioCompression }
func (h *compressionHook) Name() string      { return "compression" }

func (h *compressionHook) Execute(ctx context.Context, _ *hook.Context) error {
	_, err := h.app.compressor.Run(ctx)
	return err
}

// governorHook fills the memory context block on prompt submission.
type governorHook struct{ app *App }

func (h *governorHook) Event() hook.Event { return hook.EventPromptSubmit }
func (h *governorHook) Priority() int     { return prioGovernor }
func (h *governorHook) Name() string      { return "governor" }

func (h *governorHook) Execute(ctx context.Context, hctx *hook.Context) error {
	hctx.ContextBlock = h.app.governor.Build(ctx, hctx.SessionID, hctx.Prompt)
	return nil
}
