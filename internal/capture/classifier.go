// Package capture turns tool activity into memory records. It classifies
// each observation, assigns an initial importance, generates titles,
// applies the memorability gate, and composes an end-of-session summary.
//
// Capture never aborts the host session: every sub-step failure is caught
// and logged locally.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mnemod/mnemod/internal/audit"
	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/internal/memscore"
	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/internal/sanitize"
	"github.com/mnemod/mnemod/pkg/record"
)

// Store is the subset of the memory store capture writes through.
type Store interface {
	Put(ctx context.Context, m record.Memory) (string, error)
}

// initialImportance assigns the starting importance per observation type.
// Values stay within the 0.35–0.80 capture band; consolidation moves them
// from there.
var initialImportance = map[record.Type]float64{
	record.TypeDecision:  0.80,
	record.TypeDiscovery: 0.75,
	record.TypeBugfix:    0.65,
	record.TypeFeature:   0.60,
	record.TypeRefactor:  0.50,
	record.TypeChange:    0.35,
}

// captureTrust is the trust assigned to automatically captured records;
// direct tool writes carry more.
const captureTrust = 0.5

// state is the per-session lifecycle position.
type state int

const (
	stateIdle state = iota
	stateActive
	stateSummarizing
)

// session accumulates activity between start and end.
type session struct {
	id         string
	project    string
	state      state
	startedAt  time.Time
	captured   int
	discarded  int
	boundaries int
	byType     map[record.Type]int
	filesRead  map[string]struct{}
	filesMod   map[string]struct{}
	highlights []string
}

// Config tunes the classifier.
type Config struct {
	// Threshold is the memorability gate. Defaults to memscore.DefaultThreshold.
	Threshold float64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Audit   *audit.Logger

	// Secrets scrubs content before storage. Nil disables scrubbing.
	Secrets *sanitize.Secrets

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Classifier is the capture stage. Safe for concurrent sessions.
type Classifier struct {
	store     Store
	scorer    *memscore.Scorer
	threshold float64
	secrets   *sanitize.Secrets
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *audit.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a Classifier writing through store.
func New(store Store, scorer *memscore.Scorer, cfg Config) *Classifier {
	if cfg.Threshold <= 0 {
		cfg.Threshold = memscore.DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Classifier{
		store:     store,
		scorer:    scorer,
		threshold: cfg.Threshold,
		secrets:   cfg.Secrets,
		logger:    cfg.Logger.With("component", "capture"),
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		now:       cfg.Now,
		sessions:  make(map[string]*session),
	}
}

// StartSession transitions a session from idle to active with an empty
// context. Starting an already-active session resets it.
func (c *Classifier) StartSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[sessionID] = &session{
		id:        sessionID,
		state:     stateActive,
		startedAt: c.now(),
		byType:    make(map[record.Type]int),
		filesRead: make(map[string]struct{}),
		filesMod:  make(map[string]struct{}),
	}
}

// OnActivity processes one tool activity event. boundary marks whether the
// boundary detector flagged a concurrent context shift. All failures are
// logged and swallowed.
func (c *Classifier) OnActivity(ctx context.Context, act record.ToolActivity, boundary bool) {
	c.mu.Lock()
	sess, ok := c.sessions[act.SessionID]
	if !ok || sess.state != stateActive {
		// Activity outside an active session still deserves capture; open
		// an implicit session rather than dropping the observation.
		c.mu.Unlock()
		c.StartSession(act.SessionID)
		c.mu.Lock()
		sess = c.sessions[act.SessionID]
	}
	if sess.project == "" {
		sess.project = act.Project
	}
	for _, f := range act.FilesRead {
		sess.filesRead[f] = struct{}{}
	}
	for _, f := range act.FilesMod {
		sess.filesMod[f] = struct{}{}
	}
	if boundary {
		sess.boundaries++
	}
	c.mu.Unlock()

	obsType := Classify(act.Description, act.Diff)
	content := strings.TrimSpace(act.Description)
	if act.Diff != "" {
		content += "\n\n" + truncate(act.Diff, 1500)
	}
	if c.secrets != nil {
		content = c.secrets.Scrub(content)
	}

	score := c.scorer.Score(memscore.Observation{Content: content, Type: obsType})
	if score < c.threshold {
		c.mu.Lock()
		sess.discarded++
		c.mu.Unlock()
		c.metrics.IncDiscard()
		c.audit.Log(audit.Event{
			Type:      audit.EventDiscard,
			SessionID: act.SessionID,
			Detail:    fmt.Sprintf("memorability %.2f below gate", score),
		})
		return
	}

	title, subtitle := Title(act.Tool, act.Description, obsType)
	tags := []string{string(obsType)}
	if boundary {
		tags = append(tags, "boundary")
	}

	m := record.Memory{
		Content:     content,
		Title:       title,
		Subtitle:    subtitle,
		Category:    "observation",
		Type:        obsType,
		Importance:  initialImportance[obsType],
		Trust:       captureTrust,
		Sensitivity: record.SensitivityPublic,
		Tags:        tags,
		Concepts:    keywords.Top(keywords.Extract(content, 0), 5),
		FilesRead:   act.FilesRead,
		FilesMod:    act.FilesMod,
		SessionID:   act.SessionID,
		Project:     act.Project,
	}

	id, err := c.store.Put(ctx, m)
	if err != nil {
		c.logger.Warn("capture store failed", "session", act.SessionID, "error", err)
		return
	}

	c.mu.Lock()
	sess.captured++
	sess.byType[obsType]++
	if len(sess.highlights) < 10 {
		sess.highlights = append(sess.highlights, title)
	}
	c.mu.Unlock()

	c.metrics.IncCapture(string(obsType))
	c.audit.Log(audit.Event{
		Type:      audit.EventCapture,
		SessionID: act.SessionID,
		RecordID:  id,
		Detail:    fmt.Sprintf("type=%s score=%.2f", obsType, score),
	})
}

// EndSession transitions to summarizing, composes and stores the session
// summary record, and discards session state. Failures are logged and the
// state is discarded regardless.
func (c *Classifier) EndSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	sess.state = stateSummarizing
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if sess.captured == 0 {
		return
	}

	if _, err := c.store.Put(ctx, c.composeSummary(sess)); err != nil {
		c.logger.Warn("session summary store failed", "session", sessionID, "error", err)
	}
}

func (c *Classifier) composeSummary(sess *session) record.Memory {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: %d observations captured, %d discarded, %d context boundaries.\n",
		sess.id, sess.captured, sess.discarded, sess.boundaries)
	if len(sess.byType) > 0 {
		b.WriteString("Breakdown:")
		for t, n := range sess.byType {
			fmt.Fprintf(&b, " %s=%d", t, n)
		}
		b.WriteString("\n")
	}
	if len(sess.highlights) > 0 {
		b.WriteString("Highlights:\n")
		for _, h := range sess.highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	return record.Memory{
		Content:     b.String(),
		Title:       "Session summary " + sess.id,
		Subtitle:    fmt.Sprintf("%d records, %d files touched", sess.captured, len(sess.filesRead)+len(sess.filesMod)),
		Category:    "session-summary",
		Type:        record.TypeDiscovery,
		Importance:  0.6,
		Trust:       captureTrust,
		Sensitivity: record.SensitivityPublic,
		Tags:        []string{"session-summary"},
		FilesRead:   setKeys(sess.filesRead),
		FilesMod:    setKeys(sess.filesMod),
		SessionID:   sess.id,
		Project:     sess.project,
	}
}

func setKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
