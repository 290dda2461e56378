package capture

import (
	"strings"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/pkg/record"
)

// Keyword cue lists checked in precedence order. Decision beats discovery
// beats bugfix; the first matching class wins.
var (
	decisionCues  = []string{"decided", "decision", "chose", "agreed", "will use", "going with", "instead of", "trade-off", "tradeoff"}
	discoveryCues = []string{"found", "discovered", "turns out", "realized", "root cause", "learned", "caused by", "it appears"}
	bugfixCues    = []string{"fix", "fixed", "bug", "crash", "panic", "regression", "broken", "fault", "error was"}
	featureCues   = []string{"add", "added", "implement", "implemented", "new endpoint", "new command", "introduce", "support for"}
	refactorCues  = []string{"refactor", "rename", "renamed", "extract", "extracted", "move", "moved", "cleanup", "restructure", "simplif"}
)

// Classify assigns an observation type from description and diff text.
// Unmatched observations fall back to the generic change type.
func Classify(description, diff string) record.Type {
	text := strings.ToLower(description + " " + diff)

	switch {
	case containsAny(text, decisionCues):
		return record.TypeDecision
	case containsAny(text, discoveryCues):
		return record.TypeDiscovery
	case containsAny(text, bugfixCues):
		return record.TypeBugfix
	case containsAny(text, featureCues):
		return record.TypeFeature
	case containsAny(text, refactorCues):
		return record.TypeRefactor
	}
	return record.TypeChange
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// Title builds a short title and subtitle for a captured observation.
// The title is the first sentence of the description, capped; the subtitle
// names the tool and the dominant keywords.
func Title(tool, description string, t record.Type) (title, subtitle string) {
	title = firstLine(description)
	if len(title) > 80 {
		title = title[:77] + "..."
	}
	if title == "" {
		title = string(t) + " via " + tool
	}

	top := keywords.Top(keywords.Extract(description, 0), 3)
	if len(top) > 0 {
		subtitle = tool + ": " + strings.Join(top, ", ")
	} else {
		subtitle = tool
	}
	return title, subtitle
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\n."); i > 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
