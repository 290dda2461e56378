// Package memscore implements the memorability gate: a scoring function
// deciding whether an observation is worth writing at all. The gate fires
// at capture time, before anything reaches the store; it is independent of
// the retrieval score floor.
package memscore

import (
	"math"
	"strings"
	"sync"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/pkg/record"
)

// DefaultThreshold is the score under which observations are discarded.
const DefaultThreshold = 0.30

// Sub-score weights.
const (
	weightSubstance       = 0.35
	weightSalience        = 0.25
	weightDistinctiveness = 0.20
	weightType            = 0.20
)

// salienceMarkers indicate decisions, discoveries, and concrete outcomes.
var salienceMarkers = []string{
	"decided", "decision", "chose", "instead of", "because",
	"discovered", "learned", "realized", "root cause", "turns out",
	"fixed", "bug", "regression", "breaking", "migrated", "tradeoff",
	"refactored", "removed", "deprecated", "important",
}

// typeWeights reflect how memorable each observation type tends to be.
var typeWeights = map[record.Type]float64{
	record.TypeDecision:  0.90,
	record.TypeDiscovery: 0.85,
	record.TypeBugfix:    0.75,
	record.TypeFeature:   0.70,
	record.TypeRefactor:  0.55,
	record.TypeChange:    0.45,
}

// Observation is the input to the memorability score.
type Observation struct {
	Content string
	Type    record.Type
}

// Scorer computes memorability scores. It keeps a short ring of recent
// keyword sets to measure distinctiveness; the ring is in-memory only and
// never persisted. Safe for concurrent use.
type Scorer struct {
	mu     sync.Mutex
	recent []keywords.Set
	window int
}

// New creates a Scorer with a distinctiveness window of the given size.
// A size of 0 defaults to 10.
func New(window int) *Scorer {
	if window <= 0 {
		window = 10
	}
	return &Scorer{window: window}
}

// Score returns the memorability of an observation in [0,1] and remembers
// its keyword set for future distinctiveness comparisons.
func (s *Scorer) Score(obs Observation) float64 {
	kw := keywords.Extract(obs.Content, 0)

	substance := substanceScore(obs.Content, kw)
	salience := salienceScore(obs.Content)
	distinct := s.distinctiveness(kw)

	tw, ok := typeWeights[obs.Type]
	if !ok {
		tw = typeWeights[record.TypeChange]
	}

	score := weightSubstance*substance +
		weightSalience*salience +
		weightDistinctiveness*distinct +
		weightType*tw

	s.remember(kw)
	return clamp01(score)
}

// substanceScore blends content length against a saturation point with
// lexical density (unique keywords per word).
func substanceScore(content string, kw keywords.Set) float64 {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}

	length := math.Min(1, float64(len(content))/400)
	density := math.Min(1, float64(len(kw))/float64(words))
	return 0.5*length + 0.5*density
}

func salienceScore(content string) float64 {
	lower := strings.ToLower(content)
	hits := 0
	for _, marker := range salienceMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	// One marker already signals intent; extras saturate quickly.
	return math.Min(1, float64(hits)/2)
}

// distinctiveness is 1 minus the best Jaccard similarity against the
// recent window. An empty window means fully distinct.
func (s *Scorer) distinctiveness(kw keywords.Set) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := 0.0
	for _, prev := range s.recent {
		if sim := keywords.Jaccard(kw, prev); sim > best {
			best = sim
		}
	}
	return 1 - best
}

func (s *Scorer) remember(kw keywords.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, kw)
	if len(s.recent) > s.window {
		s.recent = s.recent[len(s.recent)-s.window:]
	}
}

// Reset clears the distinctiveness window (used at session boundaries).
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
