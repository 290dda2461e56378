// Package tokens estimates token counts for prompt budget accounting.
// The primary implementation uses the cl100k_base BPE via tiktoken; when
// that encoding cannot be initialized (e.g. no cached vocabulary), a
// chars-per-token approximation takes over.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
)

// Estimator estimates the token count of a string.
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token
// ratio. A ratio of ~4 works well for English.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Round up to avoid underestimation.
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// BPEEstimator counts tokens with a real BPE encoding.
type BPEEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewBPEEstimator initializes the cl100k_base encoding.
func NewBPEEstimator() (*BPEEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &BPEEstimator{enc: enc}, nil
}

// Estimate returns the exact token count under cl100k_base.
func (e *BPEEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// NewEstimator returns the best available estimator: BPE when the
// encoding initializes, the character approximation otherwise.
func NewEstimator() Estimator {
	if bpe, err := NewBPEEstimator(); err == nil {
		return bpe
	}
	return NewCharEstimator(0)
}

// Compile-time interface checks.
var (
	_ Estimator = (*CharEstimator)(nil)
	_ Estimator = (*BPEEstimator)(nil)
)
