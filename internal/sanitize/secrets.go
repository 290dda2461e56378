// Package sanitize provides the two content filters of the memory
// subsystem: secret scrubbing applied at write time so well-known API key
// shapes never reach the store, and directive redaction applied at read
// time so injected memory is always treated as data, never instructions.
package sanitize

import (
	"regexp"
	"strings"
	"sync"
)

// SecretPlaceholder replaces scrubbed secret values.
const SecretPlaceholder = "***REDACTED***"

// Secrets replaces secret values in strings with a redaction placeholder.
// It supports both regex pattern matching (for known API key formats) and
// literal value matching. All methods are safe for concurrent use.
type Secrets struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewSecrets creates a scrubber pre-loaded with default patterns for
// common API key formats (OpenAI, Anthropic, GitHub, AWS, Slack, Bearer
// tokens).
func NewSecrets() *Secrets {
	return &Secrets{patterns: DefaultSecretPatterns()}
}

// AddPattern adds a compiled regex pattern.
func (s *Secrets) AddPattern(pattern *regexp.Regexp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
}

// AddLiteral adds a literal secret value to be scrubbed on sight.
// Empty strings are ignored.
func (s *Secrets) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.literals = append(s.literals, secret)
}

// Scrub replaces all known secret patterns and literal values in text.
func (s *Secrets) Scrub(text string) string {
	if text == "" {
		return text
	}

	s.mu.RLock()
	patterns := s.patterns
	literals := s.literals
	s.mu.RUnlock()

	for _, p := range patterns {
		text = p.ReplaceAllString(text, SecretPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(text, lit) {
			text = strings.ReplaceAll(text, lit, SecretPlaceholder)
		}
	}
	return text
}

// DefaultSecretPatterns returns compiled regex patterns for common API key
// formats.
func DefaultSecretPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenAI: sk-... (at least 20 chars after prefix)
		regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
		// Anthropic: sk-ant-...
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		// GitHub: ghp_, gho_, ghs_, github_pat_
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS Access Key ID
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot and user tokens
		regexp.MustCompile(`xoxb-[0-9]+-[a-zA-Z0-9]+`),
		regexp.MustCompile(`xoxp-[0-9]+-[a-zA-Z0-9]+`),
		// Bearer headers
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{16,}`),
	}
}
