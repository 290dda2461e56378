package sanitize

import (
	"regexp"
)

// DirectivePlaceholder replaces redacted instruction-like fragments in
// injected memory content.
const DirectivePlaceholder = "[redacted-directive]"

// directivePatterns match imperative phrasing an attacker could plant in
// stored content hoping it gets replayed into a prompt as an instruction.
// Matching is line-oriented: a directive poisons the line it starts.
var directivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(please\s+)?(ignore|disregard|forget)\s+(all\s+|any\s+)?(prior|previous|above|earlier)\b[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(you\s+(must|should|shall|will)|you\s+are\s+now)\b[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(always|never)\s+(respond|reply|answer|obey|follow|include|say)\b[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(from\s+now\s+on|going\s+forward)[,:]?\s[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(system|assistant|developer)\s*:\s[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(do\s+not\s+(tell|reveal|mention|disclose))\b[^\n]*`),
	regexp.MustCompile(`(?im)^\s*(execute|run|eval)\s+(the\s+following|this)\b[^\n]*`),
	regexp.MustCompile(`(?i)<\s*/?\s*(system|instructions?|memory-context)\s*>`),
}

// Directives redacts instruction-like phrasing from untrusted memory
// content before it is injected into a prompt. It is stateless and safe
// for concurrent use.
type Directives struct {
	patterns []*regexp.Regexp
}

// NewDirectives creates a redactor with the default directive patterns.
func NewDirectives() *Directives {
	return &Directives{patterns: directivePatterns}
}

// Redact replaces directive-like fragments and returns the cleaned text
// together with the number of redactions applied. A count of zero means
// the text passed through untouched.
func (d *Directives) Redact(text string) (string, int) {
	if text == "" {
		return text, 0
	}

	total := 0
	for _, p := range d.patterns {
		text = p.ReplaceAllStringFunc(text, func(string) string {
			total++
			return DirectivePlaceholder
		})
	}
	return text, total
}
