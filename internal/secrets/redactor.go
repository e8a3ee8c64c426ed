// Package secrets keeps Telegram credentials out of log output.
package secrets

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a redaction placeholder.
// It supports both regex pattern matching (for known token formats) and
// literal value matching (for credentials loaded from config).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with default patterns for
// Telegram token formats.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// ${1} preserves a leading key prefix for patterns that capture one;
	// it expands to nothing for patterns without a group.
	for _, p := range patterns {
		s = p.ReplaceAllString(s, "${1}"+RedactPlaceholder)
	}

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}

	return s
}

// DefaultPatterns returns compiled regex patterns for Telegram secret formats.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Bot API token: numeric bot ID, colon, 35-char secret.
		regexp.MustCompile(`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`),
		// MTProto api_hash: 32 hex chars following an api_hash key.
		regexp.MustCompile(`(?i)(api_hash[=: ]+)[0-9a-f]{32}`),
	}
}
