package logging

import (
	"regexp"
	"sync"
)

// Sanitizer redacts credentials from log messages.
type Sanitizer struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with the default provider patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Anthropic (before the generic sk- pattern)
		`sk-ant-[a-zA-Z0-9_-]{20,}`,
		// OpenRouter
		`sk-or-[a-zA-Z0-9_-]{20,}`,
		// OpenAI, including project keys
		`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`,
		// Google AI
		`AIza[a-zA-Z0-9_-]{35}`,
		// Bearer tokens in echoed headers
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// x-api-key header values and generic api_key assignments
		`(?i)(?:x-)?api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.patterns = append(s.patterns, re)
	s.mu.Unlock()
	return nil
}
