// Package normalize implements the Content Normalizer & Redactor: it
// bounds payload size, strips known secret patterns, and produces stable
// string forms of structured inputs/outputs before they reach the
// Payload Builder or the Local Audit Log.
package normalize

import (
	"regexp"
	"strings"

	"github.com/subluminal/hookmediator/pkg/canonical"
)

const truncationMarker = "...[truncated]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9-_]{6,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9_]{6,}`),
	regexp.MustCompile(`(?i)password[\w-]+`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{10,}`),
}

// Redactor removes known secret patterns and any configured literal
// secret values from content before it is normalized, logged, or POSTed.
type Redactor struct {
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor builds a Redactor with optional literal secret values
// (e.g. the configured API key) that must never appear verbatim in
// normalized output.
func NewRedactor(literals []string) *Redactor {
	filtered := make([]string, 0, len(literals))
	for _, l := range literals {
		if l != "" {
			filtered = append(filtered, l)
		}
	}
	return &Redactor{patterns: secretPatterns, literals: filtered}
}

// Redact replaces secret values found in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	out := s
	for _, literal := range r.literals {
		out = strings.ReplaceAll(out, literal, "[REDACTED]")
	}
	for _, re := range r.patterns {
		out = re.ReplaceAllString(out, "[REDACTED]")
	}
	return out
}

// SanitizeValue recursively redacts secrets from structured data.
func (r *Redactor) SanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return r.Redact(v)
	case map[string]any:
		sanitized := make(map[string]any, len(v))
		for k, val := range v {
			sanitized[k] = r.SanitizeValue(val)
		}
		return sanitized
	case []any:
		sanitized := make([]any, len(v))
		for i, item := range v {
			sanitized[i] = r.SanitizeValue(item)
		}
		return sanitized
	default:
		return value
	}
}

// Normalizer bounds content size and produces stable string forms of
// structured hook payloads.
type Normalizer struct {
	redactor        *Redactor
	maxContentChars int
}

// New builds a Normalizer with the configured truncation bound and the
// literal secret values it must redact.
func New(maxContentChars int, secretLiterals []string) *Normalizer {
	return &Normalizer{
		redactor:        NewRedactor(secretLiterals),
		maxContentChars: maxContentChars,
	}
}

// Text redacts and bounds a plain-text content string. Truncation occurs
// after redaction so a redacted marker never pushes content back over
// the bound (spec §8: inputs longer than the bound are truncated with a
// marker; verdicts are unaffected by truncation beyond the bound).
func (n *Normalizer) Text(s string) string {
	redacted := n.redactor.Redact(s)
	return n.truncate(redacted)
}

// Structured produces a stable, redacted, size-bounded string form of a
// structured value (e.g. {tool_name, tool_input}) via canonical JSON.
func (n *Normalizer) Structured(value any) string {
	sanitized := n.redactor.SanitizeValue(value)
	bytes, err := canonical.Canonicalize(sanitized)
	if err != nil {
		// Non-canonicalizable values (e.g. unsupported numeric types
		// from a non-standard decoder) degrade to a best-effort string
		// rather than failing the whole normalization step.
		return n.truncate(n.redactor.Redact(stringifyFallback(value)))
	}
	return n.truncate(string(bytes))
}

func (n *Normalizer) truncate(s string) string {
	if n.maxContentChars <= 0 || len(s) <= n.maxContentChars {
		return s
	}
	bound := n.maxContentChars - len(truncationMarker)
	if bound < 0 {
		bound = 0
	}
	out := s[:bound] + truncationMarker
	// A configured bound smaller than the marker itself still must not
	// be exceeded: fall back to truncating the marker so out never grows
	// past maxContentChars.
	if len(out) > n.maxContentChars {
		out = out[:n.maxContentChars]
	}
	return out
}

func stringifyFallback(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}

// Idempotent reports whether re-normalizing s leaves it unchanged,
// exercised by the round-trip-law test (spec §8: normalize(normalize(x))
// == normalize(x)).
func (n *Normalizer) Idempotent(s string) bool {
	once := n.Text(s)
	twice := n.Text(once)
	return once == twice
}
