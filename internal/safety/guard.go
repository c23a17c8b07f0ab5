// Package safety sanitizes memory content before storage and validates file
// paths against a sandbox root.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/recall/internal/logger"
)

const (
	// RedactionMarker replaces every detected secret.
	RedactionMarker = "[REDACTED]"

	// TruncationMarker is appended to content cut at the length limit.
	TruncationMarker = "\n... [TRUNCATED]"

	// DefaultMaxLength applies when neither the caller nor the settings set a limit.
	DefaultMaxLength = 10000

	// truncationWindow is how far back from the cut point a word break is searched.
	truncationWindow = 100
)

// Settings configures a Guard.
type Settings struct {
	FilterSensitiveData    bool     `mapstructure:"filter_sensitive_data"`
	SensitivePatterns      []string `mapstructure:"sensitive_patterns"`
	EscapeControlSequences bool     `mapstructure:"escape_control_sequences"`
	BlockedSequences       []string `mapstructure:"blocked_sequences"`
	ValidateFilePaths      bool     `mapstructure:"validate_file_paths"`
	DeniedPathGlobs        []string `mapstructure:"denied_path_globs"`
	MaxContentLength       int      `mapstructure:"max_content_length"`
}

// DefaultSettings returns the recommended safety configuration.
func DefaultSettings() Settings {
	return Settings{
		FilterSensitiveData: true,
		SensitivePatterns: []string{
			// API keys
			`(?i)(api[_-]?key|apikey)\s*[=:]\s*["']?[\w-]+`,
			`sk-[a-zA-Z0-9]{20,}`,
			`AIza[a-zA-Z0-9]{35}`,
			`ghp_[a-zA-Z0-9]{36}`,
			`xox[baprs]-[\w-]+`,
			// Secrets and passwords
			`(?i)(password|passwd|pwd)\s*[=:]\s*["']?[^\s"']+`,
			`(?i)(secret|token)\s*[=:]\s*["']?[^\s"']+`,
			`-----BEGIN\s+\w+\s+PRIVATE\s+KEY-----`,
			// Connection strings
			`(?i)(mysql|postgres|postgresql|mongodb)://[^\s]+`,
		},
		EscapeControlSequences: true,
		BlockedSequences: []string{
			"SYSTEM:",
			"USER:",
			"ASSISTANT:",
			"</s>",
			"<|endoftext|>",
			"<|im_start|>",
			"<|im_end|>",
		},
		ValidateFilePaths: true,
		MaxContentLength:  DefaultMaxLength,
	}
}

// Action records one thing Sanitize did to the content.
type Action string

const (
	ActionNone             Action = "none"
	ActionRedactedSecret   Action = "redacted_secret"
	ActionEscapedInjection Action = "escaped_injection"
	ActionTruncated        Action = "truncated"
	ActionBlocked          Action = "blocked"
)

// Result is the sanitized content plus what was done to it.
type Result struct {
	Content        string   `json:"content"`
	Actions        []Action `json:"actions"`
	OriginalLength int      `json:"original_length"`
	RedactedCount  int      `json:"redacted_count"`
}

// WasModified reports whether any sanitization step changed the content.
func (r Result) WasModified() bool {
	return len(r.Actions) > 0 && !r.has(ActionNone)
}

// WasBlocked reports whether the content was rejected outright.
func (r Result) WasBlocked() bool {
	return r.has(ActionBlocked)
}

func (r Result) has(a Action) bool {
	for _, v := range r.Actions {
		if v == a {
			return true
		}
	}
	return false
}

// Guard applies content sanitization and path validation. It holds no
// per-call state and is safe for concurrent use.
type Guard struct {
	settings Settings
	patterns []*regexp.Regexp
	log      *slog.Logger
}

// NewGuard compiles the configured patterns. Invalid patterns are logged and
// skipped.
func NewGuard(settings Settings, log *slog.Logger) *Guard {
	g := &Guard{
		settings: settings,
		log:      logger.Component(log, "safety"),
	}
	if settings.FilterSensitiveData {
		g.compilePatterns()
	}
	return g
}

func (g *Guard) compilePatterns() {
	for _, p := range g.settings.SensitivePatterns {
		re, err := regexp.Compile("(?im)" + p)
		if err != nil {
			g.log.Warn("skipping invalid sensitive pattern", "pattern", p, "err", err)
			continue
		}
		g.patterns = append(g.patterns, re)
	}
}

// Settings returns the guard configuration.
func (g *Guard) Settings() Settings {
	return g.settings
}

// PatternCount returns the number of usable sensitive-data patterns.
func (g *Guard) PatternCount() int {
	return len(g.patterns)
}

// SanitizeValue coerces v to a string and sanitizes it. A nil value becomes
// the empty string.
func (g *Guard) SanitizeValue(v any, maxLength int) Result {
	switch s := v.(type) {
	case nil:
		return g.Sanitize("", maxLength)
	case string:
		return g.Sanitize(s, maxLength)
	default:
		return g.Sanitize(fmt.Sprint(s), maxLength)
	}
}

// Sanitize redacts secrets, escapes prompt-injection sequences and truncates
// content, in that order. maxLength <= 0 uses the configured limit.
func (g *Guard) Sanitize(content string, maxLength int) Result {
	res := Result{OriginalLength: utf8.RuneCountInString(content)}

	if g.settings.FilterSensitiveData {
		var n int
		content, n = g.redact(content)
		if n > 0 {
			res.Actions = append(res.Actions, ActionRedactedSecret)
			res.RedactedCount = n
		}
	}

	if g.settings.EscapeControlSequences {
		var escaped bool
		content, escaped = g.escapeInjection(content)
		if escaped {
			res.Actions = append(res.Actions, ActionEscapedInjection)
		}
	}

	limit := g.effectiveMax(maxLength)
	if utf8.RuneCountInString(content) > limit {
		content = truncate(content, limit)
		res.Actions = append(res.Actions, ActionTruncated)
	}

	if len(res.Actions) == 0 {
		res.Actions = []Action{ActionNone}
	}
	res.Content = content
	return res
}

func (g *Guard) effectiveMax(maxLength int) int {
	if maxLength > 0 {
		return maxLength
	}
	if g.settings.MaxContentLength > 0 {
		return g.settings.MaxContentLength
	}
	return DefaultMaxLength
}

func (g *Guard) redact(content string) (string, int) {
	count := 0
	for _, re := range g.patterns {
		matches := re.FindAllStringIndex(content, -1)
		if len(matches) == 0 {
			continue
		}
		count += len(matches)
		content = re.ReplaceAllLiteralString(content, RedactionMarker)
	}
	return content, count
}

// escapeInjection wraps each raw blocked sequence in brackets. Sequences that
// are already wrapped are shielded behind a placeholder first so repeated
// calls never double-wrap.
func (g *Guard) escapeInjection(content string) (string, bool) {
	escaped := false
	for i, seq := range g.settings.BlockedSequences {
		if seq == "" {
			continue
		}
		wrapped := "[" + seq + "]"
		placeholder := uniquePlaceholder(content, i)

		shielded := strings.ReplaceAll(content, wrapped, placeholder)
		if strings.Contains(shielded, seq) {
			shielded = strings.ReplaceAll(shielded, seq, wrapped)
			escaped = true
		}
		content = strings.ReplaceAll(shielded, placeholder, wrapped)
	}
	return content, escaped
}

func uniquePlaceholder(content string, n int) string {
	p := fmt.Sprintf("\x00ESCAPED_%d\x00", n)
	for strings.Contains(content, p) {
		p = "\x00" + p
	}
	return p
}

// truncate cuts content to at most limit runes including TruncationMarker,
// preferring a whitespace break in the final truncationWindow runes.
func truncate(content string, limit int) string {
	marker := []rune(TruncationMarker)
	keep := limit - len(marker)
	if keep <= 0 {
		return TruncationMarker
	}

	runes := []rune(content)
	if keep > len(runes) {
		keep = len(runes)
	}
	cut := runes[:keep]

	windowStart := keep - truncationWindow
	if windowStart < 0 {
		windowStart = 0
	}
	best := -1
	for i := len(cut) - 1; i >= windowStart; i-- {
		if cut[i] == ' ' || cut[i] == '\n' {
			best = i
			break
		}
	}
	if best >= 0 && best > keep-truncationWindow {
		cut = cut[:best]
	}
	return string(cut) + TruncationMarker
}

// HashForID returns the first 16 hex characters of the SHA-256 digest of
// value.
func HashForID(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// HashForID is the method form of the package-level HashForID.
func (g *Guard) HashForID(value string) string {
	return HashForID(value)
}
