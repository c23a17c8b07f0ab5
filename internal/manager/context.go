package manager

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/recall/internal/model"
)

// Section titles, in priority order.
const (
	TitleCorrections = "Learned Corrections"
	TitlePreferences = "User Preferences"
	TitleProject     = "Project Context"
	TitleHistory     = "Conversation History"
)

const (
	// historyFetchLimit is more history than any realistic budget can hold.
	historyFetchLimit = 50
	// historyMinBudget is the smallest remaining budget worth spending on history.
	historyMinBudget = 100
	// historyLineOverhead approximates the per-item formatting cost.
	historyLineOverhead = 10
)

// ContextOptions selects which sections BuildContext assembles and bounds
// the result.
type ContextOptions struct {
	MaxChars           int
	IncludeCorrections bool
	IncludePreferences bool
	IncludeProject     bool
	IncludeHistory     bool
}

// DefaultContextOptions includes every section and uses the configured
// character budget.
func (m *Manager) DefaultContextOptions() ContextOptions {
	return ContextOptions{
		MaxChars:           m.cfg.Limits.MaxContextChars,
		IncludeCorrections: true,
		IncludePreferences: true,
		IncludeProject:     true,
		IncludeHistory:     true,
	}
}

// ContextSection describes one section placed in the context.
type ContextSection struct {
	Title string `json:"title"`
	Items int    `json:"items"`
	Chars int    `json:"chars"`
}

// ContextResult is the assembled context and how the budget was spent.
type ContextResult struct {
	Text     string           `json:"text"`
	MaxChars int              `json:"max_chars"`
	Used     int              `json:"used"`
	Sections []ContextSection `json:"sections"`
	Skipped  []string         `json:"skipped,omitempty"`
}

// BuildContextString assembles the context with DefaultContextOptions.
func (m *Manager) BuildContextString(ctx context.Context) (string, error) {
	res, err := m.BuildContext(ctx, m.DefaultContextOptions())
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// BuildContext assembles memories into a prompt block of at most
// opts.MaxChars characters. Corrections, preferences and project context are
// placed whole or not at all, in that order. Conversation history then fills
// the remaining budget with the longest unbroken run of recent turns.
func (m *Manager) BuildContext(ctx context.Context, opts ContextOptions) (*ContextResult, error) {
	maxChars := opts.MaxChars
	if maxChars < 0 {
		maxChars = 0
	}

	var history, corrections, preferences, projectCtx []model.Memory
	var err error
	if opts.IncludeHistory {
		if history, err = m.GetRecentConversations(ctx, historyFetchLimit, true); err != nil {
			return nil, err
		}
	}
	if opts.IncludeCorrections {
		if corrections, err = m.GetRelevantCorrections(ctx, 0); err != nil {
			return nil, err
		}
	}
	if opts.IncludePreferences {
		if preferences, err = m.GetUserPreferences(ctx); err != nil {
			return nil, err
		}
	}
	if opts.IncludeProject {
		if projectCtx, err = m.GetProjectContext(ctx); err != nil {
			return nil, err
		}
	}

	b := &contextBuilder{
		max: maxChars,
		log: m.log,
		res: &ContextResult{MaxChars: maxChars, Sections: []ContextSection{}},
	}
	b.add(TitleCorrections, corrections)
	b.add(TitlePreferences, preferences)
	b.add(TitleProject, projectCtx)

	if len(history) > 0 {
		remaining := maxChars - b.used
		if remaining < historyMinBudget {
			m.log.Debug("context full, skipping history", "remaining", remaining)
			b.res.Skipped = append(b.res.Skipped, TitleHistory)
		} else {
			// Reserve the section header so the packed section always fits.
			remaining -= utf8.RuneCountInString(sectionHeader(TitleHistory))
			selected := packHistory(history, remaining)
			b.add(TitleHistory, selected)
		}
	}

	b.res.Text = strings.TrimSpace(b.sb.String())
	b.res.Used = utf8.RuneCountInString(b.res.Text)
	return b.res, nil
}

// packHistory walks newest-first history and keeps items while they fit in
// budget, stopping at the first one that does not. The kept items are
// returned oldest first.
func packHistory(history []model.Memory, budget int) []model.Memory {
	var selected []model.Memory
	for _, mem := range history {
		size := utf8.RuneCountInString(mem.Content) + historyLineOverhead
		if size > budget {
			break
		}
		selected = append(selected, mem)
		budget -= size
	}
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}

type contextBuilder struct {
	max  int
	used int
	sb   strings.Builder
	log  *slog.Logger
	res  *ContextResult
}

// add appends a whole section if it fits in the budget.
func (b *contextBuilder) add(title string, items []model.Memory) {
	if len(items) == 0 {
		return
	}
	text := formatSection(title, items)
	n := utf8.RuneCountInString(text)
	if b.used+n > b.max {
		b.log.Debug("context section does not fit, skipping", "section", title, "chars", n, "remaining", b.max-b.used)
		b.res.Skipped = append(b.res.Skipped, title)
		return
	}
	b.sb.WriteString(text)
	b.used += n
	b.res.Sections = append(b.res.Sections, ContextSection{Title: title, Items: len(items), Chars: n})
}

func sectionHeader(title string) string {
	return "\n=== " + title + " ===\n"
}

func formatSection(title string, items []model.Memory) string {
	var sb strings.Builder
	sb.WriteString(sectionHeader(title))
	for i, mem := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(mem.Content)
	}
	sb.WriteByte('\n')
	return sb.String()
}
