package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rcliao/recall/internal/model"
	"github.com/rcliao/recall/internal/store"
)

const previewLen = 60

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

var memoryHeader = table.Row{
	"ID",
	"Type",
	"Scope",
	"Importance",
	"Created",
	"Expires",
	"Content",
}

func renderMemories(memories []model.Memory, now time.Time) string {
	t := table.NewWriter()
	t.AppendHeader(memoryHeader)
	for _, m := range memories {
		expires := "never"
		if m.ExpiresAt != nil {
			expires = humanize.RelTime(*m.ExpiresAt, now, "ago", "from now")
		}
		t.AppendRow(table.Row{
			m.ID,
			m.MemoryType,
			m.Scope,
			fmt.Sprintf("%.2f", m.Importance),
			humanize.RelTime(m.CreatedAt, now, "ago", "from now"),
			expires,
			preview(m.Content),
		})
	}
	return t.Render()
}

func renderMemory(m *model.Memory) string {
	t := table.NewWriter()
	t.AppendRows([]table.Row{
		{"ID", m.ID},
		{"Type", m.MemoryType},
		{"Scope", m.Scope},
		{"Retention", m.RetentionPolicy},
		{"User", m.UserID},
		{"Project", m.ProjectID},
		{"Importance", fmt.Sprintf("%.2f", m.Importance)},
		{"Accessed", humanize.Comma(int64(m.AccessCount)) + " times"},
		{"Tags", strings.Join(m.Tags, ", ")},
		{"Source", m.Source},
		{"Created", m.CreatedAt.Format(time.RFC3339)},
	})
	if m.ExpiresAt != nil {
		t.AppendRow(table.Row{"Expires", m.ExpiresAt.Format(time.RFC3339)})
	}
	return t.Render() + "\n\n" + m.Content
}

func renderStats(st *store.Stats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Database", st.DBPath},
		{"Size", humanize.Bytes(uint64(st.DBSizeBytes))},
		{"Memories", humanize.Comma(int64(st.Total))},
		{"Expired", humanize.Comma(int64(st.Expired))},
		{"Users", st.Users},
		{"Projects", st.Projects},
	})
	for _, mt := range model.MemoryTypes {
		if n := st.ByType[mt]; n > 0 {
			t.AppendRow(table.Row{"  " + string(mt), humanize.Comma(int64(n))})
		}
	}
	if st.Oldest != nil {
		t.AppendRow(table.Row{"Oldest", humanize.Time(*st.Oldest)})
	}
	if st.Newest != nil {
		t.AppendRow(table.Row{"Newest", humanize.Time(*st.Newest)})
	}
	return t.Render()
}

// preview flattens content to a single line of at most previewLen runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen-3]) + "..."
}

// readContent joins args, or reads stdin when there are none and it is not a
// terminal.
func readContent(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
