// Package format renders KPIs and the board for the terminal.
package format

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dyluth/gauge/internal/board"
	"github.com/dyluth/gauge/internal/kpi"
)

var codec = sonic.ConfigStd

const barWidth = 10

// KPITable writes KPIs as a table with a progress bar per row.
// Returns the number of KPIs formatted.
func KPITable(w io.Writer, items []kpi.KPI, project string) int {
	if len(items) == 0 {
		fmt.Fprintf(w, "No KPIs found for project '%s'\n", project)
		return 0
	}

	fmt.Fprintf(w, "KPIs for project '%s':\n\n", project)

	fmt.Fprintf(w, "%-10s %-24s %10s %10s %-6s %s\n",
		"ID", "NAME", "VALUE", "TARGET", "UNIT", "PROGRESS")
	fmt.Fprintf(w, "%-10s %-24s %10s %10s %-6s %s\n",
		"----------", "------------------------", "----------", "----------", "------", "-----------------")

	for _, k := range items {
		fmt.Fprintf(w, "%-10s %-24s %10s %10s %-6s %s\n",
			formatID(k.ID),
			truncate(k.Name, 24),
			formatNumber(k.Value),
			formatNumber(k.Target),
			formatUnit(k.Unit),
			ProgressBar(k.Progress()),
		)
	}

	noun := "KPI"
	if len(items) != 1 {
		noun = "KPIs"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(items), noun)

	return len(items)
}

// KPIJSONL writes one JSON object per KPI per line, for jq and friends.
func KPIJSONL(w io.Writer, items []kpi.KPI) error {
	for _, k := range items {
		data, err := codec.Marshal(k.Card())
		if err != nil {
			return fmt.Errorf("failed to marshal KPI to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// BoardText writes the board column by column.
func BoardText(w io.Writer, b board.Board) {
	title := b.Title
	if title == "" {
		title = "(untitled board)"
	}
	fmt.Fprintf(w, "%s\n", title)
	if b.Date != "" {
		fmt.Fprintf(w, "%s\n", b.Date)
	}

	cols := b.Columns()
	if len(cols) == 0 {
		fmt.Fprintf(w, "\nNo sections\n")
		return
	}

	for _, col := range cols {
		fmt.Fprintf(w, "\n== Column %d ==\n", col.Index)
		for _, s := range col.Sections {
			fmt.Fprintf(w, "\n[%s] %s (%s)\n", s.Icon, s.Title, s.ID)
			if len(s.Items) == 0 {
				fmt.Fprintf(w, "  -\n")
				continue
			}
			for _, it := range s.Items {
				fmt.Fprintf(w, "  %s\n", formatItem(it))
			}
		}
	}
}

// BoardJSON writes the board as indented JSON.
func BoardJSON(w io.Writer, b board.Board) error {
	data, err := codec.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal board to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func formatItem(it board.Item) string {
	text := it.Text
	if text == "" {
		text = "-"
	}
	if !it.HasKPI {
		return fmt.Sprintf("• %s", text)
	}
	return fmt.Sprintf("• %s  %s/%s%s %s",
		text,
		formatNumber(it.Value),
		formatNumber(it.Target),
		unitSuffix(it.Unit),
		ProgressBar(kpi.Progress(it.Value, it.Target)),
	)
}

// ProgressBar renders a clamped percentage as "[#####-----]  50%".
func ProgressBar(pct float64) string {
	filled := int(pct / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %3.0f%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", barWidth-filled),
		pct)
}

// formatID truncates ids to 10 characters for compact display.
// ULIDs share their leading time component, so 10 keeps them apart.
func formatID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

// formatNumber drops trailing zeros: 380, 1.5, 0.25.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatUnit(unit string) string {
	if unit == "" {
		return "-"
	}
	return truncate(unit, 6)
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
