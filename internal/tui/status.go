package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/registry"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

const timeLayout = "2006-01-02 15:04:05"

func (s Styles) table(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(s.Border)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		})
}

func position(index, total int) string {
	if total == 0 {
		return "-"
	}
	if index == 0 {
		return fmt.Sprintf("-/%d", total)
	}
	return fmt.Sprintf("%d/%d", index, total)
}

// RenderStatus renders a run's progress as a two-column table.
func RenderStatus(st *supervisor.State, styles Styles) string {
	p := st.Progress()
	name := st.MicroserviceName
	if name == "" {
		name = "-"
	}

	t := styles.table("Field", "Value").Rows(
		[]string{"Thread", st.ThreadID},
		[]string{"Project", name},
		[]string{"Phase", styles.PhaseStyle(p.Phase.String()).Render(p.Phase.String())},
		[]string{"Step", strconv.Itoa(p.Step)},
		[]string{"Task", position(p.TaskIndex, p.TaskTotal)},
		[]string{"Planned task", position(p.PlannedTaskIndex, p.PlannedTaskTotal)},
		[]string{"Issue", position(p.IssueIndex, p.IssueTotal)},
		[]string{"Planned issue", position(p.PlannedIssueIndex, p.PlannedIssueTotal)},
		[]string{"Review cycles", strconv.Itoa(st.ReviewCycles)},
		[]string{"Completion", p.CompletionString()},
	)

	out := styles.Title.Render("genpod run") + "\n" + t.String()
	if p.AgentsStatus != "" {
		out += "\n" + styles.Subtitle.Render(p.AgentsStatus)
	}
	return out
}

// RenderCheckpoints lists the latest checkpoint of every thread.
func RenderCheckpoints(sums []checkpoint.Summary, styles Styles) string {
	if len(sums) == 0 {
		return styles.Muted.Render("No checkpoints.")
	}
	t := styles.table("Thread", "Step", "Phase", "Saved")
	for _, s := range sums {
		t.Row(s.ThreadID, strconv.Itoa(s.Step), s.Phase, s.SavedAt.Local().Format(timeLayout))
	}
	return t.String()
}

// RenderRuns lists registered runs.
func RenderRuns(runs []registry.Run, styles Styles) string {
	if len(runs) == 0 {
		return styles.Muted.Render("No runs.")
	}
	t := styles.table("Thread", "Name", "Status", "Updated", "Request")
	for _, r := range runs {
		t.Row(r.ThreadID, r.Name, r.Status, r.UpdatedAt.Local().Format(timeLayout), truncate(r.Input, 40))
	}
	return t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String()
}
