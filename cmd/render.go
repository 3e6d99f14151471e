package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stevehiehn/orquestator/internal/state"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	statusStyles = map[state.Status]lipgloss.Style{
		state.StatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		state.StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C542")),
		state.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		state.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}
)

func renderStatus(s state.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRun writes a human summary of one run.
func printRun(w io.Writer, run *state.Run) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Run "+run.ID), renderStatus(run.Status))
	fmt.Fprintf(w, "  Workflow: %s\n", run.Name)
	fmt.Fprintf(w, "  Progress: %d/%d steps\n", run.Current, len(run.Steps))
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Started:  %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  Finished: %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	for i, entry := range run.Log {
		printEntry(w, i, entry)
	}
}

func printEntry(w io.Writer, index int, entry state.LogEntry) {
	name := entry.StepName
	if name == "" {
		name = fmt.Sprintf("#%d", index)
	}
	mark := statusStyles[state.StatusCompleted].Render("ok")
	if !entry.Result.Succeeded() {
		mark = statusStyles[state.StatusFailed].Render(fmt.Sprintf("code %d", entry.Result.CodeOrDefault()))
	}
	fmt.Fprintf(w, "  [%s] %s\n", mark, name)
	if msg := entry.Result.ErrorMessage(); msg != "" {
		fmt.Fprintf(w, "      %s\n", errorStyle.Render(msg))
	}
	if out, _ := entry.Result[state.KeyOut].(string); out != "" && !entry.Result.Succeeded() {
		fmt.Fprintf(w, "      %s\n", dimStyle.Render(lastLines(out, 5)))
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n      ")
}

// printRunTable writes one line per run.
func printRunTable(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No runs."))
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %-10s  %-24s  %d/%d\n", run.ID, renderStatus(run.Status), run.Name, run.Current, len(run.Steps))
	}
}
