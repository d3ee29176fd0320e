// cli/report.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mwiater/psdsummary/internal/summary"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// Confirm writes prompt and reads one line from in. Only "y" or "yes",
// in any case, confirms; anything else, including EOF, declines.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/N) ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// RenderReport formats a finished build for the terminal.
func RenderReport(rep summary.Report) string {
	missing := "none"
	if len(rep.MissingTimes) > 0 {
		parts := make([]string, len(rep.MissingTimes))
		for i, t := range rep.MissingTimes {
			parts[i] = strconv.FormatInt(t, 10)
		}
		missing = strings.Join(parts, ", ")
	}
	rows := []struct{ label, value string }{
		{"windows", strconv.Itoa(rep.Windows)},
		{"chains", strconv.Itoa(rep.Chains)},
		{"step", fmt.Sprintf("%ds", rep.Step)},
		{"missing times", missing},
		{"filler records", strconv.Itoa(rep.FillerRecords)},
		{"no-sample records", strconv.Itoa(rep.NoSampleRecords)},
		{"dropped rows", strconv.Itoa(rep.DroppedRows)},
		{"records", strconv.Itoa(rep.Records)},
		{"elapsed", rep.Elapsed.Truncate(time.Millisecond).String()},
	}
	if rep.Path != "" {
		rows = append(rows, struct{ label, value string }{"saved to", rep.Path})
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(rep.Run))
	b.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", r.label)), valueStyle.Render(r.value))
	}
	return b.String()
}

// RenderError formats a per-run failure line.
func RenderError(run string, err error) string {
	return errorStyle.Render(fmt.Sprintf("%s: %v", run, err))
}

// RenderTable draws rows under headers with a rounded border.
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}
