// cli/cli.go
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/psdsummary/internal/summary"
)

// Job is the work shown behind a progress view. It must report progress
// through the callback and return when ctx is cancelled.
type Job func(ctx context.Context, progress func(done, total int)) (summary.Report, error)

type progressMsg struct {
	done, total int
}

type finishedMsg struct{}

// model is the bubbletea model of the progress view: a spinner, a count of
// finished windows and a bar.
type model struct {
	title     string
	spinner   spinner.Model
	bar       progress.Model
	done      int
	total     int
	start     time.Time
	width     int
	finished  bool
	cancelled bool
	cancel    context.CancelFunc
}

func newModel(title string, cancel context.CancelFunc) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &model{
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		start:   time.Now(),
		cancel:  cancel,
	}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The job sees the cancellation and finishes on its own.
			if !m.cancelled && m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(min(msg.Width-8, 60), 10)
		return m, nil
	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil
	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m *model) View() string {
	if m.finished {
		return ""
	}
	status := fmt.Sprintf("%d/%d windows", m.done, m.total)
	if m.cancelled {
		status += " (cancelling)"
	}
	elapsed := time.Since(m.start).Truncate(time.Second)
	help := lipgloss.NewStyle().Faint(true).Render("ctrl+c: cancel")

	var b strings.Builder
	fmt.Fprintf(&b, "\n %s %s  %s  %s\n", m.spinner.View(), m.title, status, elapsed)
	fmt.Fprintf(&b, " %s\n %s\n", m.bar.ViewAs(m.percent()), help)
	return b.String()
}

// RunWithProgress runs job while drawing a progress view on out. Keys are
// read from in; a nil in disables keyboard input. Cancelling from the
// keyboard cancels the context handed to job; the job's own result is always
// returned.
func RunWithProgress(ctx context.Context, in io.Reader, out io.Writer, title string, job Job) (summary.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, cancel), tea.WithInput(in), tea.WithOutput(out))

	type result struct {
		rep summary.Report
		err error
	}
	results := make(chan result, 1)
	go func() {
		rep, err := job(ctx, func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
		results <- result{rep, err}
		p.Send(finishedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		r := <-results
		if r.err != nil {
			return r.rep, r.err
		}
		return r.rep, fmt.Errorf("progress view: %w", err)
	}
	r := <-results
	return r.rep, r.err
}
