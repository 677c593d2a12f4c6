// internal/tui/watch.go
//
// Terminal status view for a pipeline run. It uses bubbletea, which follows
// The Elm Architecture: the model holds state, Update reacts to messages,
// View renders a string. The watcher polls the run record on an interval and
// re-renders, so it works against a run owned by another process.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/videoforge/videoforge/internal/workflow"
)

const refreshInterval = time.Second

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
)

type refreshMsg struct {
	state workflow.RunState
	err   error
}

// Watcher renders a live view of one pipeline run.
type Watcher struct {
	store    workflow.StateStore
	spinner  spinner.Model
	progress progress.Model

	state   workflow.RunState
	loadErr error
	loaded  bool
	done    bool
	width   int
}

// NewWatcher creates a watcher over the given run record store.
func NewWatcher(store workflow.StateStore) *Watcher {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	pb := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	return &Watcher{store: store, spinner: sp, progress: pb}
}

// Init starts the spinner and the first poll.
func (w *Watcher) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.poll())
}

func (w *Watcher) poll() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		state, err := w.store.Load()
		return refreshMsg{state: state, err: err}
	})
}

// Update reacts to key presses, poll results, and spinner ticks.
func (w *Watcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		if width := msg.Width - 4; width > 0 && width < 40 {
			w.progress.Width = width
		}
		return w, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return w, tea.Quit
		}
		return w, nil
	case refreshMsg:
		if msg.err != nil {
			w.loadErr = msg.err
		} else {
			w.loadErr = nil
			w.state = msg.state
			w.loaded = true
			if msg.state.Status != workflow.RunStatusRunning {
				w.done = true
			}
		}
		if w.done {
			// One final render, then keep the screen until the user quits.
			return w, nil
		}
		return w, w.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}
	return w, nil
}

// View renders the run header, one line per step, and a progress summary.
func (w *Watcher) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("videoforge run"))
	if w.state.RunID != "" {
		b.WriteString(detailStyle.Render(fmt.Sprintf("  %s", w.state.RunID)))
	}
	b.WriteString("\n\n")

	if w.loadErr != nil && !w.loaded {
		b.WriteString(errStyle.Render(fmt.Sprintf("waiting for run record: %v", w.loadErr)))
		b.WriteString("\n")
		return b.String()
	}

	completed := 0
	for _, id := range w.state.Order {
		res, _ := w.state.StepResult(id)
		b.WriteString("  ")
		b.WriteString(w.stepLine(id, res))
		b.WriteString("\n")
		if res.Status == workflow.StatusCompleted {
			completed++
		}
	}

	b.WriteString("\n")
	total := len(w.state.Order)
	if total > 0 {
		b.WriteString("  ")
		b.WriteString(w.progress.ViewAs(float64(completed) / float64(total)))
		b.WriteString("\n\n")
	}
	switch w.state.Status {
	case workflow.RunStatusCompleted:
		b.WriteString(completedStyle.Render(fmt.Sprintf("run complete (%d/%d steps)", completed, total)))
	case workflow.RunStatusFailed:
		b.WriteString(failedStyle.Render(fmt.Sprintf("run failed: %s (%d/%d steps)", w.state.Cause, completed, total)))
	default:
		b.WriteString(fmt.Sprintf("%s %s", w.spinner.View(), detailStyle.Render(fmt.Sprintf("running, %d/%d steps complete", completed, total))))
	}
	b.WriteString("\n")
	b.WriteString(pendingStyle.Render("press q to quit"))
	b.WriteString("\n")
	return b.String()
}

func (w *Watcher) stepLine(id string, res workflow.StepResult) string {
	switch res.Status {
	case workflow.StatusCompleted:
		suffix := ""
		if res.Reused {
			suffix = " (reused)"
		}
		return completedStyle.Render("✓ "+id) + detailStyle.Render(suffix)
	case workflow.StatusFailed:
		return failedStyle.Render("✗ " + id + "  " + res.Error)
	case workflow.StatusSkipped:
		return skippedStyle.Render("- " + id + "  " + res.Message)
	case workflow.StatusRunning:
		return w.spinner.View() + runningStyle.Render(" "+id)
	default:
		return pendingStyle.Render("· " + id)
	}
}

// Watch runs the watcher until the user quits.
func Watch(store workflow.StateStore) error {
	program := tea.NewProgram(NewWatcher(store))
	_, err := program.Run()
	return err
}
