package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type taskResultMsg[T any] struct {
	value T
	err   error
}

// progressModel spins next to label, with the elapsed time once the task
// has been running for a second, until the task reports back.
type progressModel[T any] struct {
	spinner spinner.Model
	label   string
	started time.Time
	task    tea.Cmd
	result  taskResultMsg[T]
	done    bool
}

func (m progressModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.task)
}

func (m progressModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskResultMsg[T]:
		m.result = msg
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel[T]) View() string {
	if m.done {
		return ""
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	if elapsed < time.Second {
		return m.spinner.View() + " " + m.label
	}
	return fmt.Sprintf("%s %s (%s)", m.spinner.View(), m.label, elapsed)
}

// runWithSpinner shows label on output until task returns its value.
func runWithSpinner[T any](ctx context.Context, output io.Writer, label string, task func(context.Context) (T, error)) (T, error) {
	model := progressModel[T]{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		label:   label,
		started: time.Now(),
		task: func() tea.Msg {
			value, err := task(ctx)
			return taskResultMsg[T]{value: value, err: err}
		},
	}

	program := tea.NewProgram(model, tea.WithInput(nil), tea.WithOutput(output), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		var zero T
		return zero, err
	}

	finished, ok := final.(progressModel[T])
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected final spinner model type %T", final)
	}
	return finished.result.value, finished.result.err
}
