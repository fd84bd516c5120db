package outbox

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type drawMsg struct{}

// frame draws a single screen and quits; the CLI prints the result itself.
type frame struct {
	draw   func(styles) string
	styles styles
	output string
}

func (f frame) Init() tea.Cmd {
	return func() tea.Msg { return drawMsg{} }
}

func (f frame) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(drawMsg); !ok {
		return f, nil
	}
	f.output = f.draw(f.styles)
	return f, tea.Quit
}

func (f frame) View() string {
	return f.output
}

func renderFrame(draw func(styles) string) (string, error) {
	program := tea.NewProgram(
		frame{draw: draw, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	final, err := program.Run()
	if err != nil {
		return "", err
	}

	done, ok := final.(frame)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}
	return done.output, nil
}

// Render lays out the pending actions once and returns the frame.
func Render(actions []domain.PendingAction, opts RenderOptions) (string, error) {
	return renderFrame(func(s styles) string {
		return renderView(actions, opts, s)
	})
}
