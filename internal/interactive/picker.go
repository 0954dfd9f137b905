package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gdamore/tcell/v2"
	"go2tv.app/castbutton/castprotocol"
	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/devices"
)

type pickerModel struct {
	receivers []devices.Receiver
	cursor    int
	chosen    int
	canceled  bool
}

func newPickerModel(rs []devices.Receiver) pickerModel {
	return pickerModel{receivers: rs, chosen: -1}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.canceled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.receivers)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.receivers) > 0 {
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString("Cast to:\n\n")
	for i, r := range m.receivers {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", cursor, i+1, r.DisplayName())
	}
	b.WriteString("\n(enter to select, esc to cancel)\n")
	return b.String()
}

// result maps the final model to a receiver or a cancel error.
func (m pickerModel) result() (devices.Receiver, error) {
	if m.canceled || m.chosen < 0 || m.chosen >= len(m.receivers) {
		return devices.Receiver{}, castsdk.NewError(castsdk.ErrorCancel, "receiver selection canceled", nil)
	}
	return m.receivers[m.chosen], nil
}

// Picker shows a receiver list in the terminal. While it runs the tcell
// screen, if any, is suspended.
type Picker struct {
	Screen tcell.Screen
	input  io.Reader
	output io.Writer
}

var _ castprotocol.Picker = (&Picker{}).Pick

// Pick implements castprotocol.Picker.
func (p *Picker) Pick(ctx context.Context, rs []devices.Receiver) (devices.Receiver, error) {
	if len(rs) == 0 {
		return devices.Receiver{}, devices.ErrNoReceivers
	}

	if p.Screen != nil {
		if err := p.Screen.Suspend(); err != nil {
			return devices.Receiver{}, fmt.Errorf("picker suspend: %w", err)
		}
		defer func() {
			_ = p.Screen.Resume()
		}()
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.input != nil {
		opts = append(opts, tea.WithInput(p.input))
	}
	if p.output != nil {
		opts = append(opts, tea.WithOutput(p.output))
	}

	final, err := tea.NewProgram(newPickerModel(rs), opts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return devices.Receiver{}, castsdk.NewError(castsdk.ErrorCancel, "receiver selection canceled", ctx.Err())
		}
		return devices.Receiver{}, fmt.Errorf("picker: %w", err)
	}

	m, ok := final.(pickerModel)
	if !ok {
		return devices.Receiver{}, errors.New("picker: unexpected model")
	}
	return m.result()
}
