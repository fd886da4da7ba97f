package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tombabolewski/vidaa-control/internal/discovery"
	"github.com/tombabolewski/vidaa-control/internal/engine"
)

// remoteCmd launches the interactive remote
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Interactive remote control",
	Long: `Full-screen interactive remote. Keyboard keys map onto the TV
remote: arrows navigate, enter confirms, +/- change volume. The TV's
state line updates as the TV broadcasts changes.`,
	RunE: runInteractive,
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	desc, err := resolveDevice(ctx)
	if err != nil {
		return err
	}

	eng, err := newEngine(promptPIN)
	if err != nil {
		return err
	}
	defer eng.Disconnect()

	// Pairing may prompt on the terminal, so connect before the TUI
	// takes over the screen.
	if err := eng.Connect(ctx, desc); err != nil {
		return err
	}

	model := newRemoteModel(engine.NewAsync(eng), desc)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// remoteKeyMap defines the keyboard-to-remote mapping
type remoteKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	OK      key.Binding
	Back    key.Binding
	Home    key.Binding
	VolUp   key.Binding
	VolDown key.Binding
	Mute    key.Binding
	Power   key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k remoteKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.OK, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k remoteKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.OK, k.Back},
		{k.Home, k.VolUp, k.VolDown, k.Mute, k.Power, k.Quit},
	}
}

var defaultRemoteKeys = remoteKeyMap{
	Up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
	Down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
	Left:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "left")),
	Right:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "right")),
	OK:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ok")),
	Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Home:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "home")),
	VolUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
	VolDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
	Mute:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	Power:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// keyToRemote maps bindings to TV key names
var keyBindingNames = []struct {
	binding func(remoteKeyMap) key.Binding
	tvKey   string
}{
	{func(k remoteKeyMap) key.Binding { return k.Up }, "KEY_UP"},
	{func(k remoteKeyMap) key.Binding { return k.Down }, "KEY_DOWN"},
	{func(k remoteKeyMap) key.Binding { return k.Left }, "KEY_LEFT"},
	{func(k remoteKeyMap) key.Binding { return k.Right }, "KEY_RIGHT"},
	{func(k remoteKeyMap) key.Binding { return k.OK }, "KEY_OK"},
	{func(k remoteKeyMap) key.Binding { return k.Back }, "KEY_BACK"},
	{func(k remoteKeyMap) key.Binding { return k.Home }, "KEY_HOME"},
	{func(k remoteKeyMap) key.Binding { return k.VolUp }, "KEY_VOLUMEUP"},
	{func(k remoteKeyMap) key.Binding { return k.VolDown }, "KEY_VOLUMEDOWN"},
	{func(k remoteKeyMap) key.Binding { return k.Mute }, "KEY_MUTE"},
	{func(k remoteKeyMap) key.Binding { return k.Power }, "KEY_POWER"},
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// Messages
type keyResultMsg struct {
	tvKey string
	err   error
}

type stateTickMsg struct{}

// remoteModel is the interactive remote's bubbletea model
type remoteModel struct {
	async *engine.Async
	desc  *discovery.Descriptor

	keys    remoteKeyMap
	help    help.Model
	spin    spinner.Model
	sending bool
	lastKey string
	lastErr error
}

func newRemoteModel(async *engine.Async, desc *discovery.Descriptor) remoteModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return remoteModel{
		async: async,
		desc:  desc,
		keys:  defaultRemoteKeys,
		help:  help.New(),
		spin:  sp,
	}
}

// Init starts the state refresh ticker
func (m remoteModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, stateTick())
}

func stateTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return stateTickMsg{}
	})
}

// sendKey issues one key press through the non-blocking engine surface.
func (m remoteModel) sendKey(tvKey string) tea.Cmd {
	done := m.async.SendKey(context.Background(), tvKey)
	return func() tea.Msg {
		return keyResultMsg{tvKey: tvKey, err: <-done}
	}
}

// Update handles input and engine results
func (m remoteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		for _, entry := range keyBindingNames {
			if key.Matches(msg, entry.binding(m.keys)) {
				m.sending = true
				m.lastKey = entry.tvKey
				m.lastErr = nil
				return m, m.sendKey(entry.tvKey)
			}
		}

	case keyResultMsg:
		m.sending = false
		m.lastKey = msg.tvKey
		m.lastErr = msg.err

	case stateTickMsg:
		return m, stateTick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the remote
func (m remoteModel) View() string {
	name := m.desc.FriendlyName
	if name == "" {
		name = m.desc.IP
	}

	view := titleStyle.Render(fmt.Sprintf("Remote: %s", name)) + "\n\n"

	st := m.async.GetState()
	muted := ""
	if st.Muted {
		muted = " (muted)"
	}
	view += statusStyle.Render(fmt.Sprintf("Volume %d%s", st.Volume, muted))
	if st.Input != "" {
		view += statusStyle.Render(fmt.Sprintf("  Input %s", st.Input))
	}
	view += "\n\n"

	switch {
	case m.sending:
		view += m.spin.View() + fmt.Sprintf(" sending %s...", m.lastKey)
	case m.lastErr != nil:
		view += errorStyle.Render(fmt.Sprintf("%s failed: %v", m.lastKey, m.lastErr))
	case m.lastKey != "":
		view += okStyle.Render(fmt.Sprintf("%s sent", m.lastKey))
	default:
		view += statusStyle.Render("press a key")
	}
	view += "\n\n"

	view += m.help.View(m.keys)
	return view
}
