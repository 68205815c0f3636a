package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"travelmate/internal/models"
	"travelmate/internal/widget"
)

// panel chrome: two border rows, the title row and the input row
const panelChrome = 4

const (
	defaultWidth  = 80
	defaultHeight = 24
)

type entry struct {
	role   models.Role
	text   string
	source string
	failed bool
}

type replyMsg struct {
	reply Reply
	err   error
}

type clearedMsg struct {
	text string
	err  error
}

// Options configures the terminal UI
type Options struct {
	// GlamourStyle is a glamour standard style name; empty picks one from the terminal
	GlamourStyle string
	// StartOpen shows the chat panel immediately instead of the launcher
	StartOpen bool
}

// Model is the bubbletea model of the chat window. The panel behaves like the
// web launcher: ctrl+t toggles it, esc or a click outside closes it.
type Model struct {
	ctx     context.Context
	backend Backend
	opts    Options

	modal    widget.Modal
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries []entry
	waiting bool
	width   int
	height  int
}

func New(ctx context.Context, backend Backend, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about parks, beaches, food... (/clear to reset)"
	ti.CharLimit = 500
	ti.Prompt = "> "

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))

	m := &Model{
		ctx:      ctx,
		backend:  backend,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(defaultWidth, defaultHeight-panelChrome),
		spinner:  sp,
		entries:  []entry{{role: models.RoleAssistant, text: backend.Greeting()}},
	}
	m.resize(defaultWidth, defaultHeight)
	if opts.StartOpen {
		m.modal.Open()
		m.input.Focus()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	inner := width - 2
	if inner < 10 {
		inner = 10
	}
	vh := height - panelChrome - 1 // one row below the panel for the key hints
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = inner
	m.viewport.Height = vh
	m.input.Width = inner - len(m.input.Prompt) - 1

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(inner - 2)}
	if m.opts.GlamourStyle != "" {
		opts = append(opts, glamour.WithStandardStyle(m.opts.GlamourStyle))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	if r, err := glamour.NewTermRenderer(opts...); err == nil {
		m.renderer = r
	}
	m.refresh()
}

// panelHeight is the number of rows taken by the open chat panel
func (m *Model) panelHeight() int {
	return m.viewport.Height + panelChrome
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft &&
			m.modal.IsOpen() && msg.Y >= m.panelHeight() {
			m.modal.HandleOutsideClick()
			m.input.Blur()
			return m, nil
		}
		if m.modal.IsOpen() {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: models.RoleAssistant, text: msg.err.Error(), failed: true})
		} else {
			m.entries = append(m.entries, entry{role: models.RoleAssistant, text: msg.reply.Text, source: msg.reply.Source})
		}
		m.refresh()
		return m, nil

	case clearedMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: models.RoleAssistant, text: msg.err.Error(), failed: true})
		} else {
			m.entries = []entry{{role: models.RoleAssistant, text: msg.text}}
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+t":
		if m.modal.Toggle() {
			return m, m.input.Focus()
		}
		m.input.Blur()
		return m, nil
	}

	if !m.modal.IsOpen() {
		switch msg.String() {
		case "enter":
			m.modal.Open()
			return m, m.input.Focus()
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	if m.modal.HandleKey(msg.String()) {
		m.input.Blur()
		return m, nil
	}

	switch msg.String() {
	case "enter":
		return m, m.submit()
	case "ctrl+l":
		return m, m.clear()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return nil
	}
	m.input.Reset()

	if text == "/clear" {
		return m.clear()
	}

	m.entries = append(m.entries, entry{role: models.RoleUser, text: text})
	m.waiting = true
	m.refresh()
	return tea.Batch(m.spinner.Tick, m.sendCmd(text))
}

func (m *Model) clear() tea.Cmd {
	if m.waiting {
		return nil
	}
	m.waiting = true
	return tea.Batch(m.spinner.Tick, m.clearCmd())
}

func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.backend.Send(m.ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) clearCmd() tea.Cmd {
	return func() tea.Msg {
		text, err := m.backend.Clear(m.ctx)
		return clearedMsg{text: text, err: err}
	}
}

func (m *Model) render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (m *Model) refresh() {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case e.role == models.RoleUser:
			b.WriteString(userPrefixStyle.Render("You") + "\n" + e.text)
		case e.failed:
			b.WriteString(errorStyle.Render("Error: " + e.text))
		default:
			b.WriteString(answerPrefixStyle.Render("TravelMate"))
			if e.source != "" {
				b.WriteString(" " + sourceStyle.Render("("+e.source+")"))
			}
			b.WriteString("\n" + m.render(e.text))
		}
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	if !m.modal.IsOpen() {
		return launcherStyle.Render("TravelMate") + dimStyle.Render("  enter or ctrl+t to chat, q to quit")
	}

	status := ""
	if m.waiting {
		status = " " + m.spinner.View()
	}
	body := titleStyle.Render("TravelMate leisure guide") + status + "\n" +
		m.viewport.View() + "\n" +
		m.input.View()

	return panelStyle.Width(m.viewport.Width).Render(body) + "\n" +
		dimStyle.Render("esc close  ctrl+l clear  pgup/pgdown scroll  ctrl+c quit")
}

// IsOpen reports whether the chat panel is shown
func (m *Model) IsOpen() bool { return m.modal.IsOpen() }

// Transcript returns the visible conversation as plain text turns
func (m *Model) Transcript() []models.Turn {
	out := make([]models.Turn, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, models.Turn{Role: e.role, Content: e.text})
	}
	return out
}

// Run starts the program on the terminal and blocks until the user quits
func Run(ctx context.Context, backend Backend, opts Options) error {
	p := tea.NewProgram(New(ctx, backend, opts), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
