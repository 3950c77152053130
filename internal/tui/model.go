package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"profrag/internal/domain"
	"profrag/internal/relay"
)

// Streamer is the TUI-facing view of the chat endpoint.
type Streamer interface {
	Stream(ctx context.Context, conversation []domain.Message) (relay.Feed, error)
}

const greeting = "Hi! I'm the Rate My Professor support assistant. How can I help you today?"

type (
	streamStartedMsg struct{ feed relay.Feed }
	chunkMsg         struct{ text string }
	streamDoneMsg    struct{}
	streamErrMsg     struct{ err error }
)

// turn is one transcript entry. interrupted only affects rendering; the
// message itself is sent back to the server unchanged.
type turn struct {
	domain.Message
	interrupted bool
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	ctx      context.Context
	client   Streamer
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	partial  string
	feed     relay.Feed
	status   string
	server   string
	ready    bool
}

// New creates a chat model. ctx bounds every request the model issues.
func New(ctx context.Context, client Streamer, server string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a professor and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		client:   client,
		input:    ti,
		viewport: vp,
		server:   server,
		status:   "Connected to " + server,
	}
}

// History returns the completed turns exchanged so far.
func (m Model) History() []domain.Message {
	var out []domain.Message
	for _, t := range m.turns {
		out = append(out, t.Message)
	}
	return out
}

func (m Model) Streaming() bool { return m.feed != nil }

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+server, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.feed != nil {
				_ = m.feed.Close()
				m.feed = nil
			}
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.Streaming() {
				return m, nil
			}
			m.turns = append(m.turns, turn{Message: domain.Message{Role: domain.RoleUser, Content: q}})
			m.input.SetValue("")
			m.status = "Thinking..."
			m.refresh()
			return m, m.startStream(m.History())
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case streamStartedMsg:
		m.feed = msg.feed
		m.status = "Streaming..."
		return m, m.readNext(msg.feed)
	case chunkMsg:
		m.partial += msg.text
		m.refresh()
		return m, m.readNext(m.feed)
	case streamDoneMsg:
		m.closeFeed()
		m.turns = append(m.turns, turn{Message: domain.Message{Role: domain.RoleAssistant, Content: m.partial}})
		m.partial = ""
		m.status = "Connected to " + m.server
		m.refresh()
		return m, nil
	case streamErrMsg:
		m.closeFeed()
		m.status = "Error: " + msg.err.Error()
		if m.partial == "" && len(m.turns) > 0 {
			// Nothing was answered; give the question back for a retry.
			last := m.turns[len(m.turns)-1]
			m.turns = m.turns[:len(m.turns)-1]
			m.input.SetValue(last.Content)
		} else {
			m.turns = append(m.turns, turn{
				Message:     domain.Message{Role: domain.RoleAssistant, Content: m.partial},
				interrupted: true,
			})
			m.partial = ""
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Professor Assistant")
	server := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.server)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + server + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) closeFeed() {
	if m.feed != nil {
		_ = m.feed.Close()
		m.feed = nil
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(10, m.viewport.Width-2)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	b.WriteString(assistantLabel.Render("Assistant: ") + wrap.Render(greeting) + "\n\n")
	for _, t := range m.turns {
		label := assistantLabel.Render("Assistant: ")
		if t.Role == domain.RoleUser {
			label = userLabel.Render("You: ")
		}
		text := t.Content
		if t.interrupted {
			text += " " + interruptedMark.Render("[interrupted]")
		}
		b.WriteString(label + wrap.Render(text) + "\n\n")
	}
	if m.feed != nil {
		b.WriteString(assistantLabel.Render("Assistant: ") + wrap.Render(m.partial+"▌"))
	}
	return b.String()
}

func (m Model) startStream(conversation []domain.Message) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		feed, err := client.Stream(ctx, conversation)
		if err != nil {
			return streamErrMsg{err: err}
		}
		return streamStartedMsg{feed: feed}
	}
}

func (m Model) readNext(feed relay.Feed) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		for {
			frag, err := feed.Next(ctx)
			if errors.Is(err, io.EOF) {
				return streamDoneMsg{}
			}
			if err != nil {
				return streamErrMsg{err: err}
			}
			if frag != "" {
				return chunkMsg{text: string(frag)}
			}
		}
	}
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userLabel          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantLabel     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	interruptedMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
)
