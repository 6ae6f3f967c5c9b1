// Package tui implements the interactive terminal frontend: a store browser
// on one tab and a grounded chat on the other, driven by a Studio session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rzg777/filesearch/chat"
	"github.com/rzg777/filesearch/core"
)

// StudioPort is the TUI-facing subset of the studio façade.
type StudioPort interface {
	Stores(sessionID string) ([]core.Store, error)
	RefreshStores(ctx context.Context, sessionID string) ([]core.Store, error)
	CreateStore(ctx context.Context, sessionID, displayName string) (core.Store, error)
	DeleteStore(ctx context.Context, sessionID, storeID string) error
	SelectStore(sessionID, storeID string) error
	SelectedStore(sessionID string) (core.Store, bool, error)
	Ask(ctx context.Context, sessionID, question string, optFns ...func(o *chat.AskOptions)) (core.ChatMessage, error)
	Transcript(sessionID string) ([]core.ChatMessage, error)
	ClearTranscript(sessionID string) error
}

type view int

const (
	viewStores view = iota
	viewChat
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	studio    StudioPort
	sessionID string
	input     textinput.Model
	viewport  viewport.Model
	stores    []core.Store
	cursor    int
	view      view
	creating  bool
	status    string
	ready     bool
}

// New creates a new TUI model bound to an open session.
func New(studio StudioPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the selected store"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{
		studio:    studio,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		status:    "Tab: stores/chat  n: new store  d: delete  r: refresh",
	}
	m.stores, _ = studio.Stores(sessionID)
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-bh)
		m.viewport.SetContent(m.renderBody())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.view == viewStores {
				m.view = viewChat
				m.input.Placeholder = "Ask about the selected store"
			} else {
				m.view = viewStores
				m.input.Placeholder = "Press n to create a store"
			}
			m.creating = false
			m.input.SetValue("")
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "enter":
			return m.handleEnter()
		}
		if m.view == viewStores && !m.creating {
			switch msg.String() {
			case "down":
				if len(m.stores) > 0 {
					m.cursor = (m.cursor + 1) % len(m.stores)
					m.viewport.SetContent(m.renderBody())
				}
				return m, nil
			case "up":
				if len(m.stores) > 0 {
					m.cursor = (m.cursor - 1 + len(m.stores)) % len(m.stores)
					m.viewport.SetContent(m.renderBody())
				}
				return m, nil
			case "n":
				m.creating = true
				m.input.Placeholder = "New store name, Enter to create"
				m.input.SetValue("")
				return m, nil
			case "d":
				m.deleteCurrent()
				m.viewport.SetContent(m.renderBody())
				return m, nil
			case "r":
				m.refresh()
				m.viewport.SetContent(m.renderBody())
				return m, nil
			}
		}
		if m.view == viewChat && msg.String() == "ctrl+l" {
			_ = m.studio.ClearTranscript(m.sessionID)
			m.status = "Transcript cleared"
			m.viewport.SetContent(m.renderBody())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch {
	case m.view == viewStores && m.creating:
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			return m, nil
		}
		st, err := m.studio.CreateStore(ctx, m.sessionID, name)
		if err != nil {
			m.status = "Error: " + err.Error()
		} else {
			m.status = "Created " + st.DisplayName
			m.stores, _ = m.studio.Stores(m.sessionID)
			m.creating = false
		}
		m.input.SetValue("")
	case m.view == viewStores:
		if len(m.stores) > 0 {
			st := m.stores[m.cursor]
			if err := m.studio.SelectStore(m.sessionID, st.ID); err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = "Selected " + st.DisplayName
			}
		}
	case m.view == viewChat:
		q := strings.TrimSpace(m.input.Value())
		if q == "" {
			return m, nil
		}
		if _, err := m.studio.Ask(ctx, m.sessionID, q); err != nil {
			m.status = "Error: " + err.Error()
		} else {
			m.status = "Answered"
		}
		m.input.SetValue("")
	}
	m.viewport.SetContent(m.renderBody())
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) refresh() {
	stores, err := m.studio.RefreshStores(context.Background(), m.sessionID)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.stores = stores
	if m.cursor >= len(m.stores) {
		m.cursor = 0
	}
	m.status = fmt.Sprintf("Refreshed, %d stores", len(stores))
}

func (m *Model) deleteCurrent() {
	if len(m.stores) == 0 {
		return
	}
	st := m.stores[m.cursor]
	if err := m.studio.DeleteStore(context.Background(), m.sessionID, st.ID); err != nil {
		if core.IsStale(err) {
			m.status = "Store was already gone, removed locally"
		} else {
			m.status = "Error: " + err.Error()
			return
		}
	} else {
		m.status = "Deleted " + st.DisplayName
	}
	m.stores, _ = m.studio.Stores(m.sessionID)
	if m.cursor >= len(m.stores) && m.cursor > 0 {
		m.cursor--
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "Stores"
	if m.view == viewChat {
		title = "Chat"
	}
	if st, ok, _ := m.studio.SelectedStore(m.sessionID); ok {
		title += "  [" + st.DisplayName + "]"
	}
	header := headerStyle.Render("File Search  ·  " + title)
	body := boxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderBody() string {
	if m.view == viewStores {
		return m.renderStores()
	}
	return m.renderTranscript()
}

func (m Model) renderStores() string {
	if len(m.stores) == 0 {
		return "No stores yet. Press n to create one."
	}
	var b strings.Builder
	selected, hasSelected, _ := m.studio.SelectedStore(m.sessionID)
	for i, st := range m.stores {
		line := fmt.Sprintf("%s (%d files)", st.DisplayName, st.FileCount)
		if hasSelected && st.ID == selected.ID {
			line += "  *"
		}
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderTranscript() string {
	transcript, err := m.studio.Transcript(m.sessionID)
	if err != nil {
		return "Error: " + err.Error()
	}
	if len(transcript) == 0 {
		return "No messages yet. Select a store and ask a question."
	}
	var b strings.Builder
	for _, msg := range transcript {
		switch msg.Role {
		case core.RoleUser:
			b.WriteString(userStyle.Render("You: ") + msg.Text + "\n")
		case core.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant: ") + msg.Text + "\n")
			for i, c := range msg.Citations {
				b.WriteString(citationStyle.Render(fmt.Sprintf("  [%d] %s", i+1, c.Title)) + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	citationStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
