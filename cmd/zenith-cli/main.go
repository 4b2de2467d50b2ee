// Command zenith-cli is a terminal chat client for a running zenith daemon.
//
// Usage:
//
//	zenith-cli -addr http://localhost:8090
//
// Keys:
//
//	Enter - send the message
//	Esc   - abort the current turn
//	Ctrl+C - quit
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"zenith/pkg/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

type state int

const (
	stateSelectingSession state = iota
	stateChatting
)

type errMsg struct{ err error }
type messageMsg domain.Message
type socketClosedMsg struct{ err error }

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) listSessions() ([]domain.Session, error) {
	resp, err := c.http.Get(c.baseURL + "/api/sessions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sessions []domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *client) createSession() (*domain.Session, error) {
	resp, err := c.http.Post(c.baseURL+"/api/sessions", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sess domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *client) dial(sessionID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/api/sessions/%s/chat", scheme, u.Host, sessionID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	return conn, err
}

type model struct {
	api  *client
	conn *websocket.Conn

	state             state
	availableSessions []domain.Session
	cursor            int
	width             int
	height            int
	err               error

	viewport viewport.Model
	textarea textarea.Model

	// messages holds the conversation keyed by ID; order tracks first
	// arrival, with in-place updates as drafts stream.
	messages map[string]domain.Message
	order    []string
	renderer *glamour.TermRenderer
}

func initialModel(api *client, sessions []domain.Session) model {
	ta := textarea.New()
	ta.Placeholder = "Describe the website you want to build..."
	ta.Prompt = "┃ "
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Select a session.")

	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		api:               api,
		availableSessions: sessions,
		state:             stateSelectingSession,
		viewport:          vp,
		textarea:          ta,
		messages:          make(map[string]domain.Message),
		renderer:          r,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		m.refreshView()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.state == stateChatting {
				// Abort the active turn.
				m.send(map[string]string{"type": "abort"})
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state == stateSelectingSession {
				return m.selectSession()
			}
			m.err = nil
			return m.sendMessage()

		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}

		case tea.KeyDown:
			// Index 0 is "New Session".
			if m.cursor < len(m.availableSessions) {
				m.cursor++
			}
		}

	case messageMsg:
		dm := domain.Message(msg)
		if _, seen := m.messages[dm.ID]; !seen {
			m.order = append(m.order, dm.ID)
		}
		m.messages[dm.ID] = dm
		m.refreshView()
		cmds = append(cmds, waitForMessage(m.conn))

	case socketClosedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("connection lost: %v", msg.err)
		}

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	if m.state == stateSelectingSession {
		header := titleStyle.Render("Zenith Sessions")

		options := []string{"New Session"}
		for _, s := range m.availableSessions {
			options = append(options, fmt.Sprintf("%s (%s)", s.Title, s.UpdatedAt.Format(time.RFC822)))
		}

		var optionsView []string
		for i, choice := range options {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Zenith"),
		"",
		m.viewport.View(),
		"",
		errorView,
		m.textarea.View(),
	)
}

func (m model) selectSession() (tea.Model, tea.Cmd) {
	var sessionID string
	if m.cursor == 0 {
		sess, err := m.api.createSession()
		if err != nil {
			return m, func() tea.Msg { return errMsg{err} }
		}
		sessionID = sess.ID
	} else {
		sessionID = m.availableSessions[m.cursor-1].ID
	}

	conn, err := m.api.dial(sessionID)
	if err != nil {
		return m, func() tea.Msg { return errMsg{err} }
	}
	m.conn = conn

	m.state = stateChatting
	m.textarea.Focus()
	return m, waitForMessage(m.conn)
}

func (m model) sendMessage() (tea.Model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" {
		return m, nil
	}
	m.textarea.Reset()

	if err := m.send(map[string]string{"type": "message", "content": v}); err != nil {
		return m, func() tea.Msg { return errMsg{err} }
	}
	return m, nil
}

func (m model) send(payload any) error {
	if m.conn == nil {
		return fmt.Errorf("not connected")
	}
	return m.conn.WriteJSON(payload)
}

// refreshView re-renders the conversation into the viewport.
func (m *model) refreshView() {
	var sb strings.Builder

	for _, id := range m.order {
		msg := m.messages[id]

		switch msg.Role {
		case domain.RoleUser:
			sb.WriteString(userStyle.Render("You: "))
		case domain.RoleAssistant:
			sb.WriteString(senderStyle.Render("Zenith: "))
		default:
			sb.WriteString(toolStyle.Render(string(msg.Role) + ": "))
		}
		sb.WriteString("\n")

		for _, part := range msg.Parts {
			switch part.Type {
			case domain.PartTypeText:
				rendered := part.Text
				if m.renderer != nil {
					if out, err := m.renderer.Render(part.Text); err == nil {
						rendered = out
					}
				}
				sb.WriteString(rendered)
			case domain.PartTypeToolInvocation:
				if part.ToolInvocation == nil {
					continue
				}
				inv := part.ToolInvocation
				line := fmt.Sprintf("[Tool: %s]", inv.ToolName)
				if inv.Result != nil {
					line += " " + inv.Result.Message
				} else {
					line += " running..."
				}
				sb.WriteString(toolStyle.Render(line))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func waitForMessage(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var msg domain.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return socketClosedMsg{err: err}
		}
		return messageMsg(msg)
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8090", "zenith daemon address")
	flag.Parse()

	api := &client{baseURL: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: 10 * time.Second}}

	sessions, err := api.listSessions()
	if err != nil {
		fmt.Printf("Error: cannot reach daemon at %s: %v\n", *addr, err)
		os.Exit(1)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	p := tea.NewProgram(initialModel(api, sessions))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
