// Package session manages the live runtime behind each chat session: the
// in-memory project files, the console buffer, the tool executor and the
// active agent turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenith/pkg/agent"
	"zenith/pkg/console"
	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/project"
	"zenith/pkg/sandbox"
	"zenith/pkg/store"
	"zenith/pkg/tools"
)

// WelcomeMessage is shown when a session is created. It carries the system
// role and is therefore never replayed to the model.
const WelcomeMessage = "Hello! I'm Zenith, your AI coding agent. Describe the website you want to build, or ask me to change the current project."

// titleLimit caps auto-generated session titles.
const titleLimit = 50

// RuntimeFactory builds the sandbox runtime for a session. It may return nil
// when rendering is not available.
type RuntimeFactory func(sessionID string) sandbox.Runtime

// Manager owns the per-session runtimes.
type Manager struct {
	sessions store.SessionStore
	messages store.MessageStore
	projects store.ProjectStore
	settings store.SettingsStore
	factory  *model.Factory
	sandbox  RuntimeFactory

	mu       sync.Mutex
	runtimes map[string]*Runtime
}

// Runtime is the live state of one session.
type Runtime struct {
	id       string
	projects *project.Store
	logs     *console.Buffer
	executor *tools.Executor
	renderer sandbox.Runtime

	mu     sync.Mutex
	active *agent.Agent
}

// NewManager creates a Manager.
func NewManager(
	sessions store.SessionStore,
	messages store.MessageStore,
	projects store.ProjectStore,
	settings store.SettingsStore,
	factory *model.Factory,
	sandboxFactory RuntimeFactory,
) *Manager {
	return &Manager{
		sessions: sessions,
		messages: messages,
		projects: projects,
		settings: settings,
		factory:  factory,
		sandbox:  sandboxFactory,
		runtimes: make(map[string]*Runtime),
	}
}

// CreateSession persists a new session and seeds it with the welcome
// message.
func (m *Manager) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	if title == "" {
		title = "New Project"
	}
	sess := &domain.Session{ID: uuid.New().String(), Title: title}
	if err := m.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	welcome := &domain.Message{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		Role:      domain.RoleSystem,
		Content:   WelcomeMessage,
		Parts:     []domain.MessagePart{{Type: domain.PartTypeText, Text: WelcomeMessage}},
	}
	if err := m.messages.SaveMessage(ctx, welcome); err != nil {
		return nil, fmt.Errorf("seeding welcome message: %w", err)
	}
	return sess, nil
}

// DeleteSession aborts any active turn, drops the runtime and removes the
// session from the store.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	rt := m.runtimes[id]
	delete(m.runtimes, id)
	m.mu.Unlock()

	if rt != nil {
		rt.abort()
		if rt.renderer != nil {
			rt.renderer.Close()
		}
	}
	return m.sessions.DeleteSession(ctx, id)
}

// Runtime returns the session's live runtime, creating it on first use. The
// project store is seeded from the persisted snapshot, or the default
// project for a brand new session.
func (m *Manager) Runtime(ctx context.Context, sessionID string) (*Runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rt, ok := m.runtimes[sessionID]; ok {
		return rt, nil
	}

	if _, err := m.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	projects := project.NewStore()
	if snapshot, ok, err := m.projects.GetProject(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("loading project snapshot: %w", err)
	} else if ok {
		projects.SetProject(snapshot)
	}

	logs := console.NewBuffer(console.DefaultCapacity)

	var renderer sandbox.Runtime
	if m.sandbox != nil {
		renderer = m.sandbox(sessionID)
	}

	rt := &Runtime{
		id:       sessionID,
		projects: projects,
		logs:     logs,
		executor: tools.NewExecutor(projects, logs, renderer),
		renderer: renderer,
	}
	m.runtimes[sessionID] = rt
	return rt, nil
}

// Project returns the session's current project files.
func (m *Manager) Project(ctx context.Context, sessionID string) (domain.Project, error) {
	rt, err := m.Runtime(ctx, sessionID)
	if err != nil {
		return domain.Project{}, err
	}
	return rt.projects.ReadFiles(), nil
}

// AppendConsoleLog records one console entry forwarded from the live
// preview.
func (m *Manager) AppendConsoleLog(ctx context.Context, sessionID string, log domain.ConsoleLog) error {
	rt, err := m.Runtime(ctx, sessionID)
	if err != nil {
		return err
	}
	rt.logs.Append(log)
	return nil
}

// Send persists the user's message and starts a turn in the background. A
// turn already in flight for the session is superseded.
func (m *Manager) Send(ctx context.Context, sessionID, text string) error {
	rt, err := m.Runtime(ctx, sessionID)
	if err != nil {
		return err
	}

	userMsg := &domain.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   text,
		Parts:     []domain.MessagePart{{Type: domain.PartTypeText, Text: text}},
		Timestamp: time.Now(),
	}
	if err := m.messages.SaveMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}

	m.maybeTitleSession(ctx, sessionID, text)

	go m.runTurn(rt)
	return nil
}

// Abort cancels the session's active turn, if any.
func (m *Manager) Abort(sessionID string) {
	m.mu.Lock()
	rt := m.runtimes[sessionID]
	m.mu.Unlock()
	if rt != nil {
		rt.abort()
	}
}

// Status reports the session's agent activity.
func (m *Manager) Status(sessionID string) agent.Status {
	m.mu.Lock()
	rt := m.runtimes[sessionID]
	m.mu.Unlock()
	if rt == nil {
		return agent.StatusIdle
	}
	return rt.status()
}

// Close aborts all active turns and releases renderers.
func (m *Manager) Close() {
	m.mu.Lock()
	runtimes := m.runtimes
	m.runtimes = make(map[string]*Runtime)
	m.mu.Unlock()

	for _, rt := range runtimes {
		rt.abort()
		if rt.renderer != nil {
			rt.renderer.Close()
		}
	}
}

// runTurn executes one agent turn for the session and persists its output.
func (m *Manager) runTurn(rt *Runtime) {
	ctx := context.Background()

	settings, err := m.settings.GetSettings(ctx)
	if err != nil {
		m.saveErrorMessage(ctx, rt.id, fmt.Errorf("loading settings: %w", err))
		return
	}

	provider, err := m.factory.Provider(ctx, settings)
	if err != nil {
		m.saveErrorMessage(ctx, rt.id, err)
		return
	}

	history, err := m.messages.GetMessages(ctx, rt.id)
	if err != nil {
		m.saveErrorMessage(ctx, rt.id, fmt.Errorf("loading history: %w", err))
		return
	}

	a := agent.New(agent.Config{
		Provider:     provider,
		Model:        settings.Active().Model,
		Instructions: agent.Instructions,
		Executor:     rt.executor,
		OnUpdate: func(msg *domain.Message) {
			msg.SessionID = rt.id
			if err := m.messages.SaveMessage(ctx, msg); err != nil {
				slog.Error("Failed to persist draft message", "sessionID", rt.id, "error", err)
			}
		},
	})
	rt.setActive(a)
	defer rt.clearActive(a)

	msg, err := a.Run(ctx, history)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Turn failed", "sessionID", rt.id, "error", err)
	}

	msg.SessionID = rt.id
	if err := m.messages.SaveMessage(ctx, msg); err != nil {
		slog.Error("Failed to persist assistant message", "sessionID", rt.id, "error", err)
	}
	if err := m.projects.SaveProject(ctx, rt.id, rt.projects.ReadFiles()); err != nil {
		slog.Error("Failed to persist project snapshot", "sessionID", rt.id, "error", err)
	}
}

// saveErrorMessage records a turn setup failure in the conversation so the
// user sees it.
func (m *Manager) saveErrorMessage(ctx context.Context, sessionID string, err error) {
	slog.Error("Turn setup failed", "sessionID", sessionID, "error", err)
	msg := &domain.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Timestamp: time.Now(),
	}
	msg.AppendText(fmt.Sprintf("[Error: %v]", err))
	if saveErr := m.messages.SaveMessage(ctx, msg); saveErr != nil {
		slog.Error("Failed to persist error message", "sessionID", sessionID, "error", saveErr)
	}
}

// maybeTitleSession names an untitled session after its first user message.
func (m *Manager) maybeTitleSession(ctx context.Context, sessionID, text string) {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil || sess.Title != "New Project" {
		return
	}
	title := text
	if runes := []rune(title); len(runes) > titleLimit {
		title = string(runes[:titleLimit])
	}
	if err := m.sessions.RenameSession(ctx, sessionID, title); err != nil {
		slog.Warn("Failed to title session", "sessionID", sessionID, "error", err)
	}
}

func (rt *Runtime) setActive(a *agent.Agent) {
	rt.mu.Lock()
	prev := rt.active
	rt.active = a
	rt.mu.Unlock()
	if prev != nil {
		prev.Abort()
	}
}

func (rt *Runtime) clearActive(a *agent.Agent) {
	rt.mu.Lock()
	if rt.active == a {
		rt.active = nil
	}
	rt.mu.Unlock()
}

func (rt *Runtime) abort() {
	rt.mu.Lock()
	a := rt.active
	rt.mu.Unlock()
	if a != nil {
		a.Abort()
	}
}

func (rt *Runtime) status() agent.Status {
	rt.mu.Lock()
	a := rt.active
	rt.mu.Unlock()
	if a == nil {
		return agent.StatusIdle
	}
	return a.Status()
}
