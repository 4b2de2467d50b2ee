package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"zenith/pkg/console"
	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/project"
	"zenith/pkg/tools"
)

// fakeEvent scripts one Recv outcome. block waits for stream cancellation.
type fakeEvent struct {
	ev    model.Event
	err   error
	block bool
}

type fakeStream struct {
	ctx    context.Context
	events []fakeEvent
	idx    int
}

func (s *fakeStream) Recv() (model.Event, error) {
	if s.idx >= len(s.events) {
		return model.Event{}, io.EOF
	}
	e := s.events[s.idx]
	s.idx++
	if e.block {
		<-s.ctx.Done()
		return model.Event{}, s.ctx.Err()
	}
	return e.ev, e.err
}

func (s *fakeStream) Close() error { return nil }

// fakeProvider plays back one scripted event sequence per round and records
// the message context of every round it serves.
type fakeProvider struct {
	rounds   [][]fakeEvent
	call     int
	contexts [][]model.Message
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) List(ctx context.Context) ([]model.ModelInfo, error) {
	return nil, nil
}

func (p *fakeProvider) Stream(ctx context.Context, modelName, instructions string, messages []model.Message, defs []tools.Def) (model.Stream, error) {
	p.contexts = append(p.contexts, messages)
	if p.call >= len(p.rounds) {
		return nil, errors.New("no scripted round left")
	}
	events := p.rounds[p.call]
	p.call++
	return &fakeStream{ctx: ctx, events: events}, nil
}

func newTestAgent(t *testing.T, provider model.Provider, onUpdate func(*domain.Message)) (*Agent, *project.Store) {
	t.Helper()
	projects := project.NewStore()
	executor := tools.NewExecutor(projects, console.NewBuffer(console.DefaultCapacity), nil)
	a := New(Config{
		Provider:     provider,
		Model:        "test-model",
		Instructions: Instructions,
		Executor:     executor,
		OnUpdate:     onUpdate,
	})
	return a, projects
}

func userMessage(text string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: text}
}

func TestRunCoalescesTextDeltas(t *testing.T) {
	provider := &fakeProvider{rounds: [][]fakeEvent{{
		{ev: model.Event{Text: "Hello"}},
		{ev: model.Event{Text: ", "}},
		{ev: model.Event{Text: "world"}},
	}}}
	a, _ := newTestAgent(t, provider, nil)

	msg, err := a.Run(context.Background(), []domain.Message{userMessage("hi")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q", msg.Content)
	}
	if len(msg.Parts) != 1 || msg.Parts[0].Type != domain.PartTypeText {
		t.Errorf("Parts = %+v, want a single text part", msg.Parts)
	}
	if a.Status() != StatusIdle {
		t.Errorf("status = %s after Run", a.Status())
	}
}

func TestRunExecutesToolAndFeedsResultBack(t *testing.T) {
	provider := &fakeProvider{rounds: [][]fakeEvent{
		{
			{ev: model.Event{Text: "Updating the page."}},
			{ev: model.Event{ToolCall: &model.ToolCall{
				ID:   "call-1",
				Name: tools.ToolUpdateFile,
				Args: map[string]any{"target": "css", "content": "body { margin: 0; }"},
			}}},
		},
		{
			{ev: model.Event{Text: "Done."}},
		},
	}}
	a, projects := newTestAgent(t, provider, nil)

	msg, err := a.Run(context.Background(), []domain.Message{userMessage("remove margins")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := projects.ReadFiles().CSS; got != "body { margin: 0; }" {
		t.Errorf("CSS = %q, tool did not run", got)
	}

	// The invocation part carries the result in place.
	if len(msg.Parts) != 3 {
		t.Fatalf("Parts = %d, want text + invocation + text", len(msg.Parts))
	}
	inv := msg.Parts[1].ToolInvocation
	if inv == nil || inv.Result == nil {
		t.Fatalf("invocation part = %+v, want attached result", msg.Parts[1])
	}
	if inv.Result.Status != domain.StatusSuccess {
		t.Errorf("tool result = %+v", inv.Result)
	}

	// The second round saw the tool result in its context.
	if len(provider.contexts) != 2 {
		t.Fatalf("rounds served = %d", len(provider.contexts))
	}
	second := provider.contexts[1]
	last := second[len(second)-1]
	if last.Role != domain.RoleUser || len(last.Content) != 1 || last.Content[0].Type != model.ContentTypeToolResult {
		t.Errorf("last context message = %+v, want tool result", last)
	}
	if last.Content[0].ToolResult.ToolCallID != "call-1" {
		t.Errorf("result call ID = %q", last.Content[0].ToolResult.ToolCallID)
	}
}

func TestRunExecutesToolBatchInOrder(t *testing.T) {
	provider := &fakeProvider{rounds: [][]fakeEvent{
		{
			{ev: model.Event{ToolCall: &model.ToolCall{
				ID:   "call-1",
				Name: tools.ToolUpdateFile,
				Args: map[string]any{"target": "javascript", "content": "let v = 1;"},
			}}},
			{ev: model.Event{ToolCall: &model.ToolCall{
				ID:   "call-2",
				Name: tools.ToolPatchFile,
				Args: map[string]any{"target": "javascript", "search_string": "1", "replacement_string": "2"},
			}}},
		},
		{
			{ev: model.Event{Text: "done"}},
		},
	}}
	a, projects := newTestAgent(t, provider, nil)

	if _, err := a.Run(context.Background(), []domain.Message{userMessage("x")}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The patch only succeeds if the update ran first.
	if got := projects.ReadFiles().JavaScript; got != "let v = 2;" {
		t.Errorf("JavaScript = %q", got)
	}
}

func TestRunAbortKeepsStreamedText(t *testing.T) {
	provider := &fakeProvider{rounds: [][]fakeEvent{{
		{ev: model.Event{Text: "Hello"}},
		{block: true},
	}}}

	var a *Agent
	a, _ = newTestAgent(t, provider, func(msg *domain.Message) {
		if msg.Content == "Hello" {
			a.Abort()
		}
	})

	msg, err := a.Run(context.Background(), []domain.Message{userMessage("hi")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want only the streamed delta", msg.Content)
	}
	if a.Status() != StatusIdle {
		t.Errorf("status = %s after abort", a.Status())
	}
}

func TestRunAppendsErrorNote(t *testing.T) {
	provider := &fakeProvider{rounds: [][]fakeEvent{{
		{ev: model.Event{Text: "Partial answer"}},
		{err: errors.New("rate limited")},
	}}}
	a, _ := newTestAgent(t, provider, nil)

	msg, err := a.Run(context.Background(), []domain.Message{userMessage("hi")})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.Contains(msg.Content, "Partial answer") {
		t.Errorf("Content = %q, lost streamed text", msg.Content)
	}
	if !strings.Contains(msg.Content, "[Error: ") || !strings.Contains(msg.Content, "rate limited") {
		t.Errorf("Content = %q, want error note", msg.Content)
	}
}

func TestBuildContextSkipsSystemAndReplaysToolResults(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleSystem, Content: "Welcome to Zenith"},
		{Role: domain.RoleUser, Content: "make it blue"},
		{
			Role:    domain.RoleAssistant,
			Content: "On it.",
			Parts: []domain.MessagePart{
				{Type: domain.PartTypeText, Text: "On it."},
				{Type: domain.PartTypeToolInvocation, ToolInvocation: &domain.ToolInvocation{
					ToolCallID: "call-9",
					ToolName:   tools.ToolPatchFile,
					Args:       map[string]any{"target": "css"},
					Result:     &domain.ToolResult{Status: domain.StatusSuccess, Message: "Patched css"},
				}},
			},
		},
	}

	msgs := BuildContext(history)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want user + assistant + tool results", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser {
		t.Errorf("msgs[0].Role = %s", msgs[0].Role)
	}
	if msgs[1].Role != domain.RoleAssistant || len(msgs[1].Content) != 2 {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Content[0].ToolResult.ToolCallID != "call-9" {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
}

func TestBuildContextSkipsPendingInvocationResults(t *testing.T) {
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "test it"},
		{
			Role: domain.RoleAssistant,
			Parts: []domain.MessagePart{
				{Type: domain.PartTypeToolInvocation, ToolInvocation: &domain.ToolInvocation{
					ToolCallID: "call-3",
					ToolName:   tools.ToolScreenshot,
				}},
			},
		},
	}

	msgs := BuildContext(history)
	for _, m := range msgs {
		for _, c := range m.Content {
			if c.Type == model.ContentTypeToolResult {
				t.Fatalf("pending invocation produced a result message: %+v", m)
			}
		}
	}
}
