// Package agent runs the tool-calling loop: it streams model output into an
// assistant message, executes requested tools between rounds, and feeds the
// results back until the model answers without calling tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/tools"
)

// DefaultMaxRounds bounds the number of model rounds in a single turn.
const DefaultMaxRounds = 24

// Status describes what the agent is currently doing.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStreaming   Status = "streaming"
	StatusRunningTool Status = "running_tool"
)

// Config configures an Agent.
type Config struct {
	Provider     model.Provider
	Model        string
	Instructions string
	Executor     *tools.Executor

	// OnUpdate is invoked synchronously on the run goroutine after every
	// mutation of the draft assistant message. The message must not be
	// retained across calls.
	OnUpdate func(msg *domain.Message)

	// MaxRounds caps model rounds per turn. Zero means DefaultMaxRounds.
	MaxRounds int
}

// Agent executes turns for one session. At most one turn is active at a
// time: starting a new turn aborts the previous one.
type Agent struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	status Status
}

// New creates an Agent.
func New(cfg Config) *Agent {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	return &Agent{cfg: cfg, status: StatusIdle}
}

// Status returns the agent's current activity.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Abort cancels the active turn, if any. The turn's message keeps whatever
// was streamed before the cancellation; tool results that arrive afterwards
// are dropped.
func (a *Agent) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Run executes one turn against the given conversation history and returns
// the assistant message it produced. On abort the partial message is
// returned with ctx.Err; on a transport failure the error is also appended
// to the message text so the conversation records what happened.
func (a *Agent) Run(ctx context.Context, history []domain.Message) (*domain.Message, error) {
	runCtx := a.begin(ctx)
	defer a.finish()

	msgs := BuildContext(history)
	draft := &domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleAssistant,
		Timestamp: time.Now(),
	}
	a.notify(draft)

	for round := 0; round < a.cfg.MaxRounds; round++ {
		calls, err := a.streamRound(runCtx, draft, &msgs)
		if err != nil {
			if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
				return draft, context.Canceled
			}
			a.appendErrorNote(draft, err)
			return draft, err
		}

		if len(calls) == 0 {
			return draft, nil
		}

		results, err := a.runTools(runCtx, draft, calls)
		if err != nil {
			return draft, err
		}
		msgs = append(msgs, model.Message{Role: domain.RoleUser, Content: results})
	}

	slog.Warn("Turn hit round limit", "maxRounds", a.cfg.MaxRounds)
	return draft, nil
}

// streamRound consumes one model round, appending deltas and tool calls to
// the draft. The assistant round is appended to msgs so follow-up rounds see
// it.
func (a *Agent) streamRound(ctx context.Context, draft *domain.Message, msgs *[]model.Message) ([]*model.ToolCall, error) {
	a.setStatus(StatusStreaming)

	stream, err := a.cfg.Provider.Stream(ctx, a.cfg.Model, a.cfg.Instructions, *msgs, tools.Defs())
	if err != nil {
		return nil, fmt.Errorf("streaming model: %w", err)
	}
	defer stream.Close()

	var calls []*model.ToolCall
	var roundText strings.Builder

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model stream: %w", err)
		}

		if ev.Text != "" {
			draft.AppendText(ev.Text)
			roundText.WriteString(ev.Text)
			a.notify(draft)
		}
		if ev.ToolCall != nil {
			calls = append(calls, ev.ToolCall)
			draft.AppendToolInvocation(&domain.ToolInvocation{
				ToolCallID: ev.ToolCall.ID,
				ToolName:   ev.ToolCall.Name,
				Args:       ev.ToolCall.Args,
			})
			a.notify(draft)
		}
	}

	assistant := model.Message{Role: domain.RoleAssistant}
	if roundText.Len() > 0 {
		assistant.Content = append(assistant.Content, model.Content{
			Type: model.ContentTypeText,
			Text: roundText.String(),
		})
	}
	for _, call := range calls {
		assistant.Content = append(assistant.Content, model.Content{
			Type:     model.ContentTypeToolCall,
			ToolCall: call,
		})
	}
	if len(assistant.Content) > 0 {
		*msgs = append(*msgs, assistant)
	}

	return calls, nil
}

// runTools executes a round's tool calls in emission order and attaches each
// result to its invocation part.
func (a *Agent) runTools(ctx context.Context, draft *domain.Message, calls []*model.ToolCall) ([]model.Content, error) {
	a.setStatus(StatusRunningTool)

	results := make([]model.Content, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			return nil, context.Canceled
		}

		res := a.cfg.Executor.Execute(ctx, call.Name, call.Args)
		if ctx.Err() != nil {
			// Aborted mid-execution; the result is stale.
			return nil, context.Canceled
		}

		draft.AttachToolResult(call.ID, res)
		a.notify(draft)

		results = append(results, model.Content{
			Type: model.ContentTypeToolResult,
			ToolResult: &model.ToolCallResult{
				ToolCallID: call.ID,
				Name:       call.Name,
				Result:     res,
			},
		})
	}
	return results, nil
}

// appendErrorNote records a transport failure in the message body.
func (a *Agent) appendErrorNote(draft *domain.Message, err error) {
	note := fmt.Sprintf("[Error: %v]", err)
	if draft.Content != "" {
		note = "\n\n" + note
	}
	draft.AppendText(note)
	a.notify(draft)
}

func (a *Agent) begin(ctx context.Context) context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		// A new turn supersedes the active one.
		a.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.status = StatusStreaming
	return runCtx
}

func (a *Agent) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.status = StatusIdle
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *Agent) notify(draft *domain.Message) {
	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate(draft)
	}
}

// BuildContext converts stored chat messages into the provider-neutral
// format. System-role messages are never replayed; a completed tool
// invocation contributes both the call on the assistant side and its result
// in a follow-up user-side message.
func BuildContext(history []domain.Message) []model.Message {
	var msgs []model.Message

	for _, m := range history {
		switch m.Role {
		case domain.RoleSystem:
			continue

		case domain.RoleUser:
			if m.Content != "" {
				msgs = append(msgs, model.Message{
					Role:    domain.RoleUser,
					Content: []model.Content{{Type: model.ContentTypeText, Text: m.Content}},
				})
			}

		case domain.RoleAssistant:
			assistant := model.Message{Role: domain.RoleAssistant}
			var results []model.Content

			for _, p := range m.Parts {
				switch p.Type {
				case domain.PartTypeText:
					assistant.Content = append(assistant.Content, model.Content{
						Type: model.ContentTypeText,
						Text: p.Text,
					})
				case domain.PartTypeToolInvocation:
					if p.ToolInvocation == nil {
						continue
					}
					inv := p.ToolInvocation
					assistant.Content = append(assistant.Content, model.Content{
						Type: model.ContentTypeToolCall,
						ToolCall: &model.ToolCall{
							ID:   inv.ToolCallID,
							Name: inv.ToolName,
							Args: inv.Args,
						},
					})
					if inv.Result != nil {
						results = append(results, model.Content{
							Type: model.ContentTypeToolResult,
							ToolResult: &model.ToolCallResult{
								ToolCallID: inv.ToolCallID,
								Name:       inv.ToolName,
								Result:     inv.Result,
							},
						})
					}
				}
			}

			if len(assistant.Content) > 0 {
				msgs = append(msgs, assistant)
			}
			if len(results) > 0 {
				msgs = append(msgs, model.Message{Role: domain.RoleUser, Content: results})
			}
		}
	}

	return msgs
}
