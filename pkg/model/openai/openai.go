// Package openai implements model.Provider for OpenAI-compatible chat
// completion APIs. Groq is served by the same binding with a different base
// URL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/tools"
)

// Provider streams completions from an OpenAI-compatible endpoint.
type Provider struct {
	name   string
	client openai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a provider for the given endpoint. name is the provider
// identifier reported to callers ("openai", "groq").
func New(name, baseURL, apiKey string) *Provider {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &Provider{name: name, client: client}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.name }

// List returns the models the endpoint advertises.
func (p *Provider) List(ctx context.Context) ([]model.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s models: %w", p.name, err)
	}

	infos := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		infos = append(infos, model.ModelInfo{ID: m.ID, Name: m.ID})
	}
	return infos, nil
}

// Stream sends a conversation context to the LLM and returns a stream.
func (p *Provider) Stream(ctx context.Context, modelName, instructions string, messages []model.Message, defs []tools.Def) (model.Stream, error) {
	slog.Debug("OpenAI.Stream", "provider", p.name, "model", modelName, "messageCount", len(messages))

	oaMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if instructions != "" {
		oaMessages = append(oaMessages, openai.SystemMessage(instructions))
	}
	for _, msg := range messages {
		oaMessages = append(oaMessages, convertMessage(msg)...)
	}

	params := openai.ChatCompletionNewParams{
		Messages: oaMessages,
		Model:    openai.ChatModel(modelName),
	}
	if len(defs) > 0 {
		params.Tools = convertTools(defs)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	return &openaiStream{stream: stream}, nil
}

// convertMessage maps one provider-neutral message onto the chat completion
// wire format. Tool results become separate tool-role messages, so a single
// input message can expand to several.
func convertMessage(msg model.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	switch msg.Role {
	case domain.RoleSystem:
		// System role is handled via instructions.
		return nil

	case domain.RoleUser:
		var toolMessages []openai.ChatCompletionMessageParamUnion
		for _, c := range msg.Content {
			switch c.Type {
			case model.ContentTypeText:
				out = append(out, openai.UserMessage(c.Text))
			case model.ContentTypeToolResult:
				if c.ToolResult != nil {
					toolMessages = append(toolMessages,
						openai.ToolMessage(encodeResult(c.ToolResult.Result), c.ToolResult.ToolCallID))
					if img := imageMessage(c.ToolResult.Result); img != nil {
						toolMessages = append(toolMessages, *img)
					}
				}
			}
		}
		// Tool results precede any follow-up user text.
		return append(toolMessages, out...)

	case domain.RoleAssistant:
		var text string
		var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
		for _, c := range msg.Content {
			switch c.Type {
			case model.ContentTypeText:
				text += c.Text
			case model.ContentTypeToolCall:
				if c.ToolCall != nil {
					args, _ := json.Marshal(c.ToolCall.Args)
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: c.ToolCall.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      c.ToolCall.Name,
								Arguments: string(args),
							},
						},
					})
				}
			}
		}
		if len(toolCalls) == 0 {
			return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}
		}
		assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
		if text != "" {
			assistant.Content.OfString = openai.String(text)
		}
		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}
	}

	return out
}

// encodeResult renders a tool result as the JSON body of a tool-role
// message. A screenshot is too large to inline here; it follows as a vision
// content part in its own user message (see imageMessage).
func encodeResult(r *domain.ToolResult) string {
	if r == nil {
		return `{"result":""}`
	}
	body := map[string]any{
		"status": string(r.Status),
		"result": r.Message,
	}
	if r.Files != nil {
		body["files"] = map[string]any{
			"html":       r.Files.HTML,
			"css":        r.Files.CSS,
			"javascript": r.Files.JavaScript,
		}
	}
	if r.Logs != "" {
		body["logs"] = r.Logs
	}
	if r.Image != "" {
		body["result"] = r.Message + " (the screenshot follows as an image)"
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return `{"result":"` + r.Message + `"}`
	}
	return string(encoded)
}

// imageMessage carries a screenshot data URI to the model. Tool-role messages
// are text only on this API, so the image rides in a user message placed
// right after the tool result it belongs to.
func imageMessage(r *domain.ToolResult) *openai.ChatCompletionMessageParamUnion {
	if r == nil || r.Image == "" {
		return nil
	}
	msg := openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: r.Image}),
	})
	return &msg
}

func convertTools(defs []tools.Def) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		props := make(map[string]any, len(def.Properties))
		for name, p := range def.Properties {
			prop := map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if len(p.Enum) > 0 {
				prop["enum"] = p.Enum
			}
			props[name] = prop
		}
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters: openai.FunctionParameters(map[string]any{
				"type":       "object",
				"properties": props,
				"required":   def.Required,
			}),
		}))
	}
	return out
}

// openaiStream pulls chunks on demand. The accumulator reassembles tool
// calls that arrive fragmented across chunks; a single chunk can finish a
// tool call and carry a text delta, so events queue between Recv calls.
type openaiStream struct {
	stream interface {
		Next() bool
		Current() openai.ChatCompletionChunk
		Err() error
		Close() error
	}
	acc   openai.ChatCompletionAccumulator
	queue []model.Event
}

func (s *openaiStream) Recv() (model.Event, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}

		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
				return model.Event{}, err
			}
			return model.Event{}, io.EOF
		}

		chunk := s.stream.Current()
		s.acc.AddChunk(chunk)

		if tool, ok := s.acc.JustFinishedToolCall(); ok {
			s.queue = append(s.queue, model.Event{
				ToolCall: &model.ToolCall{
					ID:   s.toolCallID(tool.Index),
					Name: tool.Name,
					Args: parseArgs(tool.Arguments),
				},
			})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.queue = append(s.queue, model.Event{Text: chunk.Choices[0].Delta.Content})
		}
	}
}

// toolCallID recovers the provider-assigned call ID from the accumulated
// completion, minting one if the endpoint omitted it.
func (s *openaiStream) toolCallID(index int) string {
	if len(s.acc.Choices) > 0 {
		calls := s.acc.Choices[0].Message.ToolCalls
		if index < len(calls) && calls[index].ID != "" {
			return calls[index].ID
		}
	}
	return "call-" + uuid.New().String()
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

// parseArgs decodes a JSON argument blob; malformed arguments yield an empty
// map so the tool layer can report the missing parameters itself.
func parseArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		slog.Warn("Failed to parse tool call arguments", "error", err, "raw", raw)
		return map[string]any{}
	}
	return args
}
