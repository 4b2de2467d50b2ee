// Package gemini implements model.Provider using the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"zenith/pkg/domain"
	"zenith/pkg/model"
	"zenith/pkg/tools"
)

// Provider streams completions from the Gemini API.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "google" }

// List returns the Gemini models that support content generation.
func (p *Provider) List(ctx context.Context) ([]model.ModelInfo, error) {
	var infos []model.ModelInfo
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}

		supportsGenerate := false
		for _, action := range m.SupportedActions {
			if action == "generateContent" {
				supportsGenerate = true
				break
			}
		}
		if !supportsGenerate {
			continue
		}

		infos = append(infos, model.ModelInfo{
			ID:   strings.TrimPrefix(m.Name, "models/"),
			Name: m.DisplayName,
		})
	}
	return infos, nil
}

// Stream sends a conversation context to the LLM and returns a stream.
func (p *Provider) Stream(ctx context.Context, modelName, instructions string, messages []model.Message, defs []tools.Def) (model.Stream, error) {
	slog.Debug("Gemini.Stream", "model", modelName, "messageCount", len(messages))

	var systemInstruction *genai.Content
	if instructions != "" {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		}
	}

	contents := buildContents(messages)

	config := &genai.GenerateContentConfig{
		Tools:             buildToolDeclarations(defs),
		SystemInstruction: systemInstruction,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	iter := p.client.Models.GenerateContentStream(streamCtx, modelName, contents, config)

	s := &geminiStream{
		events: make(chan eventOrError, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.pump(iter)
	return s, nil
}

// buildContents converts provider-neutral messages to genai.Content. Function
// responses must carry the name of the call that produced them, so call IDs
// are tracked across the history.
func buildContents(messages []model.Message) []*genai.Content {
	var contents []*genai.Content
	toolNameMap := make(map[string]string)

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			// System role is handled via instructions.
			continue
		}

		var parts []*genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case model.ContentTypeText:
				parts = append(parts, &genai.Part{Text: c.Text})
			case model.ContentTypeToolCall:
				if c.ToolCall != nil {
					toolNameMap[c.ToolCall.ID] = c.ToolCall.Name
					parts = append(parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: c.ToolCall.Name,
							Args: c.ToolCall.Args,
							ID:   c.ToolCall.ID,
						},
					})
				}
			case model.ContentTypeToolResult:
				if c.ToolResult != nil {
					name := toolNameMap[c.ToolResult.ToolCallID]
					if name == "" {
						name = c.ToolResult.Name
					}
					parts = append(parts, &genai.Part{
						FunctionResponse: &genai.FunctionResponse{
							Name:     name,
							ID:       c.ToolResult.ToolCallID,
							Response: resultResponse(c.ToolResult.Result),
						},
					})
					if img := imagePart(c.ToolResult.Result); img != nil {
						parts = append(parts, img)
					}
				}
			}
		}

		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}
	return contents
}

// resultResponse flattens a tool result into the response map Gemini expects.
// A screenshot is too large to inline as function output; it follows the
// function response as its own inline-data part (see imagePart).
func resultResponse(r *domain.ToolResult) map[string]any {
	if r == nil {
		return map[string]any{"result": ""}
	}
	out := map[string]any{
		"status": string(r.Status),
		"result": r.Message,
	}
	if r.Files != nil {
		out["files"] = map[string]any{
			"html":       r.Files.HTML,
			"css":        r.Files.CSS,
			"javascript": r.Files.JavaScript,
		}
	}
	if r.Logs != "" {
		out["logs"] = r.Logs
	}
	if r.Image != "" {
		out["result"] = r.Message + " (the screenshot follows as an image)"
	}
	return out
}

// imagePart decodes a data-URI screenshot into an inline image part so the
// model can inspect the rendered page, not just the textual summary.
func imagePart(r *domain.ToolResult) *genai.Part {
	if r == nil || r.Image == "" {
		return nil
	}
	meta, payload, ok := strings.Cut(r.Image, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		slog.Warn("Unsupported screenshot data URI", "prefix", meta)
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		slog.Warn("Malformed screenshot data URI", "error", err)
		return nil
	}
	mimeType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}

func buildToolDeclarations(defs []tools.Def) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
		}
		if len(def.Properties) > 0 {
			props := make(map[string]*genai.Schema, len(def.Properties))
			for name, p := range def.Properties {
				props[name] = &genai.Schema{
					Type:        genai.TypeString,
					Description: p.Description,
					Enum:        p.Enum,
				}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   def.Required,
			}
		}
		decls = append(decls, decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

type eventOrError struct {
	event model.Event
	err   error
}

// geminiStream adapts the SDK's range iterator to the pull-based Stream
// interface. A goroutine drains the iterator into a channel; Close cancels
// the request context, which unblocks the iterator.
type geminiStream struct {
	events    chan eventOrError
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func (s *geminiStream) pump(iter func(yield func(*genai.GenerateContentResponse, error) bool)) {
	defer close(s.events)

	for resp, err := range iter {
		if err != nil {
			s.send(eventOrError{err: err})
			return
		}
		if resp == nil {
			continue
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					if !s.send(eventOrError{event: model.Event{Text: part.Text}}) {
						return
					}
				}
				if part.FunctionCall != nil {
					fc := part.FunctionCall
					id := fc.ID
					if id == "" {
						id = "call-" + uuid.New().String()
					}
					ok := s.send(eventOrError{event: model.Event{
						ToolCall: &model.ToolCall{
							ID:   id,
							Name: fc.Name,
							Args: fc.Args,
						},
					}})
					if !ok {
						return
					}
				}
			}
		}
	}
}

// send delivers an item unless the stream has been closed. Returns false if
// the consumer is gone.
func (s *geminiStream) send(item eventOrError) bool {
	select {
	case s.events <- item:
		return true
	case <-s.done:
		return false
	}
}

func (s *geminiStream) Recv() (model.Event, error) {
	item, ok := <-s.events
	if !ok {
		return model.Event{}, io.EOF
	}
	return item.event, item.err
}

func (s *geminiStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}
