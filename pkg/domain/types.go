package domain

import (
	"strings"
	"time"
)

// Project is the three-file web document the agent edits. Once a session has
// a project, all three fields are defined; there is no partially-populated
// state.
type Project struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
}

// Project file targets accepted by update_file/patch_file.
const (
	TargetHTML       = "html"
	TargetCSS        = "css"
	TargetJavaScript = "javascript"
)

// ValidTarget reports whether target names one of the three project files.
func ValidTarget(target string) bool {
	switch target {
	case TargetHTML, TargetCSS, TargetJavaScript:
		return true
	}
	return false
}

// Message is a single chat entry. Content mirrors the concatenation of the
// text parts and is maintained incrementally alongside Parts.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id,omitempty"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Parts     []MessagePart `json:"parts"`
	Timestamp time.Time     `json:"timestamp"`
}

// MessagePart is a tagged union over text runs and tool invocations. Part
// order matches stream emission order.
type MessagePart struct {
	Type string `json:"type"` // "text" or "tool-invocation"

	// Text run (when Type == "text").
	Text string `json:"text,omitempty"`

	// Tool invocation (when Type == "tool-invocation").
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

// ToolInvocation pairs a tool call with its eventual result. The same record
// (matched by ToolCallID) is updated in place once the result is known; a nil
// Result means the call is still running.
type ToolInvocation struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Result     *ToolResult    `json:"result,omitempty"`
}

// ToolResult is the normalized outcome of a tool execution. It is always
// JSON-serializable since it is fed back into the model's context.
type ToolResult struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message,omitempty"`

	// Files is the project snapshot returned by read_files.
	Files *Project `json:"files,omitempty"`
	// Logs is the formatted console output returned by read_console_logs.
	Logs string `json:"logs,omitempty"`
	// Image is a data-URI encoded screenshot. Kept separate from Message so
	// textual summaries never embed the base64 payload.
	Image string `json:"image,omitempty"`
	// LenientMatch marks a patch applied after trimming whitespace from the
	// search string. Informational, not an error.
	LenientMatch bool `json:"lenient_match,omitempty"`
}

// Tool result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ConsoleLog is one structured entry forwarded from the live preview.
type ConsoleLog struct {
	Type      string    `json:"type"` // log, error, warn, info
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session groups a conversation and its in-memory project.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppendText adds delta to the message's trailing text part, opening a new
// part if the last part is not text. This keeps a contiguous text run in a
// single part; a tool call always forces a part boundary.
func (m *Message) AppendText(delta string) {
	m.Content += delta
	if n := len(m.Parts); n > 0 && m.Parts[n-1].Type == PartTypeText {
		m.Parts[n-1].Text += delta
		return
	}
	m.Parts = append(m.Parts, MessagePart{Type: PartTypeText, Text: delta})
}

// AppendToolInvocation records a pending tool call as a new part.
func (m *Message) AppendToolInvocation(inv *ToolInvocation) {
	m.Parts = append(m.Parts, MessagePart{Type: PartTypeToolInvocation, ToolInvocation: inv})
}

// AttachToolResult locates the tool-invocation part with the given call ID
// and attaches the result in place. Returns false if no such part exists.
func (m *Message) AttachToolResult(toolCallID string, result *ToolResult) bool {
	for i := range m.Parts {
		p := &m.Parts[i]
		if p.Type == PartTypeToolInvocation && p.ToolInvocation != nil && p.ToolInvocation.ToolCallID == toolCallID {
			p.ToolInvocation.Result = result
			return true
		}
	}
	return false
}

// TextContent reconstructs the concatenation of the text parts. It should
// always equal Content; used by tests and by storage round-trip checks.
func (m *Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
