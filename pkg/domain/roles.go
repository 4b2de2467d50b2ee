package domain

// Role defines the sender of a message.
type Role string

const (
	// RoleUser indicates a message from the user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message from the model/assistant.
	RoleAssistant Role = "assistant"
	// RoleSystem indicates a system-level message (e.g. the welcome note).
	// System entries are never replayed to the model as chat turns.
	RoleSystem Role = "system"
)

// Message part types.
const (
	PartTypeText           = "text"
	PartTypeToolInvocation = "tool-invocation"
)

// Console log levels forwarded from the preview surface.
const (
	LogTypeLog   = "log"
	LogTypeError = "error"
	LogTypeWarn  = "warn"
	LogTypeInfo  = "info"
)
