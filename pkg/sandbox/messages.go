package sandbox

// Cross-boundary message types. The live preview posts ConsoleMessage for
// every intercepted console call and uncaught error; the validate harness
// reports exactly one ResultMessage per run.
const (
	MessageTypeConsoleLog = "CONSOLE_LOG"
	MessageTypeTestResult = "TEST_RESULT"
)

// ConsoleMessage is the preview-to-host console forwarding payload.
type ConsoleMessage struct {
	Type    string `json:"type"`    // always MessageTypeConsoleLog
	LogType string `json:"logType"` // log, error, warn, info
	Message string `json:"message"`
}

// ResultMessage is the validate harness's single outcome report.
type ResultMessage struct {
	Type    string `json:"type"`   // always MessageTypeTestResult
	Status  string `json:"status"` // success or error
	Message string `json:"message,omitempty"`
}
