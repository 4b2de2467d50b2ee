package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zenith/pkg/console"
	"zenith/pkg/domain"
	"zenith/pkg/project"
	"zenith/pkg/sandbox"
)

// Executor dispatches tool calls against a session's project store, console
// buffer and sandbox runtime. Tool arguments come from the model and are
// treated as untrusted: unknown tools and unknown targets are rejected, and
// every failure is normalized into an error-status result rather than a Go
// error, so the model can read it and recover.
type Executor struct {
	projects *project.Store
	logs     *console.Buffer
	runtime  sandbox.Runtime
}

// NewExecutor creates an Executor. runtime may be nil, in which case the
// screenshot and validate tools report that rendering is unavailable.
func NewExecutor(projects *project.Store, logs *console.Buffer, runtime sandbox.Runtime) *Executor {
	return &Executor{projects: projects, logs: logs, runtime: runtime}
}

// Execute runs the named tool. The result is always JSON-serializable and
// never nil.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) *domain.ToolResult {
	switch name {
	case ToolReadFiles:
		return e.readFiles()
	case ToolUpdateFile:
		return e.updateFile(args)
	case ToolPatchFile:
		return e.patchFile(args)
	case ToolScreenshot:
		return e.screenshot(ctx)
	case ToolValidate:
		return e.validate(ctx, args)
	case ToolReadConsoleLogs:
		return e.readConsoleLogs()
	default:
		slog.Warn("Unknown tool called", "tool", name)
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (e *Executor) readFiles() *domain.ToolResult {
	files := e.projects.ReadFiles()
	return &domain.ToolResult{
		Status:  domain.StatusSuccess,
		Message: "Read 3 files",
		Files:   &files,
	}
}

func (e *Executor) updateFile(args map[string]any) *domain.ToolResult {
	target := stringArg(args, "target")
	content := stringArg(args, "content")

	if _, err := e.projects.UpdateFile(target, content); err != nil {
		return errorResult(err.Error())
	}
	return &domain.ToolResult{
		Status:  domain.StatusSuccess,
		Message: fmt.Sprintf("Updated %s", target),
	}
}

func (e *Executor) patchFile(args map[string]any) *domain.ToolResult {
	target := stringArg(args, "target")
	search := stringArg(args, "search_string")
	replacement := stringArg(args, "replacement_string")

	_, outcome, err := e.projects.PatchFile(target, search, replacement)
	if err != nil {
		if errors.Is(err, project.ErrPatchNotFound) {
			return errorResult(fmt.Sprintf("Could not find search string in %s", target))
		}
		return errorResult(err.Error())
	}
	if outcome.Lenient {
		return &domain.ToolResult{
			Status:       domain.StatusSuccess,
			Message:      "Patched with lenient match",
			LenientMatch: true,
		}
	}
	return &domain.ToolResult{
		Status:  domain.StatusSuccess,
		Message: fmt.Sprintf("Patched %s", target),
	}
}

func (e *Executor) screenshot(ctx context.Context) *domain.ToolResult {
	if e.runtime == nil {
		return errorResult("Screenshot failed: rendering unavailable")
	}

	shot, err := e.runtime.Screenshot(ctx, e.projects.ReadFiles())
	if err != nil {
		return errorResult(fmt.Sprintf("Screenshot failed: %v", err))
	}
	return &domain.ToolResult{
		Status:  domain.StatusSuccess,
		Message: "Screenshot captured successfully",
		Image:   shot.Image,
	}
}

func (e *Executor) validate(ctx context.Context, args map[string]any) *domain.ToolResult {
	if e.runtime == nil {
		return errorResult("Test runner error: rendering unavailable")
	}

	script := stringArg(args, "test_script")
	if script == "" {
		return errorResult("'test_script' parameter is required")
	}

	result, err := e.runtime.Validate(ctx, e.projects.ReadFiles(), script)
	if err != nil {
		return errorResult(fmt.Sprintf("Test runner error: %v", err))
	}
	return &domain.ToolResult{Status: result.Status, Message: result.Message}
}

func (e *Executor) readConsoleLogs() *domain.ToolResult {
	return &domain.ToolResult{
		Status: domain.StatusSuccess,
		Logs:   e.logs.Format(),
	}
}

func errorResult(message string) *domain.ToolResult {
	return &domain.ToolResult{Status: domain.StatusError, Message: message}
}

// stringArg coerces a model-supplied argument to a string; missing or
// non-string values become "".
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
