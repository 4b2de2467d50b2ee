package tools

import (
	"context"
	"strings"
	"testing"

	"zenith/pkg/console"
	"zenith/pkg/domain"
	"zenith/pkg/project"
	"zenith/pkg/sandbox"
)

// fakeRuntime scripts sandbox outcomes for executor tests.
type fakeRuntime struct {
	shot       *sandbox.Screenshot
	shotErr    error
	testResult *sandbox.TestResult
	testErr    error

	lastScript string
}

func (f *fakeRuntime) Screenshot(ctx context.Context, p domain.Project) (*sandbox.Screenshot, error) {
	return f.shot, f.shotErr
}

func (f *fakeRuntime) Validate(ctx context.Context, p domain.Project, testScript string) (*sandbox.TestResult, error) {
	f.lastScript = testScript
	return f.testResult, f.testErr
}

func (f *fakeRuntime) Close() error { return nil }

func newTestExecutor(rt sandbox.Runtime) (*Executor, *project.Store, *console.Buffer) {
	projects := project.NewStore()
	logs := console.NewBuffer(10)
	return NewExecutor(projects, logs, rt), projects, logs
}

func TestExecuteReadFiles(t *testing.T) {
	e, projects, _ := newTestExecutor(nil)
	projects.UpdateFile("html", "<p>x</p>")

	res := e.Execute(context.Background(), ToolReadFiles, nil)
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if res.Files == nil || res.Files.HTML != "<p>x</p>" {
		t.Errorf("Files = %+v", res.Files)
	}
}

func TestExecuteUpdateFile(t *testing.T) {
	e, projects, _ := newTestExecutor(nil)

	res := e.Execute(context.Background(), ToolUpdateFile, map[string]any{
		"target":  "css",
		"content": "body{}",
	})
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if got := projects.ReadFiles().CSS; got != "body{}" {
		t.Errorf("CSS = %q", got)
	}

	// Mutations are visible to an immediately following read within the turn.
	read := e.Execute(context.Background(), ToolReadFiles, nil)
	if read.Files.CSS != "body{}" {
		t.Error("read_files does not observe the preceding update_file")
	}
}

func TestExecuteUpdateFileInvalidTarget(t *testing.T) {
	e, _, _ := newTestExecutor(nil)

	res := e.Execute(context.Background(), ToolUpdateFile, map[string]any{
		"target":  "markdown",
		"content": "x",
	})
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if !strings.Contains(res.Message, "invalid target") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecutePatchFile(t *testing.T) {
	e, projects, _ := newTestExecutor(nil)
	projects.UpdateFile("css", "body { background: white; }")

	res := e.Execute(context.Background(), ToolPatchFile, map[string]any{
		"target":             "css",
		"search_string":      "background: white;",
		"replacement_string": "background: blue;",
	})
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if got := projects.ReadFiles().CSS; got != "body { background: blue; }" {
		t.Errorf("CSS = %q", got)
	}
}

func TestExecutePatchFileNotFound(t *testing.T) {
	e, projects, _ := newTestExecutor(nil)
	projects.UpdateFile("css", "body {}")

	res := e.Execute(context.Background(), ToolPatchFile, map[string]any{
		"target":             "css",
		"search_string":      "nope",
		"replacement_string": "x",
	})
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if !strings.Contains(res.Message, "css") {
		t.Errorf("message does not name the file: %q", res.Message)
	}
}

func TestExecutePatchFileLenient(t *testing.T) {
	e, projects, _ := newTestExecutor(nil)
	projects.UpdateFile("javascript", "let a = 1;")

	res := e.Execute(context.Background(), ToolPatchFile, map[string]any{
		"target":             "javascript",
		"search_string":      "\nlet a = 1;  ",
		"replacement_string": "let a = 2;",
	})
	if res.Status != domain.StatusSuccess || !res.LenientMatch {
		t.Errorf("result = %+v, want lenient success", res)
	}
}

func TestExecuteScreenshot(t *testing.T) {
	rt := &fakeRuntime{shot: &sandbox.Screenshot{Image: "data:image/png;base64,AAAA"}}
	e, _, _ := newTestExecutor(rt)

	res := e.Execute(context.Background(), ToolScreenshot, nil)
	if res.Status != domain.StatusSuccess {
		t.Fatalf("status = %s: %s", res.Status, res.Message)
	}
	if res.Image != "data:image/png;base64,AAAA" {
		t.Errorf("Image = %q", res.Image)
	}
	// The data URI stays out of the textual summary.
	if strings.Contains(res.Message, "base64") {
		t.Error("image payload leaked into the message")
	}
}

func TestExecuteScreenshotUnavailable(t *testing.T) {
	rt := &fakeRuntime{shotErr: sandbox.ErrRenderingUnavailable}
	e, _, _ := newTestExecutor(rt)

	res := e.Execute(context.Background(), ToolScreenshot, nil)
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if !strings.Contains(res.Message, "rendering unavailable") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestExecuteValidate(t *testing.T) {
	rt := &fakeRuntime{testResult: &sandbox.TestResult{Status: domain.StatusError, Message: "Test Failed: missing button"}}
	e, _, _ := newTestExecutor(rt)

	res := e.Execute(context.Background(), ToolValidate, map[string]any{
		"test_script": "throw new Error('missing button')",
	})
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if res.Message != "Test Failed: missing button" {
		t.Errorf("message = %q", res.Message)
	}
	if rt.lastScript != "throw new Error('missing button')" {
		t.Errorf("script passed to runtime = %q", rt.lastScript)
	}
}

func TestExecuteValidateMissingScript(t *testing.T) {
	e, _, _ := newTestExecutor(&fakeRuntime{})

	res := e.Execute(context.Background(), ToolValidate, map[string]any{})
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestExecuteReadConsoleLogs(t *testing.T) {
	e, _, logs := newTestExecutor(nil)

	res := e.Execute(context.Background(), ToolReadConsoleLogs, nil)
	if res.Status != domain.StatusSuccess || res.Logs != console.EmptyLogsMessage {
		t.Errorf("empty buffer result = %+v", res)
	}

	logs.Append(domain.ConsoleLog{Type: domain.LogTypeError, Message: "undefined is not a function"})
	res = e.Execute(context.Background(), ToolReadConsoleLogs, nil)
	if res.Logs != "[ERROR] undefined is not a function" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e, _, _ := newTestExecutor(nil)

	res := e.Execute(context.Background(), "rm_rf", nil)
	if res.Status != domain.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
	if !strings.Contains(res.Message, "Unknown tool") {
		t.Errorf("message = %q", res.Message)
	}
}
