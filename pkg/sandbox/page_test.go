package sandbox

import (
	"strings"
	"testing"

	"zenith/pkg/domain"
)

func TestComposePreviewInjectsHead(t *testing.T) {
	p := domain.Project{
		HTML:       "<html><head><title>t</title></head><body><p>hi</p></body></html>",
		CSS:        "p { color: red; }",
		JavaScript: "console.log('ready');",
	}

	doc := ComposePreview(p)

	styleIdx := strings.Index(doc, "<style>p { color: red; }</style>")
	headIdx := strings.Index(doc, "</head>")
	if styleIdx == -1 || headIdx == -1 || styleIdx > headIdx {
		t.Errorf("CSS not injected before </head>:\n%s", doc)
	}
	if !strings.Contains(doc, "CONSOLE_LOG") {
		t.Error("console interceptor missing")
	}

	scriptIdx := strings.Index(doc, "<script>console.log('ready');</script>")
	bodyIdx := strings.Index(doc, "</body>")
	if scriptIdx == -1 || bodyIdx == -1 || scriptIdx > bodyIdx {
		t.Errorf("project script not injected before </body>:\n%s", doc)
	}
}

func TestComposePreviewNoHeadNoBody(t *testing.T) {
	p := domain.Project{HTML: "<p>bare</p>", CSS: "p{}", JavaScript: "void 0;"}

	doc := ComposePreview(p)

	if !strings.HasPrefix(doc, "<script>") {
		t.Error("interceptor not prepended when head is absent")
	}
	if !strings.HasSuffix(doc, "<script>void 0;</script>") {
		t.Error("script not appended when body is absent")
	}
}

func TestComposePreviewStripsExternalScript(t *testing.T) {
	p := domain.Project{
		HTML:       `<html><body><script src="script.js" defer></script></body></html>`,
		JavaScript: "alert(1);",
	}

	doc := ComposePreview(p)
	if strings.Contains(doc, `src="script.js"`) {
		t.Error("external script.js reference not stripped")
	}
}

func TestComposePreviewEscapesClosingScriptTag(t *testing.T) {
	p := domain.Project{
		HTML:       "<html><body></body></html>",
		JavaScript: `const s = "</script>";`,
	}

	doc := ComposePreview(p)
	if strings.Contains(doc, `const s = "</script>";`) {
		t.Error("closing script tag in project JS not escaped")
	}
	if !strings.Contains(doc, `<\/script>`) {
		t.Error("escaped form missing")
	}
}

func TestComposeScreenshotHasNoScripts(t *testing.T) {
	p := domain.Project{
		HTML:       "<html><head></head><body></body></html>",
		CSS:        "body { background: blue; }",
		JavaScript: "while(true){}",
	}

	doc := ComposeScreenshot(p)
	if strings.Contains(doc, "while(true)") {
		t.Error("project JS leaked into screenshot document")
	}
	if !strings.Contains(doc, "<style>body { background: blue; }</style>") {
		t.Error("CSS missing from screenshot document")
	}
}

func TestComposeTest(t *testing.T) {
	p := domain.Project{
		HTML:       "<html><body><button>go</button></body></html>",
		CSS:        "button{}",
		JavaScript: "document.querySelector('button').id = 'main';",
	}

	doc := ComposeTest(p, "if (!document.getElementById('main')) throw new Error('missing');")

	for _, want := range []string{
		"TEST_RESULT",
		TestResultBinding,
		"window.onerror",
		"console.log = function() {};",
		"throw new Error('missing');",
		"}, 500);",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("test document missing %q", want)
		}
	}

	// The test script must run after the project script.
	projIdx := strings.Index(doc, "document.querySelector('button')")
	testIdx := strings.Index(doc, "getElementById('main')")
	if projIdx == -1 || testIdx == -1 || projIdx > testIdx {
		t.Error("test script does not follow the project script")
	}
}
