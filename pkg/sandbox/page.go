package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	"zenith/pkg/domain"
)

// TestResultBinding is the host function name the validate harness calls
// when it runs under a headless-Chrome surface. When the harness runs inside
// a browser iframe instead, it falls back to posting a ResultMessage to the
// parent window.
const TestResultBinding = "__zenithTestResult"

// scriptSrcRe matches the external script tag the generated HTML may carry;
// the preview inlines script.js instead.
var scriptSrcRe = regexp.MustCompile(`<script src="script\.js".*?></script>`)

// consoleInterceptor monkey-patches the console methods and the global error
// handler so every call is forwarded to the host as a CONSOLE_LOG message.
// Original console behavior is preserved; the interceptor forwards in
// addition to writing to the real console.
const consoleInterceptor = `<script>
(function() {
  const originalLog = console.log;
  const originalError = console.error;
  const originalWarn = console.warn;
  const originalInfo = console.info;

  function sendLog(type, args) {
    try {
      const message = args.map(arg => {
        if (typeof arg === 'object') return JSON.stringify(arg);
        return String(arg);
      }).join(' ');
      window.parent.postMessage({ type: 'CONSOLE_LOG', logType: type, message: message }, '*');
    } catch (e) {}
  }

  console.log = function(...args) { sendLog('log', args); originalLog.apply(console, args); };
  console.error = function(...args) { sendLog('error', args); originalError.apply(console, args); };
  console.warn = function(...args) { sendLog('warn', args); originalWarn.apply(console, args); };
  console.info = function(...args) { sendLog('info', args); originalInfo.apply(console, args); };
})();

window.onerror = function(msg, url, line, col, error) {
  window.parent.postMessage({ type: 'CONSOLE_LOG', logType: 'error', message: msg + ' (Line: ' + line + ')' }, '*');
};
</script>`

// injectHead places fragment before the closing head marker, or prepends it
// when the document has no head.
func injectHead(html, fragment string) string {
	if strings.Contains(html, "</head>") {
		return strings.Replace(html, "</head>", fragment+"</head>", 1)
	}
	return fragment + html
}

// escapeScript makes JS safe to inline by escaping closing script tags.
func escapeScript(js string) string {
	return strings.ReplaceAll(js, "</script>", `<\/script>`)
}

// ComposePreview builds the live preview document: console interceptor and
// CSS injected into the head, the project script inlined at the end of the
// body with any external script.js reference stripped.
func ComposePreview(p domain.Project) string {
	doc := injectHead(p.HTML, consoleInterceptor+"<style>"+p.CSS+"</style>")
	doc = scriptSrcRe.ReplaceAllString(doc, "")

	scriptTag := "<script>" + escapeScript(p.JavaScript) + "</script>"
	if strings.Contains(doc, "</body>") {
		return strings.Replace(doc, "</body>", scriptTag+"</body>", 1)
	}
	return doc + scriptTag
}

// ComposeScreenshot builds the static render document: html with CSS
// injected into the head. No scripts run on the screenshot surface.
func ComposeScreenshot(p domain.Project) string {
	return injectHead(p.HTML, "<style>"+p.CSS+"</style>")
}

// ComposeTest builds the validate document: the project document plus an
// error-trapping, console-silencing preamble, the project script, and a
// deferred wrapper that runs testScript inside a function scope and reports
// exactly one TEST_RESULT. The wrapper waits SettleDelay so the main script
// can finish its own setup first.
func ComposeTest(p domain.Project, testScript string) string {
	return fmt.Sprintf(`%s
<style>%s</style>
<script>
  window.__zenithReport = function(status, message) {
    if (window.__zenithReport.done) return;
    window.__zenithReport.done = true;
    const payload = { type: 'TEST_RESULT', status: status, message: message || '' };
    if (typeof window['%s'] === 'function') {
      window['%s'](JSON.stringify(payload));
    } else if (window.parent !== window) {
      window.parent.postMessage(payload, '*');
    }
  };
  window.onerror = function(msg) { window.__zenithReport('error', String(msg)); };
  console.log = function() {};
</script>
<script>%s</script>
<script>
  setTimeout(function() {
    try {
      (function() {
        %s
      })();
      window.__zenithReport('success');
    } catch (e) {
      window.__zenithReport('error', e.message);
    }
  }, %d);
</script>`,
		p.HTML,
		p.CSS,
		TestResultBinding, TestResultBinding,
		escapeScript(p.JavaScript),
		escapeScript(testScript),
		SettleDelay.Milliseconds(),
	)
}
