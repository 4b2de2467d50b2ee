// Package chrome implements sandbox.Runtime on a headless Chrome instance
// driven over the DevTools protocol. Every call materializes a fresh browser
// context (its own target and page), so no DOM or script state survives
// between calls.
package chrome

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"zenith/pkg/domain"
	"zenith/pkg/sandbox"
)

// EndpointResolver returns the DevTools websocket URL of a remote browser.
// Used with the docker-managed headless-shell backend; when nil the runtime
// launches a local Chrome via the exec allocator.
type EndpointResolver func(ctx context.Context) (string, error)

// Runtime implements sandbox.Runtime.
type Runtime struct {
	resolve EndpointResolver
}

// Verify interface compliance.
var _ sandbox.Runtime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithRemote makes the runtime attach to a remote browser endpoint instead
// of launching a local Chrome.
func WithRemote(resolve EndpointResolver) Option {
	return func(r *Runtime) { r.resolve = resolve }
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases runtime resources. Surfaces are per-call, so there is
// nothing to tear down here.
func (r *Runtime) Close() error { return nil }

// newSurface allocates a throwaway browser context. The returned cancel
// tears down the target (and, for the local backend, the browser process).
func (r *Runtime) newSurface(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if r.resolve != nil {
		wsURL, err := r.resolve(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", sandbox.ErrRenderingUnavailable, err)
		}
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL)
		taskCtx, taskCancel := chromedp.NewContext(allocCtx)
		return taskCtx, func() { taskCancel(); allocCancel() }, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(sandbox.ScreenshotWidth, sandbox.ScreenshotHeight),
	)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() { taskCancel(); allocCancel() }, nil
}

// Screenshot implements sandbox.Runtime.
func (r *Runtime) Screenshot(ctx context.Context, p domain.Project) (*sandbox.Screenshot, error) {
	// The deadline covers navigation too; an inline script that never yields
	// would otherwise block the load event indefinitely.
	runCtx, cancel := context.WithTimeout(ctx, sandbox.ScreenshotTimeout)
	defer cancel()

	surface, teardown, err := r.newSurface(runCtx)
	if err != nil {
		return nil, err
	}
	defer teardown()

	var buf []byte
	err = chromedp.Run(surface,
		chromedp.EmulateViewport(sandbox.ScreenshotWidth, sandbox.ScreenshotHeight),
		chromedp.Navigate(dataURL(sandbox.ComposeScreenshot(p))),
		chromedp.Sleep(sandbox.SettleDelay),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		if isExecNotFound(err) {
			return nil, fmt.Errorf("%w: %v", sandbox.ErrRenderingUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", sandbox.ErrCaptureFailed, err)
	}

	return &sandbox.Screenshot{
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf),
	}, nil
}

// Validate implements sandbox.Runtime. The composed document reports its
// outcome through a DevTools binding; the first report wins, and the hard
// timeout races the report. The surface is torn down either way; a script
// stuck in a loop is simply abandoned with its target.
func (r *Runtime) Validate(ctx context.Context, p domain.Project, testScript string) (*sandbox.TestResult, error) {
	// One deadline covers navigation, settle, and the report wait. Navigation
	// blocks on the load event, so a project script that busy-loops before
	// load must hit the same ceiling as a test that never reports.
	runCtx, cancel := context.WithTimeout(ctx, sandbox.TestTimeout)
	defer cancel()

	surface, teardown, err := r.newSurface(runCtx)
	if err != nil {
		return nil, err
	}
	defer teardown()

	results := make(chan sandbox.ResultMessage, 1)
	chromedp.ListenTarget(surface, func(ev any) {
		call, ok := ev.(*cdpruntime.EventBindingCalled)
		if !ok || call.Name != sandbox.TestResultBinding {
			return
		}
		var msg sandbox.ResultMessage
		if err := json.Unmarshal([]byte(call.Payload), &msg); err != nil {
			slog.Warn("Malformed test result payload", "error", err)
			return
		}
		select {
		case results <- msg:
		default:
		}
	})

	doc := sandbox.ComposeTest(p, testScript)
	if err := chromedp.Run(surface,
		cdpruntime.AddBinding(sandbox.TestResultBinding),
		chromedp.Navigate(dataURL(doc)),
	); err != nil {
		if timedOut(ctx, runCtx) {
			return sandbox.TimeoutResult(), nil
		}
		if isExecNotFound(err) {
			return nil, fmt.Errorf("%w: %v", sandbox.ErrRenderingUnavailable, err)
		}
		return nil, fmt.Errorf("running test document: %w", err)
	}

	select {
	case msg := <-results:
		if msg.Status == domain.StatusSuccess {
			return &sandbox.TestResult{Status: domain.StatusSuccess, Message: "Test Passed Successfully"}, nil
		}
		return &sandbox.TestResult{Status: domain.StatusError, Message: "Test Failed: " + msg.Message}, nil
	case <-runCtx.Done():
		if timedOut(ctx, runCtx) {
			return sandbox.TimeoutResult(), nil
		}
		return nil, ctx.Err()
	}
}

// timedOut reports whether run hit its deadline on its own, as opposed to
// the caller's context being done.
func timedOut(parent, run context.Context) bool {
	return errors.Is(run.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

func dataURL(doc string) string {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
}

func isExecNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound)
}
