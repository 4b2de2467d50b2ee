// Package sandbox defines the disposable rendering/execution surfaces used
// for screenshots and test scripts, plus the document composition and the
// cross-boundary message contract shared with the live preview.
package sandbox

import (
	"context"
	"errors"
	"time"

	"zenith/pkg/domain"
)

const (
	// ScreenshotWidth and ScreenshotHeight fix the capture surface to a
	// desktop viewport.
	ScreenshotWidth  = 1280
	ScreenshotHeight = 800

	// SettleDelay is how long a surface is given for styles and fonts to
	// apply before capture, and how long the validate harness waits for the
	// project's own script to finish its setup.
	SettleDelay = 500 * time.Millisecond

	// TestTimeout is the hard ceiling on a validate run, covering page load
	// as well as the wait for the report. When it fires the surface is torn
	// down whether or not the script is still running; the script cannot be
	// killed mid-execution beyond destroying its surface.
	TestTimeout = 5 * time.Second

	// ScreenshotTimeout bounds a screenshot capture end to end, page load
	// included.
	ScreenshotTimeout = 10 * time.Second
)

var (
	// ErrRenderingUnavailable indicates the host has no rasterization
	// capability (e.g. no Chrome binary and no remote endpoint).
	ErrRenderingUnavailable = errors.New("rendering unavailable")

	// ErrCaptureFailed wraps any failure during rasterization itself.
	ErrCaptureFailed = errors.New("capture failed")
)

// Screenshot is the outcome of a static render capture.
type Screenshot struct {
	// Image is a data-URI encoded PNG of the rendered page.
	Image string
}

// TestResult is the outcome of a validate run. Script failures and timeouts
// are encoded here, not as Go errors; only infrastructure faults surface as
// errors from Runtime.Validate.
type TestResult struct {
	Status  string // domain.StatusSuccess or domain.StatusError
	Message string
}

// TimeoutResult is the result reported when no TEST_RESULT arrives within
// TestTimeout.
func TimeoutResult() *TestResult {
	return &TestResult{Status: domain.StatusError, Message: "Test timed out after 5s"}
}

// Runtime renders and executes project documents on throwaway surfaces. A
// surface is never reused between calls; stale DOM or script state must not
// leak from one call into the next.
type Runtime interface {
	// Screenshot renders html+css at the fixed desktop size, waits
	// SettleDelay, and rasterizes the surface to a PNG data URI. The surface
	// is torn down unconditionally, on failure included.
	Screenshot(ctx context.Context, p domain.Project) (*Screenshot, error)

	// Validate runs testScript against the live html+css+javascript document
	// and resolves with the single reported outcome, or TimeoutResult after
	// TestTimeout. Throwing signals failure; returning normally signals
	// success.
	Validate(ctx context.Context, p domain.Project, testScript string) (*TestResult, error)

	// Close releases any resources held by the runtime.
	Close() error
}
