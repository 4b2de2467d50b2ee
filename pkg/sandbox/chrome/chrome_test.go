package chrome

import (
	"context"
	"testing"
	"time"
)

func TestTimedOut(t *testing.T) {
	parent := context.Background()

	run, cancel := context.WithTimeout(parent, time.Nanosecond)
	defer cancel()
	<-run.Done()
	if !timedOut(parent, run) {
		t.Error("deadline on the run context not reported as a timeout")
	}

	// A canceled caller is not a timeout.
	doneParent, cancelParent := context.WithCancel(context.Background())
	run2, cancel2 := context.WithTimeout(doneParent, time.Nanosecond)
	defer cancel2()
	cancelParent()
	<-run2.Done()
	if timedOut(doneParent, run2) {
		t.Error("caller cancellation misreported as a timeout")
	}

	// A live run context is not a timeout either.
	run3, cancel3 := context.WithTimeout(parent, time.Hour)
	defer cancel3()
	if timedOut(parent, run3) {
		t.Error("live context misreported as a timeout")
	}
}
