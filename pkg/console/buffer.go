// Package console holds the bounded buffer of log entries forwarded from the
// live preview surface. The preview intercepts console.log/error/warn/info
// and uncaught errors and ships them to the host, which appends them here;
// the read_console_logs tool reads a snapshot.
package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"zenith/pkg/domain"
)

// DefaultCapacity bounds the buffer; the oldest entry is evicted first once
// the capacity is exceeded.
const DefaultCapacity = 1000

// EmptyLogsMessage is returned by Format when no logs have been captured.
// A sentinel rather than an empty string so the model sees an explicit answer.
const EmptyLogsMessage = "No console logs found."

// Buffer is an append-only FIFO ring of console logs. Safe for concurrent
// appenders (websocket handler, preview listener) and snapshot readers.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	logs     []domain.ConsoleLog
}

// NewBuffer returns a buffer with the given capacity; zero or negative
// selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append adds a log entry, evicting the oldest entry when full. A zero
// timestamp is filled in with the current time.
func (b *Buffer) Append(log domain.ConsoleLog) {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logs = append(b.logs, log)
	if len(b.logs) > b.capacity {
		b.logs = b.logs[len(b.logs)-b.capacity:]
	}
}

// Snapshot returns a copy of the buffered logs, oldest first.
func (b *Buffer) Snapshot() []domain.ConsoleLog {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.ConsoleLog, len(b.logs))
	copy(out, b.logs)
	return out
}

// Len returns the number of buffered logs.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.logs)
}

// Clear drops all buffered logs. Called when the preview reloads.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = nil
}

// Format renders the buffered logs as "[TYPE] message" lines joined by
// newlines, or EmptyLogsMessage when the buffer is empty.
func (b *Buffer) Format() string {
	logs := b.Snapshot()
	if len(logs) == 0 {
		return EmptyLogsMessage
	}

	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = fmt.Sprintf("[%s] %s", strings.ToUpper(l.Type), l.Message)
	}
	return strings.Join(lines, "\n")
}
