package logstream

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plexsphere/meshcfg/internal/orchestrator"
)

// Entry is one log line destined for the UI.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   string
}

// String formats the entry as a single display line.
func (e Entry) String() string {
	line := fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	if e.Attrs != "" {
		line += " " + e.Attrs
	}
	return line
}

// Queue is a bounded, multi-producer single-consumer line buffer. Post never
// blocks: when the buffer is full the newest entry is dropped and counted.
// Lines from one producer keep their order.
type Queue struct {
	entries chan Entry
	refresh chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewQueue returns a Queue holding up to capacity entries.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		entries: make(chan Entry, capacity),
		refresh: make(chan struct{}, 1),
	}
}

// Post enqueues e. It reports false when e was dropped.
func (q *Queue) Post(e Entry) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.entries <- e:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain removes and returns up to max queued entries without blocking.
func (q *Queue) Drain(max int) []Entry {
	var out []Entry
	for len(out) < max {
		select {
		case e := <-q.entries:
			out = append(out, e)
		default:
			return out
		}
	}
	return out
}

// Dropped returns how many entries were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// OperationFinished implements orchestrator.Notifier by requesting a status
// refresh. Requests coalesce until the consumer takes them.
func (q *Queue) OperationFinished(orchestrator.Result) {
	q.RequestRefresh()
}

// RequestRefresh asks the consumer to re-read system status.
func (q *Queue) RequestRefresh() {
	select {
	case q.refresh <- struct{}{}:
	default:
	}
}

// TakeRefresh reports and clears a pending refresh request.
func (q *Queue) TakeRefresh() bool {
	select {
	case <-q.refresh:
		return true
	default:
		return false
	}
}

// Close stops accepting entries. Queued entries can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
