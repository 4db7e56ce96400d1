package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rdm-project/rdm-server/internal/store"
)

const writeTimeout = 5 * time.Second

type Config struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Entry is one security-relevant action to be recorded. UserID is nil when no
// authenticated context exists.
type Entry struct {
	UserID       *int64
	Action       store.AuditAction
	ResourceType string
	ResourceID   int64
	Details      map[string]any
	IPAddress    string
}

type Sink interface {
	InsertAuditLog(ctx context.Context, l store.AuditLog) error
}

// Recorder persists audit entries from a background worker so callers never
// wait on the audit write. The queue is bounded; when it is full new entries
// are dropped with a warning (drop-newest), so a slow audit store can never
// stall request handling. Write failures are logged and swallowed.
type Recorder struct {
	sink  Sink
	queue chan Entry
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRecorder(sink Sink, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		sink:  sink,
		queue: make(chan Entry, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues an entry without blocking. Ordering of entries from the same
// workflow is not guaranteed.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		slog.Warn("Audit recorder closed, dropping entry", "action", e.Action, "resource_type", e.ResourceType)
		return
	}
	select {
	case r.queue <- e:
	default:
		slog.Warn("Audit queue full, dropping entry",
			"action", e.Action,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID)
	}
}

// Close stops accepting entries and drains the queue.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	record := store.AuditLog{
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IPAddress:    e.IPAddress,
	}
	if err := r.sink.InsertAuditLog(ctx, record); err != nil {
		slog.Error("Failed to write audit log",
			"action", e.Action,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID,
			"error", err)
	}
}
