package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-project/rdm-server/internal/store"
)

type captureSink struct {
	mu      sync.Mutex
	records []store.AuditLog
	block   chan struct{}
}

func (s *captureSink) InsertAuditLog(ctx context.Context, l store.AuditLog) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, l)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestRecorderDrainsOnClose(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, 16)

	userID := int64(7)
	for i := 0; i < 10; i++ {
		recorder.Record(Entry{
			UserID:       &userID,
			Action:       store.ActionConnect,
			ResourceType: "connection",
			ResourceID:   int64(i),
		})
	}
	recorder.Close()

	require.Equal(t, 10, sink.count())
	assert.Equal(t, store.ActionConnect, sink.records[0].Action)
	assert.Equal(t, &userID, sink.records[0].UserID)
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	sink := &captureSink{block: make(chan struct{})}
	recorder := NewRecorder(sink, 2)

	// One entry occupies the worker, two fill the queue, the rest are dropped.
	for i := 0; i < 10; i++ {
		recorder.Record(Entry{Action: store.ActionUpdate, ResourceType: "device", ResourceID: int64(i)})
	}
	close(sink.block)
	recorder.Close()

	assert.LessOrEqual(t, sink.count(), 3)
	assert.GreaterOrEqual(t, sink.count(), 1)
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) InsertAuditLog(ctx context.Context, l store.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("insert failed")
}

func (s *failingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// A failing sink must not stop the worker: every queued entry is still
// attempted and Close returns normally.
func TestRecorderSwallowsWriteFailures(t *testing.T) {
	sink := &failingSink{}
	recorder := NewRecorder(sink, 16)

	for i := 0; i < 5; i++ {
		recorder.Record(Entry{Action: store.ActionLogin, ResourceType: "user", ResourceID: int64(i)})
	}
	recorder.Close()

	assert.Equal(t, 5, sink.count())
}

func TestRecordAfterCloseIsIgnored(t *testing.T) {
	sink := &captureSink{}
	recorder := NewRecorder(sink, 4)
	recorder.Close()

	recorder.Record(Entry{Action: store.ActionDelete, ResourceType: "device", ResourceID: 1})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestCloseIsIdempotent(t *testing.T) {
	recorder := NewRecorder(&captureSink{}, 4)
	recorder.Close()
	recorder.Close()
}
