package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for recorder and sweeper tests.
type fakeStore struct {
	mu        sync.Mutex
	entries   []Entry
	appendErr error
	expired   int
}

func (f *fakeStore) Append(ctx context.Context, roomID, actor, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, Entry{
		RoomID:     roomID,
		Actor:      actor,
		Action:     action,
		OccurredAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) Recent(ctx context.Context, roomID string, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	for _, e := range f.entries {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired++
	return 0, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeStore) sweeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func TestRecorderPersistsRecords(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 16)
	rec.Start()

	rec.Record("room", "Alice", "Joined the session")
	rec.Record("room", "Alice", "Switched to python")

	require.Eventually(t, func() bool {
		return store.count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	rec.Stop()
	assert.Equal(t, int64(0), rec.Dropped())
	assert.Equal(t, int64(0), rec.Failures())
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)

	// Writer not started: the second record has nowhere to go.
	rec.Record("room", "Alice", "one")
	rec.Record("room", "Alice", "two")

	assert.Equal(t, int64(1), rec.Dropped())

	// Stop drains what made it into the queue.
	rec.Start()
	rec.Stop()
	assert.Equal(t, 1, store.count())
}

func TestRecorderCountsFailures(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("disk gone")}
	rec := NewRecorder(store, 16)
	rec.Start()

	rec.Record("room", "Alice", "Joined the session")

	require.Eventually(t, func() bool {
		return rec.Failures() == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.Stop()
}
