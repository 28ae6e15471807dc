package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct {
	mu    sync.Mutex
	calls int
	err   error
	done  chan struct{}
}

func (f *fakeSnapshotter) TakeMonthlySnapshot(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.done != nil && f.calls == 1 {
		close(f.done)
	}
	if _, ok := ctx.Deadline(); !ok {
		return false, errors.New("expected a deadline")
	}
	return f.calls == 1, f.err
}

func (f *fakeSnapshotter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSnapshotScheduler_RunNow(t *testing.T) {
	fake := &fakeSnapshotter{}
	s, err := NewSnapshotScheduler(fake, "", quietLogger())
	require.NoError(t, err)

	s.RunNow()
	s.RunNow()

	assert.Equal(t, 2, fake.Calls())
	assert.Equal(t, DefaultSnapshotSpec, s.spec)
}

func TestSnapshotScheduler_RunNowSwallowsErrors(t *testing.T) {
	fake := &fakeSnapshotter{err: errors.New("disk full")}
	s, err := NewSnapshotScheduler(fake, DefaultSnapshotSpec, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, s.RunNow)
	assert.Equal(t, 1, fake.Calls())
}

func TestSnapshotScheduler_InvalidSpec(t *testing.T) {
	_, err := NewSnapshotScheduler(&fakeSnapshotter{}, "every tuesday", quietLogger())
	assert.Error(t, err)
}

func TestSnapshotScheduler_StartCatchesUp(t *testing.T) {
	fake := &fakeSnapshotter{done: make(chan struct{})}
	s, err := NewSnapshotScheduler(fake, DefaultSnapshotSpec, quietLogger())
	require.NoError(t, err)

	s.Start()
	s.Start() // second start is a no-op

	select {
	case <-fake.done:
	case <-time.After(2 * time.Second):
		t.Fatal("catch-up snapshot did not run")
	}
	s.Stop()
	s.Stop()

	assert.Equal(t, 1, fake.Calls())
}

func TestSnapshotScheduler_NextRun(t *testing.T) {
	s, err := NewSnapshotScheduler(&fakeSnapshotter{}, DefaultSnapshotSpec, quietLogger())
	require.NoError(t, err)

	next := s.NextRun()

	require.False(t, next.IsZero())
	assert.Equal(t, 1, next.Day())
	assert.True(t, next.After(time.Now()))
}
