package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	calls  int32
	maxAge atomic.Int64
	err    error
}

func (f *fakePruner) Prune(maxAge time.Duration) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	f.maxAge.Store(int64(maxAge))
	return 1, f.err
}

func TestAddCachePrune_InvalidSpec(t *testing.T) {
	s := New()
	err := s.AddCachePrune("every now and then", &fakePruner{}, time.Hour)
	assert.ErrorContains(t, err, "invalid cache prune schedule")
}

func TestRunPrune(t *testing.T) {
	p := &fakePruner{}
	runPrune(p, 2*time.Hour)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
	assert.Equal(t, int64(2*time.Hour), p.maxAge.Load())

	p.err = errors.New("disk full")
	runPrune(p, time.Hour)
	assert.Equal(t, int32(2), atomic.LoadInt32(&p.calls))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New()
	require.NoError(t, s.AddCachePrune("@hourly", &fakePruner{}, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
