package mainloop_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/mainloop"
	"github.com/c360/flowkit/metric"
)

func TestTimeoutFires(t *testing.T) {
	loop := mainloop.New()

	fired := false
	loop.TimeoutAdd(time.Millisecond, func() bool {
		fired = true
		loop.Quit()
		return false
	})

	require.NoError(t, loop.Run())
	assert.True(t, fired)
}

func TestRepeatingTimer(t *testing.T) {
	loop := mainloop.New()

	count := 0
	loop.TimeoutAdd(time.Millisecond, func() bool {
		count++
		if count == 3 {
			loop.Quit()
			return false
		}
		return true
	})

	require.NoError(t, loop.Run())
	assert.Equal(t, 3, count)
}

func TestTimeoutDel(t *testing.T) {
	loop := mainloop.New()

	fired := false
	id := loop.TimeoutAdd(time.Millisecond, func() bool {
		fired = true
		return false
	})
	assert.True(t, loop.TimeoutDel(id))
	assert.False(t, loop.TimeoutDel(id))

	loop.TimeoutAdd(5*time.Millisecond, func() bool {
		loop.Quit()
		return false
	})

	require.NoError(t, loop.Run())
	assert.False(t, fired)
}

func TestIdleRepeatsUntilDone(t *testing.T) {
	loop := mainloop.New()

	count := 0
	loop.IdleAdd(func() bool {
		count++
		if count == 3 {
			loop.Quit()
			return false
		}
		return true
	})

	require.NoError(t, loop.Run())
	assert.Equal(t, 3, count)
}

func TestIdleDel(t *testing.T) {
	loop := mainloop.New()

	id := loop.IdleAdd(func() bool { return true })
	assert.True(t, loop.IdleDel(id))
	assert.False(t, loop.IdleDel(id))
}

func TestPostFromAnotherGoroutine(t *testing.T) {
	loop := mainloop.New()

	ran := false
	go func() {
		time.Sleep(time.Millisecond)
		loop.Post(func() {
			ran = true
			loop.Quit()
		})
	}()

	require.NoError(t, loop.Run())
	assert.True(t, ran)
}

func TestRunWhileRunning(t *testing.T) {
	loop := mainloop.New()

	var nested error
	loop.Post(func() {
		nested = loop.Run()
		loop.Quit()
	})

	require.NoError(t, loop.Run())
	assert.True(t, pkgerrors.IsAlreadyExists(nested))
}

func TestLoopMetrics(t *testing.T) {
	loop := mainloop.New()
	m := metric.NewMetrics()
	loop.SetMetrics(m)

	id := loop.TimeoutAdd(time.Hour, func() bool { return true })
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimersActive))
	loop.TimeoutDel(id)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TimersActive))

	iid := loop.IdleAdd(func() bool { return true })
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdlersActive))
	loop.IdleDel(iid)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IdlersActive))
}

func TestWorkerLifecycle(t *testing.T) {
	loop := mainloop.New()

	var setup, cleanup, finished bool
	var iterations atomic.Int32

	w, err := loop.NewWorker(mainloop.WorkerConfig{
		Setup: func(ctx context.Context) error {
			setup = true
			return nil
		},
		Iterate: func(ctx context.Context) bool {
			return iterations.Add(1) < 5
		},
		Cleanup: func() {
			cleanup = true
		},
		Finished: func() {
			finished = true
			loop.Quit()
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Wait())

	// The finished callback was posted to the loop; run it.
	require.NoError(t, loop.Run())

	assert.True(t, setup)
	assert.True(t, cleanup)
	assert.True(t, finished)
	assert.Equal(t, int32(5), iterations.Load())
}

func TestWorkerCancel(t *testing.T) {
	loop := mainloop.New()

	started := make(chan struct{})
	var once bool

	w, err := loop.NewWorker(mainloop.WorkerConfig{
		Iterate: func(ctx context.Context) bool {
			if !once {
				once = true
				close(started)
			}
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
			return true
		},
	})
	require.NoError(t, err)

	<-started
	require.NoError(t, w.Cancel())
}

func TestWorkerFeedbackCoalesces(t *testing.T) {
	loop := mainloop.New()

	ready := make(chan struct{})
	var w *mainloop.Worker
	var err error

	feedbacks := 0
	w, err = loop.NewWorker(mainloop.WorkerConfig{
		Iterate: func(ctx context.Context) bool {
			<-ready
			w.Feedback()
			w.Feedback()
			return false
		},
		Feedback: func() {
			feedbacks++
		},
		Finished: func() {
			loop.Quit()
		},
	})
	require.NoError(t, err)
	close(ready)

	// The loop is not running yet, so both signals land before the
	// callback can: exactly one run is queued.
	require.NoError(t, w.Wait())
	require.NoError(t, loop.Run())
	assert.Equal(t, 1, feedbacks)
}

func TestWorkerSetupError(t *testing.T) {
	loop := mainloop.New()

	var cleanup, iterated bool
	w, err := loop.NewWorker(mainloop.WorkerConfig{
		Setup: func(ctx context.Context) error {
			return pkgerrors.ErrIO
		},
		Iterate: func(ctx context.Context) bool {
			iterated = true
			return false
		},
		Cleanup: func() {
			cleanup = true
		},
		Finished: func() {
			loop.Quit()
		},
	})
	require.NoError(t, err)

	err = w.Wait()
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrIO))

	require.NoError(t, loop.Run())
	assert.True(t, cleanup)
	assert.False(t, iterated)
}

func TestWorkerNeedsIterate(t *testing.T) {
	loop := mainloop.New()
	_, err := loop.NewWorker(mainloop.WorkerConfig{})
	assert.True(t, pkgerrors.IsInvalidArgument(err))
}
