package mainloop

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/c360/flowkit/errors"
)

// WorkerConfig declares the callbacks of a cooperative worker. Setup,
// Iterate and Cleanup run on the worker goroutine; Feedback and Finished
// are marshalled onto the loop goroutine.
type WorkerConfig struct {
	// Setup runs once before iteration. A setup error stops the worker
	// before the first Iterate; Cleanup still runs.
	Setup func(ctx context.Context) error

	// Iterate is called repeatedly until it returns false or the worker
	// is cancelled. It should check ctx between units of work.
	Iterate func(ctx context.Context) bool

	// Cleanup runs on the worker goroutine after iteration ends.
	Cleanup func()

	// Feedback runs on the loop goroutine when the worker calls
	// Worker.Feedback. Calls are coalesced: signalling again before the
	// callback ran does not queue a second run.
	Feedback func()

	// Finished runs on the loop goroutine after the worker goroutine has
	// fully ended.
	Finished func()
}

// Worker is a background task whose results are observed from the loop
// goroutine. Cancellation is cooperative through the iterate context.
type Worker struct {
	loop   *Loop
	cfg    WorkerConfig
	cancel context.CancelFunc
	group  *errgroup.Group

	feedbackPending atomic.Bool
}

// NewWorker starts a worker. The returned worker is already running.
func (l *Loop) NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Iterate == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "MainLoop", "NewWorker",
			"worker needs an iterate callback")
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	w := &Worker{
		loop:   l,
		cfg:    cfg,
		cancel: cancel,
		group:  group,
	}

	if l.metrics != nil {
		l.metrics.WorkersActive.Inc()
	}

	group.Go(func() error {
		err := w.run(ctx)
		if l.metrics != nil {
			l.metrics.WorkersActive.Dec()
		}
		if cfg.Finished != nil {
			l.Post(cfg.Finished)
		}
		return err
	})

	return w, nil
}

func (w *Worker) run(ctx context.Context) error {
	defer func() {
		if w.cfg.Cleanup != nil {
			w.cfg.Cleanup()
		}
	}()

	if w.cfg.Setup != nil {
		if err := w.cfg.Setup(ctx); err != nil {
			w.loop.log.Warn("worker setup failed", "error", err)
			return errors.Wrap(err, "MainLoop", "Worker", "worker setup")
		}
	}

	for ctx.Err() == nil && w.cfg.Iterate(ctx) {
	}
	return nil
}

// Feedback signals the loop goroutine to run the feedback callback.
// Safe to call from the worker goroutine; repeated signals before the
// callback runs are coalesced into one.
func (w *Worker) Feedback() {
	if w.cfg.Feedback == nil {
		return
	}
	if w.feedbackPending.Swap(true) {
		return
	}
	w.loop.Post(func() {
		w.feedbackPending.Store(false)
		w.cfg.Feedback()
	})
}

// Cancel asks the worker to stop and waits for its goroutine to end. It
// returns the setup error, if any. The finished callback still runs on
// the loop goroutine.
func (w *Worker) Cancel() error {
	w.cancel()
	return w.group.Wait()
}

// Wait blocks until the worker ends on its own.
func (w *Worker) Wait() error {
	return w.group.Wait()
}
