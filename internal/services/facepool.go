package services

import (
	"context"
	"errors"

	"github.com/openseva/seva-backend/internal/logger"
)

// FacePool is a fixed-size worker pool for the CPU-bound parts of face
// matching (decode, embed comparison, annotation). A caller submits one task
// and blocks only on that task's result, never on the pool as a whole, so
// slow image work cannot starve the I/O-bound request path.
type FacePool struct {
	log   *logger.Logger
	tasks chan poolTask
	done  chan struct{}
}

type poolTask struct {
	ctx  context.Context
	run  func() error
	errc chan error
}

var ErrPoolClosed = errors.New("face pool closed")

func NewFacePool(log *logger.Logger, workers, queueDepth int) *FacePool {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = workers * 4
	}
	p := &FacePool{
		log:   log.With("service", "FacePool"),
		tasks: make(chan poolTask, queueDepth),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *FacePool) worker(id int) {
	for {
		select {
		case <-p.done:
			return
		case t := <-p.tasks:
			if t.ctx.Err() != nil {
				t.errc <- t.ctx.Err()
				continue
			}
			t.errc <- t.run()
		}
	}
}

// Do runs fn on a pool worker and blocks the caller until it finishes or ctx
// is cancelled while still queued.
func (p *FacePool) Do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- poolTask{ctx: ctx, run: fn, errc: errc}:
	}
	select {
	case err := <-errc:
		return err
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		// The worker may still run the task; its result is discarded.
		return ctx.Err()
	}
}

func (p *FacePool) Close() {
	close(p.done)
}
