package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Batch is the cancellation handle shared by the agent calls of one group
// turn or one discussion round.
//
// Every callback runs through Emit. Once Cancel has returned, Emit never
// runs its function again.
type Batch struct {
	id     string
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool

	group    errgroup.Group
	done     chan struct{}
	doneOnce sync.Once
}

func newBatch(parent context.Context, limit int) *Batch {
	ctx, cancel := context.WithCancel(parent)
	b := &Batch{
		id:     uuid.NewString(),
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if limit > 0 {
		b.group.SetLimit(limit)
	}
	return b
}

// ID identifies the batch.
func (b *Batch) ID() string {
	return b.id
}

// Context is cancelled by Cancel or by the parent context.
func (b *Batch) Context() context.Context {
	return b.ctx
}

// Cancel stops the batch. In-flight requests are aborted and no further
// callbacks fire.
func (b *Batch) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
	b.cancel()
}

// Cancelled reports whether the batch was cancelled directly or through its
// parent. Finishing normally does not count.
func (b *Batch) Cancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelledLocked()
}

func (b *Batch) cancelledLocked() bool {
	return b.cancelled || b.parent.Err() != nil
}

// Emit runs fn unless the batch is cancelled and reports whether it ran.
func (b *Batch) Emit(fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelledLocked() {
		return false
	}
	fn()
	return true
}

// Go runs fn on the batch's worker group.
func (b *Batch) Go(fn func(ctx context.Context)) {
	b.group.Go(func() error {
		fn(b.ctx)
		return nil
	})
}

// start schedules tasks on the worker group in the background, waits for
// them, runs onComplete, then releases Wait.
func (b *Batch) start(tasks []func(ctx context.Context), onComplete func()) {
	go func() {
		for _, task := range tasks {
			b.Go(task)
		}
		_ = b.group.Wait()
		if onComplete != nil {
			onComplete()
		}
		b.finish()
	}()
}

// finish releases the batch context and Wait. It is not a cancellation.
func (b *Batch) finish() {
	b.doneOnce.Do(func() {
		b.cancel()
		close(b.done)
	})
}

// Done is closed when the batch has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch has finished.
func (b *Batch) Wait() {
	<-b.done
}
