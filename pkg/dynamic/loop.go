package dynamic

import (
	"context"
	"sync"
)

// MainLoop runs posted functions one at a time, in the order they were
// posted, on a single goroutine. Render callbacks always run on a MainLoop,
// so they may touch single-threaded state without locking.
type MainLoop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	running bool
	done    chan struct{}
}

// NewMainLoop returns a loop that is not yet running.
func NewMainLoop() *MainLoop {
	l := &MainLoop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start runs the loop on a new goroutine.
func (l *MainLoop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run executes posted functions until Stop is called or ctx is done.
// Functions still queued at that point are discarded.
func (l *MainLoop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	defer close(l.done)

	stop := context.AfterFunc(ctx, l.Stop)
	defer stop()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped {
			l.queue = nil
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Post queues fn to run on the loop. It never blocks and reports false once
// the loop has stopped.
func (l *MainLoop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Stop stops the loop. It is safe to call more than once.
func (l *MainLoop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Done is closed when Run returns. It is never closed if Run was never
// called.
func (l *MainLoop) Done() <-chan struct{} {
	return l.done
}
