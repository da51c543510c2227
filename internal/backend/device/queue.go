// Package device implements the asynchronous backend: layer and connection
// operations enqueue named kernels on a single ordered command queue and
// return immediately. A worker goroutine executes the queue in order against
// an Executor, which owns device memory and the kernel bodies.
//
// Completion is observable only through Queue.Finish (Factory.Finish,
// Network.Flush) or a blocking Buffer.Read, both of which wait for every
// command issued before them.
package device

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrQueueClosed is returned for work issued after Close.
var ErrQueueClosed = errors.New("device: queue closed")

type command struct {
	kernel *Kernel
	label  string
	run    func() error
	done   chan struct{}
}

// Queue is a single-producer, in-order command queue.
//
// Enqueue never blocks. The first command that fails poisons the queue:
// later commands are skipped, and the failure is returned by Finish and by
// every later Enqueue. A failed step invalidates the in-flight batch, so
// there is no recovery short of rebuilding the network.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []command
	closed  bool
	err     error
	wg      sync.WaitGroup
}

// NewQueue starts a queue and its worker.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.loop()
	return q
}

// Enqueue appends a kernel invocation. k may be nil for transfers, in which
// case label names the command in errors.
func (q *Queue) Enqueue(k *Kernel, label string, run func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.err != nil {
		return q.err
	}
	q.pending = append(q.pending, command{kernel: k, label: label, run: run})
	q.cond.Signal()
	return nil
}

// Finish blocks until every command enqueued before it has executed and
// returns the first failure.
func (q *Queue) Finish() error {
	done := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		defer q.mu.Unlock()
		return q.err
	}
	q.pending = append(q.pending, command{done: done})
	q.cond.Signal()
	q.mu.Unlock()

	<-done

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Err returns the failure that poisoned the queue, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Close drains the queue, stops the worker and returns the first failure.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		defer q.mu.Unlock()
		return q.err
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		cmd := q.pending[0]
		q.pending[0] = command{}
		q.pending = q.pending[1:]
		poisoned := q.err != nil
		q.mu.Unlock()

		if !poisoned && cmd.run != nil {
			q.execute(cmd)
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	}
}

func (q *Queue) execute(cmd command) {
	start := time.Now()
	err := cmd.run()
	if cmd.kernel != nil {
		cmd.kernel.record(time.Since(start))
	}
	if err == nil {
		return
	}
	name := cmd.label
	if cmd.kernel != nil {
		name = "kernel " + cmd.kernel.Name()
	}
	q.mu.Lock()
	if q.err == nil {
		q.err = errors.Wrap(err, name)
	}
	q.mu.Unlock()
}
