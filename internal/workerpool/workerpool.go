// Package workerpool implements the single-threaded, CPU-pinned task
// queue described in spec §4.10, grounded on
// original_source/common/src/worker.hpp. Each Worker owns a FIFO task
// queue drained by exactly one goroutine, which the package attempts
// to pin to a CPU core via golang.org/x/sys/unix.SchedSetaffinity when
// the config supplies one, degrading to a single unpinned worker
// otherwise. Unlike the original, this rewrite does not attempt the
// real-time (SCHED_FIFO) scheduling elevation spec §4.10 also
// describes — CPU affinity is pinned best-effort, but the worker
// goroutine always runs under the Go scheduler's normal policy.
package workerpool

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Task is one unit of work posted to a worker's queue.
type Task func()

// Worker runs posted tasks one at a time, in submission order, on its
// own goroutine.
type Worker struct {
	id     int
	core   int
	pinned bool
	queue  chan Task
	done   chan struct{}
	log    *zap.SugaredLogger
}

// NewWorker constructs a Worker with queue capacity cap. If pinned is
// true the worker's goroutine attempts to pin itself to core once
// running.
func NewWorker(id, core int, pinned bool, queueCap int, log *zap.SugaredLogger) *Worker {
	return &Worker{
		id:     id,
		core:   core,
		pinned: pinned,
		queue:  make(chan Task, queueCap),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Start launches the worker's goroutine.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	if w.pinned {
		runtime.LockOSThread()
		if err := pinToCore(w.core); err != nil && w.log != nil {
			w.log.Warnw("failed to pin worker to core", "worker", w.id, "core", w.core, "err", err)
		} else if w.log != nil {
			w.log.Debugw("worker pinned to core", "worker", w.id, "core", w.core)
		}
	}

	for task := range w.queue {
		w.runTask(task)
	}
	close(w.done)
}

// runTask recovers a panicking task so one bad order can't take down
// the worker goroutine, matching spec §7's Fatal taxonomy entry
// reinterpreted for goroutines rather than OS threads.
func (w *Worker) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil && w.log != nil {
			w.log.Errorw("recovered panic in worker task", "worker", w.id, "panic", r)
		}
	}()
	task()
}

// Post queues task for execution. While the queue already holds
// queueCap tasks, Post blocks until the worker takes one; there is no
// timeout, so callers size queueCap for the expected burst.
func (w *Worker) Post(task Task) {
	w.queue <- task
}

// Stop closes the queue and waits for any in-flight/queued tasks to
// drain before returning.
func (w *Worker) Stop() {
	close(w.queue)
	<-w.done
}

func pinToCore(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}

// Pool owns a fixed set of Workers assigned round-robin to ticker
// partitions by the coordinator.
type Pool struct {
	workers []*Worker
}

// New constructs a Pool. If cores is empty, a single unpinned worker
// is created (spec §4.10's degrade-to-one rule); otherwise one pinned
// worker per core.
func New(cores []int, queueCap int, log *zap.SugaredLogger) *Pool {
	p := &Pool{}
	if len(cores) == 0 {
		p.workers = []*Worker{NewWorker(0, 0, false, queueCap, log)}
		return p
	}
	p.workers = make([]*Worker, len(cores))
	for i, core := range cores {
		p.workers[i] = NewWorker(i, core, true, queueCap, log)
	}
	return p
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker's goroutine.
func (p *Pool) Start() {
	for _, w := range p.workers {
		w.Start()
	}
}

// Stop drains and joins every worker.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Post queues task onto the worker at index i.
func (p *Pool) Post(i int, task Task) {
	p.workers[i].Post(task)
}
