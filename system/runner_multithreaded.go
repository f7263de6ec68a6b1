package system

import (
	"context"
	"sync"
)

// MultiThreadedRunner runs one goroutine per follower, each waking on its
// own condition variable when prompted — the Go analogue of
// multithreadedrunner.MultiThreadedRunner/RunnerThread, trading Python's
// threading.Event for a sync.Cond guarding a pending-names queue per
// worker.
type MultiThreadedRunner struct {
	system  *System
	workers map[string]*followerWorker
	wg      sync.WaitGroup
}

type followerWorker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	stopped bool
}

// NewMultiThreadedRunner builds (but does not Start) a runner over system,
// spawning one worker per follower node. Every leader is wired (via Lead)
// to prompt this runner, which fans the prompt out to the correct
// worker(s) via Leads.
func NewMultiThreadedRunner(system *System) *MultiThreadedRunner {
	r := &MultiThreadedRunner{system: system, workers: make(map[string]*followerWorker)}
	for name, n := range system.nodes {
		if n.Follower != nil {
			w := &followerWorker{}
			w.cond = sync.NewCond(&w.mu)
			r.workers[name] = w
		}
	}
	for _, n := range system.nodes {
		if n.Leader != nil {
			n.Leader.Lead(r)
		}
	}
	return r
}

// Start launches one goroutine per follower worker. ctx cancellation stops
// all workers once their current PullAndProcess call (if any) returns;
// Stop additionally wakes any worker blocked waiting for a prompt.
func (r *MultiThreadedRunner) Start(ctx context.Context) {
	for name, worker := range r.workers {
		r.wg.Add(1)
		go r.runWorker(ctx, name, worker)
	}
}

func (r *MultiThreadedRunner) runWorker(ctx context.Context, followerName string, w *followerWorker) {
	defer r.wg.Done()
	node, _ := r.system.Node(followerName)

	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if w.stopped && len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		leader := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if node.Follower != nil {
			_ = node.Follower.PullAndProcess(ctx, leader)
		}
	}
}

// Stop signals every worker to exit once its pending queue drains, and
// waits for all worker goroutines to return.
func (r *MultiThreadedRunner) Stop() {
	for _, w := range r.workers {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		w.cond.Broadcast()
	}
	r.wg.Wait()
}

// ReceivePrompt implements process.Promptable: it fans leaderName's prompt
// out to every follower that follows it, enqueuing on each one's worker
// and waking it. A leaderName already pending for a given worker is
// coalesced rather than queued again.
func (r *MultiThreadedRunner) ReceivePrompt(ctx context.Context, leaderName string) error {
	for _, followerName := range r.system.Leads(leaderName) {
		w, ok := r.workers[followerName]
		if !ok {
			continue
		}
		w.mu.Lock()
		if !contains(w.pending, leaderName) {
			w.pending = append(w.pending, leaderName)
		}
		w.mu.Unlock()
		w.cond.Signal()
	}
	return nil
}
