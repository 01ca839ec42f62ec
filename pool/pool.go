// Package pool implements the fixed-priority, cross-priority-stealing
// worker pool that runs every CPU-bound stage of the pipeline (spec §4.4).
// Grounded on the teacher's transport stream collector (collect.go): a
// small number of goroutines draining shared, mutex-guarded work with a
// single condition variable, generalized here from one idle-timeout heap
// to four priority queues with per-worker fallback lists.
package pool

import (
	"sync"

	"github.com/meshline/msgline/cmn/nlog"
)

// Priority is one of {top, high, normal, low} (spec §3 "Job").
type Priority int

const (
	Top Priority = iota
	High
	Normal
	Low

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case Top:
		return "top"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// JobFunc performs the job's work; msgline's stage chains are written in
// continuation-passing style, so a JobFunc that succeeds is expected to
// itself Submit the next stage's job before returning. A returned error
// means the pipeline stops advancing for that item (spec §4.4 "Failure").
type JobFunc func(payload []byte) error

// Job is {priority, payload bytes, continuation fn} (spec §3 "Job").
type Job struct {
	Priority Priority
	Payload  []byte
	Fn       JobFunc
}

// Config sizes every priority but Top, which is always exactly one worker
// (spec §4.4 "a default pool has one top worker, then H high, N normal, L
// low workers").
type Config struct {
	High   int
	Normal int
	Low    int
}

type workerSpec struct {
	owned    Priority
	fallback []Priority
}

// specs encodes the cross-priority stealing lists from spec §4.4:
// high-priority workers may also drain normal and low, with symmetric
// cross-coverage for the others. Top stays dedicated so the send stage
// (always scheduled at Top, spec §4.3) never waits behind stolen work.
func specFor(owned Priority) workerSpec {
	switch owned {
	case Top:
		return workerSpec{owned: Top, fallback: nil}
	case High:
		return workerSpec{owned: High, fallback: []Priority{Normal, Low}}
	case Normal:
		return workerSpec{owned: Normal, fallback: []Priority{Low, High}}
	case Low:
		return workerSpec{owned: Low, fallback: []Priority{Normal, High}}
	default:
		return workerSpec{owned: owned}
	}
}

// Pool is the scheduler: one FIFO queue per priority, a shared mutex, and a
// condition variable signalled on every enqueue.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  [numPriorities][]Job
	closed  bool
	wg      sync.WaitGroup
	counts  [numPriorities]uint64
	nworker int
}

// New builds and starts a pool: 1 top worker, then cfg.High/.Normal/.Low
// workers of their respective owned priority.
func New(cfg Config) *Pool {
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)

	starts := []struct {
		owned Priority
		n     int
	}{
		{Top, 1},
		{High, orDefault(cfg.High, 8)},
		{Normal, orDefault(cfg.Normal, 8)},
		{Low, orDefault(cfg.Low, 8)},
	}
	for _, s := range starts {
		spec := specFor(s.owned)
		for i := 0; i < s.n; i++ {
			p.nworker++
			p.wg.Add(1)
			go p.runWorker(spec)
		}
	}
	return p
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Submit enqueues j onto its priority's queue; it returns an error if the
// pool has been stopped (spec §4.4 "Shutdown" refuses new enqueues).
func (p *Pool) Submit(j Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPoolStopped
	}
	p.queues[j.Priority] = append(p.queues[j.Priority], j)
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// runWorker is one worker's main loop: pop from the owned queue first,
// else scan the fallback list in order, else block on the shared condvar.
func (p *Pool) runWorker(spec workerSpec) {
	defer p.wg.Done()
	for {
		job, ok := p.nextJob(spec)
		if !ok {
			return
		}
		p.exec(job)
	}
}

func (p *Pool) nextJob(spec workerSpec) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return Job{}, false
		}
		if j, ok := p.popLocked(spec.owned); ok {
			return j, true
		}
		for _, fb := range spec.fallback {
			if j, ok := p.popLocked(fb); ok {
				return j, true
			}
		}
		p.cond.Wait()
	}
}

func (p *Pool) popLocked(pr Priority) (Job, bool) {
	q := p.queues[pr]
	if len(q) == 0 {
		return Job{}, false
	}
	j := q[0]
	p.queues[pr] = q[1:]
	return j, true
}

func (p *Pool) exec(j Job) {
	p.mu.Lock()
	p.counts[j.Priority]++
	p.mu.Unlock()

	if err := j.Fn(j.Payload); err != nil {
		nlog.Errorf("pool: job[%s] failed: %v", j.Priority, err)
	}
}

// Stop drains by refusing new enqueues, wakes every worker, and joins.
// Pending jobs at the time of Stop are discarded, not executed (spec §4.4).
// Stop is idempotent (spec §8 law 6).
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats reports, per priority, the queue depth at the moment of the call
// and the cumulative count of jobs this pool has started executing
// (SPEC_FULL §4.4). No package in this repository calls it.
type Stats struct {
	QueueDepth [numPriorities]int
	Executed   [numPriorities]uint64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s Stats
	for i := 0; i < numPriorities; i++ {
		s.QueueDepth[i] = len(p.queues[i])
		s.Executed[i] = p.counts[i]
	}
	return s
}
