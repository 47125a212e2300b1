package postprocess

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"hotproxy/internal/schedule"
)

// Pool bounds the number of live workers to maxWorkers using an LRU
// cache keyed by script path (Insightify's projectstore.Store uses
// exactly this shape — a hashicorp/golang-lru/v2 cache bounding a
// working set with an eviction callback that releases the evicted
// resource), and separately evicts workers idle past idleTimeout.
// Concurrent in-flight requests are bounded by the billie-coop-loco
// channel-semaphore idiom shared with internal/schedule.
type Pool struct {
	spawn       SpawnFunc
	sem         *schedule.Semaphore
	idleTimeout time.Duration

	mu        sync.Mutex
	cache     *lru.Cache[string, *entry]
	evictions int
}

type entry struct {
	worker   WorkerProcess
	lastUsed time.Time
}

// NewPool creates a Pool holding at most maxWorkers concurrently live
// workers, evicting idle ones after idleTimeout.
func NewPool(maxWorkers int, idleTimeout time.Duration, spawn SpawnFunc) (*Pool, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{
		spawn:       spawn,
		sem:         schedule.NewSemaphore(maxWorkers),
		idleTimeout: idleTimeout,
	}
	cache, err := lru.NewWithEvict[string, *entry](maxWorkers, func(_ string, e *entry) {
		_ = e.worker.Close()
		p.evictions++
	})
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

// Run executes req against the worker bound to req.ScriptPath, starting
// one on first demand. A panic during the run is recovered and
// reported as a RunError failure.
func (p *Pool) Run(ctx context.Context, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, &Failure{Kind: RunError, Message: fmt.Sprint(r)}
		}
	}()
	if err := p.sem.Acquire(ctx); err != nil {
		return Result{}, &Failure{Kind: Interrupted, Message: err.Error()}
	}
	defer p.sem.Release()

	w, err := p.workerFor(req.ScriptPath)
	if err != nil {
		return Result{}, err
	}
	return w.Run(ctx, req)
}

func (p *Pool) workerFor(scriptPath string) (WorkerProcess, error) {
	p.mu.Lock()
	if e, ok := p.cache.Get(scriptPath); ok {
		e.lastUsed = time.Now()
		p.mu.Unlock()
		return e.worker, nil
	}
	p.mu.Unlock()

	w, err := p.spawn(scriptPath)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another goroutine may have raced us; prefer the existing worker
	// and close the redundant one rather than leaking a process.
	if e, ok := p.cache.Get(scriptPath); ok {
		_ = w.Close()
		e.lastUsed = time.Now()
		return e.worker, nil
	}
	p.cache.Add(scriptPath, &entry{worker: w, lastUsed: time.Now()})
	return w, nil
}

// SweepIdle evicts every worker whose last use is older than
// idleTimeout, reporting how many were terminated — the "Terminated N
// superfluous worker(s)" informational message of spec.md's worker
// eviction scenario.
func (p *Pool) SweepIdle(now time.Time) int {
	p.mu.Lock()
	var stale []string
	for _, key := range p.cache.Keys() {
		if e, ok := p.cache.Peek(key); ok && now.Sub(e.lastUsed) >= p.idleTimeout {
			stale = append(stale, key)
		}
	}
	before := p.evictions
	for _, key := range stale {
		p.cache.Remove(key)
	}
	terminated := p.evictions - before
	p.mu.Unlock()
	return terminated
}

// Len reports the number of currently live workers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

// Close terminates every live worker.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Purge()
}
