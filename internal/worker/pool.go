package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	idx int
	job Job
}

type indexedResult struct {
	idx    int
	result Result
}

// Pool runs jobs on a fixed number of workers and returns their results in
// submission order. Results are drained continuously, so Submit never blocks
// on an unread result.
type Pool struct {
	workers   int
	jobQueue  chan indexedJob
	results   chan indexedResult
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	collected map[int]Result

	mu        sync.Mutex
	submitted int

	startOnce   sync.Once
	closeQueue  sync.Once
	closeResult sync.Once
}

// NewPool creates a pool bound to parent. Cancelling parent stops the pool.
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:   workers,
		jobQueue:  make(chan indexedJob, workers*2),
		results:   make(chan indexedResult, workers*2),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		collected: make(map[int]Result),
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
		go p.collect()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case j, ok := <-p.jobQueue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				return
			}
			p.results <- indexedResult{idx: j.idx, result: j.job.Execute(p.ctx)}
		}
	}
}

func (p *Pool) collect() {
	defer close(p.done)
	for r := range p.results {
		p.collected[r.idx] = r.result
	}
}

// Submit queues a job. It returns false if the pool was cancelled first.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob{idx: p.submitted, job: job}:
		p.submitted++
		return true
	}
}

// Cancel stops handing out queued jobs. Jobs already running see a
// cancelled context.
func (p *Pool) Cancel() {
	p.cancel()
}

// Wait waits for all submitted jobs and returns one slot per accepted job,
// in submission order. A slot is nil when its job never ran.
func (p *Pool) Wait() []Result {
	p.Start()
	p.closeQueue.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.closeResults()
	<-p.done

	p.mu.Lock()
	n := p.submitted
	p.mu.Unlock()

	out := make([]Result, n)
	for idx, r := range p.collected {
		out[idx] = r
	}

	p.cancel()
	return out
}

func (p *Pool) closeResults() {
	p.closeResult.Do(func() {
		close(p.results)
	})
}
