package driver

import (
	"context"
	"fmt"
	"os"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"kotlite/pkg/parser"
	"kotlite/pkg/source"
)

// ParseJob is one file queued for parsing. Index is the file's position in the
// caller's list so results can be put back in order.
type ParseJob struct {
	Index int
	Path  string
}

// ParseResult is the outcome of a ParseJob. Source is empty when the file could
// not be read.
type ParseResult struct {
	Job      ParseJob
	Source   string
	Script   *parser.ScriptNode
	Err      error
	Duration time.Duration
}

// PoolStats counts the jobs a parsePool has seen.
type PoolStats struct {
	Workers   int
	Submitted int64
	Parsed    int64
	Failed    int64
}

// parsePool reads and parses files on a fixed set of goroutines. Parsing only
// touches the file being parsed, so workers share nothing but the channels.
type parsePool struct {
	workers int

	jobs    chan ParseJob
	results chan *ParseResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started int32
	stopped int32

	submitted int64
	parsed    int64
	failed    int64
}

func newParsePool(workers int) *parsePool {
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	return &parsePool{workers: workers}
}

func (p *parsePool) start(ctx context.Context, backlog int) error {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return fmt.Errorf("parse pool already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.jobs = make(chan ParseJob, p.workers)
	p.results = make(chan *ParseResult, backlog)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return nil
}

func (p *parsePool) submit(job ParseJob) error {
	if atomic.LoadInt32(&p.started) == 0 {
		return fmt.Errorf("parse pool not started")
	}
	if atomic.LoadInt32(&p.stopped) == 1 {
		return fmt.Errorf("parse pool stopped")
	}
	select {
	case p.jobs <- job:
		atomic.AddInt64(&p.submitted, 1)
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// shutdown stops accepting jobs and closes the results channel once every
// worker has drained the queue.
func (p *parsePool) shutdown() {
	if !atomic.CompareAndSwapInt32(&p.stopped, 0, 1) {
		return
	}
	close(p.jobs)
	go func() {
		p.wg.Wait()
		p.cancel()
		close(p.results)
	}()
}

func (p *parsePool) stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Submitted: atomic.LoadInt64(&p.submitted),
		Parsed:    atomic.LoadInt64(&p.parsed),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}

func (p *parsePool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			// Drain without working so shutdown can finish.
			p.results <- &ParseResult{Job: job, Err: p.ctx.Err()}
			continue
		}
		p.results <- p.process(job)
	}
}

func (p *parsePool) process(job ParseJob) *ParseResult {
	start := time.Now()
	res := &ParseResult{Job: job}
	data, err := os.ReadFile(job.Path)
	if err != nil {
		res.Err = err
	} else {
		res.Source = string(data)
		res.Script, res.Err = parser.ParseSource(source.Named(job.Path, res.Source))
	}
	res.Duration = time.Since(start)
	if res.Err != nil {
		atomic.AddInt64(&p.failed, 1)
	} else {
		atomic.AddInt64(&p.parsed, 1)
	}
	return res
}

// ParseFiles reads and parses paths concurrently on workers goroutines
// (runtime.NumCPU when workers <= 0). Results come back in the order of paths.
func ParseFiles(ctx context.Context, paths []string, workers int) ([]*ParseResult, PoolStats, error) {
	pool := newParsePool(workers)
	if err := pool.start(ctx, len(paths)); err != nil {
		return nil, PoolStats{}, err
	}
	var submitErr error
	for i, path := range paths {
		if err := pool.submit(ParseJob{Index: i, Path: path}); err != nil {
			submitErr = err
			break
		}
	}
	pool.shutdown()

	out := make([]*ParseResult, len(paths))
	for res := range pool.results {
		out[res.Job.Index] = res
	}
	if submitErr != nil {
		return nil, pool.stats(), submitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, pool.stats(), err
	}
	return out, pool.stats(), nil
}
