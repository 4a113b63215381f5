package downloader

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"wbscraper/pkg/logger"
)

// Job is one picture to fetch and store.
type Job struct {
	URL          string
	LocalPath    string
	CanonicalURL string
}

// Result reports the outcome of one Job.
type Result struct {
	Job      Job
	Success  bool
	Err      error
	Size     int
	Duration time.Duration
}

// PictureFetcher fetches one picture asset.
type PictureFetcher interface {
	DownloadPicture(ctx context.Context, url string) ([]byte, error)
}

// PictureStorage persists a fetched asset at its planned path.
type PictureStorage interface {
	Save(r io.Reader, path string) error
}

// Pool downloads pictures with a fixed number of workers. Each worker
// sleeps for the politeness interval after every attempt, successful or
// not, so the asset host sees a bounded request rate per worker.
type Pool struct {
	fetcher  PictureFetcher
	storage  PictureStorage
	workers  int
	interval time.Duration
	logger   logger.Logger

	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewPool creates a download pool. workers below 1 is clamped to 1.
func NewPool(fetcher PictureFetcher, storage PictureStorage, workers int, interval time.Duration, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		fetcher:  fetcher,
		storage:  storage,
		workers:  workers,
		interval: interval,
		logger:   log,
		jobs:     make(chan Job, workers*4),
		results:  make(chan Result, workers*4),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.WithField("workers", p.workers).Debug("download pool started")
}

// Submit queues a job. It blocks when the queue is full and returns
// false once the pool is shutting down. Jobs submitted before Start
// sit in the queue until the workers come up.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Enqueue is the convenience form of Submit used by the crawl driver.
func (p *Pool) Enqueue(url, localPath, canonicalURL string) error {
	if !p.Submit(Job{URL: url, LocalPath: localPath, CanonicalURL: canonicalURL}) {
		return p.ctx.Err()
	}
	return nil
}

// Results exposes the outcome channel. It closes after Stop once all
// in-flight jobs have finished.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop closes the intake, waits for in-flight jobs, then closes the
// result channel.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	p.cancel()
	close(p.results)
	p.logger.Debug("download pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.WithField("worker", id)
	for job := range p.jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.download(job)
		if result.Success {
			log.WithFields(map[string]interface{}{
				"url":  job.URL,
				"path": job.LocalPath,
				"size": result.Size,
			}).Debug("picture downloaded")
		} else {
			log.WithError(result.Err).WithField("url", job.URL).Warn("picture download failed")
		}

		select {
		case p.results <- result:
		case <-p.ctx.Done():
			return
		}

		if p.interval > 0 {
			select {
			case <-time.After(p.interval):
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) download(job Job) Result {
	start := time.Now()

	data, err := p.fetcher.DownloadPicture(p.ctx, job.URL)
	if err != nil {
		return Result{Job: job, Err: err, Duration: time.Since(start)}
	}

	if err := p.storage.Save(bytes.NewReader(data), job.LocalPath); err != nil {
		return Result{Job: job, Err: err, Duration: time.Since(start)}
	}

	return Result{Job: job, Success: true, Size: len(data), Duration: time.Since(start)}
}
