package crawler

import (
	"context"
	"fmt"

	"wbscraper/pkg/checkpoint"
	"wbscraper/pkg/logger"
	"wbscraper/pkg/models"
	"wbscraper/pkg/ratelimit"
	"wbscraper/pkg/weibo"
)

// Fetcher performs one logical page fetch, retries included.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// RecordStore is the durable, dedup-aware record log.
type RecordStore interface {
	Has(key string) bool
	Append(rec models.Record) error
}

// Downloader receives picture jobs as their records are persisted.
type Downloader interface {
	Enqueue(url, localPath, canonicalURL string) error
}

// Summary aggregates what one crawl run did.
type Summary struct {
	SegmentsProcessed int
	SegmentsSplit     int
	SegmentsFailed    int
	PagesCrawled      int
	PagesFailed       int
	RecordsAppended   int
	DownloadsQueued   int
}

// Options configures a Crawler.
type Options struct {
	Fetcher     Fetcher
	Extractor   *weibo.Extractor
	Store       RecordStore
	Downloader  Downloader          // nil disables downloads
	Limiter     ratelimit.Limiter   // politeness gate before search fetches
	Checkpoints *checkpoint.Manager // nil disables resume state
	PageBudget  int                 // most pages crawled per segment
	Logger      logger.Logger
}

// Crawler walks a keyword query over the search endpoint. It probes
// each date segment's page count, bisects segments the endpoint
// truncates, and crawls the ones that fit, appending records before
// their pictures are fetched.
type Crawler struct {
	fetcher     Fetcher
	extractor   *weibo.Extractor
	store       RecordStore
	downloader  Downloader
	limiter     ratelimit.Limiter
	checkpoints *checkpoint.Manager
	pageBudget  int
	logger      logger.Logger
}

// New creates a crawler. Fetcher, Extractor and Store are required.
func New(opts Options) (*Crawler, error) {
	if opts.Fetcher == nil || opts.Extractor == nil || opts.Store == nil {
		return nil, fmt.Errorf("fetcher, extractor and store are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewFixedInterval(0)
	}
	pageBudget := opts.PageBudget
	if pageBudget <= 0 {
		pageBudget = weibo.PageCap
	}
	return &Crawler{
		fetcher:     opts.Fetcher,
		extractor:   opts.Extractor,
		store:       opts.Store,
		downloader:  opts.Downloader,
		limiter:     limiter,
		checkpoints: opts.Checkpoints,
		pageBudget:  pageBudget,
		logger:      log,
	}, nil
}

// Run crawls the query to completion or until ctx is cancelled. When
// resume is true and a checkpoint exists, the run continues from the
// saved segment queue instead of the query's own window.
func (c *Crawler) Run(ctx context.Context, q models.Query, resume bool) (*Summary, error) {
	queue, cp, err := c.prepare(q, resume)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	c.logger.WithFields(map[string]interface{}{
		"keyword":  q.Keyword(),
		"segments": queue.Len(),
	}).Info("crawl started")

	for queue.Len() > 0 {
		// Cancellation is checked while the next segment is still in
		// the queue so the saved resume state includes it.
		if err := ctx.Err(); err != nil {
			c.persistProgress(cp, queue, summary)
			return summary, err
		}

		seg, _ := queue.PopFront()
		c.processSegment(ctx, q, seg, queue, summary)
		c.persistProgress(cp, queue, summary)
	}

	if c.checkpoints != nil {
		if err := c.checkpoints.Delete(); err != nil {
			c.logger.WithError(err).Warn("failed to remove checkpoint")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"segments_processed": summary.SegmentsProcessed,
		"segments_split":     summary.SegmentsSplit,
		"pages_crawled":      summary.PagesCrawled,
		"records_appended":   summary.RecordsAppended,
	}).Info("crawl finished")

	return summary, nil
}

// prepare builds the initial segment queue, from the checkpoint when
// resuming, otherwise from the query window.
func (c *Crawler) prepare(q models.Query, resume bool) (*Queue, *checkpoint.Checkpoint, error) {
	var cp *checkpoint.Checkpoint

	if resume && c.checkpoints != nil {
		loaded, err := c.checkpoints.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if loaded != nil {
			segments, err := loaded.Segments()
			if err != nil {
				return nil, nil, fmt.Errorf("corrupt checkpoint: %w", err)
			}
			return NewQueue(segments...), loaded, nil
		}
		c.logger.Info("no checkpoint found, starting fresh")
	}

	if c.checkpoints != nil {
		created, err := c.checkpoints.Create(q)
		if err != nil {
			c.logger.WithError(err).Warn("failed to create checkpoint, continuing without resume state")
		} else {
			cp = created
		}
	}

	if q.HasWindow() {
		return NewQueue(q.Window()), cp, nil
	}
	return NewQueue(models.Segment{}), cp, nil
}

// processSegment probes one segment and either splits it or crawls it.
func (c *Crawler) processSegment(ctx context.Context, q models.Query, seg models.Segment, queue *Queue, summary *Summary) {
	log := c.logger.WithField("segment", seg.String())

	c.limiter.Wait()
	probeURL := weibo.SearchURL(q, seg, 1)
	html, err := c.fetcher.Fetch(ctx, probeURL)
	if err != nil {
		log.WithError(err).Error("probe fetch failed, abandoning segment")
		summary.SegmentsFailed++
		return
	}

	doc, err := weibo.ParseDocument(html)
	if err != nil {
		log.WithError(err).Error("probe page unparseable, abandoning segment")
		summary.SegmentsFailed++
		return
	}

	total := weibo.TotalPages(doc, log)
	log.WithField("pages", total).Debug("segment probed")

	if total > weibo.PageCap {
		switch {
		case seg.Defined() && !seg.SingleDay():
			first, second := seg.Split()
			queue.PushFront(first, second)
			summary.SegmentsSplit++
			log.WithFields(map[string]interface{}{
				"first":  first.String(),
				"second": second.String(),
			}).Info("segment too dense, split")
			return
		case seg.SingleDay():
			log.Warn("single-day segment exceeds the page cap, crawling what the budget allows")
		default:
			log.Warn("query has no date window to narrow, crawling what the budget allows")
		}
	}

	pages := total
	if pages > c.pageBudget {
		pages = c.pageBudget
	}

	if err := c.crawlSegment(ctx, q, seg, total, pages, summary); err != nil {
		log.WithError(err).Error("segment crawl aborted")
		summary.SegmentsFailed++
		return
	}
	summary.SegmentsProcessed++
}

// crawlSegment walks a segment's result pages in order. A failed fetch
// skips that page; a page that fetches but cannot be processed aborts
// the segment's remaining pages.
func (c *Crawler) crawlSegment(ctx context.Context, q models.Query, seg models.Segment, total, pages int, summary *Summary) error {
	log := c.logger.WithField("segment", seg.String())

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// A segment the probe reported as single-page is fetched
		// without a page parameter. A multi-page segment keeps the
		// parameter even when the budget allows only one page.
		pageParam := page
		if total == 1 {
			pageParam = 0
		}

		c.limiter.Wait()
		html, err := c.fetcher.Fetch(ctx, weibo.SearchURL(q, seg, pageParam))
		if err != nil {
			log.WithError(err).WithField("page", page).Warn("page fetch failed, skipping page")
			summary.PagesFailed++
			continue
		}

		if err := c.processPage(html, q, page, summary); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		summary.PagesCrawled++
	}
	return nil
}

// processPage extracts and persists one page's records, handing picture
// records to the downloader after their row is durable.
func (c *Crawler) processPage(html string, q models.Query, page int, summary *Summary) error {
	doc, err := weibo.ParseDocument(html)
	if err != nil {
		return fmt.Errorf("failed to parse result page: %w", err)
	}

	records := c.extractor.Extract(doc, q, c.store.Has)
	for _, rec := range records {
		if err := c.store.Append(rec); err != nil {
			c.logger.WithError(err).WithField("canonical_url", rec.CanonicalURL).Error("failed to persist record, skipping")
			continue
		}
		summary.RecordsAppended++

		if rec.Kind == models.KindPicture && c.downloader != nil {
			if err := c.downloader.Enqueue(rec.PictureURL, rec.LocalPath, rec.CanonicalURL); err != nil {
				c.logger.WithError(err).WithField("url", rec.PictureURL).Warn("failed to queue download")
				continue
			}
			summary.DownloadsQueued++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"page":    page,
		"records": len(records),
	}).Debug("page processed")
	return nil
}

// persistProgress saves the remaining queue and counters. Best effort.
func (c *Crawler) persistProgress(cp *checkpoint.Checkpoint, queue *Queue, summary *Summary) {
	if c.checkpoints == nil || cp == nil {
		return
	}
	cp.SetSegments(queue.Snapshot())
	cp.PagesCrawled = summary.PagesCrawled
	cp.RecordsAppended = summary.RecordsAppended
	if err := c.checkpoints.Save(cp); err != nil {
		c.logger.WithError(err).Warn("failed to save checkpoint")
	}
}
