package homely

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"homely-scraper/config"
	"homely-scraper/models"
	"homely-scraper/queue"
	"homely-scraper/services"
	"homely-scraper/storage"
	"homely-scraper/utils"
)

const (
	// detailPathMarker distinguishes detail pages from index pages in
	// the site's two-level topology.
	detailPathMarker = "/homes/"

	// dequeueBatch caps how many items a worker claims per poll; it
	// still renders them one at a time.
	dequeueBatch = 4

	// idleExit ends a worker after this many consecutive empty polls.
	idleExit = 3
)

// Scraper coordinates the crawl: N workers, each exclusively owning one
// rendering session, pulling work items and pushing extracted records
// through persistence and media relocation.
type Scraper struct {
	cfg       *config.Config
	logger    *utils.Logger
	queue     *queue.Queue
	store     storage.ListingStore
	relocator *services.Relocator
	handled   *utils.URLSet
}

// New creates a ready-to-run Scraper.
func New(cfg *config.Config, logger *utils.Logger, q *queue.Queue, store storage.ListingStore, relocator *services.Relocator) *Scraper {
	return &Scraper{
		cfg:       cfg,
		logger:    logger,
		queue:     q,
		store:     store,
		relocator: relocator,
		handled:   utils.NewURLSet(),
	}
}

// Run starts the workers and blocks until the queue drains or the
// context is cancelled.
func (s *Scraper) Run(ctx context.Context) {
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	s.logger.Info("starting crawl — workers: %d", workers)

	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()

	s.logger.Info("crawl finished — %d unique URLs handled", s.handled.Size())
}

// runWorker is one worker's full life: acquire a rendering session,
// consume items until the queue stays empty, release the session.
func (s *Scraper) runWorker(ctx context.Context, id int) {
	logger := s.logger.With("worker-" + strconv.Itoa(id))

	renderer, err := NewRenderer(RendererConfig{
		SettleDelay: s.cfg.SettleDelay,
		WaitTimeout: s.cfg.WaitTimeout,
		ChromeBin:   s.cfg.ChromeBin,
		Headless:    true,
	}, logger)
	if err != nil {
		logger.Error("could not start rendering session: %v", err)
		return
	}
	defer renderer.Release()

	retry := &utils.RetryConfig{
		MaxAttempts: s.cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	}

	idle := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping: %v", ctx.Err())
			return
		default:
		}

		items, err := s.queue.Dequeue(ctx, dequeueBatch, s.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed: %v", err)
			continue
		}
		if len(items) == 0 {
			idle++
			if idle >= idleExit {
				logger.Info("queue drained, worker exiting")
				return
			}
			continue
		}
		idle = 0

		for _, item := range items {
			if !s.handled.Add(item.URL) {
				logger.Debug("already handled this run: %s", item.URL)
				continue
			}
			// Item failures are logged inside; the loop never aborts.
			s.processItem(ctx, logger, renderer, retry, item)
		}
	}
}

func (s *Scraper) processItem(ctx context.Context, logger *utils.Logger, renderer *Renderer, retry *utils.RetryConfig, item models.WorkItem) {
	if strings.Contains(item.URL, detailPathMarker) {
		s.processDetail(ctx, logger, renderer, retry, item)
		return
	}
	s.processIndex(ctx, logger, renderer, retry, item)
}

// processIndex renders a listing index page and enqueues every harvested
// detail URL for discovery.
func (s *Scraper) processIndex(ctx context.Context, logger *utils.Logger, renderer *Renderer, retry *utils.RetryConfig, item models.WorkItem) {
	logger.Info("index page: %s", item.URL)

	var snapshot string
	err := retry.Do(ctx, "render-index", func() error {
		var rerr error
		snapshot, rerr = renderer.RenderIndex(ctx, item.URL)
		return rerr
	})
	if err != nil {
		logger.Error("abandoning index item %s: %v", item.URL, err)
		return
	}

	links, err := ExtractListingLinks(snapshot, item.URL)
	if err != nil {
		logger.Error("link harvest failed for %s: %v", item.URL, err)
		return
	}
	logger.Info("found %d property links on %s", len(links), item.URL)

	queued := 0
	for _, link := range links {
		added, err := s.queue.Enqueue(ctx, models.WorkItem{
			URL: link,
			Meta: models.WorkItemMeta{
				JobID:     item.Meta.JobID,
				StartDate: item.Meta.StartDate,
				Schedule:  models.ScheduleDiscovery,
			},
		})
		if err != nil {
			logger.Error("enqueue failed for %s: %v", link, err)
			continue
		}
		if added {
			queued++
		}
	}
	logger.Info("queued %d new detail pages from %s", queued, item.URL)
}

// processDetail runs the full detail pipeline for one item: render,
// extract, resolve agent, upsert, relocate media.
func (s *Scraper) processDetail(ctx context.Context, logger *utils.Logger, renderer *Renderer, retry *utils.RetryConfig, item models.WorkItem) {
	logger.Info("detail page: %s", item.URL)

	var detailSnap, gallerySnap string
	err := retry.Do(ctx, "render-detail", func() error {
		var rerr error
		detailSnap, gallerySnap, rerr = renderer.RenderDetail(ctx, item.URL)
		return rerr
	})
	if err != nil {
		logger.Error("abandoning detail item %s: %v", item.URL, err)
		return
	}

	extraction, err := ExtractDetail(detailSnap, item.URL)
	if err != nil {
		logger.Error("extraction failed for %s: %v", item.URL, err)
		return
	}

	// Without the external id the record cannot be deduplicated
	// downstream, so it is undeliverable.
	if extraction.ExternalID == "" {
		logger.Error("no external id found: %s", item.URL)
		return
	}

	if gallerySnap != "" {
		images, floorPlans, gerr := ExtractGallery(gallerySnap)
		if gerr != nil {
			logger.Warn("gallery parse failed for %s: %v", item.URL, gerr)
		} else {
			extraction.OriginImages = images
			extraction.OriginFloorPlan = floorPlans
		}
	}

	listing := models.FromExtraction(extraction)

	agentID, err := s.store.ResolveAgent(ctx, extraction.Agent)
	switch {
	case errors.Is(err, storage.ErrAgentIncomplete):
		logger.Error("agent name/phone missing for %s — listing stored without agent", item.URL)
	case err != nil:
		logger.Error("agent resolution failed for %s: %v", item.URL, err)
	default:
		listing.AgentID = &agentID
	}

	if err := s.store.UpsertListing(ctx, listing); err != nil {
		logger.Error("persist failed for %s: %v", extraction.ExternalID, err)
		return
	}
	logger.Info("persisted listing %s (%s)", extraction.ExternalID, extraction.Address)

	s.relocator.Relocate(ctx, listing)
}
