// Package archiver implements the §4.5 archive worker pool: startup
// recovery, the retry/fetch/dispatch main loop, and the per-archive
// pipeline that calls a site handler, uploads its artifacts, and runs the
// archive status state machine of §4.7.
//
// The concurrency shape mirrors the teacher's guard-channel pattern
// (`internal/pkg/archiver/archiver.go`'s `run`/`archive` pair in the
// original Zeno fetcher): a buffered channel bounds in-flight goroutines,
// each of which defers its own release. Here the guard channel IS the
// global semaphore of §5, and a ratelimiter.Permit is acquired inside
// each goroutine for the per-domain cap, so permits are acquired
// global-then-domain and released domain-then-global via LIFO defers.
package archiver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/handlers"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/objectstore"
	"github.com/forumarch/archiver/internal/pkg/ratelimiter"
	"github.com/forumarch/archiver/internal/pkg/search"
	"github.com/forumarch/archiver/internal/pkg/stats"
	"github.com/forumarch/archiver/pkg/models"
)

// mainLoopInterval is the §4.5 "sleep 10s and iterate" cadence.
const mainLoopInterval = 10 * time.Second

// Pool is the archive worker pool of §4.5.
type Pool struct {
	cfg     *config.Config
	db      *db.DB
	store   *objectstore.Store
	limiter *ratelimiter.Limiter
	logger  *log.FieldedLogger
	search  *search.Indexer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Pool. Callers call Start to begin processing.
func New(cfg *config.Config, database *db.DB, store *objectstore.Store, limiter *ratelimiter.Limiter) *Pool {
	return &Pool{
		cfg:     cfg,
		db:      database,
		store:   store,
		limiter: limiter,
		logger:  log.NewFieldedLogger(&log.Fields{"component": "archiver"}),
	}
}

// SetSearchIndexer wires an optional Elasticsearch indexer; every archive
// completion is indexed when set. Left nil, completion indexing is
// skipped entirely.
func (p *Pool) SetSearchIndexer(idx *search.Indexer) {
	p.search = idx
}

// Start runs §4.5's startup recovery step, then launches the main loop in
// a background goroutine.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.recover(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(runCtx)

	p.logger.Info("started")
	return nil
}

// Stop cancels the main loop and waits for every in-flight archive
// pipeline to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("stopped")
}

// recover implements §4.5's startup recovery: archives stuck in
// processing (interrupted mid-run) go back to pending, and same-day
// failed archives below the retry cap get another immediate shot.
func (p *Pool) recover(ctx context.Context) error {
	stuck, err := p.db.ResetStuckProcessingToPending(ctx)
	if err != nil {
		return err
	}
	if stuck > 0 {
		p.logger.Infof("recovered %d archives stuck in processing", stuck)
	}

	reopened, err := p.db.ResetSameDayFailedToPending(ctx)
	if err != nil {
		return err
	}
	if reopened > 0 {
		p.logger.Infof("reopened %d same-day failed archives", reopened)
	}
	return nil
}

// run is the §4.5 main loop: process retries, fetch pending archives,
// dispatch each under the global + per-domain permits, sleep, iterate.
func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	guard := make(chan struct{}, p.cfg.WorkerConcurrency)
	var jobs sync.WaitGroup

	for {
		if ctx.Err() != nil {
			jobs.Wait()
			return
		}

		p.processRetries(ctx)

		pending, err := p.db.FetchPendingArchives(ctx, p.cfg.WorkerConcurrency)
		if err != nil {
			p.logger.Errorf("fetch pending archives: %v", err)
		}

		for _, a := range pending {
			archive := a

			select {
			case guard <- struct{}{}:
			case <-ctx.Done():
				jobs.Wait()
				return
			}

			jobs.Add(1)
			stats.ArchiverRoutinesIncr()
			go func() {
				defer jobs.Done()
				defer func() { <-guard }()
				defer stats.ArchiverRoutinesDecr()
				p.dispatch(ctx, &archive)
			}()
		}

		select {
		case <-ctx.Done():
			jobs.Wait()
			return
		case <-time.After(mainLoopInterval):
		}
	}
}

// processRetries implements §4.5 step 1: failed rows past the retry cap
// are skipped permanently; the rest, once next_retry_at has passed, go
// back to pending.
func (p *Pool) processRetries(ctx context.Context) {
	overCap, err := p.db.FetchOverCapFailedArchives(ctx, p.cfg.WorkerConcurrency)
	if err != nil {
		p.logger.Errorf("fetch over-cap failed archives: %v", err)
	}
	for _, a := range overCap {
		if err := p.db.TransitionToSkipped(ctx, a.ID, models.ArchiveStatusFailed, "retry budget exhausted"); err != nil {
			p.logger.Errorf("archive %d: mark skipped past retry cap: %v", a.ID, err)
		} else {
			stats.ArchivesSkippedIncr()
		}
	}

	eligible, err := p.db.FetchRetryEligibleArchives(ctx, p.cfg.WorkerConcurrency)
	if err != nil {
		p.logger.Errorf("fetch retry-eligible archives: %v", err)
	}
	for _, a := range eligible {
		if err := p.db.ResetFailedToPending(ctx, a.ID); err != nil && !errors.Is(err, db.ErrStaleTransition) {
			p.logger.Errorf("archive %d: reset failed to pending: %v", a.ID, err)
		}
	}
}

// dispatch resolves the archive's link and per-domain permit, then runs
// the per-archive pipeline (pipeline.go). Acquisition order is global
// (the caller's guard slot) then domain; release is domain then global
// via the LIFO defer chain below.
func (p *Pool) dispatch(ctx context.Context, archive *models.Archive) {
	link, err := p.db.GetLink(ctx, archive.LinkID)
	if err != nil {
		p.logger.Errorf("archive %d: load link %d: %v", archive.ID, archive.LinkID, err)
		return
	}

	permit, err := p.limiter.Acquire(ctx, link.Domain)
	if err != nil {
		return
	}
	defer permit.Release()

	p.runPipeline(ctx, archive, link)
}
