// Package threadworker implements the §4.8 thread-archival job: the same
// ingestion logic as the main loop, scoped to one thread's feed instead of
// the global posts feed, run strictly one job at a time (§5).
package threadworker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/ingest"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/stats"
	"github.com/forumarch/archiver/pkg/models"
)

const idlePoll = 30 * time.Second

// Worker is the thread-archival worker of §4.8.
type Worker struct {
	cfg    *config.Config
	db     *db.DB
	logger *log.FieldedLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, database *db.DB) *Worker {
	return &Worker{
		cfg:    cfg,
		db:     database,
		logger: log.NewFieldedLogger(&log.Fields{"component": "threadworker"}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(runCtx)
	w.logger.Info("started")
	return nil
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	stats.ThreadWorkerRoutinesIncr()
	defer stats.ThreadWorkerRoutinesDecr()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.db.FetchPendingThreadJob(ctx)
		if err != nil {
			if !db.IsNoRows(err) {
				w.logger.Errorf("fetch pending thread job: %v", err)
			}
			if !sleepCtx(ctx, idlePoll) {
				return
			}
			continue
		}

		w.process(ctx, job)
	}
}

// process implements §4.8's thread-archival note: the job walks its
// thread's own feed with the same per-post logic as the main loop, and
// additionally updates posts_processed/links_found after each post.
func (w *Worker) process(ctx context.Context, job *models.ThreadArchiveJob) {
	if err := w.db.TransitionThreadJob(ctx, job.ID, models.JobStatusPending, models.JobStatusRunning); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			w.logger.Errorf("job %d: transition to running: %v", job.ID, err)
		}
		return
	}

	posts, err := ingest.FetchFeed(ctx, w.cfg, job.ThreadURL)
	if err != nil {
		w.fail(ctx, job.ID, "fetch thread feed: "+err.Error())
		return
	}

	postsProcessed := job.PostsProcessed
	linksFound := job.LinksFound

	for _, post := range posts {
		result, err := ingest.ProcessPost(ctx, w.db, w.cfg, post)
		if err != nil {
			w.logger.Errorf("job %d: process post %s: %v", job.ID, post.GUID, err)
			continue
		}

		postsProcessed++
		linksFound += result.LinksFound
		if err := w.db.UpdateThreadJobProgress(ctx, job.ID, postsProcessed, linksFound); err != nil {
			w.logger.Errorf("job %d: update progress: %v", job.ID, err)
		}
	}

	if err := w.db.TransitionThreadJob(ctx, job.ID, models.JobStatusRunning, models.JobStatusComplete); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			w.logger.Errorf("job %d: complete: %v", job.ID, err)
		}
	}
}

func (w *Worker) fail(ctx context.Context, jobID int64, msg string) {
	if err := w.db.FailThreadJob(ctx, jobID, msg); err != nil {
		w.logger.Errorf("job %d: mark failed: %v", jobID, err)
	}
	w.logger.Warnf("thread job %d failed: %s", jobID, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
