// Package commentworker implements the §4.6 comment worker: a strictly
// single-threaded consumer of comment_extraction_jobs. Platform comment
// APIs rate-limit aggressively per IP, so serialized execution across
// the whole process beats any concurrency here.
package commentworker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/objectstore"
	"github.com/forumarch/archiver/internal/pkg/stats"
	"github.com/forumarch/archiver/pkg/models"
)

// idlePoll is the §4.6 "no pending work -> sleep 30s" and "transient DB
// error -> sleep 30s, retry" cadence.
const idlePoll = 30 * time.Second

// Worker is the comment worker of §4.6.
type Worker struct {
	cfg    *config.Config
	db     *db.DB
	store  *objectstore.Store
	logger *log.FieldedLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Worker. Callers call Start to begin processing.
func New(cfg *config.Config, database *db.DB, store *objectstore.Store) *Worker {
	return &Worker{
		cfg:    cfg,
		db:     database,
		store:  store,
		logger: log.NewFieldedLogger(&log.Fields{"component": "commentworker"}),
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
	stats.CommentWorkerRoutinesIncr()
	defer stats.CommentWorkerRoutinesDecr()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.db.FetchPendingCommentJob(ctx)
		if err != nil {
			if !db.IsNoRows(err) {
				w.logger.Errorf("fetch pending comment job: %v", err)
			}
			if !sleepCtx(ctx, idlePoll) {
				return
			}
			continue
		}

		w.process(ctx, job)
	}
}

// process implements §4.6 steps 2-7 for a single job.
func (w *Worker) process(ctx context.Context, job *models.CommentExtractionJob) {
	archive, err := w.db.GetArchive(ctx, job.ArchiveID)
	if err != nil {
		w.failJob(ctx, job.ID, "archive not found: "+err.Error())
		return
	}
	link, err := w.db.GetLink(ctx, archive.LinkID)
	if err != nil {
		w.failJob(ctx, job.ID, "link not found: "+err.Error())
		return
	}

	if err := w.db.TransitionCommentJob(ctx, job.ID, models.JobStatusPending, models.JobStatusRunning); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			w.logger.Errorf("job %d: transition to running: %v", job.ID, err)
		}
		return
	}

	var schema *models.CommentExtractionSchema
	if isTikTok(link.Domain) {
		schema, err = extractTikTok(ctx, w.cfg, link.NormalizedURL)
	} else {
		schema, err = extractGeneric(ctx, w.cfg, link.NormalizedURL)
	}
	if err != nil {
		w.failJob(ctx, job.ID, err.Error())
		return
	}

	blob, err := json.Marshal(schema)
	if err != nil {
		w.failJob(ctx, job.ID, "marshal comments.json: "+err.Error())
		return
	}

	key := w.store.CommentsKey(archive.ID)
	if err := w.store.Put(ctx, key, blob, "application/json"); err != nil {
		w.failJob(ctx, job.ID, "upload comments.json: "+err.Error())
		return
	}
	if _, err := w.db.InsertArtifact(ctx, &models.ArchiveArtifact{
		ArchiveID:   archive.ID,
		Kind:        models.ArtifactKindComments,
		S3Key:       key,
		ContentType: nullString("application/json"),
		SizeBytes:   nullInt64(int64(len(blob))),
	}); err != nil {
		w.failJob(ctx, job.ID, "insert comments artifact: "+err.Error())
		return
	}

	metaJSON, _ := json.Marshal(map[string]interface{}{
		"comment_count": schema.Stats.ExtractedComments,
		"platform":      schema.Platform,
	})
	if err := w.db.CompleteCommentJob(ctx, job.ID, string(metaJSON)); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			w.logger.Errorf("job %d: complete: %v", job.ID, err)
		}
		return
	}

	stats.CommentsExtractedIncr(int64(schema.Stats.ExtractedComments))
}

func (w *Worker) failJob(ctx context.Context, jobID int64, msg string) {
	if err := w.db.FailCommentJob(ctx, jobID, msg); err != nil {
		w.logger.Errorf("job %d: mark failed: %v", jobID, err)
	}
	w.logger.Warnf("comment job %d failed: %s", jobID, msg)
}

func isTikTok(domain string) bool {
	switch domain {
	case "tiktok.com", "www.tiktok.com", "vm.tiktok.com", "vt.tiktok.com":
		return true
	default:
		return strings.HasSuffix(domain, ".tiktok.com")
	}
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}
