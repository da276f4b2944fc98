// Package backfill implements the §4.11 backfill workers: two independent
// batch loops that each drain their backlog and then exit, rather than
// polling forever like the comment and thread workers do.
package backfill

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/objectstore"
	"github.com/forumarch/archiver/internal/pkg/stats"
	"github.com/forumarch/archiver/pkg/models"
)

// Runner owns both backfill loops. Each Run* method is independent and
// safe to run concurrently with the other (§5: "one batch at a time, per
// worker; independent across workers").
type Runner struct {
	cfg    *config.Config
	db     *db.DB
	store  *objectstore.Store
	logger *log.FieldedLogger
}

func New(cfg *config.Config, database *db.DB, store *objectstore.Store) *Runner {
	return &Runner{
		cfg:    cfg,
		db:     database,
		store:  store,
		logger: log.NewFieldedLogger(&log.Fields{"component": "backfill"}),
	}
}

// RunTranscriptText drains archives whose transcript artifact exists but
// whose transcript_text column is empty (§4.11 transcript-text backfill).
// Returns once a batch comes back empty.
func (r *Runner) RunTranscriptText(ctx context.Context) {
	stats.BackfillRoutinesIncr()
	defer stats.BackfillRoutinesDecr()

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := r.db.ArchivesMissingTranscriptText(ctx, r.cfg.BackfillBatchSize)
		if err != nil {
			r.logger.Errorf("transcript backfill: fetch batch: %v", err)
			return
		}
		if len(batch) == 0 {
			r.logger.Info("transcript backfill: drained")
			return
		}

		for _, archive := range batch {
			r.backfillTranscript(ctx, archive)
			if !sleepCtx(ctx, r.cfg.BackfillItemDelay) {
				return
			}
		}

		if !sleepCtx(ctx, r.cfg.BackfillBatchDelay) {
			return
		}
	}
}

func (r *Runner) backfillTranscript(ctx context.Context, archive models.Archive) {
	artifacts, err := r.db.ArtifactsForArchive(ctx, archive.ID)
	if err != nil {
		r.logger.Errorf("archive %d: fetch artifacts: %v", archive.ID, err)
		return
	}

	var key string
	for _, a := range artifacts {
		if a.Kind == models.ArtifactKindTranscript {
			key = a.S3Key
			break
		}
	}
	if key == "" {
		return
	}

	blob, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Errorf("archive %d: fetch transcript blob: %v", archive.ID, err)
		return
	}
	if len(blob) == 0 || !utf8.Valid(blob) {
		return
	}

	if err := r.db.SetTranscriptText(ctx, archive.ID, string(blob)); err != nil {
		r.logger.Errorf("archive %d: set transcript_text: %v", archive.ID, err)
	}
}

// RunTikTokSubtitles drains TikTok archives with no subtitle artifact and
// no attempted marker (§4.11 TikTok subtitle backfill).
func (r *Runner) RunTikTokSubtitles(ctx context.Context) {
	stats.BackfillRoutinesIncr()
	defer stats.BackfillRoutinesDecr()

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := r.db.TikTokArchivesMissingSubtitles(ctx, r.cfg.BackfillBatchSize)
		if err != nil {
			r.logger.Errorf("subtitle backfill: fetch batch: %v", err)
			return
		}
		if len(batch) == 0 {
			r.logger.Info("subtitle backfill: drained")
			return
		}

		for _, archive := range batch {
			r.backfillTikTokSubtitles(ctx, archive)
			if !sleepCtx(ctx, r.cfg.BackfillItemDelay) {
				return
			}
		}

		if !sleepCtx(ctx, r.cfg.BackfillBatchDelay) {
			return
		}
	}
}

// backfillTikTokSubtitles re-probes the extractor's live metadata for
// English subtitle URLs, downloads and uploads whichever it finds, and
// always leaves behind a marker artifact so the archive isn't retried
// next pass, win or lose.
func (r *Runner) backfillTikTokSubtitles(ctx context.Context, archive models.Archive) {
	defer r.markAttempted(ctx, archive.ID)

	link, err := r.db.GetLink(ctx, archive.LinkID)
	if err != nil {
		r.logger.Errorf("archive %d: fetch link: %v", archive.ID, err)
		return
	}

	subURL, ext, err := probeSubtitleURL(ctx, r.cfg, link.NormalizedURL)
	if err != nil {
		r.logger.Warnf("archive %d: no subtitle found: %v", archive.ID, err)
		return
	}

	data, err := fetchSubtitle(ctx, r.cfg, subURL)
	if err != nil {
		r.logger.Warnf("archive %d: download subtitle: %v", archive.ID, err)
		return
	}

	key := r.store.Key(link.ID, "media/subtitles.en."+ext)
	if err := r.store.Put(ctx, key, data, "text/vtt"); err != nil {
		r.logger.Errorf("archive %d: upload subtitle: %v", archive.ID, err)
		return
	}
	if _, err := r.db.InsertArtifact(ctx, &models.ArchiveArtifact{
		ArchiveID:   archive.ID,
		Kind:        models.ArtifactKindSubtitles,
		S3Key:       key,
		ContentType: nullString("text/vtt"),
		SizeBytes:   nullInt64(int64(len(data))),
	}); err != nil {
		r.logger.Errorf("archive %d: insert subtitle artifact: %v", archive.ID, err)
	}
}

func (r *Runner) markAttempted(ctx context.Context, archiveID int64) {
	if _, err := r.db.InsertArtifact(ctx, &models.ArchiveArtifact{
		ArchiveID: archiveID,
		Kind:      models.ArtifactKindSubtitleBackfillAttempt,
		S3Key:     "",
		SizeBytes: nullInt64(0),
	}); err != nil {
		r.logger.Errorf("archive %d: mark subtitle backfill attempted: %v", archiveID, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
