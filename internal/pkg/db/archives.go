package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/forumarch/archiver/pkg/models"
)

// ErrNoArchiveForLink means invariant 2 already holds: no archive row
// exists yet for the given link.
var ErrNoArchiveForLink = errors.New("db: no archive for link")

// ErrStaleTransition is returned when the WHERE id = ? AND status = ?
// guard matched zero rows: a concurrent writer already moved the row.
var ErrStaleTransition = errors.New("db: archive status transition was stale")

// GetArchiveByLinkID enforces invariant 2: at most one archives row per
// link.
func (d *DB) GetArchiveByLinkID(ctx context.Context, linkID int64) (*models.Archive, error) {
	var a models.Archive
	err := d.GetContext(ctx, &a, `SELECT * FROM archives WHERE link_id = $1`, linkID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *DB) GetArchive(ctx context.Context, id int64) (*models.Archive, error) {
	var a models.Archive
	err := d.GetContext(ctx, &a, `SELECT * FROM archives WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// OpenPendingArchive creates the single archive row for a link, or returns
// the existing one (the ingestion loop calls this only after checking
// whether one exists, but the ON CONFLICT keeps it race-safe).
func (d *DB) OpenPendingArchive(ctx context.Context, linkID int64) (*models.Archive, error) {
	var a models.Archive
	err := d.GetContext(ctx, &a, `
		INSERT INTO archives (link_id, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, 0, now(), now())
		ON CONFLICT (link_id) DO UPDATE SET link_id = EXCLUDED.link_id
		RETURNING *`,
		linkID, models.ArchiveStatusPending,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ReopenForReArchive implements the complete -> pending user-initiated
// transition (§4.7). Artifacts are left in place.
func (d *DB) ReopenForReArchive(ctx context.Context, archiveID int64) error {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, retry_count = 0, next_retry_at = NULL,
			error_message = NULL, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.ArchiveStatusPending, archiveID, models.ArchiveStatusComplete,
	)
	return checkOneRow(res, err)
}

// TransitionToProcessing implements pending -> processing.
func (d *DB) TransitionToProcessing(ctx context.Context, archiveID int64) error {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.ArchiveStatusProcessing, archiveID, models.ArchiveStatusPending,
	)
	return checkOneRow(res, err)
}

// CompleteArchiveResult carries everything §4.5 step 8 populates on
// processing -> complete.
type CompleteArchiveResult struct {
	Title         sql.NullString
	Author        sql.NullString
	Text          sql.NullString
	ContentType   sql.NullString
	PrimaryKey    sql.NullString
	ThumbnailKey  sql.NullString
	IPFSCid       sql.NullString
	IsNSFW        sql.NullBool
	NSFWSource    sql.NullString
	TranscriptTxt sql.NullString
}

// TransitionToComplete implements processing -> complete, clearing the
// progress JSON and error message (invariant 3).
func (d *DB) TransitionToComplete(ctx context.Context, archiveID int64, r CompleteArchiveResult) error {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET
			status = $1, completed_at = now(), progress_json = NULL, error_message = NULL,
			title = $2, author = $3, text = $4, content_type = $5,
			primary_key = $6, thumbnail_key = $7, ipfs_cid = $8,
			is_nsfw = $9, nsfw_source = $10, transcript_text = $11,
			updated_at = now()
		WHERE id = $12 AND status = $13`,
		models.ArchiveStatusComplete,
		r.Title, r.Author, r.Text, r.ContentType, r.PrimaryKey, r.ThumbnailKey,
		r.IPFSCid, r.IsNSFW, r.NSFWSource, r.TranscriptTxt,
		archiveID, models.ArchiveStatusProcessing,
	)
	return checkOneRow(res, err)
}

// TransitionToFailed implements processing -> failed, incrementing
// retry_count and setting next_retry_at from the bounded backoff schedule.
func (d *DB) TransitionToFailed(ctx context.Context, archiveID int64, errMsg string, backoff []int) error {
	var current models.Archive
	if err := d.GetContext(ctx, &current, `SELECT * FROM archives WHERE id = $1`, archiveID); err != nil {
		return err
	}
	nextRetry := nextRetryAt(current.RetryCount+1, backoff)

	res, err := d.ExecContext(ctx, `
		UPDATE archives SET
			status = $1, retry_count = retry_count + 1, next_retry_at = $2,
			error_message = $3, progress_json = NULL, updated_at = now()
		WHERE id = $4 AND status = $5`,
		models.ArchiveStatusFailed, nextRetry, errMsg, archiveID, models.ArchiveStatusProcessing,
	)
	return checkOneRow(res, err)
}

// TransitionToSkipped implements either processing -> skipped (permanent
// failure predicate matched) or failed -> skipped (retry cap exceeded).
func (d *DB) TransitionToSkipped(ctx context.Context, archiveID int64, from models.ArchiveStatus, errMsg string) error {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, error_message = $2, next_retry_at = NULL,
			progress_json = NULL, updated_at = now()
		WHERE id = $3 AND status = $4`,
		models.ArchiveStatusSkipped, errMsg, archiveID, from,
	)
	return checkOneRow(res, err)
}

// ResetFailedToPending implements failed -> pending (retry scheduler).
func (d *DB) ResetFailedToPending(ctx context.Context, archiveID int64) error {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, next_retry_at = NULL, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.ArchiveStatusPending, archiveID, models.ArchiveStatusFailed,
	)
	return checkOneRow(res, err)
}

// ResetStuckProcessingToPending is the startup-recovery step (§4.5):
// archives interrupted mid-run are reclaimed.
func (d *DB) ResetStuckProcessingToPending(ctx context.Context) (int64, error) {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, updated_at = now()
		WHERE status = $2`,
		models.ArchiveStatusPending, models.ArchiveStatusProcessing,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetSameDayFailedToPending is the other half of startup recovery: it
// gives today's failed-but-retryable archives another immediate shot
// instead of waiting out next_retry_at across a restart.
func (d *DB) ResetSameDayFailedToPending(ctx context.Context) (int64, error) {
	res, err := d.ExecContext(ctx, `
		UPDATE archives SET status = $1, next_retry_at = NULL, updated_at = now()
		WHERE status = $2 AND retry_count < $3 AND updated_at >= date_trunc('day', now())`,
		models.ArchiveStatusPending, models.ArchiveStatusFailed, models.MaxRetries,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FetchPendingArchives fetches up to limit pending archives for the main
// loop's step 2 (§4.5).
func (d *DB) FetchPendingArchives(ctx context.Context, limit int) ([]models.Archive, error) {
	var rows []models.Archive
	err := d.SelectContext(ctx, &rows, `
		SELECT * FROM archives WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		models.ArchiveStatusPending, limit,
	)
	return rows, err
}

// FetchRetryEligibleArchives implements §4.5 step 1: failed rows below the
// retry cap whose next_retry_at has been reached.
func (d *DB) FetchRetryEligibleArchives(ctx context.Context, limit int) ([]models.Archive, error) {
	var rows []models.Archive
	err := d.SelectContext(ctx, &rows, `
		SELECT * FROM archives
		WHERE status = $1 AND retry_count < $2 AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY next_retry_at ASC NULLS FIRST
		LIMIT $3`,
		models.ArchiveStatusFailed, models.MaxRetries, limit,
	)
	return rows, err
}

// FetchOverCapFailedArchives implements the "over the cap -> skipped" half
// of §4.5 step 1.
func (d *DB) FetchOverCapFailedArchives(ctx context.Context, limit int) ([]models.Archive, error) {
	var rows []models.Archive
	err := d.SelectContext(ctx, &rows, `
		SELECT * FROM archives WHERE status = $1 AND retry_count >= $2 LIMIT $3`,
		models.ArchiveStatusFailed, models.MaxRetries, limit,
	)
	return rows, err
}

// SetArchiveVideoID records the platform video id a handler resolved,
// independent of the complete transition so a later re-archive can reuse
// it for the canonical-blob probe (§4.5 step 2) even if it was set on an
// earlier attempt.
func (d *DB) SetArchiveVideoID(ctx context.Context, archiveID int64, videoID string) error {
	_, err := d.ExecContext(ctx, `UPDATE archives SET video_id = $1, updated_at = now() WHERE id = $2`, videoID, archiveID)
	return err
}

// UpdateProgress writes the §6 progress JSON onto the archive row. Callers
// are responsible for the "at most once every 2s" throttle.
func (d *DB) UpdateProgress(ctx context.Context, archiveID int64, progressJSON string) error {
	_, err := d.ExecContext(ctx, `UPDATE archives SET progress_json = $1, updated_at = now() WHERE id = $2`, progressJSON, archiveID)
	return err
}

func checkOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// nextRetryAt applies the bounded, monotone backoff schedule from config
// (§4.7: "a specific schedule is not load-bearing provided it is bounded
// and monotone in retry_count").
func nextRetryAt(retryCount int, scheduleMinutes []int) time.Time {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(scheduleMinutes) {
		idx = len(scheduleMinutes) - 1
	}
	return time.Now().Add(time.Duration(scheduleMinutes[idx]) * time.Minute)
}
