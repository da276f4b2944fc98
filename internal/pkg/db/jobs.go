package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forumarch/archiver/pkg/models"
)

// FetchPendingCommentJob polls for one pending job (§4.6 step 1). Returns
// sql.ErrNoRows when the queue is empty.
func (d *DB) FetchPendingCommentJob(ctx context.Context) (*models.CommentExtractionJob, error) {
	var j models.CommentExtractionJob
	err := d.GetContext(ctx, &j, `
		SELECT * FROM comment_extraction_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT 1`,
		models.JobStatusPending,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (d *DB) TransitionCommentJob(ctx context.Context, id int64, from, to models.JobStatus) error {
	res, err := d.ExecContext(ctx, `
		UPDATE comment_extraction_jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	return checkOneRow(res, err)
}

func (d *DB) FailCommentJob(ctx context.Context, id int64, errMsg string) error {
	_, err := d.ExecContext(ctx, `
		UPDATE comment_extraction_jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		models.JobStatusFailed, errMsg, id,
	)
	return err
}

func (d *DB) CompleteCommentJob(ctx context.Context, id int64, metadataJSON string) error {
	res, err := d.ExecContext(ctx, `
		UPDATE comment_extraction_jobs SET status = $1, metadata_json = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		models.JobStatusComplete, metadataJSON, id, models.JobStatusRunning,
	)
	return checkOneRow(res, err)
}

func (d *DB) UpdateCommentJobProgress(ctx context.Context, id int64, progressJSON string) error {
	_, err := d.ExecContext(ctx, `UPDATE comment_extraction_jobs SET progress_json = $1, updated_at = now() WHERE id = $2`, progressJSON, id)
	return err
}

// EnqueueCommentJob opens a pending job for an archive if none exists
// yet. Whether comments are enabled is checked by the caller.
func (d *DB) EnqueueCommentJob(ctx context.Context, archiveID int64) error {
	_, err := d.ExecContext(ctx, `
		INSERT INTO comment_extraction_jobs (archive_id, status, created_at, updated_at)
		SELECT $1, $2, now(), now()
		WHERE NOT EXISTS (SELECT 1 FROM comment_extraction_jobs WHERE archive_id = $1)`,
		archiveID, models.JobStatusPending,
	)
	return err
}

// FetchPendingThreadJob polls for one pending thread-archival job. The
// thread worker, like the comment worker, runs strictly one at a time
// (§5).
func (d *DB) FetchPendingThreadJob(ctx context.Context) (*models.ThreadArchiveJob, error) {
	var j models.ThreadArchiveJob
	err := d.GetContext(ctx, &j, `
		SELECT * FROM thread_archive_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT 1`,
		models.JobStatusPending,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (d *DB) TransitionThreadJob(ctx context.Context, id int64, from, to models.JobStatus) error {
	res, err := d.ExecContext(ctx, `
		UPDATE thread_archive_jobs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	return checkOneRow(res, err)
}

func (d *DB) UpdateThreadJobProgress(ctx context.Context, id int64, postsProcessed, linksFound int) error {
	_, err := d.ExecContext(ctx, `
		UPDATE thread_archive_jobs SET posts_processed = $1, links_found = $2, updated_at = now() WHERE id = $3`,
		postsProcessed, linksFound, id,
	)
	return err
}

func (d *DB) FailThreadJob(ctx context.Context, id int64, errMsg string) error {
	_, err := d.ExecContext(ctx, `
		UPDATE thread_archive_jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		models.JobStatusFailed, errMsg, id,
	)
	return err
}

// IsNoRows is a thin helper so callers outside this package don't need to
// import database/sql just to compare errors.
func IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
