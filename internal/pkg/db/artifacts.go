package db

import (
	"context"

	"github.com/forumarch/archiver/pkg/models"
)

// InsertArtifact inserts an artifact row (artifacts are insert-only per
// §3 lifecycle summary).
func (d *DB) InsertArtifact(ctx context.Context, a *models.ArchiveArtifact) (*models.ArchiveArtifact, error) {
	var out models.ArchiveArtifact
	err := d.GetContext(ctx, &out, `
		INSERT INTO archive_artifacts
			(archive_id, kind, s3_key, content_type, size_bytes, perceptual_hash, duplicate_of, metadata_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING *`,
		a.ArchiveID, a.Kind, a.S3Key, a.ContentType, a.SizeBytes, a.PerceptualHash, a.DuplicateOf, a.MetadataJSON,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindArtifactByPerceptualHash implements the dedup fast path (§4.9):
// exact hash lookup across all artifacts, not scoped to one archive.
func (d *DB) FindArtifactByPerceptualHash(ctx context.Context, hash string) (*models.ArchiveArtifact, error) {
	var a models.ArchiveArtifact
	err := d.GetContext(ctx, &a, `
		SELECT * FROM archive_artifacts
		WHERE perceptual_hash = $1 AND duplicate_of IS NULL
		ORDER BY created_at ASC LIMIT 1`,
		hash,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ArtifactsForArchive lists every artifact row belonging to an archive.
func (d *DB) ArtifactsForArchive(ctx context.Context, archiveID int64) ([]models.ArchiveArtifact, error) {
	var rows []models.ArchiveArtifact
	err := d.SelectContext(ctx, &rows, `SELECT * FROM archive_artifacts WHERE archive_id = $1 ORDER BY created_at ASC`, archiveID)
	return rows, err
}

// HasArtifactOfKind reports whether an archive already owns an artifact of
// the given kind. The backfill loops do not call it; their batch queries
// (ArchivesMissingTranscriptText, TikTokArchivesMissingSubtitles) filter
// on artifact kinds in SQL instead.
func (d *DB) HasArtifactOfKind(ctx context.Context, archiveID int64, kind models.ArtifactKind) (bool, error) {
	var n int
	err := d.GetContext(ctx, &n, `SELECT count(*) FROM archive_artifacts WHERE archive_id = $1 AND kind = $2`, archiveID, kind)
	return n > 0, err
}

// ArchivesMissingTranscriptText finds archives with a transcript artifact
// but an empty transcript_text column (§4.11 transcript backfill).
func (d *DB) ArchivesMissingTranscriptText(ctx context.Context, limit int) ([]models.Archive, error) {
	var rows []models.Archive
	err := d.SelectContext(ctx, &rows, `
		SELECT a.* FROM archives a
		JOIN archive_artifacts art ON art.archive_id = a.id AND art.kind = $1
		WHERE a.transcript_text IS NULL OR a.transcript_text = ''
		LIMIT $2`,
		models.ArtifactKindTranscript, limit,
	)
	return rows, err
}

// SetTranscriptText backfills archives.transcript_text from a fetched
// blob.
func (d *DB) SetTranscriptText(ctx context.Context, archiveID int64, text string) error {
	_, err := d.ExecContext(ctx, `UPDATE archives SET transcript_text = $1, updated_at = now() WHERE id = $2`, text, archiveID)
	return err
}

// TikTokArchivesMissingSubtitles finds TikTok archives with neither a
// subtitle artifact nor an attempted-marker row (§4.11 subtitle backfill).
func (d *DB) TikTokArchivesMissingSubtitles(ctx context.Context, limit int) ([]models.Archive, error) {
	var rows []models.Archive
	err := d.SelectContext(ctx, &rows, `
		SELECT a.* FROM archives a
		JOIN links l ON l.id = a.link_id
		WHERE l.domain IN ('tiktok.com', 'www.tiktok.com', 'vm.tiktok.com')
		  AND a.status = $1
		  AND NOT EXISTS (SELECT 1 FROM archive_artifacts WHERE archive_id = a.id AND kind = $2)
		  AND NOT EXISTS (SELECT 1 FROM archive_artifacts WHERE archive_id = a.id AND kind = $3)
		LIMIT $4`,
		models.ArchiveStatusComplete, models.ArtifactKindSubtitles, models.ArtifactKindSubtitleBackfillAttempt, limit,
	)
	return rows, err
}
