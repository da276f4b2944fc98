// Package models defines the entities shared across the archival pipeline:
// posts, links, archives, artifacts and the supplementary job queues. They
// are plain structs so that both the db layer and the pipeline stages can
// pass them around without an import cycle.
package models

import (
	"database/sql"
	"time"
)

// ArchiveStatus is the state of the §4.7 archive state machine.
type ArchiveStatus string

const (
	ArchiveStatusPending    ArchiveStatus = "pending"
	ArchiveStatusProcessing ArchiveStatus = "processing"
	ArchiveStatusComplete   ArchiveStatus = "complete"
	ArchiveStatusFailed     ArchiveStatus = "failed"
	ArchiveStatusSkipped    ArchiveStatus = "skipped"
)

func (s ArchiveStatus) String() string { return string(s) }

// MaxRetries is the retry budget before a failed archive is permanently
// skipped (§4.7).
const MaxRetries = 3

// NSFWSource enumerates where an NSFW determination came from.
type NSFWSource string

const (
	NSFWSourceAPI       NSFWSource = "api"
	NSFWSourceMetadata  NSFWSource = "metadata"
	NSFWSourceSubreddit NSFWSource = "subreddit"
	NSFWSourceHTML      NSFWSource = "html"
)

// Archive is the durable capture record for a Link (§3).
type Archive struct {
	ID            int64          `db:"id"`
	LinkID        int64          `db:"link_id"`
	Status        ArchiveStatus  `db:"status"`
	RetryCount    int            `db:"retry_count"`
	NextRetryAt   sql.NullTime   `db:"next_retry_at"`
	CompletedAt   sql.NullTime   `db:"completed_at"`
	Title         sql.NullString `db:"title"`
	Author        sql.NullString `db:"author"`
	Text          sql.NullString `db:"text"`
	ContentType   sql.NullString `db:"content_type"`
	PrimaryKey    sql.NullString `db:"primary_key"`
	ThumbnailKey  sql.NullString `db:"thumbnail_key"`
	IPFSCid       sql.NullString `db:"ipfs_cid"`
	IsNSFW        sql.NullBool   `db:"is_nsfw"`
	NSFWSource    sql.NullString `db:"nsfw_source"`
	TranscriptTxt sql.NullString `db:"transcript_text"`
	ProgressJSON  sql.NullString `db:"progress_json"`
	ErrorMessage  sql.NullString `db:"error_message"`
	VideoID       sql.NullString `db:"video_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// ArtifactKind enumerates the kinds of files an archive can own (§3).
type ArtifactKind string

const (
	ArtifactKindVideo                    ArtifactKind = "video"
	ArtifactKindImage                    ArtifactKind = "image"
	ArtifactKindGallery                  ArtifactKind = "gallery"
	ArtifactKindRawHTML                  ArtifactKind = "raw_html"
	ArtifactKindViewHTML                 ArtifactKind = "view_html"
	ArtifactKindCompleteHTML             ArtifactKind = "complete_html"
	ArtifactKindScreenshot               ArtifactKind = "screenshot"
	ArtifactKindPDF                      ArtifactKind = "pdf"
	ArtifactKindMHTML                    ArtifactKind = "mhtml"
	ArtifactKindThumb                    ArtifactKind = "thumb"
	ArtifactKindMetadata                 ArtifactKind = "metadata"
	ArtifactKindSubtitles                ArtifactKind = "subtitles"
	ArtifactKindTranscript               ArtifactKind = "transcript"
	ArtifactKindComments                 ArtifactKind = "comments"
	ArtifactKindSubtitleBackfillAttempt  ArtifactKind = "subtitle_backfill_attempted"
)

// ArchiveArtifact is a single uploaded file belonging to an Archive (§3).
type ArchiveArtifact struct {
	ID             int64          `db:"id"`
	ArchiveID      int64          `db:"archive_id"`
	Kind           ArtifactKind   `db:"kind"`
	S3Key          string         `db:"s3_key"`
	ContentType    sql.NullString `db:"content_type"`
	SizeBytes      sql.NullInt64  `db:"size_bytes"`
	PerceptualHash sql.NullString `db:"perceptual_hash"`
	DuplicateOf    sql.NullInt64  `db:"duplicate_of"`
	MetadataJSON   sql.NullString `db:"metadata_json"`
	CreatedAt      time.Time      `db:"created_at"`
}

// ArchiveProgress is the JSON shape written onto the archive row during
// download (§6). Percent is cleared (zeroed struct) on completion.
type ArchiveProgress struct {
	Percent     float64 `json:"percent"`
	Speed       string  `json:"speed,omitempty"`
	ETA         string  `json:"eta,omitempty"`
	Downloaded  string  `json:"downloaded,omitempty"`
	TotalSize   string  `json:"total_size,omitempty"`
}

// CommentProgress is the alternate progress shape used by the comment
// worker while it extracts comments for an archive (§6).
type CommentProgress struct {
	CommentsDownloaded int    `json:"comments_downloaded"`
	EstimatedTotal     int    `json:"estimated_total"`
	Stage              string `json:"stage"`
}
