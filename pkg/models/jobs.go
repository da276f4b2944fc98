package models

import (
	"database/sql"
	"time"
)

// JobStatus is shared between CommentExtractionJob and ThreadArchiveJob.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed  JobStatus = "failed"
)

// CommentExtractionJob is a queue row consumed by the single-threaded
// comment worker (§4.6).
type CommentExtractionJob struct {
	ID           int64          `db:"id"`
	ArchiveID    int64          `db:"archive_id"`
	Status       JobStatus      `db:"status"`
	ProgressJSON sql.NullString `db:"progress_json"`
	MetadataJSON sql.NullString `db:"metadata_json"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// ThreadArchiveJob walks a single thread's feed, opening pending archives
// for every link it finds (§4.8).
type ThreadArchiveJob struct {
	ID             int64          `db:"id"`
	ThreadURL      string         `db:"thread_url"`
	Status         JobStatus      `db:"status"`
	PostsProcessed int            `db:"posts_processed"`
	LinksFound     int            `db:"links_found"`
	ErrorMessage   sql.NullString `db:"error_message"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// CommentExtractionSchema is the canonical comments.json document (§4.6).
type CommentExtractionSchema struct {
	Platform         string           `json:"platform"`
	ExtractionMethod string           `json:"extraction_method"`
	ExtractedAt      time.Time        `json:"extracted_at"`
	ContentURL       string           `json:"content_url"`
	ContentID        string           `json:"content_id"`
	Limited          bool             `json:"limited"`
	LimitApplied     int              `json:"limit_applied"`
	Stats            CommentStats     `json:"stats"`
	Comments         []Comment        `json:"comments"`
}

// CommentStats summarizes a comment extraction (§4.6).
type CommentStats struct {
	TotalComments     int `json:"total_comments"`
	ExtractedComments int `json:"extracted_comments"`
	TopLevelComments  int `json:"top_level_comments"`
	MaxDepth          int `json:"max_depth"`
}

// Comment is a single extracted comment, possibly nested (§4.6).
// ParentID is the literal string "root" for a top-level comment.
type Comment struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	AuthorID   string    `json:"author_id,omitempty"`
	Text       string    `json:"text"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Likes      int       `json:"likes"`
	IsPinned   bool      `json:"is_pinned"`
	IsCreator  bool      `json:"is_creator"`
	ParentID   string    `json:"parent_id"`
	Replies    []Comment `json:"replies"`
}
