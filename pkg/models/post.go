package models

import (
	"database/sql"
	"time"
)

// Post is a forum post pulled from the post source (§3). It is mutable only
// via a hash-comparison update performed by the ingestion loop.
type Post struct {
	ID              int64     `db:"id"`
	GUID            string    `db:"guid"`
	ForumURL        string    `db:"forum_url"`
	Author          string    `db:"author"`
	Title           string    `db:"title"`
	Body            string    `db:"body"`
	ContentHash     string    `db:"content_hash"`
	PublishedAt     time.Time `db:"published_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Link is a third-party URL extracted from one or more posts (§3). Created
// once per normalized URL and never destroyed.
type Link struct {
	ID             int64          `db:"id"`
	OriginalURL    string         `db:"original_url"`
	NormalizedURL  string         `db:"normalized_url"`
	CanonicalURL   sql.NullString `db:"canonical_url"`
	Domain         string         `db:"domain"`
	FirstSeenAt    time.Time      `db:"first_seen_at"`
	LastArchivedAt sql.NullTime   `db:"last_archived_at"`
}

// LinkOccurrence is a (link, post) pair (§3). Unique on (link_id, post_id).
type LinkOccurrence struct {
	ID         int64          `db:"id"`
	LinkID     int64          `db:"link_id"`
	PostID     int64          `db:"post_id"`
	InQuote    bool           `db:"in_quote"`
	ContextSnip sql.NullString `db:"context_snippet"`
	CreatedAt  time.Time      `db:"created_at"`
}

// DomainExclusion gates the ingestion loop from opening archives for a
// given domain (§3). Managed entirely outside the core (web UI/CLI), the
// core only reads it.
type DomainExclusion struct {
	ID     int64  `db:"id"`
	Domain string `db:"domain"`
	Reason string `db:"reason"`
}
