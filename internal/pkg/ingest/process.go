package ingest

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/urlnorm"
	"github.com/forumarch/archiver/pkg/models"
)

// ProcessResult summarizes what ProcessPost did to one feed entry. The
// thread worker folds LinksFound into its job row's progress counters.
type ProcessResult struct {
	NewPost        bool
	LinksFound     int
	ArchivesOpened int
}

// ProcessPost implements §4.8 steps 2-5 for a single feed entry: hash and
// upsert the post, extract its links, and open a pending archive wherever
// invariant 8 allows it. Shared verbatim by the main ingestion loop and
// the thread worker, scoped to whichever feed the caller fetched.
func ProcessPost(ctx context.Context, database *db.DB, cfg *config.Config, raw RawPost) (*ProcessResult, error) {
	post, isNew, err := database.UpsertPost(ctx, &models.Post{
		GUID:        raw.GUID,
		ForumURL:    raw.ForumURL,
		Author:      raw.Author,
		Title:       raw.Title,
		Body:        raw.Body,
		ContentHash: contentHash(raw.Body),
		PublishedAt: raw.PublishedAt,
	})
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{NewPost: isNew}

	for _, link := range ExtractLinks(raw.Body) {
		opened, err := processLink(ctx, database, cfg, post.ID, link)
		if err != nil {
			return result, err
		}
		result.LinksFound++
		if opened {
			result.ArchivesOpened++
		}
	}
	return result, nil
}

func processLink(ctx context.Context, database *db.DB, cfg *config.Config, postID int64, link ExtractedLink) (bool, error) {
	normalized := urlnorm.Normalize(link.URL)
	if !isHTTP(normalized) {
		return false, nil
	}
	domain := urlnorm.Domain(normalized)
	if domain == "" || isListedDomain(cfg.SelfForumDomains, domain) || isListedDomain(cfg.SkipDomains, domain) {
		return false, nil
	}
	excluded, err := database.IsDomainExcluded(ctx, domain)
	if err != nil {
		return false, err
	}
	if excluded {
		return false, nil
	}

	l, _, err := database.UpsertLink(ctx, link.URL, normalized, domain)
	if err != nil {
		return false, err
	}

	if err := database.UpsertOccurrence(ctx, &models.LinkOccurrence{
		LinkID:      l.ID,
		PostID:      postID,
		InQuote:     link.InQuote,
		ContextSnip: nullString(link.Context),
	}); err != nil {
		return false, err
	}

	return maybeOpenArchive(ctx, database, l.ID, link.InQuote)
}

// maybeOpenArchive implements invariant 8: a quote-only mention opens an
// archive only if no archive and no non-quote occurrence exist yet.
func maybeOpenArchive(ctx context.Context, database *db.DB, linkID int64, inQuote bool) (bool, error) {
	hasArchive, err := database.HasArchive(ctx, linkID)
	if err != nil {
		return false, err
	}
	if hasArchive {
		return false, nil
	}
	if inQuote {
		hasOccurrence, err := database.HasNonQuoteOccurrence(ctx, linkID)
		if err != nil {
			return false, err
		}
		if hasOccurrence {
			return false, nil
		}
	}
	if _, err := database.OpenPendingArchive(ctx, linkID); err != nil {
		return false, err
	}
	return true, nil
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func isListedDomain(list []string, domain string) bool {
	for _, d := range list {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

func contentHash(body string) string {
	sum := xxh3.Hash([]byte(body))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return hex.EncodeToString(buf[:])
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
