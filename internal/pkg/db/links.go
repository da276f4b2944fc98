package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forumarch/archiver/pkg/models"
)

// GetLinkByNormalizedURL enforces invariant 1: a normalized URL appears at
// most once in links.
func (d *DB) GetLinkByNormalizedURL(ctx context.Context, normalized string) (*models.Link, error) {
	var l models.Link
	err := d.GetContext(ctx, &l, `SELECT * FROM links WHERE normalized_url = $1`, normalized)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertLink returns the existing link for normalized, creating it when
// absent. Links are never destroyed once created.
func (d *DB) UpsertLink(ctx context.Context, originalURL, normalizedURL, domain string) (*models.Link, bool, error) {
	existing, err := d.GetLinkByNormalizedURL(ctx, normalizedURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	var l models.Link
	err = d.GetContext(ctx, &l, `
		INSERT INTO links (original_url, normalized_url, domain, first_seen_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (normalized_url) DO UPDATE SET normalized_url = EXCLUDED.normalized_url
		RETURNING *`,
		originalURL, normalizedURL, domain,
	)
	if err != nil {
		return nil, false, err
	}
	return &l, true, nil
}

// GetLink fetches a link by its primary key, used by the worker pool to
// resolve the link an archive belongs to before dispatching a handler.
func (d *DB) GetLink(ctx context.Context, id int64) (*models.Link, error) {
	var l models.Link
	err := d.GetContext(ctx, &l, `SELECT * FROM links WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// HasArchive reports whether a link already owns an archive row
// (invariant 8's "no archive row exists yet" check).
func (d *DB) HasArchive(ctx context.Context, linkID int64) (bool, error) {
	var n int
	err := d.GetContext(ctx, &n, `SELECT count(*) FROM archives WHERE link_id = $1`, linkID)
	return n > 0, err
}

// HasNonQuoteOccurrence implements invariant 8: a quote-only mention is
// archived only if no non-quote occurrence exists yet.
func (d *DB) HasNonQuoteOccurrence(ctx context.Context, linkID int64) (bool, error) {
	var n int
	err := d.GetContext(ctx, &n, `SELECT count(*) FROM link_occurrences WHERE link_id = $1 AND in_quote = false`, linkID)
	return n > 0, err
}

// UpsertOccurrence is a no-op on a (link_id, post_id) conflict (unique per
// §3).
func (d *DB) UpsertOccurrence(ctx context.Context, o *models.LinkOccurrence) error {
	_, err := d.ExecContext(ctx, `
		INSERT INTO link_occurrences (link_id, post_id, in_quote, context_snippet, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (link_id, post_id) DO NOTHING`,
		o.LinkID, o.PostID, o.InQuote, o.ContextSnip,
	)
	return err
}

// SetLinkCanonicalURL records the handler-reported final_url (§4.5 step 8).
func (d *DB) SetLinkCanonicalURL(ctx context.Context, linkID int64, canonicalURL string) error {
	_, err := d.ExecContext(ctx, `UPDATE links SET canonical_url = $1 WHERE id = $2`, canonicalURL, linkID)
	return err
}

// TouchLinkArchivedAt updates last_archived_at on archive completion.
func (d *DB) TouchLinkArchivedAt(ctx context.Context, linkID int64) error {
	_, err := d.ExecContext(ctx, `UPDATE links SET last_archived_at = now() WHERE id = $1`, linkID)
	return err
}

// IsDomainExcluded checks the exclusion list maintained outside the core.
func (d *DB) IsDomainExcluded(ctx context.Context, domain string) (bool, error) {
	var n int
	err := d.GetContext(ctx, &n, `SELECT count(*) FROM domain_exclusions WHERE domain = $1`, domain)
	return n > 0, err
}
