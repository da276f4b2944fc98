package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forumarch/archiver/pkg/models"
)

// GetPostByGUID returns the existing post for guid, or sql.ErrNoRows.
func (d *DB) GetPostByGUID(ctx context.Context, guid string) (*models.Post, error) {
	var p models.Post
	err := d.GetContext(ctx, &p, `SELECT * FROM posts WHERE guid = $1`, guid)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPost inserts a new post or, on a guid conflict, updates body and
// content_hash when the hash differs (§4.8 step 2). Returns the row and
// whether it was newly created.
func (d *DB) UpsertPost(ctx context.Context, p *models.Post) (*models.Post, bool, error) {
	existing, err := d.GetPostByGUID(ctx, p.GUID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if errors.Is(err, sql.ErrNoRows) {
		var out models.Post
		err := d.GetContext(ctx, &out, `
			INSERT INTO posts (guid, forum_url, author, title, body, content_hash, published_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			RETURNING *`,
			p.GUID, p.ForumURL, p.Author, p.Title, p.Body, p.ContentHash, p.PublishedAt,
		)
		if err != nil {
			return nil, false, err
		}
		return &out, true, nil
	}

	if existing.ContentHash == p.ContentHash {
		return existing, false, nil
	}

	var out models.Post
	err = d.GetContext(ctx, &out, `
		UPDATE posts SET body = $1, content_hash = $2, title = $3, updated_at = now()
		WHERE id = $4
		RETURNING *`,
		p.Body, p.ContentHash, p.Title, existing.ID,
	)
	if err != nil {
		return nil, false, err
	}
	return &out, false, nil
}
