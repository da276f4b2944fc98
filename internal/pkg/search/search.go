// Package search indexes completed archives into Elasticsearch so they
// are browsable beyond the bare transcript_text column (§1's
// "searchable"). Indexing is best-effort: a failure here never fails the
// archive pipeline.
package search

import (
	"context"
	"strconv"

	"github.com/olivere/elastic/v7"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/pkg/models"
)

// Document is the indexed shape of a completed archive.
type Document struct {
	ArchiveID      int64  `json:"archive_id"`
	LinkID         int64  `json:"link_id"`
	URL            string `json:"url"`
	Domain         string `json:"domain"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	Text           string `json:"text"`
	TranscriptText string `json:"transcript_text"`
	ContentType    string `json:"content_type"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// Indexer wraps an elastic.Client scoped to one index name.
type Indexer struct {
	client *elastic.Client
	index  string
	logger *log.FieldedLogger
}

// New builds an Indexer, or returns (nil, nil) when no Elasticsearch URLs
// are configured -- indexing is an optional capability, not a hard
// dependency of the archive pipeline.
func New(cfg *config.Config) (*Indexer, error) {
	if len(cfg.ElasticSearchURLs) == 0 {
		return nil, nil
	}

	client, err := elastic.NewClient(
		elastic.SetURL(cfg.ElasticSearchURLs...),
		elastic.SetBasicAuth(cfg.ElasticSearchUsername, cfg.ElasticSearchPassword),
		elastic.SetSniff(false),
	)
	if err != nil {
		return nil, err
	}

	return &Indexer{
		client: client,
		index:  cfg.ElasticSearchIndexPrefix + "-archives",
		logger: log.NewFieldedLogger(&log.Fields{"component": "search"}),
	}, nil
}

// Index upserts one archive's document. Called on TransitionToComplete.
func (idx *Indexer) Index(ctx context.Context, archive *models.Archive, link *models.Link) {
	if idx == nil {
		return
	}

	doc := Document{
		ArchiveID:      archive.ID,
		LinkID:         link.ID,
		URL:            link.NormalizedURL,
		Domain:         link.Domain,
		Title:          archive.Title.String,
		Author:         archive.Author.String,
		Text:           archive.Text.String,
		TranscriptText: archive.TranscriptTxt.String,
		ContentType:    archive.ContentType.String,
	}
	if archive.CompletedAt.Valid {
		doc.CompletedAt = archive.CompletedAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}

	_, err := idx.client.Index().
		Index(idx.index).
		Id(archiveDocID(archive.ID)).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		idx.logger.Warnf("index archive %d: %v", archive.ID, err)
	}
}

func archiveDocID(archiveID int64) string {
	return "archive-" + strconv.FormatInt(archiveID, 10)
}
