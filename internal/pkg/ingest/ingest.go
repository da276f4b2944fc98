package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/stats"
)

// Loop is the §4.8 main ingestion loop: one poll of the global posts feed
// at a time, with an adaptive interval.
type Loop struct {
	cfg    *config.Config
	db     *db.DB
	logger *log.FieldedLogger
	cursor *cursorStore

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, database *db.DB) *Loop {
	return &Loop{
		cfg:    cfg,
		db:     database,
		logger: log.NewFieldedLogger(&log.Fields{"component": "ingest"}),
	}
}

func (l *Loop) Start(ctx context.Context) error {
	cursor, err := openCursorStore(l.cfg.IngestCursorPath)
	if err != nil {
		l.logger.Warnf("ingest cursor store disabled: %v", err)
	}
	l.cursor = cursor

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(runCtx)
	l.logger.Info("started")
	return nil
}

func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	l.cursor.close()
	l.logger.Info("stopped")
}

// run drives the adaptive poll interval: doubles up to PollIntervalMax on
// a sustained-empty poll, halves back toward PollIntervalMin on new
// content.
func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	interval := l.cursor.loadInterval(ctx, l.cfg.PollIntervalMin)
	for {
		if ctx.Err() != nil {
			return
		}

		newCount, err := l.poll(ctx)
		switch {
		case err != nil:
			l.logger.Errorf("poll: %v", err)
		case newCount == 0:
			interval *= 2
			if interval > l.cfg.PollIntervalMax {
				interval = l.cfg.PollIntervalMax
			}
			l.logger.Debugf("empty poll, backing off to %s (rolling rate %d/min)", interval, stats.PostsIngestedPerMinute())
		default:
			interval /= 2
			if interval < l.cfg.PollIntervalMin {
				interval = l.cfg.PollIntervalMin
			}
		}
		l.cursor.saveInterval(ctx, interval)

		if !sleepCtx(ctx, interval) {
			return
		}
	}
}

// poll fetches and processes one page set of the posts feed, returning the
// number of new posts found (§4.8 steps 1-5).
func (l *Loop) poll(ctx context.Context) (int, error) {
	if l.cfg.PostSourceURL == "" {
		return 0, nil
	}

	posts, err := FetchFeed(ctx, l.cfg, l.cfg.PostSourceURL)
	if err != nil {
		return 0, err
	}

	newCount := 0
	for _, p := range posts {
		result, err := ProcessPost(ctx, l.db, l.cfg, p)
		if err != nil {
			l.logger.Errorf("process post %s: %v", p.GUID, err)
			continue
		}
		if result.NewPost {
			newCount++
			stats.PostsIngestedIncr()
		}
		for i := 0; i < result.LinksFound; i++ {
			stats.LinksIngestedIncr()
		}
	}
	return newCount, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
