// Command archiver is the forum link archiver's single long-running
// process: it starts the archive worker pool, the comment and thread
// workers, the two backfill loops, the post-ingestion loop, and the
// admin API, then blocks until told to shut down.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/forumarch/archiver/internal/pkg/adminapi"
	"github.com/forumarch/archiver/internal/pkg/archiver"
	"github.com/forumarch/archiver/internal/pkg/backfill"
	"github.com/forumarch/archiver/internal/pkg/commentworker"
	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	_ "github.com/forumarch/archiver/internal/pkg/handlers"
	"github.com/forumarch/archiver/internal/pkg/ingest"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/objectstore"
	"github.com/forumarch/archiver/internal/pkg/ratelimiter"
	"github.com/forumarch/archiver/internal/pkg/render"
	"github.com/forumarch/archiver/internal/pkg/search"
	"github.com/forumarch/archiver/internal/pkg/threadworker"
	"github.com/forumarch/archiver/internal/pkg/tracing"
)

func main() {
	app := &cli.App{
		Name:  "archiver",
		Usage: "run the forum link archiver",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file overlaying the built-in defaults"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.Set(cfg)

	log.Start()
	defer log.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, "archiver")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	store, err := objectstore.New(ctx, objectstore.Options{
		Endpoint: cfg.S3Endpoint,
		Region:   cfg.S3Region,
		Bucket:   cfg.S3Bucket,
		Prefix:   cfg.S3Prefix,
		KeyID:    cfg.S3KeyID,
		Secret:   cfg.S3Secret,
	})
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	renderMgr := render.NewManager(30 * time.Minute)
	if err := renderMgr.Start(ctx); err != nil {
		return fmt.Errorf("start render manager: %w", err)
	}
	render.Set(renderMgr)
	defer renderMgr.Close()

	limiter := ratelimiter.New(cfg.PerDomainConcurrency)

	indexer, err := search.New(cfg)
	if err != nil {
		return fmt.Errorf("open search indexer: %w", err)
	}

	pool := archiver.New(cfg, database, store, limiter)
	if indexer != nil {
		pool.SetSearchIndexer(indexer)
	}
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start archiver pool: %w", err)
	}
	defer pool.Stop()

	var comments *commentworker.Worker
	if cfg.CommentsEnabled {
		comments = commentworker.New(cfg, database, store)
		if err := comments.Start(ctx); err != nil {
			return fmt.Errorf("start comment worker: %w", err)
		}
		defer comments.Stop()
	}

	threads := threadworker.New(cfg, database)
	if err := threads.Start(ctx); err != nil {
		return fmt.Errorf("start thread worker: %w", err)
	}
	defer threads.Stop()

	var ingestLoop *ingest.Loop
	if cfg.PostSourceURL != "" {
		ingestLoop = ingest.New(cfg, database)
		if err := ingestLoop.Start(ctx); err != nil {
			return fmt.Errorf("start ingestion loop: %w", err)
		}
		defer ingestLoop.Stop()
	}

	backfillDone := make(chan struct{})
	go runBackfillLoops(ctx, backfill.New(cfg, database, store), cfg.BackfillBatchDelay, backfillDone)
	defer func() { <-backfillDone }()

	admin := adminapi.New(cfg, database)
	if err := admin.Start(ctx); err != nil {
		return fmt.Errorf("start admin api: %w", err)
	}
	defer admin.Stop()

	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down")
	return nil
}

// runBackfillLoops re-invokes each backfill batch drain on its own
// interval, since RunTranscriptText/RunTikTokSubtitles each return as
// soon as their backlog is empty rather than polling forever.
func runBackfillLoops(ctx context.Context, runner *backfill.Runner, delay time.Duration, done chan<- struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		backfillTicker(ctx, delay, runner.RunTranscriptText)
	}()
	go func() {
		defer wg.Done()
		backfillTicker(ctx, delay, runner.RunTikTokSubtitles)
	}()

	wg.Wait()
}

func backfillTicker(ctx context.Context, delay time.Duration, drain func(context.Context)) {
	for {
		drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// loadConfig starts from config.Default and overlays a YAML file when
// path is non-empty, matching the teacher's env-first-then-file
// layering for its own Crawl config.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
