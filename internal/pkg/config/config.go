// Package config holds the validated configuration consumed by every stage
// of the archival pipeline. Loading it from a YAML file is an outer,
// ambient concern (see loadConfig in cmd/archiver); pipeline stages receive
// the *Config through their constructors, and Get serves the same value to
// package-level code such as the logger.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
)

// Config is the fully validated set of knobs the pipeline consumes (§6).
type Config struct {
	// Concurrency
	WorkerConcurrency          int
	PerDomainConcurrency       int
	ExtraFileUploadConcurrency int

	// Filesystem
	WorkDir         string
	CookiesFilePath string

	// Object store
	S3Endpoint string
	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3KeyID    string
	S3Secret   string

	// Relational store
	DatabaseDSN string

	// Dedup
	DedupEnabled             bool
	DedupSimilarityThreshold int

	// YouTube / general video handler
	YoutubeMaxDurationSeconds    int
	YoutubeDownloadTimeoutSeconds int

	// Comments
	CommentsEnabled          bool
	CommentsMaxCount         int
	CommentsRequestDelayMs   int

	// Feature flags
	ScreenshotsEnabled bool
	PDFEnabled         bool
	MHTMLEnabled       bool
	IPFSEnabled        bool
	IPFSAPIAddr        string
	SearchEnabled      bool
	ElasticSearchURLs  []string
	ElasticSearchUsername string
	ElasticSearchPassword string
	ElasticSearchIndexPrefix string

	// Ingestion loop
	PostSourceURL       string
	PollIntervalMin     time.Duration
	PollIntervalMax     time.Duration
	SelfForumDomains    []string
	SkipDomains         []string
	IngestCursorPath    string

	// Backfill workers
	BackfillBatchSize      int
	BackfillItemDelay      time.Duration
	BackfillBatchDelay     time.Duration

	// HTTP
	UserAgent   string
	HTTPTimeout time.Duration

	// Logging
	LogFileOutputDir string
	NoStdoutLogging  bool

	// Retry backoff schedule (§4.7 open question — resolved: bounded,
	// monotone exponential schedule in minutes).
	RetryBackoffMinutes []int

	// Admin API
	AdminAPIAddr string
}

var (
	global *Config
	once   sync.Once
	mu     sync.RWMutex
)

// Default returns a Config with the defaults used by tests and the CLI
// before flag/env overrides are applied.
func Default() *Config {
	return &Config{
		WorkerConcurrency:             8,
		PerDomainConcurrency:          2,
		ExtraFileUploadConcurrency:    4,
		WorkDir:                       "/tmp/archiver-work",
		S3Prefix:                      "archives/",
		DedupEnabled:                  true,
		DedupSimilarityThreshold:      8,
		YoutubeMaxDurationSeconds:     3 * 60 * 60,
		YoutubeDownloadTimeoutSeconds: 30 * 60,
		CommentsEnabled:               true,
		CommentsMaxCount:              500,
		CommentsRequestDelayMs:        1500,
		ScreenshotsEnabled:            true,
		PDFEnabled:                    true,
		MHTMLEnabled:                  true,
		PollIntervalMin:               10 * time.Second,
		PollIntervalMax:               5 * time.Minute,
		SkipDomains:                   []string{"web.archive.org", "archive.ph", "archive.today", "ghostarchive.org"},
		BackfillBatchSize:             25,
		BackfillItemDelay:             500 * time.Millisecond,
		BackfillBatchDelay:            30 * time.Second,
		UserAgent:                     "forum-archiver/1.0 (+https://example.invalid/bot)",
		HTTPTimeout:                   30 * time.Second,
		RetryBackoffMinutes:           []int{5, 30, 360},
		AdminAPIAddr:                  ":9090",
	}
}

// Validate checks the shape of fields that matter for correctness --
// mirrors the teacher's practice of validating a generated Crawl config
// before it is handed to the pipeline.
func (c *Config) Validate() error {
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("config: worker_concurrency must be > 0")
	}
	if c.PerDomainConcurrency <= 0 {
		return fmt.Errorf("config: per_domain_concurrency must be > 0")
	}
	if c.ExtraFileUploadConcurrency <= 0 {
		return fmt.Errorf("config: extra_file_upload_concurrency must be > 0")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("config: work_dir is required")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("config: database_dsn is required")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("config: s3_bucket is required")
	}
	if c.PostSourceURL != "" && !govalidator.IsURL(c.PostSourceURL) {
		return fmt.Errorf("config: post_source_url is not a valid URL: %q", c.PostSourceURL)
	}
	if len(c.RetryBackoffMinutes) == 0 {
		return fmt.Errorf("config: retry_backoff_minutes must not be empty")
	}
	for _, u := range c.ElasticSearchURLs {
		if !govalidator.IsURL(u) {
			return fmt.Errorf("config: elasticsearch url is not valid: %q", u)
		}
	}
	return nil
}

// Set installs c as the process-global configuration. Intended to be
// called once at startup (or per-test with a throwaway Config).
func Set(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	global = c
}

// Get returns the process-global configuration, matching the teacher's
// config.Get() singleton-accessor idiom.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		panic("config: Get() called before Set()")
	}
	return global
}

// ensure once is referenced so a future lazy-init path can reuse it
// without an unused-import headache.
var _ = once
