// Package adminapi exposes /healthz, /metrics and /stats on a small
// gin-gonic/gin router -- the same shape as the teacher's startAPI,
// trimmed to health/metrics/stats since the web UI proper is out of scope.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/stats"
)

// Server wraps a gin engine and the http.Server it's bound to.
type Server struct {
	cfg    *config.Config
	db     *db.DB
	logger *log.FieldedLogger

	httpServer *http.Server
	startedAt  time.Time
}

func New(cfg *config.Config, database *db.DB) *Server {
	return &Server{
		cfg:    cfg,
		db:     database,
		logger: log.NewFieldedLogger(&log.Fields{"component": "adminapi"}),
	}
}

// Start binds and serves in a background goroutine. Bind errors after
// startup are logged, not returned, matching the teacher's fire-and-log
// startAPI pattern.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/stats", s.statsHandler)

	s.httpServer = &http.Server{
		Addr:    s.cfg.AdminAPIAddr,
		Handler: r,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("admin api: %v", err)
		}
	}()

	s.logger.Infof("started on %s", s.cfg.AdminAPIAddr)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("admin api shutdown: %v", err)
	}
	s.logger.Info("stopped")
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.db.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": time.Since(s.startedAt).String()})
}

func (s *Server) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"archiver_routines":       stats.ArchiverRoutinesGet(),
		"comment_worker_routines": stats.CommentWorkerRoutinesGet(),
		"thread_worker_routines":  stats.ThreadWorkerRoutinesGet(),
		"backfill_routines":       stats.BackfillRoutinesGet(),
		"archives_completed":      stats.ArchivesCompletedGet(),
		"archives_failed":         stats.ArchivesFailedGet(),
		"archives_skipped":        stats.ArchivesSkippedGet(),
		"links_ingested":          stats.LinksIngestedGet(),
		"posts_ingested":          stats.PostsIngestedGet(),
		"posts_ingested_per_min":  stats.PostsIngestedPerMinute(),
		"comments_extracted":      stats.CommentsExtractedGet(),
		"dedup_hits":              stats.DedupHitsGet(),
		"uptime":                  time.Since(s.startedAt).String(),
	})
}
