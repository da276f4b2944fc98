// Package stats holds process-wide atomic counters surfaced by the admin
// API's /stats endpoint. Each pipeline stage increments
// a "routines" gauge around its goroutine pool and a handful of throughput
// counters as it processes items.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
)

var (
	archiverRoutines      int64
	commentWorkerRoutines int64
	threadWorkerRoutines  int64
	backfillRoutines      int64

	archivesCompleted int64
	archivesFailed    int64
	archivesSkipped   int64
	linksIngested     int64
	postsIngested     int64
	commentsExtracted int64
	dedupHits         int64

	// postsIngestedRate is a rolling 1-minute rate, printed in the ingest
	// loop's empty-poll debug log and surfaced on the admin API's /stats
	// endpoint alongside the lifetime-total postsIngested counter above.
	// The poll interval itself does not depend on it.
	postsIngestedRate = ratecounter.NewRateCounter(1 * time.Minute)

	once sync.Once
)

// Init resets every counter to zero. Idempotent per process; exists so
// every stage can call it defensively the way the teacher's stages call
// stats.Init() on Start().
func Init() {
	once.Do(func() {
		atomic.StoreInt64(&archiverRoutines, 0)
		atomic.StoreInt64(&commentWorkerRoutines, 0)
		atomic.StoreInt64(&threadWorkerRoutines, 0)
		atomic.StoreInt64(&backfillRoutines, 0)
		atomic.StoreInt64(&archivesCompleted, 0)
		atomic.StoreInt64(&archivesFailed, 0)
		atomic.StoreInt64(&archivesSkipped, 0)
		atomic.StoreInt64(&linksIngested, 0)
		atomic.StoreInt64(&postsIngested, 0)
		atomic.StoreInt64(&commentsExtracted, 0)
		atomic.StoreInt64(&dedupHits, 0)
	})
}

func ArchiverRoutinesIncr() { atomic.AddInt64(&archiverRoutines, 1) }
func ArchiverRoutinesDecr() { atomic.AddInt64(&archiverRoutines, -1) }
func ArchiverRoutinesGet() int64 { return atomic.LoadInt64(&archiverRoutines) }

func CommentWorkerRoutinesIncr() { atomic.AddInt64(&commentWorkerRoutines, 1) }
func CommentWorkerRoutinesDecr() { atomic.AddInt64(&commentWorkerRoutines, -1) }
func CommentWorkerRoutinesGet() int64 { return atomic.LoadInt64(&commentWorkerRoutines) }

func ThreadWorkerRoutinesIncr() { atomic.AddInt64(&threadWorkerRoutines, 1) }
func ThreadWorkerRoutinesDecr() { atomic.AddInt64(&threadWorkerRoutines, -1) }
func ThreadWorkerRoutinesGet() int64 { return atomic.LoadInt64(&threadWorkerRoutines) }

func BackfillRoutinesIncr() { atomic.AddInt64(&backfillRoutines, 1) }
func BackfillRoutinesDecr() { atomic.AddInt64(&backfillRoutines, -1) }
func BackfillRoutinesGet() int64 { return atomic.LoadInt64(&backfillRoutines) }

func ArchivesCompletedIncr() { atomic.AddInt64(&archivesCompleted, 1) }
func ArchivesCompletedGet() int64 { return atomic.LoadInt64(&archivesCompleted) }

func ArchivesFailedIncr() { atomic.AddInt64(&archivesFailed, 1) }
func ArchivesFailedGet() int64 { return atomic.LoadInt64(&archivesFailed) }

func ArchivesSkippedIncr() { atomic.AddInt64(&archivesSkipped, 1) }
func ArchivesSkippedGet() int64 { return atomic.LoadInt64(&archivesSkipped) }

func LinksIngestedIncr() { atomic.AddInt64(&linksIngested, 1) }
func LinksIngestedGet() int64 { return atomic.LoadInt64(&linksIngested) }

func PostsIngestedIncr() {
	atomic.AddInt64(&postsIngested, 1)
	postsIngestedRate.Incr(1)
}
func PostsIngestedGet() int64 { return atomic.LoadInt64(&postsIngested) }

// PostsIngestedPerMinute returns the rolling count of posts ingested over
// the trailing minute. The ingest loop logs it on each empty-poll backoff
// step; its doubling/halving interval math does not read it.
func PostsIngestedPerMinute() int64 { return postsIngestedRate.Rate() }

func CommentsExtractedIncr(n int64) { atomic.AddInt64(&commentsExtracted, n) }
func CommentsExtractedGet() int64   { return atomic.LoadInt64(&commentsExtracted) }

func DedupHitsIncr() { atomic.AddInt64(&dedupHits, 1) }
func DedupHitsGet() int64 { return atomic.LoadInt64(&dedupHits) }
