package archiver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/spf13/afero"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/db"
	"github.com/forumarch/archiver/internal/pkg/dedup"
	"github.com/forumarch/archiver/internal/pkg/handlers"
	"github.com/forumarch/archiver/internal/pkg/ipfs"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/render"
	"github.com/forumarch/archiver/internal/pkg/sanitize"
	"github.com/forumarch/archiver/internal/pkg/stats"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
	"github.com/forumarch/archiver/internal/pkg/transcript"
	"github.com/forumarch/archiver/pkg/models"
)

// canonicalVideoExtensions are probed, in order, when a handler can
// derive a predictable content id but hasn't run yet (§4.5 step 2).
var canonicalVideoExtensions = []string{"mp4", "webm", "mkv", "m4a", "mp3"}

// workFS is every read/write the pipeline does against a per-archive
// work directory, routed through afero rather than bare os calls so a
// test can swap in afero.NewMemMapFs() instead of touching a real
// filesystem.
var workFS afero.Fs = afero.NewOsFs()

// runPipeline implements §4.5 steps 1-9 for a single archive.
func (p *Pool) runPipeline(ctx context.Context, archive *models.Archive, link *models.Link) {
	logger := p.logger.WithFields(log.Fields{"archive_id": archive.ID, "link_id": link.ID})

	if err := p.db.TransitionToProcessing(ctx, archive.ID); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			logger.Errorf("transition to processing: %v", err)
		}
		return
	}

	handler := handlers.Lookup(link.NormalizedURL)
	if handler == nil {
		p.fail(ctx, logger, archive.ID, archerr.New(archerr.KindInvariantViolation, "no handler matched URL"))
		return
	}

	var result *models.ArchiveResult
	var workDir string
	canonicalOnly := false

	if canon, videoID, ext, ok := p.probeCanonical(ctx, handler, link); ok {
		result = canon
		canonicalOnly = true
		logger.Infof("reusing canonical blob videos/%s.%s", videoID, ext)
	} else {
		var err error
		workDir, err = p.prepareWorkDir(archive.ID)
		if err != nil {
			p.fail(ctx, logger, archive.ID, archerr.Wrap(archerr.KindStorageError, "create work dir", err))
			return
		}
		defer workFS.RemoveAll(workDir)

		cookiesPath := p.cfg.CookiesFilePath
		result, err = handler.Archive(ctx, handlers.ArchiveRequest{
			URL:             link.NormalizedURL,
			WorkDir:         workDir,
			CookiesFilePath: cookiesPath,
			Config:          p.cfg,
		})
		if err != nil {
			if archerr.IsPermanent(err) {
				p.skip(ctx, logger, archive.ID, models.ArchiveStatusProcessing, err)
			} else {
				p.fail(ctx, logger, archive.ID, err)
			}
			return
		}
	}

	if result.PrimaryFile == "" && result.FinalURL == "" && !canonicalOnly && result.ContentType != models.ContentTypePlaylist {
		p.fail(ctx, logger, archive.ID, archerr.New(archerr.KindInvariantViolation, "handler returned no primary_file and no html snapshot"))
		return
	}

	up := &uploadState{
		pool:      p,
		ctx:       ctx,
		archive:   archive,
		link:      link,
		workDir:   workDir,
		result:    result,
		logger:    logger,
		completed: db.CompleteArchiveResult{},
	}

	if canonicalOnly {
		up.canonicalKey = p.canonicalKeyFor(result)
	} else if err := up.uploadAll(); err != nil {
		p.fail(ctx, logger, archive.ID, err)
		return
	}

	if !canonicalOnly && (p.cfg.ScreenshotsEnabled || p.cfg.PDFEnabled || p.cfg.MHTMLEnabled) {
		up.runOptionalRenderings()
	}

	if p.cfg.IPFSEnabled && !canonicalOnly {
		up.runIPFSPin()
	}

	up.completed.Title = nullString(result.Title)
	up.completed.Author = nullString(result.Author)
	up.completed.Text = nullString(result.Text)
	up.completed.ContentType = nullString(string(result.ContentType))
	if up.canonicalKey != "" {
		up.completed.PrimaryKey = nullString(up.canonicalKey)
	}
	if up.thumbKey != "" {
		up.completed.ThumbnailKey = nullString(up.thumbKey)
	}
	if result.IsNSFW {
		up.completed.IsNSFW = sql.NullBool{Bool: true, Valid: true}
		up.completed.NSFWSource = nullString(string(result.NSFWSource))
	}
	if up.transcriptText != "" {
		up.completed.TranscriptTxt = nullString(up.transcriptText)
	}

	if err := p.db.TransitionToComplete(ctx, archive.ID, up.completed); err != nil {
		if !errors.Is(err, db.ErrStaleTransition) {
			logger.Errorf("transition to complete: %v", err)
		}
		return
	}
	if err := p.db.TouchLinkArchivedAt(ctx, link.ID); err != nil {
		logger.Warnf("touch link archived_at: %v", err)
	}
	if result.FinalURL != "" && result.FinalURL != link.NormalizedURL {
		if err := p.db.SetLinkCanonicalURL(ctx, link.ID, result.FinalURL); err != nil {
			logger.Warnf("set link canonical url: %v", err)
		}
	}
	if result.VideoID != "" {
		if err := p.setVideoID(ctx, archive.ID, result.VideoID); err != nil {
			logger.Warnf("set archive video_id: %v", err)
		}
	}

	stats.ArchivesCompletedIncr()

	if p.search != nil {
		if refreshed, err := p.db.GetArchive(ctx, archive.ID); err == nil {
			p.search.Index(ctx, refreshed, link)
		}
	}

	if p.cfg.CommentsEnabled {
		if err := p.db.EnqueueCommentJob(ctx, archive.ID); err != nil {
			logger.Warnf("enqueue comment job: %v", err)
		}
	}
}

// setVideoID is a thin UPDATE helper kept alongside the pipeline rather
// than db/archives.go because it's only ever called as the tail of the
// complete transition, never as a standalone state-machine step.
func (p *Pool) setVideoID(ctx context.Context, archiveID int64, videoID string) error {
	return p.db.SetArchiveVideoID(ctx, archiveID, videoID)
}

// fail implements the processing -> failed edge, incrementing retry_count
// and scheduling the next attempt via the configured backoff (§4.7).
func (p *Pool) fail(ctx context.Context, logger *log.FieldedLogger, archiveID int64, err error) {
	if archErr := p.db.TransitionToFailed(ctx, archiveID, err.Error(), p.cfg.RetryBackoffMinutes); archErr != nil {
		if !errors.Is(archErr, db.ErrStaleTransition) {
			logger.Errorf("transition to failed: %v", archErr)
		}
	}
	stats.ArchivesFailedIncr()
	logger.Warnf("archive failed (retryable): %v", err)
}

// skip implements the {processing,failed} -> skipped edge for permanent
// failures (§7's classification, §4.7's "processing -> skipped" edge).
func (p *Pool) skip(ctx context.Context, logger *log.FieldedLogger, archiveID int64, from models.ArchiveStatus, err error) {
	if dbErr := p.db.TransitionToSkipped(ctx, archiveID, from, err.Error()); dbErr != nil {
		if !errors.Is(dbErr, db.ErrStaleTransition) {
			logger.Errorf("transition to skipped: %v", dbErr)
		}
	}
	stats.ArchivesSkippedIncr()
	logger.Infof("archive skipped (permanent failure): %v", err)
}

// prepareWorkDir creates the per-archive scratch directory of §4.5 step 3
// and §5 "Shared resources: the work directory".
func (p *Pool) prepareWorkDir(archiveID int64) (string, error) {
	dir := filepath.Join(p.cfg.WorkDir, fmt.Sprintf("archive_%d", archiveID))
	if err := workFS.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// probeCanonical implements §4.5 step 2: when a handler can derive a
// stable platform id directly from the URL, check whether the canonical
// videos/{id}.{ext} blob already exists before spending a download.
func (p *Pool) probeCanonical(ctx context.Context, h handlers.SiteHandler, link *models.Link) (*models.ArchiveResult, string, string, bool) {
	capable, ok := h.(handlers.VideoIDCapable)
	if !ok {
		return nil, "", "", false
	}
	videoID, ok := capable.VideoID(link.NormalizedURL)
	if !ok || videoID == "" {
		return nil, "", "", false
	}

	for _, ext := range canonicalVideoExtensions {
		key := p.store.CanonicalVideoKey(videoID, ext)
		exists, err := p.store.Head(ctx, key)
		if err != nil || !exists {
			continue
		}
		result := models.NewArchiveResult()
		result.ContentType = models.ContentTypeVideo
		result.VideoID = videoID
		return result, videoID, ext, true
	}
	return nil, "", "", false
}

func (p *Pool) canonicalKeyFor(result *models.ArchiveResult) string {
	for _, ext := range canonicalVideoExtensions {
		key := p.store.CanonicalVideoKey(result.VideoID, ext)
		if exists, err := p.store.Head(context.Background(), key); err == nil && exists {
			return key
		}
	}
	return ""
}

// uploadState threads the per-archive upload outputs (thumbnail key,
// transcript text, canonical key) through §4.5 step 5's ordered upload
// sequence without growing runPipeline's own signature.
type uploadState struct {
	pool    *Pool
	ctx     context.Context
	archive *models.Archive
	link    *models.Link
	workDir string
	result  *models.ArchiveResult
	logger  *log.FieldedLogger

	completed      db.CompleteArchiveResult
	thumbKey       string
	canonicalKey   string
	transcriptText string
	primaryUploadedKey string
	primaryUploaded    bool
}

// uploadAll implements the ordered upload sequence of §4.5 step 5.
func (u *uploadState) uploadAll() error {
	if u.result.PrimaryFile != "" {
		if err := u.uploadPrimary(); err != nil {
			return err
		}
	}

	if u.result.Thumbnail != "" {
		if err := u.uploadThumbnail(); err != nil {
			u.logger.Warnf("upload thumbnail: %v", err)
		}
	}

	if u.result.MetadataJSON != "" {
		if err := u.uploadMetadata(); err != nil {
			u.logger.Warnf("upload metadata: %v", err)
		}
	}

	var (
		subtitlePaths []string
		mu            sync.Mutex
	)
	swg := sizedwaitgroup.New(u.pool.cfg.ExtraFileUploadConcurrency)
	for _, extra := range u.result.ExtraFiles {
		extra := extra
		swg.Add()
		go func() {
			defer swg.Done()
			kind, err := u.uploadExtra(extra)
			if err != nil {
				u.logger.Warnf("upload extra %s: %v", extra, err)
				return
			}
			if kind == models.ArtifactKindSubtitles {
				mu.Lock()
				subtitlePaths = append(subtitlePaths, filepath.Join(u.workDir, extra))
				mu.Unlock()
			}
		}()
	}
	swg.Wait()

	if len(subtitlePaths) > 0 {
		u.buildAndUploadTranscript(subtitlePaths)
	}

	if u.result.VideoID != "" && u.primaryUploaded {
		u.copyToCanonical()
	}

	return nil
}

func (u *uploadState) uploadPrimary() error {
	localPath := filepath.Join(u.workDir, u.result.PrimaryFile)
	data, err := afero.ReadFile(workFS, localPath)
	if err != nil {
		return archerr.Wrap(archerr.KindStorageError, "read primary file", err)
	}

	filename := sanitize.Filename(filepath.Base(u.result.PrimaryFile))
	ct := mimeForFilename(filename)
	key := u.pool.store.Key(u.link.ID, "media/"+filename)

	kind := primaryArtifactKind(u.result.ContentType, filename)

	if u.pool.cfg.DedupEnabled && isImageOrVideoMIME(ct) && strings.HasPrefix(ct, "image/") {
		if err := u.uploadPrimaryWithDedup(key, filename, ct, kind, data); err != nil {
			return err
		}
	} else {
		if err := u.pool.store.Put(u.ctx, key, data, ct); err != nil {
			return archerr.Wrap(archerr.KindStorageError, "put primary file", err)
		}
		var metaJSON sql.NullString
		if strings.HasPrefix(ct, "image/") {
			if exifJSON, ok := extractEXIFJSON(data); ok {
				metaJSON = nullString(exifJSON)
			}
		}
		if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
			ArchiveID:    u.archive.ID,
			Kind:         kind,
			S3Key:        key,
			ContentType:  nullString(ct),
			SizeBytes:    nullInt64(int64(len(data))),
			MetadataJSON: metaJSON,
		}); err != nil {
			return archerr.Wrap(archerr.KindStorageError, "insert primary artifact row", err)
		}
		u.primaryUploaded = true
		u.primaryUploadedKey = key
	}

	u.completed.PrimaryKey = nullString(key)

	if filename == "raw.html" || kind == models.ArtifactKindRawHTML {
		u.buildHTMLDerivatives(data, filename)
	}

	return nil
}

// uploadPrimaryWithDedup implements §4.9/§4.5 step 5's perceptual-hash
// dedup for image primaries: on an exact-hash hit, reuse the matched
// artifact's key instead of uploading (invariant 5). uploadPrimary only
// routes image/* primaries here; video primaries are uploaded without a
// perceptual hash and are never deduplicated.
func (u *uploadState) uploadPrimaryWithDedup(key, filename, ct string, kind models.ArtifactKind, data []byte) error {
	hash, err := dedup.ComputeImageHash(data)
	if err != nil {
		// Not a still image the hash function can decode -- fall back
		// to a plain upload.
		if putErr := u.pool.store.Put(u.ctx, key, data, ct); putErr != nil {
			return archerr.Wrap(archerr.KindStorageError, "put primary file", putErr)
		}
		if _, insErr := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
			ArchiveID: u.archive.ID, Kind: kind, S3Key: key,
			ContentType: nullString(ct), SizeBytes: nullInt64(int64(len(data))),
		}); insErr != nil {
			return archerr.Wrap(archerr.KindStorageError, "insert primary artifact row", insErr)
		}
		u.primaryUploaded = true
		u.primaryUploadedKey = key
		return nil
	}

	existing, err := u.pool.db.FindArtifactByPerceptualHash(u.ctx, hash)
	if err == nil {
		if _, insErr := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
			ArchiveID:      u.archive.ID,
			Kind:           kind,
			S3Key:          existing.S3Key,
			ContentType:    nullString(ct),
			PerceptualHash: nullString(hash),
			DuplicateOf:    nullInt64(existing.ID),
		}); insErr != nil {
			return archerr.Wrap(archerr.KindStorageError, "insert duplicate artifact row", insErr)
		}
		stats.DedupHitsIncr()
		u.primaryUploaded = false
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return archerr.Wrap(archerr.KindStorageError, "perceptual hash lookup", err)
	}

	if err := u.pool.store.Put(u.ctx, key, data, ct); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "put primary file", err)
	}
	var metaJSON sql.NullString
	if exifJSON, ok := extractEXIFJSON(data); ok {
		metaJSON = nullString(exifJSON)
	}
	if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID:      u.archive.ID,
		Kind:           kind,
		S3Key:          key,
		ContentType:    nullString(ct),
		SizeBytes:      nullInt64(int64(len(data))),
		PerceptualHash: nullString(hash),
		MetadataJSON:   metaJSON,
	}); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "insert primary artifact row", err)
	}
	u.primaryUploaded = true
	u.primaryUploadedKey = key
	return nil
}

// buildHTMLDerivatives produces view.html (always, banner-injected) and
// complete.html (best-effort, via the self-contained HTML builder) for a
// saved raw.html primary (§4.5 step 5).
func (u *uploadState) buildHTMLDerivatives(rawData []byte, rawFilename string) {
	viewHTML := injectBanner(string(rawData), u.link.NormalizedURL, time.Now())
	viewKey := u.pool.store.Key(u.link.ID, "media/view.html")
	if err := u.pool.store.Put(u.ctx, viewKey, []byte(viewHTML), "text/html"); err != nil {
		u.logger.Warnf("upload view.html: %v", err)
	} else if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID: u.archive.ID, Kind: models.ArtifactKindViewHTML, S3Key: viewKey,
		ContentType: nullString("text/html"), SizeBytes: nullInt64(int64(len(viewHTML))),
	}); err != nil {
		u.logger.Warnf("insert view.html artifact: %v", err)
	}

	rawLocalPath := filepath.Join(u.workDir, rawFilename)
	completeLocalPath := filepath.Join(u.workDir, "complete.html")
	if err := buildCompleteHTML(u.ctx, rawLocalPath, completeLocalPath, u.pool.cfg.CookiesFilePath); err != nil {
		u.logger.Infof("complete.html skipped: %v", err)
		return
	}

	completeData, err := afero.ReadFile(workFS, completeLocalPath)
	if err != nil {
		return
	}
	completeKey := u.pool.store.Key(u.link.ID, "media/complete.html")
	if err := u.pool.store.Put(u.ctx, completeKey, completeData, "text/html"); err != nil {
		u.logger.Warnf("upload complete.html: %v", err)
		return
	}
	if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID: u.archive.ID, Kind: models.ArtifactKindCompleteHTML, S3Key: completeKey,
		ContentType: nullString("text/html"), SizeBytes: nullInt64(int64(len(completeData))),
	}); err != nil {
		u.logger.Warnf("insert complete.html artifact: %v", err)
	}
}

func (u *uploadState) uploadThumbnail() error {
	localPath := filepath.Join(u.workDir, u.result.Thumbnail)
	data, err := afero.ReadFile(workFS, localPath)
	if err != nil {
		return archerr.Wrap(archerr.KindStorageError, "read thumbnail", err)
	}
	filename := sanitize.Filename(filepath.Base(u.result.Thumbnail))
	ct := mimeForFilename(filename)
	key := u.pool.store.Key(u.link.ID, "thumb/"+filename)

	if err := u.pool.store.Put(u.ctx, key, data, ct); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "put thumbnail", err)
	}
	if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID: u.archive.ID, Kind: models.ArtifactKindThumb, S3Key: key,
		ContentType: nullString(ct), SizeBytes: nullInt64(int64(len(data))),
	}); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "insert thumbnail artifact", err)
	}
	u.thumbKey = key
	return nil
}

func (u *uploadState) uploadMetadata() error {
	key := u.pool.store.Key(u.link.ID, "meta.json")
	data := []byte(u.result.MetadataJSON)
	if err := u.pool.store.Put(u.ctx, key, data, "application/json"); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "put meta.json", err)
	}
	if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID: u.archive.ID, Kind: models.ArtifactKindMetadata, S3Key: key,
		ContentType: nullString("application/json"), SizeBytes: nullInt64(int64(len(data))),
	}); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "insert metadata artifact", err)
	}
	return nil
}

func (u *uploadState) uploadExtra(relPath string) (models.ArtifactKind, error) {
	localPath := filepath.Join(u.workDir, relPath)
	data, err := afero.ReadFile(workFS, localPath)
	if err != nil {
		return "", archerr.Wrap(archerr.KindStorageError, "read extra file", err)
	}
	filename := sanitize.Filename(filepath.Base(relPath))
	ct := mimeForFilename(filename)
	kind := extraFileKind(filename)
	key := u.pool.store.Key(u.link.ID, "media/"+filename)

	var metaJSON sql.NullString
	switch {
	case kind == models.ArtifactKindSubtitles:
		lang, isAuto, format := parseSubtitleFilename(filename)
		blob, _ := json.Marshal(map[string]interface{}{
			"language": lang, "is_auto": isAuto, "format": format,
		})
		metaJSON = nullString(string(blob))
	case strings.HasPrefix(ct, "image/"):
		if exifJSON, ok := extractEXIFJSON(data); ok {
			metaJSON = nullString(exifJSON)
		}
	}

	if err := u.pool.store.Put(u.ctx, key, data, ct); err != nil {
		return "", archerr.Wrap(archerr.KindStorageError, "put extra file", err)
	}
	if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
		ArchiveID: u.archive.ID, Kind: kind, S3Key: key,
		ContentType: nullString(ct), SizeBytes: nullInt64(int64(len(data))), MetadataJSON: metaJSON,
	}); err != nil {
		return "", archerr.Wrap(archerr.KindStorageError, "insert extra artifact", err)
	}
	return kind, nil
}

// buildAndUploadTranscript implements §4.10: parse every subtitle file
// found among the archive's extras, prefer the first English-looking one,
// and store the built transcript both as an artifact and denormalized
// onto the archive row.
func (u *uploadState) buildAndUploadTranscript(subtitlePaths []string) {
	isEnglish := func(path string) bool {
		lang, _, _ := parseSubtitleFilename(path)
		return strings.HasPrefix(strings.ToLower(lang), "en")
	}
	sort.SliceStable(subtitlePaths, func(i, j int) bool {
		return isEnglish(subtitlePaths[i]) && !isEnglish(subtitlePaths[j])
	})

	for _, path := range subtitlePaths {
		data, err := afero.ReadFile(workFS, path)
		if err != nil {
			continue
		}
		var cues []transcript.Cue
		if strings.HasSuffix(strings.ToLower(path), ".srt") {
			cues, err = transcript.ParseSRT(data)
		} else {
			cues, err = transcript.ParseVTT(data)
		}
		if err != nil || len(cues) == 0 {
			continue
		}

		text := transcript.BuildTranscript(cues)
		if text == "" {
			continue
		}

		key := u.pool.store.Key(u.link.ID, "media/transcript.txt")
		if err := u.pool.store.Put(u.ctx, key, []byte(text), "text/plain"); err != nil {
			u.logger.Warnf("upload transcript: %v", err)
			return
		}
		if _, err := u.pool.db.InsertArtifact(u.ctx, &models.ArchiveArtifact{
			ArchiveID: u.archive.ID, Kind: models.ArtifactKindTranscript, S3Key: key,
			ContentType: nullString("text/plain"), SizeBytes: nullInt64(int64(len(text))),
		}); err != nil {
			u.logger.Warnf("insert transcript artifact: %v", err)
			return
		}
		u.transcriptText = text
		return
	}
}

func (u *uploadState) copyToCanonical() {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(u.primaryUploadedKey)), ".")
	if ext == "" {
		return
	}
	dst := u.pool.store.CanonicalVideoKey(u.result.VideoID, ext)
	if err := u.pool.store.CopyIfAbsent(u.ctx, u.primaryUploadedKey, dst); err != nil {
		u.logger.Warnf("copy to canonical videos/%s.%s: %v", u.result.VideoID, ext, err)
		return
	}
	u.canonicalKey = dst
}

// runOptionalRenderings implements §4.5 step 6: non-fatal screenshot/
// PDF/MHTML captures via the headless renderer, with injected cookies.
func (u *uploadState) runOptionalRenderings() {
	manager := render.Get()
	if manager == nil {
		return
	}

	var cookies []subprocess.Cookie
	if u.pool.cfg.CookiesFilePath != "" {
		if parsed, err := subprocess.ParseCookieFile(u.pool.cfg.CookiesFilePath); err == nil {
			cookies = parsed
		}
	}

	renderDir := filepath.Join(u.workDir, "render")
	failures, err := manager.SaveAll(u.ctx, u.link.NormalizedURL, u.workDir, cookies)
	if err != nil {
		u.logger.Infof("renderings skipped: %v", err)
		return
	}

	type rendering struct {
		enabled bool
		file    string
		kind    models.ArtifactKind
		ct      string
	}
	for _, r := range []rendering{
		{u.pool.cfg.ScreenshotsEnabled, "screenshot.png", models.ArtifactKindScreenshot, "image/png"},
		{u.pool.cfg.PDFEnabled, "page.pdf", models.ArtifactKindPDF, "application/pdf"},
		{u.pool.cfg.MHTMLEnabled, "complete.mhtml", models.ArtifactKindMHTML, "multipart/related"},
	} {
		if !r.enabled {
			continue
		}
		if name := strings.TrimSuffix(r.file, filepath.Ext(r.file)); failures[renderKeyFor(name)] != nil {
			continue
		}
		localPath := filepath.Join(renderDir, r.file)
		data, err := afero.ReadFile(workFS, localPath)
		if err != nil {
			continue
		}
		key := u.pool.store.Key(u.link.ID, "render/"+r.file)
		if err := u.pool.store.Put(u.ctx, key, data, r.ct); err != nil {
			u.logger.Warnf("upload %s: %v", r.file, err)
			continue
		}
		artifact := &models.ArchiveArtifact{
			ArchiveID: u.archive.ID, Kind: r.kind, S3Key: key,
			ContentType: nullString(r.ct), SizeBytes: nullInt64(int64(len(data))),
		}
		if r.kind == models.ArtifactKindPDF {
			if pages, ok := pdfPageCount(data); ok {
				artifact.MetadataJSON = nullString(fmt.Sprintf(`{"page_count":%d}`, pages))
			}
		}
		if _, err := u.pool.db.InsertArtifact(u.ctx, artifact); err != nil {
			u.logger.Warnf("insert %s artifact: %v", r.file, err)
		}
	}
}

func renderKeyFor(name string) string {
	switch name {
	case "page":
		return "pdf"
	case "complete":
		return "mhtml"
	default:
		return name
	}
}

// runIPFSPin implements §4.5 step 7: optional IPFS pin of the primary
// file, storing the resulting CID on the archive row.
func (u *uploadState) runIPFSPin() {
	target := u.workDir
	if u.result.PrimaryFile != "" {
		target = filepath.Join(u.workDir, u.result.PrimaryFile)
	}
	cid, err := ipfs.Pin(u.ctx, u.pool.cfg, target)
	if err != nil {
		u.logger.Infof("ipfs pin skipped: %v", err)
		return
	}
	u.completed.IPFSCid = nullString(cid)
}

// primaryArtifactKind maps an ArchiveResult's content type (and, for the
// generic handler, its raw.html filename) to the artifact kind recorded
// for the primary file.
func primaryArtifactKind(ct models.ContentType, filename string) models.ArtifactKind {
	if filename == "raw.html" {
		return models.ArtifactKindRawHTML
	}
	switch ct {
	case models.ContentTypeVideo, models.ContentTypeAudio:
		return models.ArtifactKindVideo
	case models.ContentTypeImage:
		return models.ArtifactKindImage
	case models.ContentTypeGallery:
		return models.ArtifactKindGallery
	case models.ContentTypeText, models.ContentTypeThread, models.ContentTypeMixed, models.ContentTypeFile, models.ContentTypePlaylist:
		return models.ArtifactKindRawHTML
	default:
		return extraFileKind(filename)
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}
