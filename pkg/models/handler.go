package models

// ContentType is the coarse kind of content an ArchiveResult represents
// (§4.3).
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeVideo    ContentType = "video"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeImage    ContentType = "image"
	ContentTypeGallery  ContentType = "gallery"
	ContentTypeThread   ContentType = "thread"
	ContentTypePlaylist ContentType = "playlist"
	ContentTypeMixed    ContentType = "mixed"
	ContentTypeFile     ContentType = "file"
)

// ArchiveResult is what a site handler produces after writing files into
// its work directory (§4.3).
type ArchiveResult struct {
	Title       string
	Author      string
	Text        string
	ContentType ContentType

	// PrimaryFile is relative to the work directory.
	PrimaryFile string
	// Thumbnail is relative to the work directory.
	Thumbnail string
	// ExtraFiles are relative to the work directory.
	ExtraFiles []string

	MetadataJSON string

	IsNSFW     bool
	NSFWSource NSFWSource

	// FinalURL is set when the handler followed redirects to a different
	// canonical location.
	FinalURL string

	// VideoID is the platform-specific id used for the predictable
	// videos/{id}.{ext} canonical path (§3 invariant 7).
	VideoID string

	HTTPStatusCode int
}

// NewArchiveResult returns a result with the defaults from the Rust
// original's Default impl (content_type defaults to text).
func NewArchiveResult() *ArchiveResult {
	return &ArchiveResult{ContentType: ContentTypeText}
}
