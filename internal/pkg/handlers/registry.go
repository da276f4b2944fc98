// Package handlers implements the site-handler registry of §4.2: a
// one-shot startup registration followed by a descending-priority linear
// scan lookup, with the generic handler as the last-resort match.
package handlers

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/forumarch/archiver/internal/pkg/config"
	"github.com/forumarch/archiver/pkg/models"
)

// SiteHandler is the contract every handler implements (§4.2).
type SiteHandler interface {
	SiteID() string
	Matches(rawURL string) bool
	Priority() int
	Normalize(rawURL string) string
	Archive(ctx context.Context, req ArchiveRequest) (*models.ArchiveResult, error)
}

// ArchiveRequest bundles everything a handler needs to do its work
// without importing the worker pool.
type ArchiveRequest struct {
	URL             string
	WorkDir         string
	CookiesFilePath string
	Config          *config.Config
}

// VideoIDCapable is implemented by handlers that can derive a stable
// platform video id for the predictable-path dedup of §4.5 step 2.
type VideoIDCapable interface {
	VideoID(rawURL string) (string, bool)
}

var (
	mu       sync.RWMutex
	handlers []SiteHandler
)

// Register adds h to the registry. Intended to be called once per handler
// at process startup, from an init() in each handler's file.
func Register(h SiteHandler) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, h)
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Priority() > handlers[j].Priority()
	})
}

// Lookup returns the first registered handler (by descending priority)
// whose Matches reports true for rawURL. The generic handler's priority
// of -100 and its blanket http(s) prefix check guarantee a result for any
// http(s) URL.
func Lookup(rawURL string) SiteHandler {
	mu.RLock()
	defer mu.RUnlock()
	for _, h := range handlers {
		if h.Matches(rawURL) {
			return h
		}
	}
	return nil
}

// matchesAny reports whether rawURL matches any of the given compiled
// patterns. No handler calls it or mustCompileAll; each Matches
// implementation tests its own package-level regexp directly.
func matchesAny(patterns []*regexp.Regexp, rawURL string) bool {
	for _, p := range patterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func mustCompileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
