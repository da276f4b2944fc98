// Package log wraps logrus with a fielded-logger helper so every pipeline
// stage logs with a consistent "component" field, and optionally ships a
// copy of every record to Elasticsearch via elogrus.
package log

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/internetarchive/elogrus"
	"github.com/olivere/elastic/v7"
	"github.com/sirupsen/logrus"

	"github.com/forumarch/archiver/internal/pkg/config"
)

// Fields is an alias kept distinct from logrus.Fields so call sites don't
// need to import logrus directly.
type Fields = logrus.Fields

// FieldedLogger is a thin wrapper around a logrus.Entry pre-populated with
// a set of fields (usually just "component").
type FieldedLogger struct {
	entry *logrus.Entry
}

func (f *FieldedLogger) Debug(args ...interface{})            { f.entry.Debug(args...) }
func (f *FieldedLogger) Debugf(format string, a ...interface{}) { f.entry.Debugf(format, a...) }
func (f *FieldedLogger) Info(args ...interface{})              { f.entry.Info(args...) }
func (f *FieldedLogger) Infof(format string, a ...interface{}) { f.entry.Infof(format, a...) }
func (f *FieldedLogger) Warn(args ...interface{})              { f.entry.Warn(args...) }
func (f *FieldedLogger) Warnf(format string, a ...interface{}) { f.entry.Warnf(format, a...) }
func (f *FieldedLogger) Error(args ...interface{})             { f.entry.Error(args...) }
func (f *FieldedLogger) Errorf(format string, a ...interface{}) { f.entry.Errorf(format, a...) }

// WithFields returns a derived logger with extra fields merged in, for a
// single archive or job's lifetime (e.g. archive_id, link_id).
func (f *FieldedLogger) WithFields(fields Fields) *FieldedLogger {
	return &FieldedLogger{entry: f.entry.WithFields(fields)}
}

var (
	base   *logrus.Logger
	once   sync.Once
	mu     sync.Mutex
	closer func() error
)

// Start initializes the process-global logrus instance: text output to
// stdout (stderr when NoStdoutLogging is set), an appended file under
// LogFileOutputDir named for the start date (not rotated while the
// process runs), and an Elasticsearch hook whenever ElasticSearchURLs is
// non-empty. Safe to call repeatedly.
func Start() {
	once.Do(func() {
		cfg := config.Get()

		base = logrus.New()
		base.SetLevel(logrus.DebugLevel)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetOutput(os.Stdout)

		if cfg.NoStdoutLogging {
			base.SetOutput(os.Stderr)
		}

		if cfg.LogFileOutputDir != "" {
			_ = os.MkdirAll(cfg.LogFileOutputDir, 0o755)
			path := filepath.Join(cfg.LogFileOutputDir, "archiver-"+time.Now().Format("20060102")+".log")
			if fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				base.AddHook(&fileHook{file: fh})
			}
		}

		if len(cfg.ElasticSearchURLs) > 0 {
			client, err := elastic.NewClient(
				elastic.SetURL(cfg.ElasticSearchURLs...),
				elastic.SetBasicAuth(cfg.ElasticSearchUsername, cfg.ElasticSearchPassword),
				elastic.SetSniff(false),
			)
			if err == nil {
				hook, hookErr := elogrus.NewAsyncElasticHook(client, cfg.ElasticSearchURLs[0], logrus.DebugLevel, cfg.ElasticSearchIndexPrefix+"-logs")
				if hookErr == nil {
					base.AddHook(hook)
				}
			}
		}
	})
}

// Stop flushes any buffered hooks. There is currently nothing to flush
// synchronously; it exists so callers can pair Start/Stop the way every
// other package does.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer()
	}
}

// NewFieldedLogger returns a logger carrying fields for the lifetime of a
// component (e.g. {"component": "archiver"}).
func NewFieldedLogger(fields *Fields) *FieldedLogger {
	if base == nil {
		Start()
	}
	if fields == nil {
		fields = &Fields{}
	}
	return &FieldedLogger{entry: base.WithFields(*fields)}
}

// fileHook writes every record as plain text to an open file handle.
type fileHook struct {
	file *os.File
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.file.WriteString(line)
	return err
}
