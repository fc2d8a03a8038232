// Package logging sets up structured zerolog loggers for console and file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Level   string
	Console io.Writer // nil disables console output
	File    string    // empty disables file output
	Service string
	Version string
}

// Logger wraps zerolog and owns the log file handle, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New creates a logger that writes human readable lines to the console and
// JSON lines to the log file. The log file's parent directory is created.
func New(opts Options) (*Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: "2006-01-02 15:04:05",
		})
	}

	var f *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", opts.File, err)
		}
		writers = append(writers, f)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}

	return &Logger{Logger: ctx.Logger(), file: f}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRun adds run_id context to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.With().Str("run_id", runID).Logger(), file: l.file}
}

// WithFile adds file context to the logger.
func (l *Logger) WithFile(path string, size int64) *Logger {
	return &Logger{
		Logger: l.With().
			Str("file", path).
			Int64("file_size", size).
			Logger(),
		file: l.file,
	}
}

// Close closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to a zerolog level.
// Unknown strings default to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ShortPath returns the last n elements of path, for compact log lines.
func ShortPath(path string, n int) string {
	if n < 1 {
		return path
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= n {
		return filepath.ToSlash(path)
	}
	return strings.Join(parts[len(parts)-n:], "/")
}
