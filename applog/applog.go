// Package applog sets up the process logger for a run and reports the run
// time and log file location when the run ends.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

type Options struct {
	Level string
	// Dir receives a timestamped log file in addition to the console.
	Dir string
	// ProjectOnly drops records below warn level emitted outside Root.
	ProjectOnly bool
	// Root defaults to the directory tree this module was built from.
	Root string
	// Console defaults to os.Stdout.
	Console io.Writer
}

// Session is the logging context of one run.
type Session struct {
	Logger  *slog.Logger
	Level   *slog.LevelVar
	Path    string
	started time.Time
	file    *os.File
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup builds the logger described by opts.
func Setup(opts Options) (*Session, error) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	s := &Session{Level: level, started: time.Now()}
	out := console

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}

		logFilePath := filepath.Join(opts.Dir, fmt.Sprintf("mail-grep-%s.log", s.started.Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		s.file = file
		s.Path = logFilePath
		out = io.MultiWriter(console, file)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, handlerOpts)
	if opts.ProjectOnly {
		root := opts.Root
		if root == "" {
			root = moduleRoot()
		}
		handler = NewProjectFilter(handler, root)
	}
	s.Logger = slog.New(handler)
	return s, nil
}

// Close logs the elapsed time and the log file path, then closes the file.
func (s *Session) Close() error {
	s.Logger.Info("Time: " + FormatElapsed(time.Since(s.started)))
	if s.file == nil {
		return nil
	}
	s.Logger.Info("Log: " + displayPath(s.Path))
	return s.file.Close()
}

// FormatElapsed renders d as "5sec", "2min 03sec" or "1h 02min 03sec".
func FormatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	h, rest := total/3600, total%3600
	m, sec := rest/60, rest%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dmin %02dsec", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dmin %02dsec", m, sec)
	}
	return fmt.Sprintf("%dsec", sec)
}

func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// moduleRoot is the parent of this package's source directory.
func moduleRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Dir(filepath.Dir(file))
}

// ProjectFilter passes records logged from code under root and drops
// lower-than-warn records logged from anywhere else.
type ProjectFilter struct {
	next slog.Handler
	root string
}

func NewProjectFilter(next slog.Handler, root string) *ProjectFilter {
	return &ProjectFilter{next: next, root: filepath.ToSlash(root)}
}

func (f *ProjectFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return f.next.Enabled(ctx, level)
}

func (f *ProjectFilter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelWarn && !f.fromProject(r.PC) {
		return nil
	}
	return f.next.Handle(ctx, r)
}

func (f *ProjectFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ProjectFilter{next: f.next.WithAttrs(attrs), root: f.root}
}

func (f *ProjectFilter) WithGroup(name string) slog.Handler {
	return &ProjectFilter{next: f.next.WithGroup(name), root: f.root}
}

func (f *ProjectFilter) fromProject(pc uintptr) bool {
	if f.root == "" || pc == 0 {
		return true
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	file := filepath.ToSlash(frame.File)
	return file == f.root || strings.HasPrefix(file, strings.TrimSuffix(f.root, "/")+"/")
}
