// Package source enumerates the mail files of an Apple Mail store and
// streams their messages to the runner.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Origins of an envelope.
const (
	OriginEMLX = "emlx"
	OriginMbox = "mbox"
)

// exportedMboxName is the file Apple Mail writes inside an exported
// "<name>.mbox" directory.
const exportedMboxName = "mbox"

const mailboxSuffix = ".mbox"

var ErrNoSource = errors.New("mail source not found")

// Classifier decides which mailbox directories are pruned.
type Classifier interface {
	IsExcluded(dir string) bool
	IsSent(dir string) bool
}

type Options struct {
	Root string
	// NoExclude keeps drafts, trash, junk and similar mailboxes.
	NoExclude bool
	// SkipSent prunes sent mailboxes as well.
	SkipSent   bool
	Classifier Classifier
}

// Candidate is one mail file found under the root.
type Candidate struct {
	Path    string
	Origin  string
	ModTime time.Time
}

// Collect walks opts.Root and returns the candidate files, newest first.
// A root that is itself a mail file yields just that file.
func Collect(opts Options, logger *slog.Logger) ([]Candidate, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNoSource)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSource, err)
	}
	if !info.IsDir() {
		origin, ok := originOf(root)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an .emlx or mbox file", ErrNoSource, root)
		}
		return []Candidate{{Path: root, Origin: origin, ModTime: info.ModTime()}}, nil
	}

	var out []Candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if logger != nil {
				logger.Warn("skipped path", "path", path, "err", err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasSuffix(d.Name(), mailboxSuffix) && prune(opts, path, logger) {
				return fs.SkipDir
			}
			return nil
		}
		origin, ok := originOf(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if logger != nil {
				logger.Warn("skipped file", "path", path, "err", err)
			}
			return nil
		}
		out = append(out, Candidate{Path: path, Origin: origin, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func prune(opts Options, dir string, logger *slog.Logger) bool {
	if opts.Classifier == nil {
		return false
	}
	if !opts.NoExclude && opts.Classifier.IsExcluded(dir) {
		if logger != nil {
			logger.Debug("skipped mailbox", "path", dir, "reason", "excluded")
		}
		return true
	}
	if opts.SkipSent && opts.Classifier.IsSent(dir) {
		if logger != nil {
			logger.Debug("skipped mailbox", "path", dir, "reason", "sent")
		}
		return true
	}
	return false
}

func originOf(path string) (string, bool) {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".emlx"):
		return OriginEMLX, true
	case name == exportedMboxName:
		return OriginMbox, true
	}
	return "", false
}
