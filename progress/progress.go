package progress

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mail-grep/stats"
)

// Bar manages a progress bar for tracking scanned messages.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	scanned int
	mu      sync.Mutex
	enabled bool
	stopped bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info" && total > 0

	bar := &Bar{
		total:   total,
		enabled: enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Searching mail").
			Start()
		bar.pb = pb

		pterm.Info.Printf("Messages to search: %d\n", total)
		pterm.Println()
	}

	return bar
}

// Enabled reports whether the bar renders anything.
func (b *Bar) Enabled() bool {
	return b != nil && b.enabled && b.pb != nil
}

// Update advances the bar for scanned messages and prints errors above it.
func (b *Bar) Update(evt stats.Event) {
	if !b.Enabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	switch evt.Type {
	case stats.EventTypeScanned:
		b.scanned++
		if b.pb.Current < b.total {
			b.pb.Increment()
		}
		if evt.Path != "" {
			b.pb.UpdateTitle("Searching: " + truncate(filepath.Base(evt.Path), 40))
		}
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Warning.Printf("Skipped %s: %v\n", evt.Path, evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.Enabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	b.pb.Stop()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// ProgressReporter feeds the progress bar and a stats collector from the
// same event subscription.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewProgressReporter subscribes to stream. Without an enabled bar the
// summary is logged instead of printed.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("progress", reporter.consume)
	return reporter
}

func (pr *ProgressReporter) consume(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			pr.bar.Stop()
			pr.finish()
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				pr.bar.Stop()
				pr.finish()
				return nil
			}
			pr.collector.Apply(evt)
			pr.bar.Update(evt)
		}
	}
}

func (pr *ProgressReporter) finish() {
	summary := pr.collector.Snapshot()
	duration := time.Since(pr.started)

	if !pr.bar.Enabled() {
		if pr.logger != nil {
			pr.logger.Info("stats summary", append(summary.LogAttrs(), "duration", duration)...)
		}
		return
	}

	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Mails with hits: %d\n", summary.Matched)
	pterm.Info.Printf("Hit lines: %d\n", summary.Hits)
	pterm.Info.Printf("Parsed leniently: %d\n", summary.Lenient)
	pterm.Info.Printf("Errors (skipped): %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
}

// Summary returns the counters collected so far.
func (pr *ProgressReporter) Summary() stats.Summary {
	return pr.collector.Snapshot()
}
