package runner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhcgn/mail-grep/config"
	"github.com/dhcgn/mail-grep/model"
	"github.com/dhcgn/mail-grep/search"
	"github.com/dhcgn/mail-grep/stats"
)

func mail(date, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("Message-ID: <" + subject + "@example.com>\r\n")
	if date != "" {
		b.WriteString("Date: " + date + "\r\n")
	}
	b.WriteString("From: alice@example.com\r\nTo: bob@example.com\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func newRunner(t *testing.T, ctx context.Context, workers int) (*Runner, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pattern, err := search.Compile("needle", true)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		Pattern: "needle",
		Workers: workers,
		Output:  filepath.Join(t.TempDir(), "out.csv"),
	}
	r, err := New(ctx, cfg, search.NewMatcher(pattern, nil, logger), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, &logs
}

func feed(r *Runner, envs ...model.Envelope) {
	r.AddStage("feed", func(ctx context.Context) error {
		defer r.CloseEnvelopes()
		for _, env := range envs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.EnvelopeWriter() <- env:
			}
		}
		return nil
	})
}

func TestRunner_SearchAndStore(t *testing.T) {
	r, logs := newRunner(t, context.Background(), 3)

	var summary stats.Summary
	collector := stats.NewCollector()
	r.SubscribeStats("test", func(ctx context.Context, events <-chan stats.Event) error {
		for evt := range events {
			collector.Apply(evt)
		}
		summary = collector.Snapshot()
		return nil
	})

	feed(r,
		model.Envelope{Seq: 1, Path: "old.emlx", Raw: mail("Mon, 1 Jan 2024 10:00:00 +0000", "old", "a needle here\r\nand NEEDLE there\r\n")},
		model.Envelope{Seq: 2, Path: "none.emlx", Raw: mail("", "undated", "needle\r\n")},
		model.Envelope{Seq: 3, Path: "new.emlx", Raw: mail("Wed, 1 Jan 2025 10:00:00 +0000", "new", "needle in haystack\r\n")},
		model.Envelope{Seq: 4, Path: "miss.emlx", Raw: mail("Wed, 1 Jan 2025 10:00:00 +0000", "miss", "nothing\r\n")},
		model.Envelope{Seq: 5, Path: "empty.emlx", Raw: nil},
		model.Envelope{Seq: 6, Path: "gone.emlx", Err: errors.New("read emlx: no such file")},
	)

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rep := r.Report()
	if got := rep.MailCount(); got != 3 {
		t.Errorf("MailCount() = %d, want 3", got)
	}
	var order []int
	for _, h := range rep.Lines() {
		order = append(order, h.MailSeq)
	}
	want := []int{3, 1, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("hit mail order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hit mail order = %v, want %v", order, want)
		}
	}

	outputs := r.Outputs()
	if len(outputs) != 2 {
		t.Fatalf("Outputs() = %v", outputs)
	}
	for _, p := range outputs {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	if n := strings.Count(logs.String(), "skipped file"); n != 2 {
		t.Errorf("got %d skipped-file warnings, want 2", n)
	}
	if summary.Scanned != 6 || summary.Matched != 3 || summary.Errors != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunner_InterruptStillWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newRunner(t, ctx, 1)
	feed(r, model.Envelope{Seq: 1, Path: "a.emlx", Raw: mail("", "a", "needle\r\n")})

	if err := r.Start(); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Start() error = %v, want ErrInterrupted", err)
	}
	for _, p := range r.Outputs() {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written after interrupt: %v", p, err)
		}
	}
	if len(r.Outputs()) != 2 {
		t.Errorf("Outputs() = %v", r.Outputs())
	}
}

func TestRunner_InterruptAfterFirstHit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, _ := newRunner(t, ctx, 2)
	r.SubscribeStats("interrupt", func(_ context.Context, events <-chan stats.Event) error {
		for evt := range events {
			if evt.Type == stats.EventTypeMatched {
				cancel()
			}
		}
		return nil
	})
	r.AddStage("feed", func(ctx context.Context) error {
		defer r.CloseEnvelopes()
		first := model.Envelope{Seq: 1, Path: "first.emlx", Raw: mail("Mon, 1 Jan 2024 10:00:00 +0000", "first", "the first needle\r\n")}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.EnvelopeWriter() <- first:
		}
		<-ctx.Done()
		return ctx.Err()
	})

	if err := r.Start(); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Start() error = %v, want ErrInterrupted", err)
	}

	lines := r.Report().Lines()
	if len(lines) == 0 {
		t.Fatal("Report().Lines() is empty after interrupt")
	}
	if lines[0].MailSeq != 1 {
		t.Errorf("first hit MailSeq = %d, want 1", lines[0].MailSeq)
	}

	outputs := r.Outputs()
	if len(outputs) != 2 {
		t.Fatalf("Outputs() = %v", outputs)
	}
	data, err := os.ReadFile(outputs[0])
	if err != nil {
		t.Fatalf("read %s: %v", outputs[0], err)
	}
	csv := string(data)
	if !strings.Contains(csv, "Matched Line") || !strings.Contains(csv, "the first needle") {
		t.Errorf("%s lacks the collected hit:\n%s", outputs[0], csv)
	}
}

func TestNew_NilMatcher(t *testing.T) {
	if _, err := New(context.Background(), config.Config{}, nil, slog.Default()); err == nil {
		t.Error("New() should reject a nil matcher")
	}
}
