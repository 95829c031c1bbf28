package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhcgn/mail-grep/config"
	"github.com/dhcgn/mail-grep/mailmsg"
	"github.com/dhcgn/mail-grep/model"
	"github.com/dhcgn/mail-grep/pgsink"
	"github.com/dhcgn/mail-grep/report"
	"github.com/dhcgn/mail-grep/search"
	"github.com/dhcgn/mail-grep/stats"
)

// ErrInterrupted is returned by Start when the parent context was
// cancelled. The partial report has been written by then.
var ErrInterrupted = errors.New("search interrupted")

const exportTimeout = 30 * time.Second

type StageFunc func(context.Context) error

type Runner struct {
	cfg     config.Config
	logger  *slog.Logger
	matcher *search.Matcher
	report  *report.Report

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	envelopes chan model.Envelope
	results   chan model.Result

	subsMu sync.Mutex
	subs   []chan stats.Event

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeEnvelopesOnce sync.Once
	closeResultsOnce   sync.Once
	closeEventsOnce    sync.Once

	outputBase string
	outputs    []string
	since      time.Time
}

// New wires the match and collect stages. Cancelling parent stops intake;
// Start still writes what was collected.
func New(parent context.Context, cfg config.Config, matcher *search.Matcher, logger *slog.Logger) (*Runner, error) {
	if matcher == nil {
		return nil, errors.New("runner: matcher is nil")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	cfg.Workers = workers

	ctx, cancel := context.WithCancel(parent)

	r := &Runner{
		cfg:        cfg,
		logger:     logger,
		matcher:    matcher,
		report:     report.New(logger),
		parent:     parent,
		ctx:        ctx,
		cancel:     cancel,
		envelopes:  make(chan model.Envelope, 32*workers),
		results:    make(chan model.Result, 32*workers),
		outputBase: cfg.OutputBase(matcher.Pattern().DefaultOutputName()),
		since:      time.Now(),
	}

	r.AddStage("match", r.match)
	r.AddStage("collect", r.collect)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

// Report returns the hits collected so far.
func (r *Runner) Report() *report.Report {
	return r.report
}

// OutputBase is the output path without extension.
func (r *Runner) OutputBase() string {
	return r.outputBase
}

// Outputs lists the files written by Start.
func (r *Runner) Outputs() []string {
	return r.outputs
}

func (r *Runner) EnvelopeWriter() chan<- model.Envelope {
	return r.envelopes
}

func (r *Runner) CloseEnvelopes() {
	r.closeEnvelopesOnce.Do(func() {
		close(r.envelopes)
	})
}

// EmitEvent delivers evt to every stats subscriber.
func (r *Runner) EmitEvent(evt stats.Event) {
	r.subsMu.Lock()
	subs := r.subs
	r.subsMu.Unlock()
	for _, ch := range subs {
		select {
		case <-r.ctx.Done():
			return
		case ch <- evt:
		}
	}
}

// SubscribeStats gives fn its own copy of the event stream. Subscribers
// must be added before the source stage starts emitting.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, 128)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// Start waits for all stages, then orders, sorts and writes the report.
// The report is written even when the run was interrupted or a stage
// failed.
func (r *Runner) Start() error {
	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	interrupted := r.parent.Err() != nil
	r.cancel()

	if err := r.finalize(); err != nil {
		r.fail(err)
	}

	err := r.firstErr()
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("search failed", "duration", duration, "err", err)
		return err
	}
	if interrupted {
		r.logger.Warn("search interrupted, partial results saved", "mails", r.report.MailCount(), "output", r.outputBase)
		return ErrInterrupted
	}

	r.logger.Info("search completed", "duration", duration)
	return nil
}

func (r *Runner) finalize() error {
	r.report.Order()
	r.report.Sort()

	paths, err := r.report.StoreAll(r.outputBase)
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	r.outputs = paths
	r.logger.Info("saved", "mails", r.report.MailCount(), "hits", r.report.Len(), "output", r.outputBase)

	if r.cfg.PGDSN != "" {
		if err := r.exportPostgres(); err != nil {
			return fmt.Errorf("postgres export: %w", err)
		}
	}
	return nil
}

func (r *Runner) exportPostgres() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.parent), exportTimeout)
	defer cancel()

	sink, err := pgsink.Open(ctx, r.cfg.PGDSN)
	if err != nil {
		return err
	}
	defer sink.Close()

	n, err := sink.Write(ctx, r.outputBase, r.report.Lines())
	if err != nil {
		return err
	}
	r.logger.Info("exported to postgres", "table", pgsink.Table, "rows", n, "run", r.outputBase)
	return nil
}

// match runs the worker pool. Results are sent without watching the
// context because collect drains until results is closed.
func (r *Runner) match(ctx context.Context) error {
	defer r.closeResults()

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-r.envelopes:
					if !ok {
						return
					}
					r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeScanned, Path: env.Path})
					r.results <- r.process(env)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// process parses and searches one message. A panic in the pipeline is
// reported as an error for that file only.
func (r *Runner) process(env model.Envelope) (res model.Result) {
	res = model.Result{Seq: env.Seq, Path: env.Path}
	if env.Err != nil {
		res.Err = env.Err
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Hits = nil
			res.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	msg, err := mailmsg.Parse(env.Raw, r.logger)
	if err != nil {
		res.Err = fmt.Errorf("parse: %w", err)
		return res
	}
	if msg.Lenient {
		r.EmitEvent(stats.Event{Stage: stats.StageMatch, Type: stats.EventTypeLenient, Path: env.Path})
	}
	res.Hits = r.matcher.Hits(msg, env.Seq)
	return res
}

func (r *Runner) collect(ctx context.Context) error {
	for res := range r.results {
		if res.Err != nil {
			r.logger.Warn("skipped file", "path", res.Path, "err", res.Err)
			r.EmitEvent(stats.Event{Stage: stats.StageMatch, Type: stats.EventTypeError, Path: res.Path, Err: res.Err})
			continue
		}
		if len(res.Hits) == 0 {
			continue
		}
		r.report.Append(res.Hits...)
		r.EmitEvent(stats.Event{Stage: stats.StageReport, Type: stats.EventTypeMatched, Path: res.Path, Hits: len(res.Hits)})
	}
	return nil
}

func (r *Runner) closeResults() {
	r.closeResultsOnce.Do(func() {
		close(r.results)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		for _, ch := range r.subs {
			close(ch)
		}
	})
}

func (r *Runner) firstErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
