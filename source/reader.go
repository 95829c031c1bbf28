package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mail-grep/emlx"
	"github.com/dhcgn/mail-grep/model"
	"github.com/dhcgn/mail-grep/runner"
)

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// NewReader returns a Reader over the given candidates, in order.
func NewReader(candidates []Candidate, logger *slog.Logger) Reader {
	return &fileReader{candidates: candidates, logger: logger}
}

type fileReader struct {
	candidates []Candidate
	logger     *slog.Logger
	seq        int
}

// Stream sends one envelope per message. Read failures are sent as
// envelopes carrying Err so the run continues with the next file.
func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	for _, c := range f.candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch c.Origin {
		case OriginMbox:
			err = f.streamMbox(ctx, c.Path, out)
		default:
			err = f.streamEMLX(ctx, c.Path, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *fileReader) streamEMLX(ctx context.Context, path string, out chan<- model.Envelope) error {
	raw, err := emlx.ReadFile(path, f.logger)
	env := model.Envelope{Seq: f.next(), Path: path, Origin: OriginEMLX, Raw: raw, Err: err}
	return emitEnvelope(ctx, out, env)
}

func (f *fileReader) streamMbox(ctx context.Context, path string, out chan<- model.Envelope) error {
	file, err := os.Open(path)
	if err != nil {
		return emitEnvelope(ctx, out, model.Envelope{Seq: f.next(), Path: path, Origin: OriginMbox, Err: fmt.Errorf("open mbox: %w", err)})
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgPath := fmt.Sprintf("%s#%d", path, idx+1)

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return emitEnvelope(ctx, out, model.Envelope{Seq: f.next(), Path: msgPath, Origin: OriginMbox, Err: fmt.Errorf("mbox message %d: %w", idx+1, err)})
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			err = fmt.Errorf("mbox message %d read: %w", idx+1, err)
		}
		if err := emitEnvelope(ctx, out, model.Envelope{Seq: f.next(), Path: msgPath, Origin: OriginMbox, Raw: raw, Err: err}); err != nil {
			return err
		}
	}
}

func (f *fileReader) next() int {
	f.seq++
	return f.seq
}

func emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// Count returns the number of messages the candidates will produce.
func Count(candidates []Candidate) int {
	total := 0
	for _, c := range candidates {
		if c.Origin != OriginMbox {
			total++
			continue
		}
		n, err := countMbox(c.Path)
		if err != nil || n == 0 {
			n = 1
		}
		total += n
	}
	return total
}

func countMbox(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return count, err
		}
		count++
	}
}

// Producer feeds a Reader into the runner as a stage.
type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(candidates []Candidate, r *runner.Runner, logger *slog.Logger) *Producer {
	producer := &Producer{reader: NewReader(candidates, logger), runner: r}
	r.AddStage("source", producer.run)
	return producer
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseEnvelopes()
	return p.reader.Stream(ctx, p.runner.EnvelopeWriter())
}
