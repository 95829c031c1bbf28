// Package pgsink exports hits to PostgreSQL so several runs can be queried
// together.
package pgsink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhcgn/mail-grep/model"
)

// Table receives one row per hit.
const Table = "mailgrep_hits"

var ErrNoDSN = errors.New("postgres dsn not set")

// Columns in CopyFrom order.
var Columns = []string{
	"run", "mail_id", "hit_id", "message_id", "link", "date_display",
	"date_ts", "sender", "recipient", "subject", "part", "line",
}

type Sink struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and creates the hit table when missing.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrNoDSN
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Sink{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+Table+` (
  run text NOT NULL,
  mail_id integer NOT NULL,
  hit_id integer NOT NULL,
  message_id text,
  link text,
  date_display text,
  date_ts timestamptz,
  sender text,
  recipient text,
  subject text,
  part text NOT NULL,
  line text NOT NULL,
  PRIMARY KEY (run, mail_id, hit_id)
);
CREATE INDEX IF NOT EXISTS `+Table+`_date_idx ON `+Table+` (date_ts DESC NULLS LAST);
CREATE INDEX IF NOT EXISTS `+Table+`_message_idx ON `+Table+` (message_id);
`)
	return err
}

func (s *Sink) Close() {
	s.pool.Close()
}

// Write bulk-loads hits tagged with run and returns the number of rows
// copied. Rows of an earlier export under the same run are replaced.
func (s *Sink) Write(ctx context.Context, run string, hits []model.Hit) (int64, error) {
	if len(hits) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+Table+` WHERE run = $1`, run); err != nil {
		return 0, fmt.Errorf("clear run: %w", err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{Table}, Columns, pgx.CopyFromRows(Rows(run, hits)))
	if err != nil {
		return 0, fmt.Errorf("copy hits: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// Rows converts hits to CopyFrom rows in Columns order.
func Rows(run string, hits []model.Hit) [][]any {
	rows := make([][]any, 0, len(hits))
	for _, h := range hits {
		p := h.Profile
		if p == nil {
			p = &model.Profile{}
		}
		var ts any
		if p.DateSortKey != nil {
			ts = *p.DateSortKey
		}
		rows = append(rows, []any{
			run, h.MailSeq, h.HitSeq, p.MessageID, p.Link, p.DateDisplay,
			ts, p.From, p.To, p.Subject, h.Part, h.Line,
		})
	}
	return rows
}
