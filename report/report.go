// Package report collects hits and writes them as CSV or XLSX.
package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dhcgn/mail-grep/model"
)

// Headers are the column names of every output format.
var Headers = []string{
	"mail_id", "hit_id", "message_id", "link", "Date",
	"From", "To", "Subject", "Matched Part", "Matched Line",
}

// returnGlyph marks a line feed inside a single cell.
const returnGlyph = "⏎"

// Report is an ordered list of hits. It only grows by Append and is only
// reordered by Order and Sort.
type Report struct {
	lines  []model.Hit
	logger *slog.Logger
}

// New returns an empty report. A nil logger discards writer warnings.
func New(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Report{logger: logger}
}

func (r *Report) Append(hits ...model.Hit) {
	r.lines = append(r.lines, hits...)
}

// Lines returns the hits in their current order. The slice must not be
// modified.
func (r *Report) Lines() []model.Hit {
	return r.lines
}

func (r *Report) Len() int {
	return len(r.lines)
}

// MailCount returns the number of distinct mails with at least one hit.
func (r *Report) MailCount() int {
	n := 0
	for _, h := range r.lines {
		if h.HitSeq == 1 {
			n++
		}
	}
	return n
}

// Order restores enumeration order: by mail sequence, then hit sequence.
// Workers finish out of order, so this runs before Sort.
func (r *Report) Order() {
	sort.SliceStable(r.lines, func(i, j int) bool {
		a, b := r.lines[i], r.lines[j]
		if a.MailSeq != b.MailSeq {
			return a.MailSeq < b.MailSeq
		}
		return a.HitSeq < b.HitSeq
	})
}

// Sort orders hits by message date, newest first. Undated hits go last and
// ties keep their relative order.
func (r *Report) Sort() {
	sort.SliceStable(r.lines, func(i, j int) bool {
		a, b := dateOf(r.lines[i]), dateOf(r.lines[j])
		if (a == nil) != (b == nil) {
			return a != nil
		}
		return a != nil && a.After(*b)
	})
}

func dateOf(h model.Hit) *time.Time {
	if h.Profile == nil {
		return nil
	}
	return h.Profile.DateSortKey
}

// Rows returns every hit flattened to sanitized cells.
func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.lines))
	for _, h := range r.lines {
		values := h.Values()
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = SanitizeCell(v)
		}
		rows = append(rows, row)
	}
	return rows
}

// SanitizeCell renders v as a single-line cell: CR is dropped and LF
// becomes a visible return glyph.
func SanitizeCell(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case []byte:
		s = strings.ToValidUTF8(string(t), "�")
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", returnGlyph)
}
