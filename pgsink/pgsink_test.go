package pgsink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dhcgn/mail-grep/model"
)

func TestOpen_NoDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  "); !errors.Is(err, ErrNoDSN) {
		t.Errorf("Open() error = %v, want ErrNoDSN", err)
	}
}

func TestRows(t *testing.T) {
	when := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	dated := &model.Profile{MessageID: "<a@x>", DateSortKey: &when, Subject: "s"}
	hits := []model.Hit{
		model.NewHit(dated, 1, 1, model.PartHeader, "Subject: s"),
		model.NewHit(nil, 2, 1, model.PartPlain, " body "),
	}

	rows := Rows("run-1", hits)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	for _, row := range rows {
		if len(row) != len(Columns) {
			t.Fatalf("row has %d values, want %d", len(row), len(Columns))
		}
	}
	if got := rows[0][6]; got != when {
		t.Errorf("date_ts = %v, want %v", got, when)
	}
	if rows[1][6] != nil {
		t.Errorf("undated hit should copy NULL, got %v", rows[1][6])
	}
	if rows[1][11] != "body" {
		t.Errorf("line = %q", rows[1][11])
	}
}
